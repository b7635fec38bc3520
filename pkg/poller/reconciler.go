// Package poller drives status polling for tracked jobs and reconciles
// the results into the registry.
//
// The scheduler owns the only repeating timer in the engine: one shared
// tick recomputes the eligible job set from a fresh registry snapshot and
// issues at most one status fetch per job. Per-job ordering needs no
// sequencing tokens because a job never has two fetches outstanding.
package poller

import (
	"go.uber.org/zap"

	"github.com/inscribe-ai/docwatch/pkg/registry"
	"github.com/inscribe-ai/docwatch/pkg/remote"
)

// CompletedEdgeFunc is invoked exactly once when a job first enters a
// completed state (used to refresh the quota counter).
type CompletedEdgeFunc func(jobID string)

// DeletedFunc reports whether a job id was explicitly deleted, so late
// poll results for it can be discarded without noise.
type DeletedFunc func(jobID string) bool

// Reconciler applies fetched status results to the registry.
type Reconciler struct {
	reg             *registry.Registry
	onCompletedEdge CompletedEdgeFunc
	deleted         DeletedFunc
	logger          *zap.Logger
}

// NewReconciler creates a Reconciler. onCompletedEdge and deleted may be
// nil; a nil logger disables logging.
func NewReconciler(reg *registry.Registry, onCompletedEdge CompletedEdgeFunc, deleted DeletedFunc, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		reg:             reg,
		onCompletedEdge: onCompletedEdge,
		deleted:         deleted,
		logger:          logger,
	}
}

// Reconcile merges one fetched status into the job's record.
//
// Reconcile is idempotent under duplicate delivery of the same terminal
// status: the completed-edge hook fires only on the transition into the
// completed family, never on re-application.
func (r *Reconciler) Reconcile(jobID string, res *remote.StatusResult) {
	status, known := registry.ParseStatus(res.Status)
	if !known {
		// An unrecognized vocabulary word is a server rejection for this
		// tick, not a reason to corrupt the record.
		r.logger.Warn("ignoring unknown job status",
			zap.String("job_id", jobID),
			zap.String("status", res.Status))
		return
	}

	prev, err := r.reg.Get(jobID)
	if err != nil {
		r.missing(jobID, err)
		return
	}

	patch := registry.Patch{
		Status:   &status,
		QnAReady: &res.QnAReady,
	}
	if res.SummaryShort != "" {
		patch.Summary = &res.SummaryShort
	}
	if res.KeyFindings != nil {
		patch.KeyFindings = res.KeyFindings
	}
	if res.ErrorMessage != "" {
		patch.ErrorMessage = &res.ErrorMessage
	}

	updated, err := r.reg.Update(jobID, patch)
	if err != nil {
		if registry.IsNotFound(err) {
			r.missing(jobID, err)
			return
		}
		// A terminal record refusing to regress means this response is
		// stale; the terminal state already won.
		r.logger.Debug("discarding stale status result",
			zap.String("job_id", jobID),
			zap.String("status", string(status)),
			zap.Error(err))
		return
	}

	r.logger.Debug("reconciled job status",
		zap.String("job_id", jobID),
		zap.String("from", string(prev.Status)),
		zap.String("to", string(updated.Status)),
		zap.Bool("qna_ready", updated.QnAReady))

	if !prev.Status.IsCompleted() && updated.Status.IsCompleted() {
		if r.onCompletedEdge != nil {
			r.onCompletedEdge(jobID)
		}
	}
}

// missing distinguishes the benign deleted-job race from a genuinely
// unknown id, which would be a bookkeeping bug worth hearing about.
func (r *Reconciler) missing(jobID string, err error) {
	if r.deleted != nil && r.deleted(jobID) {
		r.logger.Debug("discarding poll result for deleted job",
			zap.String("job_id", jobID))
		return
	}
	r.logger.Warn("poll result for unknown job",
		zap.String("job_id", jobID),
		zap.Error(err))
}
