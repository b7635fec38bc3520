// Package tracker wires the tracking engine together: registry, poller,
// quota, chat sessions, and the notification bus, plus the user-triggered
// mutations (submit, rename, delete, retry) that have to stay consistent
// with in-flight polls.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inscribe-ai/docwatch/pkg/notify"
	"github.com/inscribe-ai/docwatch/pkg/poller"
	"github.com/inscribe-ai/docwatch/pkg/quota"
	"github.com/inscribe-ai/docwatch/pkg/registry"
	"github.com/inscribe-ai/docwatch/pkg/remote"
	"github.com/inscribe-ai/docwatch/pkg/session"
)

// Validation errors, rejected before any network call.
var (
	// ErrEmptyName indicates a rename to a blank display name.
	ErrEmptyName = errors.New("new name is empty")

	// ErrNotPDF indicates a submission that is not a PDF file.
	ErrNotPDF = errors.New("only PDF files can be submitted")
)

// tombstoneTTL bounds how long deleted job ids are remembered for
// late-response discrimination.
const tombstoneTTL = time.Hour

// Config configures the Tracker.
type Config struct {
	// Poll tunes the status polling scheduler.
	Poll poller.Config

	// SettleDelay is the pause before the post-submission quota refresh.
	// Default: quota.DefaultSettleDelay
	SettleDelay time.Duration

	// StoreRoot, when non-empty, enables on-disk persistence of job
	// records under this directory so a later run can resume tracking.
	StoreRoot string
}

// Tracker is the engine facade.
//
// Tracker is safe for concurrent use once Start has returned.
type Tracker struct {
	api      remote.API
	reg      *registry.Registry
	poll     *poller.Poller
	quota    *quota.Tracker
	sessions *session.Manager
	notifier *notify.Notifier
	store    *registry.Store
	logger   *zap.Logger

	mu        sync.Mutex
	deleted   map[string]time.Time
	runCtx    context.Context
	runCancel context.CancelFunc
}

// New creates a Tracker around the given API client.
func New(cfg Config, api remote.API, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		api:      api,
		reg:      registry.New(),
		notifier: notify.New(),
		logger:   logger,
		deleted:  make(map[string]time.Time),
	}
	t.quota = quota.NewTracker(api, cfg.SettleDelay, logger.Named("quota"))
	t.sessions = session.NewManager(api, logger.Named("session"))
	if root := strings.TrimSpace(cfg.StoreRoot); root != "" {
		t.store = registry.NewStore(root)
	}

	rec := poller.NewReconciler(t.reg, t.onCompletedEdge, t.isDeleted, logger.Named("reconciler"))
	t.poll = poller.New(cfg.Poll, t.reg, api, rec, logger.Named("poller"))
	// Every applied poll response hits disk, so attempt counters and
	// terminal states (including the forced timeout) survive a restart.
	t.poll.OnApplied(t.persist)
	return t
}

// Registry exposes the job table for read-only observers.
func (t *Tracker) Registry() *registry.Registry { return t.reg }

// Notifier exposes the notification bus.
func (t *Tracker) Notifier() *notify.Notifier { return t.notifier }

// Quota exposes the quota tracker.
func (t *Tracker) Quota() *quota.Tracker { return t.quota }

// Start resumes persisted jobs, primes the quota counter, and launches
// the polling scheduler.
func (t *Tracker) Start(ctx context.Context) error {
	t.runCtx, t.runCancel = context.WithCancel(ctx)

	if t.store != nil {
		if err := t.store.LoadInto(t.reg); err != nil {
			return fmt.Errorf("resume persisted jobs: %w", err)
		}
		t.logger.Info("resumed persisted jobs", zap.Int("count", t.reg.Len()))
	}

	// Startup quota read; failures are non-fatal, the counter just stays
	// unknown until a later refresh lands.
	go func() { _ = t.quota.Refresh(t.runCtx) }()

	t.poll.Start(t.runCtx)
	t.poll.Kick()
	return nil
}

// Stop shuts the scheduler down and waits for in-flight work.
func (t *Tracker) Stop() {
	if t.runCancel != nil {
		t.runCancel()
	}
	t.poll.Stop()
}

// Submit uploads a PDF and begins tracking the resulting job.
func (t *Tracker) Submit(ctx context.Context, path string) (*registry.JobRecord, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, fmt.Errorf("%q: %w", path, ErrNotPDF)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read submission: %w", err)
	}

	fileName := filepath.Base(path)
	res, err := t.api.Submit(ctx, fileName, content)
	if err != nil {
		t.notifier.Error(fmt.Sprintf("Upload of %s failed.", fileName))
		return nil, err
	}

	displayName := res.FileName
	if displayName == "" {
		displayName = fileName
	}
	rec := &registry.JobRecord{
		ID:          res.JobID,
		DisplayName: displayName,
		Status:      registry.StatusUploaded,
		PageCount:   res.PageCount,
		CreatedAt:   time.Now().UTC(),
		PollEnabled: true,
	}
	if err := t.reg.Insert(rec); err != nil {
		return nil, err
	}
	t.persist(res.JobID)

	// Usage shows immediately; the authoritative count follows once
	// server-side accounting settles.
	t.quota.OptimisticDecrement()
	t.quota.RefreshAfterSettle(t.settleCtx(ctx))

	t.poll.Kick()
	t.notifier.Success(fmt.Sprintf("%s uploaded, analysis started.", displayName))
	t.logger.Info("job submitted",
		zap.String("job_id", res.JobID),
		zap.String("file", displayName),
		zap.Int("pages", res.PageCount))

	out := *rec
	return &out, nil
}

// Rename changes a job's display name. The registry is only touched after
// the server accepts the change, so a failure leaves no partial state.
func (t *Tracker) Rename(ctx context.Context, jobID, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrEmptyName
	}

	if err := t.api.Rename(ctx, jobID, newName); err != nil {
		t.notifier.Error("Rename failed.")
		t.logger.Warn("rename failed", zap.String("job_id", jobID), zap.Error(err))
		return err
	}

	if _, err := t.reg.Update(jobID, registry.Patch{DisplayName: &newName}); err != nil {
		// Deleted between the call and the update; the server-side
		// rename is moot.
		t.logger.Warn("renamed job vanished locally", zap.String("job_id", jobID), zap.Error(err))
		return err
	}
	t.persist(jobID)
	t.notifier.Success(fmt.Sprintf("Renamed to %s.", newName))
	return nil
}

// Delete removes a job everywhere: server, registry, session set, poll
// set, and persisted state. A poll already in flight for the job is
// allowed to finish and its response is discarded on arrival.
func (t *Tracker) Delete(ctx context.Context, jobID string) error {
	if err := t.api.Delete(ctx, jobID); err != nil {
		t.notifier.Error("Delete failed.")
		t.logger.Warn("delete failed", zap.String("job_id", jobID), zap.Error(err))
		return err
	}

	t.tombstone(jobID)
	if err := t.reg.Remove(jobID); err != nil && !registry.IsNotFound(err) {
		return err
	}
	t.sessions.Drop(jobID)
	if t.store != nil {
		_ = t.store.Remove(jobID)
	}

	t.notifier.Success("Document deleted.")
	t.logger.Info("job deleted", zap.String("job_id", jobID))
	return nil
}

// Retry rewinds a terminal job and puts it back in the poll set.
func (t *Tracker) Retry(jobID string) error {
	if _, err := t.reg.Reset(jobID, registry.StatusAnalyzing); err != nil {
		return err
	}
	t.persist(jobID)
	t.poll.Kick()
	t.logger.Info("job retry requested", zap.String("job_id", jobID))
	return nil
}

// Query sends one chat question against a job. The session is created
// lazily on first use and its readiness gate reads live registry state.
func (t *Tracker) Query(ctx context.Context, jobID, queryText string) (*session.ChatMessage, error) {
	if _, err := t.reg.Get(jobID); err != nil {
		return nil, err
	}
	s := t.sessions.GetOrCreate(jobID, t.readiness(jobID))
	return s.Send(ctx, queryText)
}

// Session returns the chat session for a job, if one exists yet.
func (t *Tracker) Session(jobID string) (*session.Session, bool) {
	return t.sessions.Get(jobID)
}

// readiness binds a live readiness check for a job. Evaluated at send
// time against the current registry record, never a snapshot.
func (t *Tracker) readiness(jobID string) session.ReadyFunc {
	return func() bool {
		rec, err := t.reg.Get(jobID)
		return err == nil && rec.QnAReady
	}
}

// onCompletedEdge fires exactly once per completed transition: refresh
// the quota counter. Persistence is handled by the applied-result hook.
func (t *Tracker) onCompletedEdge(jobID string) {
	ctx := t.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() { _ = t.quota.Refresh(ctx) }()
}

// isDeleted reports whether jobID was explicitly deleted recently.
func (t *Tracker) isDeleted(jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.deleted[jobID]
	return ok
}

func (t *Tracker) tombstone(jobID string) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, at := range t.deleted {
		if now.Sub(at) > tombstoneTTL {
			delete(t.deleted, id)
		}
	}
	t.deleted[jobID] = now
}

func (t *Tracker) persist(jobID string) {
	if t.store == nil {
		return
	}
	rec, err := t.reg.Get(jobID)
	if err != nil {
		return
	}
	if err := t.store.Write(rec); err != nil {
		t.logger.Warn("persist job record failed",
			zap.String("job_id", jobID),
			zap.Error(err))
	}
}

// settleCtx picks the longest-lived context available for the deferred
// quota refresh so it survives the caller returning.
func (t *Tracker) settleCtx(ctx context.Context) context.Context {
	if t.runCtx != nil {
		return t.runCtx
	}
	return ctx
}
