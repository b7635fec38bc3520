// Package registry is the in-memory table of tracked analysis jobs.
//
// The registry is the single source of truth shared by the poller, the
// mutation coordinator, and any read-only observers. All access goes
// through Insert/Get/All/Update/Remove; snapshots returned by Get and All
// are copies and never alias internal state.
package registry

import "time"

// Status is the lifecycle state of a tracked job.
//
// NOTE: These values mirror the analysis service's status vocabulary and
// are persisted in job.json, so they are part of the stable contract.
type Status string

const (
	StatusUploaded  Status = "uploaded"
	StatusParsing   Status = "parsing"
	StatusAnalyzing Status = "analyzing"

	StatusCompleted           Status = "completed"
	StatusCompletedNoQnA      Status = "completed_no_qna"
	StatusCompletedWithErrors Status = "completed_with_errors"

	StatusFailed  Status = "failed"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// IsCompleted reports whether s is in the completed family.
func (s Status) IsCompleted() bool {
	switch s {
	case StatusCompleted, StatusCompletedNoQnA, StatusCompletedWithErrors:
		return true
	}
	return false
}

// IsTerminal reports whether s permits no further polling without an
// explicit manual retry.
func (s Status) IsTerminal() bool {
	if s.IsCompleted() {
		return true
	}
	switch s {
	case StatusFailed, StatusError, StatusTimeout:
		return true
	}
	return false
}

// ParseStatus maps a server status string onto the closed enum.
// Unknown values are reported as ok=false; callers decide how to absorb
// them (the reconciler treats an unknown status as a no-op for that tick).
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusUploaded, StatusParsing, StatusAnalyzing,
		StatusCompleted, StatusCompletedNoQnA, StatusCompletedWithErrors,
		StatusFailed, StatusError, StatusTimeout:
		return Status(s), true
	}
	return "", false
}

// JobRecord is one tracked document-analysis job.
type JobRecord struct {
	// ID is the server-assigned job id. Immutable.
	ID string `json:"job_id"`

	// DisplayName is the user-visible name; renameable.
	DisplayName string `json:"display_name"`

	// Status is the last reconciled lifecycle state.
	Status Status `json:"status"`

	// Summary holds the short summary once a completed state is reached.
	Summary string `json:"summary,omitempty"`

	// KeyFindings holds highlighted findings once analysis completes.
	KeyFindings []string `json:"key_findings,omitempty"`

	// ErrorMessage holds failure detail for failed/error/timeout states.
	ErrorMessage string `json:"error_message,omitempty"`

	// PageCount is the server-reported page count from submission.
	PageCount int `json:"page_count,omitempty"`

	// CreatedAt is the client-side submission time (optimistic; the
	// server's value wins if it ever disagrees).
	CreatedAt time.Time `json:"created_at"`

	// PollEnabled gates participation in polling. Derived from status
	// transitions only; forced false on entering any terminal state.
	PollEnabled bool `json:"poll_enabled"`

	// PollAttempts counts status fetches since submission or the last
	// manual retry.
	PollAttempts int `json:"poll_attempts"`

	// QnAReady is the server-asserted flag permitting chat queries.
	// Monotonic false→true except on manual retry.
	QnAReady bool `json:"qna_ready"`

	// seq is the insertion sequence used to break ordering ties.
	seq uint64
}

// clone returns a deep copy safe to hand outside the registry lock.
func (r *JobRecord) clone() *JobRecord {
	out := *r
	if r.KeyFindings != nil {
		out.KeyFindings = append([]string(nil), r.KeyFindings...)
	}
	return &out
}

// Patch is a partial update applied by Registry.Update. Nil fields are
// left untouched.
type Patch struct {
	DisplayName  *string
	Status       *Status
	Summary      *string
	KeyFindings  []string
	ErrorMessage *string
	PollEnabled  *bool
	PollAttempts *int
	QnAReady     *bool
}
