// Package remote implements the HTTP client for the document-analysis
// service.
//
// The client covers the six calls the tracking engine needs: submit,
// status, query, rename, delete, and quota. Every call takes a context
// and returns either a typed result or an *APIError classified by the
// sentinels in errors.go. Callers never see raw decode failures; an
// unparseable body is reported as ErrRejected with a generic message.
package remote

import "context"

// SubmitResult is the server's acknowledgment of a new analysis job.
type SubmitResult struct {
	JobID     string `json:"document_db_id"`
	FileName  string `json:"file_name"`
	PageCount int    `json:"page_count"`
	Message   string `json:"message,omitempty"`
}

// StatusResult is one poll's view of a job.
//
// Status is the server's raw vocabulary; mapping into the registry's
// closed enum is the reconciler's concern, not the client's.
type StatusResult struct {
	JobID        string   `json:"document_db_id"`
	Status       string   `json:"status"`
	SummaryShort string   `json:"summary_short,omitempty"`
	KeyFindings  []string `json:"key_findings,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	QnAReady     bool     `json:"qna_ready"`
}

// QueryResult is the answer to one chat question against a job's content.
type QueryResult struct {
	Answer         string   `json:"answer"`
	SourceExcerpts []string `json:"relevant_chunks_preview,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// QuotaResult is the authoritative remaining-submissions count.
type QuotaResult struct {
	Remaining int `json:"remaining"`
}

// API is the surface of the document-analysis service the engine consumes.
//
// Implementations must be safe for concurrent use; the poller issues
// status fetches for independent jobs in parallel.
type API interface {
	// Submit uploads a document for analysis. The reader's content is
	// streamed as a multipart upload under the given file name.
	Submit(ctx context.Context, fileName string, content []byte) (*SubmitResult, error)

	// StatusOf fetches the current server-side state of a job.
	// Returns ErrJobNotFound when the server does not know the id.
	StatusOf(ctx context.Context, jobID string) (*StatusResult, error)

	// Query asks a question against a job's analyzed content.
	Query(ctx context.Context, jobID, queryText string) (*QueryResult, error)

	// Rename changes a job's display name server-side.
	Rename(ctx context.Context, jobID, newName string) error

	// Delete removes a job and its derived data server-side.
	Delete(ctx context.Context, jobID string) error

	// Quota fetches the authoritative remaining-submissions count for
	// the current user.
	Quota(ctx context.Context) (*QuotaResult, error)
}
