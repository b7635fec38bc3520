// Package session implements the per-job Q&A chat state machine.
//
// A session exists only for jobs the server has marked queryable. At most
// one question is outstanding per session; the transcript is append-only
// and owns display order. While an answer is in flight the transcript
// carries a transient placeholder entry that is replaced by the real
// assistant message (or by the error text) when the request settles.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inscribe-ai/docwatch/pkg/remote"
)

// Sentinel errors for session operations.
var (
	// ErrNotReady indicates the parent job is not queryable yet.
	ErrNotReady = errors.New("job is not ready for queries")

	// ErrBusy indicates a question is already outstanding.
	ErrBusy = errors.New("a query is already in flight")

	// ErrEmptyQuery indicates a blank question was rejected before any
	// network call.
	ErrEmptyQuery = errors.New("query text is empty")
)

// Sender identifies who authored a transcript entry.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// placeholderText is shown while an answer is in flight.
const placeholderText = "Thinking..."

// ChatMessage is one transcript entry.
type ChatMessage struct {
	ID             string    `json:"id"`
	Sender         Sender    `json:"sender"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	SourceExcerpts []string  `json:"source_excerpts,omitempty"`

	// Pending marks the transient placeholder entry.
	Pending bool `json:"pending,omitempty"`
}

// State is the session's send cycle position. Answered and Failed are
// momentary; the session settles back to Idle as soon as a send resolves,
// ready for the next question.
type State string

const (
	StateIdle    State = "idle"
	StateSending State = "sending"
)

// ReadyFunc reports whether the parent job currently accepts queries.
// It is evaluated at send time, never captured.
type ReadyFunc func() bool

// Session is the chat state machine for one job.
//
// Session is safe for concurrent use; concurrent sends beyond the first
// are rejected with ErrBusy rather than queued.
type Session struct {
	jobID  string
	api    remote.API
	ready  ReadyFunc
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	transcript []ChatMessage
	lastError  string
}

// New creates a Session for jobID. ready gates sends; a nil ready always
// refuses. A nil logger disables logging.
func New(jobID string, api remote.API, ready ReadyFunc, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		jobID:  jobID,
		api:    api,
		ready:  ready,
		logger: logger,
		state:  StateIdle,
	}
}

// JobID returns the parent job id.
func (s *Session) JobID() string { return s.jobID }

// State returns the current send cycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent send failure, cleared by the next
// send.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Messages returns a snapshot of the transcript in display order.
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	for i := range out {
		if out[i].SourceExcerpts != nil {
			out[i].SourceExcerpts = append([]string(nil), out[i].SourceExcerpts...)
		}
	}
	return out
}

// Send asks one question. It appends the user message and a placeholder
// synchronously, performs the query, and resolves the placeholder into
// the assistant's answer or the error text. The final assistant message
// is returned.
func (s *Session) Send(ctx context.Context, text string) (*ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	placeholderID, err := s.begin(text)
	if err != nil {
		return nil, err
	}

	res, err := s.api.Query(ctx, s.jobID, text)
	switch {
	case err != nil:
		s.logger.Warn("query failed",
			zap.String("job_id", s.jobID),
			zap.Error(err))
		msg := s.fail(placeholderID, queryErrorText(err))
		return msg, err
	case res.Error != "":
		// Structured error inside a 2xx response.
		s.logger.Warn("query rejected",
			zap.String("job_id", s.jobID),
			zap.String("error", res.Error))
		msg := s.fail(placeholderID, res.Error)
		return msg, &remote.APIError{Op: "Query", JobID: s.jobID, Message: res.Error, Err: remote.ErrRejected}
	default:
		return s.answer(placeholderID, res), nil
	}
}

// begin validates preconditions and appends the user + placeholder pair.
func (s *Session) begin(text string) (placeholderID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSending {
		return "", ErrBusy
	}
	if s.ready == nil || !s.ready() {
		return "", ErrNotReady
	}

	now := time.Now().UTC()
	s.transcript = append(s.transcript, ChatMessage{
		ID:        uuid.New().String(),
		Sender:    SenderUser,
		Text:      text,
		Timestamp: now,
	})
	placeholderID = uuid.New().String()
	s.transcript = append(s.transcript, ChatMessage{
		ID:        placeholderID,
		Sender:    SenderAssistant,
		Text:      placeholderText,
		Timestamp: now,
		Pending:   true,
	})

	s.state = StateSending
	s.lastError = ""
	return placeholderID, nil
}

// answer resolves the placeholder into the assistant's reply.
func (s *Session) answer(placeholderID string, res *remote.QueryResult) *ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.resolve(placeholderID, res.Answer, res.SourceExcerpts)
	s.state = StateIdle
	return msg
}

// fail resolves the placeholder into an error entry and records the
// failure for display until the next send.
func (s *Session) fail(placeholderID, errText string) *ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.resolve(placeholderID, errText, nil)
	s.state = StateIdle
	s.lastError = errText
	return msg
}

func (s *Session) resolve(placeholderID, text string, excerpts []string) *ChatMessage {
	for i := range s.transcript {
		if s.transcript[i].ID == placeholderID {
			s.transcript[i].Text = text
			s.transcript[i].Pending = false
			s.transcript[i].Timestamp = time.Now().UTC()
			if excerpts != nil {
				s.transcript[i].SourceExcerpts = append([]string(nil), excerpts...)
			}
			out := s.transcript[i]
			return &out
		}
	}
	// Placeholder vanished (session reset underneath us); append instead
	// so the answer is not lost.
	out := ChatMessage{
		ID:             uuid.New().String(),
		Sender:         SenderAssistant,
		Text:           text,
		Timestamp:      time.Now().UTC(),
		SourceExcerpts: excerpts,
	}
	s.transcript = append(s.transcript, out)
	return &out
}

func queryErrorText(err error) string {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if remote.IsTransport(err) {
		return "Could not reach the analysis service. Please try again."
	}
	return err.Error()
}
