package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config configures the HTTP client.
type Config struct {
	// BaseURL is the root of the analysis service, e.g. "http://localhost:8000".
	BaseURL string

	// UserID is the opaque identity submitted with user-scoped calls.
	UserID string

	// Timeout bounds each request. Default: 30s.
	Timeout time.Duration

	// HTTPClient overrides the underlying transport. When nil a client
	// with Timeout is constructed.
	HTTPClient *http.Client

	// Logger receives request/response logging. When nil logging is
	// disabled.
	Logger *zap.Logger
}

// Client is the HTTP implementation of API.
//
// Client is safe for concurrent use.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a Client for the given service.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("remote: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("remote: invalid base URL: %w", err)
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, fmt.Errorf("remote: user id is required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: base,
		userID:  strings.TrimSpace(cfg.UserID),
		http:    hc,
		logger:  logger,
	}, nil
}

// Submit uploads a document for analysis.
func (c *Client) Submit(ctx context.Context, fileName string, content []byte) (*SubmitResult, error) {
	const op = "Submit"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("user_id", c.userID); err != nil {
		return nil, &APIError{Op: op, Err: fmt.Errorf("encode form: %w", err)}
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, &APIError{Op: op, Err: fmt.Errorf("encode form: %w", err)}
	}
	if _, err := part.Write(content); err != nil {
		return nil, &APIError{Op: op, Err: fmt.Errorf("encode form: %w", err)}
	}
	if err := mw.Close(); err != nil {
		return nil, &APIError{Op: op, Err: fmt.Errorf("encode form: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-and-process-pdf/", &body)
	if err != nil {
		return nil, &APIError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out SubmitResult
	if err := c.do(req, op, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StatusOf fetches the current server-side state of a job.
func (c *Client) StatusOf(ctx context.Context, jobID string) (*StatusResult, error) {
	const op = "StatusOf"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/analysis-status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, &APIError{Op: op, JobID: jobID, Err: fmt.Errorf("build request: %w", err)}
	}

	var out StatusResult
	if err := c.do(req, op, jobID, &out); err != nil {
		return nil, err
	}
	if out.JobID == "" {
		out.JobID = jobID
	}
	return &out, nil
}

// Query asks a question against a job's analyzed content.
func (c *Client) Query(ctx context.Context, jobID, queryText string) (*QueryResult, error) {
	const op = "Query"

	req, err := c.jsonRequest(ctx, http.MethodPost,
		"/query-document/"+url.PathEscape(jobID),
		map[string]string{"query_text": queryText})
	if err != nil {
		return nil, &APIError{Op: op, JobID: jobID, Err: err}
	}

	var out QueryResult
	if err := c.do(req, op, jobID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rename changes a job's display name server-side.
func (c *Client) Rename(ctx context.Context, jobID, newName string) error {
	const op = "Rename"

	req, err := c.jsonRequest(ctx, http.MethodPost, "/rename-document/", map[string]string{
		"id":       jobID,
		"new_name": newName,
		"user_id":  c.userID,
	})
	if err != nil {
		return &APIError{Op: op, JobID: jobID, Err: err}
	}
	return c.do(req, op, jobID, nil)
}

// Delete removes a job and its derived data server-side.
func (c *Client) Delete(ctx context.Context, jobID string) error {
	const op = "Delete"

	req, err := c.jsonRequest(ctx, http.MethodPost, "/delete-document/", map[string]string{
		"id":      jobID,
		"user_id": c.userID,
	})
	if err != nil {
		return &APIError{Op: op, JobID: jobID, Err: err}
	}
	return c.do(req, op, jobID, nil)
}

// Quota fetches the authoritative remaining-submissions count.
func (c *Client) Quota(ctx context.Context) (*QuotaResult, error) {
	const op = "Quota"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/quota/"+url.PathEscape(c.userID), nil)
	if err != nil {
		return nil, &APIError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}

	var out QuotaResult
	if err := c.do(req, op, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do executes the request, classifies the outcome, and decodes a 2xx body
// into out (out may be nil for calls whose body is ignored).
func (c *Client) do(req *http.Request, op, jobID string, out any) error {
	reqID := uuid.New().String()
	req.Header.Set("X-Request-ID", reqID)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("remote request failed",
			zap.String("op", op),
			zap.String("req_id", reqID),
			zap.Error(err))
		return &APIError{Op: op, JobID: jobID, Message: err.Error(), Err: ErrTransport}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	c.logger.Debug("remote response",
		zap.String("op", op),
		zap.String("req_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Duration("elapsed", time.Since(start)))
	if readErr != nil {
		return &APIError{Op: op, JobID: jobID, Message: readErr.Error(), Err: ErrTransport}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &APIError{Op: op, JobID: jobID, StatusCode: resp.StatusCode,
			Message: serverDetail(raw), Err: ErrJobNotFound}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &APIError{Op: op, JobID: jobID, StatusCode: resp.StatusCode,
			Message: serverDetail(raw), Err: ErrThrottled}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &APIError{Op: op, JobID: jobID, StatusCode: resp.StatusCode,
			Message: serverDetail(raw), Err: ErrRejected}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// An unparseable success body is a rejection, not a decode panic
		// bubbling into the poll loop.
		return &APIError{Op: op, JobID: jobID, StatusCode: resp.StatusCode,
			Message: "unparseable server response", Err: ErrRejected}
	}
	return nil
}

// serverDetail extracts a human-readable message from an error body.
// The service reports failures as {"detail": "..."}; anything else falls
// back to a trimmed raw body.
func serverDetail(raw []byte) string {
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Error != "" {
			return body.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
