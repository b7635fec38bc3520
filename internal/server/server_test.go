package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/inscribe-ai/docwatch/internal/errors"
	"github.com/inscribe-ai/docwatch/internal/server/handlers"
	"github.com/inscribe-ai/docwatch/pkg/notify"
	"github.com/inscribe-ai/docwatch/pkg/registry"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry, *notify.Notifier) {
	t.Helper()
	handlers.InitHealthManager("test")

	reg := registry.New()
	notifier := notify.New()
	events := notify.NewEventLog(notifier, 16)
	t.Cleanup(events.Close)

	srv := New("127.0.0.1", 0, handlers.Deps{
		Registry: reg,
		Events:   events,
	})
	return srv, reg, notifier
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestServer_Port(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"default port", 7171},
		{"custom port", 9000},
		{"zero port", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New("127.0.0.1", tt.port, handlers.Deps{Registry: registry.New()})
			assert.Equal(t, tt.port, srv.Port())
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// POST to a GET-only endpoint should return 405
	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body apperrors.HTTPErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&body)
	require.NoError(t, err)

	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServer_RoutesRegistered(t *testing.T) {
	srv, _, _ := newTestServer(t)

	endpoints := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/healthz", http.StatusOK},
		{"GET", "/version", http.StatusOK},
		{"GET", "/v1/jobs", http.StatusOK},
		{"GET", "/v1/quota", http.StatusOK},
		{"GET", "/v1/events", http.StatusOK},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, ep.want, rec.Code, "endpoint %s %s should return %d", ep.method, ep.path, ep.want)
		})
	}
}

func TestServer_JobsSnapshot(t *testing.T) {
	srv, reg, _ := newTestServer(t)

	require.NoError(t, reg.Insert(&registry.JobRecord{
		ID:          "doc-1",
		DisplayName: "report.pdf",
		Status:      registry.StatusAnalyzing,
		CreatedAt:   time.Now(),
		PollEnabled: true,
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Jobs  []registry.JobRecord `json:"jobs"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "doc-1", body.Jobs[0].ID)
	assert.Equal(t, "report.pdf", body.Jobs[0].DisplayName)
}

func TestServer_JobByID(t *testing.T) {
	srv, reg, _ := newTestServer(t)

	require.NoError(t, reg.Insert(&registry.JobRecord{
		ID:          "doc-2",
		DisplayName: "contract.pdf",
		Status:      registry.StatusCompleted,
		CreatedAt:   time.Now(),
	}))

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/jobs/doc-2", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var got registry.JobRecord
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, "doc-2", got.ID)
	})

	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/jobs/doc-unknown", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)

		var body apperrors.HTTPErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "NOT_FOUND", body.Error.Code)
	})
}

func TestServer_EventsTail(t *testing.T) {
	srv, _, notifier := newTestServer(t)

	notifier.Success("document.pdf uploaded")

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		var body struct {
			Events []notify.Notification `json:"events"`
			Count  int                   `json:"count"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			return false
		}
		return body.Count == 1 && body.Events[0].Message == "document.pdf uploaded"
	}, time.Second, 5*time.Millisecond)
}

func TestServer_QuotaUnknownWithoutTracker(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, false, body["known"])
}
