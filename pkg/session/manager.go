package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/inscribe-ai/docwatch/pkg/remote"
)

// Manager owns the session set, one lazily created session per job.
//
// Manager is safe for concurrent use.
type Manager struct {
	api    remote.API
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty Manager.
func NewManager(api remote.API, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		api:      api,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for jobID, creating it on first use.
// ready is bound only at creation; it must read live job state, not a
// snapshot.
func (m *Manager) GetOrCreate(jobID string, ready ReadyFunc) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[jobID]; ok {
		return s
	}
	s := New(jobID, m.api, ready, m.logger.With(zap.String("job_id", jobID)))
	m.sessions[jobID] = s
	return s
}

// Get returns the session for jobID if one exists.
func (m *Manager) Get(jobID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[jobID]
	return s, ok
}

// Drop discards the session for a deleted job.
func (m *Manager) Drop(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, jobID)
}
