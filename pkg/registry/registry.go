package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is the mutex-guarded in-memory job table.
//
// Correctness note: the poller, reconciler, and mutation coordinator all
// run on separate goroutines, so every operation takes the lock and every
// returned record is a copy. Observers must re-read a fresh snapshot at
// decision time rather than hold on to one.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*JobRecord
	seq  uint64
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{jobs: make(map[string]*JobRecord)}
}

// Insert adds a new record. The id must not already exist.
func (r *Registry) Insert(rec *JobRecord) error {
	if rec == nil {
		return fmt.Errorf("registry: record is nil")
	}
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return fmt.Errorf("registry: job id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; ok {
		return fmt.Errorf("registry: %q: %w", id, ErrDuplicateID)
	}

	stored := rec.clone()
	stored.ID = id
	r.seq++
	stored.seq = r.seq
	if stored.Status.IsTerminal() {
		stored.PollEnabled = false
	}
	r.jobs[id] = stored
	return nil
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (*JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("registry: %q: %w", id, ErrNotFound)
	}
	return rec.clone(), nil
}

// All returns a snapshot of every record, most recently inserted first
// (ties on CreatedAt broken by insertion order).
func (r *Registry) All() []JobRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]JobRecord, 0, len(r.jobs))
	for _, rec := range r.jobs {
		out = append(out, *rec.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].seq > out[j].seq
	})
	return out
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Update merges a partial patch into the record for id.
//
// Two invariants are enforced here rather than trusted to callers:
// a terminal status never regresses to a non-terminal one (ErrStatusRegression;
// manual retry goes through Reset), and entering a terminal status forces
// PollEnabled false regardless of what the patch says.
func (r *Registry) Update(id string, patch Patch) (*JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("registry: %q: %w", id, ErrNotFound)
	}

	if patch.Status != nil {
		next := *patch.Status
		if rec.Status.IsTerminal() && !next.IsTerminal() {
			return nil, fmt.Errorf("registry: %q: %s -> %s: %w",
				id, rec.Status, next, ErrStatusRegression)
		}
		rec.Status = next
	}
	if patch.DisplayName != nil {
		rec.DisplayName = *patch.DisplayName
	}
	if patch.Summary != nil {
		rec.Summary = *patch.Summary
	}
	if patch.KeyFindings != nil {
		rec.KeyFindings = append([]string(nil), patch.KeyFindings...)
	}
	if patch.ErrorMessage != nil {
		rec.ErrorMessage = *patch.ErrorMessage
	}
	if patch.PollAttempts != nil {
		rec.PollAttempts = *patch.PollAttempts
	}
	if patch.PollEnabled != nil {
		rec.PollEnabled = *patch.PollEnabled
	}
	if patch.QnAReady != nil {
		rec.QnAReady = *patch.QnAReady
	}
	// Readiness only ever holds in a completed state, however the record
	// got there.
	rec.QnAReady = rec.QnAReady && rec.Status.IsCompleted()
	if rec.Status.IsTerminal() {
		rec.PollEnabled = false
	}

	return rec.clone(), nil
}

// Reset rewinds a job for a manual retry: attempts back to zero, polling
// re-enabled, error state cleared, status moved to the given non-terminal
// status. This is the only path out of a terminal one.
func (r *Registry) Reset(id string, status Status) (*JobRecord, error) {
	if status.IsTerminal() {
		return nil, fmt.Errorf("registry: reset status %q is terminal", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("registry: %q: %w", id, ErrNotFound)
	}

	rec.Status = status
	rec.PollAttempts = 0
	rec.PollEnabled = true
	rec.ErrorMessage = ""
	rec.QnAReady = false
	return rec.clone(), nil
}

// Remove deletes the record for id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return fmt.Errorf("registry: %q: %w", id, ErrNotFound)
	}
	delete(r.jobs, id)
	return nil
}
