// Package quota tracks the user's remaining submission allowance.
//
// The counter has two writers with a fixed merge rule: submissions apply
// an optimistic local decrement so usage shows before the round-trip
// settles, and refreshes overwrite with the server's snapshot. The
// authoritative value always wins; ordering between concurrent refreshes
// is by arrival, which is safe because a refresh is a full snapshot, not
// a delta.
package quota

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inscribe-ai/docwatch/pkg/remote"
)

// DefaultSettleDelay is how long to wait after a submission before
// re-reading the authoritative count, giving server-side accounting time
// to catch up.
const DefaultSettleDelay = time.Second

// Tracker maintains the remaining-submissions counter.
//
// Tracker is safe for concurrent use.
type Tracker struct {
	api         remote.API
	settleDelay time.Duration
	logger      *zap.Logger

	mu        sync.Mutex
	remaining int
	known     bool
}

// NewTracker creates a Tracker. A non-positive settleDelay falls back to
// DefaultSettleDelay. A nil logger disables logging.
func NewTracker(api remote.API, settleDelay time.Duration, logger *zap.Logger) *Tracker {
	if settleDelay <= 0 {
		settleDelay = DefaultSettleDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{api: api, settleDelay: settleDelay, logger: logger}
}

// Remaining returns the current counter. ok is false until the first
// successful refresh or optimistic write.
func (t *Tracker) Remaining() (remaining int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining, t.known
}

// OptimisticDecrement applies the local decrement for a just-accepted
// submission, floored at zero.
func (t *Tracker) OptimisticDecrement() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.known {
		return
	}
	if t.remaining > 0 {
		t.remaining--
	}
}

// Refresh fetches the authoritative count and overwrites local state.
func (t *Tracker) Refresh(ctx context.Context) error {
	res, err := t.api.Quota(ctx)
	if err != nil {
		t.logger.Warn("quota refresh failed", zap.Error(err))
		return err
	}

	t.mu.Lock()
	t.remaining = res.Remaining
	t.known = true
	t.mu.Unlock()

	t.logger.Debug("quota refreshed", zap.Int("remaining", res.Remaining))
	return nil
}

// RefreshAfterSettle schedules a Refresh once the settling delay elapses.
// It returns immediately; cancellation of ctx abandons the refresh.
func (t *Tracker) RefreshAfterSettle(ctx context.Context) {
	timer := time.NewTimer(t.settleDelay)
	go func() {
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			_ = t.Refresh(ctx)
		}
	}()
}
