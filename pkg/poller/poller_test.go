package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inscribe-ai/docwatch/pkg/registry"
	"github.com/inscribe-ai/docwatch/pkg/remote"
)

// statusAPI implements remote.API with a pluggable StatusOf and a call
// counter per job.
type statusAPI struct {
	mu     sync.Mutex
	calls  map[string]int
	status func(jobID string, call int) (*remote.StatusResult, error)

	// block, when non-nil, is received from before any response returns.
	block chan struct{}
}

func newStatusAPI(status func(jobID string, call int) (*remote.StatusResult, error)) *statusAPI {
	return &statusAPI{calls: make(map[string]int), status: status}
}

func (a *statusAPI) StatusOf(ctx context.Context, jobID string) (*remote.StatusResult, error) {
	a.mu.Lock()
	a.calls[jobID]++
	call := a.calls[jobID]
	block := a.block
	a.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return a.status(jobID, call)
}

func (a *statusAPI) callCount(jobID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[jobID]
}

func (a *statusAPI) Submit(ctx context.Context, fileName string, content []byte) (*remote.SubmitResult, error) {
	return nil, errors.New("not implemented")
}
func (a *statusAPI) Query(ctx context.Context, jobID, queryText string) (*remote.QueryResult, error) {
	return nil, errors.New("not implemented")
}
func (a *statusAPI) Rename(ctx context.Context, jobID, newName string) error {
	return errors.New("not implemented")
}
func (a *statusAPI) Delete(ctx context.Context, jobID string) error {
	return errors.New("not implemented")
}
func (a *statusAPI) Quota(ctx context.Context) (*remote.QuotaResult, error) {
	return nil, errors.New("not implemented")
}

func analyzing(jobID string, call int) (*remote.StatusResult, error) {
	return &remote.StatusResult{JobID: jobID, Status: "analyzing"}, nil
}

func newTestPoller(cfg Config, reg *registry.Registry, api remote.API) *Poller {
	rec := NewReconciler(reg, nil, nil, nil)
	return New(cfg, reg, api, rec, nil)
}

// waitSettled waits until no fetch is outstanding for the job.
func waitSettled(t *testing.T, p *Poller, jobID string) {
	t.Helper()
	require.Eventually(t, func() bool { return !p.InFlight(jobID) },
		time.Second, time.Millisecond)
}

func TestTick_PollsEligibleJobs(t *testing.T) {
	reg := registry.New()
	seedJob(t, reg, "job-1", registry.StatusUploaded)
	api := newStatusAPI(analyzing)
	p := newTestPoller(Config{}, reg, api)

	p.Tick(context.Background())
	waitSettled(t, p, "job-1")

	got, err := reg.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.PollAttempts)
	assert.Equal(t, registry.StatusAnalyzing, got.Status)
	assert.True(t, got.PollEnabled)
	assert.Equal(t, 1, api.callCount("job-1"))
}

func TestTick_SkipsIneligibleJobs(t *testing.T) {
	reg := registry.New()
	seedJob(t, reg, "done", registry.StatusCompleted)
	require.NoError(t, reg.Insert(&registry.JobRecord{
		ID:        "paused",
		Status:    registry.StatusAnalyzing,
		CreatedAt: time.Now(),
		// PollEnabled false: not eligible regardless of status.
	}))
	api := newStatusAPI(analyzing)
	p := newTestPoller(Config{}, reg, api)

	p.Tick(context.Background())
	time.Sleep(20 * time.Millisecond)

	assert.Zero(t, api.callCount("done"))
	assert.Zero(t, api.callCount("paused"))
}

func TestTick_NeverStacksFetchesForOneJob(t *testing.T) {
	reg := registry.New()
	seedJob(t, reg, "job-1", registry.StatusAnalyzing)

	api := newStatusAPI(analyzing)
	api.block = make(chan struct{})
	p := newTestPoller(Config{}, reg, api)

	ctx := context.Background()
	p.Tick(ctx)
	require.Eventually(t, func() bool { return api.callCount("job-1") == 1 },
		time.Second, time.Millisecond)

	// Further ticks while the response hangs must not issue a second fetch.
	p.Tick(ctx)
	p.Tick(ctx)
	p.Tick(ctx)
	assert.Equal(t, 1, api.callCount("job-1"))

	close(api.block)
	waitSettled(t, p, "job-1")

	got, err := reg.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.PollAttempts, "skipped ticks must not count attempts")

	// With the response applied the next tick may fetch again.
	p.Tick(ctx)
	waitSettled(t, p, "job-1")
	assert.Equal(t, 2, api.callCount("job-1"))
}

func TestTick_FetchFailureCountsAttemptAndIsNonFatal(t *testing.T) {
	reg := registry.New()
	seedJob(t, reg, "job-1", registry.StatusAnalyzing)

	api := newStatusAPI(func(jobID string, call int) (*remote.StatusResult, error) {
		return nil, &remote.APIError{Op: "StatusOf", JobID: jobID, Err: remote.ErrTransport}
	})
	p := newTestPoller(Config{}, reg, api)

	p.Tick(context.Background())
	waitSettled(t, p, "job-1")

	got, err := reg.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.PollAttempts)
	assert.Equal(t, registry.StatusAnalyzing, got.Status, "transport failure is not fatal to the job")
	assert.True(t, got.PollEnabled)
}

func TestCeiling_ForcesTimeout(t *testing.T) {
	reg := registry.New()
	seedJob(t, reg, "job-1", registry.StatusAnalyzing)

	api := newStatusAPI(analyzing)
	p := newTestPoller(Config{MaxAttempts: 3}, reg, api)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		p.Tick(ctx)
		waitSettled(t, p, "job-1")
	}

	got, err := reg.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusTimeout, got.Status)
	assert.Equal(t, "Polling timed out.", got.ErrorMessage)
	assert.False(t, got.PollEnabled)
	assert.Equal(t, 3, got.PollAttempts)

	// Terminal: further ticks fetch nothing and the counter stays put.
	p.Tick(ctx)
	p.Tick(ctx)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, api.callCount("job-1"))

	got, err = reg.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.PollAttempts)
}

func TestCeiling_ServerResultOnFinalAttemptWins(t *testing.T) {
	reg := registry.New()
	seedJob(t, reg, "job-1", registry.StatusAnalyzing)

	api := newStatusAPI(func(jobID string, call int) (*remote.StatusResult, error) {
		if call >= 2 {
			return &remote.StatusResult{JobID: jobID, Status: "completed", QnAReady: true}, nil
		}
		return &remote.StatusResult{JobID: jobID, Status: "analyzing"}, nil
	})
	p := newTestPoller(Config{MaxAttempts: 2}, reg, api)

	ctx := context.Background()
	p.Tick(ctx)
	waitSettled(t, p, "job-1")
	p.Tick(ctx)
	waitSettled(t, p, "job-1")

	got, err := reg.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusCompleted, got.Status,
		"a terminal server result on the last attempt beats the local timeout")
	assert.True(t, got.QnAReady)
}

func TestDeleteDuringFlight_ResponseDiscardedSilently(t *testing.T) {
	reg := registry.New()
	seedJob(t, reg, "job-1", registry.StatusAnalyzing)

	api := newStatusAPI(func(jobID string, call int) (*remote.StatusResult, error) {
		return &remote.StatusResult{JobID: jobID, Status: "completed", QnAReady: true}, nil
	})
	api.block = make(chan struct{})

	edgeFired := false
	rec := NewReconciler(reg, func(string) { edgeFired = true },
		func(jobID string) bool { return true }, nil)
	p := New(Config{}, reg, api, rec, nil)

	p.Tick(context.Background())
	require.Eventually(t, func() bool { return p.InFlight("job-1") },
		time.Second, time.Millisecond)

	// Explicit delete while the fetch hangs.
	require.NoError(t, reg.Remove("job-1"))

	close(api.block)
	waitSettled(t, p, "job-1")

	assert.Zero(t, reg.Len(), "late response must not resurrect the record")
	assert.False(t, edgeFired)
}

func TestStartStop_IdleWithoutJobs(t *testing.T) {
	reg := registry.New()
	api := newStatusAPI(analyzing)
	p := newTestPoller(Config{Interval: 5 * time.Millisecond}, reg, api)

	p.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Empty(t, api.calls, "no tick may fire while nothing is eligible")
}

func TestStartKick_PollsUntilTerminal(t *testing.T) {
	reg := registry.New()
	api := newStatusAPI(func(jobID string, call int) (*remote.StatusResult, error) {
		if call >= 3 {
			return &remote.StatusResult{JobID: jobID, Status: "completed", QnAReady: true}, nil
		}
		return &remote.StatusResult{JobID: jobID, Status: "analyzing"}, nil
	})
	p := newTestPoller(Config{Interval: 5 * time.Millisecond}, reg, api)

	p.Start(context.Background())
	defer p.Stop()

	seedJob(t, reg, "job-1", registry.StatusUploaded)
	p.Kick()

	require.Eventually(t, func() bool {
		got, err := reg.Get("job-1")
		return err == nil && got.Status == registry.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	// Settles idle after terminal: call count stops moving.
	waitSettled(t, p, "job-1")
	n := api.callCount("job-1")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, api.callCount("job-1"))
}

func TestManualRetry_ResetThenKickRepolls(t *testing.T) {
	reg := registry.New()
	api := newStatusAPI(analyzing)
	p := newTestPoller(Config{Interval: 5 * time.Millisecond, MaxAttempts: 2}, reg, api)

	p.Start(context.Background())
	defer p.Stop()

	seedJob(t, reg, "job-1", registry.StatusAnalyzing)
	p.Kick()

	require.Eventually(t, func() bool {
		got, err := reg.Get("job-1")
		return err == nil && got.Status == registry.StatusTimeout
	}, 2*time.Second, 5*time.Millisecond)

	_, err := reg.Reset("job-1", registry.StatusAnalyzing)
	require.NoError(t, err)
	p.Kick()

	// Attempt counter restarted from zero proves the job re-entered the
	// poll set after the reset.
	require.Eventually(t, func() bool {
		got, err := reg.Get("job-1")
		return err == nil && got.PollAttempts > 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOnApplied_FiresAfterCeilingEnforcement(t *testing.T) {
	reg := registry.New()
	seedJob(t, reg, "job-1", registry.StatusUploaded)
	api := newStatusAPI(analyzing)
	p := newTestPoller(Config{MaxAttempts: 1}, reg, api)

	// The hook must observe the record with the ceiling already applied,
	// or a persistence hook would write the pre-timeout state.
	var mu sync.Mutex
	var seen []registry.Status
	p.OnApplied(func(jobID string) {
		got, err := reg.Get(jobID)
		require.NoError(t, err)
		mu.Lock()
		seen = append(seen, got.Status)
		mu.Unlock()
	})

	p.Tick(context.Background())
	waitSettled(t, p, "job-1")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []registry.Status{registry.StatusTimeout}, seen)
}

func TestRateLimit_SpacesFetchesAcrossJobs(t *testing.T) {
	reg := registry.New()
	seedJob(t, reg, "job-1", registry.StatusUploaded)
	seedJob(t, reg, "job-2", registry.StatusUploaded)
	seedJob(t, reg, "job-3", registry.StatusUploaded)
	api := newStatusAPI(analyzing)

	// 100/s with burst 1: the first fetch is immediate, each further one
	// waits at least 10ms for a token.
	p := newTestPoller(Config{RateLimit: 100}, reg, api)

	start := time.Now()
	p.Tick(context.Background())

	require.Eventually(t, func() bool {
		for _, id := range []string{"job-1", "job-2", "job-3"} {
			got, err := reg.Get(id)
			if err != nil || got.PollAttempts != 1 {
				return false
			}
		}
		return true
	}, 2*time.Second, time.Millisecond)

	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond,
		"three fetches through a 100/s limiter cannot land sooner than two token waits")
}

func TestRateLimit_CanceledWaitAbortsWithoutAttempt(t *testing.T) {
	reg := registry.New()
	seedJob(t, reg, "job-1", registry.StatusUploaded)
	seedJob(t, reg, "job-2", registry.StatusUploaded)
	api := newStatusAPI(analyzing)

	// One burst token and a near-zero refill rate: exactly one fetch gets
	// through, the other blocks in the limiter until the context dies.
	p := newTestPoller(Config{RateLimit: 0.001}, reg, api)

	ctx, cancel := context.WithCancel(context.Background())
	p.Tick(ctx)

	attempts := func() int {
		n := 0
		for _, id := range []string{"job-1", "job-2"} {
			got, err := reg.Get(id)
			require.NoError(t, err)
			n += got.PollAttempts
		}
		return n
	}
	require.Eventually(t, func() bool { return attempts() == 1 },
		2*time.Second, time.Millisecond)

	cancel()
	waitSettled(t, p, "job-1")
	waitSettled(t, p, "job-2")

	// The aborted fetch never reached the service and cost no attempt.
	assert.Equal(t, 1, attempts())
	assert.Equal(t, 1, api.callCount("job-1")+api.callCount("job-2"))
}
