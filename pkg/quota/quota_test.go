package quota

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inscribe-ai/docwatch/pkg/remote"
)

// fakeAPI implements remote.API with only the quota call wired.
type fakeAPI struct {
	remaining atomic.Int64
	calls     atomic.Int64
	fail      atomic.Bool
}

func (f *fakeAPI) Quota(ctx context.Context) (*remote.QuotaResult, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, &remote.APIError{Op: "Quota", Err: remote.ErrTransport}
	}
	return &remote.QuotaResult{Remaining: int(f.remaining.Load())}, nil
}

func (f *fakeAPI) Submit(ctx context.Context, fileName string, content []byte) (*remote.SubmitResult, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeAPI) StatusOf(ctx context.Context, jobID string) (*remote.StatusResult, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeAPI) Query(ctx context.Context, jobID, queryText string) (*remote.QueryResult, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeAPI) Rename(ctx context.Context, jobID, newName string) error {
	return errors.New("not implemented")
}
func (f *fakeAPI) Delete(ctx context.Context, jobID string) error {
	return errors.New("not implemented")
}

func TestRemaining_UnknownUntilFirstRefresh(t *testing.T) {
	api := &fakeAPI{}
	api.remaining.Store(5)
	tr := NewTracker(api, 0, nil)

	_, ok := tr.Remaining()
	assert.False(t, ok)

	require.NoError(t, tr.Refresh(context.Background()))
	got, ok := tr.Remaining()
	require.True(t, ok)
	assert.Equal(t, 5, got)
}

func TestOptimisticDecrement(t *testing.T) {
	api := &fakeAPI{}
	api.remaining.Store(2)
	tr := NewTracker(api, 0, nil)

	// No-op before the counter is known.
	tr.OptimisticDecrement()
	_, ok := tr.Remaining()
	assert.False(t, ok)

	require.NoError(t, tr.Refresh(context.Background()))
	tr.OptimisticDecrement()
	got, _ := tr.Remaining()
	assert.Equal(t, 1, got)

	// Floored at zero.
	tr.OptimisticDecrement()
	tr.OptimisticDecrement()
	got, _ = tr.Remaining()
	assert.Equal(t, 0, got)
}

func TestRefresh_AuthoritativeOverwritesOptimistic(t *testing.T) {
	api := &fakeAPI{}
	api.remaining.Store(10)
	tr := NewTracker(api, 0, nil)

	require.NoError(t, tr.Refresh(context.Background()))
	tr.OptimisticDecrement()
	tr.OptimisticDecrement()

	// Server says the real count is 9; local guesswork is discarded.
	api.remaining.Store(9)
	require.NoError(t, tr.Refresh(context.Background()))
	got, _ := tr.Remaining()
	assert.Equal(t, 9, got)
}

func TestRefresh_FailureKeepsLocalState(t *testing.T) {
	api := &fakeAPI{}
	api.remaining.Store(4)
	tr := NewTracker(api, 0, nil)
	require.NoError(t, tr.Refresh(context.Background()))

	api.fail.Store(true)
	err := tr.Refresh(context.Background())
	require.Error(t, err)

	got, ok := tr.Remaining()
	require.True(t, ok)
	assert.Equal(t, 4, got)
}

func TestRefreshAfterSettle(t *testing.T) {
	api := &fakeAPI{}
	api.remaining.Store(3)
	tr := NewTracker(api, 10*time.Millisecond, nil)

	tr.RefreshAfterSettle(context.Background())

	require.Eventually(t, func() bool {
		got, ok := tr.Remaining()
		return ok && got == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), api.calls.Load())
}

func TestRefreshAfterSettle_CancelledContext(t *testing.T) {
	api := &fakeAPI{}
	tr := NewTracker(api, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr.RefreshAfterSettle(ctx)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), api.calls.Load())
}
