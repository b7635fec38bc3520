package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/inscribe-ai/docwatch/pkg/registry"
	"github.com/inscribe-ai/docwatch/pkg/remote"
)

// timeoutMessage is recorded when the local attempt ceiling is reached.
const timeoutMessage = "Polling timed out."

// Config configures scheduler behavior.
type Config struct {
	// Interval is the shared tick period while any job is eligible.
	// Default: 5s
	Interval time.Duration

	// MaxAttempts is the per-job poll ceiling; reaching it forces the
	// timeout state. Default: 24
	MaxAttempts int

	// RateLimit is the maximum status fetches per second across all
	// jobs. Zero means unlimited.
	// Default: 0
	RateLimit float64
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Second,
		MaxAttempts: 24,
		RateLimit:   0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	return c
}

// Poller schedules status fetches for eligible jobs.
//
// Eligibility is recomputed from a fresh registry snapshot at every tick;
// nothing is decided from state captured at schedule time. While no job
// is eligible the timer is stopped entirely and the poller sleeps until
// Kick.
type Poller struct {
	cfg     Config
	reg     *registry.Registry
	api     remote.API
	rec     *Reconciler
	limiter *rate.Limiter
	logger  *zap.Logger

	onApplied func(jobID string)

	mu       sync.Mutex
	inflight map[string]struct{}

	kick   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Poller. A nil logger disables logging.
func New(cfg Config, reg *registry.Registry, api remote.API, rec *Reconciler, logger *zap.Logger) *Poller {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Poller{
		cfg:      cfg,
		reg:      reg,
		api:      api,
		rec:      rec,
		limiter:  limiter,
		logger:   logger,
		inflight: make(map[string]struct{}),
		kick:     make(chan struct{}, 1),
	}
}

// OnApplied registers a hook invoked after a poll response has been
// fully applied to a job's record: attempt counted, status reconciled,
// ceiling enforced. Must be set before Start.
func (p *Poller) OnApplied(fn func(jobID string)) {
	p.onApplied = fn
}

// Start launches the scheduling loop. It returns immediately.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
}

// Stop cancels the scheduling loop and waits for it and any in-flight
// fetches to finish.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Kick wakes the scheduler so it notices an eligible-set change (new
// submission, manual retry). Safe to call at any time.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// run is the single scheduling loop. The timer exists only while work is
// pending; the empty steady state costs no wakeups.
func (p *Poller) run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	defer stopTimer()

	for {
		if !p.hasWork() {
			stopTimer()
			select {
			case <-ctx.Done():
				return
			case <-p.kick:
				continue
			}
		}

		if timer == nil {
			timer = time.NewTimer(p.cfg.Interval)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			return
		case <-p.kick:
			// Eligible set may have changed; re-evaluate without
			// disturbing the running interval.
			continue
		case <-timerC:
			timer = nil
			timerC = nil
			p.Tick(ctx)
		}
	}
}

// hasWork reports whether any job still needs polling, in flight or not.
func (p *Poller) hasWork() bool {
	for _, rec := range p.reg.All() {
		if rec.PollEnabled && !rec.Status.IsTerminal() && rec.PollAttempts < p.cfg.MaxAttempts {
			return true
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight) > 0
}

// Tick runs one scheduling pass: it snapshots the registry and issues a
// status fetch for every eligible job that does not already have one
// outstanding. Exported so callers can force an immediate pass.
func (p *Poller) Tick(ctx context.Context) {
	for _, rec := range p.reg.All() {
		if !rec.PollEnabled || rec.Status.IsTerminal() || rec.PollAttempts >= p.cfg.MaxAttempts {
			continue
		}
		if !p.claim(rec.ID) {
			// A fetch is already outstanding for this job; never stack
			// a second one.
			continue
		}
		p.wg.Add(1)
		go p.fetch(ctx, rec.ID)
	}
}

// claim marks a job in flight. Returns false if it already was.
func (p *Poller) claim(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inflight[jobID]; ok {
		return false
	}
	p.inflight[jobID] = struct{}{}
	return true
}

func (p *Poller) release(jobID string) {
	p.mu.Lock()
	delete(p.inflight, jobID)
	p.mu.Unlock()
}

// InFlight reports whether a fetch is outstanding for jobID.
func (p *Poller) InFlight(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[jobID]
	return ok
}

// fetch performs one status check and applies the outcome. The job stays
// claimed until the result is fully applied so response application for
// a single job is strictly serial.
func (p *Poller) fetch(ctx context.Context, jobID string) {
	defer p.wg.Done()
	defer p.release(jobID)

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
	}

	res, err := p.api.StatusOf(ctx, jobID)
	if ctx.Err() != nil {
		return
	}
	p.applyResult(jobID, res, err)
}

// applyResult counts the attempt, reconciles the result, and enforces
// the local attempt ceiling.
func (p *Poller) applyResult(jobID string, res *remote.StatusResult, fetchErr error) {
	cur, err := p.reg.Get(jobID)
	if err != nil {
		// Deleted while the fetch was in flight; the reconciler's
		// missing-id path owns the logging decision.
		p.rec.missing(jobID, err)
		return
	}

	// Every response costs exactly one attempt, success or not.
	attempts := cur.PollAttempts + 1
	if _, err := p.reg.Update(jobID, registry.Patch{PollAttempts: &attempts}); err != nil {
		p.rec.missing(jobID, err)
		return
	}

	if fetchErr != nil {
		// A failed poll is not fatal to the job; it is absorbed into the
		// attempt count and retried on the natural next tick.
		p.logger.Warn("status fetch failed",
			zap.String("job_id", jobID),
			zap.Int("attempt", attempts),
			zap.Error(fetchErr))
	} else {
		p.rec.Reconcile(jobID, res)
	}

	p.enforceCeiling(jobID, attempts)

	if p.onApplied != nil {
		p.onApplied(jobID)
	}
}

// enforceCeiling forces the timeout state once the attempt ceiling is
// reached with the job still non-terminal.
func (p *Poller) enforceCeiling(jobID string, attempts int) {
	if attempts < p.cfg.MaxAttempts {
		return
	}
	cur, err := p.reg.Get(jobID)
	if err != nil || cur.Status.IsTerminal() {
		return
	}

	status := registry.StatusTimeout
	msg := timeoutMessage
	if _, err := p.reg.Update(jobID, registry.Patch{
		Status:       &status,
		ErrorMessage: &msg,
	}); err != nil {
		return
	}
	p.logger.Info("job polling exhausted",
		zap.String("job_id", jobID),
		zap.Int("attempts", attempts))
}
