package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// RefreshFunc performs one refresh attempt. attempt starts at 1.
type RefreshFunc func(ctx context.Context, attempt int) error

// Option tunes a Coordinator.
type Option func(*settings)

type settings struct {
	log            Logger
	observer       Observer
	hintTTL        time.Duration
	attemptTimeout time.Duration
	retryDelay     time.Duration
	now            func() time.Time
}

// WithLogger sets the coordinator logger.
func WithLogger(log Logger) Option {
	return func(s *settings) { s.log = ensureLogger(log) }
}

// WithObserver sets the coordinator event observer.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithHintTTL bounds how long a succeeded refresh lets later 401s replay
// without refreshing again. Zero keeps the hint until the next refresh run.
func WithHintTTL(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.hintTTL = d
		}
	}
}

// WithAttemptTimeout bounds each refresh attempt. Zero means unbounded.
func WithAttemptTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.attemptTimeout = d
		}
	}
}

// WithRetryDelay sets a fixed pause between refresh attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// Coordinator serializes credential refreshes for one client instance and
// parks requests that arrive while a refresh is running.
//
// At most one refresh runs at a time. Every callback parked while a refresh
// is in progress is started exactly once after the refresh settles.
type Coordinator[T any] struct {
	mu         sync.Mutex
	inProgress bool
	last       Status
	settledAt  time.Time
	queue      Queue[T]

	cfg settings
}

// New builds a coordinator in the {idle, unknown} state.
func New[T any](opts ...Option) *Coordinator[T] {
	cfg := settings{
		log:      noopLogger{},
		observer: noopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Coordinator[T]{last: StatusUnknown, cfg: cfg}
}

// State returns a snapshot of the refresh state.
func (c *Coordinator[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		InProgress: c.inProgress,
		Last:       c.last,
		SettledAt:  c.settledAt,
		Pending:    c.queue.Len(),
	}
}

// Hold parks fn behind an in-flight refresh. When no refresh is running it
// returns held=false and the caller dispatches on its own. Otherwise it waits
// for fn to run after the refresh settles and returns its result.
func (c *Coordinator[T]) Hold(ctx context.Context, fn Thunk[T]) (v T, held bool, err error) {
	c.mu.Lock()
	if !c.inProgress {
		c.mu.Unlock()
		return v, false, nil
	}
	p := c.queue.push(ctx, fn)
	depth := c.queue.Len()
	c.mu.Unlock()

	c.cfg.observer.RequestQueued(depth)
	c.cfg.log.DebugObj("request parked behind refresh", "refresh_queue", map[string]any{
		"depth": depth,
	})
	v, err = c.await(ctx, p)
	return v, true, err
}

// Intercept handles an authorization failure. It either joins the running
// refresh, replays on a recent success, or runs the refresh itself. The
// returned result is always the replay's own outcome.
func (c *Coordinator[T]) Intercept(ctx context.Context, refresh RefreshFunc, retryCount int, replay Thunk[T]) (T, error) {
	if refresh == nil || replay == nil {
		var zero T
		return zero, fmt.Errorf("refresh coordinator: refresh and replay functions are required")
	}

	c.mu.Lock()
	if c.inProgress {
		p := c.queue.push(ctx, replay)
		depth := c.queue.Len()
		c.mu.Unlock()

		c.cfg.observer.RequestQueued(depth)
		c.cfg.log.DebugObj("401 while refresh in progress; replay queued", "refresh_queue", map[string]any{
			"depth": depth,
		})
		return c.await(ctx, p)
	}

	// A recent success means the credential has already been renewed. The
	// header of this particular request is not re-checked; a stale header
	// will surface as the replay's own 401.
	if c.hintValid() {
		settledAt := c.settledAt
		c.mu.Unlock()
		c.cfg.observer.Replayed(true)
		c.cfg.log.DebugObj("credential already refreshed; replaying", "refresh_state", map[string]any{
			"settled_at": settledAt.UTC(),
		})
		return replay(ctx)
	}

	c.inProgress = true
	c.last = StatusUnknown
	c.mu.Unlock()

	c.cfg.observer.RefreshStarted()
	c.cfg.log.InfoObj("refresh started", "refresh_state", map[string]any{
		"max_attempts": normalizeRetryCount(retryCount) + 1,
	})

	start := c.cfg.now()
	status := c.runRefresh(ctx, refresh, retryCount)

	c.mu.Lock()
	c.last = status
	c.inProgress = false
	c.settledAt = c.cfg.now()
	batch := c.queue.Drain()
	c.mu.Unlock()

	elapsed := c.cfg.now().Sub(start)
	c.cfg.observer.RefreshSettled(status, elapsed.Seconds())
	c.cfg.observer.QueueDrained(len(batch))
	c.cfg.log.InfoObj("refresh settled", "refresh_state", map[string]any{
		"status":     status.String(),
		"elapsed_ms": elapsed.Milliseconds(),
		"drained":    len(batch),
	})

	batch.Start()

	c.cfg.observer.Replayed(false)
	return replay(ctx)
}

// hintValid reports whether the fast-path hint applies. Caller holds mu.
func (c *Coordinator[T]) hintValid() bool {
	if c.last != StatusSucceeded {
		return false
	}
	if c.cfg.hintTTL <= 0 {
		return true
	}
	return c.cfg.now().Sub(c.settledAt) <= c.cfg.hintTTL
}

// runRefresh invokes refresh up to retryCount+1 times, stopping at the first
// success. It runs detached from the caller's cancellation because every
// parked request depends on it.
func (c *Coordinator[T]) runRefresh(ctx context.Context, refresh RefreshFunc, retryCount int) Status {
	ctx = context.WithoutCancel(ctx)
	attempts := uint(normalizeRetryCount(retryCount)) + 1

	attempt := 0
	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.cfg.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	).Do(func() error {
		attempt++
		err := c.attempt(ctx, refresh, attempt)
		c.cfg.observer.RefreshAttempt(attempt, err)
		if err != nil {
			c.cfg.log.WarnObj("refresh attempt failed", "refresh_attempt", map[string]any{
				"attempt":      attempt,
				"max_attempts": attempts,
				"error":        err.Error(),
			})
		}
		return err
	})
	if err != nil {
		c.cfg.log.ErrorObj("refresh exhausted", "refresh_error", map[string]any{
			"attempts": attempt,
			"error":    err.Error(),
		})
		return StatusFailed
	}
	return StatusSucceeded
}

// attempt runs a single refresh call, converting panics into errors.
func (c *Coordinator[T]) attempt(ctx context.Context, refresh RefreshFunc, n int) (err error) {
	if c.cfg.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.attemptTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh attempt %d panicked: %v", n, r)
		}
	}()
	return refresh(ctx, n)
}

func (c *Coordinator[T]) await(ctx context.Context, p *pending[T]) (T, error) {
	v, err := p.wait(ctx)
	if err != nil && ctx.Err() != nil && err == ctx.Err() {
		c.cfg.log.WarnObj("parked request abandoned by caller; callback will still run", "refresh_queue", map[string]any{
			"waited_ms": time.Since(p.enqueuedAt).Milliseconds(),
			"error":     err.Error(),
		})
	}
	return v, err
}

func normalizeRetryCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
