package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

var errUnauthorized = errors.New("401 unauthorized")

// gatedRefresh blocks every attempt until release is closed.
type gatedRefresh struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
	fail    bool
}

func newGatedRefresh(fail bool) *gatedRefresh {
	return &gatedRefresh{
		started: make(chan struct{}),
		release: make(chan struct{}),
		fail:    fail,
	}
}

func (g *gatedRefresh) fn(context.Context, int) error {
	g.calls.Add(1)
	g.once.Do(func() { close(g.started) })
	<-g.release
	if g.fail {
		return errors.New("refresh failed")
	}
	return nil
}

func waitForPending[T any](t *testing.T, c *Coordinator[T], n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.State().Pending == n
	}, 2*time.Second, time.Millisecond)
}

func TestNewCoordinatorStartsIdle(t *testing.T) {
	c := New[string]()
	st := c.State()
	require.False(t, st.InProgress)
	require.Equal(t, StatusUnknown, st.Last)
	require.Zero(t, st.Pending)
}

func TestHoldPassesThroughWhenIdle(t *testing.T) {
	c := New[string]()
	called := false
	_, held, err := c.Hold(context.Background(), func(context.Context) (string, error) {
		called = true
		return "x", nil
	})
	require.NoError(t, err)
	require.False(t, held)
	require.False(t, called, "idle coordinator must not run the thunk itself")
}

func TestConcurrentUnauthorizedRunsSingleRefresh(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New[string]()
	gate := newGatedRefresh(false)
	var replays atomic.Int32
	replay := func(context.Context) (string, error) {
		replays.Add(1)
		return "ok", nil
	}

	const n = 8
	var g errgroup.Group
	g.Go(func() error {
		v, err := c.Intercept(context.Background(), gate.fn, 0, replay)
		if err == nil && v != "ok" {
			return errors.New("unexpected value")
		}
		return err
	})
	<-gate.started

	for i := 0; i < n-1; i++ {
		g.Go(func() error {
			v, err := c.Intercept(context.Background(), gate.fn, 0, replay)
			if err == nil && v != "ok" {
				return errors.New("unexpected value")
			}
			return err
		})
	}
	waitForPending(t, c, n-1)
	require.True(t, c.State().InProgress)

	close(gate.release)
	require.NoError(t, g.Wait())

	require.EqualValues(t, 1, gate.calls.Load())
	require.EqualValues(t, n, replays.Load())
	st := c.State()
	require.False(t, st.InProgress)
	require.Equal(t, StatusSucceeded, st.Last)
	require.Zero(t, st.Pending)
}

func TestRefreshStopsAtFirstSuccess(t *testing.T) {
	c := New[int]()
	var calls int
	refresh := func(_ context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("not yet")
		}
		return nil
	}

	v, err := c.Intercept(context.Background(), refresh, 4, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.Equal(t, 2, calls)
	require.Equal(t, StatusSucceeded, c.State().Last)
}

func TestRefreshExhaustedSurfacesReplayFailure(t *testing.T) {
	c := New[string]()
	var calls, replays int
	refresh := func(context.Context, int) error {
		calls++
		panic("boom")
	}
	replay := func(context.Context) (string, error) {
		replays++
		return "", errUnauthorized
	}

	_, err := c.Intercept(context.Background(), refresh, 2, replay)
	require.ErrorIs(t, err, errUnauthorized)
	require.Equal(t, 3, calls)
	require.Equal(t, 1, replays)
	require.Equal(t, StatusFailed, c.State().Last)
}

func TestFailedRefreshStillDrainsQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New[string]()
	gate := newGatedRefresh(true)
	replayErr := func(context.Context) (string, error) { return "", errUnauthorized }

	var g errgroup.Group
	g.Go(func() error {
		_, err := c.Intercept(context.Background(), gate.fn, 1, replayErr)
		return expectUnauthorized(err)
	})
	<-gate.started
	for i := 0; i < 3; i++ {
		g.Go(func() error {
			_, err := c.Intercept(context.Background(), gate.fn, 1, replayErr)
			return expectUnauthorized(err)
		})
	}
	waitForPending(t, c, 3)
	close(gate.release)

	require.NoError(t, g.Wait())
	require.EqualValues(t, 2, gate.calls.Load())
	require.Equal(t, StatusFailed, c.State().Last)
	require.Zero(t, c.State().Pending)
}

func expectUnauthorized(err error) error {
	if !errors.Is(err, errUnauthorized) {
		return errors.New("expected replay failure to propagate")
	}
	return nil
}

func TestHoldParksUntilRefreshSettles(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New[string]()
	gate := newGatedRefresh(false)
	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Intercept(context.Background(), func(ctx context.Context, n int) error {
			err := gate.fn(ctx, n)
			record("refresh")
			return err
		}, 0, func(context.Context) (string, error) { return "trigger", nil })
	}()
	<-gate.started

	result := make(chan string, 1)
	go func() {
		v, held, err := c.Hold(context.Background(), func(context.Context) (string, error) {
			record("held")
			return "held", nil
		})
		if err != nil || !held {
			result <- "bad"
			return
		}
		result <- v
	}()
	waitForPending(t, c, 1)
	close(gate.release)

	require.Equal(t, "held", <-result)
	<-done
	require.Equal(t, []string{"refresh", "held"}, order)
}

func TestFastPathReplaysWithoutRefresh(t *testing.T) {
	c := New[string]()
	var calls int
	refresh := func(context.Context, int) error { calls++; return nil }
	replay := func(context.Context) (string, error) { return "ok", nil }

	_, err := c.Intercept(context.Background(), refresh, 0, replay)
	require.NoError(t, err)
	_, err = c.Intercept(context.Background(), refresh, 0, replay)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestHintTTLExpiresFastPath(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := New[string](WithHintTTL(time.Minute), withClock(func() time.Time { return now }))
	var calls int
	refresh := func(context.Context, int) error { calls++; return nil }
	replay := func(context.Context) (string, error) { return "ok", nil }

	_, _ = c.Intercept(context.Background(), refresh, 0, replay)
	now = now.Add(30 * time.Second)
	_, _ = c.Intercept(context.Background(), refresh, 0, replay)
	require.Equal(t, 1, calls)

	now = now.Add(2 * time.Minute)
	_, _ = c.Intercept(context.Background(), refresh, 0, replay)
	require.Equal(t, 2, calls)
}

func TestFailedRefreshDisablesFastPath(t *testing.T) {
	c := New[string]()
	var calls int
	refresh := func(context.Context, int) error { calls++; return errors.New("nope") }
	replay := func(context.Context) (string, error) { return "", errUnauthorized }

	_, _ = c.Intercept(context.Background(), refresh, 0, replay)
	_, _ = c.Intercept(context.Background(), refresh, 0, replay)
	require.Equal(t, 2, calls)
}

func TestAttemptTimeoutBoundsHungRefresh(t *testing.T) {
	c := New[string](WithAttemptTimeout(20 * time.Millisecond))
	refresh := func(ctx context.Context, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	}
	_, err := c.Intercept(context.Background(), refresh, 1, func(context.Context) (string, error) {
		return "", errUnauthorized
	})
	require.ErrorIs(t, err, errUnauthorized)
	require.Equal(t, StatusFailed, c.State().Last)
}

func TestRefreshIgnoresTriggerCancellation(t *testing.T) {
	c := New[string]()
	ctx, cancel := context.WithCancel(context.Background())
	refresh := func(rctx context.Context, _ int) error {
		cancel()
		return rctx.Err()
	}
	_, _ = c.Intercept(ctx, refresh, 0, func(context.Context) (string, error) { return "", nil })
	require.Equal(t, StatusSucceeded, c.State().Last)
}

func TestCancelledWaiterReturnsEarlyAndCallbackStillRuns(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New[string]()
	gate := newGatedRefresh(false)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Intercept(context.Background(), gate.fn, 0, func(context.Context) (string, error) { return "", nil })
	}()
	<-gate.started

	ran := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Intercept(ctx, gate.fn, 0, func(context.Context) (string, error) {
			close(ran)
			return "late", nil
		})
		errCh <- err
	}()
	waitForPending(t, c, 1)
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(gate.release)
	<-ran
	<-done
}

func TestQueueDrainIsAtomicAndFIFO(t *testing.T) {
	var q Queue[int]
	require.Nil(t, q.Drain())

	for i := 0; i < 3; i++ {
		i := i
		q.push(context.Background(), func(context.Context) (int, error) { return i, nil })
	}
	batch := q.Drain()
	require.Len(t, batch, 3)
	require.Zero(t, q.Len())
	for i, p := range batch {
		v, err := p.thunk(context.Background())
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
}

func TestDrainStartsParkedCallbacksInFIFOOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	const parked = 32
	for round := 0; round < 5; round++ {
		c := New[int]()
		gate := newGatedRefresh(false)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = c.Intercept(context.Background(), gate.fn, 0, func(context.Context) (int, error) { return -1, nil })
		}()
		<-gate.started

		var mu sync.Mutex
		var order []int
		var g errgroup.Group
		for i := 0; i < parked; i++ {
			i := i
			g.Go(func() error {
				_, _, err := c.Hold(context.Background(), func(context.Context) (int, error) {
					mu.Lock()
					order = append(order, i)
					mu.Unlock()
					return i, nil
				})
				return err
			})
			waitForPending(t, c, i+1)
		}

		close(gate.release)
		require.NoError(t, g.Wait())
		<-done

		want := make([]int, parked)
		for i := range want {
			want[i] = i
		}
		require.Equal(t, want, order, "round %d", round)
	}
}

func TestInterceptRequiresFunctions(t *testing.T) {
	c := New[string]()
	_, err := c.Intercept(context.Background(), nil, 0, nil)
	require.Error(t, err)
	require.False(t, c.State().InProgress)
}
