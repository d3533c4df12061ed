package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Thunk is a unit of deferred work producing a result.
type Thunk[T any] func(ctx context.Context) (T, error)

// pending is a callback parked while a refresh is in flight.
type pending[T any] struct {
	ctx        context.Context
	thunk      Thunk[T]
	done       chan Result[T]
	started    chan struct{}
	enqueuedAt time.Time
}

// run invokes the thunk and publishes its result. A panic inside the thunk is
// reported to the waiter as an error so the waiter always resolves.
func (p *pending[T]) run() {
	var res Result[T]
	defer func() {
		if r := recover(); r != nil {
			res = Result[T]{Err: fmt.Errorf("deferred request panicked: %v", r)}
		}
		p.done <- res
	}()
	close(p.started)
	v, err := p.thunk(p.ctx)
	res = Result[T]{Value: v, Err: err}
}

// wait blocks until the callback has run or ctx is done. The callback still
// runs after an early return; its result is dropped into the buffered channel.
func (p *pending[T]) wait(ctx context.Context) (T, error) {
	select {
	case res := <-p.done:
		return res.Value, res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Queue is a FIFO of pending callbacks with atomic drain-and-clear.
type Queue[T any] struct {
	mu    sync.Mutex
	items []*pending[T]
}

// push appends a callback bound to ctx and returns its handle.
func (q *Queue[T]) push(ctx context.Context, thunk Thunk[T]) *pending[T] {
	p := &pending[T]{
		ctx:        ctx,
		thunk:      thunk,
		done:       make(chan Result[T], 1),
		enqueuedAt: time.Now(),
	}
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
	return p
}

// Drain removes and returns every queued callback in arrival order.
// Draining an empty queue returns nil.
func (q *Queue[T]) Drain() Batch[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// Len reports the number of queued callbacks.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Batch is a drained set of callbacks.
type Batch[T any] []*pending[T]

// Start launches every callback in FIFO order. A callback is not launched
// until its predecessor has begun running. Completion order is unconstrained.
func (b Batch[T]) Start() {
	for _, p := range b {
		go p.run()
		<-p.started
	}
}
