package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-request/pkg/refresh"
)

const defaultPublishTimeout = 5 * time.Second

// Toaster forwards loading indicators and notifications to publishers.
// Publishing is asynchronous; Flush waits for in-flight events.
type Toaster struct {
	fanout  *Fanout
	source  string
	timeout time.Duration
	log     Logger
	wg      sync.WaitGroup
}

// NewToaster publishes events tagged with source through fanout.
func NewToaster(fanout *Fanout, source string, log Logger) *Toaster {
	return &Toaster{
		fanout:  fanout,
		source:  source,
		timeout: defaultPublishTimeout,
		log:     ensureLogger(log),
	}
}

// Loading publishes a loading event and returns a func that publishes its end.
func (t *Toaster) Loading(title string) func() {
	t.emit(NewEvent(KindLoading, t.source, title))
	return func() { t.emit(NewEvent(KindLoadingDone, t.source, title)) }
}

func (t *Toaster) Success(title string) { t.emit(NewEvent(KindSuccess, t.source, title)) }
func (t *Toaster) Error(title string)   { t.emit(NewEvent(KindError, t.source, title)) }

// Flush waits until every published event has been handled or ctx ends.
func (t *Toaster) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush notifications: %w", ctx.Err())
	}
}

// RefreshObserver publishes refresh outcomes as events.
func (t *Toaster) RefreshObserver() refresh.Observer {
	return refreshEvents{t: t}
}

func (t *Toaster) emit(evt Event) {
	if t == nil || t.fanout.Size() == 0 {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		if _, err := t.fanout.Publish(ctx, evt); err != nil {
			t.log.WarnObj("notification publish failed", "notification_error", map[string]any{
				"kind":  evt.Kind,
				"error": err.Error(),
			})
		}
	}()
}

type refreshEvents struct {
	t *Toaster
}

func (r refreshEvents) RefreshStarted()           {}
func (r refreshEvents) RefreshAttempt(int, error) {}
func (r refreshEvents) RequestQueued(int)         {}
func (r refreshEvents) QueueDrained(int)          {}
func (r refreshEvents) Replayed(bool)             {}

func (r refreshEvents) RefreshSettled(status refresh.Status, _ float64) {
	evt := NewEvent(KindRefresh, r.t.source, "")
	evt.Status = status.String()
	r.t.emit(evt)
}
