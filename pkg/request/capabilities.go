package request

import "context"

// HeaderInjector supplies auth headers for requests that need them.
type HeaderInjector interface {
	InjectAuthHeader(ctx context.Context, d *Descriptor) (map[string]string, error)
}

// HeaderInjectorFunc adapts a function to HeaderInjector.
type HeaderInjectorFunc func(ctx context.Context, d *Descriptor) (map[string]string, error)

func (f HeaderInjectorFunc) InjectAuthHeader(ctx context.Context, d *Descriptor) (map[string]string, error) {
	return f(ctx, d)
}

// RefreshContext is handed to a Refresher. Requests sent through Client while
// refreshing bypass the queue and are never intercepted.
type RefreshContext struct {
	Client  *Client
	Attempt int
}

// Options returns per-call options for requests issued by the refresher.
func (RefreshContext) Options() []Option {
	return []Option{WithRefreshToken(false), WithoutLoading(), WithMessage(false)}
}

// Refresher renews credentials. A nil error means the refresh succeeded.
type Refresher interface {
	Refresh(ctx context.Context, rc RefreshContext) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, rc RefreshContext) error

func (f RefresherFunc) Refresh(ctx context.Context, rc RefreshContext) error { return f(ctx, rc) }

// Toaster displays loading indicators and notifications.
type Toaster interface {
	Loading(title string) (close func())
	Success(title string)
	Error(title string)
}

type noopToaster struct{}

func (noopToaster) Loading(string) func() { return func() {} }
func (noopToaster) Success(string)        {}
func (noopToaster) Error(string)          {}

type refreshKey struct{}

func withinRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, refreshKey{}, true)
}

// InRefresh reports whether ctx belongs to a running credential refresh.
func InRefresh(ctx context.Context) bool {
	v, _ := ctx.Value(refreshKey{}).(bool)
	return v
}
