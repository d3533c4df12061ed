package request

import (
	"context"
	"net/http"
	"sync"

	"github.com/samvad-hq/samvad-request/pkg/httpclient"
)

type fakeResponse struct {
	status int
	body   []byte
	header http.Header
}

func (r *fakeResponse) Body() []byte        { return r.body }
func (r *fakeResponse) StatusCode() int     { return r.status }
func (r *fakeResponse) Header() http.Header { return r.header }

// fakeTransport answers requests with handler and records what it saw.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []*httpclient.Request
	handler func(req *httpclient.Request) (int, string)
}

func (f *fakeTransport) Dispatch(_ context.Context, req *httpclient.Request) (httpclient.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	handler := f.handler
	f.mu.Unlock()

	status, body := handler(req)
	resp := &fakeResponse{status: status, body: []byte(body), header: http.Header{"Content-Type": {"application/json"}}}
	if status < 200 || status >= 300 {
		return resp, &httpclient.StatusError{Response: resp}
	}
	return resp, nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) authHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Header("Authorization"))
	}
	return out
}

// recordingToaster captures every notification.
type recordingToaster struct {
	mu     sync.Mutex
	events []string
	opened int
	closed int
}

func (r *recordingToaster) Loading(title string) func() {
	r.mu.Lock()
	r.opened++
	r.events = append(r.events, "loading:"+title)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.closed++
		r.events = append(r.events, "close")
		r.mu.Unlock()
	}
}

func (r *recordingToaster) Success(title string) {
	r.mu.Lock()
	r.events = append(r.events, "success:"+title)
	r.mu.Unlock()
}

func (r *recordingToaster) Error(title string) {
	r.mu.Lock()
	r.events = append(r.events, "error:"+title)
	r.mu.Unlock()
}

func (r *recordingToaster) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// tokenBox is a minimal credential holder shared by injector and refresher.
type tokenBox struct {
	mu    sync.Mutex
	token string
}

func (b *tokenBox) get() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

func (b *tokenBox) set(tok string) {
	b.mu.Lock()
	b.token = tok
	b.mu.Unlock()
}

func (b *tokenBox) injector() HeaderInjector {
	return HeaderInjectorFunc(func(context.Context, *Descriptor) (map[string]string, error) {
		return map[string]string{"Authorization": "Bearer " + b.get()}, nil
	})
}
