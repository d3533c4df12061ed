package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options configures a RestyClient transport.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	Platform Platform
	Headers  map[string]string
}

// RestyClient adapts resty.Client to the httpclient.Transport interface.
type RestyClient struct {
	client   *resty.Client
	platform Platform
	timeout  time.Duration
}

// NewRestyClient creates a new RestyClient with the specified timeout for the web platform.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return NewRestyTransport(Options{Timeout: timeout})
}

// NewRestyTransport creates a RestyClient from transport options.
func NewRestyTransport(opts Options) *RestyClient {
	c := newRestyBaseClient(opts.Timeout)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		c.SetBaseURL(base)
	}
	if len(opts.Headers) > 0 {
		c.SetHeaders(opts.Headers)
	}
	platform := opts.Platform
	if platform == nil {
		platform = webPlatform{}
	}
	return &RestyClient{client: c, platform: platform, timeout: opts.Timeout}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	return c
}

// Platform returns the platform variant the transport was built with.
func (r *RestyClient) Platform() Platform { return r.platform }

// Dispatch sends req and returns the response. Non-2xx responses are returned
// together with a *StatusError; failures without a response are *TransportError.
func (r *RestyClient) Dispatch(ctx context.Context, req *Request) (Response, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("resty transport is not initialized")
	}
	if req == nil {
		return nil, fmt.Errorf("request must not be nil")
	}

	prepared, err := r.platform.Prepare(req)
	if err != nil {
		return nil, fmt.Errorf("prepare %s request: %w", r.platform.Name(), err)
	}

	rr := r.client.R().SetContext(ctx)
	if len(prepared.Headers) > 0 {
		rr.SetHeaders(prepared.Headers)
	}
	if len(prepared.Query) > 0 {
		rr.SetQueryParams(prepared.Query)
	}
	if f := prepared.File; f != nil {
		if f.Open == nil {
			return nil, fmt.Errorf("upload %q has no content source", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %q: %w", f.Name, err)
		}
		defer rc.Close()
		rr.SetFileReader(f.Field, f.Name, rc)
	}
	if len(prepared.Form) > 0 {
		rr.SetFormData(prepared.Form)
	}
	if prepared.Body != nil {
		rr.SetBody(prepared.Body)
	}

	method := strings.ToUpper(strings.TrimSpace(prepared.Method))
	if method == "" {
		method = http.MethodGet
	}

	resp, err := rr.Execute(method, prepared.URL)
	if err != nil {
		return nil, r.platform.TransportError(err, r.timeout)
	}

	out := &restyResponseAdapter{resp: resp}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return out, &StatusError{Response: out}
	}
	return out, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte        { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int     { return r.resp.StatusCode() }
func (r *restyResponseAdapter) Header() http.Header { return r.resp.Header() }
