package request

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/samvad-hq/samvad-request/pkg/httpclient"
	"github.com/samvad-hq/samvad-request/pkg/refresh"
)

// Config wires a Client. Transport is required; every other field is optional.
type Config struct {
	Transport      httpclient.Transport
	Defaults       Options
	HeaderInjector HeaderInjector
	Refresher      Refresher
	Toaster        Toaster
	Logger         Logger
	// Refresh tunes the coordinator shared by every request of this client.
	Refresh []refresh.Option
}

// Client is the request façade. One Client owns one refresh coordinator, so
// concurrent 401s across all of its requests trigger at most one refresh.
type Client struct {
	defaults Options
	pipeline *pipeline
	norm     *normalizer
	coord    *refresh.Coordinator[httpclient.Response]
	toaster  Toaster
	log      Logger
}

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	log := ensureLogger(cfg.Logger)
	toaster := cfg.Toaster
	if toaster == nil {
		toaster = noopToaster{}
	}

	refreshOpts := append([]refresh.Option{refresh.WithLogger(log)}, cfg.Refresh...)
	coord := refresh.New[httpclient.Response](refreshOpts...)

	c := &Client{
		defaults: cfg.Defaults.withDefaults(),
		coord:    coord,
		toaster:  toaster,
		log:      log,
	}
	c.pipeline = &pipeline{
		transport: cfg.Transport,
		injector:  cfg.HeaderInjector,
		coord:     coord,
		log:       log,
	}
	c.norm = &normalizer{
		client:    c,
		pipeline:  c.pipeline,
		coord:     coord,
		refresher: cfg.Refresher,
		toaster:   toaster,
		log:       log,
	}
	if cfg.Refresher == nil && c.defaults.EnableRefreshToken {
		log.WarnObj("refresh enabled without a refresher; 401s will be returned as-is", "request_config", nil)
	}
	return c, nil
}

// Defaults returns a copy of the client-wide options.
func (c *Client) Defaults() Options { return c.defaults.apply(nil) }

// RefreshState reports the coordinator state.
func (c *Client) RefreshState() refresh.State { return c.coord.State() }

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, url string, params Params, opts ...Option) (any, error) {
	return c.Request(ctx, http.MethodGet, url, params, nil, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, params Params, opts ...Option) (any, error) {
	return c.Request(ctx, http.MethodDelete, url, params, nil, opts...)
}

// Post issues a POST request with body.
func (c *Client) Post(ctx context.Context, url string, params Params, body any, opts ...Option) (any, error) {
	return c.Request(ctx, http.MethodPost, url, params, body, opts...)
}

// Put issues a PUT request with body.
func (c *Client) Put(ctx context.Context, url string, params Params, body any, opts ...Option) (any, error) {
	return c.Request(ctx, http.MethodPut, url, params, body, opts...)
}

// Upload posts file as multipart form data.
func (c *Client) Upload(ctx context.Context, url string, params Params, file UploadFile, opts ...Option) (any, error) {
	if file.Open == nil {
		return nil, fmt.Errorf("upload %q: missing content source", file.Name)
	}
	if file.Field == "" {
		file.Field = "file"
	}
	d := NewDescriptor(http.MethodPost, url, params, nil, c.defaults.apply(opts))
	d.Upload = &file
	return c.Do(ctx, d)
}

// Request issues a request with an arbitrary method.
func (c *Client) Request(ctx context.Context, method, url string, params Params, body any, opts ...Option) (any, error) {
	return c.Do(ctx, NewDescriptor(method, url, params, body, c.defaults.apply(opts)))
}

// Do runs d through the pipeline, the refresh coordinator and the normalizer.
func (c *Client) Do(ctx context.Context, d *Descriptor) (any, error) {
	if d == nil {
		return nil, fmt.Errorf("request descriptor must not be nil")
	}
	d = d.Clone()
	d.Options = d.Options.withDefaults()

	closeLoading := c.openLoading(d)
	defer closeLoading()

	resp, err := c.pipeline.dispatch(ctx, d)
	if c.norm.shouldIntercept(ctx, d, err) {
		resp, err = c.norm.onUnauthorized(ctx, d)
	}
	return c.norm.normalize(d, resp, err, closeLoading)
}

func (c *Client) openLoading(d *Descriptor) func() {
	title := d.Options.loadingTitle()
	if title == "" || d.Flags.IsReplay {
		return func() {}
	}
	closeFn := c.toaster.Loading(title)
	var once sync.Once
	return func() {
		once.Do(func() {
			if closeFn != nil {
				closeFn()
			}
		})
	}
}

// As converts a façade result into T. Values already of type T are returned
// directly; anything else is round-tripped through JSON.
func As[T any](v any, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("encode result: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode result into %T: %w", out, err)
	}
	return out, nil
}
