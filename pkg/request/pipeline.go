package request

import (
	"context"
	"fmt"

	"github.com/samvad-hq/samvad-request/pkg/httpclient"
	"github.com/samvad-hq/samvad-request/pkg/refresh"
)

// pipeline turns descriptors into transport calls. Requests that carry
// credentials are parked behind an in-flight refresh so they go out with the
// renewed header.
type pipeline struct {
	transport httpclient.Transport
	injector  HeaderInjector
	coord     *refresh.Coordinator[httpclient.Response]
	log       Logger
}

// prepare returns a clone of d with auth headers merged and request hooks applied.
func (p *pipeline) prepare(ctx context.Context, d *Descriptor) (*Descriptor, error) {
	out := d.Clone()
	if out.Flags.NeedsAuthHeader && p.injector != nil {
		fragment, err := p.injector.InjectAuthHeader(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("inject auth header for %s: %w", describe(d), err)
		}
		if len(fragment) > 0 && out.Headers == nil {
			out.Headers = make(map[string]string, len(fragment))
		}
		for k, v := range fragment {
			out.Headers[k] = v
		}
	}
	return out.Options.Interceptor.onRequest(ctx, out)
}

// dispatch sends d. Gated requests wait for a running refresh and are then
// prepared again.
func (p *pipeline) dispatch(ctx context.Context, d *Descriptor) (httpclient.Response, error) {
	send := func(ctx context.Context) (httpclient.Response, error) {
		return p.send(ctx, d)
	}
	if p.gated(ctx, d) {
		resp, held, err := p.coord.Hold(ctx, send)
		if held {
			return resp, err
		}
	}
	return send(ctx)
}

// gated reports whether d must wait for an in-flight refresh. Requests sent
// without the auth header are never held.
func (p *pipeline) gated(ctx context.Context, d *Descriptor) bool {
	return d.Flags.NeedsAuthHeader && d.Flags.RefreshEnabled && !d.Flags.IsReplay && !InRefresh(ctx)
}

func (p *pipeline) send(ctx context.Context, d *Descriptor) (httpclient.Response, error) {
	prepared, err := p.prepare(ctx, d)
	if err != nil {
		return nil, err
	}
	p.log.DebugObj("dispatching request", "request", map[string]any{
		"method": prepared.Method,
		"url":    prepared.URL,
		"replay": prepared.Flags.IsReplay,
	})
	resp, err := p.transport.Dispatch(ctx, prepared.transportRequest())
	return prepared.Options.Interceptor.onResponse(ctx, prepared, resp, err)
}
