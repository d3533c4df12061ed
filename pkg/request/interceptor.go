package request

import (
	"context"

	"github.com/samvad-hq/samvad-request/pkg/httpclient"
)

// Interceptor holds optional hooks around the transport call.
//
// Request runs after auth headers are merged and may return a modified descriptor.
// Response runs on 2xx responses. ResponseError runs on failures; returning a nil
// error turns the failure into a success carrying the returned response.
type Interceptor struct {
	Request       func(ctx context.Context, d *Descriptor) (*Descriptor, error)
	Response      func(ctx context.Context, d *Descriptor, resp httpclient.Response) (httpclient.Response, error)
	ResponseError func(ctx context.Context, d *Descriptor, resp httpclient.Response, err error) (httpclient.Response, error)
}

func (ic *Interceptor) onRequest(ctx context.Context, d *Descriptor) (*Descriptor, error) {
	if ic == nil || ic.Request == nil {
		return d, nil
	}
	out, err := ic.Request(ctx, d)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return d, nil
	}
	return out, nil
}

func (ic *Interceptor) onResponse(ctx context.Context, d *Descriptor, resp httpclient.Response, err error) (httpclient.Response, error) {
	if ic == nil {
		return resp, err
	}
	if err == nil && ic.Response != nil {
		return ic.Response(ctx, d, resp)
	}
	if err != nil && ic.ResponseError != nil {
		return ic.ResponseError(ctx, d, resp, err)
	}
	return resp, err
}
