package request

import (
	"context"
	"errors"

	"github.com/samvad-hq/samvad-request/pkg/httpclient"
	"github.com/samvad-hq/samvad-request/pkg/refresh"
)

// normalizer turns transport results into caller facing values and drives
// refresh-on-401.
type normalizer struct {
	client    *Client
	pipeline  *pipeline
	coord     *refresh.Coordinator[httpclient.Response]
	refresher Refresher
	toaster   Toaster
	log       Logger
}

// shouldIntercept reports whether err is a 401 that may trigger a refresh.
// Replays and requests issued by the refresher itself are never intercepted.
func (n *normalizer) shouldIntercept(ctx context.Context, d *Descriptor, err error) bool {
	if err == nil || n.refresher == nil {
		return false
	}
	if !d.Flags.RefreshEnabled || d.Flags.IsReplay || InRefresh(ctx) {
		return false
	}
	return errors.Is(err, httpclient.ErrUnauthorized)
}

// onUnauthorized hands d to the coordinator and returns the replay's outcome.
func (n *normalizer) onUnauthorized(ctx context.Context, d *Descriptor) (httpclient.Response, error) {
	refreshFn := func(ctx context.Context, attempt int) error {
		return n.refresher.Refresh(withinRefresh(ctx), RefreshContext{Client: n.client, Attempt: attempt})
	}
	replay := func(ctx context.Context) (httpclient.Response, error) {
		return n.pipeline.dispatch(ctx, d.Replay())
	}
	return n.coord.Intercept(ctx, refreshFn, d.Flags.RefreshRetryCount, replay)
}

// normalize converts a final response or error. closeLoading is called before
// any notification is shown.
func (n *normalizer) normalize(d *Descriptor, resp httpclient.Response, err error, closeLoading func()) (any, error) {
	if err != nil {
		return n.fail(d, resp, err, closeLoading)
	}
	opts := d.Options
	if opts.GetResponse {
		closeLoading()
		return resp, nil
	}

	reply := decodeReply(resp, opts.ResponseType)
	apiMessage := opts.GetAPIMessage(reply)
	success, failure := opts.Message.resolve(apiMessage)
	closeLoading()

	switch {
	case !isJSON(opts.ResponseType):
		n.notifySuccess(success)
		return rawBody(resp, opts.ResponseType), nil
	case opts.GetAPIResponse:
		n.notifySuccess(success)
		return reply.Data, nil
	case opts.IsSuccess(reply):
		n.notifySuccess(success)
		return opts.GetSuccessData(reply), nil
	}

	n.notifyError(failure)
	appErr := &ApplicationError{
		Message:  firstNonEmpty(apiMessage, DefaultErrorTitle),
		Reply:    reply,
		Response: resp,
	}
	n.log.WarnObj("request rejected by api", "request_error", map[string]any{
		"request": describe(d),
		"message": appErr.Message,
	})
	return nil, appErr
}

func (n *normalizer) fail(d *Descriptor, resp httpclient.Response, err error, closeLoading func()) (any, error) {
	closeLoading()
	n.log.WarnObj("request failed", "request_error", map[string]any{
		"request": describe(d),
		"status":  httpclient.StatusOf(err),
		"error":   err.Error(),
	})
	if d.Options.GetResponse {
		return nil, err
	}

	var message string
	if resp != nil {
		message = d.Options.GetAPIMessage(decodeReply(resp, ResponseTypeJSON))
	}
	if message == "" {
		var te *httpclient.TransportError
		if errors.As(err, &te) {
			message = te.Message
		}
	}
	_, failure := d.Options.Message.resolve(message)
	n.notifyError(failure)
	return nil, err
}

func (n *normalizer) notifySuccess(title string) {
	if title != "" {
		n.toaster.Success(title)
	}
}

func (n *normalizer) notifyError(title string) {
	if title != "" {
		n.toaster.Error(title)
	}
}
