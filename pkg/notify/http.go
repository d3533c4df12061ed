package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/samvad-request/pkg/httpclient"
)

// webhookHeaderPrefix prefixes the event attributes copied into request
// headers, e.g. X-Samvad-Kind.
const webhookHeaderPrefix = "X-Samvad-"

// webhookSink sends each event as a JSON body to a fixed URL.
type webhookSink struct {
	id       string
	method   string
	endpoint string
	headers  map[string]string
	client   *resty.Client
	log      Logger
}

func newWebhookSink(_ context.Context, cfg SinkConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q: http block missing", cfg.ID)
	}
	w := cfg.HTTP.normalized()
	return &webhookSink{
		id:       cfg.ID,
		method:   w.Method,
		endpoint: w.URL,
		headers:  w.Headers,
		client:   httpclient.NewRestyHTTPClient(time.Duration(w.TimeoutSeconds) * time.Second),
		log:      ensureLogger(log),
	}, nil
}

func (w *webhookSink) ID() string   { return w.id }
func (w *webhookSink) Type() string { return TypeHTTP }

func (w *webhookSink) Publish(ctx context.Context, evt Event) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeaders(w.headers).
		SetHeaders(webhookHeaders(evt)).
		SetHeader("Content-Type", "application/json").
		SetBody(evt).
		Execute(w.method, w.endpoint)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	if resp.IsError() {
		w.log.WarnObj("webhook rejected notification", "notify_webhook_rejected", map[string]any{
			"sink":   w.id,
			"kind":   evt.Kind,
			"status": resp.StatusCode(),
		})
		return fmt.Errorf("webhook answered %d: %s", resp.StatusCode(), excerpt(resp.Body(), 512))
	}
	return nil
}

func webhookHeaders(evt Event) map[string]string {
	attrs := evt.Attributes()
	headers := make(map[string]string, len(attrs))
	for name, v := range attrs {
		headers[http.CanonicalHeaderKey(webhookHeaderPrefix+name)] = v
	}
	return headers
}

func excerpt(body []byte, limit int) string {
	if len(body) > limit {
		body = body[:limit]
	}
	return strings.TrimSpace(string(body))
}
