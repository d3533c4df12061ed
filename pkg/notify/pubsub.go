package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// pubsubSink publishes events to a Pub/Sub topic. Events from one source
// share an ordering key, so subscribers see them in publish order.
type pubsubSink struct {
	id     string
	client *pubsub.Client
	topic  *pubsub.Topic
	log    Logger
}

func newPubSubSink(ctx context.Context, cfg SinkConfig, log Logger) (Publisher, error) {
	if cfg.PubSub == nil {
		return nil, fmt.Errorf("publisher %q: pubsub block missing", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var opts []option.ClientOption
	if cfg.PubSub.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.PubSub.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSub.Topic)
	topic.EnableMessageOrdering = true

	return &pubsubSink{id: cfg.ID, client: client, topic: topic, log: ensureLogger(log)}, nil
}

func (p *pubsubSink) ID() string   { return p.id }
func (p *pubsubSink) Type() string { return TypePubSub }

// Publish blocks until the server acknowledges the message.
func (p *pubsubSink) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	id, err := p.topic.Publish(ctx, &pubsub.Message{
		Data:        body,
		Attributes:  evt.Attributes(),
		OrderingKey: evt.Source,
	}).Get(ctx)
	if err != nil {
		// A failed ordered publish pauses its key until resumed.
		if evt.Source != "" {
			p.topic.ResumePublish(evt.Source)
		}
		p.log.ErrorObj("notification not published", "notify_pubsub_error", map[string]any{
			"sink":  p.id,
			"kind":  evt.Kind,
			"error": err.Error(),
		})
		return fmt.Errorf("pubsub publish: %w", err)
	}
	p.log.DebugObj("notification published", "notify_pubsub", map[string]any{
		"sink":       p.id,
		"kind":       evt.Kind,
		"message_id": id,
	})
	return nil
}

// Close flushes buffered messages and releases the client.
func (p *pubsubSink) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
