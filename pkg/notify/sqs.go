package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsSender is the part of *sqs.Client the sink needs.
type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// sqsSink enqueues events as JSON messages with their attributes attached.
type sqsSink struct {
	id       string
	queueURL string
	client   sqsSender
	log      Logger
}

func newSQSSink(ctx context.Context, cfg SinkConfig, log Logger) (Publisher, error) {
	if cfg.SQS == nil {
		return nil, fmt.Errorf("publisher %q: sqs block missing", cfg.ID)
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.SQS.AWSConfig)
	if err != nil {
		return nil, err
	}
	endpoint := cfg.SQS.Endpoint
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &sqsSink{id: cfg.ID, queueURL: cfg.SQS.QueueURL, client: client, log: ensureLogger(log)}, nil
}

func (s *sqsSink) ID() string   { return s.id }
func (s *sqsSink) Type() string { return TypeSQS }

func (s *sqsSink) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(s.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: sqsAttributes(evt),
	})
	if err != nil {
		s.log.ErrorObj("notification not queued", "notify_sqs_error", map[string]any{
			"sink":  s.id,
			"kind":  evt.Kind,
			"error": err.Error(),
		})
		return fmt.Errorf("sqs send: %w", err)
	}
	s.log.DebugObj("notification queued", "notify_sqs", map[string]any{
		"sink":       s.id,
		"kind":       evt.Kind,
		"message_id": aws.ToString(out.MessageId),
	})
	return nil
}

func sqsAttributes(evt Event) map[string]sqstypes.MessageAttributeValue {
	attrs := evt.Attributes()
	out := make(map[string]sqstypes.MessageAttributeValue, len(attrs))
	for name, v := range attrs {
		out[name] = sqstypes.MessageAttributeValue{DataType: aws.String(awsStringType), StringValue: aws.String(v)}
	}
	return out
}
