package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsSubjectLimit is the longest Subject SNS accepts.
const snsSubjectLimit = 100

// snsPublisherAPI is the part of *sns.Client the sink needs.
type snsPublisherAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// snsSink publishes events to a topic. The event title becomes the
// message subject for email subscribers.
type snsSink struct {
	id       string
	topicARN string
	client   snsPublisherAPI
	log      Logger
}

func newSNSSink(ctx context.Context, cfg SinkConfig, log Logger) (Publisher, error) {
	if cfg.SNS == nil {
		return nil, fmt.Errorf("publisher %q: sns block missing", cfg.ID)
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.SNS.AWSConfig)
	if err != nil {
		return nil, err
	}
	endpoint := cfg.SNS.Endpoint
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &snsSink{id: cfg.ID, topicARN: cfg.SNS.TopicARN, client: client, log: ensureLogger(log)}, nil
}

func (s *snsSink) ID() string   { return s.id }
func (s *snsSink) Type() string { return TypeSNS }

func (s *snsSink) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Message:           aws.String(string(body)),
		MessageAttributes: snsAttributes(evt),
	}
	if subject := snsSubject(evt.Title); subject != "" {
		input.Subject = aws.String(subject)
	}

	out, err := s.client.Publish(ctx, input)
	if err != nil {
		s.log.ErrorObj("notification not published", "notify_sns_error", map[string]any{
			"sink":  s.id,
			"kind":  evt.Kind,
			"error": err.Error(),
		})
		return fmt.Errorf("sns publish: %w", err)
	}
	s.log.DebugObj("notification published", "notify_sns", map[string]any{
		"sink":       s.id,
		"kind":       evt.Kind,
		"message_id": aws.ToString(out.MessageId),
	})
	return nil
}

func snsAttributes(evt Event) map[string]snstypes.MessageAttributeValue {
	attrs := evt.Attributes()
	out := make(map[string]snstypes.MessageAttributeValue, len(attrs))
	for name, v := range attrs {
		out[name] = snstypes.MessageAttributeValue{DataType: aws.String(awsStringType), StringValue: aws.String(v)}
	}
	return out
}

// snsSubject flattens title to a single line within the subject limit.
func snsSubject(title string) string {
	subject := strings.Join(strings.Fields(title), " ")
	if r := []rune(subject); len(r) > snsSubjectLimit {
		subject = string(r[:snsSubjectLimit])
	}
	return subject
}
