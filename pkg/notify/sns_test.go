package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSNSSinkPublishesWithSubject(t *testing.T) {
	client := &fakeSNSClient{}
	pub := &snsSink{id: "topic", topicARN: "arn:aws:sns:::topic", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), NewEvent(KindSuccess, "api", "saved\n  profile")); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:::topic" {
		t.Fatalf("TopicArn = %s", got)
	}
	if got := aws.ToString(client.input.Subject); got != "saved profile" {
		t.Fatalf("Subject = %q", got)
	}
	attr, ok := client.input.MessageAttributes[AttrKind]
	if !ok || aws.ToString(attr.StringValue) != KindSuccess {
		t.Fatalf("kind attribute missing or wrong: %#v", attr)
	}
	if !strings.Contains(aws.ToString(client.input.Message), `"source":"api"`) {
		t.Fatalf("Message missing source: %s", aws.ToString(client.input.Message))
	}
}

func TestSNSSinkOmitsSubjectWithoutTitle(t *testing.T) {
	client := &fakeSNSClient{}
	pub := &snsSink{id: "topic", topicARN: "arn:aws:sns:::topic", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), NewEvent(KindRefresh, "api", "")); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if client.input.Subject != nil {
		t.Fatalf("Subject should be unset, got %q", aws.ToString(client.input.Subject))
	}
}

func TestSNSSubjectIsTruncated(t *testing.T) {
	if got := snsSubject(strings.Repeat("á", 150)); len([]rune(got)) != snsSubjectLimit {
		t.Fatalf("subject has %d runes", len([]rune(got)))
	}
}

func TestSNSSinkSendError(t *testing.T) {
	pub := &snsSink{id: "topic", topicARN: "arn:aws:sns:::topic", client: &fakeSNSClient{err: errors.New("boom")}, log: noopLogger{}}
	if err := pub.Publish(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error from Publish")
	}
}
