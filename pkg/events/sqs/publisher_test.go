package sqs

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/nimburion/injurystore/pkg/events"
	"github.com/nimburion/injurystore/pkg/observability/logger"
)

type fakeClient struct {
	sent    []*awssqs.SendMessageInput
	err     error
	attrErr error
}

func (f *fakeClient) SendMessage(_ context.Context, in *awssqs.SendMessageInput, _ ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, in)
	return &awssqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeClient) GetQueueAttributes(context.Context, *awssqs.GetQueueAttributesInput, ...func(*awssqs.Options)) (*awssqs.GetQueueAttributesOutput, error) {
	return &awssqs.GetQueueAttributesOutput{}, f.attrErr
}

const queueURL = "https://sqs.eu-west-1.amazonaws.com/123456789012/injury-changes"

func newTestPublisher(c *fakeClient) *Publisher {
	return newPublisher(c, Config{QueueURL: queueURL, OperationTimeout: time.Second}, logger.Nop())
}

func TestNewPublisher_Validation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewPublisher(ctx, Config{QueueURL: queueURL}, logger.Nop()); err == nil {
		t.Error("expected error without region")
	}
	if _, err := NewPublisher(ctx, Config{Region: "eu-west-1"}, logger.Nop()); err == nil {
		t.Error("expected error without queue URL")
	}
}

func TestPublish_JSONBody(t *testing.T) {
	c := &fakeClient{}
	p := newTestPublisher(c)
	err := p.Publish(context.Background(), "injury.changes", &events.Message{
		ID:          "evt-1",
		ContentType: events.ContentTypeJSON,
		Value:       []byte(`{"type":"injury.added"}`),
		Headers:     map[string]string{"event_type": events.TypeAdded, "request_id": ""},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	in := c.sent[0]
	if aws.ToString(in.QueueUrl) != queueURL || aws.ToString(in.MessageBody) != `{"type":"injury.added"}` {
		t.Fatalf("unexpected input %+v", in)
	}
	if aws.ToString(in.MessageAttributes["event_type"].StringValue) != events.TypeAdded {
		t.Fatalf("missing event_type attribute: %v", in.MessageAttributes)
	}
	if aws.ToString(in.MessageAttributes["topic"].StringValue) != "injury.changes" {
		t.Fatalf("missing topic attribute: %v", in.MessageAttributes)
	}
	if _, ok := in.MessageAttributes["request_id"]; ok {
		t.Fatal("empty attributes must be dropped")
	}
	if _, ok := in.MessageAttributes["content_transfer_encoding"]; ok {
		t.Fatal("json bodies are sent as is")
	}
}

func TestPublish_BinaryBodyIsBase64(t *testing.T) {
	c := &fakeClient{}
	p := newTestPublisher(c)
	payload := []byte{0x0a, 0x00, 0xff}
	if err := p.Publish(context.Background(), "", &events.Message{ID: "e", ContentType: events.ContentTypeProtobuf, Value: payload}); err != nil {
		t.Fatal(err)
	}
	in := c.sent[0]
	decoded, err := base64.StdEncoding.DecodeString(aws.ToString(in.MessageBody))
	if err != nil || string(decoded) != string(payload) {
		t.Fatalf("expected base64 body, got %q (%v)", aws.ToString(in.MessageBody), err)
	}
	if aws.ToString(in.MessageAttributes["content_transfer_encoding"].StringValue) != "base64" {
		t.Fatal("expected content_transfer_encoding attribute")
	}
}

func TestPublishErrorsAndClose(t *testing.T) {
	cause := errors.New("throttled")
	p := newTestPublisher(&fakeClient{err: cause, attrErr: errors.New("no such queue")})
	if err := p.Publish(context.Background(), "t", &events.Message{ContentType: events.ContentTypeJSON}); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check error")
	}
	_ = p.Close()
	if err := p.Publish(context.Background(), "t", &events.Message{}); !errors.Is(err, events.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
