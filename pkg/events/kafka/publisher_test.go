package kafka

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/nimburion/injurystore/pkg/events"
	"github.com/nimburion/injurystore/pkg/observability/logger"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

func TestNewPublisher_RequiresBrokers(t *testing.T) {
	if _, err := NewPublisher(Config{}, logger.Nop()); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestPublish_MapsMessage(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, Config{Brokers: []string{"k:9092"}}, logger.Nop())
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	err := p.Publish(context.Background(), "injury.changes", &events.Message{
		ID:        "evt-1",
		Key:       "injuries",
		Value:     []byte(`{"type":"injury.added"}`),
		Headers:   map[string]string{"event_type": events.TypeAdded},
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if m.Topic != "injury.changes" || string(m.Key) != "injuries" || !m.Time.Equal(ts) {
		t.Fatalf("unexpected message %+v", m)
	}
	headers := map[string]string{}
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["message_id"] != "evt-1" || headers["event_type"] != events.TypeAdded {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestPublish_WrapsWriterError(t *testing.T) {
	cause := errors.New("leader not available")
	p := newPublisher(&fakeWriter{err: cause}, Config{Brokers: []string{"k:9092"}}, logger.Nop())
	err := p.Publish(context.Background(), "t", &events.Message{ID: "1"})
	if !errors.Is(err, cause) || !strings.Contains(err.Error(), "kafka publish to t") {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, Config{Brokers: []string{"k:9092"}}, logger.Nop())
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if w.closed != 1 {
		t.Fatalf("expected writer closed once, got %d", w.closed)
	}
	if err := p.Publish(context.Background(), "t", &events.Message{}); !errors.Is(err, events.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := p.HealthCheck(context.Background()); !errors.Is(err, events.ErrClosed) {
		t.Fatalf("expected ErrClosed from health check, got %v", err)
	}
}

func TestHealthCheck_DialFailure(t *testing.T) {
	p := newPublisher(&fakeWriter{}, Config{Brokers: []string{"k:9092"}}, logger.Nop())
	p.dial = func(context.Context, string, string) (*kafkago.Conn, error) {
		return nil, errors.New("connection refused")
	}
	if err := p.HealthCheck(context.Background()); err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected dial error, got %v", err)
	}
}
