package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nimburion/injurystore/pkg/injury"
	"github.com/nimburion/injurystore/pkg/observability/logger"
)

var publishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "injurystore_events_published_total",
		Help: "Change events handed to the broker, by event type and result.",
	},
	[]string{"type", "result"},
)

// Collectors returns the event metrics for registration in a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{publishedTotal}
}

const defaultPublishTimeout = 5 * time.Second

// NotifierConfig controls how changes become broker messages.
type NotifierConfig struct {
	Topic          string
	Format         Format
	Service        string
	PublishTimeout time.Duration
}

// Notifier turns injury.Change notifications into published events.
// Publish failures are logged and counted; they never fail the mutation.
type Notifier struct {
	pub   Publisher
	cfg   NotifierConfig
	log   logger.Logger
	now   func() time.Time
	newID func() string
}

// NewNotifier creates a Notifier publishing to pub.
func NewNotifier(pub Publisher, cfg NotifierConfig, log logger.Logger) (*Notifier, error) {
	if pub == nil {
		return nil, errors.New("events: publisher is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("events: topic is required")
	}
	if _, err := ParseFormat(string(cfg.Format)); err != nil {
		return nil, err
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{
		pub:   pub,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}, nil
}

// OnChange is an injury.ChangeHook.
func (n *Notifier) OnChange(ctx context.Context, c injury.Change) {
	ev := n.event(ctx, c)
	if err := n.Publish(ctx, ev); err != nil {
		n.log.WithContext(ctx).Warn("change event not published",
			"type", ev.Type, "event_id", ev.ID, "topic", n.cfg.Topic, "error", err)
	}
}

// Publish encodes and sends a single event.
func (n *Notifier) Publish(ctx context.Context, ev Event) error {
	data, contentType, err := Encode(ev, n.cfg.Format)
	if err != nil {
		publishedTotal.WithLabelValues(ev.Type, "error").Inc()
		return err
	}
	msg := &Message{
		ID:          ev.ID,
		Key:         ev.Key,
		Value:       data,
		ContentType: contentType,
		Headers: map[string]string{
			"event_type":   ev.Type,
			"content_type": contentType,
		},
		Timestamp: ev.OccurredAt,
	}
	if ev.RequestID != "" {
		msg.Headers["request_id"] = ev.RequestID
	}

	// detached from the caller so a finished HTTP request does not cancel delivery
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.cfg.PublishTimeout)
	defer cancel()
	if err := n.pub.Publish(pubCtx, n.cfg.Topic, msg); err != nil {
		publishedTotal.WithLabelValues(ev.Type, "error").Inc()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	publishedTotal.WithLabelValues(ev.Type, "ok").Inc()
	return nil
}

func (n *Notifier) event(ctx context.Context, c injury.Change) Event {
	return Event{
		ID:         n.newID(),
		Type:       EventType(c.Op),
		Service:    n.cfg.Service,
		Key:        c.Key,
		InjuryID:   c.ID,
		Count:      c.Count,
		Removed:    c.Removed,
		RequestID:  logger.RequestIDFromContext(ctx),
		OccurredAt: n.now().UTC(),
	}
}

// EventType maps an injury store operation name to its event type.
func EventType(op string) string {
	switch op {
	case injury.OpSave:
		return TypeSaved
	case injury.OpAdd:
		return TypeAdded
	case injury.OpUpdate:
		return TypeUpdated
	case injury.OpDelete:
		return TypeDeleted
	case injury.OpClear:
		return TypeCleared
	default:
		return "injury." + op
	}
}
