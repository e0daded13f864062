// Package events publishes injury collection changes to a message broker.
package events

import (
	"context"
	"errors"
	"time"
)

// Message is one broker message.
type Message struct {
	ID          string
	Key         string
	Value       []byte
	ContentType string
	Headers     map[string]string
	Timestamp   time.Time
}

// Publisher sends messages to a broker topic, exchange or queue.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *Message) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// Event types, one per injury store mutation.
const (
	TypeSaved   = "injuries.saved"
	TypeAdded   = "injury.added"
	TypeUpdated = "injury.updated"
	TypeDeleted = "injury.deleted"
	TypeCleared = "injuries.cleared"
)

// Event is the payload published for every successful mutation.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Service    string    `json:"service,omitempty"`
	Key        string    `json:"key"`
	InjuryID   any       `json:"injury_id,omitempty"`
	Count      int       `json:"count"`
	Removed    int       `json:"removed,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ErrClosed is returned by publishers after Close.
var ErrClosed = errors.New("events: publisher closed")
