// Package mq publishes card lifecycle events (card generated, card mailed)
// to a message broker so downstream HR systems can react to issuance. The
// broker backend is selected by configuration; publishing is best-effort
// and never blocks or fails the operation that produced the event.
package mq

import (
	"context"
	"encoding/json"
	"time"
)

// Event types emitted by the card service.
const (
	EventCardGenerated = "card.generated"
	EventCardMailed    = "card.mailed"
)

// Event is a card lifecycle notification.
type Event struct {
	Type       string    `json:"type"`
	EmployeeID int       `json:"employee_id"`
	Email      string    `json:"email,omitempty"`
	ActorID    int       `json:"actor_id,omitempty"`
	At         time.Time `json:"at"`
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Publisher emits card events on a fixed channel.
type Publisher struct {
	backend Backend
	channel string
}

// NewPublisher constructs a Publisher for the provided backend and channel.
func NewPublisher(backend Backend, channel string) *Publisher {
	return &Publisher{backend: backend, channel: channel}
}

// PublishEvent JSON-encodes the event and sends it to the configured channel.
func (p *Publisher) PublishEvent(ctx context.Context, event Event) error {
	if p == nil || p.backend == nil {
		return nil
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.backend.Publish(ctx, p.channel, data, map[string]string{"type": event.Type})
	return err
}

// Subscribe consumes card events from the configured channel.
func (p *Publisher) Subscribe(ctx context.Context, handler Handler) error {
	return p.backend.Subscribe(ctx, p.channel, handler)
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	if p == nil || p.backend == nil {
		return nil
	}
	return p.backend.Close()
}
