// Package mq publishes domain events to a RabbitMQ topic exchange.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys.
const (
	KeyListingCreated       = "listing.created"
	KeyListingStatusChanged = "listing.status_changed"
	KeyListingPriceChanged  = "listing.price_changed"
	KeyListingDeleted       = "listing.deleted"
	KeyApplicationCreated   = "application.created"
	KeyApplicationAccepted  = "application.accepted"
	KeyApplicationRejected  = "application.rejected"
	KeyApplicationCancelled = "application.cancelled"
	KeyMessageSent          = "message.sent"
	KeyReviewCreated        = "review.created"
	KeyEventChanged         = "event.changed"
)

// Event is the envelope of every published message.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

func NewEvent(key string, data any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	const op = "mq.NewPublisher"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s: dial rabbitmq: %w", op, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: open channel: %w", op, err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: declare exchange: %w", op, err)
	}

	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// PublishJSON wraps v in an Event and publishes it under key.
func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	const op = "mq.Publisher.PublishJSON"

	ev := NewEvent(key, v)
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID.String(),
		Timestamp:    ev.OccurredAt,
		Type:         key,
		Body:         b,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop drops every event. It stands in when no broker is configured.
type Nop struct{}

func (Nop) PublishJSON(context.Context, string, any) error { return nil }

func (Nop) Close() error { return nil }
