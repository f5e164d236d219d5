package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/ledger"
	"github.com/kursadbilgin/outreach-engine/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	_ Publisher               = (*RabbitMQPublisher)(nil)
	_ ledger.AttemptPublisher = (*RabbitMQPublisher)(nil)
)

type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, event AttemptEvent) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid attempt event: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt event: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		MessageId:     event.EventID,
		CorrelationId: event.RunID,
		Body:          payload,
	}

	routingKey := RoutingKey(event.Outcome)
	if err := ch.PublishWithContext(ctx, EventsExchange, routingKey, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish attempt event %q: %w", routingKey, err)
	}

	return nil
}

// PublishAttempt wraps a ledger record into an event tagged with the run ID
// carried by ctx.
func (p *RabbitMQPublisher) PublishAttempt(ctx context.Context, record domain.MessageAttemptRecord) error {
	runID, _ := observability.RunIDFromContext(ctx)
	event := NewAttemptEvent(uuid.NewString(), runID, record)
	return p.Publish(ctx, event)
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
