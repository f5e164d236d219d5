package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var _ Consumer = (*RabbitMQConsumer)(nil)

// RabbitMQConsumer delivers attempt events to a handler and settles each
// delivery according to the handler result.
type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	backoff := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			if _, err := c.settle(ctx, d, d.Body, d.Redelivered, handler); err != nil {
				return err
			}
		}
	}
}

// Disposition is what the consumer did with one attempt event.
type Disposition string

const (
	DispositionAcked        Disposition = "acked"
	DispositionRequeued     Disposition = "requeued"
	DispositionDeadLettered Disposition = "dead-lettered"
)

// acknowledger is the settle surface of an amqp.Delivery.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	Reject(requeue bool) error
}

// DecodeAttemptEvent parses and validates an attempt event payload.
func DecodeAttemptEvent(body []byte) (AttemptEvent, error) {
	var event AttemptEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return AttemptEvent{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := event.Validate(); err != nil {
		return event, err
	}
	return event, nil
}

// settle hands one attempt event to the handler. Malformed events go to the
// dead-letter queue. A handler failure requeues the event once; a redelivered
// event that fails again is dead-lettered so one bad profile cannot wedge
// the queue.
func (c *RabbitMQConsumer) settle(
	ctx context.Context,
	ack acknowledger,
	body []byte,
	redelivered bool,
	handler MessageHandler,
) (Disposition, error) {
	event, err := DecodeAttemptEvent(body)
	if err != nil {
		c.logger.Warn("attempt event dead-lettered: malformed",
			append(attemptFields(event), zap.Error(err))...,
		)
		if rejectErr := ack.Reject(false); rejectErr != nil {
			return "", fmt.Errorf("failed to reject malformed attempt event: %w", rejectErr)
		}
		return DispositionDeadLettered, nil
	}

	if err := handler(ctx, event); err != nil {
		fields := append(attemptFields(event), zap.Bool("redelivered", redelivered), zap.Error(err))
		if redelivered {
			c.logger.Error("attempt event dead-lettered: handler failed twice", fields...)
			if rejectErr := ack.Reject(false); rejectErr != nil {
				return "", fmt.Errorf("failed to reject attempt event %s: %w", event.EventID, rejectErr)
			}
			return DispositionDeadLettered, nil
		}

		c.logger.Warn("attempt event requeued: handler failed", fields...)
		if nackErr := ack.Nack(false, true); nackErr != nil {
			return "", fmt.Errorf("failed to requeue attempt event %s: %w", event.EventID, nackErr)
		}
		return DispositionRequeued, nil
	}

	if err := ack.Ack(false); err != nil {
		return "", fmt.Errorf("failed to ack attempt event %s: %w", event.EventID, err)
	}
	c.logger.Debug("attempt event handled", attemptFields(event)...)
	return DispositionAcked, nil
}

func attemptFields(event AttemptEvent) []zap.Field {
	fields := []zap.Field{
		zap.String("eventId", event.EventID),
		zap.String("profile", event.Profile),
		zap.String("outcome", event.Outcome),
	}
	if event.RunID != "" {
		fields = append(fields, zap.String("runId", event.RunID))
	}
	return fields
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
