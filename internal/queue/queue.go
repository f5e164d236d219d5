package queue

import (
	"context"
)

// Publisher publishes attempt events to the broker.
type Publisher interface {
	Publish(ctx context.Context, event AttemptEvent) error
	Close() error
}

// MessageHandler handles a consumed attempt event.
type MessageHandler func(ctx context.Context, event AttemptEvent) error

// Consumer consumes attempt events from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// EventsExchange is the topic exchange attempt events are published to.
	EventsExchange = "outreach.events"
	// AttemptsQueue is the durable queue bound to every attempt event.
	AttemptsQueue = "outreach.attempts"
	// AttemptsDLQ receives rejected attempt events.
	AttemptsDLQ = "dlq.outreach.attempts"

	dlxExchangeName = "outreach.dlx"
)

// RoutingKey returns the routing key for an outcome label, e.g. attempt.success.
func RoutingKey(outcomeLabel string) string {
	if outcomeLabel == "" {
		outcomeLabel = "unknown"
	}
	return "attempt." + outcomeLabel
}
