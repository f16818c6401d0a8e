package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/sponsorship-partnerships/internal/queue"
)

// QueuePublisher publishes decision events to a durable RabbitMQ queue.
// Each publish dials its own connection.
type QueuePublisher struct {
	URL   string
	Queue string
}

// NewQueuePublisher returns a publisher for the given broker and queue.
func NewQueuePublisher(url, queueName string) *QueuePublisher {
	return &QueuePublisher{URL: url, Queue: queueName}
}

// PublishDecision sends ev as a persistent JSON message.  Errors are
// returned, not logged.
func (p *QueuePublisher) PublishDecision(ctx context.Context, ev queue.PartnershipDecisionEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.PartnershipID + ":" + ev.Decision + ":" + ev.OccurredAt,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}
