package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends JSON payloads to one durable queue.
type Publisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewPublisher(conn *amqp.Connection, queueName string) *Publisher {
	return &Publisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *Publisher) Publish(ctx context.Context, payload any) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := declareQueue(ch, p.queueName); err != nil {
		return err
	}
	return p.publish(ctx, ch, p.queueName, payload)
}

// PublishDelayed parks payload in a retry queue whose messages expire after
// delay and are dead-lettered back onto the publisher's queue. There is one
// retry queue per delay, so every message in it shares the same TTL.
func (p *Publisher) PublishDelayed(ctx context.Context, payload any, delay time.Duration) error {
	if delay <= 0 {
		return p.Publish(ctx, payload)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := declareQueue(ch, p.queueName); err != nil {
		return err
	}
	retryQueue := RetryQueueName(p.queueName, delay)
	if _, err := ch.QueueDeclare(retryQueue, true, false, false, false, RetryQueueArgs(p.queueName, delay)); err != nil {
		return fmt.Errorf("declare queue %s failed: %w", retryQueue, err)
	}
	return p.publish(ctx, ch, retryQueue, payload)
}

func (p *Publisher) publish(ctx context.Context, ch *amqp.Channel, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload failed: %w", queue, err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish to %s failed: %w", queue, err)
	}
	return nil
}

// RetryQueueName is "{queue}.retry.{delay in ms}".
func RetryQueueName(queue string, delay time.Duration) string {
	return fmt.Sprintf("%s.retry.%d", queue, delay.Milliseconds())
}

// RetryQueueArgs dead-letters expired messages through the default exchange
// back to queue.
func RetryQueueArgs(queue string, delay time.Duration) amqp.Table {
	return amqp.Table{
		"x-message-ttl":             delay.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}
}
