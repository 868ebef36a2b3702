package broker

import (
	"context"
	"fmt"
	"time"

	"aggregator/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
)

// errorQueue receives messages rejected by validation.
const errorQueue = "error"

// Broker wraps the AMQP connection and the single channel the pipeline
// consumes and publishes on. Deliveries are acknowledged individually; an
// unacked message stays eligible for redelivery, which is the only
// durability signal the pipeline relies on.
type Broker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials the broker and declares every event-type queue plus the
// dead-letter queue as durable. Startup fails if any of this fails.
func Connect(url string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	names := make([]string, 0, len(model.Types())+1)
	for _, t := range model.Types() {
		names = append(names, string(t))
	}
	names = append(names, errorQueue)

	for _, name := range names {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
	}
	return &Broker{conn: conn, ch: ch}, nil
}

// Consume opens a manual-ack delivery stream for one event-type queue.
func (b *Broker) Consume(t model.Type) (<-chan amqp.Delivery, error) {
	msgs, err := b.ch.Consume(string(t), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", t, err)
	}
	return msgs, nil
}

// DeadLetter publishes the original message bytes to the error queue,
// carrying the original timestamp so downstream inspection keeps the event
// time. The message is persistent like everything else on these queues.
func (b *Broker) DeadLetter(ctx context.Context, body []byte, ts int64) error {
	return b.ch.PublishWithContext(ctx, "", errorQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Unix(ts, 0),
		Body:         body,
	})
}

func (b *Broker) Close() error {
	if err := b.ch.Close(); err != nil {
		b.conn.Close()
		return err
	}
	return b.conn.Close()
}
