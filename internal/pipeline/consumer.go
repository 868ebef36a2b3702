package pipeline

import (
	"context"
	"sync/atomic"

	"aggregator/internal/metrics"
	"aggregator/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// DeadLetterer publishes a rejected message to the dead-letter queue with
// its original timestamp. *broker.Broker satisfies it.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, body []byte, ts int64) error
}

// Saver spools a message locally when the dead-letter publish itself fails.
type Saver interface {
	Save(body []byte, ts int64) error
}

// Consumer is the broker-facing half of the pipeline: it validates each
// delivery and either appends it to the type's buffer or routes it to the
// dead-letter queue. Everything here runs on the delivery path, so the work
// per message is a decode, a schema check and a slice append.
type Consumer struct {
	validator *Validator
	buffers   map[model.Type]*Buffer
	dead      DeadLetterer
	spool     Saver // optional
	metrics   *metrics.Metrics
}

func NewConsumer(v *Validator, buffers map[model.Type]*Buffer, dead DeadLetterer, spool Saver, m *metrics.Metrics) *Consumer {
	return &Consumer{validator: v, buffers: buffers, dead: dead, spool: spool, metrics: m}
}

// Run consumes one event type's delivery stream until the channel closes or
// ctx is cancelled. One goroutine per event type; appends to a single
// buffer are serialized by construction, drains by the buffer's lock.
func (c *Consumer) Run(ctx context.Context, t model.Type, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				log.Info().Str("type", string(t)).Msg("delivery stream closed")
				return
			}
			c.Handle(ctx, t, d.Body, d.Timestamp.Unix(), d)
		}
	}
}

// Handle processes a single delivery: validate, then buffer or dead-letter.
// A message that fails validation never reaches a buffer; it is published
// to the error queue with its original bytes and timestamp, then
// acknowledged so the broker stops redelivering it.
func (c *Consumer) Handle(ctx context.Context, t model.Type, body []byte, ts int64, ack Acker) {
	atomic.AddInt64(&c.metrics.MessagesConsumedTotal, 1)

	ev, err := c.validator.Validate(t, body, ts)
	if err != nil {
		atomic.AddInt64(&c.metrics.MessagesInvalidTotal, 1)
		log.Debug().Err(err).Str("type", string(t)).Msg("message rejected")
		c.reject(ctx, body, ts, ack)
		return
	}

	c.buffers[t].Append(ack, ev)
	atomic.AddInt64(&c.metrics.MessagesBufferedTotal, 1)
}

// reject dead-letters a message and acks the original delivery. If the
// dead-letter publish fails the message goes to the local spool instead;
// only when both fail is it left unacked for broker redelivery.
func (c *Consumer) reject(ctx context.Context, body []byte, ts int64, ack Acker) {
	if err := c.dead.DeadLetter(ctx, body, ts); err != nil {
		atomic.AddInt64(&c.metrics.DeadLetterPublishErrors, 1)
		log.Warn().Err(err).Msg("dead-letter publish failed")

		if c.spool == nil {
			return
		}
		if err := c.spool.Save(body, ts); err != nil {
			log.Error().Err(err).Msg("dead-letter spool failed, leaving message for redelivery")
			return
		}
	}
	if err := ack.Ack(false); err != nil {
		log.Warn().Err(err).Msg("ack failed after dead-letter")
	}
}
