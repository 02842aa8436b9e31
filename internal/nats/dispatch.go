package natsjs

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Martian-dev/pst-migrate/internal/eventstore/sqlite"
)

// Outbox is the journal side of the dispatcher.
type Outbox interface {
	DequeueOutbox(ctx context.Context, limit int) ([]sqlite.OutboxMessage, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkOutboxRetry(ctx context.Context, id int64, backoff time.Duration) error
}

// Sender publishes one message.
type Sender interface {
	Publish(subject string, payload []byte, msgID string) error
}

// Dispatcher moves journaled events from the outbox to NATS.
type Dispatcher struct {
	Outbox Outbox
	Sender Sender

	BatchSize    int
	Idle         time.Duration
	RetryBackoff time.Duration
}

// NewDispatcher returns a dispatcher with the default batch and delays.
func NewDispatcher(outbox Outbox, sender Sender) *Dispatcher {
	return &Dispatcher{
		Outbox:       outbox,
		Sender:       sender,
		BatchSize:    100,
		Idle:         500 * time.Millisecond,
		RetryBackoff: 10 * time.Second,
	}
}

// Run dispatches until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		taken, _, err := d.dispatchBatch(ctx)
		if err != nil {
			log.WithError(err).Warn("error dequeuing outbox")
			sleep(ctx, time.Second)
			continue
		}
		if taken == 0 {
			sleep(ctx, d.Idle)
		}
	}
}

// Flush publishes every message currently due. It stops at the first batch
// in which nothing could be published.
func (d *Dispatcher) Flush(ctx context.Context) error {
	for {
		_, published, err := d.dispatchBatch(ctx)
		if err != nil {
			return err
		}
		if published == 0 {
			return nil
		}
	}
}

// dispatchBatch publishes one batch and reports how many messages it took
// and how many of them were published.
func (d *Dispatcher) dispatchBatch(ctx context.Context) (taken, published int, err error) {
	messages, err := d.Outbox.DequeueOutbox(ctx, d.BatchSize)
	if err != nil {
		return 0, 0, err
	}

	for _, msg := range messages {
		if err := d.Sender.Publish(msg.Subject, msg.Payload, msg.MsgID); err != nil {
			log.WithError(err).WithField("id", msg.ID).Warn("error publishing message")
			if err := d.Outbox.MarkOutboxRetry(ctx, msg.ID, d.RetryBackoff); err != nil {
				log.WithError(err).WithField("id", msg.ID).Warn("error scheduling retry")
			}
			continue
		}

		published++
		if err := d.Outbox.MarkPublished(ctx, msg.ID); err != nil {
			log.WithError(err).WithField("id", msg.ID).Warn("error marking message as published")
		}
	}
	return len(messages), published, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
