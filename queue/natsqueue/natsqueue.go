// Package natsqueue is a NATS JetStream-backed queue.Adapter, grounded on
// the typed publish/subscribe pattern of pkg/natsutil in the WessleyAI
// example (generic JSON envelope over *nats.Conn), generalized here to
// JetStream so redelivery, visibility timeouts, and a poison-message
// threshold are handled by the broker rather than hand-rolled.
package natsqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kestrelai/memoria/queue"
)

// Adapter publishes and consumes queue.Pointer messages via a JetStream
// stream. Each queueName maps to its own durable consumer so the
// orchestrator's per-step queues stay independent.
type Adapter struct {
	js            nats.JetStreamContext
	streamName    string
	ackWait       time.Duration
	maxDeliver    int
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithAckWait sets how long JetStream waits for an Ack before redelivering
// a message (the visibility timeout). Default 30s.
func WithAckWait(d time.Duration) Option {
	return func(a *Adapter) { a.ackWait = d }
}

// WithMaxDeliver sets how many times a message is redelivered before
// JetStream stops retrying it and it is left for dead-letter inspection
// via the stream's own retained history. Default 5.
func WithMaxDeliver(n int) Option {
	return func(a *Adapter) { a.maxDeliver = n }
}

// New creates an Adapter backed by streamName, creating the stream if it
// does not already exist, bound to subjects "<streamName>.>".
func New(nc *nats.Conn, streamName string, opts ...Option) (*Adapter, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("natsqueue: jetstream context: %w", err)
	}

	a := &Adapter{
		js:         js,
		streamName: streamName,
		ackWait:    30 * time.Second,
		maxDeliver: 5,
	}
	for _, opt := range opts {
		opt(a)
	}

	if _, err := js.StreamInfo(streamName); err != nil {
		_, err := js.AddStream(&nats.StreamConfig{
			Name:     streamName,
			Subjects: []string{streamName + ".>"},
		})
		if err != nil {
			return nil, fmt.Errorf("natsqueue: add stream %q: %w", streamName, err)
		}
	}
	return a, nil
}

func (a *Adapter) subject(queueName string) string {
	return a.streamName + "." + queueName
}

// Enqueue publishes p as JSON to the queue's subject.
func (a *Adapter) Enqueue(ctx context.Context, queueName string, p queue.Pointer) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("natsqueue: marshal pointer: %w", err)
	}
	_, err = a.js.Publish(a.subject(queueName), data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("natsqueue: publish to %q: %w", queueName, err)
	}
	return nil
}

// Subscribe creates a durable pull consumer for queueName and delivers
// each message to handler. Malformed messages are terminated (not
// redelivered) rather than retried forever.
func (a *Adapter) Subscribe(ctx context.Context, queueName string, handler func(context.Context, queue.Delivery)) error {
	subject := a.subject(queueName)
	durable := "memoria-" + queueName

	sub, err := a.js.PullSubscribe(subject, durable,
		nats.AckWait(a.ackWait),
		nats.MaxDeliver(a.maxDeliver),
		nats.ManualAck(),
	)
	if err != nil {
		return fmt.Errorf("natsqueue: pull subscribe %q: %w", queueName, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(time.Second))
		if err != nil {
			if err == nats.ErrTimeout {
				continue
			}
			return fmt.Errorf("natsqueue: fetch from %q: %w", queueName, err)
		}

		for _, msg := range msgs {
			var p queue.Pointer
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				msg.Term()
				continue
			}
			handler(ctx, queue.Delivery{
				Pointer: p,
				Ack:     func() error { return msg.Ack() },
				Nack:    func() error { return msg.Nak() },
			})
		}
	}
}

var _ queue.Adapter = (*Adapter)(nil)
