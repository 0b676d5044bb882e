// Package queue defines the pointer-message queue abstraction the
// queue-backed orchestrator uses to drive a DataPipeline forward one step
// at a time (spec.md §4.1.b).
package queue

import "context"

// Pointer is the message body enqueued between steps: "go process step N
// of this document" (spec.md §4.1.b). It carries no payload beyond the
// coordinates needed to reload the pipeline's current status.
type Pointer struct {
	Index       string `json:"index"`
	DocumentID  string `json:"document_id"`
	ExecutionID string `json:"execution_id"`
}

// Delivery wraps a Pointer with the ack/nack controls for the message that
// carried it, so a handler failure can be distinguished from a handler
// crash without losing the message.
type Delivery struct {
	Pointer Pointer

	// Ack confirms successful processing; the message will not be
	// redelivered.
	Ack func() error
	// Nack requeues the message for redelivery, typically after an
	// unhandled error or a panic recovery.
	Nack func() error
}

// Adapter is the queue-backed orchestrator's dependency on a message
// broker. Implementations may be in-memory (tests, QueuedRunner used
// in-process) or backed by a real broker (queue/natsqueue).
type Adapter interface {
	// Enqueue publishes p to the named queue.
	Enqueue(ctx context.Context, queueName string, p Pointer) error
	// Subscribe registers handler to receive deliveries from the named
	// queue until ctx is cancelled. Subscribe blocks until ctx is done
	// or an unrecoverable subscription error occurs.
	Subscribe(ctx context.Context, queueName string, handler func(context.Context, Delivery)) error
}
