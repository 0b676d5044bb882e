// Package memqueue is an in-memory Adapter for tests that exercise the
// queue-backed orchestrator without a running broker. The in-process
// orchestrator uses no queue adapter.
package memqueue

import (
	"context"
	"sync"

	"github.com/kestrelai/memoria/queue"
)

// Adapter is a process-local, goroutine-safe fan-out queue: every
// Subscribe call on a queue name receives every Pointer enqueued to it
// after the subscription starts. Ack and Nack are no-ops; redelivery is
// not simulated since nothing here can crash mid-delivery.
type Adapter struct {
	mu          sync.Mutex
	subscribers map[string][]chan queue.Pointer
}

// New creates an empty Adapter.
func New() *Adapter {
	return &Adapter{subscribers: make(map[string][]chan queue.Pointer)}
}

func (a *Adapter) Enqueue(ctx context.Context, queueName string, p queue.Pointer) error {
	a.mu.Lock()
	chans := append([]chan queue.Pointer{}, a.subscribers[queueName]...)
	a.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (a *Adapter) Subscribe(ctx context.Context, queueName string, handler func(context.Context, queue.Delivery)) error {
	ch := make(chan queue.Pointer, 64)

	a.mu.Lock()
	a.subscribers[queueName] = append(a.subscribers[queueName], ch)
	a.mu.Unlock()

	defer a.removeSubscriber(queueName, ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p := <-ch:
			handler(ctx, queue.Delivery{
				Pointer: p,
				Ack:     func() error { return nil },
				Nack:    func() error { return nil },
			})
		}
	}
}

func (a *Adapter) removeSubscriber(queueName string, target chan queue.Pointer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	subs := a.subscribers[queueName]
	for i, ch := range subs {
		if ch == target {
			a.subscribers[queueName] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

var _ queue.Adapter = (*Adapter)(nil)
