package memqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/memoria/queue"
)

func TestAdapterDeliversEnqueuedPointerToSubscriber(t *testing.T) {
	a := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan queue.Pointer, 1)
	go func() {
		_ = a.Subscribe(ctx, "extract", func(_ context.Context, d queue.Delivery) {
			received <- d.Pointer
			require.NoError(t, d.Ack())
		})
	}()

	// Give the subscriber goroutine time to register before publishing.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, a.Enqueue(ctx, "extract", queue.Pointer{Index: "idx", DocumentID: "doc1"}))

	select {
	case p := <-received:
		assert.Equal(t, "doc1", p.DocumentID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestAdapterEnqueueWithNoSubscribersIsNoop(t *testing.T) {
	a := New()
	err := a.Enqueue(context.Background(), "partition", queue.Pointer{Index: "idx", DocumentID: "doc1"})
	assert.NoError(t, err)
}
