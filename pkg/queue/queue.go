package queue

import "context"

// FIFO is a bounded first-in first-out byte queue grouped by key. Producers
// push individual payloads; consumers drain in arrival order. When a queue
// exceeds its cap the oldest entries are discarded.
type FIFO interface {
	// Push appends payload to the queue identified by key.
	Push(ctx context.Context, key string, payload []byte) error

	// Pop removes and returns up to limit payloads from the front of the
	// queue. An empty queue yields an empty slice, not an error.
	Pop(ctx context.Context, key string, limit int) ([][]byte, error)
}
