package queue

import (
	"context"
	"time"
)

// Queue is the work-queue contract shared by the API tier and the
// workers: producers push serialized jobs onto a named queue, workers
// block-pop them, and completion events go out on a pub/sub channel.
//
// Delivery is at-least-once. A job popped by a worker that dies before
// finishing is gone from the queue's perspective, so every downstream
// effect must be repeatable from persisted entity state.
type Queue interface {
	// Enqueue pushes a payload onto the named queue.
	Enqueue(ctx context.Context, queue string, payload []byte) error

	// Dequeue blocks up to timeout for the next payload. A timeout
	// with no job available returns ok == false and a nil error; the
	// caller is expected to simply loop again.
	Dequeue(ctx context.Context, queue string, timeout time.Duration) (payload []byte, ok bool, err error)

	// Notify publishes a completion payload on a pub/sub channel.
	// Subscribers re-fetch the entity; the payload carries ids only.
	Notify(ctx context.Context, channel string, payload []byte) error

	// Ping verifies the queue connection is alive
	Ping(ctx context.Context) error

	// Close closes the queue connection
	Close() error
}
