// Package queue holds pending poll requests for the worker pool.
//
// A game is queued at most once at a time, so a slow gateway cannot pile up
// repeated polls of the same game.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/icexg/pkg/metrics"
)

const defaultQueueCapacity = 64

// PollRequest asks a worker to poll one game.
type PollRequest struct {
	GameID      string
	RequestedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a request. It fails with ErrDuplicate while the same game
	// is still pending, ErrFull at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, r PollRequest) error

	// Dequeue returns a channel that receives requests until the queue is
	// closed or ctx ends.
	Dequeue(ctx context.Context) <-chan PollRequest

	// Len returns the number of pending requests.
	Len() int

	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	requests chan PollRequest
	capacity int

	mu      sync.Mutex
	pending map[string]struct{}
	closed  bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.requests = make(chan PollRequest, q.capacity)
	q.pending = make(map[string]struct{}, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a request without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r PollRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.RecordQueueDropped("closed")
		return ErrClosed
	}
	if _, ok := q.pending[r.GameID]; ok {
		metrics.RecordQueueDropped("duplicate")
		return ErrDuplicate
	}
	if r.RequestedAt.IsZero() {
		r.RequestedAt = time.Now()
	}

	select {
	case q.requests <- r:
		q.pending[r.GameID] = struct{}{}
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.requests))
		return nil
	default:
		metrics.RecordQueueDropped("full")
		return ErrFull
	}
}

// Dequeue returns a channel fed from the queue. A request leaves the pending
// set once it is handed to a consumer.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan PollRequest {
	out := make(chan PollRequest)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-q.requests:
				if !ok {
					return
				}
				q.mu.Lock()
				delete(q.pending, r.GameID)
				q.mu.Unlock()
				metrics.UpdateQueueSize(len(q.requests))

				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the number of pending requests.
func (q *InMemoryQueue) Len() int {
	return len(q.requests)
}

// Close stops accepting requests and closes the dequeue channels once the
// remaining requests are drained.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.requests)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
