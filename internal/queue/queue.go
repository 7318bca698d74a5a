// Package queue delivers evaluation work items to workers. Delivery is
// at-least-once with no ordering guarantee across items; the result upsert
// key makes redelivery harmless.
package queue

import (
	"context"
	"errors"

	"github.com/taleval/taleval/internal/model"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained
var ErrClosed = errors.New("queue closed")

// Queue hands evaluation work items from the dispatcher to workers
type Queue interface {
	Enqueue(ctx context.Context, item model.WorkItem) error
	Dequeue(ctx context.Context) (model.WorkItem, error)
	Close() error
}

// Memory is a single-process queue backed by a buffered channel. It backs
// the serve and one-shot run modes when no redis is configured, and tests.
type Memory struct {
	items chan model.WorkItem
	done  chan struct{}
}

// NewMemory creates an in-memory queue with the given capacity
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Memory{
		items: make(chan model.WorkItem, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue adds an item, blocking while the buffer is full
func (q *Memory) Enqueue(ctx context.Context, item model.WorkItem) error {
	select {
	case q.items <- item:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until an item is available, the queue closes, or ctx ends
func (q *Memory) Dequeue(ctx context.Context) (model.WorkItem, error) {
	select {
	case item := <-q.items:
		return item, nil
	case <-q.done:
		// drain remaining items before reporting closed
		select {
		case item := <-q.items:
			return item, nil
		default:
			return model.WorkItem{}, ErrClosed
		}
	case <-ctx.Done():
		return model.WorkItem{}, ctx.Err()
	}
}

// TryDequeue returns the next item without blocking
func (q *Memory) TryDequeue() (model.WorkItem, bool) {
	select {
	case item := <-q.items:
		return item, true
	default:
		return model.WorkItem{}, false
	}
}

// Len returns the number of buffered items
func (q *Memory) Len() int {
	return len(q.items)
}

// Close stops the queue
func (q *Memory) Close() error {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
	return nil
}
