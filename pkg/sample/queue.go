package sample

import (
	"context"
)

// Queue is a bounded FIFO of chunks between one producer and one consumer.
// Push blocks while the queue is full, Pop blocks while it is empty.
type Queue struct {
	ch chan Chunk
}

// NewQueue creates a queue holding up to capacity chunks. Capacities below one
// are raised to one.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan Chunk, capacity)}
}

// Push appends c, waiting for free space. It fails only when ctx is done.
func (q *Queue) Push(ctx context.Context, c Chunk) error {
	select {
	case q.ch <- c:
		return nil
	default:
	}

	select {
	case q.ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop removes the oldest chunk, waiting for one to arrive. It fails only when
// ctx is done.
func (q *Queue) Pop(ctx context.Context) (Chunk, error) {
	select {
	case c := <-q.ch:
		return c, nil
	default:
	}

	select {
	case c := <-q.ch:
		return c, nil
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	}
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
