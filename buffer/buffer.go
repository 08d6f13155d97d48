// Package buffer provides a bounded FIFO queue that hands pushed messages
// from the listener goroutine to application consumers.
package buffer

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrClosed   = errors.New("buffer closed")
	ErrFull     = errors.New("buffer full")
	ErrTimeout  = errors.New("buffer get timed out")
	ErrEmpty    = errors.New("buffer empty")
	ErrCapacity = errors.New("buffer capacity must be positive")
)

// Buffer is a bounded FIFO queue safe for concurrent producers and consumers.
// Once closed, Put and Get fail with ErrClosed; queued items can still be
// taken with Drain.
type Buffer[T any] struct {
	ch        chan T
	closed    chan struct{}
	closeOnce sync.Once
}

func New[T any](capacity int) (*Buffer[T], error) {
	if capacity <= 0 {
		return nil, ErrCapacity
	}
	return &Buffer[T]{
		ch:     make(chan T, capacity),
		closed: make(chan struct{}),
	}, nil
}

// Put appends v, waiting for space until ctx is done.
func (b *Buffer[T]) Put(ctx context.Context, v T) error {
	if b.Closed() {
		return ErrClosed
	}
	select {
	case b.ch <- v:
		return nil
	default:
	}
	select {
	case b.ch <- v:
		return nil
	case <-b.closed:
		return ErrClosed
	case <-ctx.Done():
		return ErrFull
	}
}

// TryPut appends v only if there is room right now.
func (b *Buffer[T]) TryPut(v T) error {
	if b.Closed() {
		return ErrClosed
	}
	select {
	case b.ch <- v:
		return nil
	default:
		return ErrFull
	}
}

// Get removes the oldest item, waiting until one arrives, the buffer is
// closed, or ctx is done.
func (b *Buffer[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if b.Closed() {
		return zero, ErrClosed
	}
	select {
	case v := <-b.ch:
		return v, nil
	case <-b.closed:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ErrTimeout
	}
}

// TryGet removes the oldest item, or returns ErrEmpty if none is queued.
func (b *Buffer[T]) TryGet() (T, error) {
	var zero T
	if b.Closed() {
		return zero, ErrClosed
	}
	select {
	case v := <-b.ch:
		return v, nil
	default:
		return zero, ErrEmpty
	}
}

// Drain removes and returns everything queued, oldest first. It never blocks
// and works on a closed buffer.
func (b *Buffer[T]) Drain() []T {
	var out []T
	for {
		select {
		case v := <-b.ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

// Close wakes every blocked Put and Get. Calling it again has no effect.
func (b *Buffer[T]) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
}

func (b *Buffer[T]) Len() int { return len(b.ch) }
func (b *Buffer[T]) Cap() int { return cap(b.ch) }

// Closed reports whether Close has been called.
func (b *Buffer[T]) Closed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}
