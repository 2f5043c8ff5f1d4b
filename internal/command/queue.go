package command

import (
	"context"
	"io"
	"sync"

	"github.com/wagiedev/forkchannel-go/internal/errors"
)

// Queue is an unbounded FIFO Source.
//
// Producers Push commands from any goroutine and call Close once the last
// command is queued. Next drains queued commands in push order, then
// returns io.EOF.
type Queue struct {
	mu      sync.Mutex
	pending []Command
	closed  bool
	// ready is signalled whenever pending grows or the queue closes.
	ready chan struct{}
}

// Compile-time verification that Queue implements Source.
var _ Source = (*Queue)(nil)

// NewQueue creates an empty, open queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends a command. It returns ErrQueueClosed after Close.
func (q *Queue) Push(cmd Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.ErrQueueClosed
	}

	q.pending = append(q.pending, cmd)
	q.signal()

	return nil
}

// Close ends the input. Commands already queued are still delivered.
// It's safe to call Close multiple times.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.signal()
}

// IsClosed reports whether the queue is closed and fully drained.
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed && len(q.pending) == 0
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// Next returns the oldest queued command, blocking until one is pushed.
// It returns io.EOF when the queue is closed and drained, or the context
// error when ctx is done first.
func (q *Queue) Next(ctx context.Context) (Command, error) {
	for {
		q.mu.Lock()

		if len(q.pending) > 0 {
			cmd := q.pending[0]
			q.pending[0] = Command{}
			q.pending = q.pending[1:]

			// Pass the wake-up on to other waiters.
			if len(q.pending) > 0 {
				q.signal()
			}

			q.mu.Unlock()

			return cmd, nil
		}

		if q.closed {
			q.signal()
			q.mu.Unlock()

			return Command{}, io.EOF
		}

		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return Command{}, ctx.Err()
		}
	}
}

// signal wakes one waiter without blocking. Caller must hold q.mu.
func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
