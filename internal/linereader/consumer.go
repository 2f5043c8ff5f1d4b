package linereader

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Consumer delivers the lines of a stream to a callback on its own goroutine.
type Consumer struct {
	log      *slog.Logger
	name     string
	reader   *Reader
	onLine   func(string)
	disabled atomic.Bool
	started  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

// NewConsumer creates a consumer named name that reads lines from r with
// the given reader sizes and passes them to onLine.
func NewConsumer(
	log *slog.Logger,
	name string,
	r io.Reader,
	bufferSize, maxLineSize int,
	onLine func(string),
) *Consumer {
	return &Consumer{
		log:    log.With("component", "line_consumer", "stream", name),
		name:   name,
		reader: NewReader(r, bufferSize, maxLineSize),
		onLine: onLine,
		done:   make(chan struct{}),
	}
}

// Name returns the stream name given at construction.
func (c *Consumer) Name() string {
	return c.name
}

// Start launches the read loop. onDone, if not nil, is called exactly once
// when the loop finishes, whether the stream ended, failed, or onLine
// panicked. Start only has an effect the first time it is called.
func (c *Consumer) Start(onDone func()) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}

	go c.run(onDone)
}

// Run executes the read loop on the calling goroutine.
func (c *Consumer) Run(onDone func()) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}

	c.run(onDone)
}

func (c *Consumer) run(onDone func()) {
	defer c.finish(onDone)

	lines := 0

	for {
		line, res := c.reader.Next()

		switch res {
		case Line:
			if c.disabled.Load() {
				continue
			}

			lines++

			c.onLine(line)
		case Oversized:
			c.log.Warn("Discarded oversized line", "error", ErrLineTooLong, "lines", lines)
		case Fault:
			// A worker closing its output mid-read is an ordinary way to finish.
			c.log.Debug("Stream read fault, stopping consumer", "error", c.reader.Err(), "lines", lines)

			return
		default:
			c.log.Debug("Stream ended", "lines", lines)

			return
		}
	}
}

func (c *Consumer) finish(onDone func()) {
	c.doneOnce.Do(func() {
		close(c.done)

		if onDone != nil {
			onDone()
		}
	})
}

// Disable suppresses delivery of further lines. The loop keeps draining the
// stream until it ends. Disable is idempotent and safe for concurrent use.
func (c *Consumer) Disable() {
	if c.disabled.CompareAndSwap(false, true) {
		c.log.Debug("Consumer disabled")
	}
}

// Disabled reports whether Disable was called.
func (c *Consumer) Disabled() bool {
	return c.disabled.Load()
}

// Done returns a channel that is closed when the read loop has finished.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}
