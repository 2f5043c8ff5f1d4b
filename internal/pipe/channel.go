package pipe

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/forkchannel-go/internal/config"
	"github.com/wagiedev/forkchannel-go/internal/errors"
)

// ConnectionString is handed to workers using the pipe transport.
const ConnectionString = "pipe://"

// ForkChannel is the pipe transport's fork channel. It owns no resources
// beyond the executable command line it hands out.
type ForkChannel struct {
	log     *slog.Logger
	id      string
	options *config.Options

	mu      sync.Mutex
	created bool
	closed  bool
}

// Compile-time verification that ForkChannel implements config.ForkChannel.
var _ config.ForkChannel = (*ForkChannel)(nil)

// NewForkChannel creates a pipe fork channel.
func NewForkChannel(options *config.Options) *ForkChannel {
	options = options.WithDefaults()
	id := ulid.Make().String()

	return &ForkChannel{
		log:     options.Logger.With("component", "pipe_channel", "channel_id", id),
		id:      id,
		options: options,
	}
}

// ID returns the channel identifier used in logs.
func (c *ForkChannel) ID() string {
	return c.id
}

// ConnectionString returns ConnectionString.
func (c *ForkChannel) ConnectionString() string {
	return ConnectionString
}

// CreateExecutableCommandline returns the executor for the single worker of
// this channel.
func (c *ForkChannel) CreateExecutableCommandline() (config.ExecutableCommandline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.ErrChannelClosed
	}

	if c.created {
		return nil, errors.ErrCommandlineCreated
	}

	c.created = true

	return &ProcessExecutor{log: c.log, options: c.options}, nil
}

// Close marks the channel closed. It's safe to call Close multiple times.
func (c *ForkChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		c.log.Debug("Pipe fork channel closed")
	}

	return nil
}
