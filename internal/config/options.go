// Package config provides configuration types and collaborator interfaces
// for fork channels.
package config

import (
	"io"
	"log/slog"

	"github.com/wagiedev/forkchannel-go/internal/linereader"
	"github.com/wagiedev/forkchannel-go/internal/metrics"
	"github.com/wagiedev/forkchannel-go/internal/shutdown"
)

// DefaultListenAddress is the loopback address the TCP transport binds to.
// Port 0 selects an ephemeral port.
const DefaultListenAddress = "127.0.0.1:0"

// Options configures a fork channel.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Transport selects the transport. The zero value is TransportPipe.
	Transport TransportKind

	// ListenAddress is the loopback address of the TCP transport.
	// Defaults to DefaultListenAddress.
	ListenAddress string

	// Metrics receives traffic counters. Nil disables metrics.
	Metrics *metrics.Metrics

	// Hooks receives the termination hook of every spawned worker so the
	// application can kill workers on its own shutdown. Nil disables it.
	Hooks shutdown.Registerer

	// ReadBufferSize is the buffer size of line readers.
	// Defaults to linereader.DefaultBufferSize.
	ReadBufferSize int

	// MaxLineSize is the longest accepted event or output line.
	// Defaults to linereader.DefaultMaxLineSize.
	MaxLineSize int
}

// WithDefaults returns a copy of o with unset fields filled in. A nil o
// yields the defaults.
func (o *Options) WithDefaults() *Options {
	out := &Options{}
	if o != nil {
		*out = *o
	}

	if out.Logger == nil {
		out.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if out.ListenAddress == "" {
		out.ListenAddress = DefaultListenAddress
	}

	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = linereader.DefaultBufferSize
	}

	if out.MaxLineSize <= 0 {
		out.MaxLineSize = linereader.DefaultMaxLineSize
	}

	return out
}
