package forkchannel

import (
	"log/slog"
)

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTransport selects the transport. The default is TransportPipe.
func WithTransport(kind TransportKind) Option {
	return func(o *Options) {
		o.Transport = kind
	}
}

// WithListenAddress sets the loopback address of the TCP transport.
// The default binds an ephemeral port on 127.0.0.1. Hosts other than
// localhost or a loopback IP make New fail with a BindError.
func WithListenAddress(address string) Option {
	return func(o *Options) {
		o.ListenAddress = address
	}
}

// WithMetrics records channel traffic in m.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}

// WithShutdownHooks registers a kill hook for every spawned worker with r,
// so the application can stop workers on its own shutdown.
func WithShutdownHooks(r ShutdownRegisterer) Option {
	return func(o *Options) {
		o.Hooks = r
	}
}

// WithReadBufferSize sets the buffer size used to read events and output.
func WithReadBufferSize(size int) Option {
	return func(o *Options) {
		o.ReadBufferSize = size
	}
}

// WithMaxLineSize sets the longest accepted event or output line. Longer
// lines end the affected stream.
func WithMaxLineSize(size int) Option {
	return func(o *Options) {
		o.MaxLineSize = size
	}
}
