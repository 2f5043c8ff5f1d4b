package forkchannel

import (
	"context"
	"fmt"

	"github.com/wagiedev/forkchannel-go/internal/config"
	"github.com/wagiedev/forkchannel-go/internal/network"
	"github.com/wagiedev/forkchannel-go/internal/pipe"
)

// ForkChannel is the transport-agnostic handle of one worker invocation.
//
// Hand ConnectionString to the worker at spawn time, launch it through the
// ExecutableCommandline and Close the channel once the worker's task has
// completed. Close must not be called from an event handler.
type ForkChannel = config.ForkChannel

// New creates a fork channel over the configured transport.
//
// A TCP channel binds its listening socket immediately and is closed when
// ctx is done. Returns BindError if the socket cannot be opened.
func New(ctx context.Context, opts ...Option) (ForkChannel, error) {
	options := applyOptions(opts).WithDefaults()

	switch options.Transport {
	case TransportPipe:
		return pipe.NewForkChannel(options), nil
	case TransportTCP:
		return network.NewForkChannel(ctx, options)
	default:
		return nil, fmt.Errorf("unsupported transport %s", options.Transport)
	}
}
