package config

import (
	"context"

	"github.com/wagiedev/forkchannel-go/internal/cli"
	"github.com/wagiedev/forkchannel-go/internal/command"
	"github.com/wagiedev/forkchannel-go/internal/subprocess"
)

// EventHandler receives the events reported by a worker, one line each, in
// arrival order. HandleEvent is called from a single goroutine per worker.
type EventHandler interface {
	HandleEvent(line string)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(line string)

// HandleEvent implements EventHandler.
func (f EventHandlerFunc) HandleEvent(line string) { f(line) }

// LineHandler receives one line of worker output. A nil LineHandler drops
// the output.
type LineHandler func(line string)

// Handle calls h if it is not nil.
func (h LineHandler) Handle(line string) {
	if h != nil {
		h(line)
	}
}

// ExecutableCommandline launches a worker over a specific transport.
//
// ExecuteAsTask starts the transport's loops, spawns cmdline and returns a
// Task that completes with the worker's exit code once all of its events and
// output have been delivered. onTerminate, if not nil, runs after the worker
// has terminated. Spawn failures are returned synchronously.
type ExecutableCommandline interface {
	ExecuteAsTask(
		ctx context.Context,
		cmdline *cli.Commandline,
		commands command.Source,
		events EventHandler,
		stdout LineHandler,
		stderr LineHandler,
		onTerminate func(),
	) (*subprocess.Task, error)
}

// ForkChannel is the transport-agnostic handle created per worker invocation.
//
// The connection string must be handed to the worker at spawn time. The
// channel is closed exactly once after the worker terminated; Close is safe
// to call multiple times.
type ForkChannel interface {
	ConnectionString() string
	CreateExecutableCommandline() (ExecutableCommandline, error)
	Close() error
}
