package forkchannel

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wagiedev/forkchannel-go/internal/cli"
	"github.com/wagiedev/forkchannel-go/internal/command"
	"github.com/wagiedev/forkchannel-go/internal/config"
	"github.com/wagiedev/forkchannel-go/internal/metrics"
	"github.com/wagiedev/forkchannel-go/internal/shutdown"
	"github.com/wagiedev/forkchannel-go/internal/subprocess"
)

// Options configures a fork channel.
type Options = config.Options

// TransportKind selects the transport of a fork channel.
type TransportKind = config.TransportKind

const (
	// TransportPipe carries the channel over the worker's standard streams.
	TransportPipe = config.TransportPipe
	// TransportTCP carries the channel over a loopback TCP connection.
	TransportTCP = config.TransportTCP
)

// ParseTransport parses a transport name such as "pipe" or "tcp".
func ParseTransport(name string) (TransportKind, error) {
	return config.ParseTransport(name)
}

// ===== Commands =====

// Kind identifies a command and its wire opcode.
type Kind = command.Kind

// Command kinds.
const (
	KindRunClass          = command.KindRunClass
	KindTestSetFinished   = command.KindTestSetFinished
	KindSkipSinceNextTest = command.KindSkipSinceNextTest
	KindShutdown          = command.KindShutdown
	KindNoop              = command.KindNoop
	KindByeAck            = command.KindByeAck
)

// Command is an immutable instruction sent to a worker.
type Command = command.Command

// CommandSource supplies commands to a channel. Next returns io.EOF once
// the commands end.
type CommandSource = command.Source

// Queue is an unbounded FIFO CommandSource.
type Queue = command.Queue

// NewCommand creates a command. Data must be nil for kinds without data.
func NewCommand(kind Kind, data []byte) (Command, error) {
	return command.New(kind, data)
}

// MustCommand is like NewCommand but panics on an invalid payload.
func MustCommand(kind Kind, data []byte) Command {
	return command.MustNew(kind, data)
}

// NewQueue creates an empty, open command queue.
func NewQueue() *Queue {
	return command.NewQueue()
}

// ===== Events and output =====

// EventHandler receives worker events in arrival order.
type EventHandler = config.EventHandler

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc = config.EventHandlerFunc

// LineHandler receives one line of worker output. Nil drops the output.
type LineHandler = config.LineHandler

// ===== Processes =====

// Commandline describes a worker invocation.
type Commandline = cli.Commandline

// ConnectionEnvVar names the environment variable carrying the connection
// string to the worker.
const ConnectionEnvVar = cli.ConnectionEnvVar

// Task completes with the worker's exit code.
type Task = subprocess.Task

// ExecutableCommandline launches the worker of a fork channel.
type ExecutableCommandline = config.ExecutableCommandline

// ===== Ambient =====

// Metrics holds the prometheus collectors of fork channels.
type Metrics = metrics.Metrics

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	return metrics.New(reg)
}

// ShutdownRegisterer accepts worker termination hooks.
type ShutdownRegisterer = shutdown.Registerer

// ShutdownHooks is a ShutdownRegisterer run by the application.
type ShutdownHooks = shutdown.Hooks

// NewShutdownHooks creates an empty hook registry. A nil logger is silent.
func NewShutdownHooks(log *slog.Logger) *ShutdownHooks {
	return shutdown.NewHooks(log)
}
