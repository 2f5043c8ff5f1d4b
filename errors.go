package forkchannel

import "github.com/wagiedev/forkchannel-go/internal/errors"

// Re-export error types from internal package

// BindError indicates the listening socket of a TCP channel could not be opened.
type BindError = errors.BindError

// AcceptError indicates the worker connection could not be accepted.
type AcceptError = errors.AcceptError

// SpawnError indicates the worker process failed to start.
type SpawnError = errors.SpawnError

// FrameError indicates a malformed command frame.
type FrameError = errors.FrameError

// UnknownOpcodeError indicates a command frame with an unknown opcode.
type UnknownOpcodeError = errors.UnknownOpcodeError

// WorkerNotFoundError indicates the worker binary was not found.
type WorkerNotFoundError = errors.WorkerNotFoundError

// ForkChannelError is the base interface for all fork channel errors.
type ForkChannelError = errors.ForkChannelError

// Re-export sentinel errors from internal package.
var (
	// ErrChannelClosed indicates the fork channel has been closed.
	ErrChannelClosed = errors.ErrChannelClosed

	// ErrCommandlineCreated indicates the channel already handed out its executable command line.
	ErrCommandlineCreated = errors.ErrCommandlineCreated

	// ErrNotStarted indicates the worker process has not been spawned.
	ErrNotStarted = errors.ErrNotStarted

	// ErrAlreadyStarted indicates the worker process was already spawned.
	ErrAlreadyStarted = errors.ErrAlreadyStarted

	// ErrUnexpectedPayload indicates data given to a command kind that carries none.
	ErrUnexpectedPayload = errors.ErrUnexpectedPayload

	// ErrQueueClosed indicates a push to a closed command queue.
	ErrQueueClosed = errors.ErrQueueClosed

	// ErrNonLoopbackAddress indicates a TCP listen address outside the loopback interface.
	ErrNonLoopbackAddress = errors.ErrNonLoopbackAddress
)
