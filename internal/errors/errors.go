package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ForkChannelError is the base interface for all fork channel errors.
type ForkChannelError interface {
	error
	IsForkChannelError() bool
}

// Compile-time verification that all error types implement ForkChannelError.
var (
	_ ForkChannelError = (*BindError)(nil)
	_ ForkChannelError = (*AcceptError)(nil)
	_ ForkChannelError = (*SpawnError)(nil)
	_ ForkChannelError = (*FrameError)(nil)
	_ ForkChannelError = (*UnknownOpcodeError)(nil)
	_ ForkChannelError = (*WorkerNotFoundError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrChannelClosed indicates the fork channel has been closed.
	ErrChannelClosed = errors.New("fork channel closed")

	// ErrCommandlineCreated indicates the executable command line was already
	// created. A fork channel serves exactly one worker invocation.
	ErrCommandlineCreated = errors.New("executable command line already created")

	// ErrNotStarted indicates the worker process has not been spawned.
	ErrNotStarted = errors.New("worker process not started")

	// ErrAlreadyStarted indicates the worker process was already spawned.
	ErrAlreadyStarted = errors.New("worker process already started")

	// ErrUnexpectedPayload indicates a payload was given to a command kind
	// that carries no data.
	ErrUnexpectedPayload = errors.New("command kind carries no data")

	// ErrQueueClosed indicates a push to a command queue after Close.
	ErrQueueClosed = errors.New("command queue closed")

	// ErrNonLoopbackAddress indicates a TCP listen address outside the
	// loopback interface.
	ErrNonLoopbackAddress = errors.New("listen address is not loopback")
)

// BindError indicates the listening socket could not be opened.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// IsForkChannelError implements ForkChannelError.
func (e *BindError) IsForkChannelError() bool { return true }

// AcceptError indicates the single expected worker connection could not be accepted.
type AcceptError struct {
	Address string
	Err     error
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("failed to accept worker connection on %s: %v", e.Address, e.Err)
}

func (e *AcceptError) Unwrap() error {
	return e.Err
}

// IsForkChannelError implements ForkChannelError.
func (e *AcceptError) IsForkChannelError() bool { return true }

// SpawnError indicates the worker process could not be started.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn worker %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsForkChannelError implements ForkChannelError.
func (e *SpawnError) IsForkChannelError() bool { return true }

// FrameError indicates a wire frame could not be decoded.
// This error preserves the original line that failed to decode.
type FrameError struct {
	Line string
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed frame %q: %v", e.Line, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsForkChannelError implements ForkChannelError.
func (e *FrameError) IsForkChannelError() bool { return true }

// UnknownOpcodeError indicates an opcode that is not part of the command table.
type UnknownOpcodeError struct {
	Opcode string
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode %q", e.Opcode)
}

// IsForkChannelError implements ForkChannelError.
func (e *UnknownOpcodeError) IsForkChannelError() bool { return true }

// WorkerNotFoundError indicates the worker binary was not found.
type WorkerNotFoundError struct {
	Name          string
	SearchedPaths []string
}

func (e *WorkerNotFoundError) Error() string {
	return fmt.Sprintf("worker %q not found in: %s", e.Name, strings.Join(e.SearchedPaths, ", "))
}

// IsForkChannelError implements ForkChannelError.
func (e *WorkerNotFoundError) IsForkChannelError() bool { return true }
