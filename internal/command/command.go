package command

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wagiedev/forkchannel-go/internal/errors"
)

// Kind identifies the type of a command on the wire.
type Kind int

const (
	// KindRunClass asks the worker to run the named test class.
	KindRunClass Kind = iota
	// KindTestSetFinished tells the worker no more classes will follow.
	KindTestSetFinished
	// KindSkipSinceNextTest asks the worker to skip remaining tests.
	KindSkipSinceNextTest
	// KindShutdown asks the worker to shut down using the given strategy.
	KindShutdown
	// KindNoop keeps the channel alive.
	KindNoop
	// KindByeAck acknowledges the worker's goodbye event.
	KindByeAck
)

type kindInfo struct {
	opcode  string
	hasData bool
}

var kinds = [...]kindInfo{
	KindRunClass:          {opcode: "run-testclass", hasData: true},
	KindTestSetFinished:   {opcode: "testset-finished"},
	KindSkipSinceNextTest: {opcode: "skip-since-next-test"},
	KindShutdown:          {opcode: "shutdown", hasData: true},
	KindNoop:              {opcode: "noop"},
	KindByeAck:            {opcode: "bye-ack"},
}

// Kinds returns every known command kind in opcode table order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	for i := range kinds {
		out[i] = Kind(i)
	}

	return out
}

func (k Kind) valid() bool {
	return k >= 0 && int(k) < len(kinds)
}

// Opcode returns the wire opcode of the kind.
func (k Kind) Opcode() string {
	if !k.valid() {
		return ""
	}

	return kinds[k].opcode
}

// HasData reports whether the kind carries a payload on the wire.
func (k Kind) HasData() bool {
	return k.valid() && kinds[k].hasData
}

// String returns the opcode, or a placeholder for unknown kinds.
func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("unknown(%d)", int(k))
	}

	return kinds[k].opcode
}

// ParseKind maps a wire opcode back to its kind.
func ParseKind(opcode string) (Kind, error) {
	for i, info := range kinds {
		if info.opcode == opcode {
			return Kind(i), nil
		}
	}

	return 0, &errors.UnknownOpcodeError{Opcode: opcode}
}

// Command is a single instruction sent from the controller to the worker.
// The zero value is not a valid command; use New.
type Command struct {
	kind Kind
	data []byte
}

// New creates a command. A payload is only allowed for kinds that carry data;
// the payload is copied so later changes by the caller are not observed.
func New(kind Kind, data []byte) (Command, error) {
	if !kind.valid() {
		return Command{}, &errors.UnknownOpcodeError{Opcode: kind.String()}
	}

	if len(data) > 0 && !kind.HasData() {
		return Command{}, fmt.Errorf("%s: %w", kind, errors.ErrUnexpectedPayload)
	}

	return Command{kind: kind, data: bytes.Clone(data)}, nil
}

// MustNew is like New but panics on error. It is meant for literal commands.
func MustNew(kind Kind, data []byte) Command {
	cmd, err := New(kind, data)
	if err != nil {
		panic(err)
	}

	return cmd
}

// Kind returns the command kind.
func (c Command) Kind() Kind { return c.kind }

// Data returns a copy of the payload.
func (c Command) Data() []byte { return bytes.Clone(c.data) }

// Equal reports whether two commands have the same kind and payload.
func (c Command) Equal(other Command) bool {
	return c.kind == other.kind && bytes.Equal(c.data, other.data)
}

// Source yields commands for a transport.
//
// Next blocks until the next command is available and returns io.EOF once no
// more commands will come. IsClosed reports that no further command is
// possible; transports stop pulling as soon as it returns true.
type Source interface {
	IsClosed() bool
	Next(ctx context.Context) (Command, error)
}
