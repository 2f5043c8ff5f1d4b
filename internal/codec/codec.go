// Package codec encodes commands into wire frames and decodes frames and events.
//
// A frame is one line of ASCII text:
//
//	<magic-number>:<opcode>[:<base64-data>]\n
//
// The data field is present only for command kinds that carry data and is
// encoded with standard padded Base64. Events travel as pre-formed lines and
// are not re-parsed by this layer.
package codec

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/wagiedev/forkchannel-go/internal/command"
	"github.com/wagiedev/forkchannel-go/internal/errors"
)

const (
	// MagicNumber prefixes every command frame.
	MagicNumber = "maven-surefire-command"

	// Separator delimits the fields of a frame.
	Separator = ':'

	// Terminator ends every frame.
	Terminator = '\n'
)

// Encode returns the wire frame for cmd, terminator included.
func Encode(cmd command.Command) []byte {
	return AppendFrame(nil, cmd)
}

// AppendFrame appends the wire frame for cmd to dst and returns the extended slice.
func AppendFrame(dst []byte, cmd command.Command) []byte {
	kind := cmd.Kind()

	dst = append(dst, MagicNumber...)
	dst = append(dst, Separator)
	dst = append(dst, kind.Opcode()...)

	if kind.HasData() {
		dst = append(dst, Separator)
		dst = base64.StdEncoding.AppendEncode(dst, cmd.Data())
	}

	return append(dst, Terminator)
}

// DecodeEvent returns the event carried by a received line. Events are
// pre-formed text, so every line, including an empty one, is its own event.
func DecodeEvent(line string) string {
	return line
}

// DecodeCommand parses a command frame as the worker reads it. The
// terminator may be present or already stripped.
func DecodeCommand(line string) (command.Command, error) {
	frame := strings.TrimSuffix(line, string(Terminator))

	magic, rest, ok := strings.Cut(frame, string(Separator))
	if !ok || magic != MagicNumber {
		return command.Command{}, &errors.FrameError{Line: line, Err: fmt.Errorf("missing magic number")}
	}

	opcode, encoded, hasData := strings.Cut(rest, string(Separator))

	kind, err := command.ParseKind(opcode)
	if err != nil {
		return command.Command{}, &errors.FrameError{Line: line, Err: err}
	}

	if hasData != kind.HasData() {
		return command.Command{}, &errors.FrameError{
			Line: line,
			Err:  fmt.Errorf("opcode %s: data field presence %t, want %t", opcode, hasData, kind.HasData()),
		}
	}

	var data []byte

	if hasData {
		data, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return command.Command{}, &errors.FrameError{Line: line, Err: fmt.Errorf("decode data: %w", err)}
		}
	}

	cmd, err := command.New(kind, data)
	if err != nil {
		return command.Command{}, &errors.FrameError{Line: line, Err: err}
	}

	return cmd, nil
}
