// Package worker is the worker-side counterpart of a fork channel.
//
// It connects back to the controller using the connection string it was
// started with, decodes command frames and reports events as lines. It backs
// the reference worker binary and the transport tests; real workers only
// need to speak the same wire protocol.
package worker

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/wagiedev/forkchannel-go/internal/codec"
	"github.com/wagiedev/forkchannel-go/internal/command"
	"github.com/wagiedev/forkchannel-go/internal/linereader"
)

// Handler returns the events that answer cmd. stop ends the session once the
// events are written.
type Handler func(cmd command.Command) (events []string, stop bool)

// Echo acknowledges every command with "ack:<opcode>[:<base64-data>]" and
// stops after a bye-ack or shutdown command.
func Echo(cmd command.Command) ([]string, bool) {
	event := "ack:" + cmd.Kind().Opcode()
	if cmd.Kind().HasData() {
		event += ":" + base64.StdEncoding.EncodeToString(cmd.Data())
	}

	stop := cmd.Kind() == command.KindByeAck || cmd.Kind() == command.KindShutdown

	return []string{event}, stop
}

// Connection is the worker's end of a fork channel.
type Connection struct {
	Reader io.Reader
	Writer io.Writer
	closer io.Closer
}

// Close releases the connection. Pipe connections are left to the process.
func (c *Connection) Close() error {
	if c.closer == nil {
		return nil
	}

	return c.closer.Close()
}

// Connect opens the connection described by connectionString. "pipe://"
// connections use stdin and stdout; "tcp://host:port" dials the controller.
func Connect(ctx context.Context, connectionString string, stdin io.Reader, stdout io.Writer) (*Connection, error) {
	switch {
	case strings.HasPrefix(connectionString, "pipe://"):
		return &Connection{Reader: stdin, Writer: stdout}, nil
	case strings.HasPrefix(connectionString, "tcp://"):
		var d net.Dialer

		conn, err := d.DialContext(ctx, "tcp", strings.TrimPrefix(connectionString, "tcp://"))
		if err != nil {
			return nil, fmt.Errorf("dial controller: %w", err)
		}

		return &Connection{Reader: conn, Writer: conn, closer: conn}, nil
	default:
		return nil, fmt.Errorf("unsupported connection string %q", connectionString)
	}
}

// Session reads commands and writes events over one connection.
type Session struct {
	log    *slog.Logger
	reader *linereader.Reader

	mu  sync.Mutex // Protects out
	out *bufio.Writer
}

// NewSession creates a session over in and out.
func NewSession(log *slog.Logger, in io.Reader, out io.Writer) *Session {
	return &Session{
		log:    log.With("component", "worker_session"),
		reader: linereader.NewReader(in, 0, 0),
		out:    bufio.NewWriter(out),
	}
}

// Emit writes one event line and flushes it.
func (s *Session) Emit(event string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.out.WriteString(event); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	if err := s.out.WriteByte('\n'); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return s.out.Flush()
}

// Serve decodes commands until the controller ends its command stream, the
// handler asks to stop, or ctx is done. It returns the number of commands
// handled.
func (s *Session) Serve(ctx context.Context, h Handler) (int, error) {
	handled := 0

	for {
		if err := ctx.Err(); err != nil {
			return handled, err
		}

		line, res := s.reader.Next()

		switch res {
		case linereader.EndOfStream:
			s.log.Debug("Command stream ended", "handled", handled)

			return handled, nil
		case linereader.Fault:
			return handled, fmt.Errorf("read command: %w", s.reader.Err())
		case linereader.Oversized:
			return handled, fmt.Errorf("read command: %w", linereader.ErrLineTooLong)
		}

		cmd, err := codec.DecodeCommand(line)
		if err != nil {
			return handled, err
		}

		handled++

		events, stop := h(cmd)
		for _, event := range events {
			if err := s.Emit(event); err != nil {
				return handled, err
			}
		}

		if stop {
			s.log.Debug("Handler stopped session", "handled", handled)

			return handled, nil
		}
	}
}
