package network

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/wagiedev/forkchannel-go/internal/codec"
	"github.com/wagiedev/forkchannel-go/internal/command"
	"github.com/wagiedev/forkchannel-go/internal/metrics"
)

// commandWriter encodes commands onto the worker connection.
type commandWriter struct {
	log     *slog.Logger
	conn    net.Conn
	metrics *metrics.Metrics
}

func newCommandWriter(log *slog.Logger, conn net.Conn, m *metrics.Metrics) *commandWriter {
	return &commandWriter{log: log, conn: conn, metrics: m}
}

// run writes commands until the source is closed or ends, then half-closes
// the connection. A failed write closes the connection and is returned.
func (w *commandWriter) run(ctx context.Context, commands command.Source) error {
	for !commands.IsClosed() {
		cmd, err := commands.Next(ctx)
		if err != nil {
			if !stderrors.Is(err, io.EOF) {
				w.log.Debug("Command source stopped", "error", err)
			}

			break
		}

		frame := codec.Encode(cmd)

		if err := writeFull(w.conn, frame, func() { w.metrics.PartialWrite(transportName) }); err != nil {
			_ = w.conn.Close()

			return fmt.Errorf("write %s: %w", cmd.Kind(), err)
		}

		w.metrics.CommandSent(transportName, cmd.Kind().Opcode(), len(frame))
	}

	closeWrite(w.conn)
	w.log.Debug("Command stream finished")

	return nil
}

// writeFull writes all of frame, retrying short writes. onPartial is called
// for each short write. A write that makes no progress fails with
// io.ErrNoProgress.
func writeFull(w io.Writer, frame []byte, onPartial func()) error {
	for len(frame) > 0 {
		n, err := w.Write(frame)
		if err != nil {
			return err
		}

		if n <= 0 {
			return io.ErrNoProgress
		}

		if n < len(frame) {
			onPartial()
		}

		frame = frame[n:]
	}

	return nil
}
