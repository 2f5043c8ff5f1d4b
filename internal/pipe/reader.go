package pipe

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"

	"github.com/wagiedev/forkchannel-go/internal/codec"
	"github.com/wagiedev/forkchannel-go/internal/command"
	"github.com/wagiedev/forkchannel-go/internal/metrics"
)

// commandReader exposes a command source as a byte stream of wire frames.
//
// Each frame is served completely before the next command is pulled, so a
// closed source never truncates a frame already in flight.
type commandReader struct {
	ctx     context.Context
	log     *slog.Logger
	source  command.Source
	metrics *metrics.Metrics

	current []byte
	pos     int
	opcode  string
	ended   bool
}

// Compile-time verification that commandReader implements io.Reader.
var _ io.Reader = (*commandReader)(nil)

func newCommandReader(
	ctx context.Context,
	log *slog.Logger,
	source command.Source,
	m *metrics.Metrics,
) *commandReader {
	return &commandReader{ctx: ctx, log: log, source: source, metrics: m}
}

// Read serves the bytes of the current frame, pulling the next command when
// the previous frame is exhausted. It returns io.EOF once the source is
// closed or ends.
func (r *commandReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if r.current == nil {
		if r.ended || r.source.IsClosed() {
			r.ended = true

			return 0, io.EOF
		}

		cmd, err := r.source.Next(r.ctx)
		if err != nil {
			if !stderrors.Is(err, io.EOF) {
				r.log.Debug("Command source stopped", "error", err)
			}

			r.ended = true

			return 0, io.EOF
		}

		r.current = codec.Encode(cmd)
		r.pos = 0
		r.opcode = cmd.Kind().Opcode()
	}

	n := copy(p, r.current[r.pos:])
	r.pos += n

	if r.pos == len(r.current) {
		r.metrics.CommandSent(transportName, r.opcode, len(r.current))
		r.current = nil
	}

	return n, nil
}
