package network

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/forkchannel-go/internal/cli"
	"github.com/wagiedev/forkchannel-go/internal/codec"
	"github.com/wagiedev/forkchannel-go/internal/command"
	"github.com/wagiedev/forkchannel-go/internal/config"
	"github.com/wagiedev/forkchannel-go/internal/errors"
	"github.com/wagiedev/forkchannel-go/internal/linereader"
	"github.com/wagiedev/forkchannel-go/internal/subprocess"
)

const transportName = "tcp"

// ProcessExecutor runs a worker that connects back to the channel's socket.
type ProcessExecutor struct {
	channel *ForkChannel
	log     *slog.Logger
	options *config.Options
}

// Compile-time verification that ProcessExecutor implements config.ExecutableCommandline.
var _ config.ExecutableCommandline = (*ProcessExecutor)(nil)

// ExecuteAsTask accepts the worker's connection, spawns cmdline and streams
// commands and events over the connection. The worker's stdout and stderr go
// to their handlers and its stdin is closed immediately.
//
// The returned task completes after the worker exited and every event and
// output line was delivered. An accept failure other than the listener being
// closed is reported as AcceptError by the task.
func (p *ProcessExecutor) ExecuteAsTask(
	ctx context.Context,
	cmdline *cli.Commandline,
	commands command.Source,
	events config.EventHandler,
	stdout config.LineHandler,
	stderr config.LineHandler,
	onTerminate func(),
) (*subprocess.Task, error) {
	c := p.channel

	served, ok := c.startServing()
	if !ok {
		return nil, errors.ErrChannelClosed
	}

	// Commands stop on channel close, or once the worker has exited.
	writerCtx, stopWriter := context.WithCancel(c.ctx)

	release := subprocess.Releases(
		subprocess.ReleaseFunc(func() error {
			stopWriter()

			return c.closeListener()
		}),
		cmdline.Release,
	)

	exec := subprocess.NewExecutor(p.log, cmdline, release, p.options.Hooks)

	var (
		acceptMu  sync.Mutex
		acceptErr error
	)

	// Accepting starts before the worker is spawned and is joined with the
	// worker's output streams.
	exec.Track("connection", func() {
		defer close(served)
		defer stopWriter()

		if err := p.serve(writerCtx, commands, events); err != nil {
			acceptMu.Lock()
			acceptErr = err
			acceptMu.Unlock()
		}
	})

	streams, err := exec.Execute(ctx)
	if err != nil {
		_ = release.Close()
		// The connection goroutine fails fast on the closed listener.
		<-served

		return nil, err
	}

	if err := streams.Stdin.Close(); err != nil {
		p.log.Debug("Closing worker stdin failed", "error", err)
	}

	exec.TrackConsumer(linereader.NewConsumer(
		p.log, "stdout", streams.Stdout, p.options.ReadBufferSize, p.options.MaxLineSize, stdout.Handle,
	))

	exec.TrackConsumer(linereader.NewConsumer(
		p.log, "stderr", streams.Stderr, p.options.ReadBufferSize, p.options.MaxLineSize, stderr.Handle,
	))

	m := p.options.Metrics

	return subprocess.Go(func() (int, error) {
		defer exec.Close()

		exitCode, err := exec.AwaitExit()

		acceptMu.Lock()
		err = stderrors.Join(err, acceptErr)
		acceptMu.Unlock()

		m.WorkerExited(transportName, exitCode, err)

		if onTerminate != nil {
			onTerminate()
		}

		return exitCode, err
	}), nil
}

// serve accepts the worker connection and runs the event reader and command
// writer until both are done. Only accept failures are returned.
func (p *ProcessExecutor) serve(ctx context.Context, commands command.Source, events config.EventHandler) error {
	c := p.channel
	m := p.options.Metrics

	conn, err := c.listener.Accept()
	if err != nil {
		if c.listenerClosed.Load() || stderrors.Is(err, net.ErrClosed) {
			p.log.Debug("Listener closed before the worker connected")

			return nil
		}

		m.AcceptFailed()
		p.log.Error("Failed to accept worker connection", "error", err)

		return &errors.AcceptError{Address: c.listener.Addr().String(), Err: err}
	}

	// One worker per channel.
	_ = c.closeListener()

	if !c.adopt(conn) {
		_ = conn.Close()

		return nil
	}

	m.ConnectionAccepted()
	p.log.Debug("Worker connected", "remote", conn.RemoteAddr().String())

	c.state.CompareAndSwap(int32(StateAccepted), int32(StateStreaming))

	writerCtx, stopWriter := context.WithCancel(ctx)
	defer stopWriter()

	var g errgroup.Group

	g.Go(func() error {
		consumer := linereader.NewConsumer(
			p.log, "events", zeroReadIsEOF{conn}, p.options.ReadBufferSize, p.options.MaxLineSize,
			func(line string) {
				m.EventReceived(transportName)
				events.HandleEvent(codec.DecodeEvent(line))
			},
		)

		consumer.Run(func() {
			closeRead(conn)
			// Nobody reads commands once the worker stopped reporting.
			stopWriter()
		})

		return nil
	})

	g.Go(func() error {
		return newCommandWriter(p.log, conn, m).run(writerCtx, commands)
	})

	if err := g.Wait(); err != nil {
		p.log.Warn("Command stream failed", "error", err)
	}

	return nil
}

// zeroReadIsEOF ends the stream on a read that returns no bytes and no error.
type zeroReadIsEOF struct {
	r io.Reader
}

func (z zeroReadIsEOF) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n, err := z.r.Read(p)
	if n == 0 && err == nil {
		return 0, io.EOF
	}

	return n, err
}

type closeReader interface {
	CloseRead() error
}

type closeWriter interface {
	CloseWrite() error
}

func closeRead(conn net.Conn) {
	if cr, ok := conn.(closeReader); ok {
		_ = cr.CloseRead()
	}
}

func closeWrite(conn net.Conn) {
	if cw, ok := conn.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
}
