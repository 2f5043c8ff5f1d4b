package pipe

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"

	"github.com/wagiedev/forkchannel-go/internal/cli"
	"github.com/wagiedev/forkchannel-go/internal/codec"
	"github.com/wagiedev/forkchannel-go/internal/command"
	"github.com/wagiedev/forkchannel-go/internal/config"
	"github.com/wagiedev/forkchannel-go/internal/linereader"
	"github.com/wagiedev/forkchannel-go/internal/subprocess"
)

const transportName = "pipe"

// ProcessExecutor runs a worker whose standard streams carry the channel.
type ProcessExecutor struct {
	log     *slog.Logger
	options *config.Options
}

// Compile-time verification that ProcessExecutor implements config.ExecutableCommandline.
var _ config.ExecutableCommandline = (*ProcessExecutor)(nil)

// ExecuteAsTask spawns the worker with commands piped into its stdin, its
// stdout consumed as events and its stderr passed to the stderr handler.
// The stdout handler is unused: stdout is the event stream on this transport.
func (p *ProcessExecutor) ExecuteAsTask(
	ctx context.Context,
	cmdline *cli.Commandline,
	commands command.Source,
	events config.EventHandler,
	_ config.LineHandler,
	stderr config.LineHandler,
	onTerminate func(),
) (*subprocess.Task, error) {
	m := p.options.Metrics

	// The pump outlives the caller's context only until the worker exits.
	pumpCtx, stopPump := context.WithCancel(context.WithoutCancel(ctx))

	release := subprocess.Releases(
		subprocess.ReleaseFunc(func() error {
			stopPump()

			return nil
		}),
		cmdline.Release,
	)

	exec := subprocess.NewExecutor(p.log, cmdline, release, p.options.Hooks)

	streams, err := exec.Execute(ctx)
	if err != nil {
		_ = release.Close()

		return nil, err
	}

	source := newCommandReader(pumpCtx, p.log, commands, m)

	go p.pump(streams.Stdin, source)

	exec.TrackConsumer(linereader.NewConsumer(
		p.log, "events", streams.Stdout, p.options.ReadBufferSize, p.options.MaxLineSize,
		func(line string) {
			m.EventReceived(transportName)
			events.HandleEvent(codec.DecodeEvent(line))
		},
	))

	exec.TrackConsumer(linereader.NewConsumer(
		p.log, "stderr", streams.Stderr, p.options.ReadBufferSize, p.options.MaxLineSize,
		stderr.Handle,
	))

	return subprocess.Go(func() (int, error) {
		defer exec.Close()

		exitCode, err := exec.AwaitExit()
		m.WorkerExited(transportName, exitCode, err)

		if onTerminate != nil {
			onTerminate()
		}

		return exitCode, err
	}), nil
}

// pump copies encoded commands into the worker's stdin until the commands
// end or the worker stops reading, then closes stdin.
func (p *ProcessExecutor) pump(stdin io.WriteCloser, source *commandReader) {
	defer func() {
		if err := stdin.Close(); err != nil && !stderrors.Is(err, io.ErrClosedPipe) {
			p.log.Debug("Closing worker stdin failed", "error", err)
		}
	}()

	n, err := io.Copy(stdin, source)
	if err != nil {
		// The worker exiting closes its stdin; that ends the pump like EOF does.
		p.log.Debug("Command pump stopped", "error", err, "bytes", n)

		return
	}

	p.log.Debug("Command pump finished", "bytes", n)
}
