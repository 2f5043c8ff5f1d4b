package forkchannel

import (
	"context"
	stderrors "errors"
	"fmt"
	"iter"

	"golang.org/x/sync/errgroup"
)

// Worker describes a worker invocation for Run and Stream.
type Worker struct {
	// Commandline spawns the worker. The connection string is appended to
	// its arguments.
	Commandline *Commandline

	// ConnectionFlag prefixes the connection string argument as
	// "flag=conn". Empty passes the connection string as a bare argument.
	ConnectionFlag string

	// Events receives worker events. Nil drops them.
	Events EventHandler

	// Stdout receives the worker's standard output on transports that do
	// not carry events over it.
	Stdout LineHandler

	// Stderr receives the worker's standard error.
	Stderr LineHandler

	// OnTerminate, if not nil, runs after the worker terminated.
	OnTerminate func()
}

// Run manages a fork channel lifecycle with automatic cleanup.
//
// It creates a channel with the provided options, spawns the worker with the
// channel's connection string, sends it the commands and returns the worker's
// exit code once every event and output line was delivered. The channel is
// closed before Run returns. A non-zero exit code is not an error.
//
// Cancelling ctx kills the worker; Run still waits for it to be reaped.
//
// Example usage:
//
//	q := forkchannel.NewQueue()
//	_ = q.Push(forkchannel.MustCommand(forkchannel.KindRunClass, []byte("pkg.SomeTest")))
//	_ = q.Push(forkchannel.MustCommand(forkchannel.KindByeAck, nil))
//	q.Close()
//
//	code, err := forkchannel.Run(ctx, forkchannel.Worker{
//	    Commandline:    &forkchannel.Commandline{Path: "/usr/local/bin/forkecho"},
//	    ConnectionFlag: "--fork-node",
//	    Events: forkchannel.EventHandlerFunc(func(line string) {
//	        fmt.Println(line)
//	    }),
//	}, q,
//	    forkchannel.WithTransport(forkchannel.TransportTCP),
//	    forkchannel.WithLogger(log),
//	)
func Run(ctx context.Context, w Worker, commands CommandSource, opts ...Option) (int, error) {
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}

	if w.Commandline == nil {
		return -1, fmt.Errorf("worker command line is required")
	}

	log := applyOptions(opts).Logger
	if log == nil {
		log = NopLogger()
	}

	ch, err := New(ctx, opts...)
	if err != nil {
		return -1, fmt.Errorf("create fork channel: %w", err)
	}

	defer func() {
		if closeErr := ch.Close(); closeErr != nil {
			log.Warn("failed to close fork channel", "error", closeErr)
		}
	}()

	exec, err := ch.CreateExecutableCommandline()
	if err != nil {
		return -1, fmt.Errorf("create executable command line: %w", err)
	}

	events := w.Events
	if events == nil {
		events = EventHandlerFunc(func(string) {})
	}

	cmdline := w.Commandline.WithConnectionString(w.ConnectionFlag, ch.ConnectionString())

	task, err := exec.ExecuteAsTask(ctx, cmdline, commands, events, w.Stdout, w.Stderr, w.OnTerminate)
	if err != nil {
		return -1, err
	}

	// The worker dies with ctx, so waiting past cancellation only reaps it.
	code, err := task.Wait(context.WithoutCancel(ctx))
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = stderrors.Join(err, ctxErr)
	}

	return code, err
}

// Stream is like Run but takes the commands from an iterator. Commands are
// sent as the iterator yields them and the command stream ends when the
// iterator returns.
func Stream(ctx context.Context, w Worker, commands iter.Seq[Command], opts ...Option) (int, error) {
	q := NewQueue()

	g, gCtx := errgroup.WithContext(ctx)

	// Feed the queue until the iterator is exhausted or the worker is done.
	g.Go(func() error {
		defer q.Close()

		for cmd := range commands {
			if err := gCtx.Err(); err != nil {
				return err
			}

			if err := q.Push(cmd); err != nil {
				return err
			}
		}

		return nil
	})

	code, runErr := Run(ctx, w, q, opts...)

	// Stops a feed still iterating after the worker is gone.
	q.Close()

	if err := g.Wait(); err != nil && !stderrors.Is(err, ErrQueueClosed) && runErr == nil && ctx.Err() == nil {
		runErr = fmt.Errorf("feed commands: %w", err)
	}

	return code, runErr
}
