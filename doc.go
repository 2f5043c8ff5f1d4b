// Package forkchannel lets a controller process drive a spawned worker
// process through a typed command and event channel.
//
// The controller sends discrete commands (run a test class, skip the rest of
// the set, shut down, ...) and receives events, one line each, in the order
// the worker reported them. Two transports sit behind the same ForkChannel
// abstraction: the worker's standard streams, and a loopback TCP connection
// the worker opens back to the controller.
//
// # Basic Usage
//
// For a single worker invocation, use Run:
//
//	q := forkchannel.NewQueue()
//	_ = q.Push(forkchannel.MustCommand(forkchannel.KindRunClass, []byte("pkg.SomeTest")))
//	_ = q.Push(forkchannel.MustCommand(forkchannel.KindByeAck, nil))
//	q.Close()
//
//	code, err := forkchannel.Run(ctx, forkchannel.Worker{
//	    Commandline: &forkchannel.Commandline{Path: workerPath},
//	    Events: forkchannel.EventHandlerFunc(func(line string) {
//	        fmt.Println(line)
//	    }),
//	}, q, forkchannel.WithTransport(forkchannel.TransportTCP))
//
// Stream does the same with commands taken from an iterator.
//
// # Manual Lifecycle
//
// For more control, create the channel with New:
//
//	ch, err := forkchannel.New(ctx, forkchannel.WithTransport(forkchannel.TransportTCP))
//	if err != nil {
//	    return err
//	}
//	defer ch.Close()
//
//	exec, err := ch.CreateExecutableCommandline()
//	if err != nil {
//	    return err
//	}
//
//	cmdline := (&forkchannel.Commandline{Path: workerPath}).
//	    WithConnectionString("--fork-node", ch.ConnectionString())
//
//	task, err := exec.ExecuteAsTask(ctx, cmdline, q, events, stdout, stderr, nil)
//	if err != nil {
//	    return err
//	}
//
//	code, err := task.Wait(ctx)
//
// # Wire Format
//
// Each command is one line: "maven-surefire-command:<opcode>" followed by
// ":<base64 data>" for kinds that carry data, terminated by '\n'. Events are
// plain lines. Workers find the connection string in their arguments and in
// the FORKCHANNEL_CONNECTION environment variable.
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	code, err := forkchannel.Run(ctx, worker, q, forkchannel.WithLogger(logger))
//
// # Error Handling
//
// Typed errors describe the failure:
//
//	ch, err := forkchannel.New(ctx, forkchannel.WithTransport(forkchannel.TransportTCP))
//	if bindErr, ok := errors.AsType[*forkchannel.BindError](err); ok {
//	    log.Fatalf("cannot listen on %s: %v", bindErr.Address, bindErr.Err)
//	}
//
// A worker exiting with a non-zero code is not an error; the code is
// returned as is, and -1 if the worker was killed by a signal.
package forkchannel
