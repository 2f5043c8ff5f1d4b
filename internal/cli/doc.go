// Package cli describes how a worker process is launched.
//
// This package provides two capabilities:
//
// # Worker Discovery
//
// The Discoverer interface locates the worker binary:
//
//	discoverer := cli.NewDiscoverer(&cli.Config{
//	    Name:       "forkecho",
//	    WorkerPath: "",        // Optional explicit path
//	    Logger:     slog.Default(),
//	})
//	workerPath, err := discoverer.Discover(ctx)
//
// Discovery searches in the following order:
//  1. Explicit path in Config.WorkerPath (if provided)
//  2. System PATH
//  3. Common installation directories (/usr/local/bin, /usr/bin, ~/.local/bin)
//
// # Command Lines
//
// A Commandline is the spawn descriptor handed to an executable command
// line: binary path, arguments, environment, working directory and an
// optional release callback that runs once the worker has terminated.
// WithConnectionString injects a fork channel's connection string into the
// worker's startup parameters.
package cli
