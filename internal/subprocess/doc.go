// Package subprocess manages the lifecycle of a worker process.
//
// The Executor spawns the worker, registers a termination hook that kills it
// if the controller goes away abruptly, and waits for it in a fixed order:
// the process exits, the caller's release callback runs, every tracked
// stream consumer drains, and only then is the exit code reported. This
// ordering guarantees that all output of the worker has been delivered
// before its exit code is considered final.
//
// Task is the future returned to callers of an executable command line.
package subprocess
