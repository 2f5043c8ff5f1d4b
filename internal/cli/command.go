package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
)

// ConnectionEnvVar carries the fork channel connection string to the worker
// in addition to any command line argument.
const ConnectionEnvVar = "FORKCHANNEL_CONNECTION"

// Commandline describes a worker invocation.
type Commandline struct {
	// Path is the worker binary.
	Path string

	// Args are the command line arguments, without the binary name.
	Args []string

	// Env are extra environment variables (KEY=VALUE) added to the
	// controller's own environment.
	Env []string

	// Dir is the working directory. Empty means the controller's.
	Dir string

	// Release, if not nil, is closed after the worker terminates and before
	// its exit code is reported.
	Release io.Closer
}

// WithConnectionString returns a copy of c that hands conn to the worker.
// With a non-empty flag the argument is "flag=conn", otherwise conn is
// appended as a bare argument. The connection string is also exported
// through ConnectionEnvVar.
func (c *Commandline) WithConnectionString(flag, conn string) *Commandline {
	out := c.clone()

	if flag != "" {
		out.Args = append(out.Args, flag+"="+conn)
	} else {
		out.Args = append(out.Args, conn)
	}

	out.Env = append(out.Env, ConnectionEnvVar+"="+conn)

	return out
}

// Cmd builds the exec.Cmd for this command line. The standard streams are
// left for the caller to wire.
func (c *Commandline) Cmd(ctx context.Context) *exec.Cmd {
	//nolint:gosec // G204: Subprocess launching with dynamic args is expected for worker invocation
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = BuildEnvironment(c.Env)

	return cmd
}

// String renders the command line for logs.
func (c *Commandline) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Path)

	for _, arg := range c.Args {
		if strings.ContainsAny(arg, " \t\"'") {
			arg = fmt.Sprintf("%q", arg)
		}

		parts = append(parts, arg)
	}

	return strings.Join(parts, " ")
}

func (c *Commandline) clone() *Commandline {
	return &Commandline{
		Path:    c.Path,
		Args:    slices.Clone(c.Args),
		Env:     slices.Clone(c.Env),
		Dir:     c.Dir,
		Release: c.Release,
	}
}

// BuildEnvironment constructs the environment variables for the worker process.
func BuildEnvironment(extra []string) []string {
	// Start with current environment
	env := os.Environ()

	// Add or override with caller-provided variables; later entries win in exec.
	return append(env, extra...)
}
