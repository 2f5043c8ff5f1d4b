package forkchannel_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	forkchannel "github.com/wagiedev/forkchannel-go"
	"github.com/wagiedev/forkchannel-go/internal/worker"
)

const helperEnv = "FORKCHANNEL_ROOT_HELPER"

// TestMain re-executes the test binary as the echo worker when helperEnv is set.
func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) != "" {
		os.Exit(runEchoWorker(os.Args[1:]))
	}

	os.Exit(m.Run())
}

func runEchoWorker(args []string) int {
	code := 0
	if len(args) > 0 {
		code, _ = strconv.Atoi(args[0])
	}

	ctx := context.Background()

	conn, err := worker.Connect(ctx, os.Getenv(forkchannel.ConnectionEnvVar), os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)

		return 2
	}
	defer conn.Close()

	fmt.Fprintln(os.Stderr, "echo worker ready")

	if _, err := worker.NewSession(forkchannel.NopLogger(), conn.Reader, conn.Writer).Serve(ctx, worker.Echo); err != nil {
		fmt.Fprintln(os.Stderr, err)

		return 3
	}

	return code
}

func echoCommandline(t *testing.T, exitCode int) *forkchannel.Commandline {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)

	return &forkchannel.Commandline{
		Path: exe,
		Args: []string{strconv.Itoa(exitCode)},
		Env:  []string{helperEnv + "=1"},
	}
}

func TestNew_Transports(t *testing.T) {
	ch, err := forkchannel.New(context.Background())
	require.NoError(t, err)
	require.Equal(t, "pipe://", ch.ConnectionString())
	require.NoError(t, ch.Close())

	ch, err = forkchannel.New(context.Background(), forkchannel.WithTransport(forkchannel.TransportTCP))
	require.NoError(t, err)
	require.Regexp(t, `^tcp://127\.0\.0\.1:\d+$`, ch.ConnectionString())
	require.NoError(t, ch.Close())
}

func TestNew_UnsupportedTransport(t *testing.T) {
	_, err := forkchannel.New(context.Background(), forkchannel.WithTransport(forkchannel.TransportKind(42)))
	require.Error(t, err)
}

func TestNew_BindError(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer taken.Close()

	_, err = forkchannel.New(context.Background(),
		forkchannel.WithTransport(forkchannel.TransportTCP),
		forkchannel.WithListenAddress(taken.Addr().String()),
	)

	bindErr, ok := stderrors.AsType[*forkchannel.BindError](err)
	require.True(t, ok)
	require.Equal(t, taken.Addr().String(), bindErr.Address)

	_, ok = stderrors.AsType[forkchannel.ForkChannelError](err)
	require.True(t, ok)
}

func TestNew_NonLoopbackListenAddress(t *testing.T) {
	_, err := forkchannel.New(context.Background(),
		forkchannel.WithTransport(forkchannel.TransportTCP),
		forkchannel.WithListenAddress("0.0.0.0:0"),
	)

	_, ok := stderrors.AsType[*forkchannel.BindError](err)
	require.True(t, ok)
	require.ErrorIs(t, err, forkchannel.ErrNonLoopbackAddress)
}

func TestDiscoverWorker_SearchDirs(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	dir := t.TempDir()
	bin := filepath.Join(dir, "forkecho")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	path, err := forkchannel.DiscoverWorker(context.Background(), "forkecho", "", nil, dir)
	require.NoError(t, err)
	require.Equal(t, bin, path)

	_, err = forkchannel.DiscoverWorker(context.Background(), "forkecho", "", nil)

	notFound, ok := stderrors.AsType[*forkchannel.WorkerNotFoundError](err)
	require.True(t, ok)
	require.Contains(t, notFound.SearchedPaths, filepath.Join(forkchannel.DefaultSearchDirs()[0], "forkecho"))
}
