package subprocess

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/wagiedev/forkchannel-go/internal/cli"
)

const helperEnv = "FORKCHANNEL_SUBPROCESS_HELPER"

// TestMain re-executes the test binary as a worker when helperEnv is set.
func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(runHelper(mode, os.Args[1:]))
	}

	os.Exit(m.Run())
}

// runHelper implements the worker behaviours used by the tests.
func runHelper(mode string, args []string) int {
	switch mode {
	case "events":
		// events <count> <exit-code>
		count, _ := strconv.Atoi(args[0])
		code, _ := strconv.Atoi(args[1])

		for i := range count {
			fmt.Fprintf(os.Stdout, "event-%d\n", i)
		}

		fmt.Fprintln(os.Stderr, "diagnostic")

		return code
	case "echo":
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			fmt.Fprintln(os.Stdout, scanner.Text())
		}

		return 0
	case "sleep":
		time.Sleep(time.Minute)

		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", mode)

		return 2
	}
}

// helperCommandline returns a command line that runs this test binary in the given helper mode.
func helperCommandline(t *testing.T, mode string, args ...string) *cli.Commandline {
	t.Helper()

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("locate test binary: %v", err)
	}

	return &cli.Commandline{
		Path: exe,
		Args: args,
		Env:  []string{helperEnv + "=" + mode},
	}
}
