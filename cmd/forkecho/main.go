// Command forkecho is a reference worker. It connects to the fork channel it
// was started with and acknowledges every command it receives with an
// "ack:<opcode>[:<base64 data>]" event.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wagiedev/forkchannel-go/internal/cli"
	"github.com/wagiedev/forkchannel-go/internal/worker"
)

var rootCmd = &cobra.Command{
	Use:   "forkecho [connection-string]",
	Short: "Reference fork channel worker that acknowledges every command",
	Long: `forkecho reads the connection string from --fork-node, its first argument or
the FORKCHANNEL_CONNECTION environment variable, connects back to the
controller and answers each command with an ack event until bye-ack,
shutdown or the end of the command stream.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().String("fork-node", "", "fork channel connection string")
	rootCmd.Flags().Int("exit-code", 0, "exit code after a clean session")
	rootCmd.Flags().BoolP("verbose", "v", false, "log to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	conn, _ := cmd.Flags().GetString("fork-node")
	if conn == "" && len(args) > 0 {
		conn = args[0]
	}

	if conn == "" {
		conn = os.Getenv(cli.ConnectionEnvVar)
	}

	if conn == "" {
		return fmt.Errorf("no connection string: use --fork-node, an argument or %s", cli.ConnectionEnvVar)
	}

	level := slog.LevelError + 1
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := cmd.Context()

	c, err := worker.Connect(ctx, conn, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer c.Close()

	handled, err := worker.NewSession(log, c.Reader, c.Writer).Serve(ctx, worker.Echo)
	if err != nil {
		return err
	}

	log.Debug("Session finished", "commands", handled)

	if code, _ := cmd.Flags().GetInt("exit-code"); code != 0 {
		c.Close()
		os.Exit(code)
	}

	return nil
}
