package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	forkchannel "github.com/wagiedev/forkchannel-go"
)

var (
	version = "dev"
	cfgFile string
	v       = viper.New()
)

// exitCodeError carries the worker's exit code to main.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("worker exited with code %d", e.code)
}

var rootCmd = &cobra.Command{
	Use:   "forkrun [flags] -- <worker> [args...]",
	Short: "Drive a worker process over a fork channel",
	Long: `forkrun spawns a worker, hands it a fork channel connection string and sends
it one run-testclass command per --class, followed by the closing commands.
Every event the worker reports is printed on stdout.`,
	Version:       version,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWorker,
}

// Execute runs the root command and exits with the worker's exit code.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	if exitErr, ok := errors.AsType[*exitCodeError](err); ok {
		os.Exit(exitErr.code)
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, toml or json)")

	flags := rootCmd.Flags()
	flags.StringP("transport", "t", "pipe", "transport: pipe or tcp")
	flags.String("listen", "127.0.0.1:0", "loopback listen address of the tcp transport")
	flags.String("connection-flag", "", "argument prefix for the connection string, e.g. --fork-node")
	flags.StringSlice("class", nil, "test class to run (repeatable)")
	flags.String("shutdown", "", "send a shutdown command with this mode before closing")
	flags.Bool("bye", true, "send bye-ack after the last command")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address while the worker runs")
	flags.Int("max-line-size", 0, "longest accepted event line in bytes")
	flags.StringSlice("search-dir", nil, "directory searched for the worker after PATH (repeatable)")
	flags.BoolP("verbose", "v", false, "enable debug logging")

	// Bind flags to viper
	for _, name := range []string{
		"transport", "listen", "connection-flag", "class", "shutdown",
		"bye", "metrics-addr", "max-line-size", "search-dir", "verbose",
	} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
}

func initConfig() {
	v.SetEnvPrefix("FORKRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		return
	}

	v.SetConfigFile(cfgFile)

	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: reading config %s: %v\n", cfgFile, err)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildCommands turns the configured classes and closing commands into a queue.
func buildCommands() (*forkchannel.Queue, error) {
	q := forkchannel.NewQueue()
	defer q.Close()

	var cmds []forkchannel.Command

	for _, class := range v.GetStringSlice("class") {
		cmd, err := forkchannel.NewCommand(forkchannel.KindRunClass, []byte(class))
		if err != nil {
			return nil, err
		}

		cmds = append(cmds, cmd)
	}

	cmds = append(cmds, forkchannel.MustCommand(forkchannel.KindTestSetFinished, nil))

	if mode := v.GetString("shutdown"); mode != "" {
		cmds = append(cmds, forkchannel.MustCommand(forkchannel.KindShutdown, []byte(mode)))
	}

	if v.GetBool("bye") {
		cmds = append(cmds, forkchannel.MustCommand(forkchannel.KindByeAck, nil))
	}

	for _, cmd := range cmds {
		if err := q.Push(cmd); err != nil {
			return nil, err
		}
	}

	return q, nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	log := newLogger()

	transport, err := forkchannel.ParseTransport(v.GetString("transport"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hooks := forkchannel.NewShutdownHooks(log)
	defer hooks.RunOnDone(ctx)()

	var explicitPath string
	if strings.ContainsRune(args[0], os.PathSeparator) {
		explicitPath = args[0]
	}

	workerPath, err := forkchannel.DiscoverWorker(ctx, args[0], explicitPath, log, v.GetStringSlice("search-dir")...)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()

	m, err := forkchannel.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	if addr := v.GetString("metrics-addr"); addr != "" {
		srv := serveMetrics(log, addr, reg)
		defer shutdownMetrics(log, srv)
	}

	commands, err := buildCommands()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	code, err := forkchannel.Run(ctx, forkchannel.Worker{
		Commandline:    &forkchannel.Commandline{Path: workerPath, Args: args[1:]},
		ConnectionFlag: v.GetString("connection-flag"),
		Events: forkchannel.EventHandlerFunc(func(line string) {
			fmt.Fprintln(out, line)
		}),
		Stdout: func(line string) { log.Info("Worker output", "line", line) },
		Stderr: func(line string) { log.Warn("Worker error output", "line", line) },
	}, commands,
		forkchannel.WithLogger(log),
		forkchannel.WithTransport(transport),
		forkchannel.WithListenAddress(v.GetString("listen")),
		forkchannel.WithMetrics(m),
		forkchannel.WithShutdownHooks(hooks),
		forkchannel.WithMaxLineSize(v.GetInt("max-line-size")),
	)
	if err != nil {
		return err
	}

	if code != 0 {
		return &exitCodeError{code: code}
	}

	return nil
}

func serveMetrics(log *slog.Logger, addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", "error", err)
		}
	}()

	log.Info("Serving metrics", "address", addr)

	return srv
}

func shutdownMetrics(log *slog.Logger, srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("Metrics server shutdown failed", "error", err)
	}
}
