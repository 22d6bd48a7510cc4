package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/tickgrid/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. Configuration files named with
// -config (or as positional arguments) are loaded first and explicitly set
// flags are applied on top. It returns the resulting Config, a boolean
// indicating if the program should exit cleanly, or an ExitError.
func Parse(ctx context.Context, args []string, output io.Writer) (*config.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("tickgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
tickgrid - A tick-driven system scheduler over shared state.

Usage:
  tickgrid [options] [CONFIG_PATH...]

Arguments:
  CONFIG_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	var configPaths multiFlag
	flagSet.Var(&configPaths, "config", "Path to a config file or directory. May be repeated.")
	flagSet.Var(&configPaths, "c", "Path to a config file or directory (shorthand).")
	backendFlag := flagSet.String("backend", "", "Executor backend. Options: 'sequential', 'thread_pool', 'cooperative'.")
	threadsFlag := flagSet.Int("threads", 0, "Executor worker count. 0 uses the number of CPUs.")
	stackSizeFlag := flagSet.Int("stack-size", 0, "Requested worker stack size in bytes. Advisory.")
	runnerFlag := flagSet.String("runner", "", "Run driver. Options: 'once', 'loop', 'socketio'.")
	ticksFlag := flagSet.Uint64("ticks", 0, "Stop the loop driver after this many ticks. 0 is unlimited.")
	intervalFlag := flagSet.Duration("interval", 0, "Minimum time between loop ticks.")
	continueFlag := flagSet.Bool("continue-on-error", false, "Keep running after a failed tick.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	socketURLFlag := flagSet.String("socketio-url", "", "Socket.IO endpoint for the socketio driver.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	paths := append([]string(nil), configPaths...)
	paths = append(paths, flagSet.Args()...)

	cfg, err := config.Read(ctx, paths...)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	// Only flags given on the command line override the files.
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = strings.ToLower(*backendFlag)
		case "threads":
			cfg.Threads = *threadsFlag
		case "stack-size":
			cfg.StackSize = *stackSizeFlag
		case "runner":
			cfg.Runner = strings.ToLower(*runnerFlag)
		case "ticks":
			cfg.MaxTicks = *ticksFlag
		case "interval":
			cfg.Interval = *intervalFlag
		case "continue-on-error":
			cfg.ContinueOnError = *continueFlag
		case "log-format":
			cfg.LogFormat = strings.ToLower(*logFormatFlag)
		case "log-level":
			cfg.LogLevel = strings.ToLower(*logLevelFlag)
		case "healthcheck-port":
			cfg.HealthcheckPort = *healthPortFlag
		case "socketio-url":
			cfg.SocketIO.URL = *socketURLFlag
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid configuration: %v", err)}
	}
	slog.Debug("CLI parser finished successfully.", "backend", cfg.Backend, "runner", cfg.Runner)
	return cfg, false, nil
}

// multiFlag collects every occurrence of a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

var _ flag.Value = (*multiFlag)(nil)
