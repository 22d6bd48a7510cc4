package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/tickgrid/internal/app"
	"github.com/vk/tickgrid/internal/cli"
	"github.com/vk/tickgrid/internal/config"
	"github.com/vk/tickgrid/internal/executor"
)

// main is the entrypoint for the tickgrid application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The real main function handles errors and exit codes.
	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) (err error) {
	cfg, shouldExit, err := cli.Parse(ctx, args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// Builder misuse panics; report it as a startup error instead of a crash.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	backend, err := executor.ParseBackend(cfg.Backend)
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat, outW)
	b := app.Build().
		WithLogger(logger).
		WithBackend(backend).
		WithExecutorOptions(cfg.ExecutorOptions()).
		WithHealthcheckPort(cfg.HealthcheckPort).
		SetRunner(runnerFor(cfg))
	registerParticles(b, defaultParticleCount)

	return b.Run(ctx)
}

// runnerFor maps the configured driver mode onto a run driver.
func runnerFor(cfg *config.Config) app.Runner {
	switch cfg.Runner {
	case config.RunnerLoop:
		return app.RunLoop(app.LoopConfig{
			Interval:        cfg.Interval,
			MaxTicks:        cfg.MaxTicks,
			ContinueOnError: cfg.ContinueOnError,
		})
	case config.RunnerSocketIO:
		return app.RunSocketIO(app.SocketIOConfig{
			URL:             cfg.SocketIO.URL,
			Namespace:       cfg.SocketIO.Namespace,
			TickEvent:       cfg.SocketIO.TickEvent,
			ExitEvent:       cfg.SocketIO.ExitEvent,
			AckEvent:        cfg.SocketIO.AckEvent,
			ConnectTimeout:  cfg.SocketIO.ConnectTimeout,
			ContinueOnError: cfg.ContinueOnError,
		})
	default:
		return app.RunOnce
	}
}
