package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/tickgrid/internal/app"
	"github.com/vk/tickgrid/internal/cli"
	"github.com/vk/tickgrid/internal/config"
	"github.com/vk/tickgrid/internal/executor"
	"github.com/vk/tickgrid/internal/state"
	"github.com/vk/tickgrid/internal/testutil"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_InvalidConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`executor { backend = `), 0o600))

	err := run(context.Background(), &bytes.Buffer{}, []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestRun_LoopDriver(t *testing.T) {
	t.Parallel()

	for _, backend := range executor.Backends() {
		t.Run(string(backend), func(t *testing.T) {
			out := &testutil.SafeBuffer{}
			args := []string{"-runner", "loop", "-ticks", "5", "-backend", string(backend), "-log-level", "debug"}

			require.NoError(t, run(context.Background(), out, args))
			assert.Contains(t, out.String(), "Run driver finished")
			assert.Contains(t, out.String(), "ticks=5")
			assert.Contains(t, out.String(), "failed_ticks=0")
		})
	}
}

func TestRunnerFor(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.NotNil(t, runnerFor(cfg))

	cfg.Runner = config.RunnerLoop
	assert.NotNil(t, runnerFor(cfg))

	cfg.Runner = config.RunnerSocketIO
	cfg.SocketIO.URL = "ws://localhost:1"
	assert.NotNil(t, runnerFor(cfg))
}

func TestParticles_StayInBoundsAndKeepEnergy(t *testing.T) {
	t.Parallel()

	logger, _ := testutil.NewLogger(t)
	b := app.Build().WithLogger(logger).WithBackend(executor.BackendThreadPool).
		SetRunner(app.RunLoop(app.LoopConfig{MaxTicks: 200}))
	registerParticles(b, 16)

	a, err := b.App()
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Run(context.Background()))

	st := a.State()
	stats := state.MustGet[Stats](st.Resources)
	assert.Equal(t, uint64(200), stats.Ticks)
	assert.Equal(t, uint64(200), state.MustGet[Clock](st.Resources).Ticks)
	assert.Equal(t, 16, stats.Particles)
	assert.InDelta(t, 8.0, stats.Energy, 1e-9, "unit speed particles carry 0.5 each")

	_, positions := state.Query[Position](st.World)
	for _, p := range positions {
		assert.GreaterOrEqual(t, p.X, 0.0)
		assert.LessOrEqual(t, p.X, 100.0)
		assert.GreaterOrEqual(t, p.Y, 0.0)
		assert.LessOrEqual(t, p.Y, 100.0)
	}
}

func TestBounce(t *testing.T) {
	t.Parallel()

	x, v := bounce(-1, -2, 10)
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 2.0, v)

	x, v = bounce(11, 3, 10)
	assert.Equal(t, 9.0, x)
	assert.Equal(t, -3.0, v)

	x, v = bounce(5, 1, 10)
	assert.Equal(t, 5.0, x)
	assert.Equal(t, 1.0, v)
}
