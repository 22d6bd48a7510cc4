package options

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderComposition(t *testing.T) {
	base := New()
	o := base.WithThreads(4).WithStackSize(1 << 20)

	assert.Equal(t, 4, o.Threads)
	assert.Equal(t, 1<<20, o.StackSize)
	assert.Equal(t, Options{}, base, "builders must not mutate the receiver")
}

func TestPoolConfig_Defaults(t *testing.T) {
	cfg, err := New().PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Workers)
	assert.Zero(t, cfg.StackSize)
}

func TestPoolConfig_Explicit(t *testing.T) {
	cfg, err := New().WithThreads(3).WithStackSize(4096).PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, PoolConfig{Workers: 3, StackSize: 4096}, cfg)
}

func TestPoolConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		field string
	}{
		{"negative threads", New().WithThreads(-1), "threads"},
		{"too many threads", New().WithThreads(MaxThreads + 1), "threads"},
		{"negative stack", New().WithStackSize(-8), "stack_size"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.opts.PoolConfig()
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tc.field, cfgErr.Field)
			assert.Contains(t, err.Error(), "invalid executor configuration")
		})
	}
}
