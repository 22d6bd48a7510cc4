package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/tickgrid/internal/ctxlog"
	"github.com/vk/tickgrid/internal/fsutil"
)

// fileRoot is decoded from every configuration file. Every block and
// attribute is optional; whatever is present overrides earlier values.
type fileRoot struct {
	Log         *logBlock         `hcl:"log,block"`
	Executor    *executorBlock    `hcl:"executor,block"`
	Runner      *runnerBlock      `hcl:"runner,block"`
	Healthcheck *healthcheckBlock `hcl:"healthcheck,block"`
	SocketIO    *socketIOBlock    `hcl:"socketio,block"`
}

type logBlock struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

type executorBlock struct {
	Backend   *string `hcl:"backend,optional"`
	Threads   *int    `hcl:"threads,optional"`
	StackSize *int    `hcl:"stack_size,optional"`
}

type runnerBlock struct {
	Mode            *string `hcl:"mode,optional"`
	Interval        *string `hcl:"interval,optional"`
	MaxTicks        *int64  `hcl:"max_ticks,optional"`
	ContinueOnError *bool   `hcl:"continue_on_error,optional"`
}

type healthcheckBlock struct {
	Port *int `hcl:"port,optional"`
}

type socketIOBlock struct {
	URL            *string `hcl:"url,optional"`
	Namespace      *string `hcl:"namespace,optional"`
	TickEvent      *string `hcl:"tick_event,optional"`
	ExitEvent      *string `hcl:"exit_event,optional"`
	AckEvent       *string `hcl:"ack_event,optional"`
	ConnectTimeout *string `hcl:"connect_timeout,optional"`
}

// Load is Read followed by Validate.
func Load(ctx context.Context, paths ...string) (*Config, error) {
	cfg, err := Read(ctx, paths...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Read reads every .hcl file under paths, in lexical order per path, and
// merges them over Default without validating the result, so that callers
// can apply further overrides first. A path that does not exist is skipped.
func Read(ctx context.Context, paths ...string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Config loader started.", "path_count", len(paths))

	evalCtx, err := newEvalContext(processEnviron())
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluation context: %w", err)
	}

	cfg := Default()
	parser := hclparse.NewParser()
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				logger.Debug("Config path does not exist, skipping.", "path", path)
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		files, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to list config files in %s: %w", path, err)
		}
		for _, file := range files {
			f, diags := parser.ParseHCLFile(file)
			if diags.HasErrors() {
				return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
			}
			if err := decodeInto(cfg, f.Body, evalCtx, file); err != nil {
				return nil, err
			}
			logger.Debug("Config file applied.", "file", file)
		}
	}
	return cfg, nil
}

// LoadBytes merges a single HCL document over Default and validates the
// result. filename is used in diagnostics only.
func LoadBytes(src []byte, filename string) (*Config, error) {
	evalCtx, err := newEvalContext(processEnviron())
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluation context: %w", err)
	}

	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	cfg := Default()
	if err := decodeInto(cfg, f.Body, evalCtx, filename); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func decodeInto(cfg *Config, body hcl.Body, evalCtx *hcl.EvalContext, filename string) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, evalCtx, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	if err := root.apply(cfg); err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	return nil
}

func (r *fileRoot) apply(cfg *Config) error {
	if b := r.Log; b != nil {
		set(&cfg.LogLevel, b.Level)
		set(&cfg.LogFormat, b.Format)
	}
	if b := r.Executor; b != nil {
		set(&cfg.Backend, b.Backend)
		set(&cfg.Threads, b.Threads)
		set(&cfg.StackSize, b.StackSize)
	}
	if b := r.Runner; b != nil {
		set(&cfg.Runner, b.Mode)
		if err := setDuration(&cfg.Interval, b.Interval, "runner interval"); err != nil {
			return err
		}
		if b.MaxTicks != nil {
			if *b.MaxTicks < 0 {
				return fmt.Errorf("invalid runner max_ticks %d: must not be negative", *b.MaxTicks)
			}
			cfg.MaxTicks = uint64(*b.MaxTicks)
		}
		set(&cfg.ContinueOnError, b.ContinueOnError)
	}
	if b := r.Healthcheck; b != nil {
		set(&cfg.HealthcheckPort, b.Port)
	}
	if b := r.SocketIO; b != nil {
		set(&cfg.SocketIO.URL, b.URL)
		set(&cfg.SocketIO.Namespace, b.Namespace)
		set(&cfg.SocketIO.TickEvent, b.TickEvent)
		set(&cfg.SocketIO.ExitEvent, b.ExitEvent)
		set(&cfg.SocketIO.AckEvent, b.AckEvent)
		if err := setDuration(&cfg.SocketIO.ConnectTimeout, b.ConnectTimeout, "socketio connect_timeout"); err != nil {
			return err
		}
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, what string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", what, *v, err)
	}
	*dst = d
	return nil
}
