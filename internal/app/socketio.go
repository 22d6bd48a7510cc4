package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// SocketIOConfig controls RunSocketIO.
type SocketIOConfig struct {
	// URL of the socket.io endpoint, e.g. "ws://localhost:3000/socket.io/".
	URL       string
	Namespace string
	// TickEvent triggers one main tick per received message. Defaults to "tick".
	TickEvent string
	// ExitEvent stops the driver. Defaults to "exit".
	ExitEvent string
	// AckEvent, when set, is emitted after every tick with the tick number
	// and an error message, if any.
	AckEvent string
	// ConnectTimeout bounds the wait for the initial connection. Defaults to
	// 10s.
	ConnectTimeout     time.Duration
	InsecureSkipVerify bool
	// ContinueOnError keeps the driver running after a failed tick.
	ContinueOnError bool
}

func (c SocketIOConfig) withDefaults() SocketIOConfig {
	if c.Namespace == "" {
		c.Namespace = "/"
	}
	if c.TickEvent == "" {
		c.TickEvent = "tick"
	}
	if c.ExitEvent == "" {
		c.ExitEvent = "exit"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	return c
}

// tickAck is the payload of AckEvent.
type tickAck struct {
	Tick  uint64 `json:"tick"`
	Error string `json:"error,omitempty"`
}

// remoteLink carries what the socket callbacks observed to the driver
// goroutine.
type remoteLink struct {
	connected <-chan struct{}
	ticks     <-chan struct{}
	exit      <-chan struct{}
	errs      <-chan error
}

// tickQueueSize bounds the number of tick events waiting to be served. Events
// arriving while the queue is full are dropped with a warning.
const tickQueueSize = 64

// RunSocketIO returns a driver that connects to a socket.io server and runs
// one main tick for each TickEvent it receives. Ticks run one at a time on
// the driver's goroutine in arrival order. The driver stops on ExitEvent, an
// AppExit request, or when ctx is done.
func RunSocketIO(cfg SocketIOConfig) Runner {
	cfg = cfg.withDefaults()
	return func(ctx context.Context, a *App) error {
		logger := a.Logger().With("driver", "socketio", "url", cfg.URL, "namespace", cfg.Namespace)
		logger.Debug("Socket.IO driver started.")
		defer logger.Debug("Socket.IO driver finished.")

		parsedURL, err := url.Parse(cfg.URL)
		if err != nil {
			return fmt.Errorf("failed to parse URL: %w", err)
		}
		if parsedURL.Scheme == "" || parsedURL.Host == "" {
			return fmt.Errorf("invalid socket.io URL %q", cfg.URL)
		}

		baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
		opts := socket.DefaultOptions()
		if parsedURL.Path != "" {
			opts.SetPath(parsedURL.Path)
		}
		if cfg.InsecureSkipVerify {
			logger.Warn("Skipping TLS certificate verification")
			opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
		}
		opts.SetTransports(types.NewSet(transports.WebSocket))

		manager := socket.NewManager(baseURL, opts)
		io := manager.Socket(cfg.Namespace, opts)
		defer func() {
			logger.Debug("Disconnecting socket client")
			io.Disconnect()
		}()

		connected := make(chan struct{})
		ticks := make(chan struct{}, tickQueueSize)
		exit := make(chan struct{})
		connErrs := make(chan error, 1)
		var connectOnce, exitOnce sync.Once

		io.On(types.EventName("connect"), func(...any) {
			logger.Info("Successfully connected", "sid", io.Id())
			connectOnce.Do(func() { close(connected) })
		})
		io.On(types.EventName("connect_error"), func(errs ...any) {
			err := errors.New("connect_error")
			if len(errs) > 0 {
				if e, ok := errs[0].(error); ok {
					err = e
				}
			}
			select {
			case connErrs <- err:
			default:
			}
		})
		io.On(types.EventName(cfg.TickEvent), func(...any) {
			select {
			case ticks <- struct{}{}:
			default:
				logger.Warn("Tick queue full, dropping event.", "event", cfg.TickEvent)
			}
		})
		io.On(types.EventName(cfg.ExitEvent), func(...any) {
			exitOnce.Do(func() { close(exit) })
		})

		io.Connect()

		var ack func(tickAck)
		if cfg.AckEvent != "" {
			ack = func(t tickAck) { io.Emit(cfg.AckEvent, t) }
		}
		link := remoteLink{connected: connected, ticks: ticks, exit: exit, errs: connErrs}
		return driveRemote(ctx, a, logger, cfg, link, ack)
	}
}

// driveRemote serves the link until the remote side, the App or ctx ends the
// run. It is separate from the transport so it can run against plain
// channels.
func driveRemote(ctx context.Context, a *App, logger *slog.Logger, cfg SocketIOConfig, link remoteLink, ack func(tickAck)) error {
	connectTimer := time.NewTimer(cfg.ConnectTimeout)
	defer connectTimer.Stop()
	connected := link.connected

	for {
		select {
		case <-ctx.Done():
			logger.Info("Socket.IO driver stopped by context.")
			return nil

		case <-connectTimer.C:
			return fmt.Errorf("timed out after %s waiting for initial connection", cfg.ConnectTimeout)

		case <-connected:
			connectTimer.Stop()
			connected = nil

		case err := <-link.errs:
			if connected != nil {
				return fmt.Errorf("socket.io connection failed: %w", err)
			}
			logger.Warn("Socket.IO connection error.", "error", err)

		case <-link.exit:
			logger.Info("Socket.IO driver stopped by exit event.", "event", cfg.ExitEvent)
			return nil

		case <-link.ticks:
			err := a.Update(ctx)
			if ack != nil {
				msg := tickAck{Tick: a.Ticks()}
				if err != nil {
					msg.Error = err.Error()
				}
				ack(msg)
			}
			if err != nil {
				if ctx.Err() != nil {
					logger.Info("Socket.IO driver stopped by context.")
					return nil
				}
				if !cfg.ContinueOnError {
					return err
				}
				logger.Error("Tick failed, continuing.", "error", err)
			}
			if consumeExit(a.State()) {
				logger.Info("Socket.IO driver stopped by exit request.")
				return nil
			}
		}
	}
}
