package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// healthStatus is the body served on /health.
type healthStatus struct {
	Status      string `json:"status"`
	Backend     string `json:"backend"`
	Ticks       uint64 `json:"ticks"`
	FailedTicks uint64 `json:"failed_ticks"`
	LastError   string `json:"last_error,omitempty"`
}

// healthHandler reports the App's tick counters. It answers 503 while the
// most recent tick failed.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)

	status := healthStatus{
		Status:      "ok",
		Backend:     string(a.backend),
		Ticks:       a.Ticks(),
		FailedTicks: a.FailedTicks(),
	}
	code := http.StatusOK
	if err := a.LastError(); err != nil {
		status.Status = "failing"
		status.LastError = err.Error()
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		a.logger.Warn("Failed to write health check response.", "error", err)
	}
}

// startHealthcheckServer runs the health check HTTP server in the background.
func (a *App) startHealthcheckServer(ctx context.Context) {
	a.logger.Debug("Configuring health check server.")
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)

	addr := fmt.Sprintf(":%d", a.healthcheckPort)
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	srv := a.httpServer
	go func() {
		a.logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		// ListenAndServe returns ErrServerClosed on graceful shutdown.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
}

// closeHealthcheckServer shuts the server down, waiting up to five seconds
// for in-flight requests even when ctx is already cancelled.
func (a *App) closeHealthcheckServer(ctx context.Context) error {
	if a.httpServer == nil {
		a.logger.Debug("Health check server was not running.")
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	a.logger.Info("🩺 Shutting down health check server...")
	err := a.httpServer.Shutdown(shutdownCtx)
	a.httpServer = nil
	if err != nil {
		return err
	}
	a.logger.Debug("Health check server shut down gracefully.")
	return nil
}
