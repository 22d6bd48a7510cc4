package testutil

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/vk/tickgrid/internal/ctxlog"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// VerboseLogs reports whether test logs should be echoed to stderr.
func VerboseLogs() bool {
	return os.Getenv("TICKGRID_TEST_LOGS") == "true"
}

// NewLogger returns a debug-level text logger writing into a SafeBuffer. When
// TICKGRID_TEST_LOGS=true the output is also copied to stderr.
func NewLogger(t *testing.T) (*slog.Logger, *SafeBuffer) {
	t.Helper()

	buf := &SafeBuffer{}
	var w io.Writer = buf
	if VerboseLogs() {
		w = io.MultiWriter(buf, os.Stderr)
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), buf
}

// Context returns a context carrying a test logger, cancelled when the test
// ends.
func Context(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()

	logger, buf := NewLogger(t)
	ctx, cancel := context.WithCancel(ctxlog.WithLogger(context.Background(), logger))
	t.Cleanup(cancel)
	return ctx, buf
}
