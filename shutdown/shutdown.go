// Package shutdown cancels a context on SIGINT or SIGTERM after running
// registered hooks.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler owns one signal subscription.
type Handler struct {
	mu      sync.Mutex
	hooks   []func()
	signals chan os.Signal
	cancel  context.CancelFunc
	once    sync.Once
}

// Setup subscribes to SIGINT and SIGTERM and returns a context that is
// canceled when one arrives or Shutdown is called. Call Stop when done.
func Setup(parent context.Context) (context.Context, *Handler) {
	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		signals: make(chan os.Signal, 1),
		cancel:  cancel,
	}

	signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-h.signals:
			slog.Warn("Received " + sig.String() + ", shutting down...")
			h.Shutdown()
		case <-ctx.Done():
		}
	}()

	return ctx, h
}

// BeforeShutdown registers fn to run before the context is canceled. Hooks run
// in registration order, at most once.
func (h *Handler) BeforeShutdown(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hooks = append(h.hooks, fn)
}

// Shutdown runs the hooks and cancels the context, as a signal would.
func (h *Handler) Shutdown() {
	h.once.Do(func() {
		h.mu.Lock()
		hooks := h.hooks
		h.hooks = nil
		h.mu.Unlock()

		for _, fn := range hooks {
			fn()
		}

		h.cancel()
	})
}

// Stop unsubscribes from signals and cancels the context without running hooks.
func (h *Handler) Stop() {
	signal.Stop(h.signals)
	h.cancel()
}
