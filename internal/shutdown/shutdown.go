// Package shutdown coordinates graceful termination on OS signals.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/seolens/seolens/internal/logger"
)

// Callback is a named cleanup function. Callbacks run in LIFO order.
type Callback struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Handler listens for termination signals, cancels its context, and
// runs registered callbacks with a bounded grace period.
type Handler struct {
	mu        sync.Mutex
	callbacks []Callback
	timeout   time.Duration
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New creates a handler with the given grace period for callbacks.
func New(timeout time.Duration, log *logger.Logger) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewDefault()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		timeout: timeout,
		log:     log.WithComponent("shutdown"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Register adds a cleanup callback. Later registrations run first.
func (h *Handler) Register(name string, fn func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, Callback{Name: name, Fn: fn})
}

// Context returns a context cancelled when shutdown begins.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Listen starts watching for SIGINT and SIGTERM. A second signal exits
// immediately.
func (h *Handler) Listen() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			h.log.Infof("received %s, shutting down", sig)
			go func() {
				<-sigCh
				h.log.Warn("second signal, exiting immediately")
				os.Exit(1)
			}()
			h.Trigger()
		case <-h.ctx.Done():
		}
	}()
}

// Trigger starts shutdown without a signal.
func (h *Handler) Trigger() {
	h.once.Do(func() {
		h.cancel()
		go h.run()
	})
}

// Wait blocks until all callbacks have finished.
func (h *Handler) Wait() {
	<-h.ctx.Done()
	h.Trigger()
	<-h.done
}

// run executes callbacks in LIFO order under the grace period.
func (h *Handler) run() {
	defer close(h.done)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	callbacks := make([]Callback, len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.mu.Unlock()

	for i := len(callbacks) - 1; i >= 0; i-- {
		cb := callbacks[i]
		select {
		case <-ctx.Done():
			h.log.Warnf("grace period expired, skipping %q", cb.Name)
			continue
		default:
		}

		if err := h.runOne(ctx, cb); err != nil {
			h.log.WithError(err).Warnf("cleanup %q failed", cb.Name)
		}
	}
}

// runOne runs a single callback, bounding it by the shared deadline.
func (h *Handler) runOne(ctx context.Context, cb Callback) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- cb.Fn(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("cleanup %q timed out", cb.Name)
	}
}
