// Package shutdown holds termination hooks owned by the surrounding application.
//
// Executors register a hook that kills their worker. The application decides
// when the hooks run, typically on SIGINT or SIGTERM, by calling RunAll or
// by wiring the registry to a context with RunOnDone. The library never
// installs process-wide signal handlers on its own.
package shutdown

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// Registerer accepts termination hooks.
//
// Register returns a function that removes the hook again; calling it more
// than once is harmless.
type Registerer interface {
	Register(hook func()) (unregister func())
}

// Hooks is a Registerer whose hooks run when RunAll is called.
type Hooks struct {
	log   *slog.Logger
	mu    sync.Mutex
	next  uint64
	hooks map[uint64]func()
	ran   bool
}

// Compile-time verification that Hooks implements Registerer.
var _ Registerer = (*Hooks)(nil)

// NewHooks creates an empty registry. A nil log discards output.
func NewHooks(log *slog.Logger) *Hooks {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Hooks{
		log:   log.With("component", "shutdown_hooks"),
		hooks: make(map[uint64]func()),
	}
}

// Register adds a hook. A hook registered after RunAll runs immediately.
func (h *Hooks) Register(hook func()) func() {
	h.mu.Lock()

	if h.ran {
		h.mu.Unlock()
		hook()

		return func() {}
	}

	id := h.next
	h.next++
	h.hooks[id] = hook

	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		delete(h.hooks, id)
	}
}

// Len returns the number of registered hooks.
func (h *Hooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.hooks)
}

// RunAll runs and removes every registered hook. Only the first call has
// an effect.
func (h *Hooks) RunAll() {
	h.mu.Lock()

	if h.ran {
		h.mu.Unlock()

		return
	}

	h.ran = true
	pending := h.hooks
	h.hooks = make(map[uint64]func())

	h.mu.Unlock()

	h.log.Debug("Running termination hooks", "count", len(pending))

	for _, hook := range pending {
		hook()
	}
}

// RunOnDone runs all hooks once ctx is done. The returned stop function
// releases the watcher without running the hooks.
func (h *Hooks) RunOnDone(ctx context.Context) (stop func()) {
	stopCh := make(chan struct{})

	var once sync.Once

	go func() {
		select {
		case <-ctx.Done():
			select {
			case <-stopCh:
				return
			default:
			}

			h.RunAll()
		case <-stopCh:
		}
	}()

	return func() {
		once.Do(func() { close(stopCh) })
	}
}
