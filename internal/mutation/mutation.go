package mutation

import (
	"context"
	"sync"

	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/logger"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/query"
)

// Notifier is told about every key a successful mutation invalidated
type Notifier interface {
	Announce(key query.Key)
}

// Config describes a write against a remote service and the cached queries
// it makes stale.
type Config[In, Out any] struct {
	Name  string
	Cache *query.Cache
	Do    func(ctx context.Context, in In) (Out, error)
	// Invalidates returns the keys to invalidate after Do succeeds
	Invalidates func(in In, out Out) []query.Key
	// Notifier, if set, announces the invalidated keys to other instances
	Notifier Notifier
}

// Mutation runs a write, invalidates what it affected on success and reports
// the outcome to its hooks. It never retries.
type Mutation[In, Out any] struct {
	cfg Config[In, Out]

	mu        sync.Mutex
	pending   int
	onSuccess []func(In, Out)
	onError   []func(In, error)
}

// New creates a mutation from cfg
func New[In, Out any](cfg Config[In, Out]) *Mutation[In, Out] {
	if cfg.Name == "" {
		cfg.Name = "mutation"
	}
	return &Mutation[In, Out]{cfg: cfg}
}

// OnSuccess registers fn to run after a successful write and its invalidations
func (m *Mutation[In, Out]) OnSuccess(fn func(In, Out)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSuccess = append(m.onSuccess, fn)
}

// OnError registers fn to run after a failed write
func (m *Mutation[In, Out]) OnError(fn func(In, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = append(m.onError, fn)
}

// Pending reports whether a write is in flight
func (m *Mutation[In, Out]) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending > 0
}

// Trigger performs the write for in
func (m *Mutation[In, Out]) Trigger(ctx context.Context, in In) (Out, error) {
	m.mu.Lock()
	m.pending++
	m.mu.Unlock()

	out, err := m.cfg.Do(ctx, in)

	m.mu.Lock()
	m.pending--
	onSuccess := append([]func(In, Out){}, m.onSuccess...)
	onError := append([]func(In, error){}, m.onError...)
	m.mu.Unlock()

	if err != nil {
		logger.Warn("Mutation failed", "mutation", m.cfg.Name, "error", err)
		for _, fn := range onError {
			fn(in, err)
		}
		return out, err
	}

	var keys []query.Key
	if m.cfg.Invalidates != nil {
		keys = m.cfg.Invalidates(in, out)
	}
	for _, key := range keys {
		if m.cfg.Cache != nil {
			m.cfg.Cache.Invalidate(key)
		}
		if m.cfg.Notifier != nil {
			m.cfg.Notifier.Announce(key)
		}
	}
	logger.Info("Mutation succeeded", "mutation", m.cfg.Name, "invalidated", len(keys))

	for _, fn := range onSuccess {
		fn(in, out)
	}
	return out, nil
}
