// Package engine provides the built-in decision engines and the factory
// registry that the competition runtime uses to construct one engine instance
// per agent. Hosts can register additional engines before the runtime starts;
// anything satisfying domain.DecisionEngine competes on equal footing.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/alanyoungcy/paperarena/internal/domain"
)

// Factory constructs a decision engine instance from per-agent parameters.
type Factory func(params map[string]any, logger *slog.Logger) (domain.DecisionEngine, error)

// Registry manages named decision-engine factories. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with the built-in engines.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("momentum", func(params map[string]any, logger *slog.Logger) (domain.DecisionEngine, error) {
		return NewMomentum(params, logger), nil
	})
	r.Register("hold", func(_ map[string]any, logger *slog.Logger) (domain.DecisionEngine, error) {
		return NewHold(logger), nil
	})
	return r
}

// Register adds a factory under the given name, replacing any existing one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Build constructs an engine for one agent from its spec.
func (r *Registry) Build(spec domain.AgentSpec, logger *slog.Logger) (domain.DecisionEngine, error) {
	r.mu.RLock()
	f, ok := r.factories[spec.Engine]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engine %q for agent %s: %w", spec.Engine, spec.ID, domain.ErrEngineNotFound)
	}
	eng, err := f(spec.Params, logger.With(slog.String("engine", spec.Engine), slog.String("agent", spec.ID)))
	if err != nil {
		return nil, fmt.Errorf("build engine %q for agent %s: %w", spec.Engine, spec.ID, err)
	}
	return eng, nil
}

// List returns the registered engine names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
