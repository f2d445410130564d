// Package registry manages module lifecycle: registration, dependency
// resolution, initialization, and shutdown of llmgate modules.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/lingora-app/llmgate/pkg/module"
	"go.uber.org/zap"
)

// Registry manages the lifecycle of all registered modules.
type Registry struct {
	mu       sync.RWMutex
	modules  map[string]module.Module
	infos    map[string]module.Info
	order    []string // topological order after Validate
	started  []string // modules actually started, for reverse-order stop
	disabled map[string]bool
	logger   *zap.Logger
}

// New creates a new module registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		modules:  make(map[string]module.Module),
		infos:    make(map[string]module.Info),
		disabled: make(map[string]bool),
		logger:   logger,
	}
}

// Register adds a module to the registry. Must be called before Validate.
func (r *Registry) Register(m module.Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := m.Info()
	name := info.Name

	if name == "" {
		return fmt.Errorf("module has empty name")
	}
	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("module %q already registered", name)
	}

	r.modules[name] = m
	r.infos[name] = info
	r.logger.Info("module registered",
		zap.String("name", name),
		zap.String("version", info.Version),
	)
	return nil
}

// Validate checks that all declared dependencies exist and resolves the
// initialization order via topological sort, rejecting cycles.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, info := range r.infos {
		for _, dep := range info.Dependencies {
			if _, ok := r.modules[dep]; !ok {
				return fmt.Errorf("module %q depends on %q which is not registered", name, dep)
			}
		}
	}

	order, err := r.topologicalSort()
	if err != nil {
		return err
	}
	r.order = order

	r.logger.Info("module dependency resolution complete",
		zap.Strings("start_order", r.order),
	)
	return nil
}

// InitAll initializes all modules in dependency order. The depsFn callback
// builds the scoped Dependencies for each module by name.
func (r *Registry) InitAll(ctx context.Context, depsFn func(name string) module.Dependencies) error {
	r.mu.RLock()
	order := append([]string(nil), r.order...)
	r.mu.RUnlock()

	for _, name := range order {
		m := r.modules[name]
		if err := m.Init(ctx, depsFn(name)); err != nil {
			if r.infos[name].Required {
				return fmt.Errorf("init module %q: %w", name, err)
			}
			r.logger.Warn("optional module failed to initialize, disabling",
				zap.String("name", name),
				zap.Error(err),
			)
			r.mu.Lock()
			r.disabled[name] = true
			r.mu.Unlock()
			continue
		}
		r.logger.Info("module initialized", zap.String("name", name))
	}
	return nil
}

// StartAll starts all initialized modules in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	r.mu.Unlock()

	for _, name := range order {
		r.mu.RLock()
		skip := r.disabled[name]
		r.mu.RUnlock()
		if skip {
			continue
		}

		m := r.modules[name]
		if err := m.Start(ctx); err != nil {
			if r.infos[name].Required {
				return fmt.Errorf("start module %q: %w", name, err)
			}
			r.logger.Warn("optional module failed to start, disabling",
				zap.String("name", name),
				zap.Error(err),
			)
			r.mu.Lock()
			r.disabled[name] = true
			r.mu.Unlock()
			continue
		}
		r.mu.Lock()
		r.started = append(r.started, name)
		r.mu.Unlock()
		r.logger.Info("module started", zap.String("name", name))
	}
	return nil
}

// StopAll stops all started modules in reverse dependency order.
// Stop errors are logged, not propagated: shutdown keeps going.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	started := append([]string(nil), r.started...)
	r.mu.RUnlock()

	for i := len(started) - 1; i >= 0; i-- {
		name := started[i]
		if err := r.modules[name].Stop(ctx); err != nil {
			r.logger.Error("module stop failed",
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}
		r.logger.Info("module stopped", zap.String("name", name))
	}
}

// Get returns a module by name. Disabled modules are reported as absent.
func (r *Registry) Get(name string) (module.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.disabled[name] {
		return nil, false
	}
	m, ok := r.modules[name]
	return m, ok
}

// IsDisabled returns whether a module has been disabled.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disabled[name]
}

// All returns all active (non-disabled) modules in dependency order.
func (r *Registry) All() []module.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]module.Module, 0, len(r.order))
	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		out = append(out, r.modules[name])
	}
	return out
}

// AllRoutes returns HTTP routes from all modules implementing HTTPProvider,
// keyed by module name.
func (r *Registry) AllRoutes() map[string][]module.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string][]module.Route)
	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		if hp, ok := r.modules[name].(module.HTTPProvider); ok {
			routes[name] = hp.Routes()
		}
	}
	return routes
}

// topologicalSort returns module names in dependency order using Kahn's algorithm.
// Must be called with r.mu held.
func (r *Registry) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(r.modules))
	dependents := make(map[string][]string, len(r.modules))

	for name := range r.modules {
		inDegree[name] = 0
	}
	for name, info := range r.infos {
		for _, dep := range info.Dependencies {
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	var order []string
	for len(queue) > 0 {
		// Deterministic-enough: pop smallest name so start order is stable.
		min := 0
		for i := range queue {
			if queue[i] < queue[min] {
				min = i
			}
		}
		name := queue[min]
		queue = append(queue[:min], queue[min+1:]...)
		order = append(order, name)

		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(r.modules) {
		return nil, fmt.Errorf("module dependency cycle detected")
	}
	return order, nil
}
