// Package deps tracks module build ordering for a single run.
//
// A Manager holds the chosen module subset in three states: pending (waiting
// on dependencies), in-flight (handed out via Buildable), and completed. The
// buildable frontier is the set of pending modules whose entire dependency
// set has completed; Complete is the only mutation that can grow it.
package deps

import (
	"errors"

	"github.com/anvilbuild/anvil/internal/dist"
	"github.com/anvilbuild/anvil/internal/graph"
)

// ErrNoModules is returned when a Manager is created with nothing to build.
var ErrNoModules = errors.New("deps: no modules to build")

// Manager computes module ordering from the dependency graph. It is mutated
// only by the single orchestrator loop; workers never touch it.
type Manager struct {
	buildable map[string]*dist.Module
	// blocked maps a pending module to the dependency names it still waits
	// for. An entry is removed once its set drains, at which point the
	// module joins the buildable frontier.
	blocked map[*dist.Module]map[string]struct{}
	// dependents is the reverse edge map, for fast Complete updates.
	dependents map[string][]*dist.Module
}

// NewManager creates a Manager over the given module subset. The subset must
// be dependency-closed (every dependency of a member is a member); the
// closure computation in graph.Closure is the authoritative cycle and
// unknown-name detector, so it is re-run here to guarantee the graph shape
// before any scheduling state is derived.
func NewManager(modules []*dist.Module) (*Manager, error) {
	if len(modules) == 0 {
		return nil, ErrNoModules
	}

	byName := make(map[string]*dist.Module, len(modules))
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		byName[m.Name] = m
		names = append(names, m.Name)
	}
	depsOf := func(name string) ([]string, bool) {
		m, ok := byName[name]
		if !ok {
			return nil, false
		}
		return m.Deps, true
	}
	if _, err := graph.Closure(names, depsOf); err != nil {
		return nil, err
	}

	mgr := &Manager{
		buildable:  make(map[string]*dist.Module),
		blocked:    make(map[*dist.Module]map[string]struct{}),
		dependents: make(map[string][]*dist.Module),
	}
	for _, m := range modules {
		if len(m.Deps) == 0 {
			mgr.buildable[m.Name] = m
			continue
		}
		waiting := make(map[string]struct{}, len(m.Deps))
		for _, dep := range m.Deps {
			waiting[dep] = struct{}{}
			mgr.dependents[dep] = append(mgr.dependents[dep], m)
		}
		mgr.blocked[m] = waiting
	}
	return mgr, nil
}

// Buildable returns the modules ready to be dispatched and removes them from
// the frontier: the caller is assumed to start those builds, and an active
// build must not be handed out twice.
func (m *Manager) Buildable() []*dist.Module {
	out := make([]*dist.Module, 0, len(m.buildable))
	for _, mod := range m.buildable {
		out = append(out, mod)
	}
	m.buildable = make(map[string]*dist.Module)
	return out
}

// HasBuildable reports whether the frontier is non-empty without draining it.
func (m *Manager) HasBuildable() bool {
	return len(m.buildable) > 0
}

// Complete records that the given module finished installing and moves any
// dependent whose last unmet dependency this was onto the buildable frontier.
func (m *Manager) Complete(mod *dist.Module) {
	for _, dependent := range m.dependents[mod.Name] {
		waiting, ok := m.blocked[dependent]
		if !ok {
			continue
		}
		delete(waiting, mod.Name)
		if len(waiting) > 0 {
			continue
		}
		delete(m.blocked, dependent)
		m.buildable[dependent.Name] = dependent
	}
}

// NumBlocked reports how many modules are still waiting on dependencies.
func (m *Manager) NumBlocked() int {
	return len(m.blocked)
}
