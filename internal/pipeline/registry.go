package pipeline

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors for the stage graph.
var (
	// ErrStageAlreadyRegistered is returned when registering a duplicate stage.
	ErrStageAlreadyRegistered = errors.New("stage already registered")

	// ErrUnknownStage is returned for stage ids outside the graph.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrDependencyCycle is returned when stage dependencies form a cycle.
	ErrDependencyCycle = errors.New("dependency cycle detected")
)

// Registry holds the stage graph.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
	order  []string // Registration order
}

// NewRegistry creates an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds a stage to the registry.
func (r *Registry) Register(s Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.stages[name]; exists {
		return fmt.Errorf("%w: %s", ErrStageAlreadyRegistered, name)
	}
	r.stages[name] = s
	r.order = append(r.order, name)
	return nil
}

// Get returns a stage by name.
func (r *Registry) Get(name string) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	return s, ok
}

// Names returns all stage names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Ordered returns stage names sorted by dependencies, keeping registration
// order among stages at the same level.
func (r *Registry) Ordered() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inDegree := make(map[string]int, len(r.order))
	for _, name := range r.order {
		for _, dep := range r.stages[name].Dependencies() {
			if _, ok := r.stages[dep]; !ok {
				return nil, fmt.Errorf("%w: stage %q depends on %q", ErrUnknownStage, name, dep)
			}
			inDegree[name]++
		}
	}

	var queue, ordered []string
	for _, name := range r.order {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		ordered = append(ordered, name)

		for _, other := range r.order {
			for _, dep := range r.stages[other].Dependencies() {
				if dep == name {
					inDegree[other]--
					if inDegree[other] == 0 {
						queue = append(queue, other)
					}
				}
			}
		}
	}

	if len(ordered) != len(r.stages) {
		return nil, ErrDependencyCycle
	}
	return ordered, nil
}

// Validate checks that every dependency and parent exists and the graph is acyclic.
func (r *Registry) Validate() error {
	r.mu.RLock()
	for name, stage := range r.stages {
		if p := stage.Parent(); p != "" {
			if _, ok := r.stages[p]; !ok {
				r.mu.RUnlock()
				return fmt.Errorf("%w: stage %q has parent %q", ErrUnknownStage, name, p)
			}
		}
	}
	r.mu.RUnlock()

	_, err := r.Ordered()
	return err
}

// DependentsOf returns the stages that directly depend on name, in
// registration order.
func (r *Registry) DependentsOf(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, other := range r.order {
		for _, dep := range r.stages[other].Dependencies() {
			if dep == name {
				out = append(out, other)
				break
			}
		}
	}
	return out
}

// Downstream returns every stage invalidated when name is rerun: its
// transitive dependents, and for a sub-step also its parent and the
// parent's dependents. The result is in registration order and excludes name.
func (r *Registry) Downstream(name string) []string {
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		next := r.DependentsOf(cur)
		if s, ok := r.Get(cur); ok && s.Parent() != "" {
			next = append(next, s.Parent())
		}
		for _, n := range next {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}

	var out []string
	for _, n := range r.Names() {
		if n != name && seen[n] {
			out = append(out, n)
		}
	}
	return out
}
