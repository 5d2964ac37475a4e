package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds provider specs keyed by ID.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewRegistry creates a registry pre-filled with specs.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces a spec.
func (r *Registry) Register(s Spec) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[s.ID] = s
	return nil
}

// Remove drops specs by ID. Unknown IDs are ignored.
func (r *Registry) Remove(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.specs, id)
	}
}

// Get returns a spec by ID.
func (r *Registry) Get(id string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[id]
	if !ok {
		return Spec{}, fmt.Errorf("unknown provider: %s", id)
	}
	return s, nil
}

// List returns all registered IDs, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.specs))
	for id := range r.specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Specs returns all specs ordered by ID.
func (r *Registry) Specs() []Spec {
	ids := r.List()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.specs[id])
	}
	return out
}

// Select narrows the registry to the given IDs. An empty list keeps everything.
func (r *Registry) Select(ids []string) ([]Spec, error) {
	if len(ids) == 0 {
		return r.Specs(), nil
	}
	out := make([]Spec, 0, len(ids))
	for _, id := range ids {
		s, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ArtifactKeys maps endpoint name to provider ID for artifact file naming.
func ArtifactKeys(specs []Spec) map[string]string {
	keys := make(map[string]string, len(specs))
	for _, s := range specs {
		keys[s.Name] = s.ID
	}
	return keys
}
