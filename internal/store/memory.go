package store

import (
	"context"
	"sync"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

// MemStore is an in-memory Store. It is safe for concurrent use and hands
// out deep copies so callers never share state with the store.
type MemStore struct {
	mu       sync.RWMutex
	projects map[string]blueprint.Project
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns a MemStore seeded with the given projects.
func NewMemStore(seed ...blueprint.Project) *MemStore {
	s := &MemStore{projects: make(map[string]blueprint.Project, len(seed))}
	for _, p := range seed {
		s.projects[p.ID] = p.Clone()
	}
	return s
}

// Load returns a copy of every stored project.
func (s *MemStore) Load(_ context.Context) ([]blueprint.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]blueprint.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	sortProjects(out)
	return out, nil
}

// Save stores a copy of p.
func (s *MemStore) Save(_ context.Context, p blueprint.Project) error {
	if err := p.Validate(); err != nil {
		return &WriteError{Backend: "memory", ProjectID: p.ID, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p.Clone()
	return nil
}

// Delete removes the project with the given id.
func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }
