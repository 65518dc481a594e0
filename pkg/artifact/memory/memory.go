// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/leseb/bedrock-gw/pkg/artifact"
	"github.com/leseb/bedrock-gw/pkg/provider"
)

func init() {
	artifact.Providers.Register("memory", func(_ context.Context, _ provider.Params) (artifact.Store, error) {
		return New(), nil
	})
}

// compile-time check
var _ artifact.Store = (*Store)(nil)

// Store is an in-memory artifact store.
type Store struct {
	mu    sync.RWMutex
	items map[string]*artifact.Artifact
}

// New creates a new in-memory artifact store.
func New() *Store {
	return &Store{items: make(map[string]*artifact.Artifact)}
}

// Put stores a copy of a, replacing any artifact with the same id.
func (s *Store) Put(_ context.Context, a *artifact.Artifact) error {
	if !artifact.ValidID(a.ID) {
		return fmt.Errorf("invalid artifact id %q", a.ID)
	}
	cp := *a
	cp.Content = slices.Clone(a.Content)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[a.ID] = &cp
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("artifact %s: %w", id, artifact.ErrNotFound)
	}
	cp := *a
	cp.Content = nil
	return &cp, nil
}

func (s *Store) Content(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("artifact %s: %w", id, artifact.ErrNotFound)
	}
	return slices.Clone(a.Content), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("artifact %s: %w", id, artifact.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

func (s *Store) List(_ context.Context, kind artifact.Kind, limit int) ([]*artifact.Artifact, error) {
	s.mu.RLock()
	all := make([]*artifact.Artifact, 0, len(s.items))
	for _, a := range s.items {
		if kind != "" && a.Kind != kind {
			continue
		}
		cp := *a
		cp.Content = nil
		all = append(all, &cp)
	}
	s.mu.RUnlock()

	return artifact.Newest(all, limit), nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(context.Context) error { return nil }
