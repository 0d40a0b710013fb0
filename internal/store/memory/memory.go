// Package memory is a ProfileStore that keeps everything in a map. It backs
// tests and deployments running with save_data disabled.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vovakirdan/wireroom-server/internal/store"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

// Store implements store.ProfileStore in memory.
type Store struct {
	mu       sync.RWMutex
	profiles map[wire.IdentityID]store.Profile
}

// New returns an empty store.
func New() *Store {
	return &Store{profiles: make(map[wire.IdentityID]store.Profile)}
}

// GetProfile retrieves a profile by id.
func (s *Store) GetProfile(_ context.Context, id wire.IdentityID) (*store.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

// PutProfile stores one profile.
func (s *Store) PutProfile(_ context.Context, p store.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}

// PutProfiles stores a batch.
func (s *Store) PutProfiles(_ context.Context, profiles []store.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return nil
}

// ListProfiles returns all profiles ordered by id.
func (s *Store) ListProfiles(_ context.Context) ([]store.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

var _ store.ProfileStore = (*Store)(nil)
