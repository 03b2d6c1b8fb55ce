// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/jason-s-yu/squadup/internal/models"
)

// MemoryStore keeps lobbies in a process-local map. Records are copied on the
// way in and out so callers never share member slices with the store.
type MemoryStore struct {
	mu      sync.RWMutex             // Protects access to the lobbies map.
	lobbies map[string]*models.Lobby // Map of lobby ID to the stored copy.
}

// NewMemoryStore initializes and returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lobbies: make(map[string]*models.Lobby),
	}
}

// Find returns copies of all lobbies sorted by creation time, newest first.
func (s *MemoryStore) Find(ctx context.Context) ([]*models.Lobby, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*models.Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		out = append(out, l.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FindByID returns a copy of the lobby or ErrNotFound.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*models.Lobby, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lobbies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return l.Clone(), nil
}

// Save stores a copy of the lobby. Members already stored are kept even if the
// incoming record omits them, matching the append-only contract of the SQL stores.
func (s *MemoryStore) Save(ctx context.Context, lobby *models.Lobby) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := lobby.Clone()
	if prev, ok := s.lobbies[lobby.ID]; ok {
		next.Members = mergeMembers(prev.Members, next.Members)
	}
	s.lobbies[lobby.ID] = next
	return nil
}

// mergeMembers appends the entries of incoming whose user is not in existing.
func mergeMembers(existing, incoming []models.Member) []models.Member {
	seen := make(map[string]struct{}, len(existing))
	out := append([]models.Member(nil), existing...)
	for _, m := range existing {
		seen[m.UserID] = struct{}{}
	}
	for _, m := range incoming {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		out = append(out, m)
	}
	return out
}
