// internal/lobby/lobby_store.go
package lobby

import (
	"sync"

	"github.com/google/uuid"
)

// Store manages lobbies in memory. All mutation of a lobby's state goes
// through the Lobby methods; the store only indexes them.
type Store struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*Lobby
}

// NewStore returns an in-memory lobby store.
func NewStore() *Store {
	return &Store{
		lobbies: make(map[uuid.UUID]*Lobby),
	}
}

// Add indexes the lobby. Typically the caller also sets OnEmpty so the
// lobby removes itself once the roster drains.
func (s *Store) Add(l *Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbies[l.ID] = l
}

// Get retrieves a lobby if it exists.
func (s *Store) Get(id uuid.UUID) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	return l, ok
}

// Delete removes the lobby from memory.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, id)
}

// Waiting returns snapshots of every lobby still accepting players.
func (s *Store) Waiting() []Lobby {
	s.mu.Lock()
	live := make([]*Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		live = append(live, l)
	}
	s.mu.Unlock()

	out := []Lobby{}
	for _, l := range live {
		if snap := l.Snapshot(); snap.Status == StatusWaiting {
			out = append(out, snap)
		}
	}
	return out
}
