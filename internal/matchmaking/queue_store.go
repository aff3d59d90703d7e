// internal/matchmaking/queue_store.go
package matchmaking

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmlee487/gambit/internal/models"
)

// EntryStatus is a queue entry's lifecycle status.
type EntryStatus string

const (
	EntryWaiting   EntryStatus = "waiting"
	EntryMatched   EntryStatus = "matched"
	EntryCancelled EntryStatus = "cancelled"
)

// Entry is a player's pending request to be matched into a new lobby.
// Rating is snapshotted at enqueue time.
type Entry struct {
	ID       uuid.UUID   `json:"id"`
	PlayerID uuid.UUID   `json:"playerId"`
	Rating   int         `json:"rating"`
	GameType string      `json:"gameType"`
	JoinedAt time.Time   `json:"joinedAt"`
	Status   EntryStatus `json:"status"`
	MatchID  uuid.UUID   `json:"matchId,omitempty"`
}

// QueueStore holds queue entries in memory. Only the processor and the
// join/leave/status API mutate it.
type QueueStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
}

func NewQueueStore() *QueueStore {
	return &QueueStore{
		entries: make(map[uuid.UUID]*Entry),
	}
}

// Join enqueues a player. A second waiting entry for the same
// (player, game type) pair is a state violation.
func (s *QueueStore) Join(playerID uuid.UUID, rating int, gameType string) (Entry, error) {
	if gameType == "" {
		return Entry{}, fmt.Errorf("missing game type: %w", models.ErrConflict)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.PlayerID == playerID && e.GameType == gameType && e.Status == EntryWaiting {
			return Entry{}, fmt.Errorf("already in queue for %s: %w", gameType, models.ErrConflict)
		}
	}

	e := &Entry{
		ID:       uuid.New(),
		PlayerID: playerID,
		Rating:   rating,
		GameType: gameType,
		JoinedAt: time.Now(),
		Status:   EntryWaiting,
	}
	s.entries[e.ID] = e
	return *e, nil
}

// Leave cancels the player's waiting entries and returns their ids.
// Advisory-cooperative: a matchmaking pass that already read an entry
// will have its match rejected at commit by CommitMatch's status
// re-check.
func (s *QueueStore) Leave(playerID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cancelled []uuid.UUID
	for _, e := range s.entries {
		if e.PlayerID == playerID && e.Status == EntryWaiting {
			e.Status = EntryCancelled
			cancelled = append(cancelled, e.ID)
		}
	}
	if len(cancelled) == 0 {
		return nil, fmt.Errorf("not in queue: %w", models.ErrNotFound)
	}
	return cancelled, nil
}

// QueueStatus is the view returned to a queued player. Once the entry is
// matched, MatchID carries the lobby to join.
type QueueStatus struct {
	Status     EntryStatus `json:"status"`
	Position   int         `json:"position"`
	WaitTimeMs int64       `json:"waitTimeMs"`
	GameType   string      `json:"gameType"`
	MatchID    uuid.UUID   `json:"matchId,omitempty"`
}

// Status reports the player's waiting entry: position is the number of
// waiting entries for the same game type, wait time is age since enqueue.
// With no waiting entry, the most recent matched entry is reported so a
// polling client learns its lobby.
func (s *QueueStore) Status(playerID uuid.UUID) (QueueStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mine *Entry
	for _, e := range s.entries {
		if e.PlayerID != playerID {
			continue
		}
		if e.Status == EntryWaiting {
			mine = e
			break
		}
		if e.Status == EntryMatched && (mine == nil || e.JoinedAt.After(mine.JoinedAt)) {
			mine = e
		}
	}
	if mine == nil {
		return QueueStatus{}, fmt.Errorf("not in queue: %w", models.ErrNotFound)
	}
	if mine.Status == EntryMatched {
		return QueueStatus{
			Status:     EntryMatched,
			WaitTimeMs: time.Since(mine.JoinedAt).Milliseconds(),
			GameType:   mine.GameType,
			MatchID:    mine.MatchID,
		}, nil
	}

	count := 0
	for _, e := range s.entries {
		if e.GameType == mine.GameType && e.Status == EntryWaiting {
			count++
		}
	}
	return QueueStatus{
		Status:     EntryWaiting,
		Position:   count,
		WaitTimeMs: time.Since(mine.JoinedAt).Milliseconds(),
		GameType:   mine.GameType,
	}, nil
}

// Waiting returns snapshots of waiting entries no older than maxAge,
// sorted by join time. Stale entries are skipped, not cancelled: the
// explicit leave path is the only way out of the queue.
func (s *QueueStore) Waiting(maxAge time.Duration) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var out []Entry
	for _, e := range s.entries {
		if e.Status == EntryWaiting && !e.JoinedAt.Before(cutoff) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

// CommitMatch atomically marks every entry matched with the lobby id. It
// re-checks that each member is still waiting; if any has been cancelled
// or matched since the tick read it, nothing is committed and the caller
// must abort the match.
func (s *QueueStore) CommitMatch(entryIDs []uuid.UUID, matchID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range entryIDs {
		e, ok := s.entries[id]
		if !ok {
			return fmt.Errorf("queue entry %s: %w", id, models.ErrNotFound)
		}
		if e.Status != EntryWaiting {
			return fmt.Errorf("queue entry %s is %s: %w", id, e.Status, models.ErrConflict)
		}
	}
	for _, id := range entryIDs {
		s.entries[id].Status = EntryMatched
		s.entries[id].MatchID = matchID
	}
	return nil
}
