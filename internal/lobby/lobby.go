// internal/lobby/lobby.go
package lobby

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmlee487/gambit/internal/auth"
	"github.com/jmlee487/gambit/internal/models"
)

// Status is the lobby lifecycle status. Transitions only move forward:
// waiting -> playing -> finished.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

const (
	MinCapacity     = 2
	MaxCapacity     = 8
	DefaultCapacity = 4
)

// RosterEntry is one seated player. JoinedAt orders host promotion.
type RosterEntry struct {
	PlayerID    uuid.UUID `json:"playerId"`
	DisplayName string    `json:"displayName"`
	Ready       bool      `json:"ready"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Lobby is the pre-game grouping of players negotiating readiness. It is
// distinct from the Session it produces on Start: the lobby is metadata,
// the session is the authoritative match record.
type Lobby struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	HostID   uuid.UUID `json:"hostId"`
	Capacity int       `json:"maxPlayers"`
	GameType string    `json:"gameType"`
	Private  bool      `json:"isPrivate"`
	Status   Status    `json:"status"`

	// PasswordHash is the argon2id hash of the join password for private
	// lobbies. Never serialized.
	PasswordHash string `json:"-"`

	Roster    []RosterEntry `json:"currentPlayers"`
	CreatedAt time.Time     `json:"createdAt"`

	// SessionID references the session created by Start, once playing.
	SessionID uuid.UUID `json:"sessionId,omitempty"`

	// OnEmpty is called after the last player leaves, typically
	//   lobby.OnEmpty = func(id uuid.UUID) { store.Delete(id) }
	OnEmpty func(lobbyID uuid.UUID) `json:"-"`

	mu sync.Mutex
}

// New creates a lobby with the host seated. Capacity zero takes the
// default; out-of-range capacity is a state violation.
func New(hostID uuid.UUID, hostName, lobbyName, gameType string, capacity int, private bool, password string) (*Lobby, error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < MinCapacity || capacity > MaxCapacity {
		return nil, fmt.Errorf("capacity %d out of range [%d,%d]: %w", capacity, MinCapacity, MaxCapacity, models.ErrConflict)
	}
	if gameType == "" {
		return nil, fmt.Errorf("missing game type: %w", models.ErrConflict)
	}

	l := &Lobby{
		ID:        uuid.New(),
		Name:      lobbyName,
		HostID:    hostID,
		Capacity:  capacity,
		GameType:  gameType,
		Private:   private,
		Status:    StatusWaiting,
		CreatedAt: time.Now(),
		Roster: []RosterEntry{{
			PlayerID:    hostID,
			DisplayName: hostName,
			JoinedAt:    time.Now(),
		}},
	}
	if private && password != "" {
		hash, err := auth.CreateHash(password, auth.Params)
		if err != nil {
			return nil, fmt.Errorf("hash lobby password: %w", err)
		}
		l.PasswordHash = hash
	}
	return l, nil
}

// indexOf returns the roster index of playerID or -1. Caller holds mu.
func (l *Lobby) indexOf(playerID uuid.UUID) int {
	for i, e := range l.Roster {
		if e.PlayerID == playerID {
			return i
		}
	}
	return -1
}

// canJoinLocked checks every join precondition. Caller holds mu.
func (l *Lobby) canJoinLocked(playerID uuid.UUID, password string) error {
	if l.Status != StatusWaiting {
		return fmt.Errorf("lobby is not accepting players: %w", models.ErrConflict)
	}
	if len(l.Roster) >= l.Capacity {
		return fmt.Errorf("lobby is full: %w", models.ErrConflict)
	}
	if l.indexOf(playerID) >= 0 {
		return fmt.Errorf("already in lobby: %w", models.ErrConflict)
	}
	if l.Private && l.PasswordHash != "" {
		ok, err := auth.ComparePasswordAndHash(password, l.PasswordHash)
		if err != nil || !ok {
			return fmt.Errorf("wrong lobby password: %w", models.ErrConflict)
		}
	}
	return nil
}

// CanJoin reports whether playerID could join with the given password.
func (l *Lobby) CanJoin(playerID uuid.UUID, password string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.canJoinLocked(playerID, password) == nil
}

// AddPlayer seats a player if every join precondition holds. The roster
// never grows past capacity, even under a rejected join.
func (l *Lobby) AddPlayer(playerID uuid.UUID, displayName, password string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.canJoinLocked(playerID, password); err != nil {
		return err
	}
	l.Roster = append(l.Roster, RosterEntry{
		PlayerID:    playerID,
		DisplayName: displayName,
		JoinedAt:    time.Now(),
	})
	return nil
}

// RemovePlayer unseats a player. Removing the host promotes the earliest
// remaining joiner; removing the last player fires OnEmpty. After a
// non-empty removal there is always exactly one host.
func (l *Lobby) RemovePlayer(playerID uuid.UUID) error {
	l.mu.Lock()

	idx := l.indexOf(playerID)
	if idx < 0 {
		l.mu.Unlock()
		return fmt.Errorf("player %s not in lobby: %w", playerID, models.ErrNotFound)
	}
	l.Roster = append(l.Roster[:idx], l.Roster[idx+1:]...)

	empty := len(l.Roster) == 0
	if !empty && l.HostID == playerID {
		earliest := 0
		for i := 1; i < len(l.Roster); i++ {
			if l.Roster[i].JoinedAt.Before(l.Roster[earliest].JoinedAt) {
				earliest = i
			}
		}
		l.HostID = l.Roster[earliest].PlayerID
	}
	onEmpty := l.OnEmpty
	id := l.ID
	l.mu.Unlock()

	if empty && onEmpty != nil {
		onEmpty(id)
	}
	return nil
}

// ToggleReady flips one roster entry's ready flag.
func (l *Lobby) ToggleReady(playerID uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(playerID)
	if idx < 0 {
		return false, fmt.Errorf("player %s not in lobby: %w", playerID, models.ErrNotFound)
	}
	l.Roster[idx].Ready = !l.Roster[idx].Ready
	return l.Roster[idx].Ready, nil
}

// Start transitions waiting -> playing. Only the host may call it, the
// roster must hold at least two players, and everyone must be ready. A
// second call fails with a state violation instead of producing a
// duplicate session.
func (l *Lobby) Start(callerID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if callerID != l.HostID {
		return fmt.Errorf("only the host can start the game: %w", models.ErrForbidden)
	}
	if l.Status != StatusWaiting {
		return fmt.Errorf("game already started: %w", models.ErrConflict)
	}
	if len(l.Roster) < MinCapacity {
		return fmt.Errorf("not enough players: %w", models.ErrConflict)
	}
	for _, e := range l.Roster {
		if !e.Ready {
			return fmt.Errorf("not all players are ready: %w", models.ErrConflict)
		}
	}
	l.Status = StatusPlaying
	return nil
}

// End forces the lobby to finished regardless of in-progress state. Host
// only; used for abandonment and admin override.
func (l *Lobby) End(callerID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if callerID != l.HostID {
		return fmt.Errorf("only the host can end the game: %w", models.ErrForbidden)
	}
	if l.Status == StatusFinished {
		return fmt.Errorf("lobby already finished: %w", models.ErrConflict)
	}
	l.Status = StatusFinished
	return nil
}

// SetSessionID records the session materialized by Start.
func (l *Lobby) SetSessionID(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.SessionID = id
}

// Snapshot returns a copy safe for serialization while the lobby keeps
// mutating. The password hash is excluded by the json tag.
func (l *Lobby) Snapshot() Lobby {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := Lobby{
		ID:        l.ID,
		Name:      l.Name,
		HostID:    l.HostID,
		Capacity:  l.Capacity,
		GameType:  l.GameType,
		Private:   l.Private,
		Status:    l.Status,
		CreatedAt: l.CreatedAt,
		SessionID: l.SessionID,
	}
	out.Roster = make([]RosterEntry, len(l.Roster))
	copy(out.Roster, l.Roster)
	return out
}

// RosterIDs returns the seated player ids in join order.
func (l *Lobby) RosterIDs() []uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]uuid.UUID, len(l.Roster))
	for i, e := range l.Roster {
		ids[i] = e.PlayerID
	}
	return ids
}
