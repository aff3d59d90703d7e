// internal/session/session.go
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmlee487/gambit/internal/models"
)

// Session is the authoritative record of one match: the current state
// snapshot plus append-only event and command logs. All mutation goes
// through the Manager, which holds mu for the whole read-modify-write of
// every operation, so no two operations on the same session interleave.
type Session struct {
	ID        uuid.UUID `json:"id"`
	GameType  string    `json:"gameType"`
	LobbyID   uuid.UUID `json:"lobbyId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	State    models.SessionState  `json:"state"`
	Events   []models.GameEvent   `json:"events"`
	Commands []models.GameCommand `json:"commands"`

	mu sync.Mutex
}

// Rules is the pluggable validate-before-broadcast hook for one game
// type. Apply runs under the session lock: it validates cmd against the
// current state, mutates state on success, and returns the server-authored
// events describing what changed. An error rejects the command; the
// manager still records it and logs the rejection as an event.
type Rules interface {
	Apply(state *models.SessionState, cmd models.GameCommand) ([]models.GameEvent, error)
}

// BroadcastFunc delivers one server->client message to every current
// subscriber of a session's room. The manager invokes it while holding the
// session lock, so delivery order equals mutation order.
type BroadcastFunc func(sessionID uuid.UUID, messageType string, data interface{})

// RecordFunc receives every appended command for durable fan-out (the
// historian path). Invoked after the append, outside the session lock.
type RecordFunc func(sessionID uuid.UUID, index int, cmd models.GameCommand)

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func timeNow() time.Time {
	return time.Now()
}
