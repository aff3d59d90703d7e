// internal/models/session.go
package models

import "github.com/google/uuid"

// SessionStatus is the lifecycle status of a game session.
type SessionStatus string

const (
	SessionWaiting  SessionStatus = "waiting"
	SessionPlaying  SessionStatus = "playing"
	SessionPaused   SessionStatus = "paused"
	SessionFinished SessionStatus = "finished"
)

// PlayerState is one seat in a session's authoritative state.
type PlayerState struct {
	PlayerID    uuid.UUID `json:"playerId"`
	DisplayName string    `json:"displayName"`
	Ready       bool      `json:"ready"`
	IsHost      bool      `json:"isHost"`
	Score       int       `json:"score"`
	Data        GameData  `json:"data,omitempty"`
}

// SessionState is the authoritative snapshot of one match. Replaying the
// session's command log from a fresh state must reproduce it.
type SessionState struct {
	Status     SessionStatus `json:"status"`
	Players    []PlayerState `json:"players"`
	Spectators []uuid.UUID   `json:"spectators,omitempty"`
	Data       GameData      `json:"data,omitempty"`
}

// Clone returns a deep copy, safe to hand out while the live state keeps
// mutating under the session lock.
func (s SessionState) Clone() SessionState {
	out := s
	out.Players = make([]PlayerState, len(s.Players))
	copy(out.Players, s.Players)
	for i := range out.Players {
		if o := out.Players[i].Data.Othello; o != nil {
			c := *o
			out.Players[i].Data.Othello = &c
		}
		out.Players[i].Data = GameData{}.Merge(out.Players[i].Data)
	}
	if len(s.Spectators) > 0 {
		out.Spectators = make([]uuid.UUID, len(s.Spectators))
		copy(out.Spectators, s.Spectators)
	}
	out.Data = GameData{}.Merge(s.Data)
	return out
}

// GameEvent is a server-authored fact appended to a session's event log:
// state transitions, score changes, command rejections.
type GameEvent struct {
	Type      string                 `json:"type"`
	Timestamp int64                  `json:"timestamp"` // epoch millis
	PlayerID  *uuid.UUID             `json:"playerId,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// GameCommand is a client-authored intent. Commands are recorded as
// received, including ones later rejected by game rules, so the log is a
// complete causal history.
type GameCommand struct {
	Type      string                 `json:"type"`
	PlayerID  uuid.UUID              `json:"playerId"`
	Timestamp int64                  `json:"timestamp"` // epoch millis
	Payload   map[string]interface{} `json:"payload,omitempty"`
}
