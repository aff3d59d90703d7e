// internal/session/manager.go
package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jmlee487/gambit/internal/models"
)

// Built-in command types understood by every session regardless of game
// type. Anything else is handed to the game's Rules hook, or recorded and
// relayed untouched when no hook is registered.
const (
	CmdJoin     = "join"
	CmdLeave    = "leave"
	CmdReady    = "ready"
	CmdScore    = "score"
	CmdSpectate = "spectate"
)

// Event types appended by the manager itself.
const (
	EventPlayerJoined    = "player_joined"
	EventPlayerLeft      = "player_left"
	EventReadyChanged    = "ready_changed"
	EventScoreChanged    = "score_changed"
	EventSessionStarted  = "session_started"
	EventSessionEnded    = "session_ended"
	EventStateUpdated    = "state_updated"
	EventCommandRejected = "command_rejected"
)

// StatePatch is the shallow-merge payload for UpdateState. Nil fields are
// left untouched.
type StatePatch struct {
	Status *models.SessionStatus `json:"status,omitempty"`
	Data   *models.GameData      `json:"data,omitempty"`
}

// Manager owns the create/join/leave/update/end lifecycle of sessions and
// is the single ordering authority for each one: command application order
// is arrival order at the session lock, and broadcasts are emitted while
// that lock is held.
type Manager struct {
	store *Store
	rules map[string]Rules
	log   *logrus.Logger

	// BroadcastFn must not block; the gateway backs it with buffered
	// per-connection channels.
	BroadcastFn BroadcastFunc
	RecordFn    RecordFunc

	// OnFinish, when set, runs after a session transitions to finished,
	// outside the session lock. Used for rating settlement.
	OnFinish func(sessionID uuid.UUID, final models.SessionState)
}

// NewManager constructs a Manager with no rules hooks registered.
func NewManager(log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{
		store: NewStore(),
		rules: make(map[string]Rules),
		log:   log,
	}
}

// RegisterRules installs the validate-before-broadcast hook for one game
// type. Sessions of other game types stay log-and-relay only.
func (m *Manager) RegisterRules(gameType string, r Rules) {
	m.rules[gameType] = r
}

func (m *Manager) rulesFor(gameType string) Rules {
	return m.rules[gameType]
}

func (m *Manager) broadcast(sessionID uuid.UUID, messageType string, data interface{}) {
	if m.BroadcastFn != nil {
		m.BroadcastFn(sessionID, messageType, data)
	}
}

// CreateSession creates a new session with the host seated. The host's
// seat is bootstrapped through the same join command every later player
// uses, so replaying the command log reproduces it.
func (m *Manager) CreateSession(gameType string, hostID uuid.UUID, hostName string) *Session {
	s := &Session{
		ID:        uuid.New(),
		GameType:  gameType,
		CreatedAt: timeNow(),
		State: models.SessionState{
			Status: models.SessionWaiting,
			Data:   models.GameData{GameType: gameType},
		},
	}
	m.store.Add(s)

	if _, err := m.submit(s.ID, models.GameCommand{
		Type:     CmdJoin,
		PlayerID: hostID,
		Payload:  map[string]interface{}{"displayName": hostName},
	}, false); err != nil {
		m.log.WithError(err).WithField("session", s.ID).Error("host bootstrap failed")
	}
	return s
}

// JoinSession seats a player. Re-joining an already-present player returns
// the current state unchanged.
func (m *Manager) JoinSession(sessionID, userID uuid.UUID, displayName string) (models.SessionState, error) {
	return m.submit(sessionID, models.GameCommand{
		Type:     CmdJoin,
		PlayerID: userID,
		Payload:  map[string]interface{}{"displayName": displayName},
	}, false)
}

// LeaveSession unseats a player. Departing hosts hand off to the first
// remaining player; the last player leaving ends the session.
func (m *Manager) LeaveSession(sessionID, userID uuid.UUID) (models.SessionState, error) {
	return m.submit(sessionID, models.GameCommand{
		Type:     CmdLeave,
		PlayerID: userID,
	}, false)
}

// AddCommand records a client command, applies it (built-in semantics or
// the game's rules hook), and relays it to the room. Rejected commands
// stay in the log; the rejection is recorded as an event and returned as
// an error for the gateway to surface.
func (m *Manager) AddCommand(sessionID uuid.UUID, cmd models.GameCommand) (models.SessionState, error) {
	return m.submit(sessionID, cmd, true)
}

// submit is the single mutation path: it serializes on the session lock,
// appends the command, applies it, appends resulting events, and emits
// broadcasts in mutation order.
func (m *Manager) submit(sessionID uuid.UUID, cmd models.GameCommand, relay bool) (models.SessionState, error) {
	s, ok := m.store.Get(sessionID)
	if !ok {
		return models.SessionState{}, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}

	s.mu.Lock()

	// Idempotent re-join short-circuits before the finished guard so
	// that a present player can always read current state.
	if cmd.Type == CmdJoin && indexOfPlayer(s.State.Players, cmd.PlayerID) >= 0 {
		snap := s.State.Clone()
		s.mu.Unlock()
		return snap, nil
	}
	if s.State.Status == models.SessionFinished {
		snap := s.State.Clone()
		s.mu.Unlock()
		return snap, fmt.Errorf("session %s is finished: %w", sessionID, models.ErrConflict)
	}

	stampCommand(s, &cmd)
	s.Commands = append(s.Commands, cmd)
	index := len(s.Commands) - 1

	events, applyErr := applyCommand(&s.State, cmd, m.rulesFor(s.GameType))
	if applyErr != nil {
		rejection := newEvent(EventCommandRejected, &cmd.PlayerID, map[string]interface{}{
			"commandType": cmd.Type,
			"reason":      applyErr.Error(),
		})
		s.Events = append(s.Events, rejection)
		snap := s.State.Clone()
		s.mu.Unlock()

		m.record(sessionID, index, cmd)
		m.log.WithFields(logrus.Fields{
			"session": sessionID,
			"command": cmd.Type,
			"player":  cmd.PlayerID,
		}).WithError(applyErr).Debug("command rejected")
		return snap, fmt.Errorf("command %s rejected: %w", cmd.Type, applyErr)
	}

	s.Events = append(s.Events, events...)
	snap := s.State.Clone()

	// Broadcasts happen under the lock: room delivery order equals
	// mutation order.
	if relay {
		m.broadcast(sessionID, "game:command", cmd)
	}
	if len(events) > 0 {
		m.broadcast(sessionID, "game:state", snap)
	}
	s.mu.Unlock()

	m.record(sessionID, index, cmd)
	// The finished guard above means any finished snapshot here is a
	// fresh transition.
	if snap.Status == models.SessionFinished && m.OnFinish != nil {
		m.OnFinish(sessionID, snap)
	}
	return snap, nil
}

func (m *Manager) record(sessionID uuid.UUID, index int, cmd models.GameCommand) {
	if m.RecordFn != nil {
		m.RecordFn(sessionID, index, cmd)
	}
}

// UpdateState shallow-merges host-confirmed fields into the state and
// always appends a corresponding event.
func (m *Manager) UpdateState(sessionID uuid.UUID, patch StatePatch) (models.SessionState, error) {
	s, ok := m.store.Get(sessionID)
	if !ok {
		return models.SessionState{}, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State.Status == models.SessionFinished {
		return s.State.Clone(), fmt.Errorf("session %s is finished: %w", sessionID, models.ErrConflict)
	}

	payload := map[string]interface{}{}
	if patch.Status != nil {
		s.State.Status = *patch.Status
		payload["status"] = string(*patch.Status)
	}
	if patch.Data != nil {
		s.State.Data = s.State.Data.Merge(*patch.Data)
		payload["data"] = true
	}
	s.Events = append(s.Events, newEvent(EventStateUpdated, nil, payload))

	snap := s.State.Clone()
	m.broadcast(sessionID, "game:state", snap)
	return snap, nil
}

// AddEvent appends a server-authored fact to the event log.
func (m *Manager) AddEvent(sessionID uuid.UUID, ev models.GameEvent) error {
	s, ok := m.store.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Timestamp == 0 {
		ev.Timestamp = nowMillis()
	}
	if n := len(s.Events); n > 0 && s.Events[n-1].Timestamp > ev.Timestamp {
		ev.Timestamp = s.Events[n-1].Timestamp
	}
	s.Events = append(s.Events, ev)
	return nil
}

// EndSession marks the session finished. Terminal: every later mutation
// fails with a state violation; reads keep working.
func (m *Manager) EndSession(sessionID uuid.UUID) (models.SessionState, error) {
	s, ok := m.store.Get(sessionID)
	if !ok {
		return models.SessionState{}, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}

	s.mu.Lock()

	if s.State.Status == models.SessionFinished {
		snap := s.State.Clone()
		s.mu.Unlock()
		return snap, fmt.Errorf("session %s already finished: %w", sessionID, models.ErrConflict)
	}
	s.State.Status = models.SessionFinished
	s.Events = append(s.Events, newEvent(EventSessionEnded, nil, nil))

	snap := s.State.Clone()
	m.broadcast(sessionID, "game:state", snap)
	s.mu.Unlock()

	if m.OnFinish != nil {
		m.OnFinish(sessionID, snap)
	}
	return snap, nil
}

// GetState returns a snapshot of the current state.
func (m *Manager) GetState(sessionID uuid.UUID) (models.SessionState, error) {
	s, ok := m.store.Get(sessionID)
	if !ok {
		return models.SessionState{}, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State.Clone(), nil
}

// Logs returns copies of the command and event logs.
func (m *Manager) Logs(sessionID uuid.UUID) ([]models.GameCommand, []models.GameEvent, error) {
	s, ok := m.store.Get(sessionID)
	if !ok {
		return nil, nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cmds := make([]models.GameCommand, len(s.Commands))
	copy(cmds, s.Commands)
	evs := make([]models.GameEvent, len(s.Events))
	copy(evs, s.Events)
	return cmds, evs, nil
}

// GameTypeOf returns the session's game type.
func (m *Manager) GameTypeOf(sessionID uuid.UUID) (string, error) {
	s, ok := m.store.Get(sessionID)
	if !ok {
		return "", fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	return s.GameType, nil
}

// BindLobby links a session to the lobby that produced it.
func (m *Manager) BindLobby(sessionID, lobbyID uuid.UUID) error {
	s, ok := m.store.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LobbyID = lobbyID
	return nil
}

// stampCommand assigns arrival time and keeps the command log monotone by
// timestamp. Caller holds the session lock.
func stampCommand(s *Session, cmd *models.GameCommand) {
	if cmd.Timestamp == 0 {
		cmd.Timestamp = nowMillis()
	}
	if n := len(s.Commands); n > 0 && s.Commands[n-1].Timestamp > cmd.Timestamp {
		cmd.Timestamp = s.Commands[n-1].Timestamp
	}
}
