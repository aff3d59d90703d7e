// internal/session/apply.go
package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jmlee487/gambit/internal/models"
)

func indexOfPlayer(players []models.PlayerState, id uuid.UUID) int {
	for i, p := range players {
		if p.PlayerID == id {
			return i
		}
	}
	return -1
}

func newEvent(eventType string, playerID *uuid.UUID, payload map[string]interface{}) models.GameEvent {
	return models.GameEvent{
		Type:      eventType,
		Timestamp: nowMillis(),
		PlayerID:  playerID,
		Payload:   payload,
	}
}

// applyCommand mutates state according to one command and returns the
// events describing the change. Built-in commands (join/leave/ready/
// score/spectate) work for every game type; anything else goes to the
// rules hook, or is a recorded no-op when none is registered. An error
// means the command is rejected and state is unchanged.
func applyCommand(state *models.SessionState, cmd models.GameCommand, rules Rules) ([]models.GameEvent, error) {
	pid := cmd.PlayerID

	switch cmd.Type {
	case CmdJoin:
		if indexOfPlayer(state.Players, pid) >= 0 {
			return nil, nil
		}
		name, _ := cmd.Payload["displayName"].(string)
		if name == "" {
			name = "Player"
		}
		state.Players = append(state.Players, models.PlayerState{
			PlayerID:    pid,
			DisplayName: name,
			IsHost:      len(state.Players) == 0,
		})
		return []models.GameEvent{newEvent(EventPlayerJoined, &pid, map[string]interface{}{
			"displayName": name,
		})}, nil

	case CmdLeave:
		idx := indexOfPlayer(state.Players, pid)
		if idx < 0 {
			return nil, nil
		}
		wasHost := state.Players[idx].IsHost
		state.Players = append(state.Players[:idx], state.Players[idx+1:]...)

		events := []models.GameEvent{newEvent(EventPlayerLeft, &pid, nil)}
		if len(state.Players) == 0 {
			state.Status = models.SessionFinished
			events = append(events, newEvent(EventSessionEnded, nil, nil))
		} else if wasHost {
			state.Players[0].IsHost = true
			host := state.Players[0].PlayerID
			events[0].Payload = map[string]interface{}{"newHost": host.String()}
		}
		return events, nil

	case CmdReady:
		idx := indexOfPlayer(state.Players, pid)
		if idx < 0 {
			return nil, fmt.Errorf("player %s not in session: %w", pid, models.ErrNotFound)
		}
		if ready, ok := cmd.Payload["ready"].(bool); ok {
			state.Players[idx].Ready = ready
		} else {
			state.Players[idx].Ready = !state.Players[idx].Ready
		}
		events := []models.GameEvent{newEvent(EventReadyChanged, &pid, map[string]interface{}{
			"ready": state.Players[idx].Ready,
		})}
		if state.Status == models.SessionWaiting && len(state.Players) >= 2 && allReady(state.Players) {
			state.Status = models.SessionPlaying
			events = append(events, newEvent(EventSessionStarted, nil, nil))
		}
		return events, nil

	case CmdScore:
		idx := indexOfPlayer(state.Players, pid)
		if idx < 0 {
			return nil, fmt.Errorf("player %s not in session: %w", pid, models.ErrNotFound)
		}
		points, ok := cmd.Payload["points"].(float64)
		if !ok {
			return nil, fmt.Errorf("score command missing points: %w", models.ErrConflict)
		}
		state.Players[idx].Score += int(points)
		return []models.GameEvent{newEvent(EventScoreChanged, &pid, map[string]interface{}{
			"score": state.Players[idx].Score,
		})}, nil

	case CmdSpectate:
		for _, id := range state.Spectators {
			if id == pid {
				return nil, nil
			}
		}
		state.Spectators = append(state.Spectators, pid)
		return nil, nil

	default:
		if rules != nil {
			return rules.Apply(state, cmd)
		}
		// Generic sessions only log and relay unknown commands; a
		// game-specific adapter is responsible for validation.
		return nil, nil
	}
}

func allReady(players []models.PlayerState) bool {
	for _, p := range players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Replay reconstructs session state by applying every command in order
// from the empty initial state, using the same application path as the
// live manager. Commands the rules hook rejects are skipped, exactly as
// they changed nothing when first applied.
func Replay(commands []models.GameCommand, rules Rules) models.SessionState {
	state := models.SessionState{Status: models.SessionWaiting}
	for _, cmd := range commands {
		_, _ = applyCommand(&state, cmd, rules)
	}
	return state
}
