// internal/handlers/lobby.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jmlee487/gambit/internal/database"
	"github.com/jmlee487/gambit/internal/lobby"
	"github.com/jmlee487/gambit/internal/models"
)

// createLobbyRequest is the POST /lobbies payload.
type createLobbyRequest struct {
	Name       string `json:"name"`
	GameType   string `json:"gameType"`
	MaxPlayers int    `json:"maxPlayers"`
	IsPrivate  bool   `json:"isPrivate"`
	Password   string `json:"password"`
}

// CreateLobbyHandler builds an in-memory lobby with the caller as host.
// The OnEmpty callback removes the lobby from the store when the last
// player leaves.
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad lobby request payload", http.StatusBadRequest)
		return
	}

	lob, err := lobby.New(userID, s.displayName(r.Context(), userID), req.Name, req.GameType, req.MaxPlayers, req.IsPrivate, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	lob.OnEmpty = func(lobbyID uuid.UUID) {
		s.Lobbies.Delete(lobbyID)
	}
	s.Lobbies.Add(lob)

	if database.DB != nil {
		if err := database.InsertLobby(r.Context(), lob.Snapshot()); err != nil {
			s.Logger.WithError(err).WithField("lobby", lob.ID).Warn("persist lobby failed")
		}
	}

	writeJSON(w, http.StatusCreated, lob.Snapshot())
}

// ListLobbiesHandler returns every lobby still accepting players.
func (s *Server) ListLobbiesHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := authenticate(r); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Lobbies.Waiting())
}

// GetLobbyHandler returns one lobby snapshot.
func (s *Server) GetLobbyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := authenticate(r); err != nil {
		writeError(w, err)
		return
	}
	lob, err := s.lobbyFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lob.Snapshot())
}

// JoinLobbyHandler seats the caller, checking capacity, lifecycle and
// the private-lobby password.
func (s *Server) JoinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	lob, err := s.lobbyFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	if err := lob.AddPlayer(userID, s.displayName(r.Context(), userID), req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lob.Snapshot())
}

// LeaveLobbyHandler unseats the caller. The lobby handles host handoff
// and self-removal when it empties.
func (s *Server) LeaveLobbyHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	lob, err := s.lobbyFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := lob.RemovePlayer(userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"left": true})
}

// ToggleReadyHandler flips the caller's ready flag.
func (s *Server) ToggleReadyHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	lob, err := s.lobbyFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ready, err := lob.ToggleReady(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": ready})
}

// StartLobbyHandler transitions the lobby to playing and materializes
// its session: the host is seated first, then the rest of the roster in
// join order, so replaying the session log reproduces the seating.
func (s *Server) StartLobbyHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	lob, err := s.lobbyFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := lob.Start(userID); err != nil {
		writeError(w, err)
		return
	}

	snap := lob.Snapshot()
	sess := s.Sessions.CreateSession(snap.GameType, snap.HostID, rosterName(snap, snap.HostID))
	for _, entry := range snap.Roster {
		if entry.PlayerID == snap.HostID {
			continue
		}
		if _, err := s.Sessions.JoinSession(sess.ID, entry.PlayerID, entry.DisplayName); err != nil {
			s.Logger.WithError(err).WithField("session", sess.ID).Warn("seating roster member failed")
		}
	}
	s.Sessions.BindLobby(sess.ID, snap.ID)
	lob.SetSessionID(sess.ID)

	if database.DB != nil {
		ctx := r.Context()
		if err := database.UpdateLobbyStatus(ctx, snap.ID, lobby.StatusPlaying); err != nil {
			s.Logger.WithError(err).Warn("persist lobby status failed")
		}
		if err := database.InsertSession(ctx, sess.ID, snap.ID, snap.GameType); err != nil {
			s.Logger.WithError(err).Warn("persist session failed")
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": sess.ID,
		"lobby":     lob.Snapshot(),
	})
}

// EndLobbyHandler forces the lobby finished and ends its session if one
// was started. Host only.
func (s *Server) EndLobbyHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	lob, err := s.lobbyFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := lob.End(userID); err != nil {
		writeError(w, err)
		return
	}

	snap := lob.Snapshot()
	if snap.SessionID != uuid.Nil {
		if _, err := s.Sessions.EndSession(snap.SessionID); err != nil {
			s.Logger.WithError(err).WithField("session", snap.SessionID).Debug("session already ended")
		}
	}
	if database.DB != nil {
		if err := database.UpdateLobbyStatus(context.Background(), snap.ID, lobby.StatusFinished); err != nil {
			s.Logger.WithError(err).Warn("persist lobby status failed")
		}
	}

	writeJSON(w, http.StatusOK, lob.Snapshot())
}

func (s *Server) lobbyFromPath(r *http.Request) (*lobby.Lobby, error) {
	id, err := pathUUID(r, "id")
	if err != nil {
		return nil, err
	}
	lob, ok := s.Lobbies.Get(id)
	if !ok {
		return nil, fmt.Errorf("lobby %s: %w", id, models.ErrNotFound)
	}
	return lob, nil
}

func rosterName(snap lobby.Lobby, playerID uuid.UUID) string {
	for _, e := range snap.Roster {
		if e.PlayerID == playerID {
			return e.DisplayName
		}
	}
	return "player-" + playerID.String()[:8]
}
