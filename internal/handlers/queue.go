// internal/handlers/queue.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/jmlee487/gambit/internal/database"
	"github.com/jmlee487/gambit/internal/matchmaking"
)

// JoinQueueHandler enqueues the caller for matchmaking with their
// current rating snapshot.
func (s *Server) JoinQueueHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		GameType string `json:"gameType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad queue request payload", http.StatusBadRequest)
		return
	}

	entry, err := s.Queue.Join(userID, s.ratingOf(r.Context(), userID), req.GameType)
	if err != nil {
		writeError(w, err)
		return
	}

	if database.DB != nil {
		if err := database.InsertQueueEntry(r.Context(), entry); err != nil {
			s.Logger.WithError(err).Warn("persist queue entry failed")
		}
	}

	writeJSON(w, http.StatusOK, entry)
}

// LeaveQueueHandler cancels the caller's waiting entries. An entry
// already read by an in-flight matchmaking pass is rejected at commit
// instead.
func (s *Server) LeaveQueueHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	cancelled, err := s.Queue.Leave(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	if database.DB != nil {
		for _, id := range cancelled {
			if err := database.UpdateQueueEntryStatus(r.Context(), id, matchmaking.EntryCancelled, uuid.Nil); err != nil {
				s.Logger.WithError(err).Warn("persist queue cancel failed")
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"left": true})
}

// QueueStatusHandler reports the caller's queue position and wait time,
// or the lobby they were matched into.
func (s *Server) QueueStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	status, err := s.Queue.Status(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
