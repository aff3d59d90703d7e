// internal/handlers/session.go
package handlers

import "net/http"

// GetSessionHandler returns the authoritative snapshot of one session.
// Read-only; clients that need live updates subscribe over the gateway.
func (s *Server) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := authenticate(r); err != nil {
		writeError(w, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := s.Sessions.GetState(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
