// internal/handlers/server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jmlee487/gambit/internal/database"
	"github.com/jmlee487/gambit/internal/lobby"
	"github.com/jmlee487/gambit/internal/matchmaking"
	"github.com/jmlee487/gambit/internal/models"
	"github.com/jmlee487/gambit/internal/rating"
	"github.com/jmlee487/gambit/internal/session"
)

// UserDirectory resolves player identities for display names and queue
// ratings. Tests inject a stub; production uses the Postgres-backed
// directory.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// DBUserDirectory is the Postgres-backed UserDirectory.
type DBUserDirectory struct{}

func (DBUserDirectory) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return database.GetUserByID(ctx, id)
}

// Server holds the in-memory stores and the session manager behind the
// HTTP and WebSocket surface.
type Server struct {
	Logger   *logrus.Logger
	Lobbies  *lobby.Store
	Sessions *session.Manager
	Queue    *matchmaking.QueueStore
	Users    UserDirectory

	rooms *RoomStore
}

// NewServer wires a Server and hands the session manager's broadcast to
// the gateway rooms.
func NewServer(logger *logrus.Logger, lobbies *lobby.Store, sessions *session.Manager, queue *matchmaking.QueueStore, users UserDirectory) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{
		Logger:   logger,
		Lobbies:  lobbies,
		Sessions: sessions,
		Queue:    queue,
		Users:    users,
		rooms:    NewRoomStore(logger),
	}
	s.Sessions.BroadcastFn = s.rooms.Broadcast
	s.Sessions.OnFinish = s.settleRankings
	return s
}

// Routes returns the service mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /lobbies", s.CreateLobbyHandler)
	mux.HandleFunc("GET /lobbies", s.ListLobbiesHandler)
	mux.HandleFunc("GET /lobbies/{id}", s.GetLobbyHandler)
	mux.HandleFunc("POST /lobbies/{id}/join", s.JoinLobbyHandler)
	mux.HandleFunc("POST /lobbies/{id}/leave", s.LeaveLobbyHandler)
	mux.HandleFunc("POST /lobbies/{id}/ready", s.ToggleReadyHandler)
	mux.HandleFunc("POST /lobbies/{id}/start", s.StartLobbyHandler)
	mux.HandleFunc("POST /lobbies/{id}/end", s.EndLobbyHandler)

	mux.HandleFunc("GET /sessions/{id}", s.GetSessionHandler)

	mux.HandleFunc("POST /queue/join", s.JoinQueueHandler)
	mux.HandleFunc("POST /queue/leave", s.LeaveQueueHandler)
	mux.HandleFunc("GET /queue/status", s.QueueStatusHandler)

	mux.HandleFunc("GET /rankings/leaderboard", s.LeaderboardHandler)
	mux.HandleFunc("GET /rankings/me", s.MyRankingHandler)
	mux.HandleFunc("GET /rankings/find-match", s.FindMatchHandler)

	mux.HandleFunc("GET /game/ws/{session_id}", s.GameWSHandler)

	return mux
}

// displayName resolves a username, falling back to a shortened id for
// users the directory cannot see.
func (s *Server) displayName(ctx context.Context, id uuid.UUID) string {
	if s.Users != nil {
		if u, err := s.Users.GetUser(ctx, id); err == nil && u.Username != "" {
			return u.Username
		}
	}
	return "player-" + id.String()[:8]
}

// ratingOf resolves a player's current rating for queue snapshots. The
// ranking table is authoritative; the user record is a fallback for
// players with no games on record.
func (s *Server) ratingOf(ctx context.Context, id uuid.UUID) int {
	if database.DB != nil {
		if rk, err := database.GetRanking(ctx, id); err == nil && rk.Rating > 0 {
			return rk.Rating
		}
	}
	if s.Users != nil {
		if u, err := s.Users.GetUser(ctx, id); err == nil && u.Rating > 0 {
			return u.Rating
		}
	}
	return rating.DefaultRating
}
