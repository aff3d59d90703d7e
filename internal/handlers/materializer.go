// internal/handlers/materializer.go
package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jmlee487/gambit/internal/database"
	"github.com/jmlee487/gambit/internal/lobby"
	"github.com/jmlee487/gambit/internal/matchmaking"
)

// LobbyMaterializer turns matched queue groups into lobbies. It is the
// matchmaking processor's side-effect half: CreateLobby seats every
// group member, DiscardLobby rolls the lobby back when the queue commit
// is rejected.
type LobbyMaterializer struct {
	Lobbies *lobby.Store
	Users   UserDirectory
	Logger  *logrus.Logger
}

func (m *LobbyMaterializer) CreateLobby(gameType string, members []matchmaking.Entry) (uuid.UUID, error) {
	if len(members) == 0 {
		return uuid.Nil, fmt.Errorf("empty match group")
	}
	ctx := context.Background()

	capacity := len(members)
	if capacity < lobby.MinCapacity {
		capacity = lobby.MinCapacity
	}

	host := members[0]
	lob, err := lobby.New(host.PlayerID, m.displayName(ctx, host.PlayerID), "ranked "+gameType, gameType, capacity, false, "")
	if err != nil {
		return uuid.Nil, err
	}
	for _, e := range members[1:] {
		if err := lob.AddPlayer(e.PlayerID, m.displayName(ctx, e.PlayerID), ""); err != nil {
			return uuid.Nil, fmt.Errorf("seat matched player %s: %w", e.PlayerID, err)
		}
	}
	lob.OnEmpty = func(lobbyID uuid.UUID) {
		m.Lobbies.Delete(lobbyID)
	}
	m.Lobbies.Add(lob)

	if database.DB != nil {
		if err := database.InsertLobby(ctx, lob.Snapshot()); err != nil {
			m.Lobbies.Delete(lob.ID)
			return uuid.Nil, fmt.Errorf("persist matched lobby: %w", err)
		}
	}
	return lob.ID, nil
}

func (m *LobbyMaterializer) DiscardLobby(id uuid.UUID) {
	m.Lobbies.Delete(id)
	if database.DB != nil {
		if err := database.DeleteLobby(context.Background(), id); err != nil {
			m.Logger.WithError(err).WithField("lobby", id).Warn("discard persisted lobby failed")
		}
	}
}

func (m *LobbyMaterializer) displayName(ctx context.Context, id uuid.UUID) string {
	if m.Users != nil {
		if u, err := m.Users.GetUser(ctx, id); err == nil && u.Username != "" {
			return u.Username
		}
	}
	return "player-" + id.String()[:8]
}

// PersistMatch records matched queue entries durably. Wired as the
// processor's OnMatch hook.
func PersistMatch(logger *logrus.Logger, lobbyID uuid.UUID, group []matchmaking.Entry) {
	if database.DB == nil {
		return
	}
	ctx := context.Background()
	for _, e := range group {
		if err := database.UpdateQueueEntryStatus(ctx, e.ID, matchmaking.EntryMatched, lobbyID); err != nil {
			logger.WithError(err).WithField("entry", e.ID).Warn("persist matched entry failed")
		}
	}
}
