// internal/othello/adapter_test.go
package othello

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmlee487/gambit/internal/board"
	"github.com/jmlee487/gambit/internal/models"
	"github.com/jmlee487/gambit/internal/session"
)

func playingState(black, white uuid.UUID) *models.SessionState {
	return &models.SessionState{
		Status: models.SessionPlaying,
		Players: []models.PlayerState{
			{PlayerID: black, DisplayName: "b", IsHost: true},
			{PlayerID: white, DisplayName: "w"},
		},
		Data: models.GameData{GameType: GameType},
	}
}

func moveCmd(playerID uuid.UUID, row, col int) models.GameCommand {
	return models.GameCommand{
		Type:     "move",
		PlayerID: playerID,
		Payload:  map[string]interface{}{"row": float64(row), "col": float64(col)},
	}
}

func TestAdapterFirstMoveBootstrapsBoard(t *testing.T) {
	blackID, whiteID := uuid.New(), uuid.New()
	state := playingState(blackID, whiteID)
	a := NewAdapter()

	events, err := a.Apply(state, moveCmd(blackID, 2, 3))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "move_applied", events[0].Type)

	require.NotNil(t, state.Data.Othello)
	assert.Equal(t, 4, state.Data.Othello.Black)
	assert.Equal(t, 1, state.Data.Othello.White)
	assert.Equal(t, board.White, state.Data.Othello.Turn)

	// Player scores mirror the piece counts.
	assert.Equal(t, 4, state.Players[0].Score)
	assert.Equal(t, 1, state.Players[1].Score)
}

func TestAdapterRejectsOutOfTurn(t *testing.T) {
	blackID, whiteID := uuid.New(), uuid.New()
	state := playingState(blackID, whiteID)
	a := NewAdapter()

	// Black opens; white may not move first.
	_, err := a.Apply(state, moveCmd(whiteID, 2, 4))
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Nil(t, state.Data.Othello, "rejected command must leave state untouched")
}

func TestAdapterRejectsNonPlayer(t *testing.T) {
	blackID, whiteID := uuid.New(), uuid.New()
	state := playingState(blackID, whiteID)
	a := NewAdapter()

	_, err := a.Apply(state, moveCmd(uuid.New(), 2, 3))
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestAdapterRejectsIllegalMove(t *testing.T) {
	blackID, whiteID := uuid.New(), uuid.New()
	state := playingState(blackID, whiteID)
	a := NewAdapter()

	_, err := a.Apply(state, moveCmd(blackID, 0, 0))
	assert.ErrorIs(t, err, board.ErrInvalidMove)
	assert.Nil(t, state.Data.Othello)
}

func TestAdapterRejectsWhenNotPlaying(t *testing.T) {
	blackID, whiteID := uuid.New(), uuid.New()
	state := playingState(blackID, whiteID)
	state.Status = models.SessionWaiting
	a := NewAdapter()

	_, err := a.Apply(state, moveCmd(blackID, 2, 3))
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAdapterIgnoresForeignCommands(t *testing.T) {
	blackID, whiteID := uuid.New(), uuid.New()
	state := playingState(blackID, whiteID)
	a := NewAdapter()

	events, err := a.Apply(state, models.GameCommand{Type: "chat", PlayerID: blackID})
	assert.NoError(t, err)
	assert.Nil(t, events)
}

func TestAdapterFinishesTerminalGame(t *testing.T) {
	blackID, whiteID := uuid.New(), uuid.New()
	state := playingState(blackID, whiteID)
	a := NewAdapter()

	// A nearly-empty board: black's only move wipes out white's last
	// piece, leaving neither side a reply.
	var b board.Board
	b[0][0] = board.Black
	b[0][1] = board.White
	state.Data.Othello = &models.OthelloData{Board: b, Turn: board.Black, Black: 1, White: 1}

	events, err := a.Apply(state, moveCmd(blackID, 0, 2))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "game_finished", events[1].Type)
	assert.Equal(t, "black", events[1].Payload["winner"])
	assert.Equal(t, models.SessionFinished, state.Status)
}

// TestAdapterThroughSessionManager drives a full game turn through the
// live command path.
func TestAdapterThroughSessionManager(t *testing.T) {
	m := session.NewManager(nil)
	m.RegisterRules(GameType, NewAdapter())

	blackID, whiteID := uuid.New(), uuid.New()
	s := m.CreateSession(GameType, blackID, "b")
	_, err := m.JoinSession(s.ID, whiteID, "w")
	require.NoError(t, err)
	for _, pid := range []uuid.UUID{blackID, whiteID} {
		_, err = m.AddCommand(s.ID, models.GameCommand{Type: session.CmdReady, PlayerID: pid})
		require.NoError(t, err)
	}

	state, err := m.AddCommand(s.ID, moveCmd(blackID, 2, 3))
	require.NoError(t, err)
	require.NotNil(t, state.Data.Othello)
	assert.Equal(t, board.White, state.Data.Othello.Turn)

	// The same illegal move is rejected and the board is unchanged.
	_, err = m.AddCommand(s.ID, moveCmd(whiteID, 0, 0))
	assert.ErrorIs(t, err, board.ErrInvalidMove)
	state, err = m.GetState(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, state.Data.Othello.Black)
}
