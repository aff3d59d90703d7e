// internal/othello/adapter.go
package othello

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jmlee487/gambit/internal/board"
	"github.com/jmlee487/gambit/internal/models"
)

// GameType is the registered game type for the reference flip game.
const GameType = "othello"

// Adapter validates move commands against the board engine and maintains
// the session's OthelloData. It is the validate-before-broadcast hook for
// othello sessions; generic sessions never see it.
type Adapter struct{}

// NewAdapter returns the othello rules hook.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// pieceFor maps a seat to a color: first seat plays black, second white.
// Everyone else is a spectator as far as the rules are concerned.
func pieceFor(state *models.SessionState, playerID uuid.UUID) board.Piece {
	for i, p := range state.Players {
		if p.PlayerID == playerID {
			switch i {
			case 0:
				return board.Black
			case 1:
				return board.White
			}
			return board.Empty
		}
	}
	return board.Empty
}

// Apply handles the "move" command: {row, col}. Invoked under the session
// lock; it validates fully before mutating, so a rejected command leaves
// state untouched.
func (a *Adapter) Apply(state *models.SessionState, cmd models.GameCommand) ([]models.GameEvent, error) {
	if cmd.Type != "move" {
		return nil, nil
	}
	if state.Status != models.SessionPlaying {
		return nil, fmt.Errorf("game is not in progress: %w", models.ErrConflict)
	}

	piece := pieceFor(state, cmd.PlayerID)
	if piece == board.Empty {
		return nil, fmt.Errorf("player %s does not hold a piece: %w", cmd.PlayerID, models.ErrForbidden)
	}

	data := state.Data.Othello
	if data == nil {
		d := models.OthelloData{Board: board.InitialBoard(), Turn: board.Black}
		d.Black, d.White = board.Score(d.Board)
		data = &d
	}
	if piece != data.Turn {
		return nil, fmt.Errorf("not %s's turn: %w", piece, models.ErrConflict)
	}

	pos := board.Position{
		Row: intPayload(cmd.Payload, "row"),
		Col: intPayload(cmd.Payload, "col"),
	}
	next, err := board.ApplyMove(data.Board, piece, pos)
	if err != nil {
		return nil, fmt.Errorf("move at (%d,%d): %w", pos.Row, pos.Col, err)
	}

	updated := *data
	updated.Board = next
	updated.Black, updated.White = board.Score(next)

	// The turn passes to the opponent unless they have no reply.
	opp := board.Opponent(piece)
	switch {
	case len(board.LegalMoves(next, opp)) > 0:
		updated.Turn = opp
	case len(board.LegalMoves(next, piece)) > 0:
		updated.Turn = piece
	}

	state.Data.Othello = &updated
	for i := range state.Players {
		switch pieceFor(state, state.Players[i].PlayerID) {
		case board.Black:
			state.Players[i].Score = updated.Black
		case board.White:
			state.Players[i].Score = updated.White
		}
	}

	events := []models.GameEvent{{
		Type:      "move_applied",
		Timestamp: cmd.Timestamp,
		PlayerID:  &cmd.PlayerID,
		Payload: map[string]interface{}{
			"row":    pos.Row,
			"col":    pos.Col,
			"player": piece.String(),
		},
	}}

	if board.IsTerminal(next) {
		state.Status = models.SessionFinished
		winner := ""
		if updated.Black > updated.White {
			winner = board.Black.String()
		} else if updated.White > updated.Black {
			winner = board.White.String()
		}
		events = append(events, models.GameEvent{
			Type:      "game_finished",
			Timestamp: cmd.Timestamp,
			Payload: map[string]interface{}{
				"black":  updated.Black,
				"white":  updated.White,
				"winner": winner,
			},
		})
	}
	return events, nil
}

// intPayload reads a numeric payload field, tolerating the float64 that
// JSON decoding produces.
func intPayload(payload map[string]interface{}, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return -1
}
