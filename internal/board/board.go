// internal/board/board.go
package board

import "errors"

// Size is the board dimension. The reference game is 8x8 Othello.
const Size = 8

// Piece is a single cell value.
type Piece int

const (
	Empty Piece = iota
	Black
	White
)

// String returns the wire name for a piece ("", "black", "white").
func (p Piece) String() string {
	switch p {
	case Black:
		return "black"
	case White:
		return "white"
	}
	return ""
}

// ParsePiece maps a wire name back to a Piece. Unknown names map to Empty.
func ParsePiece(s string) Piece {
	switch s {
	case "black":
		return Black
	case "white":
		return White
	}
	return Empty
}

// Board is an immutable-by-convention grid. It is a value type: ApplyMove
// returns a new Board and never mutates its input.
type Board [Size][Size]Piece

// Position addresses one cell.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// ErrInvalidMove is returned by ApplyMove when the position is not a legal
// move for the player. The engine never silently no-ops.
var ErrInvalidMove = errors.New("invalid move")

var directions = [8]Position{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// InitialBoard returns the fixed starting configuration: white on the
// (3,3)/(4,4) diagonal, black on (3,4)/(4,3).
func InitialBoard() Board {
	var b Board
	b[3][3] = White
	b[3][4] = Black
	b[4][3] = Black
	b[4][4] = White
	return b
}

// Opponent returns the other player's piece.
func Opponent(p Piece) Piece {
	if p == Black {
		return White
	}
	if p == White {
		return Black
	}
	return Empty
}

func inBounds(pos Position) bool {
	return pos.Row >= 0 && pos.Row < Size && pos.Col >= 0 && pos.Col < Size
}

// FlipRun returns the contiguous opposing pieces in one direction that a
// move at pos would convert: the run must be terminated by a same-player
// piece. An empty cell or the board edge aborts the run (nil).
func FlipRun(b Board, player Piece, pos, dir Position) []Position {
	var run []Position
	cur := Position{Row: pos.Row + dir.Row, Col: pos.Col + dir.Col}
	for inBounds(cur) {
		switch b[cur.Row][cur.Col] {
		case Empty:
			return nil
		case player:
			return run
		default:
			run = append(run, cur)
		}
		cur.Row += dir.Row
		cur.Col += dir.Col
	}
	return nil
}

// IsLegal reports whether placing player at pos is a legal move: the cell
// is empty and at least one direction yields a non-empty flip run.
func IsLegal(b Board, player Piece, pos Position) bool {
	if !inBounds(pos) || b[pos.Row][pos.Col] != Empty {
		return false
	}
	for _, dir := range directions {
		if len(FlipRun(b, player, pos, dir)) > 0 {
			return true
		}
	}
	return false
}

// LegalMoves returns every legal position for player in row-major order.
// Recomputed on each call; never cached.
func LegalMoves(b Board, player Piece) []Position {
	var moves []Position
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if IsLegal(b, player, Position{row, col}) {
				moves = append(moves, Position{row, col})
			}
		}
	}
	return moves
}

// ApplyMove returns a new board with pos set to player and every flip run
// in every direction converted. Calling it with an illegal position is a
// caller contract violation and returns ErrInvalidMove.
func ApplyMove(b Board, player Piece, pos Position) (Board, error) {
	if !IsLegal(b, player, pos) {
		return b, ErrInvalidMove
	}
	next := b
	next[pos.Row][pos.Col] = player
	for _, dir := range directions {
		for _, cell := range FlipRun(b, player, pos, dir) {
			next[cell.Row][cell.Col] = player
		}
	}
	return next, nil
}

// Score counts pieces per player.
func Score(b Board) (black, white int) {
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			switch b[row][col] {
			case Black:
				black++
			case White:
				white++
			}
		}
	}
	return black, white
}

// IsTerminal reports whether neither player has a legal move.
func IsTerminal(b Board) bool {
	return len(LegalMoves(b, Black)) == 0 && len(LegalMoves(b, White)) == 0
}
