// internal/models/game_data.go
package models

import "github.com/jmlee487/gambit/internal/board"

// GameData is the game-specific portion of a session or player state,
// keyed by game type. Supported games get a typed variant; anything else
// rides in Raw so the session framework stays game-agnostic.
type GameData struct {
	GameType string       `json:"gameType,omitempty"`
	Othello  *OthelloData `json:"othello,omitempty"`

	// Raw carries data for game types without a typed variant. The
	// session manager merges it shallowly on UpdateState.
	Raw map[string]interface{} `json:"raw,omitempty"`
}

// OthelloData is the typed variant for the reference 8x8 flip game.
type OthelloData struct {
	Board board.Board `json:"board"`
	Turn  board.Piece `json:"turn"`
	Black int         `json:"black"`
	White int         `json:"white"`
}

// Merge applies a partial update onto d, field by field. Typed variants
// replace wholesale; Raw merges per key.
func (d GameData) Merge(patch GameData) GameData {
	out := d
	if patch.GameType != "" {
		out.GameType = patch.GameType
	}
	if patch.Othello != nil {
		o := *patch.Othello
		out.Othello = &o
	}
	if len(patch.Raw) > 0 {
		if out.Raw == nil {
			out.Raw = make(map[string]interface{}, len(patch.Raw))
		} else {
			merged := make(map[string]interface{}, len(out.Raw)+len(patch.Raw))
			for k, v := range out.Raw {
				merged[k] = v
			}
			out.Raw = merged
		}
		for k, v := range patch.Raw {
			out.Raw[k] = v
		}
	}
	return out
}
