package models

import (
	"time"

	"github.com/google/uuid"
)

// Ranking is a player's persistent ladder record.
type Ranking struct {
	PlayerID    uuid.UUID `json:"playerId"`
	Rating      int       `json:"rating"`
	GamesPlayed int       `json:"gamesPlayed"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	Draws       int       `json:"draws"`
	WinRate     float64   `json:"winRate"`
	Streak      int       `json:"streak"`
	Rank        string    `json:"rank"`
	LastPlayed  time.Time `json:"lastPlayed"`
}
