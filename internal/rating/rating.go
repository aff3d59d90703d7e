// internal/rating/rating.go
package rating

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmlee487/gambit/internal/models"
)

// Result is one player's outcome of a finished match.
type Result string

const (
	Win  Result = "win"
	Loss Result = "loss"
	Draw Result = "draw"
)

// KFactor is the Elo K used for every update.
const KFactor = 32

// DefaultRating is the rating a fresh ranking starts at.
const DefaultRating = 1000

// NewRanking returns a fresh ladder record for a player.
func NewRanking(playerID uuid.UUID) models.Ranking {
	return models.Ranking{
		PlayerID:   playerID,
		Rating:     DefaultRating,
		Rank:       TierFor(DefaultRating),
		LastPlayed: time.Now(),
	}
}

// Apply consumes one match result and returns the updated ranking. Pure:
// the input value is never mutated, so callers decide what persists.
func Apply(r models.Ranking, result Result) models.Ranking {
	out := r
	out.GamesPlayed++

	switch result {
	case Win:
		out.Wins++
		out.Streak = int(math.Max(1, float64(out.Streak+1)))
	case Loss:
		out.Losses++
		out.Streak = int(math.Min(-1, float64(out.Streak-1)))
	default:
		out.Draws++
		out.Streak = 0
	}

	expected := 1 / (1 + math.Pow(10, float64(out.Rating-DefaultRating)/400))
	actual := 0.5
	if result == Win {
		actual = 1
	} else if result == Loss {
		actual = 0
	}
	change := int(math.Round(KFactor * (actual - expected)))
	out.Rating = out.Rating + change
	if out.Rating < 0 {
		out.Rating = 0
	}

	if out.GamesPlayed > 0 {
		out.WinRate = float64(out.Wins) / float64(out.GamesPlayed) * 100
	}
	out.Rank = TierFor(out.Rating)
	out.LastPlayed = time.Now()
	return out
}

// TierFor maps a rating to its ladder tier.
func TierFor(rating int) string {
	switch {
	case rating >= 2500:
		return "Grandmaster"
	case rating >= 2000:
		return "Master"
	case rating >= 1750:
		return "Diamond"
	case rating >= 1500:
		return "Platinum"
	case rating >= 1250:
		return "Gold"
	case rating >= 1000:
		return "Silver"
	default:
		return "Bronze"
	}
}
