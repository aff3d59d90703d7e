package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jmlee487/gambit/internal/models"
)

const rankingColumns = `player_id, rating, games_played, wins, losses, draws, win_rate, streak, rank, last_played`

func scanRanking(row pgx.Row) (models.Ranking, error) {
	var r models.Ranking
	err := row.Scan(&r.PlayerID, &r.Rating, &r.GamesPlayed, &r.Wins, &r.Losses,
		&r.Draws, &r.WinRate, &r.Streak, &r.Rank, &r.LastPlayed)
	return r, err
}

// GetRanking fetches one player's ladder record.
func GetRanking(ctx context.Context, playerID uuid.UUID) (models.Ranking, error) {
	q := `SELECT ` + rankingColumns + ` FROM player_rankings WHERE player_id=$1`
	r, err := scanRanking(DB.QueryRow(ctx, q, playerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Ranking{}, fmt.Errorf("ranking for %s: %w", playerID, models.ErrNotFound)
	}
	return r, err
}

// UpsertRanking writes back an updated ladder record.
func UpsertRanking(ctx context.Context, r models.Ranking) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO player_rankings (`+rankingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (player_id) DO UPDATE SET
				rating=$2, games_played=$3, wins=$4, losses=$5, draws=$6,
				win_rate=$7, streak=$8, rank=$9, last_played=$10
		`, r.PlayerID, r.Rating, r.GamesPlayed, r.Wins, r.Losses,
			r.Draws, r.WinRate, r.Streak, r.Rank, r.LastPlayed)
		return err
	})
}

// Leaderboard returns rankings sorted by rating descending.
func Leaderboard(ctx context.Context, limit, offset int) ([]models.Ranking, error) {
	q := `SELECT ` + rankingColumns + ` FROM player_rankings ORDER BY rating DESC LIMIT $1 OFFSET $2`
	rows, err := DB.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Ranking
	for rows.Next() {
		r, err := scanRanking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindNearestOpponent returns the opponent whose rating is closest to the
// player's, within the band, or NotFound.
func FindNearestOpponent(ctx context.Context, playerID uuid.UUID, ratingBand int) (models.Ranking, error) {
	mine, err := GetRanking(ctx, playerID)
	if err != nil {
		return models.Ranking{}, err
	}
	q := `
		SELECT ` + rankingColumns + `
		FROM player_rankings
		WHERE player_id <> $1 AND rating BETWEEN $2 AND $3
		ORDER BY abs(rating - $4) ASC
		LIMIT 1
	`
	r, err := scanRanking(DB.QueryRow(ctx, q, playerID, mine.Rating-ratingBand, mine.Rating+ratingBand, mine.Rating))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Ranking{}, fmt.Errorf("no suitable match: %w", models.ErrNotFound)
	}
	return r, err
}
