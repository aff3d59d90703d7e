package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jmlee487/gambit/internal/matchmaking"
)

// InsertQueueEntry mirrors an in-memory queue entry into the durable log.
func InsertQueueEntry(ctx context.Context, e matchmaking.Entry) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO queue_entries (id, player_id, rating, game_type, joined_at, status)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.ID, e.PlayerID, e.Rating, e.GameType, e.JoinedAt, string(e.Status))
		return err
	})
}

// UpdateQueueEntryStatus records a terminal transition (matched or
// cancelled) with the optional match id.
func UpdateQueueEntryStatus(ctx context.Context, entryID uuid.UUID, status matchmaking.EntryStatus, matchID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if matchID == uuid.Nil {
			_, err := tx.Exec(ctx, `UPDATE queue_entries SET status=$1 WHERE id=$2`, string(status), entryID)
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE queue_entries SET status=$1, match_id=$2 WHERE id=$3`, string(status), matchID, entryID)
		return err
	})
}
