package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jmlee487/gambit/internal/cache"
)

// InsertSession writes the durable record of a new game session.
func InsertSession(ctx context.Context, sessionID, lobbyID uuid.UUID, gameType string) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO sessions (id, lobby_id, game_type, status)
			VALUES ($1, $2, $3, 'waiting')
		`, sessionID, lobbyID, gameType)
		return err
	})
}

// InsertSessionCommands bulk-inserts a batch of command records from the
// historian queue. Payloads are stored as JSONB.
func InsertSessionCommands(ctx context.Context, records []cache.SessionCommandRecord) error {
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, r := range records {
			payload, err := json.Marshal(r.Payload)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO session_commands (session_id, command_index, player_id, command_type, payload, ts)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (session_id, command_index) DO NOTHING
			`, r.SessionID, r.CommandIndex, r.PlayerID, r.CommandType, payload, r.Timestamp); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkSessionFinished records the terminal status of a session.
func MarkSessionFinished(ctx context.Context, sessionID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE sessions SET status='finished' WHERE id=$1`, sessionID)
		return err
	})
}
