package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jmlee487/gambit/internal/lobby"
	"github.com/jmlee487/gambit/internal/models"
)

// InsertLobby writes the durable record of a lobby and its roster.
func InsertLobby(ctx context.Context, snap lobby.Lobby) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO lobbies (id, name, host_user_id, capacity, game_type, is_private, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, snap.ID, snap.Name, snap.HostID, snap.Capacity, snap.GameType, snap.Private, string(snap.Status), snap.CreatedAt)
		if err != nil {
			return err
		}
		for i, e := range snap.Roster {
			if _, err := tx.Exec(ctx, `
				INSERT INTO lobby_participants (lobby_id, user_id, seat_position, is_ready, joined_at)
				VALUES ($1, $2, $3, $4, $5)
			`, snap.ID, e.PlayerID, i, e.Ready, e.JoinedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateLobbyStatus records a lifecycle transition.
func UpdateLobbyStatus(ctx context.Context, lobbyID uuid.UUID, status lobby.Status) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE lobbies SET status=$1 WHERE id=$2`, string(status), lobbyID)
		return err
	})
}

// DeleteLobby removes a lobby row and its participants.
func DeleteLobby(ctx context.Context, lobbyID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM lobby_participants WHERE lobby_id=$1`, lobbyID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM lobbies WHERE id=$1`, lobbyID)
		return err
	})
}

// GetLobbyStatus fetches a lobby's persisted status.
func GetLobbyStatus(ctx context.Context, lobbyID uuid.UUID) (lobby.Status, error) {
	var status string
	err := DB.QueryRow(ctx, `SELECT status FROM lobbies WHERE id=$1`, lobbyID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("lobby %s: %w", lobbyID, models.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return lobby.Status(status), nil
}
