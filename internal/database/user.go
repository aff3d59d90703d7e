package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jmlee487/gambit/internal/models"
)

// GetUserByID fetches the verified identity for display names and rating
// snapshots. Users are created elsewhere; this service only reads them.
func GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, email, username, rating
	FROM users
	WHERE id = $1
	`
	err := DB.QueryRow(ctx, q, userID).Scan(&u.ID, &u.Email, &u.Username, &u.Rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
