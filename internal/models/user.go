package models

import "github.com/google/uuid"

// User is the verified identity provided by the auth collaborator. The
// service never creates or mutates users; it only reads them for display
// names and rating snapshots.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email,omitempty"`
	Password string    `json:"password,omitempty"`
	Username string    `json:"username"`

	// Rating is the player's current matchmaking rating. Snapshotted into
	// a queue entry at enqueue time.
	Rating int `json:"rating"`
}
