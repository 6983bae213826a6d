package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a reviewer account. Reviewers submit verdicts on training
// attempts; their display name is recorded on the attempt for provenance.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize password hash
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
