// Package store persists user credentials and reset-token state.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"pwreset/internal/models"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when a create violates username or email uniqueness.
	ErrDuplicate = errors.New("username or email already exists")
)

// UserStore is the credential store. Implementations must enforce username
// and email uniqueness on Create and apply every multi-field update
// atomically.
type UserStore interface {
	// Create inserts u, assigning its ID and timestamps.
	Create(ctx context.Context, u *models.User) error

	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByResetToken returns the holder of token regardless of its expiry.
	FindByResetToken(ctx context.Context, token string) (*models.User, error)

	// SetResetToken stores token and expiry on the user together.
	SetResetToken(ctx context.Context, id primitive.ObjectID, token string, expiry time.Time) error

	// ClearExpiredResetToken removes token and expiry from the holder of token
	// only if the expiry is before now. Clearing nothing is not an error.
	ClearExpiredResetToken(ctx context.Context, token string, now time.Time) error

	// ConsumeResetToken replaces the password hash and clears the reset fields
	// in one step, provided token is still held and unexpired at now. Losing a
	// race to another consumer yields ErrNotFound.
	ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (*models.User, error)
}
