package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered account.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	ResetToken   string             `bson:"reset_token,omitempty"`
	ResetExpiry  time.Time          `bson:"reset_expiry,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// HasPendingReset reports whether the user holds a reset token that is still
// within its validity window at now.
func (u *User) HasPendingReset(now time.Time) bool {
	return u.ResetToken != "" && !now.After(u.ResetExpiry)
}
