package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_HasPendingReset(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		user User
		want bool
	}{
		{"no token", User{}, false},
		{"future expiry", User{ResetToken: "t", ResetExpiry: now.Add(time.Minute)}, true},
		{"expiry equals now", User{ResetToken: "t", ResetExpiry: now}, true},
		{"past expiry", User{ResetToken: "t", ResetExpiry: now.Add(-time.Nanosecond)}, false},
		{"expiry without token", User{ResetExpiry: now.Add(time.Hour)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.HasPendingReset(now))
		})
	}
}
