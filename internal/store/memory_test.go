package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pwreset/internal/models"
)

func seedUser(t *testing.T, s *MemoryStore, username, email string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: email, PasswordHash: "hash-" + username}
	require.NoError(t, s.Create(context.Background(), u))
	return u
}

func TestMemoryStore_CreateAssignsIDAndTimestamps(t *testing.T) {
	s := NewMemoryStore()
	u := seedUser(t, s, "alice", "a@x.com")

	assert.False(t, u.ID.IsZero())
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, u.CreatedAt, u.UpdatedAt)

	got, err := s.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestMemoryStore_CreateRejectsDuplicates(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "alice", "a@x.com")

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{"same username", "alice", "other@x.com"},
		{"same email", "bob", "a@x.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Create(context.Background(), &models.User{Username: tt.username, Email: tt.email})
			assert.ErrorIs(t, err, ErrDuplicate)
		})
	}
}

func TestMemoryStore_ConcurrentCreateSameUsername(t *testing.T) {
	s := NewMemoryStore()

	var wg sync.WaitGroup
	var created atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := &models.User{Username: "alice", Email: string(rune('a'+i)) + "@x.com"}
			if err := s.Create(context.Background(), u); err == nil {
				created.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
}

func TestMemoryStore_Lookups(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u := seedUser(t, s, "alice", "a@x.com")

	got, err := s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = s.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.FindByUsername(ctx, "Alice")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByEmail(ctx, "b@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByResetToken(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, s, "alice", "a@x.com")

	got, err := s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	got.PasswordHash = "tampered"

	again, err := s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-alice", again.PasswordHash)
}

func TestMemoryStore_ResetTokenLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u := seedUser(t, s, "alice", "a@x.com")
	now := time.Now()

	require.NoError(t, s.SetResetToken(ctx, u.ID, "tok1", now.Add(time.Hour)))

	got, err := s.FindByResetToken(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.HasPendingReset(now))

	consumed, err := s.ConsumeResetToken(ctx, "tok1", now, "newhash")
	require.NoError(t, err)
	assert.Equal(t, "newhash", consumed.PasswordHash)
	assert.Empty(t, consumed.ResetToken)
	assert.True(t, consumed.ResetExpiry.IsZero())

	_, err = s.ConsumeResetToken(ctx, "tok1", now, "again")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByResetToken(ctx, "tok1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SetResetTokenUnknownUser(t *testing.T) {
	err := NewMemoryStore().SetResetToken(context.Background(), primitive.NewObjectID(), "t", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ConsumeExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u := seedUser(t, s, "alice", "a@x.com")
	expiry := time.Now().Add(time.Hour)
	require.NoError(t, s.SetResetToken(ctx, u.ID, "tok1", expiry))

	_, err := s.ConsumeResetToken(ctx, "tok1", expiry.Add(time.Nanosecond), "newhash")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-alice", got.PasswordHash)
}

func TestMemoryStore_ClearExpiredResetToken(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u := seedUser(t, s, "alice", "a@x.com")
	expiry := time.Now().Add(time.Hour)
	require.NoError(t, s.SetResetToken(ctx, u.ID, "tok1", expiry))

	// Not expired yet: left alone.
	require.NoError(t, s.ClearExpiredResetToken(ctx, "tok1", expiry))
	_, err := s.FindByResetToken(ctx, "tok1")
	require.NoError(t, err)

	require.NoError(t, s.ClearExpiredResetToken(ctx, "tok1", expiry.Add(time.Second)))
	_, err = s.FindByResetToken(ctx, "tok1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.ClearExpiredResetToken(ctx, "unknown", time.Now()))
}

func TestMemoryStore_ConcurrentConsume(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u := seedUser(t, s, "alice", "a@x.com")
	now := time.Now()
	require.NoError(t, s.SetResetToken(ctx, u.ID, "tok1", now.Add(time.Hour)))

	const n = 16
	var wg sync.WaitGroup
	var wins, losses atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ConsumeResetToken(ctx, "tok1", now, "newhash")
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, ErrNotFound):
				losses.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), losses.Load())
}
