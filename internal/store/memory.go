package store

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"pwreset/internal/models"
)

// MemoryStore is an in-process UserStore. A single mutex serializes every
// operation, which gives the same uniqueness and consume-once guarantees as
// the Mongo indexes and conditional updates.
type MemoryStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
	now   func() time.Time
}

var _ UserStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[primitive.ObjectID]*models.User),
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrDuplicate
		}
	}

	now := s.now().UTC()
	doc := *u
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	s.users[doc.ID] = &doc

	*u = doc
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(u), nil
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Username == username })
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == email })
}

func (s *MemoryStore) FindByResetToken(_ context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.find(func(u *models.User) bool { return u.ResetToken == token })
}

func (s *MemoryStore) SetResetToken(_ context.Context, id primitive.ObjectID, token string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.ResetToken = token
	u.ResetExpiry = expiry.UTC()
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) ClearExpiredResetToken(_ context.Context, token string, now time.Time) error {
	if token == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if u := s.lookup(func(u *models.User) bool { return u.ResetToken == token }); u != nil && u.ResetExpiry.Before(now) {
		u.ResetToken = ""
		u.ResetExpiry = time.Time{}
		u.UpdatedAt = s.now().UTC()
	}
	return nil
}

func (s *MemoryStore) ConsumeResetToken(_ context.Context, token string, now time.Time, passwordHash string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.lookup(func(u *models.User) bool { return u.ResetToken == token })
	if u == nil || !u.HasPendingReset(now) {
		return nil, ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.ResetToken = ""
	u.ResetExpiry = time.Time{}
	u.UpdatedAt = s.now().UTC()
	return clone(u), nil
}

func (s *MemoryStore) find(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u := s.lookup(match); u != nil {
		return clone(u), nil
	}
	return nil, ErrNotFound
}

// lookup must be called with mu held.
func (s *MemoryStore) lookup(match func(*models.User) bool) *models.User {
	for _, u := range s.users {
		if match(u) {
			return u
		}
	}
	return nil
}

func clone(u *models.User) *models.User {
	c := *u
	return &c
}
