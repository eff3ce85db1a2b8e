// Package session keeps server-side session records and the signed cookie
// that points a browser at one of them.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by a Store when no live record has the given id.
var ErrNotFound = errors.New("session not found")

// FlashKind classifies a one-shot notice shown on the next rendered page.
type FlashKind string

const (
	FlashInfo    FlashKind = "info"
	FlashSuccess FlashKind = "success"
	FlashWarning FlashKind = "warning"
	FlashError   FlashKind = "error"
)

type Flash struct {
	Kind    FlashKind `json:"kind"`
	Message string    `json:"message"`
}

// Session binds a browser to an optional user identity.
type Session struct {
	ID       string  `json:"id"`
	UserID   string  `json:"user_id,omitempty"`
	Username string  `json:"username,omitempty"`
	Flashes  []Flash `json:"flashes,omitempty"`
}

// New returns an anonymous session with a fresh random id.
func New() *Session {
	return &Session{ID: uuid.NewString()}
}

func (s *Session) Authenticated() bool {
	return s.UserID != ""
}

// Bind attaches a user identity.
func (s *Session) Bind(userID, username string) {
	s.UserID = userID
	s.Username = username
}

// Unbind drops the user identity, keeping pending flashes.
func (s *Session) Unbind() {
	s.UserID = ""
	s.Username = ""
}

// Rotate assigns a new id and returns the previous one.
func (s *Session) Rotate() string {
	old := s.ID
	s.ID = uuid.NewString()
	return old
}

func (s *Session) AddFlash(kind FlashKind, message string) {
	s.Flashes = append(s.Flashes, Flash{Kind: kind, Message: message})
}

// PopFlashes returns pending flashes and clears them.
func (s *Session) PopFlashes() []Flash {
	f := s.Flashes
	s.Flashes = nil
	return f
}

// Store persists session records.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
