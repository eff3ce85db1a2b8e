package session

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// DefaultCookieName is the cookie carrying the signed session id.
const DefaultCookieName = "pwreset_session"

// Manager ties the Store to the HTTP cookie.
type Manager struct {
	store      Store
	codec      *Codec
	ttl        time.Duration
	cookieName string
	secure     bool
}

func NewManager(store Store, codec *Codec, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:      store,
		codec:      codec,
		ttl:        ttl,
		cookieName: DefaultCookieName,
		secure:     secure,
	}
}

// Load resolves the request's session. A missing, forged or expired cookie,
// or a record that no longer exists, yields a fresh anonymous session. Only
// store failures are returned as errors.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return New(), nil
	}
	id, err := m.codec.Decode(c.Value)
	if err != nil {
		return New(), nil
	}
	s, err := m.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Save persists s and points the response cookie at it.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		return err
	}
	value, err := m.codec.Encode(s.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Persist saves s only when it holds something: a bound user or queued
// flashes. dirty forces the save, for a stored record that was just changed
// (flashes popped, stale user unbound). Anonymous visitors with nothing queued leave no record
// and get no cookie.
func (m *Manager) Persist(ctx context.Context, w http.ResponseWriter, s *Session, dirty bool) error {
	if !dirty && !s.Authenticated() && len(s.Flashes) == 0 {
		return nil
	}
	return m.Save(ctx, w, s)
}
