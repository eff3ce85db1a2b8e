package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pwreset/internal/hasher"
	"pwreset/internal/logging"
	"pwreset/internal/mailer"
	"pwreset/internal/models"
	"pwreset/internal/session"
	"pwreset/internal/store"
	"pwreset/internal/util"
)

// DefaultResetTTL is how long an issued reset token stays valid.
const DefaultResetTTL = time.Hour

const confirmationTimeout = 30 * time.Second

// ResetManager issues, validates and consumes single-use reset tokens.
type ResetManager struct {
	users  store.UserStore
	hasher hasher.Hasher
	mailer mailer.Sender
	gate   *Gate
	ttl    time.Duration
	log    logging.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

func NewResetManager(users store.UserStore, h hasher.Hasher, sender mailer.Sender, gate *Gate, ttl time.Duration, log logging.Logger) *ResetManager {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetManager{
		users:  users,
		hasher: h,
		mailer: sender,
		gate:   gate,
		ttl:    ttl,
		log:    log.With("component", "reset"),
		now:    time.Now,
	}
}

// Request issues a token for the account registered under email and mails a
// link of the form linkBase/reset/<token>.
//
// An unknown email yields ErrNoSuchAccount with nothing stored or sent. If
// storing the token fails no mail is sent. If the mail fails the token stays
// valid and a *MailDeliveryError is returned.
func (m *ResetManager) Request(ctx context.Context, email, linkBase string) error {
	token, err := generateResetToken()
	if err != nil {
		return err
	}

	email = util.NormalizeEmail(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if !util.ValidateEmail(email) {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}
	user, err := m.users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoSuchAccount
	}
	if err != nil {
		return err
	}

	expiry := m.now().Add(m.ttl)
	if err := m.users.SetResetToken(ctx, user.ID, token, expiry); err != nil {
		return err
	}
	m.log.Info(ctx, "reset token issued", "username", user.Username, "expires", expiry)

	link := strings.TrimRight(linkBase, "/") + "/reset/" + token
	if err := m.mailer.Send(ctx, user.Email, resetSubject, resetBody(link, m.ttl)); err != nil {
		m.log.Warn(ctx, "reset email not delivered", "username", user.Username, "error", err)
		return &MailDeliveryError{To: user.Email, Err: err}
	}
	m.log.Info(ctx, "reset email sent", "username", user.Username)
	return nil
}

// Validate returns the holder of token if it is still valid. Nothing is
// changed for a valid token. An expired token is cleared from its holder.
func (m *ResetManager) Validate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	user, err := m.users.FindByResetToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	now := m.now()
	if user.ResetToken != token || !user.HasPendingReset(now) {
		if err := m.users.ClearExpiredResetToken(ctx, token, now); err != nil {
			m.log.Warn(ctx, "could not clear expired reset token", "username", user.Username, "error", err)
		}
		return nil, ErrTokenInvalid
	}
	return user, nil
}

// Consume sets newPassword for the holder of token, clears the token and logs
// sess in as that user. Of several concurrent calls with one token, exactly
// one succeeds; the rest get ErrTokenInvalid. A confirmation email is sent in
// the background and its failure is only logged.
func (m *ResetManager) Consume(ctx context.Context, sess *session.Session, token, newPassword string) (*models.User, error) {
	if _, err := m.Validate(ctx, token); err != nil {
		return nil, err
	}
	if err := checkPassword(newPassword); err != nil {
		return nil, err
	}

	hash, err := m.hasher.Hash(ctx, newPassword)
	if err != nil {
		return nil, err
	}
	user, err := m.users.ConsumeResetToken(ctx, token, m.now(), hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	m.log.Info(ctx, "password reset", "username", user.Username)

	establishErr := m.gate.Establish(ctx, sess, user)
	m.notifyPasswordChanged(ctx, user)
	if establishErr != nil {
		return nil, fmt.Errorf("password changed but session not established: %w", establishErr)
	}
	return user, nil
}

// Wait blocks until background confirmation emails have finished.
func (m *ResetManager) Wait() {
	m.wg.Wait()
}

func (m *ResetManager) notifyPasswordChanged(ctx context.Context, user *models.User) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmationTimeout)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		if err := m.mailer.Send(ctx, user.Email, changedSubject, changedBody(user.Email)); err != nil {
			m.log.Warn(ctx, "password change confirmation not delivered", "username", user.Username, "error", err)
			return
		}
		m.log.Info(ctx, "password change confirmation sent", "username", user.Username)
	}()
}

const (
	resetSubject   = "Password Reset"
	changedSubject = "Your password has been changed"
)

func resetBody(link string, ttl time.Duration) string {
	return fmt.Sprintf("You are receiving this because you (or someone else) have requested the reset of the password for your account.\n\n"+
		"Please click on the following link, or paste it into your browser, to complete the process:\n\n"+
		"%s\n\n"+
		"This link will expire in %s.\n\n"+
		"If you did not request this, please ignore this email and your password will remain unchanged.\n", link, ttl)
}

func changedBody(email string) string {
	return fmt.Sprintf("Hello,\n\nThis is a confirmation that the password for your account %s has just been changed.\n", email)
}
