// Package auth implements credential checks, session establishment and the
// password-reset token workflow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"pwreset/internal/hasher"
	"pwreset/internal/logging"
	"pwreset/internal/models"
	"pwreset/internal/session"
	"pwreset/internal/store"
	"pwreset/internal/util"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// Gate authenticates credentials and binds sessions to users.
type Gate struct {
	users      store.UserStore
	hasher     hasher.Hasher
	sessions   session.Store
	sessionTTL time.Duration
	log        logging.Logger

	dummyMu   sync.Mutex
	dummyHash string
}

func NewGate(users store.UserStore, h hasher.Hasher, sessions session.Store, sessionTTL time.Duration, log logging.Logger) *Gate {
	return &Gate{
		users:      users,
		hasher:     h,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		log:        log.With("component", "auth"),
	}
}

// Signup creates an account and logs sess into it. The password is hashed
// before the first write; nothing is stored if hashing fails.
func (g *Gate) Signup(ctx context.Context, sess *session.Session, username, email, password string) (*models.User, error) {
	in := signupInput{
		Username: strings.TrimSpace(username),
		Email:    util.NormalizeEmail(email),
		Password: password,
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := g.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: in.Username, Email: in.Email, PasswordHash: hash}
	if err := g.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &ValidationError{Message: "username or email is already taken"}
		}
		return nil, err
	}
	g.log.Info(ctx, "user registered", "username", user.Username)

	if err := g.Establish(ctx, sess, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks username and password. Unknown users still pay for one
// hash comparison so both failure paths take similar time.
func (g *Gate) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := g.users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		g.burnComparison(ctx, password)
		return nil, &AuthFailure{Reason: UnknownUser}
	}
	if err != nil {
		return nil, err
	}

	ok, err := g.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &AuthFailure{Reason: BadPassword}
	}
	return user, nil
}

// Login authenticates and, on success, binds sess to the user.
func (g *Gate) Login(ctx context.Context, sess *session.Session, username, password string) (*models.User, error) {
	user, err := g.Authenticate(ctx, username, password)
	if err != nil {
		var af *AuthFailure
		if errors.As(err, &af) {
			g.log.Info(ctx, "login rejected", "username", username, "reason", af.Reason.String())
		}
		return nil, err
	}
	if err := g.Establish(ctx, sess, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Establish rotates the session id, binds it to user and saves it. The
// record under the previous id is removed.
func (g *Gate) Establish(ctx context.Context, sess *session.Session, user *models.User) error {
	old := sess.Rotate()
	if err := g.sessions.Delete(ctx, old); err != nil {
		return fmt.Errorf("drop previous session: %w", err)
	}
	sess.Bind(user.ID.Hex(), user.Username)
	if err := g.sessions.Save(ctx, sess, g.sessionTTL); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Logout removes the session record so its cookie resolves to nobody, then
// leaves sess anonymous under a new id.
func (g *Gate) Logout(ctx context.Context, sess *session.Session) error {
	if err := g.sessions.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	sess.Unbind()
	sess.Rotate()
	return nil
}

// CurrentUser returns the user bound to sess, or nil for anonymous sessions
// and sessions whose user no longer exists.
func (g *Gate) CurrentUser(ctx context.Context, sess *session.Session) (*models.User, error) {
	if !sess.Authenticated() {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(sess.UserID)
	if err != nil {
		sess.Unbind()
		return nil, nil
	}
	user, err := g.users.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		sess.Unbind()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (g *Gate) burnComparison(ctx context.Context, password string) {
	if h := g.dummy(ctx); h != "" {
		_, _ = g.hasher.Verify(ctx, password, h)
	}
}

// dummy returns the hash compared against for unknown users, building it on
// first use. The build ignores the caller's cancellation and is retried on
// the next call if it fails.
func (g *Gate) dummy(ctx context.Context) string {
	g.dummyMu.Lock()
	defer g.dummyMu.Unlock()
	if g.dummyHash == "" {
		h, err := g.hasher.Hash(context.WithoutCancel(ctx), "timing-equalizer")
		if err != nil {
			g.log.Warn(ctx, "could not prepare dummy hash", "error", err)
			return ""
		}
		g.dummyHash = h
	}
	return g.dummyHash
}

type signupInput struct {
	Username string `form:"username" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

func (in signupInput) validate() error {
	violations, err := util.ValidateStruct(in)
	if err != nil {
		return err
	}
	var missing []string
	for _, v := range violations {
		if v.Rule == "required" {
			missing = append(missing, v.Field)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Field: missing[0], Message: "missing required fields: " + strings.Join(missing, ", ")}
	}
	if len(violations) > 0 {
		return &ValidationError{Field: violations[0].Field, Message: "invalid " + violations[0].Field + " format"}
	}
	return checkPassword(in.Password)
}

func checkPassword(password string) error {
	if password == "" {
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) > MaxPasswordBytes {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes)}
	}
	return nil
}
