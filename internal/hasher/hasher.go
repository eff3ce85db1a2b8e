// Package hasher provides one-way salted password hashing.
package hasher

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	// Hash returns a salted hash of plaintext.
	Hash(ctx context.Context, plaintext string) (string, error)

	// Verify reports whether plaintext matches hashed. A mismatch is not an error.
	Verify(ctx context.Context, plaintext, hashed string) (bool, error)
}

// Bcrypt is a Hasher backed by bcrypt with a fixed work factor.
type Bcrypt struct {
	cost int
}

var _ Hasher = (*Bcrypt)(nil)

// NewBcrypt returns a bcrypt hasher using cost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Hash runs bcrypt on its own goroutine and waits for it or for ctx.
func (b *Bcrypt) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	type result struct {
		hash []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		h, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
		done <- result{h, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("hash password: %w", r.err)
		}
		return string(r.hash), nil
	}
}

// Verify runs the comparison on its own goroutine. An empty hashed value,
// as held by pre-provisioned accounts, never matches.
func (b *Bcrypt) Verify(ctx context.Context, plaintext, hashed string) (bool, error) {
	if hashed == "" {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	done := make(chan error, 1)
	go func() {
		done <- bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext))
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-done:
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("verify password: %w", err)
	}
}
