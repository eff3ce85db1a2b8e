package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes of entropy per reset token (256 bits).
const tokenBytes = 32

// generateResetToken creates a secure random token for password reset.
func generateResetToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
