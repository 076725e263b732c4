package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// newSessionToken returns a 256-bit random token encoded as hex.
func newSessionToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
