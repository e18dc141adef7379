package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// RandomToken returns n bytes from crypto/rand encoded as URL-safe base64
// without padding.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewConnectionID identifies one websocket connection inside the registry.
func NewConnectionID() string {
	return "conn_" + uuid.NewString()
}

func NewRequestID() string {
	return uuid.NewString()
}
