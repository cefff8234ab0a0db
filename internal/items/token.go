package items

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// NewItemID generates an item identifier. UUIDv4 gives 122 bits of
// randomness, enough that ids double as unguessable URL path segments.
func NewItemID() string {
	return uuid.New().String()
}

// NewSecretKey generates a per-item capability token: 16 random bytes,
// base64url without padding, so it can live in a query string untouched.
func NewSecretKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
