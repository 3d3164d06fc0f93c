package auth

import "github.com/google/uuid"

// NewRefreshTokenID returns an opaque refresh token identifier (UUIDv4).
func NewRefreshTokenID() string {
	return uuid.NewString()
}
