// Package auth signs users in and out with bearer tokens.
package auth

import (
	"context"
	"errors"
	"time"
)

var ErrUnauthorized = errors.New("unauthorized")

// RevocationRepository records logged-out token ids until they expire.
type RevocationRepository interface {
	Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	CleanupExpired(ctx context.Context) error
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}
