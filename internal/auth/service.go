package auth

import (
	"context"
	"errors"
	"time"

	"bookshelf/internal/platform/crypto"
	"bookshelf/internal/user"

	"go.uber.org/zap"
)

type Service struct {
	secret      string
	ttl         time.Duration
	users       *user.Service
	revocations RevocationRepository
	logger      *zap.Logger
}

func NewService(secret string, ttl time.Duration, users *user.Service, revocations RevocationRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		secret:      secret,
		ttl:         ttl,
		users:       users,
		revocations: revocations,
		logger:      logger,
	}
}

// Login checks the credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			return Token{}, ErrUnauthorized
		}
		return Token{}, err
	}

	token, _, err := crypto.GenerateToken(s.secret, u.ID, s.ttl)
	if err != nil {
		return Token{}, err
	}
	s.logger.Info("user logged in", zap.String("user_id", u.ID))
	return Token{
		AccessToken: token,
		UserID:      u.ID,
		ExpiresAt:   time.Now().Add(s.ttl),
	}, nil
}

// Identify returns the user id a still-valid, unrevoked token was issued to.
func (s *Service) Identify(ctx context.Context, token string) (string, error) {
	claims, err := crypto.ParseToken(s.secret, token)
	if err != nil {
		return "", ErrUnauthorized
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", ErrUnauthorized
	}
	return claims.Sub, nil
}

// Logout revokes token until it would have expired.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := crypto.ParseToken(s.secret, token)
	if err != nil {
		return ErrUnauthorized
	}

	expiresAt := time.Now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.Sub, expiresAt); err != nil {
		return err
	}
	s.logger.Info("user logged out", zap.String("user_id", claims.Sub))
	return nil
}

// IsRevoked lets the service back httpx.AuthMiddleware.
func (s *Service) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.revocations.IsRevoked(ctx, jti)
}

// RunCleanup purges expired revocations every interval until ctx is done.
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.revocations.CleanupExpired(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("token blacklist cleanup failed", zap.Error(err))
			}
		}
	}
}
