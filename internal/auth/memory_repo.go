package auth

import (
	"context"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{revoked: map[string]time.Time{}}
}

func (r *MemoryRepo) Revoke(_ context.Context, jti, _ string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.revoked[jti]; !ok {
		r.revoked[jti] = expiresAt
	}
	return nil
}

func (r *MemoryRepo) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.revoked[jti]
	return ok && exp.After(time.Now()), nil
}

func (r *MemoryRepo) CleanupExpired(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for jti, exp := range r.revoked {
		if exp.Before(now) {
			delete(r.revoked, jti)
		}
	}
	return nil
}
