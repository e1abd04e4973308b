package user

import (
	"context"
	"errors"
	"testing"

	"bookshelf/internal/platform/crypto"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("stores hashed password", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := NewMockRepository(ctrl)
		svc := NewService(repo)

		repo.EXPECT().GetByEmail(gomock.Any(), "reader@example.com").Return(User{}, ErrNotFound)
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *User) error {
			assert.Equal(t, "reader", u.Username)
			assert.True(t, crypto.VerifyPassword(u.PasswordHash, "Test123!@#"))
			u.ID = "user-1"
			return nil
		})

		u, err := svc.Register(ctx, " Reader@Example.com ", "reader", "Test123!@#")
		require.NoError(t, err)
		assert.Equal(t, "user-1", u.ID)
		assert.Equal(t, "reader@example.com", u.Email)
	})

	t.Run("existing email", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := NewMockRepository(ctrl)
		svc := NewService(repo)

		repo.EXPECT().GetByEmail(gomock.Any(), "reader@example.com").Return(User{ID: "user-1"}, nil)

		_, err := svc.Register(ctx, "reader@example.com", "reader", "Test123!@#")
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("lookup failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := NewMockRepository(ctrl)
		svc := NewService(repo)
		down := errors.New("connection refused")

		repo.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(User{}, down)

		_, err := svc.Register(ctx, "reader@example.com", "reader", "Test123!@#")
		assert.ErrorIs(t, err, down)
	})
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo())
	registered, err := svc.Register(ctx, "reader@example.com", "reader", "Test123!@#")
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "READER@example.com", "Test123!@#")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)

	_, err = svc.Authenticate(ctx, "reader@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "Test123!@#")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestMemoryRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	u := &User{Email: "a@example.com", Username: "alice"}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	assert.ErrorIs(t, repo.Create(ctx, &User{Email: "A@example.com"}), ErrAlreadyExists)

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
