package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/commerce-support/internal/config"
	"github.com/spec-kit/commerce-support/pkg/apperrors"
)

func newAuthService(users *fakeUserRepo) *AuthService {
	cfg := config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AccessTokenTTLMinutes = 60
	cfg.Auth.BcryptCost = 4 // minimum cost keeps tests fast
	return NewAuthService(cfg, users)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserRepo()
	svc := newAuthService(users)

	user, token, _, err := svc.Register(ctx, "Jamie", "Jamie@Example.com ", "hunter2hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "jamie@example.com", user.Email)
	assert.True(t, user.Active)
	assert.False(t, user.IsAdmin)

	// email comparison is case and whitespace insensitive
	loggedIn, token, _, err := svc.Login(ctx, " JAMIE@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(newFakeUserRepo())

	_, _, _, err := svc.Register(ctx, "Jamie", "jamie@example.com", "hunter2hunter2")
	require.NoError(t, err)

	_, _, _, err = svc.Register(ctx, "Other", "jamie@example.com", "hunter2hunter2")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserRepo()
	svc := newAuthService(users)

	user, _, _, err := svc.Register(ctx, "Jamie", "jamie@example.com", "hunter2hunter2")
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		_, _, _, err := svc.Login(ctx, "jamie@example.com", "wrong")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, _, err := svc.Login(ctx, "nobody@example.com", "hunter2hunter2")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	})

	t.Run("suspended account", func(t *testing.T) {
		users.mu.Lock()
		for _, u := range users.users {
			if u.ID == user.ID {
				u.Active = false
			}
		}
		users.mu.Unlock()

		_, _, _, err := svc.Login(ctx, "jamie@example.com", "hunter2hunter2")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	})
}
