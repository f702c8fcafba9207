package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"civicsync/apperr"
	"civicsync/store"
	authUtils "civicsync/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := authUtils.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	svc, err := NewAuthService(store.NewMemoryUserStore(), tokens, store.NewRedisRevocationStore(client),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return svc
}

func TestAuthRegisterLoginProfile(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(t)

	registered, err := svc.Register(ctx, "Asha", " Asha@Example.com ", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "asha@example.com", registered.User.Email)

	_, err = svc.Register(ctx, "Other", "asha@example.com", "secret2")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	loggedIn, err := svc.Login(ctx, "asha@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	_, err = svc.Login(ctx, "asha@example.com", "wrong")
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))

	claims, err := svc.Authenticate(ctx, loggedIn.Token)
	require.NoError(t, err)
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	require.NoError(t, err)

	profile, err := svc.Profile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Asha", profile.Name)
}

func TestAuthLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(t)

	res, err := svc.Register(ctx, "Asha", "asha@example.com", "secret1")
	require.NoError(t, err)
	claims, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims))

	_, err = svc.Authenticate(ctx, res.Token)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestAuthRejectsBadToken(t *testing.T) {
	svc := newAuthService(t)
	_, err := svc.Authenticate(context.Background(), "garbage")
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}
