package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hayoung-dev/gptfolio-backend/internal/models"
	"github.com/hayoung-dev/gptfolio-backend/internal/storage/memory"
	"github.com/hayoung-dev/gptfolio-backend/internal/util"
)

func newAuthFixture(t *testing.T) (*AuthService, *UserService, *memory.Storage) {
	t.Helper()

	log := zap.NewNop().Sugar()
	st := memory.NewStorage()
	tokens := NewTokenService(&util.TokenConfig{
		JwtSecretKey: []byte("test-secret"),
		AccessTTL:    time.Minute,
		RefreshTTL:   time.Hour,
	}, memory.NewTokenDenylist())
	webhook := NewWebhookService(log, "")

	return NewAuthService(st, tokens, webhook, log), NewUserService(st, log), st
}

func signUpAndLogin(t *testing.T, auth *AuthService, users *UserService, meta models.UserMetadata) (access, refresh string) {
	t.Helper()

	ctx := context.Background()
	_, err := users.Register(ctx, models.SignUpRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter2",
	})
	require.NoError(t, err)

	access, refresh, err = auth.Login(ctx, "alice", "hunter2", meta)
	require.NoError(t, err)
	return access, refresh
}

func TestLogin_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	auth, users, _ := newAuthFixture(t)
	meta := models.UserMetadata{UserAgent: "UA1", IPAddress: "1.2.3.4"}

	access, refresh := signUpAndLogin(t, auth, users, meta)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	record, err := auth.VerifyRefreshToken(ctx, refresh, meta)
	require.NoError(t, err)
	require.Equal(t, models.TokenStatusActive, record.Status)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	auth, users, _ := newAuthFixture(t)
	meta := models.UserMetadata{UserAgent: "UA1", IPAddress: "1.2.3.4"}
	signUpAndLogin(t, auth, users, meta)

	_, _, err := auth.Login(ctx, "alice", "wrong-password", meta)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = auth.Login(ctx, "nobody", "hunter2", meta)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, users, _ := newAuthFixture(t)

	_, err := users.Register(ctx, models.SignUpRequest{Username: "alice", Email: "alice@example.com", Password: "hunter2"})
	require.NoError(t, err)

	_, err = users.Register(ctx, models.SignUpRequest{Username: "alice2", Email: "alice@example.com", Password: "hunter2"})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegenerate_SingleUseRotation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	auth, users, _ := newAuthFixture(t)
	meta := models.UserMetadata{UserAgent: "UA1", IPAddress: "1.2.3.4"}
	_, refresh := signUpAndLogin(t, auth, users, meta)

	_, newRefresh, err := auth.Regenerate(ctx, refresh, meta)
	require.NoError(t, err)
	require.NotEqual(t, refresh, newRefresh)

	// The consumed token can never pass verification again.
	_, _, err = auth.Regenerate(ctx, refresh, meta)
	require.ErrorIs(t, err, ErrRefreshTokenNotFound)
}

func TestRegenerate_ConcurrentUsesRotateOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	auth, users, _ := newAuthFixture(t)
	meta := models.UserMetadata{UserAgent: "UA1", IPAddress: "1.2.3.4"}
	_, refresh := signUpAndLogin(t, auth, users, meta)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = auth.Regenerate(ctx, refresh, meta)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, ErrRefreshTokenNotFound)
		}
	}
	require.Equal(t, 1, successes)
}

func TestVerifyRefreshToken_FingerprintBinding(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	auth, users, _ := newAuthFixture(t)
	meta := models.UserMetadata{UserAgent: "UA1", IPAddress: "1.2.3.4"}
	_, refresh := signUpAndLogin(t, auth, users, meta)

	_, err := auth.VerifyRefreshToken(ctx, refresh, models.UserMetadata{UserAgent: "UA2", IPAddress: "1.2.3.4"})
	require.ErrorIs(t, err, ErrFingerprintMismatch)

	_, err = auth.VerifyRefreshToken(ctx, refresh, models.UserMetadata{UserAgent: "UA1", IPAddress: "5.6.7.8"})
	require.ErrorIs(t, err, ErrFingerprintMismatch)

	// A mismatch never consumes the token.
	record, err := auth.VerifyRefreshToken(ctx, refresh, meta)
	require.NoError(t, err)
	require.Equal(t, models.TokenStatusActive, record.Status)
}

func TestVerifyRefreshToken_LazyExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	auth, _, st := newAuthFixture(t)
	meta := models.UserMetadata{UserAgent: "UA1", IPAddress: "1.2.3.4"}

	_, err := st.CreateRefreshToken(ctx, models.RefreshToken{
		UserID:    1,
		Token:     "stale-token",
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	_, err = auth.VerifyRefreshToken(ctx, "stale-token", meta)
	require.ErrorIs(t, err, ErrRefreshTokenExpired)

	record, err := st.FindRefreshToken(ctx, "stale-token")
	require.NoError(t, err)
	require.Equal(t, models.TokenStatusExpired, record.Status)

	// Terminal: a second verify sees no active row.
	_, err = auth.VerifyRefreshToken(ctx, "stale-token", meta)
	require.ErrorIs(t, err, ErrRefreshTokenNotFound)
}

func TestLogout_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	auth, users, st := newAuthFixture(t)
	meta := models.UserMetadata{UserAgent: "UA1", IPAddress: "1.2.3.4"}
	access, refresh := signUpAndLogin(t, auth, users, meta)

	require.NoError(t, auth.Logout(ctx, refresh, access))
	require.NoError(t, auth.Logout(ctx, refresh, access))

	record, err := st.FindRefreshToken(ctx, refresh)
	require.NoError(t, err)
	require.Equal(t, models.TokenStatusRevoked, record.Status)

	// Unknown token is a no-op, not an error.
	require.NoError(t, auth.Logout(ctx, "never-issued", access))
}

func TestAuthScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	auth, users, _ := newAuthFixture(t)
	meta := models.UserMetadata{UserAgent: "UA1", IPAddress: "1.2.3.4"}

	_, refresh := signUpAndLogin(t, auth, users, meta)

	access, newRefresh, err := auth.Regenerate(ctx, refresh, meta)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEqual(t, refresh, newRefresh)

	_, _, err = auth.Regenerate(ctx, refresh, meta)
	require.ErrorIs(t, err, ErrRefreshTokenNotFound)

	_, _, err = auth.Regenerate(ctx, newRefresh, models.UserMetadata{UserAgent: "UA2", IPAddress: "1.2.3.4"})
	require.ErrorIs(t, err, ErrFingerprintMismatch)
}
