package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hayoung-dev/gptfolio-backend/internal/models"
	"github.com/hayoung-dev/gptfolio-backend/internal/storage"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrFingerprintMismatch  = errors.New("refresh token fingerprint mismatch")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
)

// AuthService owns the refresh-token lifecycle: issue on login, verify with
// fingerprint binding, rotate on refresh, revoke on logout.
type AuthService struct {
	storage storage.Storage
	tokens  *TokenService
	webhook *WebhookService
	log     *zap.SugaredLogger
}

func NewAuthService(storage storage.Storage, tokens *TokenService, webhook *WebhookService, log *zap.SugaredLogger) *AuthService {
	return &AuthService{
		storage: storage,
		tokens:  tokens,
		webhook: webhook,
		log:     log,
	}
}

// Login verifies credentials against the stored bcrypt hash, mints an access
// token and persists a new refresh token bound to meta.
func (s *AuthService) Login(ctx context.Context, username, password string, meta models.UserMetadata) (accessToken, refreshToken string, err error) {
	user, err := s.storage.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Unknown user and wrong password are indistinguishable to the caller.
			return "", "", ErrInvalidCredentials
		}
		return "", "", fmt.Errorf("get user by username: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", ErrInvalidCredentials
	}

	now := time.Now()
	accessToken, err = s.tokens.CreateAccessToken(user.ID, now)
	if err != nil {
		return "", "", fmt.Errorf("create access token: %w", err)
	}

	refreshToken, err = s.tokens.NewRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("create refresh token: %w", err)
	}

	_, err = s.storage.CreateRefreshToken(ctx, models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		Status:    models.TokenStatusActive,
		ExpiresAt: now.Add(s.tokens.RefreshTTL()),
	})
	if err != nil {
		return "", "", fmt.Errorf("persist refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

// VerifyRefreshToken returns the active record for token, or the reason it
// is unusable. Expiry is applied lazily here: an overdue active row is
// persisted as expired before the error is returned. Any other failure
// leaves the row untouched.
func (s *AuthService) VerifyRefreshToken(ctx context.Context, token string, meta models.UserMetadata) (*models.RefreshToken, error) {
	record, err := s.storage.GetActiveRefreshToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("get active refresh token: %w", err)
	}

	if record.UserAgent != meta.UserAgent || record.IPAddress != meta.IPAddress {
		s.log.Warnw("refresh token fingerprint mismatch",
			"user_id", record.UserID,
			"stored_ip", record.IPAddress,
			"presented_ip", meta.IPAddress,
		)
		s.webhook.NotifyFingerprintMismatch(ctx, map[string]interface{}{
			"user_id":      record.UserID,
			"stored_ip":    record.IPAddress,
			"presented_ip": meta.IPAddress,
			"user_agent":   meta.UserAgent,
		})
		return nil, ErrFingerprintMismatch
	}

	if record.ExpiresAt.Before(time.Now()) {
		if err := s.storage.MarkExpired(ctx, record.ID); err != nil {
			return nil, fmt.Errorf("mark refresh token expired: %w", err)
		}
		return nil, ErrRefreshTokenExpired
	}

	return record, nil
}

// Rotate revokes record and issues its single replacement, carrying the
// fingerprint forward. A lost race against a concurrent rotation surfaces
// as ErrRefreshTokenNotFound.
func (s *AuthService) Rotate(ctx context.Context, record *models.RefreshToken) (string, error) {
	newToken, err := s.tokens.NewRefreshToken()
	if err != nil {
		return "", fmt.Errorf("create refresh token: %w", err)
	}

	_, err = s.storage.RotateTx(ctx, record.Token, models.RefreshToken{
		UserID:    record.UserID,
		Token:     newToken,
		UserAgent: record.UserAgent,
		IPAddress: record.IPAddress,
		Status:    models.TokenStatusActive,
		ExpiresAt: time.Now().Add(s.tokens.RefreshTTL()),
	})
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return "", ErrRefreshTokenNotFound
		}
		return "", fmt.Errorf("rotate refresh token: %w", err)
	}

	return newToken, nil
}

// Regenerate is verify + rotate + mint. A token that fails verification is
// never rotated.
func (s *AuthService) Regenerate(ctx context.Context, token string, meta models.UserMetadata) (accessToken, newRefreshToken string, err error) {
	record, err := s.VerifyRefreshToken(ctx, token, meta)
	if err != nil {
		return "", "", err
	}

	newRefreshToken, err = s.Rotate(ctx, record)
	if err != nil {
		return "", "", err
	}

	accessToken, err = s.tokens.CreateAccessToken(record.UserID, time.Now())
	if err != nil {
		return "", "", fmt.Errorf("create access token: %w", err)
	}

	return accessToken, newRefreshToken, nil
}

// Logout revokes the refresh token if it is still active and denylists the
// access token for its remaining lifetime. Repeating either step is a no-op,
// so logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken, accessToken string) error {
	record, err := s.storage.FindRefreshToken(ctx, refreshToken)
	switch {
	case errors.Is(err, storage.ErrTokenNotFound):
		// Unknown token: nothing to revoke.
	case err != nil:
		return fmt.Errorf("find refresh token: %w", err)
	case record.Status == models.TokenStatusActive:
		if err := s.storage.RevokeActive(ctx, refreshToken); err != nil && !errors.Is(err, storage.ErrTokenNotFound) {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
	}

	if err := s.tokens.InvalidateAccessToken(ctx, accessToken); err != nil {
		return fmt.Errorf("invalidate access token: %w", err)
	}

	return nil
}
