package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hayoung-dev/gptfolio-backend/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrTokenNotFound  = errors.New("refresh token not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Storage interface {
	UserRepository
	RefreshTokenRepository

	// RotateTx atomically revokes the active row identified by oldToken and
	// inserts next for the same user. When the old row is no longer active
	// (a concurrent rotation won the race) it returns ErrTokenNotFound and
	// inserts nothing.
	RotateTx(ctx context.Context, oldToken string, next models.RefreshToken) (*models.RefreshToken, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type RefreshTokenRepository interface {
	CreateRefreshToken(ctx context.Context, token models.RefreshToken) (*models.RefreshToken, error)
	// GetActiveRefreshToken looks up by token value among active rows only.
	GetActiveRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	// FindRefreshToken looks up by token value regardless of status.
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	// RevokeActive transitions active -> revoked. ErrTokenNotFound when the
	// row is absent or already terminal.
	RevokeActive(ctx context.Context, token string) error
	// MarkExpired transitions active -> expired. Safe to repeat.
	MarkExpired(ctx context.Context, id int64) error
}

// TokenDenylist blocks access tokens that were invalidated before their
// expiry (logout).
type TokenDenylist interface {
	InvalidateToken(ctx context.Context, token string, expiration time.Duration) error
	IsTokenInvalidated(ctx context.Context, token string) (bool, error)
}
