package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hayoung-dev/gptfolio-backend/internal/models"
	"github.com/hayoung-dev/gptfolio-backend/internal/storage"
)

const refreshTokenColumns = `id, user_id, token, user_agent, ip_address, status, expires_at, created_at, updated_at`

type RefreshTokenRepository struct {
	db storage.DBTX
}

func NewRefreshTokenRepository(db storage.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) CreateRefreshToken(ctx context.Context, token models.RefreshToken) (*models.RefreshToken, error) {
	query := `INSERT INTO refresh_tokens (user_id, token, user_agent, ip_address, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + refreshTokenColumns

	row := r.db.QueryRowContext(
		ctx,
		query,
		token.UserID,
		token.Token,
		token.UserAgent,
		token.IPAddress,
		models.TokenStatusActive,
		token.ExpiresAt,
	)
	created, err := scanRefreshToken(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return created, nil
}

func (r *RefreshTokenRepository) GetActiveRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token = $1 AND status = 'active'`

	found, err := scanRefreshToken(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get active refresh token: %w", err)
	}
	return found, nil
}

func (r *RefreshTokenRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token = $1`

	found, err := scanRefreshToken(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	return found, nil
}

// RevokeActive is the serialization point for rotation: only a currently
// active row transitions, so of two concurrent rotations exactly one
// observes a non-zero row count.
func (r *RefreshTokenRepository) RevokeActive(ctx context.Context, token string) error {
	query := `UPDATE refresh_tokens SET status = 'revoked', updated_at = now() WHERE token = $1 AND status = 'active'`

	res, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrTokenNotFound
	}
	return nil
}

func (r *RefreshTokenRepository) MarkExpired(ctx context.Context, id int64) error {
	query := `UPDATE refresh_tokens SET status = 'expired', updated_at = now() WHERE id = $1 AND status = 'active'`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark refresh token expired: %w", err)
	}
	return nil
}

func scanRefreshToken(row *sql.Row) (*models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Token,
		&t.UserAgent,
		&t.IPAddress,
		&t.Status,
		&t.ExpiresAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
