package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hayoung-dev/gptfolio-backend/internal/models"
)

type Storage struct {
	db *sql.DB
	*UserRepository
	*RefreshTokenRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:                     db,
		UserRepository:         NewUserRepository(db),
		RefreshTokenRepository: NewRefreshTokenRepository(db),
	}
}

// RotateTx revokes the old active row and inserts its replacement in one
// transaction. The conditional revoke guarantees at most one successful
// rotation per active token under concurrent refresh attempts.
func (s *Storage) RotateTx(ctx context.Context, oldToken string, next models.RefreshToken) (*models.RefreshToken, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	tokenRepoTx := NewRefreshTokenRepository(tx)

	if err := tokenRepoTx.RevokeActive(ctx, oldToken); err != nil {
		return nil, err
	}

	created, err := tokenRepoTx.CreateRefreshToken(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("failed to create replacement token in tx: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return created, nil
}
