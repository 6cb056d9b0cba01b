package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hayoung-dev/gptfolio-backend/internal/models"
	"github.com/hayoung-dev/gptfolio-backend/internal/storage"
)

var ErrDuplicateEmail = errors.New("email already registered")

type UserService struct {
	storage storage.Storage
	log     *zap.SugaredLogger
}

func NewUserService(storage storage.Storage, log *zap.SugaredLogger) *UserService {
	return &UserService{storage: storage, log: log}
}

// Register creates a user with a bcrypt password hash. The email uniqueness
// check is backed by the unique constraint, so a concurrent duplicate still
// fails cleanly.
func (s *UserService) Register(ctx context.Context, req models.SignUpRequest) (*models.User, error) {
	_, err := s.storage.GetUserByEmail(ctx, req.Email)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.storage.CreateUser(ctx, models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Infow("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}
