// Package memory holds in-memory implementations of the storage interfaces.
// They honor the same status-transition semantics as the postgres
// implementations so the service layer can be tested without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hayoung-dev/gptfolio-backend/internal/models"
	"github.com/hayoung-dev/gptfolio-backend/internal/storage"
)

type Storage struct {
	mu sync.Mutex

	users      map[int64]models.User
	nextUserID int64

	tokens      map[string]models.RefreshToken
	nextTokenID int64
}

func NewStorage() *Storage {
	return &Storage{
		users:  make(map[int64]models.User),
		tokens: make(map[string]models.RefreshToken),
	}
}

func (s *Storage) CreateUser(_ context.Context, user models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, storage.ErrDuplicateEmail
		}
	}

	s.nextUserID++
	now := time.Now()
	user.ID = s.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user

	return &user, nil
}

func (s *Storage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *Storage) CreateRefreshToken(_ context.Context, token models.RefreshToken) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertTokenLocked(token), nil
}

func (s *Storage) GetActiveRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok || t.Status != models.TokenStatusActive {
		return nil, storage.ErrTokenNotFound
	}
	return &t, nil
}

func (s *Storage) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	return &t, nil
}

func (s *Storage) RevokeActive(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revokeActiveLocked(token)
}

func (s *Storage) MarkExpired(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, t := range s.tokens {
		if t.ID == id && t.Status == models.TokenStatusActive {
			t.Status = models.TokenStatusExpired
			t.UpdatedAt = time.Now()
			s.tokens[key] = t
		}
	}
	return nil
}

func (s *Storage) RotateTx(_ context.Context, oldToken string, next models.RefreshToken) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.revokeActiveLocked(oldToken); err != nil {
		return nil, err
	}
	return s.insertTokenLocked(next), nil
}

func (s *Storage) revokeActiveLocked(token string) error {
	t, ok := s.tokens[token]
	if !ok || t.Status != models.TokenStatusActive {
		return storage.ErrTokenNotFound
	}
	t.Status = models.TokenStatusRevoked
	t.UpdatedAt = time.Now()
	s.tokens[token] = t
	return nil
}

func (s *Storage) insertTokenLocked(token models.RefreshToken) *models.RefreshToken {
	s.nextTokenID++
	now := time.Now()
	token.ID = s.nextTokenID
	token.Status = models.TokenStatusActive
	token.CreatedAt = now
	token.UpdatedAt = now
	s.tokens[token.Token] = token

	return &token
}
