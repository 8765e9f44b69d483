package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxNameLength = 255

// Service manages the user directory.
type Service struct {
	repo Repository
}

// NewService creates a new user service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new user with the given display name.
func (s *Service) Create(ctx context.Context, name string) (User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return User{}, errors.New("name is required")
	}
	if len(name) > maxNameLength {
		return User{}, errors.New("name too long")
	}

	user := User{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// FindByID resolves a user identifier.
func (s *Service) FindByID(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}
