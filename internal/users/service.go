package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/servicedesk/servicedesk/internal/shared"
)

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrInvalidInput indicates a rejected field value.
	ErrInvalidInput = errors.New("users: invalid input")
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, username, email, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, id int64, input UpdateInput) (User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Service handles account administration.
type Service struct {
	repo RepositoryPort
	cost int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := s.repo.GetUser(ctx, id)
	return u, notFound(err)
}

// CreateUser hashes the password and stores a new active account.
func (s *Service) CreateUser(ctx context.Context, input CreateInput) (User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" {
		return User{}, fmt.Errorf("%w: username and email are required", ErrInvalidInput)
	}
	if len(input.Password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.repo.CreateUser(ctx, username, email, string(hash))
}

// UpdateUser edits email or active flag. Deactivation takes effect on
// authorization once cached permission entries expire.
func (s *Service) UpdateUser(ctx context.Context, id int64, input UpdateInput) (User, error) {
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return User{}, fmt.Errorf("%w: email must not be empty", ErrInvalidInput)
		}
		input.Email = &email
	}
	u, err := s.repo.UpdateUser(ctx, id, input)
	return u, notFound(err)
}

// DeleteUser removes an account.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	return notFound(s.repo.DeleteUser(ctx, id))
}

func notFound(err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
