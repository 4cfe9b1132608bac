package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/muvico/platform/internal/auth"
)

var (
	ErrNotImplemented  = errors.New("users repository: not implemented")
	ErrNotFound        = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrUsernameExists  = errors.New("username already in use")
	ErrLastAdmin       = errors.New("cannot remove the last admin")
	ErrInvalidInput    = errors.New("invalid user input")
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

// User represents an authenticated user record.
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Admin        bool      `json:"admin" db:"admin"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Repository defines persistence behaviour for users.
type Repository interface {
	FindByID(ctx context.Context, id string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	Save(ctx context.Context, user User) (User, error)
	List(ctx context.Context, offset, limit int) ([]User, error)
	Count(ctx context.Context) (int, error)
	CountAdmins(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}

// NullRepository can be used when no storage is configured.
type NullRepository struct{}

func (NullRepository) FindByID(context.Context, string) (User, error) {
	return User{}, ErrNotImplemented
}
func (NullRepository) FindByUsername(context.Context, string) (User, error) {
	return User{}, ErrNotImplemented
}
func (NullRepository) Save(context.Context, User) (User, error) { return User{}, ErrNotImplemented }
func (NullRepository) List(context.Context, int, int) ([]User, error) {
	return nil, ErrNotImplemented
}
func (NullRepository) Count(context.Context) (int, error)       { return 0, ErrNotImplemented }
func (NullRepository) CountAdmins(context.Context) (int, error) { return 0, ErrNotImplemented }
func (NullRepository) Delete(context.Context, string) error     { return ErrNotImplemented }

// Cleanup is invoked before a user is deleted so owned data can be released.
type Cleanup func(ctx context.Context, userID string) error

// Service exposes user registration, authentication and administration.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (User, error)
	Authenticate(ctx context.Context, username, password string) (User, error)
	Get(ctx context.Context, id string) (User, error)
	List(ctx context.Context, offset, limit int) ([]User, error)
	SetAdmin(ctx context.Context, id string, admin bool) (User, error)
	Delete(ctx context.Context, id string) error
}

type service struct {
	repo    Repository
	cleanup Cleanup
}

// RegisterInput captures data required to create an account.
type RegisterInput struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// NewService constructs a user service. cleanup may be nil.
func NewService(repo Repository, cleanup Cleanup) Service {
	return &service{repo: repo, cleanup: cleanup}
}

// NormalizeUsername trims and lowercases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *service) Register(ctx context.Context, input RegisterInput) (User, error) {
	username := NormalizeUsername(input.Username)
	if username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if !usernamePattern.MatchString(username) {
		return User{}, fmt.Errorf("%w: username must be 3-32 characters of letters, digits, '.', '_' or '-'", ErrInvalidInput)
	}
	if len(input.Password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return User{}, ErrUsernameExists
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return User{}, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return User{}, err
	}

	user := User{
		Username:     username,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hash,
		Admin:        count == 0,
	}

	saved, err := s.repo.Save(ctx, user)
	if err != nil {
		return User{}, err
	}
	return saved, nil
}

func (s *service) Authenticate(ctx context.Context, username, password string) (User, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return User{}, err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return User{}, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return User{}, ErrInvalidPassword
	}
	return user, nil
}

func (s *service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, offset, limit int) ([]User, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *service) SetAdmin(ctx context.Context, id string, admin bool) (User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if user.Admin == admin {
		return user, nil
	}
	if !admin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return User{}, err
		}
	}
	user.Admin = admin
	return s.repo.Save(ctx, user)
}

func (s *service) Delete(ctx context.Context, id string) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if user.Admin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return err
		}
	}
	if s.cleanup != nil {
		if err := s.cleanup(ctx, id); err != nil {
			return fmt.Errorf("release user data: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) ensureAnotherAdmin(ctx context.Context) error {
	admins, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}
