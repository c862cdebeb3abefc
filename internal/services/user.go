package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/portfolio-cms/apiserver/internal/store"
	"github.com/portfolio-cms/apiserver/types"
)

const (
	// MinPasswordLength applies to password changes.
	MinPasswordLength = 8

	// MaxPasswordBytes is the longest password bcrypt accepts.
	MaxPasswordBytes = 72
)

var errPasswordTooLong = invalid(fmt.Sprintf("password must be at most %d bytes long", MaxPasswordBytes))

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// TokenIssuer issues session tokens for a user id.
type TokenIssuer interface {
	Issue(userID int) (string, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
	issuer TokenIssuer

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(repo UserRepository, hasher PasswordHasher, issuer TokenIssuer) *UserService {
	return &UserService{
		repo:   repo,
		hasher: hasher,
		issuer: issuer,
	}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates a user. Uniqueness is enforced by the repository, so
// concurrent registrations of one username yield exactly one success.
func (s *UserService) Register(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, invalid("username and password are required")
	}
	if len(password) > MaxPasswordBytes {
		return types.User{}, errPasswordTooLong
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return types.User{}, ErrUserExists
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks credentials and returns a session token. Unknown usernames
// and wrong passwords both yield ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Spend the same hashing time as a real comparison.
			s.hasher.Verify(password, s.placeholderHash())
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// CredentialsUpdate holds the optional new username and password. Empty
// fields are left unchanged.
type CredentialsUpdate struct {
	Username string
	Password string
}

// UpdateCredentials changes the username and/or password of userID.
// Returns store.ErrNotFound when the user no longer exists.
func (s *UserService) UpdateCredentials(ctx context.Context, userID int, update CredentialsUpdate) (types.User, error) {
	update.Username = strings.TrimSpace(update.Username)
	if update.Username == "" && update.Password == "" {
		return types.User{}, invalid("at least one field (username or password) must be provided")
	}
	if update.Password != "" && utf8.RuneCountInString(update.Password) < MinPasswordLength {
		return types.User{}, invalid(fmt.Sprintf("password must be at least %d characters long", MinPasswordLength))
	}
	if len(update.Password) > MaxPasswordBytes {
		return types.User{}, errPasswordTooLong
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	if update.Username != "" && update.Username != user.Username {
		existing, err := s.repo.GetByUsername(ctx, update.Username)
		switch {
		case err == nil && existing.ID != userID:
			return types.User{}, ErrUsernameTaken
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return types.User{}, fmt.Errorf("find user: %w", err)
		}
		user.Username = update.Username
	}

	if update.Password != "" {
		hashed, err := s.hasher.Hash(update.Password)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = hashed
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return types.User{}, ErrUsernameTaken
		}
		return types.User{}, err
	}
	return updated, nil
}

func (s *UserService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		hashed, err := s.hasher.Hash("placeholder-password")
		if err == nil {
			s.dummyHash = hashed
		}
	})
	return s.dummyHash
}
