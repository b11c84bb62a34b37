package auth

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/avolkov/chanhub/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match
	// or a bearer token fails verification.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering an existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// avatarPalette is the set of colors assigned to new profiles.
var avatarPalette = []string{
	"#e74c3c", "#e67e22", "#f1c40f", "#2ecc71",
	"#1abc9c", "#3498db", "#9b59b6", "#34495e",
}

// Service provides authentication and identity resolution.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with a hashed password, marks them online, and
// returns a bearer token plus the profile.
func (s *Service) Register(ctx context.Context, username, password, displayName string) (string, *store.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return "", nil, ErrInvalidUsername
	}
	if len(password) < 6 {
		return "", nil, ErrInvalidPassword
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, hashedPassword, displayName, avatarPalette[rand.Intn(len(avatarPalette))])
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", nil, ErrUserExists
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	s.setOnline(ctx, user)

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// Login validates credentials, marks the user online, and returns a bearer
// token plus the profile.
func (s *Service) Login(ctx context.Context, username, password string) (string, *store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", nil, ErrInvalidCredentials
	}

	s.setOnline(ctx, user)

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// ValidateToken validates a bearer token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// ResolveIdentity verifies a bearer credential and resolves it to the full
// identity record. Called once per connection, at handshake time.
func (s *Service) ResolveIdentity(ctx context.Context, tokenString string) (*store.User, error) {
	claims, err := ValidateToken(s.jwtConfig, tokenString)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	return user, nil
}

// setOnline flips presence on login. There is no transition back to offline
// on disconnect; presence stays online until the next external update.
func (s *Service) setOnline(ctx context.Context, user *store.User) {
	if err := s.store.SetPresence(ctx, user.ID, store.PresenceOnline); err == nil {
		user.Presence = store.PresenceOnline
	}
}
