package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bookstore/storefront/internal/db"
	"github.com/bookstore/storefront/internal/repo"
	"github.com/bookstore/storefront/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager registers users, checks credentials and owns session lifecycle.
type Manager struct {
	users  *repo.UserRepository
	signer *TokenSigner
	ttl    time.Duration
	params HashParams
	now    func() time.Time
	log    *zap.Logger
}

// Option customises a Manager.
type Option func(*Manager)

// WithHashParams overrides the argon2id cost parameters.
func WithHashParams(p HashParams) Option {
	return func(m *Manager) { m.params = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an auth manager. Sessions live for ttl.
func NewManager(users *repo.UserRepository, signer *TokenSigner, ttl time.Duration, log *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		users:  users,
		signer: signer,
		ttl:    ttl,
		params: DefaultHashParams,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func validateCredentials(email, password string) error {
	var v validation.Errors
	v.Required("email", email)
	if password == "" {
		v.Add("password", "is required")
	}
	return v.Err()
}

// CreateAccount stores a new user with a hashed password but opens no session.
func (m *Manager) CreateAccount(ctx context.Context, email, password, name string) (*db.User, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	if _, err := m.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repo.ErrUserNotFound) {
		return nil, err
	}

	hash, err := HashPassword(password, m.params)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &db.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
	}
	if err := m.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExists) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return user, nil
}

// Register creates an account and logs it in.
func (m *Manager) Register(ctx context.Context, email, password, name string) (*Session, error) {
	user, err := m.CreateAccount(ctx, email, password, name)
	if err != nil {
		return nil, err
	}

	m.log.Info("User registered", zap.Uint("user_id", user.ID))
	return m.openSession(ctx, user)
}

// Login verifies credentials and opens a new session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, ErrUnknownEmail
		}
		return nil, err
	}

	ok, err := VerifyPassword(user.PasswordHash, password)
	if err != nil {
		m.log.Error("Stored password hash unreadable", zap.Uint("user_id", user.ID), zap.Error(err))
		return nil, ErrInvalidPassword
	}
	if !ok {
		return nil, ErrInvalidPassword
	}

	m.log.Info("User logged in", zap.Uint("user_id", user.ID))
	return m.openSession(ctx, user)
}

// Logout destroys the session.
func (m *Manager) Logout(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrUnauthenticated
	}

	if err := m.users.DeleteSession(ctx, s.ID); err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			return ErrUnauthenticated
		}
		return err
	}

	m.log.Info("User logged out", zap.Uint("user_id", s.UserID))
	return nil
}

// Authenticate resolves a session token into a live session.
func (m *Manager) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	sessionID, userID, err := m.signer.Parse(token)
	if err != nil {
		m.log.Debug("Rejected session token", zap.Error(err))
		return nil, ErrUnauthenticated
	}

	row, err := m.users.GetSession(ctx, sessionID, m.now())
	if err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if row.UserID != userID {
		return nil, ErrUnauthenticated
	}

	user, err := m.users.GetUser(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	return &Session{
		ID:        row.ID,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Token:     token,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func (m *Manager) openSession(ctx context.Context, user *db.User) (*Session, error) {
	now := m.now()
	row := &db.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.users.CreateSession(ctx, row); err != nil {
		return nil, err
	}

	token, err := m.signer.Sign(row.ID, user.ID, now, row.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &Session{
		ID:        row.ID,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Token:     token,
		ExpiresAt: row.ExpiresAt,
	}, nil
}
