package repo

import (
	"context"
	"errors"
	"time"

	"github.com/bookstore/storefront/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists is returned when the email is already registered
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrSessionNotFound is returned for unknown or expired sessions
	ErrSessionNotFound = errors.New("session not found")
)

// UserRepository stores accounts and their sessions.
type UserRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(database *db.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:  database,
		log: logger,
	}
}

// GetUserByEmail looks a user up by exact email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	var user db.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		r.log.Error("Failed to get user by email", zap.Error(err))
		return nil, err
	}
	return &user, nil
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id uint) (*db.User, error) {
	var user db.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		r.log.Error("Failed to get user", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new account. Email uniqueness is checked first and
// again by the unique index.
func (r *UserRepository) CreateUser(ctx context.Context, user *db.User) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&db.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		r.log.Error("Failed to check user existence", zap.Error(err))
		return err
	}
	if count > 0 {
		return ErrUserAlreadyExists
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserAlreadyExists
		}
		r.log.Error("Failed to create user", zap.Error(err))
		return err
	}

	r.log.Info("User created", zap.Uint("id", user.ID))
	return nil
}

// CountUsers returns the number of registered accounts.
func (r *UserRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.User{}).Count(&count).Error
	return count, err
}

// CreateSession stores a new session row.
func (r *UserRepository) CreateSession(ctx context.Context, session *db.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		r.log.Error("Failed to create session", zap.Uint("user_id", session.UserID), zap.Error(err))
		return err
	}
	return nil
}

// GetSession returns a live session. Expired rows are reported as missing.
func (r *UserRepository) GetSession(ctx context.Context, id string, now time.Time) (*db.Session, error) {
	var session db.Session
	err := r.db.WithContext(ctx).Where("id = ? AND expires_at > ?", id, now).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		r.log.Error("Failed to get session", zap.Error(err))
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes a session row.
func (r *UserRepository) DeleteSession(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Session{})
	if result.Error != nil {
		r.log.Error("Failed to delete session", zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// PurgeExpiredSessions deletes sessions that expired before now.
func (r *UserRepository) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&db.Session{})
	if result.Error != nil {
		r.log.Error("Failed to purge sessions", zap.Error(result.Error))
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
