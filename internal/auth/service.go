package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ─────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailExists       = errors.New("email already registered")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrInvalidStatus     = errors.New("invalid account status")
)

// ─────────────────────────────────────────────
// userService implements UserService
// ─────────────────────────────────────────────

type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserService backed by the given DB.
func NewUserService(db *gorm.DB) UserService {
	return &userService{db: db}
}

// Register creates a new user with email + password.
func (s *userService) Register(ctx context.Context, email, password, nickname string) (*User, error) {
	email = normalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  string(hash),
		Nickname:  nickname,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The unique index is the real guard; two concurrent registrations
	// for the same address cannot both pass it.
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	return user, nil
}

// Login authenticates via email + password.
func (s *userService) Login(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)

	var user User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	now := time.Now()
	user.LastActive = &now
	s.db.WithContext(ctx).Model(&user).UpdateColumn("last_active", now)

	return &user, nil
}

// GetByID retrieves a user by ID.
func (s *userService) GetByID(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SetStatus sets user account status.
func (s *userService) SetStatus(ctx context.Context, userID string, status string) error {
	switch status {
	case StatusActive, StatusSuspended, StatusBanned:
	default:
		return ErrInvalidStatus
	}

	result := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
