package auth

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Account statuses. Only active accounts may reserve credits or top up.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusBanned    = "banned"
)

// ─────────────────────────────────────────────
// User represents a registered desktop-app user
// and carries the prepaid credit balance.
// ─────────────────────────────────────────────

type User struct {
	ID               string          `json:"id" gorm:"primaryKey"`
	Email            string          `json:"email" gorm:"uniqueIndex"`
	Password         string          `json:"-"` // bcrypt hash, never serialised
	Nickname         string          `json:"nickname"`
	Credits          int64           `json:"credits" gorm:"not null;default:0"`
	Status           string          `json:"status" gorm:"default:active"` // active | suspended | banned
	TotalTopupBaht   decimal.Decimal `json:"total_topup_baht" gorm:"type:numeric(14,2);not null;default:0"`
	TotalCreditsUsed int64           `json:"total_credits_used" gorm:"not null;default:0"`
	Tier             string          `json:"tier,omitempty"`
	LastActive       *time.Time      `json:"last_active,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsActive reports whether the account may spend or buy credits.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// ─────────────────────────────────────────────
// UserService – the single auth interface.
//
// Credits are never touched here; every balance
// mutation goes through the balance package.
// ─────────────────────────────────────────────

type UserService interface {
	// Register creates a new user via email + password with a zero balance.
	Register(ctx context.Context, email, password, nickname string) (*User, error)

	// Login authenticates via email + password.
	Login(ctx context.Context, email, password string) (*User, error)

	// GetByID retrieves a user by their internal ID.
	GetByID(ctx context.Context, userID string) (*User, error)

	// SetStatus sets user account status (active / suspended / banned).
	SetStatus(ctx context.Context, userID string, status string) error
}
