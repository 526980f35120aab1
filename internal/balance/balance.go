package balance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ─────────────────────────────────────────────
// Credit ledger
//
// The balance itself lives on auth.User.Credits.
// Every change to it is paired with exactly one
// append-only Transaction written in the same
// database transaction.
// ─────────────────────────────────────────────

// TransactionType categorises ledger entries.
type TransactionType string

const (
	TxReserve     TransactionType = "RESERVE"      // credits locked for a job
	TxRefund      TransactionType = "REFUND"       // unused or expired reservation returned
	TxTopup       TransactionType = "TOPUP"        // verified bank transfer, including any promotion bonus
	TxAdminAdjust TransactionType = "ADMIN_ADJUST" // manual correction
)

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	UserID       string          `json:"user_id" gorm:"index:idx_tx_user_created,priority:1"`
	Type         TransactionType `json:"type" gorm:"index"`
	Amount       int64           `json:"amount"` // positive = credit, negative = debit
	BalanceAfter int64           `json:"balance_after"`
	ReferenceID  string          `json:"reference_id,omitempty" gorm:"index"` // job token or slip ref
	Description  string          `json:"description,omitempty"`
	CreatedAt    time.Time       `json:"created_at" gorm:"index:idx_tx_user_created,priority:2"`
}

// ─────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────

var (
	ErrAccountNotActive = errors.New("account is not active")
	ErrUserNotFound     = errors.New("user not found")
)

// InsufficientCreditsError carries the numbers the client shows next to
// its top-up prompt.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// ─────────────────────────────────────────────
// Ledger – read side and admin adjustments.
// ─────────────────────────────────────────────

type Ledger interface {
	// Balance returns the user's current credit balance.
	Balance(ctx context.Context, userID string) (int64, error)

	// History returns the user's ledger entries, newest first.
	History(ctx context.Context, userID string, page, pageSize int) ([]Transaction, int64, error)

	// Adjust applies a signed ADMIN_ADJUST entry. The resulting balance
	// may not go below zero.
	Adjust(ctx context.Context, userID string, amount int64, remark string) (*Transaction, error)
}
