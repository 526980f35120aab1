package slip

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ─────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────

var (
	// ErrSlipInvalid means the provider looked at the slip and rejected it.
	ErrSlipInvalid = errors.New("slip could not be verified")
	// ErrVerifierUnavailable means the provider could not be asked; the
	// client may retry the same slip later.
	ErrVerifierUnavailable = errors.New("slip verification service unavailable")
)

const StatusCredited = "CREDITED"

// Slip is a bank transfer that has been credited. TransRef is the bank's
// transaction reference; the unique index is what stops a slip from
// being credited twice.
type Slip struct {
	ID              string          `json:"id" gorm:"primaryKey"`
	TransRef        string          `json:"trans_ref" gorm:"uniqueIndex"`
	UserID          string          `json:"user_id" gorm:"index"`
	AmountBaht      decimal.Decimal `json:"amount_baht" gorm:"type:numeric(14,2)"`
	SenderName      string          `json:"sender_name,omitempty"`
	ReceiverAccount string          `json:"receiver_account,omitempty"`
	Status          string          `json:"status"`
	TransferredAt   *time.Time      `json:"transferred_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Verification is what the provider vouches for. Only these values are
// trusted; nothing the client claims about the transfer is.
type Verification struct {
	TransRef        string
	AmountBaht      decimal.Decimal
	SenderName      string
	ReceiverAccount string // usually masked, e.g. "xxx-x-x1234-x"
	ReceiverName    string
	TransferredAt   *time.Time
}

// Verifier checks a slip payload (the QR string or uploaded image
// reference) with the bank-slip provider.
type Verifier interface {
	Verify(ctx context.Context, payload string) (*Verification, error)
}

// ─────────────────────────────────────────────
// Receiver matching
// ─────────────────────────────────────────────

// MatchAccount reports whether a possibly masked account number from a
// slip refers to the configured account. Separators are ignored and
// 'x' or '*' in the masked value match any digit. When the lengths
// differ only the last four characters are compared. At least
// minVisibleDigits digits must be unmasked for a match.
func MatchAccount(masked, account string) bool {
	m, a := normalizeAccount(masked), normalizeAccount(account)
	if m == "" || a == "" {
		return false
	}
	if len(m) != len(a) {
		m, a = lastN(m, 4), lastN(a, 4)
		if len(m) != len(a) {
			return false
		}
	}

	visible := 0
	for i := 0; i < len(m); i++ {
		if m[i] == 'x' || m[i] == '*' {
			continue
		}
		if m[i] != a[i] {
			return false
		}
		visible++
	}
	return visible >= minVisibleDigits
}

const minVisibleDigits = 4

func normalizeAccount(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= '0' && r <= '9', r == 'x', r == '*':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
