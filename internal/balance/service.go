package balance

import (
	"context"
	"errors"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/auth"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxPageSize = 100

// ─────────────────────────────────────────────
// Transaction-scoped primitives
//
// These run on a *gorm.DB that is already inside
// a transaction; callers own the commit.
// ─────────────────────────────────────────────

// Entry describes one ledger movement.
type Entry struct {
	Type        TransactionType
	Amount      int64
	ReferenceID string
	Description string
}

// LockUser loads the user row with SELECT … FOR UPDATE.
func LockUser(tx *gorm.DB, userID string) (*auth.User, error) {
	var user auth.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// LockActiveUser is LockUser plus the account status check. The check
// happens under the lock, so a concurrent suspension cannot slip between
// it and the balance mutation.
func LockActiveUser(tx *gorm.DB, userID string) (*auth.User, error) {
	user, err := LockUser(tx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrAccountNotActive
	}
	return user, nil
}

// Apply moves user.Credits by e.Amount and appends the matching
// Transaction. The update is conditional on the result staying
// non-negative, which holds even if the row lock is unavailable.
// user is updated in place.
func Apply(tx *gorm.DB, user *auth.User, e Entry) (*Transaction, error) {
	now := time.Now()
	res := tx.Model(&auth.User{}).
		Where("id = ? AND credits + ? >= 0", user.ID, e.Amount).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits + ?", e.Amount),
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &InsufficientCreditsError{Required: -e.Amount, Available: user.Credits}
	}
	user.Credits += e.Amount
	user.UpdatedAt = now

	txn := &Transaction{
		UserID:       user.ID,
		Type:         e.Type,
		Amount:       e.Amount,
		BalanceAfter: user.Credits,
		ReferenceID:  e.ReferenceID,
		Description:  e.Description,
		CreatedAt:    now,
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// ─────────────────────────────────────────────
// ledger implements Ledger
// ─────────────────────────────────────────────

type ledger struct {
	db *gorm.DB
}

// NewLedger creates a Ledger backed by the given DB.
func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

// Balance returns the user's current credit balance.
func (l *ledger) Balance(ctx context.Context, userID string) (int64, error) {
	var user auth.User
	err := l.db.WithContext(ctx).Select("credits").Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return user.Credits, nil
}

// History returns a page of ledger entries, newest first.
func (l *ledger) History(ctx context.Context, userID string, page, pageSize int) ([]Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = 20
	}

	q := l.db.WithContext(ctx).Model(&Transaction{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []Transaction
	err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txns).Error
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// Adjust applies a signed admin correction.
func (l *ledger) Adjust(ctx context.Context, userID string, amount int64, remark string) (*Transaction, error) {
	if remark == "" {
		remark = "admin adjustment"
	}

	var txn *Transaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := LockUser(tx, userID)
		if err != nil {
			return err
		}
		txn, err = Apply(tx, user, Entry{
			Type:        TxAdminAdjust,
			Amount:      amount,
			Description: remark,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}
