package promo

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ─────────────────────────────────────────────
// Promotion lifecycle
//
//	DRAFT ──> ACTIVE <──> PAUSED
//	  │         │           │
//	  └─────────┴─> CANCELLED / EXPIRED (not from DRAFT)
// ─────────────────────────────────────────────

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusDraft:  {StatusActive, StatusCancelled},
	StatusActive: {StatusPaused, StatusCancelled, StatusExpired},
	StatusPaused: {StatusActive, StatusCancelled, StatusExpired},
}

// CanTransition reports whether an admin may move a promotion from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type RewardType string

const (
	RewardBonusCredits RewardType = "BONUS_CREDITS"    // flat credits on top of base
	RewardRateOverride RewardType = "RATE_OVERRIDE"    // a better baht→credit rate
	RewardPercentage   RewardType = "PERCENTAGE_BONUS" // percent of base
	RewardTiered       RewardType = "TIERED_BONUS"     // fixed total per deposit bracket
)

var (
	ErrNotFound          = errors.New("promotion not found")
	ErrInvalidTransition = errors.New("invalid promotion status transition")
	ErrInvalidPromotion  = errors.New("invalid promotion")
)

// ─────────────────────────────────────────────
// Models
// ─────────────────────────────────────────────

// Tier is one deposit bracket of a TIERED_BONUS reward. Credits is the
// total granted for the bracket, not the bonus.
type Tier struct {
	MinBaht decimal.Decimal `json:"min_baht"`
	Credits int64           `json:"credits"`
}

// Conditions must all hold for a promotion to apply. Nil/invalid
// optional fields mean "no limit".
type Conditions struct {
	StartDate      time.Time           `json:"start_date"`
	EndDate        *time.Time          `json:"end_date,omitempty"`
	MinTopupBaht   decimal.NullDecimal `json:"min_topup_baht" gorm:"type:numeric(14,2)"`
	MaxTopupBaht   decimal.NullDecimal `json:"max_topup_baht" gorm:"type:numeric(14,2)"`
	MaxRedemptions *int64              `json:"max_redemptions,omitempty"`
	MaxPerUser     *int64              `json:"max_per_user,omitempty"`
	NewUsersOnly   bool                `json:"new_users_only"`
	FirstTopupOnly bool                `json:"first_topup_only"`
	RequireCode    bool                `json:"require_code"`
}

// Reward describes how the bonus is computed.
type Reward struct {
	Type         RewardType                `json:"type"`
	BonusCredits int64                     `json:"bonus_credits,omitempty"`
	OverrideRate decimal.Decimal           `json:"override_rate" gorm:"type:numeric(10,4);default:0"`
	Percentage   decimal.Decimal           `json:"percentage" gorm:"type:numeric(7,2);default:0"`
	Tiers        datatypes.JSONSlice[Tier] `json:"tiers,omitempty"`
}

// Stats are maintained by redemptions only.
type Stats struct {
	TotalRedemptions   int64           `json:"total_redemptions" gorm:"not null;default:0"`
	TotalBonusCredits  int64           `json:"total_bonus_credits" gorm:"not null;default:0"`
	TotalBahtCollected decimal.Decimal `json:"total_baht_collected" gorm:"type:numeric(14,2);not null;default:0"`
	UniqueUsers        int64           `json:"unique_users" gorm:"not null;default:0"`
}

// Promotion is an admin-defined top-up bonus.
type Promotion struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Name        string     `json:"name"`
	Code        string     `json:"code,omitempty" gorm:"index"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status" gorm:"index"`
	Priority    int        `json:"priority"`
	Conditions  Conditions `json:"conditions" gorm:"embedded;embeddedPrefix:cond_"`
	Reward      Reward     `json:"reward" gorm:"embedded;embeddedPrefix:reward_"`
	Stats       Stats      `json:"stats" gorm:"embedded;embeddedPrefix:stats_"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Ended reports whether the promotion's window closed before now.
func (p *Promotion) Ended(now time.Time) bool {
	return p.Conditions.EndDate != nil && now.After(*p.Conditions.EndDate)
}

// Redemption records one promotion applied to one top-up. Never updated.
type Redemption struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	PromotionID  string          `json:"promotion_id" gorm:"index:idx_redemption_promo_user,priority:1"`
	UserID       string          `json:"user_id" gorm:"index:idx_redemption_promo_user,priority:2"`
	SlipID       string          `json:"slip_id" gorm:"index"`
	TopupBaht    decimal.Decimal `json:"topup_baht" gorm:"type:numeric(14,2)"`
	BaseCredits  int64           `json:"base_credits"`
	BonusCredits int64           `json:"bonus_credits"`
	CreatedAt    time.Time       `json:"created_at"`
}
