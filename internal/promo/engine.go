package promo

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Input is everything the engine needs to judge one top-up.
type Input struct {
	TopupBaht       decimal.Decimal
	BaseCredits     int64
	Code            string
	Now             time.Time
	UserCreatedAt   time.Time
	HasPriorTopup   bool
	UserRedemptions map[string]int64 // promotion ID → this user's redemptions
}

// Candidate is an eligible promotion with its computed bonus.
type Candidate struct {
	Promotion *Promotion
	Bonus     int64
}

// Engine evaluates promotions against a top-up. It holds no state
// besides the new-user window and performs no I/O.
type Engine struct {
	NewUserWindow time.Duration
}

// BaseCredits converts a baht amount at the exchange rate, rounding down.
func BaseCredits(topupBaht, exchangeRate decimal.Decimal) int64 {
	return topupBaht.Mul(exchangeRate).Floor().IntPart()
}

// Eligible reports whether every condition of p holds for in.
func (e Engine) Eligible(p *Promotion, in Input) bool {
	c := p.Conditions
	if p.Status != StatusActive {
		return false
	}
	if in.Now.Before(c.StartDate) || p.Ended(in.Now) {
		return false
	}
	if c.RequireCode && (p.Code == "" || in.Code != p.Code) {
		return false
	}
	if c.MinTopupBaht.Valid && in.TopupBaht.LessThan(c.MinTopupBaht.Decimal) {
		return false
	}
	if c.MaxTopupBaht.Valid && in.TopupBaht.GreaterThan(c.MaxTopupBaht.Decimal) {
		return false
	}
	if c.MaxRedemptions != nil && p.Stats.TotalRedemptions >= *c.MaxRedemptions {
		return false
	}
	if c.MaxPerUser != nil && in.UserRedemptions[p.ID] >= *c.MaxPerUser {
		return false
	}
	if c.NewUsersOnly && in.Now.Sub(in.UserCreatedAt) >= e.NewUserWindow {
		return false
	}
	if c.FirstTopupOnly && in.HasPriorTopup {
		return false
	}
	return true
}

// Bonus computes the reward of p for in. The second result is false when
// the reward does not apply at all (no qualifying tier, unknown type).
// Misconfigured rewards may produce a negative bonus; it is returned as is.
func (e Engine) Bonus(p *Promotion, in Input) (int64, bool) {
	r := p.Reward
	switch r.Type {
	case RewardBonusCredits:
		return r.BonusCredits, true

	case RewardRateOverride:
		return BaseCredits(in.TopupBaht, r.OverrideRate) - in.BaseCredits, true

	case RewardPercentage:
		return decimal.NewFromInt(in.BaseCredits).Mul(r.Percentage).Div(hundred).Floor().IntPart(), true

	case RewardTiered:
		tier, ok := pickTier(r.Tiers, in.TopupBaht)
		if !ok {
			return 0, false
		}
		return tier.Credits - in.BaseCredits, true

	default:
		return 0, false
	}
}

// pickTier returns the tier with the highest MinBaht not above amount.
func pickTier(tiers []Tier, amount decimal.Decimal) (Tier, bool) {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinBaht.GreaterThan(sorted[j].MinBaht)
	})
	for _, t := range sorted {
		if t.MinBaht.LessThanOrEqual(amount) {
			return t, true
		}
	}
	return Tier{}, false
}

// Rank returns the eligible promotions best first: priority desc, bonus
// desc, then earliest start and lowest ID so the order is total.
func (e Engine) Rank(promos []Promotion, in Input) []Candidate {
	var out []Candidate
	for i := range promos {
		p := &promos[i]
		if !e.Eligible(p, in) {
			continue
		}
		bonus, ok := e.Bonus(p, in)
		if !ok {
			continue
		}
		out = append(out, Candidate{Promotion: p, Bonus: bonus})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Promotion.Priority != b.Promotion.Priority {
			return a.Promotion.Priority > b.Promotion.Priority
		}
		if a.Bonus != b.Bonus {
			return a.Bonus > b.Bonus
		}
		if !a.Promotion.Conditions.StartDate.Equal(b.Promotion.Conditions.StartDate) {
			return a.Promotion.Conditions.StartDate.Before(b.Promotion.Conditions.StartDate)
		}
		return a.Promotion.ID < b.Promotion.ID
	})
	return out
}

// Evaluate returns the single best candidate, or nil if none applies.
// Promotions never stack.
func (e Engine) Evaluate(promos []Promotion, in Input) *Candidate {
	ranked := e.Rank(promos, in)
	if len(ranked) == 0 {
		return nil
	}
	return &ranked[0]
}
