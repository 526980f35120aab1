package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/auth"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/balance"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service persists promotions and applies them inside top-up transactions.
type Service struct {
	db     *gorm.DB
	engine Engine
	log    zerolog.Logger
}

// NewService creates a promotion Service.
func NewService(db *gorm.DB, newUserWindow time.Duration, log zerolog.Logger) *Service {
	return &Service{
		db:     db,
		engine: Engine{NewUserWindow: newUserWindow},
		log:    log.With().Str("component", "promo").Logger(),
	}
}

// Engine returns the evaluator the service applies.
func (s *Service) Engine() Engine {
	return s.engine
}

// ─────────────────────────────────────────────
// Admin operations
// ─────────────────────────────────────────────

// Create stores p as a new DRAFT with zeroed stats.
func (s *Service) Create(ctx context.Context, p *Promotion) error {
	if err := validate(p); err != nil {
		return err
	}
	p.ID = uuid.NewString()
	p.Status = StatusDraft
	p.Stats = Stats{}
	if p.Conditions.StartDate.IsZero() {
		p.Conditions.StartDate = time.Now()
	}
	return s.db.WithContext(ctx).Create(p).Error
}

func validate(p *Promotion) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Code = strings.TrimSpace(p.Code)
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidPromotion)
	case p.Conditions.RequireCode && p.Code == "":
		return fmt.Errorf("%w: code is required when require_code is set", ErrInvalidPromotion)
	case p.Conditions.EndDate != nil && !p.Conditions.StartDate.IsZero() &&
		p.Conditions.EndDate.Before(p.Conditions.StartDate):
		return fmt.Errorf("%w: end_date before start_date", ErrInvalidPromotion)
	}
	switch p.Reward.Type {
	case RewardBonusCredits, RewardRateOverride, RewardPercentage:
	case RewardTiered:
		if len(p.Reward.Tiers) == 0 {
			return fmt.Errorf("%w: tiered reward needs at least one tier", ErrInvalidPromotion)
		}
	default:
		return fmt.Errorf("%w: unknown reward type %q", ErrInvalidPromotion, p.Reward.Type)
	}
	return nil
}

// Get returns one promotion.
func (s *Service) Get(ctx context.Context, id string) (*Promotion, error) {
	var p Promotion
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns every promotion, highest priority first.
func (s *Service) List(ctx context.Context) ([]Promotion, error) {
	var out []Promotion
	err := s.db.WithContext(ctx).Order("priority DESC, created_at ASC").Find(&out).Error
	return out, err
}

// SetStatus moves a promotion along its lifecycle.
func (s *Service) SetStatus(ctx context.Context, id string, to Status) (*Promotion, error) {
	var p Promotion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !CanTransition(p.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
		}
		p.Status = to
		p.UpdatedAt = time.Now()
		return tx.Model(&Promotion{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":     to,
			"updated_at": p.UpdatedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("promotion_id", id).Str("status", string(to)).Msg("promotion status changed")
	return &p, nil
}

// ListApplicable returns ACTIVE promotions whose window contains now,
// for display next to the balance.
func (s *Service) ListApplicable(ctx context.Context, now time.Time) ([]Promotion, error) {
	var active []Promotion
	err := s.db.WithContext(ctx).
		Where("status = ?", StatusActive).
		Order("priority DESC, created_at ASC").
		Find(&active).Error
	if err != nil {
		return nil, err
	}
	out := active[:0]
	for _, p := range active {
		if now.Before(p.Conditions.StartDate) || p.Ended(now) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ExpireEnded flips ACTIVE and PAUSED promotions whose end date has
// passed to EXPIRED.
func (s *Service) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Promotion{}).
		Where("status IN ? AND cond_end_date IS NOT NULL AND cond_end_date < ?",
			[]Status{StatusActive, StatusPaused}, now).
		Updates(map[string]interface{}{
			"status":     StatusExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info().Int64("count", res.RowsAffected).Msg("expired ended promotions")
	}
	return res.RowsAffected, nil
}

// ─────────────────────────────────────────────
// Top-up application (runs inside the caller's transaction)
// ─────────────────────────────────────────────

// RedeemRequest describes the top-up a promotion is evaluated against.
type RedeemRequest struct {
	User        *auth.User
	TopupBaht   decimal.Decimal
	BaseCredits int64
	Code        string
	SlipID      string
	Now         time.Time
}

// Applied is the promotion chosen for a top-up.
type Applied struct {
	Promotion  Promotion
	Bonus      int64
	Redemption Redemption
}

// Redeem picks the best eligible promotion, locks it and re-checks its
// caps, then records the redemption and bumps the stats. If the best
// candidate was exhausted by a concurrent top-up the next one is tried.
// It returns nil when no promotion applies. Crediting the user is the
// caller's job, in the same transaction.
func (s *Service) Redeem(tx *gorm.DB, req RedeemRequest) (*Applied, error) {
	var active []Promotion
	if err := tx.Where("status = ?", StatusActive).Find(&active).Error; err != nil {
		return nil, fmt.Errorf("load promotions: %w", err)
	}
	if len(active) == 0 {
		return nil, nil
	}

	in, err := s.buildInput(tx, req)
	if err != nil {
		return nil, err
	}

	for _, cand := range s.engine.Rank(active, in) {
		var locked Promotion
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", cand.Promotion.ID).
			First(&locked).Error
		if err != nil {
			return nil, fmt.Errorf("lock promotion: %w", err)
		}

		used, err := countRedemptions(tx, locked.ID, req.User.ID)
		if err != nil {
			return nil, err
		}
		in.UserRedemptions[locked.ID] = used

		if !s.engine.Eligible(&locked, in) {
			s.log.Debug().Str("promotion_id", locked.ID).Msg("promotion exhausted concurrently, trying next")
			continue
		}
		bonus, ok := s.engine.Bonus(&locked, in)
		if !ok {
			continue
		}

		red := Redemption{
			PromotionID:  locked.ID,
			UserID:       req.User.ID,
			SlipID:       req.SlipID,
			TopupBaht:    req.TopupBaht,
			BaseCredits:  req.BaseCredits,
			BonusCredits: bonus,
			CreatedAt:    req.Now,
		}
		if err := tx.Create(&red).Error; err != nil {
			return nil, fmt.Errorf("record redemption: %w", err)
		}

		var firstTime int64
		if used == 0 {
			firstTime = 1
		}
		err = tx.Model(&Promotion{}).Where("id = ?", locked.ID).Updates(map[string]interface{}{
			"stats_total_redemptions":    gorm.Expr("stats_total_redemptions + 1"),
			"stats_total_bonus_credits":  gorm.Expr("stats_total_bonus_credits + ?", bonus),
			"stats_total_baht_collected": gorm.Expr("stats_total_baht_collected + ?", req.TopupBaht),
			"stats_unique_users":         gorm.Expr("stats_unique_users + ?", firstTime),
			"updated_at":                 req.Now,
		}).Error
		if err != nil {
			return nil, fmt.Errorf("update promotion stats: %w", err)
		}

		locked.Stats.TotalRedemptions++
		locked.Stats.TotalBonusCredits += bonus
		locked.Stats.TotalBahtCollected = locked.Stats.TotalBahtCollected.Add(req.TopupBaht)
		locked.Stats.UniqueUsers += firstTime

		return &Applied{Promotion: locked, Bonus: bonus, Redemption: red}, nil
	}
	return nil, nil
}

func (s *Service) buildInput(tx *gorm.DB, req RedeemRequest) (Input, error) {
	var priorTopups int64
	err := tx.Model(&balance.Transaction{}).
		Where("user_id = ? AND type = ?", req.User.ID, balance.TxTopup).
		Count(&priorTopups).Error
	if err != nil {
		return Input{}, fmt.Errorf("count prior top-ups: %w", err)
	}

	var rows []struct {
		PromotionID string
		N           int64
	}
	err = tx.Model(&Redemption{}).
		Select("promotion_id, COUNT(*) AS n").
		Where("user_id = ?", req.User.ID).
		Group("promotion_id").
		Scan(&rows).Error
	if err != nil {
		return Input{}, fmt.Errorf("count redemptions: %w", err)
	}
	used := make(map[string]int64, len(rows))
	for _, r := range rows {
		used[r.PromotionID] = r.N
	}

	return Input{
		TopupBaht:       req.TopupBaht,
		BaseCredits:     req.BaseCredits,
		Code:            req.Code,
		Now:             req.Now,
		UserCreatedAt:   req.User.CreatedAt,
		HasPriorTopup:   priorTopups > 0,
		UserRedemptions: used,
	}, nil
}

func countRedemptions(tx *gorm.DB, promotionID, userID string) (int64, error) {
	var n int64
	err := tx.Model(&Redemption{}).
		Where("promotion_id = ? AND user_id = ?", promotionID, userID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count redemptions: %w", err)
	}
	return n, nil
}
