package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/auth"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/balance"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/config"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/metrics"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/promo"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/settings"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/slip"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TopUpResult is the outcome of a credited slip.
type TopUpResult struct {
	Status       string `json:"status"`
	TransRef     string `json:"trans_ref"`
	BaseCredits  int64  `json:"base_credits"`
	BonusCredits int64  `json:"bonus_credits"`
	TotalCredits int64  `json:"total_credits"`
	NewBalance   int64  `json:"new_balance"`
	PromoApplied string `json:"promo_applied,omitempty"`
}

// TopUpService converts verified bank slips into credits.
type TopUpService struct {
	db       *gorm.DB
	verifier slip.Verifier
	promos   *promo.Service
	settings settings.Reader
	notifier Notifier
	metrics  *metrics.Metrics

	defaultRate decimal.Decimal
	defaultBank settings.BankInfo
	log         zerolog.Logger
}

// NewTopUpService creates the service. notifier and m may be nil.
func NewTopUpService(
	db *gorm.DB,
	verifier slip.Verifier,
	promos *promo.Service,
	reader settings.Reader,
	notifier Notifier,
	m *metrics.Metrics,
	cfg *config.Config,
	log zerolog.Logger,
) *TopUpService {
	return &TopUpService{
		db:          db,
		verifier:    verifier,
		promos:      promos,
		settings:    reader,
		notifier:    orNop(notifier),
		metrics:     m,
		defaultRate: cfg.DefaultExchangeRate,
		defaultBank: settings.DefaultBankInfo(cfg),
		log:         log.With().Str("component", "topup").Logger(),
	}
}

// TopUp verifies a slip and credits its value plus at most one promotion
// bonus. The slip provider is called before any transaction opens; the
// slip insert, the promotion redemption and the credit commit together.
func (s *TopUpService) TopUp(ctx context.Context, userID, slipPayload, promoCode string) (*TopUpResult, error) {
	if strings.TrimSpace(slipPayload) == "" {
		s.metrics.TopUp("invalid", 0, 0)
		return nil, validationErrorf("slip is required")
	}

	// ── Step 1: Ask the provider ──
	v, err := s.verifier.Verify(ctx, slipPayload)
	if err != nil {
		s.metrics.TopUp(topupResult(err), 0, 0)
		return nil, err
	}

	// ── Step 2: The transfer must have reached us ──
	bank := s.BankInfo(ctx)
	if !slip.MatchAccount(v.ReceiverAccount, bank.AccountNumber) {
		s.metrics.TopUp("receiver_mismatch", 0, 0)
		s.log.Warn().Str("user_id", userID).Str("trans_ref", v.TransRef).
			Str("receiver", v.ReceiverAccount).Msg("slip receiver mismatch")
		return nil, ErrReceiverMismatch
	}

	base := promo.BaseCredits(v.AmountBaht, s.ExchangeRate(ctx))
	now := time.Now()

	// ── Step 3: Credit atomically ──
	var (
		result  *TopUpResult
		applied *promo.Applied
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := slip.Slip{
			ID:              uuid.NewString(),
			TransRef:        v.TransRef,
			UserID:          userID,
			AmountBaht:      v.AmountBaht,
			SenderName:      v.SenderName,
			ReceiverAccount: v.ReceiverAccount,
			Status:          slip.StatusCredited,
			TransferredAt:   v.TransferredAt,
			CreatedAt:       now,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateSlip
			}
			return fmt.Errorf("record slip: %w", err)
		}

		user, err := balance.LockActiveUser(tx, userID)
		if err != nil {
			return err
		}

		applied, err = s.promos.Redeem(tx, promo.RedeemRequest{
			User:        user,
			TopupBaht:   v.AmountBaht,
			BaseCredits: base,
			Code:        promoCode,
			SlipID:      rec.ID,
			Now:         now,
		})
		if err != nil {
			return err
		}

		var bonus int64
		desc := fmt.Sprintf("top-up %s THB", v.AmountBaht.StringFixed(2))
		if applied != nil {
			bonus = applied.Bonus
			desc += " + " + applied.Promotion.Name
		}
		total := base + bonus
		if total < -user.Credits {
			total = -user.Credits
		}

		if _, err := balance.Apply(tx, user, balance.Entry{
			Type:        balance.TxTopup,
			Amount:      total,
			ReferenceID: v.TransRef,
			Description: desc,
		}); err != nil {
			return err
		}
		if err := tx.Model(&auth.User{}).Where("id = ?", userID).
			UpdateColumn("total_topup_baht", gorm.Expr("total_topup_baht + ?", v.AmountBaht)).Error; err != nil {
			return fmt.Errorf("update total_topup_baht: %w", err)
		}

		result = &TopUpResult{
			Status:       "success",
			TransRef:     v.TransRef,
			BaseCredits:  base,
			BonusCredits: bonus,
			TotalCredits: total,
			NewBalance:   user.Credits,
		}
		if applied != nil {
			result.PromoApplied = applied.Promotion.Name
		}
		return nil
	})
	if err != nil {
		s.metrics.TopUp(topupResult(err), 0, 0)
		if errors.Is(err, ErrDuplicateSlip) {
			s.log.Warn().Str("user_id", userID).Str("trans_ref", v.TransRef).Msg("duplicate slip")
		}
		return nil, err
	}

	// ── Step 4: Side effects ──
	s.notifier.NotifyBalance(userID, result.NewBalance, ReasonTopup, v.TransRef)
	s.metrics.TopUp("ok", result.BaseCredits, result.BonusCredits)

	ev := s.log.Info().Str("user_id", userID).Str("trans_ref", v.TransRef).
		Str("baht", v.AmountBaht.String()).Int64("base", base).Int64("bonus", result.BonusCredits)
	if applied != nil {
		ev = ev.Str("promotion_id", applied.Promotion.ID)
	}
	ev.Msg("top-up credited")
	return result, nil
}

func topupResult(err error) string {
	switch {
	case errors.Is(err, slip.ErrSlipInvalid):
		return "invalid_slip"
	case errors.Is(err, slip.ErrVerifierUnavailable):
		return "verifier_unavailable"
	case errors.Is(err, ErrDuplicateSlip):
		return "duplicate"
	case errors.Is(err, balance.ErrAccountNotActive):
		return "inactive"
	default:
		return "error"
	}
}

// ─────────────────────────────────────────────
// Settings with fallbacks
// ─────────────────────────────────────────────

// ExchangeRate returns credits per baht from settings, falling back to
// the configured default when the document is missing or not positive.
func (s *TopUpService) ExchangeRate(ctx context.Context) decimal.Decimal {
	var doc settings.ExchangeRate
	if err := s.settings.Get(ctx, settings.KeyExchangeRate, &doc); err != nil {
		if !errors.Is(err, settings.ErrNotFound) {
			s.log.Warn().Err(err).Msg("exchange rate unavailable, using default")
		}
		return s.defaultRate
	}
	if !doc.Rate.IsPositive() {
		return s.defaultRate
	}
	return doc.Rate
}

// BankInfo returns the receiving account, field by field from settings
// and then from the environment.
func (s *TopUpService) BankInfo(ctx context.Context) settings.BankInfo {
	info := s.defaultBank
	var doc settings.BankInfo
	if err := s.settings.Get(ctx, settings.KeyBankInfo, &doc); err != nil {
		if !errors.Is(err, settings.ErrNotFound) {
			s.log.Warn().Err(err).Msg("bank info unavailable, using default")
		}
		return info
	}
	if doc.BankName != "" {
		info.BankName = doc.BankName
	}
	if doc.AccountName != "" {
		info.AccountName = doc.AccountName
	}
	if doc.AccountNumber != "" {
		info.AccountNumber = doc.AccountNumber
	}
	return info
}

// ActivePromotions lists the promotions a top-up could currently earn.
func (s *TopUpService) ActivePromotions(ctx context.Context) ([]promo.Promotion, error) {
	return s.promos.ListApplicable(ctx, time.Now())
}
