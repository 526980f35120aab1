package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/balance"
	appctx "github.com/T50-commits/BigEye-DesktopApp-sub000/internal/context"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/promo"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/rates"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/service"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CreditHandler serves top-ups and the balance views.
type CreditHandler struct {
	topups *service.TopUpService
	ledger balance.Ledger
	rates  *rates.Resolver
	log    zerolog.Logger
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(topups *service.TopUpService, ledger balance.Ledger, resolver *rates.Resolver, log zerolog.Logger) *CreditHandler {
	return &CreditHandler{
		topups: topups,
		ledger: ledger,
		rates:  resolver,
		log:    log.With().Str("component", "handler.credit").Logger(),
	}
}

// RegisterRoutes registers credit routes on the authenticated group.
// topupLimit guards only the top-up endpoint.
func (h *CreditHandler) RegisterRoutes(api *gin.RouterGroup, topupLimit gin.HandlerFunc) {
	credit := api.Group("/credit")
	{
		credit.POST("/topup", topupLimit, h.TopUp)
		credit.GET("/balance", h.Balance)
		credit.GET("/history", h.History)
	}
}

// ─────────────────────────────────────────────
// POST /credit/topup
// ─────────────────────────────────────────────

type TopUpRequest struct {
	Slip      string `json:"slip" binding:"required"`
	PromoCode string `json:"promo_code"`
}

// TopUp credits a verified bank transfer slip.
func (h *CreditHandler) TopUp(c *gin.Context) {
	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	res, err := h.topups.TopUp(c.Request.Context(), appctx.GetUserID(c), req.Slip, req.PromoCode)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ─────────────────────────────────────────────
// GET /credit/balance
// ─────────────────────────────────────────────

// PromoSummary is what a user may see of a running promotion. Codes
// are never listed.
type PromoSummary struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	RewardType   promo.RewardType `json:"reward_type"`
	BonusCredits int64            `json:"bonus_credits,omitempty"`
	Percentage   *decimal.Decimal `json:"percentage,omitempty"`
	OverrideRate *decimal.Decimal `json:"override_rate,omitempty"`
	Tiers        []promo.Tier     `json:"tiers,omitempty"`
	RequireCode  bool             `json:"require_code"`
	EndDate      *time.Time       `json:"end_date,omitempty"`
}

type BalanceResponse struct {
	Credits      int64                `json:"credits"`
	ExchangeRate decimal.Decimal      `json:"exchange_rate"`
	CreditRates  settings.CreditRates `json:"credit_rates"`
	ActivePromos []PromoSummary       `json:"active_promos"`
	BankInfo     settings.BankInfo    `json:"bank_info"`
}

// Balance returns the caller's credits together with everything the
// top-up screen displays.
func (h *CreditHandler) Balance(c *gin.Context) {
	ctx := c.Request.Context()
	userID := appctx.GetUserID(c)

	credits, err := h.ledger.Balance(ctx, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	promos, err := h.topups.ActivePromotions(ctx)
	if err != nil {
		// The balance matters more than the banner.
		h.log.Warn().Err(err).Msg("list active promotions")
	}

	c.JSON(http.StatusOK, BalanceResponse{
		Credits:      credits,
		ExchangeRate: h.topups.ExchangeRate(ctx),
		CreditRates:  h.rates.All(ctx),
		ActivePromos: summarize(promos),
		BankInfo:     h.topups.BankInfo(ctx),
	})
}

func summarize(promos []promo.Promotion) []PromoSummary {
	out := make([]PromoSummary, 0, len(promos))
	for _, p := range promos {
		s := PromoSummary{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			RewardType:  p.Reward.Type,
			RequireCode: p.Conditions.RequireCode,
			EndDate:     p.Conditions.EndDate,
		}
		switch p.Reward.Type {
		case promo.RewardBonusCredits:
			s.BonusCredits = p.Reward.BonusCredits
		case promo.RewardPercentage:
			pct := p.Reward.Percentage
			s.Percentage = &pct
		case promo.RewardRateOverride:
			rate := p.Reward.OverrideRate
			s.OverrideRate = &rate
		case promo.RewardTiered:
			s.Tiers = p.Reward.Tiers
		}
		out = append(out, s)
	}
	return out
}

// ─────────────────────────────────────────────
// GET /credit/history?page=1&page_size=20
// ─────────────────────────────────────────────

type CreditHistoryResponse struct {
	Transactions []balance.Transaction `json:"transactions"`
	Total        int64                 `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
}

// History pages through the caller's ledger, newest first.
func (h *CreditHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	txns, total, err := h.ledger.History(c.Request.Context(), appctx.GetUserID(c), page, pageSize)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if txns == nil {
		txns = []balance.Transaction{}
	}
	c.JSON(http.StatusOK, CreditHistoryResponse{
		Transactions: txns,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	})
}
