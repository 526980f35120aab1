package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/auth"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/balance"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/model"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/promo"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/service"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AdminHandler handles admin-only endpoints.
type AdminHandler struct {
	userSvc  auth.UserService
	ledger   balance.Ledger
	jobs     *service.JobService
	promos   *promo.Service
	settings *settings.Store
	notifier service.Notifier
	log      zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler. notifier may be nil.
func NewAdminHandler(
	userSvc auth.UserService,
	ledger balance.Ledger,
	jobs *service.JobService,
	promos *promo.Service,
	store *settings.Store,
	notifier service.Notifier,
	log zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		userSvc:  userSvc,
		ledger:   ledger,
		jobs:     jobs,
		promos:   promos,
		settings: store,
		notifier: notifier,
		log:      log.With().Str("component", "handler.admin").Logger(),
	}
}

// RegisterRoutes registers admin routes on the admin group.
func (h *AdminHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/users/:id", h.GetUser)
	admin.PUT("/users/:id/status", h.SetUserStatus)
	admin.POST("/users/:id/credits", h.AdjustCredits)

	admin.POST("/jobs/:token/refund", h.RefundJob)
	admin.GET("/jobs/:token/events", h.JobEvents)

	admin.GET("/promotions", h.ListPromotions)
	admin.POST("/promotions", h.CreatePromotion)
	admin.POST("/promotions/:id/status", h.SetPromotionStatus)

	admin.GET("/settings", h.ListSettings)
	admin.PUT("/settings/:key", h.PutSetting)
}

// RegisterSystemRoutes registers the cron-facing endpoints.
func (h *AdminHandler) RegisterSystemRoutes(system *gin.RouterGroup) {
	system.POST("/cleanup-expired-jobs", h.CleanupExpiredJobs)
}

// ─────────────────────────────────────────────
// GET /admin/users/:id
// ─────────────────────────────────────────────

// GetUser retrieves a user's information by ID.
// Returns the same format as /me.
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.userSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, model.UserProfile{
		User:    user,
		Credits: user.Credits,
	})
}

// ─────────────────────────────────────────────
// PUT /admin/users/:id/status
// ─────────────────────────────────────────────

type SetUserStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active banned suspended"`
}

type SetUserStatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SetUserStatus updates a user's account status.
// Valid statuses: active, banned, suspended.
func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	var req SetUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.Param("id")
	if err := h.userSvc.SetStatus(c.Request.Context(), userID, req.Status); err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info().Str("user_id", userID).Str("status", req.Status).Msg("user status changed")
	c.JSON(http.StatusOK, SetUserStatusResponse{
		Success: true,
		Message: "status updated to " + req.Status,
	})
}

// ─────────────────────────────────────────────
// POST /admin/users/:id/credits
// ─────────────────────────────────────────────

type AdjustCreditsRequest struct {
	Amount int64  `json:"amount" binding:"required"` // signed, non-zero
	Remark string `json:"remark"`
}

type AdjustCreditsResponse struct {
	Success bool   `json:"success"`
	Balance int64  `json:"balance"`
	Message string `json:"message"`
}

// AdjustCredits applies a signed correction to a user's balance. A
// correction that would leave the balance negative is rejected.
func (h *AdminHandler) AdjustCredits(c *gin.Context) {
	var req AdjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.Param("id")
	txn, err := h.ledger.Adjust(c.Request.Context(), userID, req.Amount, req.Remark)
	if err != nil {
		var insufficient *balance.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "adjustment would make the balance negative",
				"available": insufficient.Available,
			})
			return
		}
		respondError(c, h.log, err)
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyBalance(userID, txn.BalanceAfter, service.ReasonAdmin, "")
	}
	h.log.Info().Str("user_id", userID).Int64("amount", req.Amount).Int64("balance", txn.BalanceAfter).
		Msg("credits adjusted")
	c.JSON(http.StatusOK, AdjustCreditsResponse{
		Success: true,
		Balance: txn.BalanceAfter,
		Message: "credits adjusted",
	})
}

// ─────────────────────────────────────────────
// POST /admin/jobs/:token/refund
// ─────────────────────────────────────────────

// RefundJob returns a pending job's whole reservation.
func (h *AdminHandler) RefundJob(c *gin.Context) {
	job, err := h.jobs.AdminRefund(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ─────────────────────────────────────────────
// GET /admin/jobs/:token/events
// ─────────────────────────────────────────────

// JobEvents returns any job's audit trail.
func (h *AdminHandler) JobEvents(c *gin.Context) {
	events, err := h.jobs.Events(c.Request.Context(), c.Param("token"), "")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if events == nil {
		events = []model.JobEvent{}
	}
	c.JSON(http.StatusOK, JobEventsResponse{Events: events})
}

// ─────────────────────────────────────────────
// Promotions
// ─────────────────────────────────────────────

type CreatePromotionRequest struct {
	Name        string           `json:"name" binding:"required"`
	Code        string           `json:"code"`
	Description string           `json:"description"`
	Priority    int              `json:"priority"`
	Conditions  promo.Conditions `json:"conditions"`
	Reward      promo.Reward     `json:"reward"`
}

type SetPromotionStatusRequest struct {
	Status promo.Status `json:"status" binding:"required"`
}

// ListPromotions returns every promotion, including codes and stats.
func (h *AdminHandler) ListPromotions(c *gin.Context) {
	list, err := h.promos.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if list == nil {
		list = []promo.Promotion{}
	}
	c.JSON(http.StatusOK, gin.H{"promotions": list})
}

// CreatePromotion stores a new promotion as DRAFT.
func (h *AdminHandler) CreatePromotion(c *gin.Context) {
	var req CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := &promo.Promotion{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		Priority:    req.Priority,
		Conditions:  req.Conditions,
		Reward:      req.Reward,
	}
	if err := h.promos.Create(c.Request.Context(), p); err != nil {
		respondError(c, h.log, err)
		return
	}
	h.log.Info().Str("promotion_id", p.ID).Str("name", p.Name).Msg("promotion created")
	c.JSON(http.StatusCreated, p)
}

// SetPromotionStatus moves a promotion along its lifecycle.
func (h *AdminHandler) SetPromotionStatus(c *gin.Context) {
	var req SetPromotionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.promos.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ─────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────

// settingDocs decodes each editable key into its document type, so a
// malformed value is refused before it reaches the clients.
var settingDocs = map[string]func() interface{}{
	settings.KeyCreditRates:  func() interface{} { return &settings.CreditRates{} },
	settings.KeyExchangeRate: func() interface{} { return &settings.ExchangeRate{} },
	settings.KeyProcessing:   func() interface{} { return &settings.Processing{} },
	settings.KeyBankInfo:     func() interface{} { return &settings.BankInfo{} },
	settings.KeyPrompts:      func() interface{} { return &settings.Prompts{} },
	settings.KeyDictionary:   func() interface{} { return &settings.WordList{} },
	settings.KeyBlacklist:    func() interface{} { return &settings.WordList{} },
}

// ListSettings returns the whole app_settings table.
func (h *AdminHandler) ListSettings(c *gin.Context) {
	rows, err := h.settings.All(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if rows == nil {
		rows = []settings.Setting{}
	}
	c.JSON(http.StatusOK, gin.H{"settings": rows})
}

// PutSetting replaces one settings document.
func (h *AdminHandler) PutSetting(c *gin.Context) {
	key := c.Param("key")
	newDoc, ok := settingDocs[key]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown setting " + key})
		return
	}

	doc := newDoc()
	if err := c.ShouldBindJSON(doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if rate, ok := doc.(*settings.ExchangeRate); ok && !rate.Rate.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rate must be positive"})
		return
	}

	if err := h.settings.Put(c.Request.Context(), key, doc); err != nil {
		respondError(c, h.log, err)
		return
	}
	h.log.Info().Str("key", key).Msg("setting updated")
	c.JSON(http.StatusOK, gin.H{"key": key, "value": doc, "updated_at": time.Now()})
}

// ─────────────────────────────────────────────
// POST /system/cleanup-expired-jobs
// ─────────────────────────────────────────────

// CleanupExpiredJobs runs the expiry sweep immediately.
func (h *AdminHandler) CleanupExpiredJobs(c *gin.Context) {
	res, err := h.jobs.ReclaimExpired(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
