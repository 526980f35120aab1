package handler

import (
	"context"
	"net/http"
	"time"

	appctx "github.com/T50-commits/BigEye-DesktopApp-sub000/internal/context"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/metrics"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Handler holds the infrastructure endpoints: health, metrics and the
// balance push socket.
type Handler struct {
	db       *gorm.DB
	rdb      *redis.Client // nil when running without Redis
	hub      *ws.Hub
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHandler creates the handler set.
func NewHandler(db *gorm.DB, rdb *redis.Client, hub *ws.Hub, m *metrics.Metrics, log zerolog.Logger) *Handler {
	return &Handler{
		db:      db,
		rdb:     rdb,
		hub:     hub,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "handler").Logger(),
	}
}

// RegisterRoutes registers the public endpoints on r and the socket
// behind userAuth.
func (h *Handler) RegisterRoutes(r *gin.Engine, userAuth gin.HandlerFunc) {
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	r.GET("/ws", userAuth, h.WebSocket)
}

// ─────────────────────────────────────────────
// GET /ws  (balance push)
// ─────────────────────────────────────────────

// WebSocket upgrades the connection and subscribes it to the caller's
// balance changes. The JWT comes in the Authorization header or the
// "token" query parameter.
func (h *Handler) WebSocket(c *gin.Context) {
	userID := appctx.GetUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug().Err(err).Str("user_id", userID).Msg("websocket upgrade")
		return
	}

	ws.NewClient(userID, conn, h.hub).Run()
}

// ─────────────────────────────────────────────
// GET /healthz
// ─────────────────────────────────────────────

// Health reports whether the database and Redis answer.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "down"
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	switch {
	case h.rdb == nil:
		checks["redis"] = "disabled"
	case h.rdb.Ping(ctx).Err() != nil:
		// Redis only backs caches and limits; the ledger keeps working.
		checks["redis"] = "down"
	default:
		checks["redis"] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":            status,
		"checks":            checks,
		"connected_clients": h.hub.ClientCount(),
	})
}
