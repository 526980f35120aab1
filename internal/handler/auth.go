package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	userSvc auth.UserService
	tokens  *auth.TokenIssuer
	log     zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userSvc auth.UserService, tokens *auth.TokenIssuer, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userSvc: userSvc,
		tokens:  tokens,
		log:     log.With().Str("component", "handler.auth").Logger(),
	}
}

// RegisterRoutes registers auth routes on the Gin engine.
func (h *AuthHandler) RegisterRoutes(r *gin.Engine) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}
}

type AuthResponse struct {
	User      *auth.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// ─────────────────────────────────────────────
// POST /auth/register
// ─────────────────────────────────────────────

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Nickname string `json:"nickname"`
}

// Register creates an account with a zero balance and signs the caller in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userSvc.Register(c.Request.Context(), req.Email, req.Password, req.Nickname)
	if err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.log.Error().Err(err).Msg("register")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// ─────────────────────────────────────────────
// POST /auth/login
// ─────────────────────────────────────────────

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles user login via email + password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredential) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		h.log.Error().Err(err).Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *auth.User) {
	token, expiresAt, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("issue token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(status, AuthResponse{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
