package handler

import (
	"net/http"

	appctx "github.com/T50-commits/BigEye-DesktopApp-sub000/internal/context"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/model"
	"github.com/gin-gonic/gin"
)

// UserHandler handles user-related endpoints.
type UserHandler struct{}

// NewUserHandler creates a new UserHandler.
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// RegisterRoutes registers user routes on the api group.
func (h *UserHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/me", h.Me)
}

// ─────────────────────────────────────────────
// GET /me
// ─────────────────────────────────────────────

// Me returns the caller's profile as loaded by BearerAuth.
func (h *UserHandler) Me(c *gin.Context) {
	user := appctx.MustGetUser(c)
	c.JSON(http.StatusOK, model.UserProfile{
		User:    user,
		Credits: user.Credits,
	})
}
