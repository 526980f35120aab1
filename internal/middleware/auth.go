package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/auth"
	appctx "github.com/T50-commits/BigEye-DesktopApp-sub000/internal/context"
	"github.com/gin-gonic/gin"
)

// BearerAuth returns a Gin middleware that validates the session JWT
// from the Authorization header (format: "Bearer <jwt>") and injects
// the authenticated User into the context. Browsers cannot set headers
// on a WebSocket handshake, so the "token" query parameter is accepted
// as well.
//
// Account status is not checked here: suspended users may still read
// their balance, and every spending path re-checks status under the
// row lock.
func BearerAuth(tokens *auth.TokenIssuer, users auth.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractBearerToken(c)
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or malformed Authorization header (expected: Bearer <token>)",
			})
			return
		}

		userID, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "invalid or expired token",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal error",
			})
			return
		}

		c.Set(appctx.CtxKeyUser, user)
		c.Next()
	}
}

// extractBearerToken gets the token from "Authorization: Bearer <token>".
func extractBearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AdminTokenAuth returns a Gin middleware that validates the admin token
// from the Authorization header (format: "Bearer <admin-token>").
// This provides simple admin authentication without user database lookup.
func AdminTokenAuth(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "admin authentication not configured",
			})
			return
		}

		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or malformed Authorization header (expected: Bearer <admin-token>)",
			})
			return
		}

		if token != adminToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid admin token",
			})
			return
		}

		c.Next()
	}
}
