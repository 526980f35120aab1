package handler

import (
	"errors"
	"net/http"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/auth"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/balance"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/promo"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/service"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/slip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// respondError maps a domain error to its HTTP status. Anything it does
// not recognise is logged and reported as a bare 500.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	var insufficient *balance.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     "insufficient credits",
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, balance.ErrAccountNotActive):
		return http.StatusForbidden
	case errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, balance.ErrUserNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, promo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAntiCheat),
		errors.Is(err, service.ErrInvalidCounts),
		errors.Is(err, service.ErrInvalidJobState),
		errors.Is(err, slip.ErrSlipInvalid),
		errors.Is(err, service.ErrReceiverMismatch),
		errors.Is(err, promo.ErrInvalidTransition),
		errors.Is(err, promo.ErrInvalidPromotion),
		errors.Is(err, auth.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDuplicateSlip):
		return http.StatusConflict
	case errors.Is(err, slip.ErrVerifierUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
