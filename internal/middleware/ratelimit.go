package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	appctx "github.com/T50-commits/BigEye-DesktopApp-sub000/internal/context"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const visitorIdle = 3 * time.Minute

// ─────────────────────────────────────────────
// Per-IP token bucket (process local)
// ─────────────────────────────────────────────

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastPrune time.Time
}

func (l *ipLimiter) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > visitorIdle {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > visitorIdle {
				delete(l.visitors, k)
			}
		}
		l.lastPrune = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// IPRateLimit throttles each client IP to rps requests per second with
// the given burst. A non-positive rps disables it.
func IPRateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = int(math.Ceil(rps))
	}
	l := &ipLimiter{
		visitors:  make(map[string]*visitor),
		limit:     rate.Limit(rps),
		burst:     burst,
		lastPrune: time.Now(),
	}
	return func(c *gin.Context) {
		if !l.get(c.ClientIP(), time.Now()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}

// ─────────────────────────────────────────────
// Per-user fixed window (shared via Redis)
// ─────────────────────────────────────────────

// WindowLimiter is the shared counter behind UserRateLimit.
type WindowLimiter interface {
	Allow(ctx context.Context, id string, limit int, window time.Duration) (bool, time.Duration, error)
}

// UserRateLimit allows each authenticated user limit requests per
// window. It must run after BearerAuth. When the counter store is down
// the request is let through.
func UserRateLimit(l WindowLimiter, limit int, window time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := appctx.GetUserID(c)
		ok, retryAfter, err := l.Allow(c.Request.Context(), userID, limit, window)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !ok {
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests, try again later",
				"retry_after": secs,
			})
			return
		}
		c.Next()
	}
}
