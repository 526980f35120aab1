package rates

import (
	"context"
	"strings"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/settings"
	"github.com/rs/zerolog"
)

// Platform keys in the credit_rates document.
const (
	KeyIStock = "istock"
	KeyAdobe  = "adobe"
)

// Rates is the per-file credit cost for one platform.
type Rates struct {
	Photo int `json:"photo"`
	Video int `json:"video"`
}

// Resolver maps a job mode to its credit rates. It reads the live rate
// table on every call and never fails: a missing or unreadable table, or
// a non-positive field in it, falls back to the configured defaults.
type Resolver struct {
	src      settings.Reader
	defaults settings.CreditRates
	log      zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(src settings.Reader, defaults settings.CreditRates, log zerolog.Logger) *Resolver {
	return &Resolver{
		src:      src,
		defaults: defaults,
		log:      log.With().Str("component", "rates").Logger(),
	}
}

// KeyFor maps a mode string to a platform key by case-insensitive
// substring: "istock" first, then "adobe" or "shutterstock", else istock.
func KeyFor(mode string) string {
	m := strings.ToLower(mode)
	switch {
	case strings.Contains(m, "istock"):
		return KeyIStock
	case strings.Contains(m, "adobe"), strings.Contains(m, "shutterstock"):
		return KeyAdobe
	default:
		return KeyIStock
	}
}

// Resolve returns the rates for mode.
func (r *Resolver) Resolve(ctx context.Context, mode string) Rates {
	table := r.All(ctx)
	if KeyFor(mode) == KeyAdobe {
		return Rates{Photo: table.Adobe.Photo, Video: table.Adobe.Video}
	}
	return Rates{Photo: table.IStock.Photo, Video: table.IStock.Video}
}

// All returns the effective rate table, defaults filled in per field.
func (r *Resolver) All(ctx context.Context) settings.CreditRates {
	var doc settings.CreditRates
	if err := r.src.Get(ctx, settings.KeyCreditRates, &doc); err != nil {
		r.log.Warn().Err(err).Msg("credit rates unavailable, using defaults")
		return r.defaults
	}
	return settings.CreditRates{
		IStock: merge(doc.IStock, r.defaults.IStock),
		Adobe:  merge(doc.Adobe, r.defaults.Adobe),
	}
}

func merge(got, fallback settings.RatePair) settings.RatePair {
	if got.Photo <= 0 {
		got.Photo = fallback.Photo
	}
	if got.Video <= 0 {
		got.Video = fallback.Video
	}
	return got
}
