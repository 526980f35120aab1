package rates

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/settings"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeReader serves documents from memory, or fails every read when err is set.
type fakeReader struct {
	docs map[string]string
	err  error
}

func (f fakeReader) Get(_ context.Context, key string, dst interface{}) error {
	if f.err != nil {
		return f.err
	}
	raw, ok := f.docs[key]
	if !ok {
		return settings.ErrNotFound
	}
	return json.Unmarshal([]byte(raw), dst)
}

var defaults = settings.CreditRates{
	IStock: settings.RatePair{Photo: 3, Video: 3},
	Adobe:  settings.RatePair{Photo: 2, Video: 2},
}

func TestKeyFor(t *testing.T) {
	cases := map[string]string{
		"iStock":             KeyIStock,
		"ISTOCK_PREMIUM":     KeyIStock,
		"Adobe Stock":        KeyAdobe,
		"shutterstock":       KeyAdobe,
		"ShutterStock-Adobe": KeyAdobe,
		"":                   KeyIStock,
		"getty":              KeyIStock,
	}
	for mode, want := range cases {
		require.Equal(t, want, KeyFor(mode), "mode %q", mode)
	}
}

func TestResolveFromTable(t *testing.T) {
	r := NewResolver(fakeReader{docs: map[string]string{
		settings.KeyCreditRates: `{"istock":{"photo":4,"video":9},"adobe":{"photo":1,"video":5}}`,
	}}, defaults, zerolog.Nop())

	require.Equal(t, Rates{Photo: 4, Video: 9}, r.Resolve(context.Background(), "istock"))
	require.Equal(t, Rates{Photo: 1, Video: 5}, r.Resolve(context.Background(), "Shutterstock"))
}

func TestResolveFallsBack(t *testing.T) {
	ctx := context.Background()

	t.Run("missing document", func(t *testing.T) {
		r := NewResolver(fakeReader{}, defaults, zerolog.Nop())
		require.Equal(t, Rates{Photo: 3, Video: 3}, r.Resolve(ctx, "istock"))
		require.Equal(t, Rates{Photo: 2, Video: 2}, r.Resolve(ctx, "adobe"))
	})

	t.Run("read error", func(t *testing.T) {
		r := NewResolver(fakeReader{err: errors.New("connection refused")}, defaults, zerolog.Nop())
		require.Equal(t, Rates{Photo: 3, Video: 3}, r.Resolve(ctx, "istock"))
	})

	t.Run("malformed document", func(t *testing.T) {
		r := NewResolver(fakeReader{docs: map[string]string{
			settings.KeyCreditRates: `{"istock": "three"}`,
		}}, defaults, zerolog.Nop())
		require.Equal(t, Rates{Photo: 3, Video: 3}, r.Resolve(ctx, "istock"))
	})

	t.Run("non-positive fields", func(t *testing.T) {
		r := NewResolver(fakeReader{docs: map[string]string{
			settings.KeyCreditRates: `{"istock":{"photo":0,"video":6},"adobe":{"photo":-1}}`,
		}}, defaults, zerolog.Nop())
		require.Equal(t, Rates{Photo: 3, Video: 6}, r.Resolve(ctx, "istock"))
		require.Equal(t, Rates{Photo: 2, Video: 2}, r.Resolve(ctx, "adobe"))
	})
}
