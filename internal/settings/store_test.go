package settings_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/config"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/settings"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/storetest"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newCachedStore(t *testing.T) (*settings.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return settings.NewStore(storetest.NewDB(t), rdb, time.Minute, zerolog.Nop()), mr
}

func TestGetMissingKey(t *testing.T) {
	s := settings.NewStore(storetest.NewDB(t), nil, time.Minute, zerolog.Nop())

	var rates settings.CreditRates
	err := s.Get(context.Background(), settings.KeyCreditRates, &rates)
	require.ErrorIs(t, err, settings.ErrNotFound)
}

func TestPutThenGetIsCached(t *testing.T) {
	ctx := context.Background()
	s, mr := newCachedStore(t)

	want := settings.CreditRates{
		IStock: settings.RatePair{Photo: 4, Video: 6},
		Adobe:  settings.RatePair{Photo: 2, Video: 3},
	}
	require.NoError(t, s.Put(ctx, settings.KeyCreditRates, want))
	require.False(t, mr.Exists("settings:credit_rates"))

	var got settings.CreditRates
	require.NoError(t, s.Get(ctx, settings.KeyCreditRates, &got))
	require.Equal(t, want, got)
	require.True(t, mr.Exists("settings:credit_rates"))
	require.Equal(t, time.Minute, mr.TTL("settings:credit_rates"))

	mr.FastForward(2 * time.Minute)
	require.False(t, mr.Exists("settings:credit_rates"))
	require.NoError(t, s.Get(ctx, settings.KeyCreditRates, &got))
	require.Equal(t, want, got)
}

func TestPutInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	s, mr := newCachedStore(t)

	require.NoError(t, s.Put(ctx, settings.KeyExchangeRate, settings.ExchangeRate{Rate: decimal.NewFromInt(4)}))
	var er settings.ExchangeRate
	require.NoError(t, s.Get(ctx, settings.KeyExchangeRate, &er))
	require.True(t, mr.Exists("settings:exchange_rate"))

	require.NoError(t, s.Put(ctx, settings.KeyExchangeRate, settings.ExchangeRate{Rate: decimal.RequireFromString("4.5")}))
	require.False(t, mr.Exists("settings:exchange_rate"))

	require.NoError(t, s.Get(ctx, settings.KeyExchangeRate, &er))
	require.Equal(t, "4.5", er.Rate.String())
}

func TestCacheOutageFallsBackToDatabase(t *testing.T) {
	ctx := context.Background()
	s, mr := newCachedStore(t)

	require.NoError(t, s.Put(ctx, settings.KeyProcessing, settings.Processing{ImageConcurrency: 8}))
	mr.Close()

	var p settings.Processing
	require.NoError(t, s.Get(ctx, settings.KeyProcessing, &p))
	require.Equal(t, 8, p.ImageConcurrency)
}

func TestSeedKeepsExistingValues(t *testing.T) {
	ctx := context.Background()
	s := settings.NewStore(storetest.NewDB(t), nil, time.Minute, zerolog.Nop())

	edited := settings.BankInfo{BankName: "KBank", AccountNumber: "123-4-56789-0"}
	require.NoError(t, s.Put(ctx, settings.KeyBankInfo, edited))

	cfg := &config.Config{
		DefaultIStockPhotoRate: 3, DefaultIStockVideoRate: 3,
		DefaultAdobePhotoRate: 2, DefaultAdobeVideoRate: 2,
		DefaultExchangeRate: decimal.NewFromInt(4),
		BankName:            "SCB",
	}
	require.NoError(t, s.Seed(ctx, settings.Defaults(cfg)))

	var bank settings.BankInfo
	require.NoError(t, s.Get(ctx, settings.KeyBankInfo, &bank))
	require.Equal(t, edited, bank)

	var rates settings.CreditRates
	require.NoError(t, s.Get(ctx, settings.KeyCreditRates, &rates))
	require.Equal(t, 3, rates.IStock.Photo)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 7)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
credit_rates:
  istock: {photo: 5, video: 7}
  adobe: {photo: 2, video: 4}
blacklist:
  words: [logo, trademark]
prompts:
  default: describe the image
  modes:
    adobe: adobe prompt
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	docs, err := settings.LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	ctx := context.Background()
	s := settings.NewStore(storetest.NewDB(t), nil, time.Minute, zerolog.Nop())
	require.NoError(t, s.Seed(ctx, docs))

	var rates settings.CreditRates
	require.NoError(t, s.Get(ctx, settings.KeyCreditRates, &rates))
	require.Equal(t, settings.RatePair{Photo: 5, Video: 7}, rates.IStock)

	var bl settings.WordList
	require.NoError(t, s.Get(ctx, settings.KeyBlacklist, &bl))
	require.Equal(t, []string{"logo", "trademark"}, bl.Words)

	var prompts settings.Prompts
	require.NoError(t, s.Get(ctx, settings.KeyPrompts, &prompts))
	require.Equal(t, "adobe prompt", prompts.Modes["adobe"])
}
