package service_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/auth"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/balance"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/config"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/model"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/rates"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/seal"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/service"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/settings"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/store"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/storetest"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func ptr[T any](v T) *T { return &v }

func testConfig() *config.Config {
	return &config.Config{
		JobTTL:                  2 * time.Hour,
		ReclaimBatch:            2,
		DefaultIStockPhotoRate:  3,
		DefaultIStockVideoRate:  3,
		DefaultAdobePhotoRate:   2,
		DefaultAdobeVideoRate:   2,
		DefaultImageConcurrency: 5,
		DefaultVideoConcurrency: 2,
		DefaultCacheThreshold:   20,
		DefaultExchangeRate:     decimal.NewFromInt(4),
		NewUserWindow:           7 * 24 * time.Hour,
		BankName:                "KBank",
		BankAccountName:         "BigEye Co.",
		BankAccountNumber:       "123-4-56789-0",
	}
}

// notification is one NotifyBalance call.
type notification struct {
	UserID  string
	Credits int64
	Reason  string
	Ref     string
}

type recorder struct {
	mu    sync.Mutex
	calls []notification
}

func (r *recorder) NotifyBalance(userID string, credits int64, reason, ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, notification{userID, credits, reason, ref})
}

func (r *recorder) last() notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return notification{}
	}
	return r.calls[len(r.calls)-1]
}

type jobFixture struct {
	st       *store.Store
	db       *gorm.DB
	settings *settings.Store
	jobs     *service.JobService
	notes    *recorder
}

func newJobFixture(t *testing.T, sealer *seal.Sealer) *jobFixture {
	t.Helper()
	st := storetest.NewStore(t)
	cfg := testConfig()
	sets := settings.NewStore(st.DB(), nil, time.Minute, zerolog.Nop())
	resolver := rates.NewResolver(sets, settings.DefaultCreditRates(cfg), zerolog.Nop())
	notes := &recorder{}
	return &jobFixture{
		st:       st,
		db:       st.DB(),
		settings: sets,
		jobs:     service.NewJobService(st, resolver, sets, sealer, notes, nil, cfg, zerolog.Nop()),
		notes:    notes,
	}
}

func (f *jobFixture) reserve(t *testing.T, userID string, photos, videos int) *model.ReserveResponse {
	t.Helper()
	resp, err := f.jobs.Reserve(context.Background(), userID, &model.ReserveRequest{
		FileCount:  photos + videos,
		PhotoCount: ptr(photos),
		VideoCount: ptr(videos),
		Mode:       "iStock",
		Model:      "gemini-flash",
		Version:    "3.1.0",
	})
	require.NoError(t, err)
	return resp
}

func (f *jobFixture) job(t *testing.T, token string) model.Job {
	t.Helper()
	var j model.Job
	require.NoError(t, f.db.Where("job_token = ?", token).First(&j).Error)
	return j
}

func (f *jobFixture) expire(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, f.db.Model(&model.Job{}).Where("job_token = ?", token).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)
}

// ─────────────────────────────────────────────
// End-to-end scenarios
// ─────────────────────────────────────────────

func TestReserveThenFinalizeAllSucceeded(t *testing.T) {
	f := newJobFixture(t, nil)
	user := storetest.CreateUser(t, f.db, 100)

	resp := f.reserve(t, user.ID, 5, 0)
	require.Equal(t, int64(15), resp.ReservedCredits)
	require.Equal(t, 3, resp.PhotoRate)
	require.Equal(t, int64(85), resp.Balance)
	require.Equal(t, int64(85), storetest.Credits(t, f.db, user.ID))
	require.Equal(t, notification{user.ID, 85, service.ReasonReserve, resp.JobToken}, f.notes.last())

	out, err := f.jobs.Finalize(context.Background(), user.ID, &model.FinalizeRequest{
		JobToken: resp.JobToken, Success: 5, Failed: 0, Photos: ptr(5), Videos: ptr(0),
	})
	require.NoError(t, err)
	require.Equal(t, &model.FinalizeResponse{Refunded: 0, Balance: 85}, out)

	j := f.job(t, resp.JobToken)
	require.Equal(t, model.JobStatusCompleted, j.Status)
	require.Equal(t, int64(15), j.ActualUsage)
	require.NotNil(t, j.CompletedAt)

	var u auth.User
	require.NoError(t, f.db.Where("id = ?", user.ID).First(&u).Error)
	require.Equal(t, int64(15), u.TotalCreditsUsed)
	require.NotNil(t, u.LastActive)
}

func TestReserveThenFinalizeAllFailed(t *testing.T) {
	f := newJobFixture(t, nil)
	user := storetest.CreateUser(t, f.db, 100)

	resp := f.reserve(t, user.ID, 5, 0)
	out, err := f.jobs.Finalize(context.Background(), user.ID, &model.FinalizeRequest{
		JobToken: resp.JobToken, Success: 0, Failed: 5, Photos: ptr(5), Videos: ptr(0),
	})
	require.NoError(t, err)
	require.Equal(t, &model.FinalizeResponse{Refunded: 15, Balance: 100}, out)
	require.Equal(t, notification{user.ID, 100, service.ReasonRefund, resp.JobToken}, f.notes.last())

	txns, total, err := balance.NewLedger(f.db).History(context.Background(), user.ID, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, balance.TxRefund, txns[0].Type)
	require.Equal(t, int64(15), txns[0].Amount)
	require.Equal(t, int64(100), txns[0].BalanceAfter)
	require.Equal(t, balance.TxReserve, txns[1].Type)
	require.Equal(t, int64(-15), txns[1].Amount)
}

func TestFinalizeApportionsMixedBatch(t *testing.T) {
	f := newJobFixture(t, nil)
	user := storetest.CreateUser(t, f.db, 100)

	resp := f.reserve(t, user.ID, 7, 3)
	require.Equal(t, int64(30), resp.ReservedCredits)
	require.Equal(t, int64(70), resp.Balance)

	out, err := f.jobs.Finalize(context.Background(), user.ID, &model.FinalizeRequest{
		JobToken: resp.JobToken, Success: 5, Failed: 5, Photos: ptr(7), Videos: ptr(3),
	})
	require.NoError(t, err)
	require.Equal(t, &model.FinalizeResponse{Refunded: 15, Balance: 85}, out)
}

func TestFinalizeReplaysWhateverTheArguments(t *testing.T) {
	f := newJobFixture(t, nil)
	user := storetest.CreateUser(t, f.db, 100)
	ctx := context.Background()

	resp := f.reserve(t, user.ID, 7, 3)
	first, err := f.jobs.Finalize(ctx, user.ID, &model.FinalizeRequest{
		JobToken: resp.JobToken, Success: 5, Failed: 5, Photos: ptr(7), Videos: ptr(3),
	})
	require.NoError(t, err)

	for _, req := range []*model.FinalizeRequest{
		{JobToken: resp.JobToken, Success: 10, Failed: 0},
		{JobToken: resp.JobToken, Success: 0, Failed: 10},
		{JobToken: resp.JobToken, Success: 500, Failed: 500},
		{JobToken: resp.JobToken, Success: -1},
	} {
		again, err := f.jobs.Finalize(ctx, user.ID, req)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
	require.Equal(t, int64(85), storetest.Credits(t, f.db, user.ID))

	f.st.Close()
	events, err := f.st.JobEvents(resp.JobToken)
	require.NoError(t, err)
	require.Len(t, events, 6)
	require.Equal(t, model.JobEventReserved, events[0].Type)
	require.Equal(t, model.JobEventFinalized, events[1].Type)
	require.Equal(t, model.JobEventReplayed, events[5].Type)
}

func TestConcurrentReservesCannotOverdraw(t *testing.T) {
	f := newJobFixture(t, nil)
	user := storetest.CreateUser(t, f.db, 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.jobs.Reserve(context.Background(), user.ID, &model.ReserveRequest{
				FileCount: 5, Mode: "istock",
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		var insufficient *balance.InsufficientCreditsError
		require.ErrorAs(t, err, &insufficient)
		require.Equal(t, int64(15), insufficient.Required)
		require.Equal(t, int64(10), insufficient.Available)
	}
	require.Equal(t, int64(10), storetest.Credits(t, f.db, user.ID))

	var jobs int64
	require.NoError(t, f.db.Model(&model.Job{}).Count(&jobs).Error)
	require.Zero(t, jobs)
}

func TestConcurrentReservesSpendExactlyTheBalance(t *testing.T) {
	f := newJobFixture(t, nil)
	user := storetest.CreateUser(t, f.db, 30)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.jobs.Reserve(context.Background(), user.ID, &model.ReserveRequest{FileCount: 5, Mode: "istock"})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 2, ok)
	require.Equal(t, int64(0), storetest.Credits(t, f.db, user.ID))
}

// ─────────────────────────────────────────────
// Reserve
// ─────────────────────────────────────────────

func TestReserveValidation(t *testing.T) {
	f := newJobFixture(t, nil)
	user := storetest.CreateUser(t, f.db, 100)

	cases := map[string]*model.ReserveRequest{
		"no files":        {FileCount: 0},
		"negative photos": {FileCount: 2, PhotoCount: ptr(-1), VideoCount: ptr(3)},
		"split mismatch":  {FileCount: 5, PhotoCount: ptr(2), VideoCount: ptr(2)},
		"only videos off": {FileCount: 5, VideoCount: ptr(2)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.jobs.Reserve(context.Background(), user.ID, req)
			require.ErrorIs(t, err, service.ErrValidation)
		})
	}
	require.Equal(t, int64(100), storetest.Credits(t, f.db, user.ID))
}

func TestReserveRejectsInactiveAccount(t *testing.T) {
	f := newJobFixture(t, nil)
	user := storetest.CreateUser(t, f.db, 100)
	require.NoError(t, f.db.Model(&auth.User{}).Where("id = ?", user.ID).
		Update("status", auth.StatusSuspended).Error)

	_, err := f.jobs.Reserve(context.Background(), user.ID, &model.ReserveRequest{FileCount: 1, Mode: "istock"})
	require.ErrorIs(t, err, balance.ErrAccountNotActive)
	require.Equal(t, int64(100), storetest.Credits(t, f.db, user.ID))
}

func TestReserveUsesLiveRatesAndClientSettings(t *testing.T) {
	f := newJobFixture(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, f.db, 100)

	require.NoError(t, f.settings.Put(ctx, settings.KeyCreditRates, settings.CreditRates{
		IStock: settings.RatePair{Photo: 3, Video: 3},
		Adobe:  settings.RatePair{Photo: 1, Video: 4},
	}))
	require.NoError(t, f.settings.Put(ctx, settings.KeyProcessing, settings.Processing{ImageConcurrency: 8}))
	require.NoError(t, f.settings.Put(ctx, settings.KeyDictionary, settings.WordList{Words: []string{"sunset", "beach"}}))

	resp, err := f.jobs.Reserve(ctx, user.ID, &model.ReserveRequest{
		FileCount: 3, PhotoCount: ptr(1), VideoCount: ptr(2), Mode: "Shutterstock",
	})
	require.NoError(t, err)
	require.Equal(t, int64(9), resp.ReservedCredits)
	require.Equal(t, 1, resp.PhotoRate)
	require.Equal(t, 4, resp.VideoRate)
	require.Equal(t, model.Concurrency{Image: 8, Video: 2}, resp.Concurrency)
	require.Equal(t, 20, resp.CacheThreshold)
	require.Equal(t, []string{"sunset", "beach"}, resp.Dictionary)
	require.Equal(t, []string{}, resp.Blacklist)
	require.Empty(t, resp.Config)

	// Rates are frozen on the job; later changes do not affect settlement.
	require.NoError(t, f.settings.Put(ctx, settings.KeyCreditRates, settings.CreditRates{
		Adobe: settings.RatePair{Photo: 10, Video: 10},
	}))
	out, err := f.jobs.Finalize(ctx, user.ID, &model.FinalizeRequest{
		JobToken: resp.JobToken, Success: 3, Photos: ptr(1), Videos: ptr(2),
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), out.Refunded)
	require.Equal(t, int64(91), out.Balance)
}

func TestReserveSealsSelectedPrompt(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	sealer, err := seal.New(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)

	f := newJobFixture(t, sealer)
	ctx := context.Background()
	user := storetest.CreateUser(t, f.db, 100)
	require.NoError(t, f.settings.Put(ctx, settings.KeyPrompts, settings.Prompts{
		Default: "describe the image",
		Styles:  map[string]string{"istock:hybrid": "istock hybrid keywords"},
	}))

	resp, err := f.jobs.Reserve(ctx, user.ID, &model.ReserveRequest{
		FileCount: 1, Mode: "iStock", KeywordStyle: "Hybrid", Model: "gemini-pro",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Config)

	plain, err := sealer.Open(resp.Config)
	require.NoError(t, err)
	var doc map[string]string
	require.NoError(t, json.Unmarshal(plain, &doc))
	require.Equal(t, "istock hybrid keywords", doc["prompt"])
	require.Equal(t, resp.JobToken, doc["job_token"])
	require.Equal(t, "gemini-pro", doc["model"])
}

func TestSelectPrompt(t *testing.T) {
	p := settings.Prompts{
		Default: "default",
		Modes:   map[string]string{"adobe": "adobe mode"},
		Styles: map[string]string{
			"adobe:single": "adobe single",
			"hybrid":       "any hybrid",
		},
	}
	require.Equal(t, "adobe single", service.SelectPrompt(p, "Adobe Stock", "Single"))
	require.Equal(t, "any hybrid", service.SelectPrompt(p, "Adobe Stock", "hybrid"))
	require.Equal(t, "adobe mode", service.SelectPrompt(p, "shutterstock", ""))
	require.Equal(t, "any hybrid", service.SelectPrompt(p, "iStock", "hybrid"))
	require.Equal(t, "default", service.SelectPrompt(p, "iStock", "single"))
	require.Empty(t, service.SelectPrompt(settings.Prompts{}, "iStock", ""))
}

// ─────────────────────────────────────────────
// Finalize
// ─────────────────────────────────────────────

func TestFinalizeAntiCheatMutatesNothing(t *testing.T) {
	f := newJobFixture(t, nil)
	user := storetest.CreateUser(t, f.db, 100)
	resp := f.reserve(t, user.ID, 5, 0)

	for _, req := range []*model.FinalizeRequest{
		{JobToken: resp.JobToken, Success: 4, Failed: 2},
		{JobToken: resp.JobToken, Success: 6, Failed: 0},
	} {
		_, err := f.jobs.Finalize(context.Background(), user.ID, req)
		require.ErrorIs(t, err, service.ErrAntiCheat)
	}

	_, err := f.jobs.Finalize(context.Background(), user.ID, &model.FinalizeRequest{
		JobToken: resp.JobToken, Success: -1, Failed: 2,
	})
	require.ErrorIs(t, err, service.ErrInvalidCounts)

	require.Equal(t, int64(85), storetest.Credits(t, f.db, user.ID))
	require.Equal(t, model.JobStatusReserved, f.job(t, resp.JobToken).Status)

	// The job can still be settled honestly afterwards.
	out, err := f.jobs.Finalize(context.Background(), user.ID, &model.FinalizeRequest{
		JobToken: resp.JobToken, Success: 4, Failed: 1,
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), out.Refunded)
}

func TestFinalizeUnknownOrForeignToken(t *testing.T) {
	f := newJobFixture(t, nil)
	owner := storetest.CreateUser(t, f.db, 100)
	other := storetest.CreateUser(t, f.db, 100)
	resp := f.reserve(t, owner.ID, 2, 0)

	_, err := f.jobs.Finalize(context.Background(), owner.ID, &model.FinalizeRequest{JobToken: "jt-missing"})
	require.ErrorIs(t, err, service.ErrJobNotFound)

	_, err = f.jobs.Finalize(context.Background(), other.ID, &model.FinalizeRequest{JobToken: resp.JobToken})
	require.ErrorIs(t, err, service.ErrJobNotFound)
	require.Equal(t, model.JobStatusReserved, f.job(t, resp.JobToken).Status)
}

func TestFinalizeCapsUsageAtReservation(t *testing.T) {
	f := newJobFixture(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, f.db, 100)
	require.NoError(t, f.settings.Put(ctx, settings.KeyCreditRates, settings.CreditRates{
		IStock: settings.RatePair{Photo: 5, Video: 1},
	}))

	// Reserved as videos, reported without a breakdown: charged at the
	// photo rate but never more than was reserved.
	resp := f.reserve(t, user.ID, 0, 4)
	require.Equal(t, int64(4), resp.ReservedCredits)

	out, err := f.jobs.Finalize(ctx, user.ID, &model.FinalizeRequest{JobToken: resp.JobToken, Success: 4})
	require.NoError(t, err)
	require.Equal(t, int64(0), out.Refunded)
	require.Equal(t, int64(96), out.Balance)
	require.Equal(t, int64(4), f.job(t, resp.JobToken).ActualUsage)
}

func TestComputeUsage(t *testing.T) {
	job := &model.Job{PhotoRate: 3, VideoRate: 5}
	cases := []struct {
		name            string
		success, failed int
		photos, videos  *int
		want            int64
	}{
		{"no breakdown", 4, 1, nil, nil, 12},
		{"zero breakdown", 4, 1, ptr(0), ptr(0), 12},
		{"all photos", 5, 0, ptr(5), ptr(0), 15},
		{"half rounds up to even", 5, 5, ptr(7), ptr(3), 4*3 + 1*5},
		{"half rounds down to even", 5, 5, ptr(5), ptr(5), 2*3 + 3*5},
		{"half rounds to even two", 1, 1, ptr(1), ptr(1), 0*3 + 1*5},
		{"nothing reported", 0, 0, ptr(3), ptr(2), 0},
		{"photos clamp to success", 2, 0, ptr(9), ptr(0), 6},
		{"only videos given", 2, 0, nil, ptr(2), 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, service.ComputeUsage(job, tc.success, tc.failed, tc.photos, tc.videos))
		})
	}
}

// ─────────────────────────────────────────────
// Expiry and admin refund
// ─────────────────────────────────────────────

func TestReclaimExpiredRefundsInBatches(t *testing.T) {
	f := newJobFixture(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, f.db, 100)

	var tokens []string
	for i := 0; i < 3; i++ {
		resp := f.reserve(t, user.ID, 2, 0)
		f.expire(t, resp.JobToken)
		tokens = append(tokens, resp.JobToken)
	}
	fresh := f.reserve(t, user.ID, 1, 0)
	require.Equal(t, int64(100-18-3), storetest.Credits(t, f.db, user.ID))

	out, err := f.jobs.ReclaimExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, &model.ReclaimResponse{Cleaned: 3, TotalRefunded: 18}, out)
	require.Equal(t, int64(97), storetest.Credits(t, f.db, user.ID))
	require.Equal(t, service.ReasonExpired, f.notes.last().Reason)

	for _, tok := range tokens {
		j := f.job(t, tok)
		require.Equal(t, model.JobStatusExpired, j.Status)
		require.Equal(t, int64(6), j.RefundAmount)
		require.Zero(t, j.ActualUsage)

		_, err := f.jobs.Finalize(ctx, user.ID, &model.FinalizeRequest{JobToken: tok, Success: 2})
		require.ErrorIs(t, err, service.ErrInvalidJobState)
	}
	require.Equal(t, model.JobStatusReserved, f.job(t, fresh.JobToken).Status)

	again, err := f.jobs.ReclaimExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, again.Cleaned)
}

func TestReclaimSkipsSettledJobs(t *testing.T) {
	f := newJobFixture(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, f.db, 100)

	resp := f.reserve(t, user.ID, 5, 0)
	_, err := f.jobs.Finalize(ctx, user.ID, &model.FinalizeRequest{JobToken: resp.JobToken, Success: 5})
	require.NoError(t, err)
	f.expire(t, resp.JobToken)

	out, err := f.jobs.ReclaimExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, out.Cleaned)
	require.Equal(t, int64(85), storetest.Credits(t, f.db, user.ID))
}

func TestFinalizeRacingReclaimerSettlesOnce(t *testing.T) {
	f := newJobFixture(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, f.db, 1000)

	var tokens []string
	for i := 0; i < 8; i++ {
		resp := f.reserve(t, user.ID, 3, 0)
		f.expire(t, resp.JobToken)
		tokens = append(tokens, resp.JobToken)
	}

	var (
		wg         sync.WaitGroup
		reclaimErr error
	)
	finalizeErrs := make([]error, len(tokens))
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, reclaimErr = f.jobs.ReclaimExpired(ctx)
	}()
	for i, tok := range tokens {
		wg.Add(1)
		go func(i int, tok string) {
			defer wg.Done()
			_, finalizeErrs[i] = f.jobs.Finalize(ctx, user.ID, &model.FinalizeRequest{JobToken: tok, Success: 2, Failed: 1})
		}(i, tok)
	}
	wg.Wait()

	require.NoError(t, reclaimErr)
	for _, err := range finalizeErrs {
		if err != nil {
			require.ErrorIs(t, err, service.ErrInvalidJobState)
		}
	}

	var used int64
	for _, tok := range tokens {
		j := f.job(t, tok)
		require.Contains(t, []model.JobStatus{model.JobStatusCompleted, model.JobStatusExpired}, j.Status)
		require.Equal(t, j.ReservedCredits, j.ActualUsage+j.RefundAmount)
		used += j.ActualUsage
	}

	var refunds int64
	require.NoError(t, f.db.Model(&balance.Transaction{}).
		Where("user_id = ? AND type = ?", user.ID, balance.TxRefund).Count(&refunds).Error)
	require.Equal(t, int64(len(tokens)), refunds)
	require.Equal(t, int64(1000)-used, storetest.Credits(t, f.db, user.ID))
}

func TestAdminRefund(t *testing.T) {
	f := newJobFixture(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, f.db, 100)
	resp := f.reserve(t, user.ID, 7, 3)

	job, err := f.jobs.AdminRefund(ctx, resp.JobToken)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusRefunded, job.Status)
	require.Equal(t, int64(30), job.RefundAmount)
	require.Equal(t, int64(100), storetest.Credits(t, f.db, user.ID))
	require.Equal(t, service.ReasonAdmin, f.notes.last().Reason)

	_, err = f.jobs.AdminRefund(ctx, resp.JobToken)
	require.ErrorIs(t, err, service.ErrInvalidJobState)
	_, err = f.jobs.AdminRefund(ctx, "jt-missing")
	require.ErrorIs(t, err, service.ErrJobNotFound)

	out, err := f.jobs.Finalize(ctx, user.ID, &model.FinalizeRequest{JobToken: resp.JobToken, Success: 10})
	require.NoError(t, err)
	require.Equal(t, &model.FinalizeResponse{Refunded: 30, Balance: 100}, out)
}

// ─────────────────────────────────────────────
// Ledger invariants
// ─────────────────────────────────────────────

func TestBalanceConservedAcrossOperations(t *testing.T) {
	f := newJobFixture(t, nil)
	ctx := context.Background()
	const start = 500
	user := storetest.CreateUser(t, f.db, start)

	outcomes := []struct {
		photos, videos  int
		success, failed int
	}{
		{5, 0, 5, 0},
		{3, 4, 2, 5},
		{1, 1, 0, 0},
		{10, 0, 3, 2},
		{0, 6, 6, 0},
		{2, 2, 1, 3},
	}
	var tokens []string
	for _, o := range outcomes {
		resp := f.reserve(t, user.ID, o.photos, o.videos)
		tokens = append(tokens, resp.JobToken)
		out, err := f.jobs.Finalize(ctx, user.ID, &model.FinalizeRequest{
			JobToken: resp.JobToken, Success: o.success, Failed: o.failed,
			Photos: ptr(o.photos), Videos: ptr(o.videos),
		})
		require.NoError(t, err)
		require.GreaterOrEqual(t, out.Refunded, int64(0))
		require.LessOrEqual(t, out.Refunded, resp.ReservedCredits)
	}

	var used int64
	for _, tok := range tokens {
		used += f.job(t, tok).ActualUsage
	}
	require.Equal(t, int64(start), storetest.Credits(t, f.db, user.ID)+used)

	jobs, err := f.jobs.History(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, jobs, len(outcomes))
}
