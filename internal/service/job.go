package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/auth"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/balance"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/config"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/metrics"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/model"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/rates"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/seal"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/settings"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultReclaimBatch = 100
	maxHistory          = 100
)

// JobService owns the reserve → finalize lifecycle and the expiry sweep.
//
// Every balance or job-status mutation runs in one transaction that
// row-locks what it touches; job transitions are additionally guarded by
// a compare-and-set on the pending statuses. Side effects (push, metrics,
// audit events) run after commit and never fail the call.
type JobService struct {
	store    *store.Store
	db       *gorm.DB
	rates    *rates.Resolver
	settings settings.Reader
	sealer   *seal.Sealer
	notifier Notifier
	metrics  *metrics.Metrics

	jobTTL     time.Duration
	batch      int
	processing settings.Processing
	log        zerolog.Logger
}

// NewJobService creates the service. sealer, notifier and m may be nil.
func NewJobService(
	st *store.Store,
	resolver *rates.Resolver,
	reader settings.Reader,
	sealer *seal.Sealer,
	notifier Notifier,
	m *metrics.Metrics,
	cfg *config.Config,
	log zerolog.Logger,
) *JobService {
	batch := cfg.ReclaimBatch
	if batch <= 0 {
		batch = defaultReclaimBatch
	}
	return &JobService{
		store:      st,
		db:         st.DB(),
		rates:      resolver,
		settings:   reader,
		sealer:     sealer,
		notifier:   orNop(notifier),
		metrics:    m,
		jobTTL:     cfg.JobTTL,
		batch:      batch,
		processing: settings.DefaultProcessing(cfg),
		log:        log.With().Str("component", "jobs").Logger(),
	}
}

// ─────────────────────────────────────────────
// Reserve
// ─────────────────────────────────────────────

// Reserve debits the estimated cost of a batch and opens a job for it.
//
//  1. Validate counts and resolve the mode's rates
//  2. Lock the user, check status and balance, debit, insert the job
//  3. After commit: seal the prompt, attach client config, notify
//
// userID is injected by the auth middleware (not from the request body).
func (s *JobService) Reserve(ctx context.Context, userID string, req *model.ReserveRequest) (*model.ReserveResponse, error) {
	photos, videos, err := splitCounts(req)
	if err != nil {
		s.metrics.Reserve("invalid", 0)
		return nil, err
	}

	// ── Step 1: Price the batch ──
	r := s.rates.Resolve(ctx, req.Mode)
	cost := int64(photos)*int64(r.Photo) + int64(videos)*int64(r.Video)

	now := time.Now()
	job := &model.Job{
		ID:              uuid.NewString(),
		JobToken:        newJobToken(),
		UserID:          userID,
		Status:          model.JobStatusReserved,
		Mode:            req.Mode,
		KeywordStyle:    req.KeywordStyle,
		Model:           req.Model,
		AppVersion:      req.Version,
		FileCount:       req.FileCount,
		PhotoCount:      photos,
		VideoCount:      videos,
		PhotoRate:       r.Photo,
		VideoRate:       r.Video,
		ReservedCredits: cost,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.jobTTL),
	}

	// ── Step 2: Debit and record atomically ──
	var balanceAfter int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := balance.LockActiveUser(tx, userID)
		if err != nil {
			return err
		}
		if user.Credits < cost {
			return &balance.InsufficientCreditsError{Required: cost, Available: user.Credits}
		}
		if _, err := balance.Apply(tx, user, balance.Entry{
			Type:        balance.TxReserve,
			Amount:      -cost,
			ReferenceID: job.JobToken,
			Description: fmt.Sprintf("reserve %d files (%s)", req.FileCount, req.Mode),
		}); err != nil {
			return err
		}
		if err := tx.Model(&auth.User{}).Where("id = ?", userID).
			UpdateColumn("last_active", now).Error; err != nil {
			return fmt.Errorf("stamp last_active: %w", err)
		}
		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		balanceAfter = user.Credits
		return nil
	})
	if err != nil {
		s.metrics.Reserve(reserveResult(err), 0)
		return nil, err
	}

	// ── Step 3: Best-effort extras ──
	resp := &model.ReserveResponse{
		JobToken:        job.JobToken,
		ReservedCredits: cost,
		PhotoRate:       r.Photo,
		VideoRate:       r.Video,
		Balance:         balanceAfter,
	}
	s.attachClientConfig(ctx, resp, job)

	s.notifier.NotifyBalance(userID, balanceAfter, ReasonReserve, job.JobToken)
	s.metrics.Reserve("ok", cost)
	s.store.LogJobEvent(model.JobEvent{
		JobToken: job.JobToken,
		UserID:   userID,
		Type:     model.JobEventReserved,
		Credits:  cost,
		Detail:   fmt.Sprintf("photos=%d videos=%d", photos, videos),
	})

	s.log.Info().Str("user_id", userID).Str("job_token", job.JobToken).
		Int64("cost", cost).Int64("balance", balanceAfter).Msg("job reserved")
	return resp, nil
}

// splitCounts returns the photo/video split of a reservation. Without a
// breakdown the whole batch is charged as photos.
func splitCounts(req *model.ReserveRequest) (int, int, error) {
	if req.FileCount < 1 {
		return 0, 0, validationErrorf("file_count must be at least 1")
	}
	if req.PhotoCount == nil && req.VideoCount == nil {
		return req.FileCount, 0, nil
	}

	var photos, videos int
	if req.PhotoCount != nil {
		photos = *req.PhotoCount
	}
	if req.VideoCount != nil {
		videos = *req.VideoCount
	}
	if photos < 0 || videos < 0 {
		return 0, 0, validationErrorf("photo_count and video_count must not be negative")
	}
	if photos+videos != req.FileCount {
		return 0, 0, validationErrorf("photo_count + video_count (%d) must equal file_count (%d)",
			photos+videos, req.FileCount)
	}
	return photos, videos, nil
}

func reserveResult(err error) string {
	var insufficient *balance.InsufficientCreditsError
	switch {
	case errors.As(err, &insufficient):
		return "insufficient"
	case errors.Is(err, balance.ErrAccountNotActive):
		return "inactive"
	default:
		return "error"
	}
}

// newJobToken returns an opaque token like "jt-<48 hex chars>".
func newJobToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "jt-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return "jt-" + hex.EncodeToString(b)
}

// sealedConfig is the document the desktop client decrypts.
type sealedConfig struct {
	JobToken     string `json:"job_token"`
	Mode         string `json:"mode"`
	KeywordStyle string `json:"keyword_style,omitempty"`
	Model        string `json:"model,omitempty"`
	Prompt       string `json:"prompt"`
}

// attachClientConfig fills in everything the client needs besides the
// debit itself. Nothing here can fail the reservation.
func (s *JobService) attachClientConfig(ctx context.Context, resp *model.ReserveResponse, job *model.Job) {
	proc := s.processing
	var live settings.Processing
	if err := s.settings.Get(ctx, settings.KeyProcessing, &live); err == nil {
		if live.ImageConcurrency > 0 {
			proc.ImageConcurrency = live.ImageConcurrency
		}
		if live.VideoConcurrency > 0 {
			proc.VideoConcurrency = live.VideoConcurrency
		}
		if live.CacheThreshold > 0 {
			proc.CacheThreshold = live.CacheThreshold
		}
	} else if !errors.Is(err, settings.ErrNotFound) {
		s.log.Warn().Err(err).Msg("processing settings unavailable, using defaults")
	}
	resp.Concurrency = model.Concurrency{Image: proc.ImageConcurrency, Video: proc.VideoConcurrency}
	resp.CacheThreshold = proc.CacheThreshold

	resp.Dictionary = s.wordList(ctx, settings.KeyDictionary)
	resp.Blacklist = s.wordList(ctx, settings.KeyBlacklist)

	if s.sealer == nil {
		return
	}
	var prompts settings.Prompts
	if err := s.settings.Get(ctx, settings.KeyPrompts, &prompts); err != nil {
		s.log.Warn().Err(err).Str("job_token", job.JobToken).Msg("prompts unavailable, sending empty config")
		return
	}
	prompt := SelectPrompt(prompts, job.Mode, job.KeywordStyle)
	if prompt == "" {
		return
	}
	plain, err := json.Marshal(sealedConfig{
		JobToken:     job.JobToken,
		Mode:         job.Mode,
		KeywordStyle: job.KeywordStyle,
		Model:        job.Model,
		Prompt:       prompt,
	})
	if err != nil {
		s.log.Error().Err(err).Str("job_token", job.JobToken).Msg("marshal client config")
		return
	}
	sealed, err := s.sealer.Seal(plain)
	if err != nil {
		s.log.Error().Err(err).Str("job_token", job.JobToken).Msg("seal client config")
		return
	}
	resp.Config = sealed
}

func (s *JobService) wordList(ctx context.Context, key string) []string {
	var doc settings.WordList
	if err := s.settings.Get(ctx, key, &doc); err != nil {
		if !errors.Is(err, settings.ErrNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("word list unavailable")
		}
		return []string{}
	}
	if doc.Words == nil {
		return []string{}
	}
	return doc.Words
}

// SelectPrompt picks the prompt for a mode and keyword style, most
// specific first: "<platform>:<style>", then style, then platform, then
// the default.
func SelectPrompt(p settings.Prompts, mode, style string) string {
	platform := rates.KeyFor(mode)
	style = strings.ToLower(strings.TrimSpace(style))
	if style != "" {
		if v := p.Styles[platform+":"+style]; v != "" {
			return v
		}
		if v := p.Styles[style]; v != "" {
			return v
		}
	}
	if v := p.Modes[platform]; v != "" {
		return v
	}
	return p.Default
}

// ─────────────────────────────────────────────
// Finalize
// ─────────────────────────────────────────────

// Finalize settles a job against the client-reported outcome and refunds
// the unused part of the reservation. A settled job replays its stored
// result whatever the arguments, so retries are safe.
func (s *JobService) Finalize(ctx context.Context, userID string, req *model.FinalizeRequest) (*model.FinalizeResponse, error) {
	// ── Step 1: Lookup, scoped to the caller ──
	job, err := s.findJob(ctx, s.db, req.JobToken, userID)
	if err != nil {
		return nil, err
	}

	// ── Step 2: Idempotent replay ──
	if job.Status.IsSettled() {
		return s.replay(ctx, job)
	}
	if !job.Status.IsPending() {
		return nil, ErrInvalidJobState
	}

	// ── Step 3: Validate and apply the anti-cheat bound ──
	if req.Success < 0 || req.Failed < 0 ||
		(req.Photos != nil && *req.Photos < 0) || (req.Videos != nil && *req.Videos < 0) {
		return nil, ErrInvalidCounts
	}
	if req.Success+req.Failed > job.FileCount || req.Success > job.FileCount {
		s.metrics.Finalize("anti_cheat", 0, 0)
		s.store.LogJobEvent(model.JobEvent{
			JobToken: job.JobToken,
			UserID:   userID,
			Type:     model.JobEventAntiCheatRejected,
			Success:  req.Success,
			Failed:   req.Failed,
			Detail:   fmt.Sprintf("file_count=%d", job.FileCount),
		})
		s.log.Warn().Str("user_id", userID).Str("job_token", job.JobToken).
			Int("success", req.Success).Int("failed", req.Failed).Int("file_count", job.FileCount).
			Msg("finalize rejected by anti-cheat bound")
		return nil, ErrAntiCheat
	}

	// ── Step 4: Compute usage from the rates frozen at reservation ──
	actual := ComputeUsage(job, req.Success, req.Failed, req.Photos, req.Videos)
	refund := job.ReservedCredits - actual
	if refund < 0 {
		refund = 0
	}
	if refund > job.ReservedCredits {
		refund = job.ReservedCredits
	}
	actual = job.ReservedCredits - refund

	// ── Step 5: Settle atomically ──
	var out model.FinalizeResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockJob(tx, job.ID)
		if err != nil {
			return err
		}
		if !locked.Status.IsPending() {
			return errLostRace
		}

		now := time.Now()
		res := tx.Model(&model.Job{}).
			Where("id = ? AND status IN ?", job.ID, model.PendingStatuses).
			Updates(map[string]interface{}{
				"status":        model.JobStatusCompleted,
				"success_count": req.Success,
				"failed_count":  req.Failed,
				"actual_usage":  actual,
				"refund_amount": refund,
				"completed_at":  now,
			})
		if res.Error != nil {
			return fmt.Errorf("complete job: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errLostRace
		}

		user, err := balance.LockUser(tx, userID)
		if err != nil {
			return err
		}
		if refund > 0 {
			if _, err := balance.Apply(tx, user, balance.Entry{
				Type:        balance.TxRefund,
				Amount:      refund,
				ReferenceID: job.JobToken,
				Description: fmt.Sprintf("refund %d/%d files unused", req.Failed, job.FileCount),
			}); err != nil {
				return err
			}
		}
		if actual > 0 {
			if err := tx.Model(&auth.User{}).Where("id = ?", userID).
				UpdateColumn("total_credits_used", gorm.Expr("total_credits_used + ?", actual)).Error; err != nil {
				return fmt.Errorf("update total_credits_used: %w", err)
			}
		}
		out = model.FinalizeResponse{Refunded: refund, Balance: user.Credits}
		return nil
	})
	if errors.Is(err, errLostRace) {
		// Someone settled the job between lookup and lock; report their outcome.
		current, ferr := s.findJob(ctx, s.db, job.JobToken, userID)
		if ferr != nil {
			return nil, ferr
		}
		if current.Status.IsSettled() {
			return s.replay(ctx, current)
		}
		return nil, ErrInvalidJobState
	}
	if err != nil {
		s.metrics.Finalize("error", 0, 0)
		return nil, err
	}

	// ── Step 6: Side effects ──
	s.notifier.NotifyBalance(userID, out.Balance, ReasonRefund, job.JobToken)
	s.metrics.Finalize("completed", actual, refund)
	s.store.LogJobEvent(model.JobEvent{
		JobToken: job.JobToken,
		UserID:   userID,
		Type:     model.JobEventFinalized,
		Success:  req.Success,
		Failed:   req.Failed,
		Credits:  refund,
		Detail:   fmt.Sprintf("actual=%d", actual),
	})

	s.log.Info().Str("user_id", userID).Str("job_token", job.JobToken).
		Int64("actual", actual).Int64("refunded", refund).Msg("job finalized")
	return &out, nil
}

func (s *JobService) replay(ctx context.Context, job *model.Job) (*model.FinalizeResponse, error) {
	var user auth.User
	err := s.db.WithContext(ctx).Select("credits").Where("id = ?", job.UserID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, balance.ErrUserNotFound
		}
		return nil, err
	}
	s.metrics.Finalize("replayed", 0, 0)
	s.store.LogJobEvent(model.JobEvent{
		JobToken: job.JobToken,
		UserID:   job.UserID,
		Type:     model.JobEventReplayed,
		Credits:  job.RefundAmount,
	})
	return &model.FinalizeResponse{Refunded: job.RefundAmount, Balance: user.Credits}, nil
}

// ComputeUsage returns the credits a job consumed. With a photo/video
// breakdown the successes are apportioned to photos by
// photos*success/(success+failed), rounded half to even and clamped to
// [0, success]; the rest count as videos. Without one every success is
// charged at the photo rate.
func ComputeUsage(job *model.Job, success, failed int, photos, videos *int) int64 {
	var p, v int
	if photos != nil {
		p = *photos
	}
	if videos != nil {
		v = *videos
	}
	if (photos == nil && videos == nil) || p+v <= 0 {
		return int64(success) * int64(job.PhotoRate)
	}

	total := success + failed
	if total == 0 {
		return 0
	}
	sp := roundHalfEven(int64(p)*int64(success), int64(total))
	if sp < 0 {
		sp = 0
	}
	if sp > int64(success) {
		sp = int64(success)
	}
	sv := int64(success) - sp
	return sp*int64(job.PhotoRate) + sv*int64(job.VideoRate)
}

// roundHalfEven divides num by den (both non-negative, den > 0) with
// banker's rounding.
func roundHalfEven(num, den int64) int64 {
	q, r := num/den, num%den
	switch {
	case 2*r > den:
		return q + 1
	case 2*r == den && q%2 == 1:
		return q + 1
	default:
		return q
	}
}

// ─────────────────────────────────────────────
// Expiry sweep and admin refund
// ─────────────────────────────────────────────

// ReclaimExpired refunds every pending job past its expiry, one
// transaction per job. Jobs settled concurrently are skipped. A failure
// on one job is logged and does not stop the sweep.
func (s *JobService) ReclaimExpired(ctx context.Context) (*model.ReclaimResponse, error) {
	now := time.Now()
	out := &model.ReclaimResponse{}

	cursor := ""
	for {
		var batch []model.Job
		err := s.db.WithContext(ctx).
			Where("status IN ? AND expires_at < ? AND id > ?", model.PendingStatuses, now, cursor).
			Order("id ASC").
			Limit(s.batch).
			Find(&batch).Error
		if err != nil {
			return out, fmt.Errorf("scan expired jobs: %w", err)
		}

		for i := range batch {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			refunded, ok, err := s.expireJob(ctx, batch[i].ID, now)
			if err != nil {
				s.log.Error().Err(err).Str("job_token", batch[i].JobToken).Msg("reclaim job")
				continue
			}
			if ok {
				out.Cleaned++
				out.TotalRefunded += refunded
			}
		}

		if len(batch) < s.batch {
			break
		}
		cursor = batch[len(batch)-1].ID
	}

	s.metrics.Reclaim(out.Cleaned, out.TotalRefunded)
	if out.Cleaned > 0 {
		s.log.Info().Int("cleaned", out.Cleaned).Int64("total_refunded", out.TotalRefunded).
			Msg("expired jobs reclaimed")
	}
	return out, nil
}

// expireJob moves one job to EXPIRED and refunds its full reservation.
// ok is false when the job was no longer pending.
func (s *JobService) expireJob(ctx context.Context, jobID string, now time.Time) (int64, bool, error) {
	var (
		job          *model.Job
		balanceAfter int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockJob(tx, jobID)
		if err != nil {
			return err
		}
		if !locked.Status.IsPending() || !locked.ExpiresAt.Before(now) {
			return errLostRace
		}
		balanceAfter, err = s.refundWhole(tx, locked, model.JobStatusExpired, now, "reservation expired")
		job = locked
		return err
	})
	if errors.Is(err, errLostRace) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	s.notifier.NotifyBalance(job.UserID, balanceAfter, ReasonExpired, job.JobToken)
	s.store.LogJobEvent(model.JobEvent{
		JobToken: job.JobToken,
		UserID:   job.UserID,
		Type:     model.JobEventExpired,
		Credits:  job.ReservedCredits,
	})
	return job.ReservedCredits, true, nil
}

// AdminRefund force-settles a pending job as REFUNDED and returns the
// whole reservation to its owner.
func (s *JobService) AdminRefund(ctx context.Context, jobToken string) (*model.Job, error) {
	var (
		job          *model.Job
		balanceAfter int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.findJob(ctx, tx, jobToken, "")
		if err != nil {
			return err
		}
		locked, err := lockJob(tx, found.ID)
		if err != nil {
			return err
		}
		if !locked.Status.IsPending() {
			return ErrInvalidJobState
		}
		now := time.Now()
		balanceAfter, err = s.refundWhole(tx, locked, model.JobStatusRefunded, now, "refunded by admin")
		if err != nil {
			return err
		}
		locked.Status = model.JobStatusRefunded
		locked.RefundAmount = locked.ReservedCredits
		locked.ActualUsage = 0
		locked.CompletedAt = &now
		job = locked
		return nil
	})
	if errors.Is(err, errLostRace) {
		return nil, ErrInvalidJobState
	}
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyBalance(job.UserID, balanceAfter, ReasonAdmin, job.JobToken)
	s.metrics.AdminRefund(job.ReservedCredits)
	s.store.LogJobEvent(model.JobEvent{
		JobToken: job.JobToken,
		UserID:   job.UserID,
		Type:     model.JobEventAdminRefunded,
		Credits:  job.ReservedCredits,
	})
	s.log.Info().Str("job_token", job.JobToken).Int64("refunded", job.ReservedCredits).Msg("job refunded by admin")
	return job, nil
}

// refundWhole transitions a locked pending job to status with nothing
// used, credits its owner and returns the new balance.
func (s *JobService) refundWhole(tx *gorm.DB, job *model.Job, status model.JobStatus, now time.Time, why string) (int64, error) {
	res := tx.Model(&model.Job{}).
		Where("id = ? AND status IN ?", job.ID, model.PendingStatuses).
		Updates(map[string]interface{}{
			"status":        status,
			"actual_usage":  0,
			"refund_amount": job.ReservedCredits,
			"completed_at":  now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("settle job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, errLostRace
	}

	user, err := balance.LockUser(tx, job.UserID)
	if err != nil {
		return 0, err
	}
	if job.ReservedCredits > 0 {
		if _, err := balance.Apply(tx, user, balance.Entry{
			Type:        balance.TxRefund,
			Amount:      job.ReservedCredits,
			ReferenceID: job.JobToken,
			Description: why,
		}); err != nil {
			return 0, err
		}
	}
	return user.Credits, nil
}

// ─────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────

// History returns the user's most recent jobs, newest first.
func (s *JobService) History(ctx context.Context, userID string, limit int) ([]model.Job, error) {
	if limit < 1 || limit > maxHistory {
		limit = 20
	}
	var jobs []model.Job
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// Events returns a job's audit trail. Only the owner may read it; an
// empty userID skips the ownership check.
func (s *JobService) Events(ctx context.Context, jobToken, userID string) ([]model.JobEvent, error) {
	if _, err := s.findJob(ctx, s.db, jobToken, userID); err != nil {
		return nil, err
	}
	return s.store.JobEvents(jobToken)
}

// findJob loads a job by token. A non-empty userID scopes the lookup to
// that owner, so another user's token is indistinguishable from a miss.
func (s *JobService) findJob(ctx context.Context, db *gorm.DB, jobToken, userID string) (*model.Job, error) {
	if jobToken == "" {
		return nil, ErrJobNotFound
	}
	q := db.WithContext(ctx).Where("job_token = ?", jobToken)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var job model.Job
	if err := q.First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func lockJob(tx *gorm.DB, id string) (*model.Job, error) {
	var job model.Job
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}
