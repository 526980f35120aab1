// Package reclaimer runs the periodic expiry sweep. A Redis mutex keeps
// concurrent server instances from sweeping at the same time; the sweep
// itself is safe to overlap, so the lock only saves wasted work.
package reclaimer

import (
	"context"
	"fmt"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/config"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/model"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const lockName = "reclaimer:lock"

// Sweeper refunds expired reservations.
type Sweeper interface {
	ReclaimExpired(ctx context.Context) (*model.ReclaimResponse, error)
}

// PromoExpirer retires promotions whose end date has passed.
type PromoExpirer interface {
	ExpireEnded(ctx context.Context, now time.Time) (int64, error)
}

// Reclaimer schedules the sweep.
type Reclaimer struct {
	cron    *cron.Cron
	jobs    Sweeper
	promos  PromoExpirer
	mutex   *redsync.Mutex // nil without Redis
	timeout time.Duration
	log     zerolog.Logger
}

// New builds a Reclaimer on cfg.ReclaimCron (six fields, seconds first).
// rdb and promos may be nil.
func New(jobs Sweeper, promos PromoExpirer, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) (*Reclaimer, error) {
	log = log.With().Str("component", "reclaimer").Logger()
	clog := cronLogger{log}

	r := &Reclaimer{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		jobs:    jobs,
		promos:  promos,
		timeout: cfg.ReclaimLockTTL,
		log:     log,
	}
	if r.timeout <= 0 {
		r.timeout = 50 * time.Second
	}
	if rdb != nil {
		rs := redsync.New(goredis.NewPool(rdb))
		r.mutex = rs.NewMutex(lockName,
			redsync.WithExpiry(r.timeout),
			redsync.WithTries(1),
		)
	}

	if _, err := r.cron.AddFunc(cfg.ReclaimCron, r.tick); err != nil {
		return nil, fmt.Errorf("reclaim schedule %q: %w", cfg.ReclaimCron, err)
	}
	return r, nil
}

// Start begins running the schedule in the background.
func (r *Reclaimer) Start() {
	r.cron.Start()
	r.log.Info().Msg("reclaimer started")
}

// Stop halts the schedule. The returned context is done once a sweep in
// flight has finished.
func (r *Reclaimer) Stop() context.Context {
	return r.cron.Stop()
}

func (r *Reclaimer) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, _, err := r.RunOnce(ctx); err != nil {
		r.log.Error().Err(err).Msg("reclaim sweep failed")
	}
}

// RunOnce takes the lock and runs one sweep. ran is false when another
// instance holds the lock.
func (r *Reclaimer) RunOnce(ctx context.Context) (res *model.ReclaimResponse, ran bool, err error) {
	if r.mutex != nil {
		if err := r.mutex.TryLockContext(ctx); err != nil {
			r.log.Debug().Err(err).Msg("sweep lock held elsewhere, skipping")
			return nil, false, nil
		}
		defer func() {
			if ok, uerr := r.mutex.UnlockContext(context.Background()); !ok || uerr != nil {
				r.log.Warn().Err(uerr).Msg("release sweep lock")
			}
		}()
	}

	if r.promos != nil {
		if _, err := r.promos.ExpireEnded(ctx, time.Now()); err != nil {
			r.log.Error().Err(err).Msg("expire ended promotions")
		}
	}

	res, err = r.jobs.ReclaimExpired(ctx)
	if err != nil {
		return res, true, fmt.Errorf("reclaim expired jobs: %w", err)
	}
	return res, true, nil
}

// ─────────────────────────────────────────────
// cron.Logger backed by zerolog
// ─────────────────────────────────────────────

type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
