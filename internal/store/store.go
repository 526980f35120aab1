package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/auth"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/balance"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/config"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/model"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/promo"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/settings"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/slip"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const eventBufSize = 1024

// Store owns the GORM handle and the async audit writer.
type Store struct {
	db    *gorm.DB
	log   zerolog.Logger
	logCh chan func() // buffered channel for async writes
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// DSN builds the PostgreSQL connection string from config.
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
}

// Open connects to PostgreSQL and configures the pool.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates or updates every table the server owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&auth.User{},
		&balance.Transaction{},
		&model.Job{},
		&model.JobEvent{},
		&promo.Promotion{},
		&promo.Redemption{},
		&slip.Slip{},
		&settings.Setting{},
	)
}

// New migrates the schema and starts the background event writer.
func New(db *gorm.DB, log zerolog.Logger) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{
		db:    db,
		log:   log.With().Str("component", "store").Logger(),
		logCh: make(chan func(), eventBufSize),
		done:  make(chan struct{}),
	}

	go s.writeWorker()

	return s, nil
}

func (s *Store) writeWorker() {
	defer close(s.done)
	for fn := range s.logCh {
		fn()
	}
}

// DB returns the underlying GORM database instance.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close stops accepting events and waits for queued ones to be written.
func (s *Store) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.logCh)
	}
	s.mu.Unlock()
	<-s.done
}

// ─────────────────────────────────────────────
// Async write helpers
// ─────────────────────────────────────────────

// LogJobEvent queues an audit record. It never blocks the caller: when
// the buffer is full the event is dropped and a warning is logged.
func (s *Store) LogJobEvent(ev model.JobEvent) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	fn := func() {
		if err := s.db.Create(&ev).Error; err != nil {
			s.log.Error().Err(err).Str("job_token", ev.JobToken).Str("type", string(ev.Type)).
				Msg("write job event")
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Warn().Str("job_token", ev.JobToken).Msg("store closed, job event dropped")
		return
	}

	select {
	case s.logCh <- fn:
	default:
		s.log.Warn().Str("job_token", ev.JobToken).Str("type", string(ev.Type)).
			Msg("event buffer full, dropping job event")
	}
}

// JobEvents returns the audit trail for one job, oldest first.
func (s *Store) JobEvents(jobToken string) ([]model.JobEvent, error) {
	var events []model.JobEvent
	err := s.db.Where("job_token = ?", jobToken).Order("id ASC").Find(&events).Error
	return events, err
}
