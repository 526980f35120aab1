package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const cachePrefix = "settings:"

// Store reads and writes settings documents. Reads go through Redis
// when a client is configured; a cache failure falls through to the
// database and is only logged.
type Store struct {
	db  *gorm.DB
	rdb *redis.Client // optional
	ttl time.Duration
	log zerolog.Logger
}

// NewStore creates a settings Store. rdb may be nil.
func NewStore(db *gorm.DB, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "settings").Logger(),
	}
}

// Get decodes the document under key into dst.
func (s *Store) Get(ctx context.Context, key string, dst interface{}) error {
	raw, err := s.raw(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) raw(ctx context.Context, key string) ([]byte, error) {
	if s.rdb != nil {
		b, err := s.rdb.Get(ctx, cachePrefix+key).Bytes()
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("settings cache read failed")
		}
	}

	var row Setting
	if err := s.db.WithContext(ctx).Where(&Setting{Key: key}).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, cachePrefix+key, []byte(row.Value), s.ttl).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("settings cache write failed")
		}
	}
	return row.Value, nil
}

// Put stores a document and drops its cached copy.
func (s *Store) Put(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}

	row := Setting{Key: key, Value: datatypes.JSON(b), UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return err
	}

	s.invalidate(ctx, key)
	return nil
}

// Seed inserts the given documents for keys that do not exist yet.
// Values already edited by an admin are left alone.
func (s *Store) Seed(ctx context.Context, docs map[string]interface{}) error {
	for key, v := range docs {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode setting %q: %w", key, err)
		}
		row := Setting{Key: key, Value: datatypes.JSON(b), UpdatedAt: time.Now()}
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("seed setting %q: %w", key, res.Error)
		}
		if res.RowsAffected > 0 {
			s.log.Info().Str("key", key).Msg("seeded setting")
		}
	}
	return nil
}

// All returns every stored setting, for the admin view.
func (s *Store) All(ctx context.Context) ([]Setting, error) {
	var rows []Setting
	err := s.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).
		Find(&rows).Error
	return rows, err
}

func (s *Store) invalidate(ctx context.Context, key string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, cachePrefix+key).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("settings cache invalidate failed")
	}
}

// ─────────────────────────────────────────────
// Seed file
// ─────────────────────────────────────────────

// LoadSeedFile reads a YAML file whose top-level keys are setting keys
// and whose values are the documents, e.g.
//
//	credit_rates:
//	  istock: {photo: 3, video: 3}
//	  adobe:  {photo: 2, video: 2}
func LoadSeedFile(path string) (map[string]interface{}, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	docs := make(map[string]interface{})
	if err := yaml.Unmarshal(b, &docs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return docs, nil
}
