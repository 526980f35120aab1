// Package storetest opens throwaway SQLite databases for package tests.
package storetest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/auth"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory database private to the test.
//
// The pool is pinned to a single connection: SQLite ignores FOR UPDATE,
// so serialising connections is what makes concurrent transactions in
// tests behave like row-locked ones in PostgreSQL.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, store.Migrate(db))
	return db
}

// NewStore wraps NewDB in a Store with a running event writer.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(NewDB(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

// CreateUser inserts an active user holding the given credits.
func CreateUser(t *testing.T, db *gorm.DB, credits int64) *auth.User {
	t.Helper()
	now := time.Now()
	u := &auth.User{
		ID:        uuid.NewString(),
		Email:     uuid.NewString() + "@example.com",
		Credits:   credits,
		Status:    auth.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Credits reads the user's balance straight from the table.
func Credits(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var u auth.User
	require.NoError(t, db.Select("credits").Where("id = ?", userID).First(&u).Error)
	return u.Credits
}
