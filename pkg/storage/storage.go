// Package storage is the single point of access to persisted entities.
// Lookups that find nothing return a nil result and a nil error; every other
// failure wraps ErrStorage.
package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/gommon/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"profilehub/models"
)

// ErrStorage marks connectivity and constraint failures.
var ErrStorage = errors.New("storage failure")

type Gateway struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

// DB exposes the handle for tooling that needs raw access (migrations, sweeps).
func (g *Gateway) DB() *gorm.DB { return g.db }

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isUniqueViolation recognises postgres 23505 and falls back to message
// matching for other drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "UNIQUE constraint") || strings.Contains(s, "unique constraint")
}

// Migrate creates or updates the schema. Each model is migrated on its own so
// a failure on one does not block the rest.
func Migrate(db *gorm.DB) error {
	var failed []string
	for _, m := range []struct {
		name  string
		model interface{}
	}{
		{"users", &models.User{}},
		{"profiles", &models.Profile{}},
		{"profile_photos", &models.ProfilePhoto{}},
		{"comments", &models.Comment{}},
		{"cities", &models.City{}},
		{"reports", &models.Report{}},
	} {
		if err := db.AutoMigrate(m.model); err != nil {
			log.Warnf("migration warning (%s): %v", m.name, err)
			failed = append(failed, m.name)
		}
	}
	if db.Dialector.Name() == "postgres" {
		if err := ensurePartialIndexes(db); err != nil {
			log.Warnf("migration warning (partial indexes): %v", err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("migration failed for: %s", strings.Join(failed, ", "))
	}
	return nil
}

// ensurePartialIndexes backs the one-draft-per-user and one-live-comment
// rules with unique indexes so concurrent processes cannot break them.
func ensurePartialIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_profiles_one_draft ON profiles(user_id) WHERE status = 'draft'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_comments_live ON comments(profile_id, user_id) WHERE status <> 'removed'`,
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return err
		}
	}
	return nil
}

// OpenPostgres connects with error translation on so unique violations
// surface as gorm.ErrDuplicatedKey.
func OpenPostgres(dsn string, verbose bool) (*gorm.DB, error) {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres database: %w", err)
	}
	return db, nil
}
