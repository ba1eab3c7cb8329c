// Package storagetest opens throwaway sqlite databases for tests.
package storagetest

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"profilehub/models"
	"profilehub/pkg/storage"
)

// Open returns a migrated gateway over a file-backed sqlite database in t's
// temp dir. A single connection keeps sqlite from reporting lock errors.
func Open(t *testing.T) *storage.Gateway {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return storage.New(db)
}

// User inserts a user row and fails the test on error.
func User(t *testing.T, g *storage.Gateway, name string) *models.User {
	t.Helper()
	u, err := g.AddUser(t.Context(), name, name+"@example.com", "Google")
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	return u
}
