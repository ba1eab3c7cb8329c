package main

import (
	"fmt"
	"os"
	"time"

	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"profilehub/pkg/config"
	"profilehub/pkg/storage"
)

// openDB connects to Postgres. Schema migration is left to the caller so the
// migrate subcommand and startup share storage.Migrate.
func openDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := storage.OpenPostgres(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// ensurePhotosRoot creates the photo root directory.
func ensurePhotosRoot(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create photos dir %s: %w", dir, err)
	}
	log.Infof("photos stored under %s", dir)
	return nil
}
