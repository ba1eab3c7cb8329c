package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"

	"profilehub/pkg/storage"
	"profilehub/process/sweep"
)

func main() {
	dir := flag.String("dir", "photos", "photo root directory")
	olderThan := flag.Duration("older-than", 720*time.Hour, "retention for soft-deleted files and folders")
	orphans := flag.Bool("orphans", false, "also remove files with no profile_photos row (needs DATABASE_URL)")
	dryRun := flag.Bool("dry-run", false, "report what would be removed without removing it")
	flag.Parse()

	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var names sweep.Names
	if *orphans {
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			fmt.Fprintln(os.Stderr, "DATABASE_URL not set; export DATABASE_URL or drop -orphans")
			os.Exit(2)
		}
		db, err := storage.OpenPostgres(dsn, false)
		if err != nil {
			log.Fatal(err)
		}
		names = storage.New(db)
	}

	res, err := sweep.Run(ctx, sweep.Options{
		Root:      *dir,
		OlderThan: *olderThan,
		Orphans:   *orphans,
		DryRun:    *dryRun,
	}, names)
	if err != nil {
		log.Fatalf("sweep failed after %s: %v", res, err)
	}
	fmt.Printf("sweep done (dry_run=%t): %s\n", *dryRun, res)
}
