package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/piosteiner/adenai-map/internal/config"
	"github.com/piosteiner/adenai-map/internal/database"
	"github.com/piosteiner/adenai-map/internal/movement"
	"github.com/piosteiner/adenai-map/internal/notify"
	"github.com/piosteiner/adenai-map/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	input := flag.String("in", "", "JSON export of the character collection (default stdin)")
	dbPath := flag.String("db", cfg.DBPath, "sqlite database to write")
	dryRun := flag.Bool("dry-run", false, "decode and report without writing")
	flag.Parse()

	logger, err := cfg.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	src := os.Stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		src = f
	}

	entities, report, err := movement.DecodeDocument(src)
	if err != nil {
		return err
	}
	for _, problem := range report.Problems {
		logger.Warn("import problem", zap.String("problem", problem))
	}
	logger.Info("document decoded",
		zap.Int("entities", report.Entities),
		zap.Int("records", report.Records),
		zap.Int("dropped_records", report.DroppedRecords))

	if *dryRun {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Open(database.Config{Path: *dbPath}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.NewMigrationManager(db, logger).RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := repository.NewEntityRepository(db, logger).ReplaceAll(ctx, entities); err != nil {
		return err
	}
	logger.Info("feed replaced", zap.String("db", *dbPath), zap.Int("entities", len(entities)))

	if cfg.RedisAddr != "" {
		client := notify.NewClient(cfg.RedisAddr)
		defer client.Close()
		if err := notify.Publish(ctx, client, cfg.ReloadChannel, "import"); err != nil {
			// The data is written; servers pick it up on their next reload.
			logger.Warn("reload notification not sent", zap.Error(err))
		}
	}
	return nil
}
