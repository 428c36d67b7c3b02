package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinummonkey/cmsadmin/pkg/audit"
	"github.com/platinummonkey/cmsadmin/pkg/config"
	"github.com/platinummonkey/cmsadmin/pkg/observability"
	"github.com/platinummonkey/cmsadmin/pkg/storage/sqlstore"
)

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvConfigFile), "Path to YAML configuration file")
	formatFlag := flag.String("format", string(audit.ExportFormatNDJSON), "Export format: json, csv or ndjson")
	limit := flag.Int("limit", audit.MaxLimit, "Maximum number of entries to archive, newest first")
	userID := flag.String("user", "", "Only archive entries of this user id")
	dryRun := flag.Bool("dry-run", false, "Write the export to stdout instead of uploading it")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	format, err := audit.ParseExportFormat(*formatFlag)
	if err != nil {
		log.Fatalf("Invalid format: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, format, *limit, *userID, *dryRun); err != nil {
		log.Fatalf("Archive failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, format audit.ExportFormat, limit int, userID string, dryRun bool) error {
	logger := observability.NewLogger(cfg.Observability.Level(), os.Stderr)

	if cfg.Storage.Driver == "memory" {
		return fmt.Errorf("the memory storage driver holds no persisted audit entries")
	}
	store, err := sqlstore.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	entries, err := readEntries(ctx, audit.NewLogger(store, logger, observability.NewNopMetrics()), userID, limit)
	if err != nil {
		return err
	}
	logger.Infof("Read %d audit entries", len(entries))

	if dryRun {
		return audit.Export(os.Stdout, entries, format)
	}

	if cfg.Archive.Bucket == "" {
		return fmt.Errorf("archive bucket is required (CMSADMIN_ARCHIVE_BUCKET)")
	}
	client, err := audit.NewS3Client(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	result, err := audit.NewArchiver(client, cfg.Archive.Bucket, cfg.Archive.Prefix).Archive(ctx, entries, format)
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"bucket":   result.Bucket,
		"key":      result.Key,
		"entries":  result.Entries,
		"bytes":    result.Bytes,
		"checksum": result.Checksum,
	}).Info("Audit log archived")
	return nil
}

func readEntries(ctx context.Context, logs *audit.Logger, userID string, limit int) ([]audit.Entry, error) {
	if userID != "" {
		return logs.ByUser(ctx, userID, limit)
	}
	return logs.Recent(ctx, limit)
}
