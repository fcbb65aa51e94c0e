package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"motorwatch/internal/config"
	"motorwatch/internal/logger"
	"motorwatch/internal/repository/sqlite"
	"motorwatch/internal/service/storage"
)

func main() {
	cfg := config.Load()
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	fallbackDir := flag.String("fallback", cfg.FallbackDir, "Directory holding artifacts that missed the primary backend")
	keepLocal := flag.Bool("keep-local", false, "Keep local copies after a successful upload")
	flag.Parse()

	fmt.Printf("Re-uploading artifacts from %s (ledger %s)\n", *fallbackDir, *dbPath)

	logs, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to open logs: %v", err)
	}
	defer logs.Close()

	primary, err := storage.NewS3Backend(cfg)
	if err != nil {
		log.Fatalf("Primary backend unavailable: %v", err)
	}

	local, err := storage.NewLocalBackend(*fallbackDir)
	if err != nil {
		log.Fatalf("Failed to open fallback directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	artifacts := sqlite.NewArtifactRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resyncer := storage.NewResyncer(logs, artifacts, primary, local)
	resyncer.KeepLocal = *keepLocal
	report, err := resyncer.Run(ctx)
	if err != nil {
		log.Fatalf("Resync failed: %v", err)
	}

	if report.Pending == 0 {
		fmt.Println("No artifacts waiting for the primary backend")
		return
	}
	fmt.Printf("✅ Uploaded %d of %d artifacts to %s\n", report.Uploaded, report.Pending, primary.Name())
	if report.Failed > 0 {
		fmt.Printf("⚠️  %d artifacts still on the local backend\n", report.Failed)
	}

	// Show stats
	stats, err := artifacts.GetStats()
	if err == nil {
		fmt.Printf("\n📊 Ledger Statistics:\n")
		fmt.Printf("   Total artifacts: %d\n", stats.TotalArtifacts)
		fmt.Printf("   Total size: %d bytes\n", stats.TotalSizeBytes)
		for backend, count := range stats.PerBackend {
			fmt.Printf("      - %s: %d artifacts\n", backend, count)
		}
	}
}
