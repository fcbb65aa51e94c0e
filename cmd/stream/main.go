package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hybridgroup/mjpeg"
	"github.com/pkg/errors"

	"motorwatch/internal/config"
	"motorwatch/internal/ingest"
	"motorwatch/internal/logger"
	"motorwatch/internal/repository/sqlite"
	"motorwatch/internal/service"
	"motorwatch/internal/service/ai"
	"motorwatch/internal/service/preview"
	"motorwatch/internal/service/storage"
)

func main() {
	failed := false
	// ostatni defer: najpierw sprzatamy, potem kod wyjscia
	defer func() {
		if failed {
			os.Exit(1)
		}
	}()

	cfg := config.Load()

	source := flag.String("source", "", "Video file or stream URL")
	webcam := flag.Int("webcam", -1, "Webcam index (used when -source and -dir are empty)")
	dir := flag.String("dir", "", "Directory of images to process")
	watch := flag.Bool("watch", false, "Keep watching -dir for new images")
	device := flag.String("device", "", "Device id reported for frames")
	window := flag.String("window", "Motorcycle Detection", "Preview window title, empty to disable")
	mjpegAddr := flag.String("mjpeg", "", "Serve an MJPEG preview on this address (e.g. :8090)")
	interval := flag.Duration("interval", cfg.CaptureInterval, "Minimum time between archived captures")
	reconnect := flag.Bool("reconnect", false, "Reopen video streams after they end or break")
	maxReconnects := flag.Int("max-reconnects", 10, "Give up after this many failed reopens, 0 for never")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	open, err := opener(cfg, *source, *webcam, *dir, *device, *watch)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *dir != "" && *reconnect {
		log.Printf("⚠️  -reconnect ignored for directory sources")
		*reconnect = false
	}

	logs, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to open logs: %v", err)
	}
	defer logs.Close()

	detector, err := ai.NewDetectorService(cfg, logs)
	if err != nil {
		log.Fatalf("Failed to load detector: %v", err)
	}
	defer detector.Close()

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	local, err := storage.NewLocalBackend(cfg.FallbackDir)
	if err != nil {
		log.Fatalf("Failed to prepare fallback directory: %v", err)
	}
	var backends []storage.Backend
	if s3, err := storage.NewS3Backend(cfg); err != nil {
		logs.Warning("S3 backend disabled (%v), storing artifacts in %s only", err, cfg.FallbackDir)
	} else {
		backends = append(backends, s3)
	}
	backends = append(backends, local)
	archiver := storage.NewArchiver(cfg, logs, sqlite.NewArtifactRepository(db), sqlite.NewDetectionRepository(db), backends...)

	var snapshots *storage.LocalBackend
	if cfg.SnapshotDir != "" {
		if snapshots, err = storage.NewLocalBackend(cfg.SnapshotDir); err != nil {
			log.Fatalf("Failed to prepare snapshot directory: %v", err)
		}
	}

	var stream *mjpeg.Stream
	if *mjpegAddr != "" {
		var server *http.Server
		stream, server = preview.NewStreamServer(*mjpegAddr)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logs.Error("MJPEG server failed: %v", err)
			}
		}()
		defer server.Close()
		fmt.Printf("📺 Preview: http://localhost%s\n", *mjpegAddr)
	}

	responder := preview.NewLocalResponder(*window, stream, snapshots, logs)
	defer responder.Close()

	manager := service.NewManager(detector, archiver, nil, logs)
	runner := service.NewStreamRunner(manager, responder, open, service.StreamOptions{
		CaptureInterval: *interval,
		Reconnect:       *reconnect,
		ReconnectDelay:  2 * time.Second,
		MaxReconnects:   *maxReconnects,
	}, logs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := runner.Run(ctx)
	fmt.Printf("\n📊 Frames: %d (skipped %d), matched: %d, archived: %d, throttled: %d\n",
		stats.Frames, stats.Skipped, stats.Matched, stats.Archived, stats.Throttled)
	fmt.Printf("🏍️  Total motorcycles: %d\n", responder.Total())
	if err != nil {
		logs.Error("Stream ended with error: %v", err)
		failed = true
	}
}

// opener picks the pull source from the flags: a directory, a stream URL or a webcam.
func opener(cfg *config.Config, source string, webcam int, dir, device string, watch bool) (service.SourceOpener, error) {
	switch {
	case dir != "":
		return func() (ingest.Source, error) {
			return ingest.NewDirectorySource(dir, device, watch)
		}, nil
	case source != "":
		return func() (ingest.Source, error) {
			return ingest.OpenVideoSource(source, device, cfg.StreamReadTimeout)
		}, nil
	case webcam >= 0:
		target := fmt.Sprint(webcam)
		return func() (ingest.Source, error) {
			return ingest.OpenVideoSource(target, device, cfg.StreamReadTimeout)
		}, nil
	default:
		return nil, errors.New("one of -source, -webcam or -dir is required")
	}
}
