package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"motorwatch/internal/config"
	"motorwatch/internal/logger"
	"motorwatch/internal/repository/sqlite"
	"motorwatch/internal/route"
	"motorwatch/internal/service"
	"motorwatch/internal/service/ai"
	"motorwatch/internal/service/mqtt"
	"motorwatch/internal/service/storage"
	"motorwatch/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	detector   *ai.DetectorService
	fallback   *storage.LocalBackend
	archiver   *storage.Archiver
	hubService *websocket.HubService
	manager    *service.Manager
	mqtt       *mqtt.Service
	server     *http.Server
}

// NewApp builds every service from the environment. A detector that cannot
// load is fatal: the server has nothing to answer with.
func NewApp() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}
	if err := a.init(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	cfg := a.config

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return errors.Wrap(err, "failed to open artifact ledger")
	}
	a.db = db
	artifacts := sqlite.NewArtifactRepository(db)
	detections := sqlite.NewDetectionRepository(db)

	a.fallback, err = storage.NewLocalBackend(cfg.FallbackDir)
	if err != nil {
		return err
	}

	var backends []storage.Backend
	if s3, err := storage.NewS3Backend(cfg); err != nil {
		a.logger.Warning("S3 backend disabled (%v), storing artifacts in %s only", err, cfg.FallbackDir)
	} else {
		backends = append(backends, s3)
	}
	backends = append(backends, a.fallback)
	a.archiver = storage.NewArchiver(cfg, a.logger, artifacts, detections, backends...)

	a.detector, err = ai.NewDetectorService(cfg, a.logger)
	if err != nil {
		return err
	}

	a.hubService = websocket.NewHubService(a.logger)
	a.manager = service.NewManager(a.detector, a.archiver, a.hubService, a.logger)

	deps := route.Dependencies{
		Config:     cfg,
		Logger:     a.logger,
		Manager:    a.manager,
		Viewers:    a.hubService,
		Detector:   a.detector,
		Ledger:     db,
		Artifacts:  artifacts,
		Detections: detections,
		Fallback:   a.fallback,
	}
	if cfg.MQTTEnabled {
		a.mqtt = mqtt.NewService(cfg, a.manager, a.logger)
		deps.MQTT = a.mqtt
	}

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           route.SetupRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Run serves HTTP (and MQTT when enabled) until ctx is cancelled or the
// listener fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	// Start background services
	go a.hubService.Run(ctx)

	if a.mqtt != nil {
		if err := a.mqtt.Connect(ctx); err != nil {
			// paho keeps retrying in the background
			a.logger.Warning("MQTT broker not reachable yet: %v", err)
		}
	}

	fmt.Printf("🚀 Motorcycle Detection Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🤖 AI Model: %s (%d instances)\n", a.config.ModelPath, a.detector.PoolSize())
	for i, b := range a.archiver.Backends() {
		fmt.Printf("📁 Storage #%d: %s\n", i+1, b.Name())
	}
	if a.mqtt != nil {
		fmt.Printf("📡 MQTT: %s:%d topic %s\n", a.config.MQTTBrokerHost, a.config.MQTTBrokerPort, a.config.MQTTTopic)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		a.Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
		a.logger.Info("Shutting down...")
		return a.Shutdown()
	}
}

// Shutdown stops accepting requests, lets in-flight ones finish and releases
// the detector, the broker connection and the ledger.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			a.logger.Error("Could not release detector: %v", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Close()
}
