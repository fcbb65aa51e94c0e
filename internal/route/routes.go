package route

import (
	"net/http"
	"os"
	"path/filepath"

	"motorwatch/internal/config"
	"motorwatch/internal/handler"
	"motorwatch/internal/logger"
	"motorwatch/internal/middleware"
	"motorwatch/internal/repository"
	"motorwatch/internal/service/storage"
	hub "motorwatch/internal/service/websocket"
)

// Dependencies are the services the HTTP surface is built from.
type Dependencies struct {
	Config     *config.Config
	Logger     *logger.Logger
	Manager    handler.FrameHandler
	Viewers    *hub.HubService
	Detector   handler.PoolSizer
	MQTT       handler.MQTTStatus // nil when MQTT is disabled
	Ledger     handler.Pinger
	Artifacts  repository.ArtifactRepository
	Detections repository.DetectionRepository
	Fallback   *storage.LocalBackend
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the device endpoints, the artifact API, log and auth
// endpoints, and wraps the mux with the authentication middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	cfg, logger := deps.Config, deps.Logger

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Device endpoints
	mux.HandleFunc("/upload", handler.UploadHandler(deps.Manager, cfg, logger))
	mux.HandleFunc("/classify", handler.ClassifyHandler(deps.Manager, cfg, logger))
	mux.HandleFunc("/healthz", handler.HealthHandler(deps.Detector, deps.MQTT, deps.Ledger, deps.Viewers))

	// API endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(deps.Viewers, logger))
	mux.HandleFunc("/api/artifacts", handler.GetArtifactsHandler(logger, deps.Artifacts, deps.Detections))
	mux.HandleFunc("/api/artifacts/stats", handler.ArtifactStatsHandler(logger, deps.Artifacts))
	mux.HandleFunc("/api/artifacts/view", handler.ViewArtifactHandler(deps.Artifacts, deps.Fallback))

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowInfoLogsHandler(logger))
	mux.HandleFunc("/logs/warning", handler.ShowWarningLogsHandler(logger))
	mux.HandleFunc("/logs/error", handler.ShowErrorLogsHandler(logger))

	mux.HandleFunc("/logs/info/clear", handler.ClearLogsHandler(logger, "info.log"))
	mux.HandleFunc("/logs/warning/clear", handler.ClearLogsHandler(logger, "warning.log"))
	mux.HandleFunc("/logs/error/clear", handler.ClearLogsHandler(logger, "error.log"))

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	// Apply middleware
	return middleware.AuthMiddleware(mux)
}
