package route

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motorwatch/internal/config"
	"motorwatch/internal/logger"
	"motorwatch/internal/model"
	"motorwatch/internal/repository/sqlite"
	"motorwatch/internal/service"
	"motorwatch/internal/service/storage"
	hub "motorwatch/internal/service/websocket"
)

type countingManager struct{ calls int }

func (m *countingManager) Handle(ctx context.Context, frame *model.Frame, responder service.Responder) error {
	m.calls++
	return responder.Respond(ctx, frame, &model.Result{Event: &model.Event{}}, nil)
}

type fixedPool int

func (p fixedPool) PoolSize() int { return int(p) }

func newRouter(t *testing.T, manager *countingManager) http.Handler {
	t.Helper()
	log, err := logger.NewQuiet(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	db, err := sqlite.New(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	local, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	return SetupRoutes(Dependencies{
		Config:     &config.Config{TargetLabel: "motorcycle", MaxUploadBytes: 1 << 20, Password: "secret"},
		Logger:     log,
		Manager:    manager,
		Viewers:    hub.NewHubService(log),
		Detector:   fixedPool(2),
		Ledger:     db,
		Artifacts:  sqlite.NewArtifactRepository(db),
		Detections: sqlite.NewDetectionRepository(db),
		Fallback:   local,
	})
}

func TestRoutes_DeviceEndpointsSkipLogin(t *testing.T) {
	manager := &countingManager{}
	router := newRouter(t, manager)

	req := httptest.NewRequest(http.MethodPost, "/classify", strings.NewReader(`{"device_id":"cam-001"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, manager.calls)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detector_pool":2`)
}

func TestRoutes_APIRequiresLogin(t *testing.T) {
	router := newRouter(t, &countingManager{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/artifacts", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/artifacts", nil)
	req.AddCookie(&http.Cookie{Name: "authenticated", Value: "true"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"artifacts":[]`)
}
