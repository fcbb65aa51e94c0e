package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motorwatch/internal/dto"
	"motorwatch/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, repo *ArtifactRepository) {
	t.Helper()
	records := []model.ArtifactRecord{
		{Filename: "cam-001_motor_20250101120000.jpg", DeviceID: "cam-001", Timestamp: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), Backend: model.BackendPrimary, Location: "motor-images/cam-001_motor_20250101120000.jpg", FileSize: 100, Confidence: 0.9},
		{Filename: "cam-001_motor_20250102120000.jpg", DeviceID: "cam-001", Timestamp: time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC), Backend: model.BackendSecondary, Location: "/tmp/fallback/cam-001_motor_20250102120000.jpg", FileSize: 200, Confidence: 0.6},
		{Filename: "cam-002_motor_20250103120000.jpg", DeviceID: "cam-002", Timestamp: time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC), Backend: model.BackendSecondary, Location: "/tmp/fallback/cam-002_motor_20250103120000.jpg", FileSize: 300, Confidence: 0.4},
	}
	for i := range records {
		_, err := repo.Insert(&records[i])
		require.NoError(t, err)
	}
}

func TestArtifactRepository_InsertAndGet(t *testing.T) {
	repo := NewArtifactRepository(openTestDB(t))
	seed(t, repo)

	rec, err := repo.GetByFilename("cam-002_motor_20250103120000.jpg")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "cam-002", rec.DeviceID)
	assert.Equal(t, model.BackendSecondary, rec.Backend)
	assert.Equal(t, int64(300), rec.FileSize)
	assert.True(t, rec.Timestamp.Equal(time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)))

	missing, err := repo.GetByFilename("nope.jpg")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestArtifactRepository_DuplicateFilename(t *testing.T) {
	repo := NewArtifactRepository(openTestDB(t))
	rec := &model.ArtifactRecord{Filename: "a.jpg", DeviceID: "cam", Timestamp: time.Now(), Backend: model.BackendPrimary, Location: "a.jpg"}

	_, err := repo.Insert(rec)
	require.NoError(t, err)
	_, err = repo.Insert(rec)
	assert.Error(t, err)
}

func TestArtifactRepository_Filters(t *testing.T) {
	repo := NewArtifactRepository(openTestDB(t))
	seed(t, repo)

	all, err := repo.GetAll(&dto.ArtifactFilters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "cam-002", all[0].DeviceID, "newest first")

	byDevice, err := repo.GetAll(&dto.ArtifactFilters{DeviceID: "cam-001"})
	require.NoError(t, err)
	assert.Len(t, byDevice, 2)

	byBackend, err := repo.GetTotalCount(&dto.ArtifactFilters{Backend: "secondary"})
	require.NoError(t, err)
	assert.Equal(t, 2, byBackend)

	byDate, err := repo.GetAll(&dto.ArtifactFilters{
		DateAfter:  time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		DateBefore: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "cam-001_motor_20250102120000.jpg", byDate[0].Filename)

	page, err := repo.GetAll(&dto.ArtifactFilters{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "cam-001_motor_20250101120000.jpg", page[0].Filename)
}

func TestArtifactRepository_ResyncFlow(t *testing.T) {
	repo := NewArtifactRepository(openTestDB(t))
	seed(t, repo)

	pending, err := repo.ListByBackend(model.BackendSecondary)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "cam-001", pending[0].DeviceID, "oldest first")

	require.NoError(t, repo.UpdateBackend(pending[0].ID, model.BackendPrimary, "motor-images/"+pending[0].Filename))

	pending, err = repo.ListByBackend(model.BackendSecondary)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	assert.Error(t, repo.UpdateBackend(9999, model.BackendPrimary, "x"))
}

func TestArtifactRepository_Stats(t *testing.T) {
	repo := NewArtifactRepository(openTestDB(t))
	seed(t, repo)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalArtifacts)
	assert.Equal(t, int64(600), stats.TotalSizeBytes)
	assert.Equal(t, map[string]int{"cam-001": 2, "cam-002": 1}, stats.PerDevice)
	assert.Equal(t, map[string]int{"primary": 1, "secondary": 2}, stats.PerBackend)
}

func TestDetectionRepository(t *testing.T) {
	db := openTestDB(t)
	artifacts := NewArtifactRepository(db)
	detections := NewDetectionRepository(db)

	id, err := artifacts.Insert(&model.ArtifactRecord{Filename: "a.jpg", DeviceID: "cam", Timestamp: time.Now(), Backend: model.BackendPrimary, Location: "a.jpg"})
	require.NoError(t, err)

	require.NoError(t, detections.InsertBatch(nil))
	require.NoError(t, detections.InsertBatch([]model.DetectionRecord{
		{ArtifactID: id, Label: "motorcycle", X: 1, Y: 2, Width: 30, Height: 40, Confidence: 0.5},
		{ArtifactID: id, Label: "motorcycle", X: 50, Y: 60, Width: 10, Height: 10, Confidence: 0.8},
	}))

	got, err := detections.GetByArtifactID(id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.8, got[0].Confidence)

	labels, err := detections.GetLabelsByArtifactID(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"motorcycle"}, labels)
}
