package storage

import (
	"context"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"motorwatch/internal/config"
	"motorwatch/internal/logger"
	"motorwatch/internal/model"
	"motorwatch/internal/repository/sqlite"
)

type fakeBackend struct {
	name  string
	err   error
	delay time.Duration
	mu    sync.Mutex
	keys  []string
	data  [][]byte
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.data = append(f.data, data)
	return f.name + "/" + key, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewQuiet(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func testConfig() *config.Config {
	return &config.Config{JPEGQuality: 90, UploadTimeout: time.Second}
}

func matchedEvent(t *testing.T, deviceID string) *model.Event {
	t.Helper()
	conf := 0.87
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 120, 200, 0), 48, 64, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { img.Close() })
	return &model.Event{
		Matched:        true,
		BestConfidence: &conf,
		Annotated:      img,
		DeviceID:       deviceID,
		Timestamp:      time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Detections: model.DetectionSet{ClassID: 3, Label: "motorcycle", Detections: []model.Detection{
			{Box: image.Rect(5, 5, 40, 30), Confidence: 0.87, ClassID: 3},
		}},
	}
}

func TestNamer(t *testing.T) {
	n := NewNamer()
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "cam-001_motor_20250101120000.jpg", n.Name("cam-001", ts))

	again := n.Name("cam-001", ts)
	assert.NotEqual(t, "cam-001_motor_20250101120000.jpg", again)
	assert.Regexp(t, `^cam-001_motor_20250101120000_[0-9a-f]{8}\.jpg$`, again)

	assert.Equal(t, "cam-002_motor_20250101120000.jpg", n.Name("cam-002", ts))
	assert.Equal(t, "cam-001_motor_20250101120001.jpg", n.Name("cam-001", ts.Add(time.Second)))

	unknown := n.Name(model.UnknownDevice, ts)
	assert.Regexp(t, `^motor_[0-9a-f]{32}\.jpg$`, unknown)
	assert.NotEqual(t, unknown, n.Name(model.UnknownDevice, ts))

	assert.Equal(t, ".._etc_motor_20250101120000.jpg", n.Name("../etc", ts))
}

func TestNamer_OutOfOrderFrames(t *testing.T) {
	n := NewNamer()
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	first := n.Name("cam-001", ts)
	assert.Equal(t, "cam-001_motor_20250101120000.jpg", first)
	assert.Equal(t, "cam-001_motor_20250101120001.jpg", n.Name("cam-001", ts.Add(time.Second)))

	// a frame from the first second finishing after the later one
	late := n.Name("cam-001", ts.Add(300*time.Millisecond))
	assert.NotEqual(t, first, late)
	assert.Regexp(t, `^cam-001_motor_20250101120000_[0-9a-f]{8}\.jpg$`, late)

	older := n.Name("cam-001", ts.Add(-time.Minute))
	assert.Regexp(t, `^cam-001_motor_20250101115900_[0-9a-f]{8}\.jpg$`, older)

	// the newest second stays the reference
	assert.Regexp(t, `_[0-9a-f]{8}\.jpg$`, n.Name("cam-001", ts.Add(time.Second)))
	assert.Equal(t, "cam-001_motor_20250101120002.jpg", n.Name("cam-001", ts.Add(2*time.Second)))
}

func TestLocalBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fallback")
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)

	location, err := b.Put(context.Background(), "a.jpg", []byte("jpeg"), contentTypeJPEG)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), location)

	data, err := b.Read("a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	_, err = b.Put(context.Background(), "../escape.jpg", []byte("x"), contentTypeJPEG)
	assert.Error(t, err)

	require.NoError(t, b.Remove("a.jpg"))
	require.NoError(t, b.Remove("a.jpg"))
	_, err = os.Stat(location)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files left behind")
}

func TestArchive_PrimarySucceeds(t *testing.T) {
	primary := &fakeBackend{name: "primary"}
	secondary := &fakeBackend{name: "secondary"}
	a := NewArchiver(testConfig(), testLogger(t), nil, nil, primary, secondary)

	artifact, attempts := a.Archive(context.Background(), matchedEvent(t, "cam-001"))

	assert.True(t, artifact.Succeeded)
	assert.Equal(t, model.BackendPrimary, artifact.BackendUsed)
	assert.Equal(t, "cam-001_motor_20250101120000.jpg", artifact.Filename)
	assert.Len(t, attempts, 1)
	assert.Len(t, primary.keys, 1)
	assert.Empty(t, secondary.keys)

	decoded, err := gocv.IMDecode(primary.data[0], gocv.IMReadColor)
	require.NoError(t, err)
	defer decoded.Close()
	assert.Equal(t, 64, decoded.Cols())
}

func TestArchive_FallsBackWithIdenticalContent(t *testing.T) {
	primary := &fakeBackend{name: "primary", err: errors.New("connection refused")}
	secondary := &fakeBackend{name: "secondary"}
	a := NewArchiver(testConfig(), testLogger(t), nil, nil, primary, secondary)

	artifact, attempts := a.Archive(context.Background(), matchedEvent(t, "cam-001"))

	assert.True(t, artifact.Succeeded)
	assert.Equal(t, model.BackendSecondary, artifact.BackendUsed)
	require.Len(t, attempts, 2)

	var fault *model.StorageFault
	require.True(t, errors.As(attempts[0].Err, &fault))
	assert.Equal(t, "primary", fault.Backend)
	assert.NoError(t, attempts[1].Err)
	assert.Equal(t, []string{artifact.Filename}, secondary.keys)
}

func TestArchive_AllFail(t *testing.T) {
	primary := &fakeBackend{name: "primary", err: errors.New("boom")}
	secondary := &fakeBackend{name: "secondary", err: errors.New("disk full")}
	a := NewArchiver(testConfig(), testLogger(t), nil, nil, primary, secondary)

	artifact, attempts := a.Archive(context.Background(), matchedEvent(t, "cam-001"))

	assert.False(t, artifact.Succeeded)
	assert.Len(t, attempts, 2)
	result := &model.Result{Artifact: artifact}
	assert.False(t, result.Archived())
}

func TestArchive_UploadTimeoutFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.UploadTimeout = 20 * time.Millisecond
	primary := &fakeBackend{name: "primary", delay: time.Second}
	secondary := &fakeBackend{name: "secondary"}
	a := NewArchiver(cfg, testLogger(t), nil, nil, primary, secondary)

	artifact, attempts := a.Archive(context.Background(), matchedEvent(t, "cam-001"))

	assert.Equal(t, model.BackendSecondary, artifact.BackendUsed)
	assert.True(t, model.IsRetryable(attempts[0].Err))
}

func TestArchive_RecordsLedger(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	defer db.Close()
	artifacts := sqlite.NewArtifactRepository(db)
	detections := sqlite.NewDetectionRepository(db)

	a := NewArchiver(testConfig(), testLogger(t), artifacts, detections, &fakeBackend{name: "primary"})
	artifact, _ := a.Archive(context.Background(), matchedEvent(t, "cam-001"))

	rec, err := artifacts.GetByFilename(artifact.Filename)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.BackendPrimary, rec.Backend)
	assert.Equal(t, "primary/"+artifact.Filename, rec.Location)
	assert.Equal(t, 0.87, rec.Confidence)

	dets, err := detections.GetByArtifactID(rec.ID)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 35, dets[0].Width)
}

func TestArchive_LocalOnlyIsResyncedLater(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	defer db.Close()
	artifacts := sqlite.NewArtifactRepository(db)

	local, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	// no object storage configured yet
	a := NewArchiver(testConfig(), testLogger(t), artifacts, nil, local)
	artifact, _ := a.Archive(context.Background(), matchedEvent(t, "cam-001"))
	require.True(t, artifact.Succeeded)
	assert.Equal(t, model.BackendPrimary, artifact.BackendUsed)

	rec, err := artifacts.GetByFilename(artifact.Filename)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.BackendSecondary, rec.Backend)

	primary := &fakeBackend{name: "primary"}
	report, err := NewResyncer(testLogger(t), artifacts, primary, local).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResyncReport{Pending: 1, Uploaded: 1}, report)
	assert.Equal(t, []string{artifact.Filename}, primary.keys)
}

type s3Request struct {
	method      string
	path        string
	contentType string
	body        []byte
}

func fakeS3(t *testing.T, status int) (*httptest.Server, *[]s3Request) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []s3Request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, s3Request{r.Method, r.URL.Path, r.Header.Get("Content-Type"), body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func s3Config(endpoint string) *config.Config {
	return &config.Config{
		StorageEndpoint: endpoint,
		StorageRegion:   "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		StorageBucket:   "motor-images",
		StoragePrefix:   "/captures/",
	}
}

func TestS3Backend_Put(t *testing.T) {
	srv, requests := fakeS3(t, http.StatusOK)
	b, err := NewS3Backend(s3Config(srv.URL))
	require.NoError(t, err)

	location, err := b.Put(context.Background(), "cam-001_motor_20250101120000.jpg", []byte("jpeg-bytes"), contentTypeJPEG)
	require.NoError(t, err)
	assert.Equal(t, "motor-images/captures/cam-001_motor_20250101120000.jpg", location)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/motor-images/captures/cam-001_motor_20250101120000.jpg", req.path)
	assert.Equal(t, contentTypeJPEG, req.contentType)
	assert.Equal(t, "jpeg-bytes", string(req.body))
}

func TestS3Backend_ErrorStatus(t *testing.T) {
	srv, _ := fakeS3(t, http.StatusForbidden)
	b, err := NewS3Backend(s3Config(srv.URL))
	require.NoError(t, err)

	_, err = b.Put(context.Background(), "a.jpg", []byte("x"), contentTypeJPEG)
	assert.Error(t, err)
}

func TestNewS3Backend_RequiresEndpoint(t *testing.T) {
	_, err := NewS3Backend(&config.Config{StorageBucket: "b"})
	assert.Error(t, err)
}

func TestResyncer(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	defer db.Close()
	artifacts := sqlite.NewArtifactRepository(db)

	local, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"a.jpg", "b.jpg"} {
		location, err := local.Put(context.Background(), name, []byte(name), contentTypeJPEG)
		require.NoError(t, err)
		_, err = artifacts.Insert(&model.ArtifactRecord{Filename: name, DeviceID: "cam", Timestamp: time.Now(), Backend: model.BackendSecondary, Location: location})
		require.NoError(t, err)
	}
	// ledger row whose file went missing
	_, err = artifacts.Insert(&model.ArtifactRecord{Filename: "gone.jpg", DeviceID: "cam", Timestamp: time.Now(), Backend: model.BackendSecondary, Location: "gone.jpg"})
	require.NoError(t, err)

	primary := &fakeBackend{name: "primary"}
	report, err := NewResyncer(testLogger(t), artifacts, primary, local).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ResyncReport{Pending: 3, Uploaded: 2, Failed: 1}, report)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, primary.keys)

	rec, err := artifacts.GetByFilename("a.jpg")
	require.NoError(t, err)
	assert.Equal(t, model.BackendPrimary, rec.Backend)
	assert.True(t, strings.HasPrefix(rec.Location, "primary/"))

	_, err = local.Read("a.jpg")
	assert.Error(t, err, "local copy removed after upload")
}
