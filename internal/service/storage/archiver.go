package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"motorwatch/internal/config"
	"motorwatch/internal/logger"
	"motorwatch/internal/model"
	"motorwatch/internal/repository"
)

const contentTypeJPEG = "image/jpeg"

// Attempt is the outcome of one upload try against one backend.
type Attempt struct {
	Backend  string
	Role     model.BackendRole
	Location string
	Err      error
}

// Archiver encodes matched frames and walks the ordered backend list until one
// of them accepts the upload. There are no retries beyond the list itself.
type Archiver struct {
	backends   []Backend
	namer      *Namer
	quality    int
	timeout    time.Duration
	artifacts  repository.ArtifactRepository
	detections repository.DetectionRepository
	logger     *logger.Logger
}

// NewArchiver creates an archiver over backends, primary first. The
// repositories may be nil, in which case nothing is recorded.
func NewArchiver(config *config.Config, logger *logger.Logger, artifacts repository.ArtifactRepository, detections repository.DetectionRepository, backends ...Backend) *Archiver {
	return &Archiver{
		backends:   backends,
		namer:      NewNamer(),
		quality:    config.JPEGQuality,
		timeout:    config.UploadTimeout,
		artifacts:  artifacts,
		detections: detections,
		logger:     logger,
	}
}

// Backends returns the ordered backend list.
func (a *Archiver) Backends() []Backend { return a.backends }

// Archive stores the annotated frame of a matched event. It never returns an
// error: when every backend fails the artifact has Succeeded=false and the
// attempts say why.
func (a *Archiver) Archive(ctx context.Context, event *model.Event) (*model.ArchivedArtifact, []Attempt) {
	artifact := &model.ArchivedArtifact{}

	data, err := EncodeJPEG(event.Annotated, a.quality)
	if err != nil {
		a.logger.Error("Failed to encode image for %s: %v", event.DeviceID, err)
		return artifact, nil
	}

	artifact.Filename = a.namer.Name(event.DeviceID, event.Timestamp)
	artifact.Size = len(data)

	attempts := make([]Attempt, 0, len(a.backends))
	for i, backend := range a.backends {
		attempt := a.put(ctx, backend, model.RoleForIndex(i), artifact.Filename, data)
		attempts = append(attempts, attempt)

		if attempt.Err == nil {
			artifact.BackendUsed = attempt.Role
			artifact.Succeeded = true
			if i > 0 {
				a.logger.Info("💾 Saved %s to fallback %s", artifact.Filename, backend.Name())
			} else {
				a.logger.Info("☁️ Uploaded %s to %s", artifact.Filename, backend.Name())
			}
			a.record(event, artifact, ledgerRole(backend, attempt.Role), attempt.Location)
			return artifact, attempts
		}

		a.logger.Warning("Upload of %s to %s failed: %v", artifact.Filename, backend.Name(), attempt.Err)
	}

	a.logger.Error("All storage backends failed for %s", artifact.Filename)
	return artifact, attempts
}

func (a *Archiver) put(ctx context.Context, backend Backend, role model.BackendRole, key string, data []byte) Attempt {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	attempt := Attempt{Backend: backend.Name(), Role: role}
	location, err := backend.Put(ctx, key, data, contentTypeJPEG)
	if err != nil {
		attempt.Err = &model.StorageFault{Backend: backend.Name(), Err: err}
		return attempt
	}
	attempt.Location = location
	return attempt
}

// ledgerRole is the role stored in the ledger. Anything kept on local disk is
// secondary there, even when it was the only backend, so resync picks it up
// once a primary is configured.
func ledgerRole(backend Backend, role model.BackendRole) model.BackendRole {
	if _, ok := backend.(*LocalBackend); ok {
		return model.BackendSecondary
	}
	return role
}

// record writes the ledger rows. Failures are logged only.
func (a *Archiver) record(event *model.Event, artifact *model.ArchivedArtifact, role model.BackendRole, location string) {
	if a.artifacts == nil {
		return
	}

	best, _ := event.Detections.Best()
	id, err := a.artifacts.Insert(&model.ArtifactRecord{
		Filename:   artifact.Filename,
		DeviceID:   event.DeviceID,
		Timestamp:  event.Timestamp,
		Backend:    role,
		Location:   location,
		FileSize:   int64(artifact.Size),
		Confidence: best,
	})
	if err != nil {
		a.logger.Error("Error saving artifact to database %s: %v", artifact.Filename, err)
		return
	}

	if a.detections == nil || event.Detections.Empty() {
		return
	}
	records := make([]model.DetectionRecord, 0, len(event.Detections.Detections))
	for _, d := range event.Detections.Detections {
		records = append(records, model.DetectionRecord{
			ArtifactID: id,
			Label:      event.Detections.Label,
			X:          d.Box.Min.X,
			Y:          d.Box.Min.Y,
			Width:      d.Box.Dx(),
			Height:     d.Box.Dy(),
			Confidence: d.Confidence,
		})
	}
	if err := a.detections.InsertBatch(records); err != nil {
		a.logger.Error("Error saving detections to database: %v", err)
	}
}

// EncodeJPEG compresses img with the given quality (1-100).
func EncodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	if img.Empty() {
		return nil, errors.New("image is empty")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode image")
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}
