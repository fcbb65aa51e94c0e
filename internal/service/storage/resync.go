package storage

import (
	"context"

	"github.com/pkg/errors"

	"motorwatch/internal/logger"
	"motorwatch/internal/model"
	"motorwatch/internal/repository"
)

// ResyncReport summarizes one resync run.
type ResyncReport struct {
	Pending  int
	Uploaded int
	Failed   int
}

// Resyncer pushes artifacts that fell back to the local backend up to the
// primary backend and moves their ledger rows over.
type Resyncer struct {
	primary   Backend
	local     *LocalBackend
	artifacts repository.ArtifactRepository
	logger    *logger.Logger
	// KeepLocal leaves the fallback copy on disk after a successful upload.
	KeepLocal bool
}

func NewResyncer(logger *logger.Logger, artifacts repository.ArtifactRepository, primary Backend, local *LocalBackend) *Resyncer {
	return &Resyncer{primary: primary, local: local, artifacts: artifacts, logger: logger}
}

// Run uploads every secondary artifact once. A failed artifact is counted and
// skipped; only a ledger read failure aborts the run.
func (r *Resyncer) Run(ctx context.Context) (ResyncReport, error) {
	var report ResyncReport

	pending, err := r.artifacts.ListByBackend(model.BackendSecondary)
	if err != nil {
		return report, errors.Wrap(err, "failed to list fallback artifacts")
	}
	report.Pending = len(pending)

	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		data, err := r.local.Read(rec.Filename)
		if err != nil {
			r.logger.Error("Skipping %s: %v", rec.Filename, err)
			report.Failed++
			continue
		}

		location, err := r.primary.Put(ctx, rec.Filename, data, contentTypeJPEG)
		if err != nil {
			r.logger.Warning("Upload of %s to %s failed: %v", rec.Filename, r.primary.Name(), err)
			report.Failed++
			continue
		}

		if err := r.artifacts.UpdateBackend(rec.ID, model.BackendPrimary, location); err != nil {
			r.logger.Error("Uploaded %s but could not update ledger: %v", rec.Filename, err)
			report.Failed++
			continue
		}

		if !r.KeepLocal {
			if err := r.local.Remove(rec.Filename); err != nil {
				r.logger.Warning("Could not remove local copy of %s: %v", rec.Filename, err)
			}
		}
		report.Uploaded++
		r.logger.Info("☁️ Resynced %s", rec.Filename)
	}

	return report, nil
}
