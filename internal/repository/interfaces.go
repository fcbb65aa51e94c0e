package repository

import (
	"motorwatch/internal/dto"
	"motorwatch/internal/model"
)

// ArtifactRepository defines the ledger operations for archived artifacts.
type ArtifactRepository interface {
	// Create operations
	Insert(rec *model.ArtifactRecord) (int64, error)

	// Read operations
	GetByFilename(filename string) (*model.ArtifactRecord, error)
	GetAll(filter *dto.ArtifactFilters) ([]model.ArtifactRecord, error)
	GetTotalCount(filter *dto.ArtifactFilters) (int, error)
	ListByBackend(backend model.BackendRole) ([]model.ArtifactRecord, error)
	GetStats() (*dto.ArtifactStats, error)

	// Update operations
	UpdateBackend(id int64, backend model.BackendRole, location string) error
}

// DetectionRepository defines the operations for detections stored with an artifact.
type DetectionRepository interface {
	InsertBatch(detections []model.DetectionRecord) error
	GetByArtifactID(artifactID int64) ([]model.DetectionRecord, error)
	GetLabelsByArtifactID(artifactID int64) ([]string, error)
}
