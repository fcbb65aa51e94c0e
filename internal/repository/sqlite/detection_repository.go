package sqlite

import (
	"github.com/pkg/errors"

	"motorwatch/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch adds multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []model.DetectionRecord) error {
	if len(detections) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO detections (artifact_id, label, x, y, width, height, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare statement")
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.ArtifactID, det.Label, det.X, det.Y, det.Width, det.Height, det.Confidence); err != nil {
			return errors.Wrap(err, "failed to insert detection")
		}
	}

	return tx.Commit()
}

// GetByArtifactID retrieves all detections for an artifact.
func (r *DetectionRepository) GetByArtifactID(artifactID int64) ([]model.DetectionRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, artifact_id, label, x, y, width, height, confidence
		FROM detections WHERE artifact_id = ? ORDER BY confidence DESC
	`, artifactID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query detections")
	}
	defer rows.Close()

	var detections []model.DetectionRecord
	for rows.Next() {
		var det model.DetectionRecord
		if err := rows.Scan(&det.ID, &det.ArtifactID, &det.Label, &det.X, &det.Y, &det.Width, &det.Height, &det.Confidence); err != nil {
			return nil, errors.Wrap(err, "failed to scan detection")
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

// GetLabelsByArtifactID returns just the distinct labels for an artifact.
func (r *DetectionRepository) GetLabelsByArtifactID(artifactID int64) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT label FROM detections WHERE artifact_id = ? ORDER BY label`, artifactID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query labels")
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, errors.Wrap(err, "failed to scan label")
		}
		labels = append(labels, label)
	}

	return labels, rows.Err()
}
