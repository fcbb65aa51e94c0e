package sqlite

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"motorwatch/internal/dto"
	"motorwatch/internal/model"
)

// ArtifactRepository implements repository.ArtifactRepository for SQLite.
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository creates a new SQLite artifact repository.
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

const artifactColumns = `id, filename, device_id, timestamp, backend, location, filesize, confidence`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArtifact(row rowScanner) (*model.ArtifactRecord, error) {
	var rec model.ArtifactRecord
	var backend string
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.DeviceID, &rec.Timestamp, &backend, &rec.Location, &rec.FileSize, &rec.Confidence); err != nil {
		return nil, err
	}
	rec.Backend = model.BackendRole(backend)
	return &rec, nil
}

// Insert adds a new artifact record to the database.
func (r *ArtifactRepository) Insert(rec *model.ArtifactRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO artifacts (filename, device_id, timestamp, backend, location, filesize, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Filename, rec.DeviceID, rec.Timestamp.UTC(), string(rec.Backend), rec.Location, rec.FileSize, rec.Confidence)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert artifact")
	}

	return result.LastInsertId()
}

// GetByFilename retrieves an artifact by its filename, nil when absent.
func (r *ArtifactRepository) GetByFilename(filename string) (*model.ArtifactRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rec, err := scanArtifact(r.db.Conn().QueryRow(`SELECT `+artifactColumns+` FROM artifacts WHERE filename = ?`, filename))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get artifact")
	}
	return rec, nil
}

// whereClause builds the shared WHERE part for list and count queries.
func whereClause(filter *dto.ArtifactFilters) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter == nil {
		return "", nil
	}

	if filter.DeviceID != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Backend != "" {
		conds = append(conds, "backend = ?")
		args = append(args, filter.Backend)
	}
	if !filter.DateAfter.IsZero() {
		conds = append(conds, "DATE(timestamp) >= DATE(?)")
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}
	if !filter.DateBefore.IsZero() {
		conds = append(conds, "DATE(timestamp) <= DATE(?)")
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetAll retrieves artifacts based on filter criteria, newest first.
func (r *ArtifactRepository) GetAll(filter *dto.ArtifactFilters) ([]model.ArtifactRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `SELECT ` + artifactColumns + ` FROM artifacts` + where + ` ORDER BY timestamp DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	return r.query(query, args...)
}

// GetTotalCount returns the total count of artifacts matching the filter.
func (r *ArtifactRepository) GetTotalCount(filter *dto.ArtifactFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM artifacts`+where, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count artifacts")
	}
	return count, nil
}

// ListByBackend returns every artifact stored on the given backend, oldest first.
func (r *ArtifactRepository) ListByBackend(backend model.BackendRole) ([]model.ArtifactRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.query(`SELECT `+artifactColumns+` FROM artifacts WHERE backend = ? ORDER BY timestamp ASC, id ASC`, string(backend))
}

// UpdateBackend moves an artifact to another backend after a resync.
func (r *ArtifactRepository) UpdateBackend(id int64, backend model.BackendRole, location string) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`UPDATE artifacts SET backend = ?, location = ? WHERE id = ?`, string(backend), location, id)
	if err != nil {
		return errors.Wrap(err, "failed to update artifact")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.Errorf("artifact %d not found", id)
	}
	return nil
}

// GetStats returns counts and sizes of archived artifacts.
func (r *ArtifactRepository) GetStats() (*dto.ArtifactStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &dto.ArtifactStats{
		PerDevice:  make(map[string]int),
		PerBackend: make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*), COALESCE(SUM(filesize), 0) FROM artifacts`).Scan(&stats.TotalArtifacts, &stats.TotalSizeBytes); err != nil {
		return nil, errors.Wrap(err, "failed to count artifacts")
	}

	if err := r.groupCount(`SELECT device_id, COUNT(*) FROM artifacts GROUP BY device_id`, stats.PerDevice); err != nil {
		return nil, err
	}
	if err := r.groupCount(`SELECT backend, COUNT(*) FROM artifacts GROUP BY backend`, stats.PerBackend); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *ArtifactRepository) groupCount(query string, into map[string]int) error {
	rows, err := r.db.Conn().Query(query)
	if err != nil {
		return errors.Wrap(err, "failed to query stats")
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return errors.Wrap(err, "failed to scan stats")
		}
		into[key] = count
	}
	return rows.Err()
}

func (r *ArtifactRepository) query(query string, args ...interface{}) ([]model.ArtifactRecord, error) {
	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query artifacts")
	}
	defer rows.Close()

	var records []model.ArtifactRecord
	for rows.Next() {
		rec, err := scanArtifact(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan artifact")
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
