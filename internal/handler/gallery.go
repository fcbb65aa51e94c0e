package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"motorwatch/internal/dto"
	"motorwatch/internal/logger"
	"motorwatch/internal/repository"
	"motorwatch/internal/service/storage"
)

const defaultPageSize = 24

// GetArtifactsHandler returns a filtered, paginated list of archived artifacts from the ledger.
func GetArtifactsHandler(logger *logger.Logger, artifactRepo repository.ArtifactRepository,
	detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), defaultPageSize)

		filter := &dto.ArtifactFilters{
			DeviceID:   q.Get("device"),
			Backend:    q.Get("backend"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		records, err := artifactRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying artifacts from database: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		totalCount, err := artifactRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting artifacts: %v", err)
			totalCount = len(records)
		}

		artifacts := make([]dto.ArtifactInfo, 0, len(records))
		for _, rec := range records {
			objects := []string{}
			if detectionRepo != nil {
				if labels, err := detectionRepo.GetLabelsByArtifactID(rec.ID); err != nil {
					logger.Error("Error getting detections for artifact %d: %v", rec.ID, err)
				} else if labels != nil {
					objects = labels
				}
			}

			artifacts = append(artifacts, dto.ArtifactInfo{
				Filename:   rec.Filename,
				DeviceID:   rec.DeviceID,
				Date:       rec.Timestamp,
				TimeOfDay:  rec.Timestamp,
				Backend:    string(rec.Backend),
				Confidence: rec.Confidence,
				Objects:    objects,
			})
		}

		data := dto.ArtifactsData{
			Artifacts:   artifacts,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// ArtifactStatsHandler reports artifact counts per device and per backend.
func ArtifactStatsHandler(logger *logger.Logger, artifactRepo repository.ArtifactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := artifactRepo.GetStats()
		if err != nil {
			logger.Error("Error reading artifact stats: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// ViewArtifactHandler serves an artifact held by the local backend, named by
// the "filename" query parameter.
func ViewArtifactHandler(artifactRepo repository.ArtifactRepository, local *storage.LocalBackend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := r.URL.Query().Get("filename")
		if filename == "" {
			writeError(w, http.StatusBadRequest, "Filename parameter is required")
			return
		}

		rec, err := artifactRepo.GetByFilename(filename)
		if err != nil || rec == nil {
			writeError(w, http.StatusNotFound, "Artifact not found")
			return
		}
		path, err := local.Path(filename)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Pliki wyslane do S3 nie sa dostepne lokalnie
		if _, err := os.Stat(path); err != nil {
			writeError(w, http.StatusNotFound, "Artifact is stored at "+rec.Location)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, path)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" from the request (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
