package model

import "time"

// BackendRole tells which backend in the ordered list stored an artifact.
type BackendRole string

const (
	BackendPrimary   BackendRole = "primary"
	BackendSecondary BackendRole = "secondary"
)

// RoleForIndex maps a position in the backend list to its role.
func RoleForIndex(i int) BackendRole {
	if i == 0 {
		return BackendPrimary
	}
	return BackendSecondary
}

// ArchivedArtifact is the outcome of archiving one matched event.
// Succeeded is false only when every backend failed.
type ArchivedArtifact struct {
	Filename    string
	BackendUsed BackendRole
	Succeeded   bool
	Size        int
}

// ArtifactRecord is the ledger row for an archived artifact.
type ArtifactRecord struct {
	ID         int64       `json:"id"`
	Filename   string      `json:"filename"`
	DeviceID   string      `json:"device_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Backend    BackendRole `json:"backend"`
	Location   string      `json:"location"`
	FileSize   int64       `json:"filesize"`
	Confidence float64     `json:"confidence"`
}

// DetectionRecord is a detection stored alongside an artifact.
type DetectionRecord struct {
	ID         int64   `json:"id"`
	ArtifactID int64   `json:"artifact_id"`
	Label      string  `json:"label"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}
