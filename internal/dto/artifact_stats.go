package dto

// ArtifactStats contains statistics about archived artifacts.
type ArtifactStats struct {
	TotalArtifacts int            `json:"total_artifacts"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	PerDevice      map[string]int `json:"per_device"`
	PerBackend     map[string]int `json:"per_backend"`
}
