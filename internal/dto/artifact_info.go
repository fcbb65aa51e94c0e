package dto

import (
	"encoding/json"
	"time"
)

// ArtifactInfo is one entry of the artifact gallery.
type ArtifactInfo struct {
	Filename   string    `json:"filename"`
	DeviceID   string    `json:"device_id"`
	Date       time.Time `json:"date"`
	TimeOfDay  time.Time `json:"timeOfDay"`
	Backend    string    `json:"backend"`
	Confidence float64   `json:"confidence"`
	Objects    []string  `json:"objects"`
}

// MarshalJSON customizes JSON output for ArtifactInfo to format date and time-of-day.
func (a ArtifactInfo) MarshalJSON() ([]byte, error) {
	type Alias ArtifactInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      a.Date.Format("02-01-2006"),
		TimeOfDay: a.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(a),
	})
}
