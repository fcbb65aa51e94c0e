// ArtifactFilters describe user-provided filters to narrow the artifact list.
package dto

import "time"

type ArtifactFilters struct {
	DeviceID   string
	Backend    string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}
