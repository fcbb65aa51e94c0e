package model

import (
	"time"

	"gocv.io/x/gocv"
)

// Event is the verdict for one frame.
type Event struct {
	Matched bool
	// BestConfidence is set iff Matched.
	BestConfidence *float64
	// Annotated is a private copy of the frame with overlays, empty when not matched.
	Annotated  gocv.Mat
	Detections DetectionSet
	DeviceID   string
	Timestamp  time.Time
}

// Close releases the annotated copy. Closing a zero Mat is a no-op.
func (e *Event) Close() error {
	if e == nil || !e.Matched {
		return nil
	}
	return e.Annotated.Close()
}
