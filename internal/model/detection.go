package model

import "image"

// Detection is one bounding box produced by the detector for a frame.
type Detection struct {
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"`
	ClassID    int             `json:"class_id"`
}

// DetectionSet holds detections of exactly one target class.
type DetectionSet struct {
	ClassID    int
	Label      string
	Detections []Detection
}

// Empty reports whether no detection passed the filters.
func (s DetectionSet) Empty() bool {
	return len(s.Detections) == 0
}

// Best returns the highest confidence in the set, false when empty.
func (s DetectionSet) Best() (float64, bool) {
	if s.Empty() {
		return 0, false
	}
	best := s.Detections[0].Confidence
	for _, d := range s.Detections[1:] {
		if d.Confidence > best {
			best = d.Confidence
		}
	}
	return best, true
}
