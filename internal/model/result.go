package model

// Result is what the response dispatcher receives for one frame.
type Result struct {
	Event *Event
	// Artifact is nil when archival was not attempted.
	Artifact *ArchivedArtifact
	// Throttled is true when a matched frame skipped archival because of the capture interval.
	Throttled bool
}

// Archived reports whether an artifact was stored on any backend.
func (r *Result) Archived() bool {
	return r != nil && r.Artifact != nil && r.Artifact.Succeeded
}

// Close releases the event's annotated frame.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	return r.Event.Close()
}
