package service

import (
	"motorwatch/internal/model"
	"motorwatch/internal/service/ai"
)

// Decide turns a detection set into the frame's Event. A matched event carries
// an annotated private copy; frame.Image itself is never drawn on.
func Decide(frame *model.Frame, set model.DetectionSet) (*model.Event, error) {
	event := &model.Event{
		Detections: set,
		DeviceID:   frame.DeviceID,
		Timestamp:  frame.Timestamp,
	}

	best, ok := set.Best()
	if !ok {
		return event, nil
	}

	annotated := frame.Image.Clone()
	if err := ai.DrawDetections(&annotated, set); err != nil {
		annotated.Close()
		return nil, err
	}

	event.Matched = true
	event.BestConfidence = &best
	event.Annotated = annotated
	return event, nil
}
