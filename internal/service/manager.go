package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"motorwatch/internal/dto"
	"motorwatch/internal/logger"
	"motorwatch/internal/model"
	"motorwatch/internal/service/storage"
)

// viewerJPEGQuality keeps live viewer frames small.
const viewerJPEGQuality = 70

// Detector scores a bitmap for the target class.
type Detector interface {
	Detect(ctx context.Context, img gocv.Mat) (model.DetectionSet, error)
}

// Archiver stores the annotated frame of a matched event.
type Archiver interface {
	Archive(ctx context.Context, event *model.Event) (*model.ArchivedArtifact, []storage.Attempt)
}

// CaptureGate decides whether a matched frame may be archived now.
type CaptureGate interface {
	Allow(now time.Time) bool
}

// Viewer receives a copy of every processed frame.
type Viewer interface {
	Broadcast(message []byte, deviceID string)
	ClientCount() int
}

// Responder delivers a frame's result over one transport. err is set instead
// of result when processing failed.
type Responder interface {
	Transport() model.Transport
	Respond(ctx context.Context, frame *model.Frame, result *model.Result, err error) error
}

// Manager runs the detect, decide, archive pipeline shared by every transport.
type Manager struct {
	detector Detector
	archiver Archiver
	viewer   Viewer
	logger   *logger.Logger
}

// NewManager wires the pipeline. viewer may be nil.
func NewManager(detector Detector, archiver Archiver, viewer Viewer, logger *logger.Logger) *Manager {
	return &Manager{
		detector: detector,
		archiver: archiver,
		viewer:   viewer,
		logger:   logger,
	}
}

// Process scores one frame and archives it when matched. With a gate, a
// matched frame the gate refuses is reported as throttled and not archived.
func (m *Manager) Process(ctx context.Context, frame *model.Frame, gate CaptureGate) (*model.Result, error) {
	set, err := m.detector.Detect(ctx, frame.Image)
	if err != nil {
		return nil, err
	}

	event, err := Decide(frame, set)
	if err != nil {
		return nil, &model.DetectionFault{Err: errors.Wrap(err, "failed to annotate frame")}
	}

	result := &model.Result{Event: event}
	if !event.Matched {
		return result, nil
	}

	if gate != nil && !gate.Allow(frame.Timestamp) {
		result.Throttled = true
		return result, nil
	}

	artifact, _ := m.archiver.Archive(ctx, event)
	result.Artifact = artifact
	return result, nil
}

// Handle processes a frame and sends exactly one response through responder.
// The responder must serve the frame's transport.
func (m *Manager) Handle(ctx context.Context, frame *model.Frame, responder Responder) error {
	if responder.Transport() != frame.Transport {
		return errors.Wrapf(model.ErrTransportMismatch, "%s responder for %s frame", responder.Transport(), frame.Transport)
	}

	result, err := m.Process(ctx, frame, nil)
	defer result.Close()

	if err != nil {
		m.logger.Error("Processing frame from %s failed: %v", frame.DeviceID, err)
	} else {
		m.logResult(frame, result)
		m.SendToViewers(frame, result)
	}

	return responder.Respond(ctx, frame, result, err)
}

func (m *Manager) logResult(frame *model.Frame, result *model.Result) {
	if !result.Event.Matched {
		return
	}
	confidence := *result.Event.BestConfidence
	switch {
	case result.Archived():
		m.logger.Info("🏍️ Motorcycle from %s (%s), confidence %.2f, saved as %s", frame.DeviceID, frame.Transport, confidence, result.Artifact.Filename)
	case result.Throttled:
		m.logger.Info("🏍️ Motorcycle from %s (%s), confidence %.2f, capture throttled", frame.DeviceID, frame.Transport, confidence)
	default:
		m.logger.Warning("🏍️ Motorcycle from %s (%s), confidence %.2f, not archived", frame.DeviceID, frame.Transport, confidence)
	}
}

// SendToViewers pushes the frame, annotated when matched, to live viewers.
func (m *Manager) SendToViewers(frame *model.Frame, result *model.Result) {
	if m.viewer == nil || m.viewer.ClientCount() == 0 {
		return
	}

	img := frame.Image
	msg := dto.ViewerFrame{
		DeviceID:  frame.DeviceID,
		Transport: string(frame.Transport),
		Result:    dto.ResultNone,
	}
	if result.Event.Matched {
		img = result.Event.Annotated
		msg.Result = result.Event.Detections.Label
		msg.Confidence = result.Event.BestConfidence
	}

	data, err := storage.EncodeJPEG(img, viewerJPEGQuality)
	if err != nil {
		m.logger.Warning("Could not encode viewer frame: %v", err)
		return
	}
	msg.Image = base64.StdEncoding.EncodeToString(data)

	payload, err := json.Marshal(msg)
	if err != nil {
		m.logger.Warning("Could not marshal viewer frame: %v", err)
		return
	}
	m.viewer.Broadcast(payload, frame.DeviceID)
}
