package ai

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"motorwatch/internal/config"
	"motorwatch/internal/logger"
	"motorwatch/internal/model"
)

// ErrDetectorClosed is returned by Detect after Close.
var ErrDetectorClosed = errors.New("detector is closed")

// DetectorService filters model output down to the configured target class.
// A pool of model instances lets concurrent callers detect in parallel; each
// instance serves one caller at a time.
type DetectorService struct {
	pool      chan Model
	size      int
	threshold float64
	classID   int
	label     string
	timeout   time.Duration
	logger    *logger.Logger
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDetectorService loads config.DetectorWorkers YOLO instances from config.ModelPath.
func NewDetectorService(config *config.Config, logger *logger.Logger) (*DetectorService, error) {
	models := make([]Model, 0, config.DetectorWorkers)
	for i := 0; i < config.DetectorWorkers; i++ {
		m, err := LoadYOLO(config.ModelPath, config.InputSize, config.ConfidenceThreshold, config.IOUThreshold)
		if err != nil {
			for _, loaded := range models {
				loaded.Close()
			}
			return nil, errors.Wrap(err, "could not initialize detection network")
		}
		models = append(models, m)
	}

	service := NewDetectorServiceWithModels(config, logger, models...)
	logger.Info("Detection network initialized successfully (%d instances)", len(models))
	return service, nil
}

// NewDetectorServiceWithModels builds the service around already loaded models.
func NewDetectorServiceWithModels(config *config.Config, logger *logger.Logger, models ...Model) *DetectorService {
	pool := make(chan Model, len(models))
	for _, m := range models {
		pool <- m
	}
	return &DetectorService{
		pool:      pool,
		size:      len(models),
		threshold: config.ConfidenceThreshold,
		classID:   config.TargetClassID,
		label:     config.TargetLabel,
		timeout:   config.DetectTimeout,
		logger:    logger,
	}
}

// PoolSize returns the number of model instances.
func (s *DetectorService) PoolSize() int { return s.size }

// Label returns the human readable name of the target class.
func (s *DetectorService) Label() string { return s.label }

type detectOutcome struct {
	detections []model.Detection
	err        error
}

// Detect scores img and keeps detections of the target class at or above the
// confidence threshold. img is never modified; the model works on a clone.
func (s *DetectorService) Detect(ctx context.Context, img gocv.Mat) (model.DetectionSet, error) {
	set := model.DetectionSet{ClassID: s.classID, Label: s.label}
	if s.closed.Load() {
		return set, &model.DetectionFault{Err: ErrDetectorClosed}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var m Model
	select {
	case m = <-s.pool:
	case <-ctx.Done():
		return set, &model.DetectionFault{Err: errors.Wrap(ctx.Err(), "waiting for a free model")}
	}

	clone := img.Clone()
	done := make(chan detectOutcome, 1)
	go func() {
		defer func() { s.pool <- m }()
		defer clone.Close()
		detections, err := m.Detect(clone)
		done <- detectOutcome{detections: detections, err: err}
	}()

	var out detectOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		s.logger.Warning("Detection timed out after %s", s.timeout)
		return set, &model.DetectionFault{Err: ctx.Err()}
	}
	if out.err != nil {
		return set, &model.DetectionFault{Err: out.err}
	}

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	for _, d := range out.detections {
		d.Confidence = clamp01(d.Confidence)
		if d.ClassID != s.classID || d.Confidence < s.threshold {
			continue
		}
		d.Box = d.Box.Intersect(bounds)
		set.Detections = append(set.Detections, d)
	}

	if !set.Empty() {
		best, _ := set.Best()
		s.logger.Info("Detected %d %s (best %.2f)", len(set.Detections), s.label, best)
	}
	return set, nil
}

// Close waits for in-flight detections and releases every model instance.
func (s *DetectorService) Close() error {
	var firstErr error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		for i := 0; i < s.size; i++ {
			m := <-s.pool
			if err := m.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
