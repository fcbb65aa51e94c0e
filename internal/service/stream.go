package service

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"motorwatch/internal/ingest"
	"motorwatch/internal/logger"
	"motorwatch/internal/model"
)

// ErrStopStream is returned by a stream responder to end the loop (e.g. 'q' in the preview window).
var ErrStopStream = errors.New("stream stopped by viewer")

// SourceOpener opens a fresh pull source; called again on every reconnect.
type SourceOpener func() (ingest.Source, error)

// StreamOptions configure a StreamRunner.
type StreamOptions struct {
	// CaptureInterval throttles archival of matched frames.
	CaptureInterval time.Duration
	// Reconnect reopens the source after it ends or breaks.
	Reconnect bool
	// ReconnectDelay is the pause before reopening.
	ReconnectDelay time.Duration
	// MaxReconnects bounds consecutive failed opens, 0 means unlimited.
	MaxReconnects int
}

// StreamStats are the running totals of a stream run.
type StreamStats struct {
	Sessions  int
	Frames    int
	Skipped   int
	Matched   int
	Objects   int
	Archived  int
	Throttled int
}

// StreamRunner is the single-threaded read, detect, archive loop over a pull source.
type StreamRunner struct {
	manager   *Manager
	responder Responder
	open      SourceOpener
	options   StreamOptions
	logger    *logger.Logger
}

func NewStreamRunner(manager *Manager, responder Responder, open SourceOpener, options StreamOptions, logger *logger.Logger) *StreamRunner {
	return &StreamRunner{
		manager:   manager,
		responder: responder,
		open:      open,
		options:   options,
		logger:    logger,
	}
}

// Run pulls frames until the source ends (without Reconnect), the responder
// asks to stop, or ctx is done. Each session gets its own capture throttle.
func (r *StreamRunner) Run(ctx context.Context) (StreamStats, error) {
	var stats StreamStats
	if r.responder.Transport() != model.TransportStream {
		return stats, errors.Wrapf(model.ErrTransportMismatch, "%s responder for stream frames", r.responder.Transport())
	}
	failedOpens := 0

	for {
		if err := ctx.Err(); err != nil {
			return stats, nil
		}

		source, err := r.open()
		if err != nil {
			if !r.options.Reconnect {
				return stats, err
			}
			failedOpens++
			if r.options.MaxReconnects > 0 && failedOpens > r.options.MaxReconnects {
				return stats, errors.Wrapf(err, "giving up after %d attempts", failedOpens)
			}
			r.logger.Warning("Could not open stream (attempt %d): %v", failedOpens, err)
			if !r.sleep(ctx) {
				return stats, nil
			}
			continue
		}
		failedOpens = 0
		stats.Sessions++

		r.logger.Info("🎬 Stream session %d started (%s)", stats.Sessions, source.Kind())
		stop, err := r.session(ctx, source, &stats)
		source.Close()
		r.logger.Info("🛑 Stream session %d ended: %d frames, %d objects so far", stats.Sessions, stats.Frames, stats.Objects)

		if stop {
			return stats, err
		}
		if !r.options.Reconnect {
			return stats, err
		}
		if err != nil {
			r.logger.Warning("Stream broke, reconnecting: %v", err)
		}
		if !r.sleep(ctx) {
			return stats, nil
		}
	}
}

// session runs one source to its end. stop reports that the whole run must end.
func (r *StreamRunner) session(ctx context.Context, source ingest.Source, stats *StreamStats) (stop bool, err error) {
	gate := NewCaptureController(r.options.CaptureInterval)

	for {
		frame, err := source.Next(ctx)
		switch {
		case err == nil:
		case err == io.EOF:
			return false, nil
		case model.IsDecode(err):
			stats.Skipped++
			r.logger.Warning("Skipping unreadable frame: %v", err)
			continue
		case ctx.Err() != nil:
			return true, nil
		default:
			return false, err
		}

		stats.Frames++
		if err := r.handle(ctx, frame, gate, stats); err != nil {
			frame.Close()
			if errors.Is(err, ErrStopStream) {
				return true, nil
			}
			return true, err
		}
		frame.Close()
	}
}

func (r *StreamRunner) handle(ctx context.Context, frame *model.Frame, gate CaptureGate, stats *StreamStats) error {
	result, err := r.manager.Process(ctx, frame, gate)
	defer result.Close()

	if err != nil {
		r.logger.Error("Detection failed on %s frame: %v", frame.DeviceID, err)
	} else if result.Event.Matched {
		stats.Matched++
		stats.Objects += len(result.Event.Detections.Detections)
		switch {
		case result.Throttled:
			stats.Throttled++
		case result.Archived():
			stats.Archived++
		}
		r.manager.logResult(frame, result)
	}

	return r.responder.Respond(ctx, frame, result, err)
}

func (r *StreamRunner) sleep(ctx context.Context) bool {
	if r.options.ReconnectDelay <= 0 {
		return true
	}
	select {
	case <-time.After(r.options.ReconnectDelay):
		return true
	case <-ctx.Done():
		return false
	}
}
