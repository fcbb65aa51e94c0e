// Package preview renders stream results locally: an OpenCV window, an MJPEG
// endpoint and a snapshot folder, any of which may be switched off.
package preview

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"net/http"

	"github.com/hybridgroup/mjpeg"
	"gocv.io/x/gocv"

	"motorwatch/internal/logger"
	"motorwatch/internal/model"
	"motorwatch/internal/service"
	"motorwatch/internal/service/storage"
)

const previewQuality = 80

var hudColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}

// LocalResponder is the stream transport responder. It never sends anything
// over the network except the optional MJPEG preview.
type LocalResponder struct {
	window    *gocv.Window
	stream    *mjpeg.Stream
	snapshots *storage.LocalBackend
	logger    *logger.Logger
	total     int
}

// NewLocalResponder creates the responder. An empty windowName disables the
// window, a nil stream disables MJPEG and nil snapshots disables saving.
func NewLocalResponder(windowName string, stream *mjpeg.Stream, snapshots *storage.LocalBackend, logger *logger.Logger) *LocalResponder {
	r := &LocalResponder{
		stream:    stream,
		snapshots: snapshots,
		logger:    logger,
	}
	if windowName != "" {
		r.window = gocv.NewWindow(windowName)
	}
	return r
}

func (r *LocalResponder) Transport() model.Transport { return model.TransportStream }

// Total returns the number of target objects seen so far.
func (r *LocalResponder) Total() int { return r.total }

// Respond shows the annotated (or raw) frame with the running total and keeps
// a local copy of archived captures. Pressing 'q' in the window stops the stream.
func (r *LocalResponder) Respond(ctx context.Context, frame *model.Frame, result *model.Result, err error) error {
	img := frame.Image
	if err == nil && result.Event.Matched {
		img = result.Event.Annotated
		r.total += len(result.Event.Detections.Detections)
	}

	if result.Archived() && r.snapshots != nil {
		r.saveSnapshot(ctx, result)
	}

	if r.window == nil && r.stream == nil {
		return nil
	}

	view := img.Clone()
	defer view.Close()
	hud := fmt.Sprintf("Total motorcycles: %d", r.total)
	gocv.PutText(&view, hud, image.Pt(10, view.Rows()-15), gocv.FontHersheySimplex, 0.6, hudColor, 2)

	if r.stream != nil {
		data, err := storage.EncodeJPEG(view, previewQuality)
		if err != nil {
			r.logger.Warning("Could not encode preview frame: %v", err)
		} else {
			r.stream.UpdateJPEG(data)
		}
	}

	if r.window != nil {
		r.window.IMShow(view)
		if r.window.WaitKey(1) == 'q' {
			return service.ErrStopStream
		}
	}
	return nil
}

func (r *LocalResponder) saveSnapshot(ctx context.Context, result *model.Result) {
	data, err := storage.EncodeJPEG(result.Event.Annotated, 90)
	if err != nil {
		r.logger.Warning("Could not encode snapshot: %v", err)
		return
	}
	path, err := r.snapshots.Put(ctx, result.Artifact.Filename, data, "image/jpeg")
	if err != nil {
		r.logger.Warning("Could not save snapshot %s: %v", result.Artifact.Filename, err)
		return
	}
	r.logger.Info("📸 Snapshot saved to %s", path)
}

// Close closes the preview window.
func (r *LocalResponder) Close() error {
	if r.window == nil {
		return nil
	}
	return r.window.Close()
}

// NewStreamServer serves an MJPEG preview on addr at every path.
func NewStreamServer(addr string) (*mjpeg.Stream, *http.Server) {
	stream := mjpeg.NewStream()
	mux := http.NewServeMux()
	mux.Handle("/", stream)
	return stream, &http.Server{Addr: addr, Handler: mux}
}
