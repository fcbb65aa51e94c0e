package ingest

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"motorwatch/internal/model"
)

type readResult struct {
	img gocv.Mat
	ok  bool
}

// VideoSource pulls frames from a webcam index or a stream URL.
type VideoSource struct {
	capture     *gocv.VideoCapture
	deviceID    string
	readTimeout time.Duration

	mu       sync.Mutex
	inflight chan readResult // read abandoned after a timeout, still running
	closed   bool
}

// OpenVideoSource opens a capture device. A numeric target is treated as a
// webcam index, anything else as a file or stream URL.
func OpenVideoSource(target, deviceID string, readTimeout time.Duration) (*VideoSource, error) {
	var device interface{} = target
	if index, err := strconv.Atoi(target); err == nil {
		device = index
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, &model.TransportFault{Transport: model.TransportStream, Err: errors.Wrapf(err, "failed to open %s", target)}
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, &model.TransportFault{Transport: model.TransportStream, Err: errors.Errorf("failed to open %s", target)}
	}

	return &VideoSource{
		capture:     capture,
		deviceID:    deviceID,
		readTimeout: readTimeout,
	}, nil
}

func (s *VideoSource) Kind() model.SourceKind { return model.SourceVideo }

// Next blocks until a frame is read, the stream ends, or the read timeout fires.
func (s *VideoSource) Next(ctx context.Context) (*model.Frame, error) {
	s.mu.Lock()
	if s.closed || s.inflight != nil {
		s.mu.Unlock()
		return nil, io.EOF
	}
	results := make(chan readResult, 1)
	s.inflight = results
	s.mu.Unlock()

	go func() {
		img := gocv.NewMat()
		ok := s.capture.Read(&img)
		results <- readResult{img: img, ok: ok}
	}()

	var timeout <-chan time.Time
	if s.readTimeout > 0 {
		timer := time.NewTimer(s.readTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-results:
		s.mu.Lock()
		s.inflight = nil
		s.mu.Unlock()

		if !res.ok || res.img.Empty() {
			res.img.Close()
			return nil, io.EOF
		}
		return model.NewFrame(res.img, s.deviceID, model.SourceVideo, time.Now().UTC()), nil

	case <-timeout:
		go s.drain(results)
		return nil, &model.TransportFault{Transport: model.TransportStream, Err: errors.Wrap(context.DeadlineExceeded, "frame read timed out")}

	case <-ctx.Done():
		go s.drain(results)
		return nil, ctx.Err()
	}
}

// drain waits for an abandoned read, releases its frame and closes the
// capture if Close ran in the meantime.
func (s *VideoSource) drain(results chan readResult) {
	res := <-results
	res.img.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = nil
	if s.closed {
		s.capture.Close()
	}
}

// Close releases the capture device. With a read still in flight the device
// is released once that read returns.
func (s *VideoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.inflight != nil {
		return nil
	}
	return s.capture.Close()
}
