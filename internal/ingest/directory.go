package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"motorwatch/internal/model"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// DirectorySource replays still images from a folder, oldest name first, and
// optionally keeps watching the folder for new files.
type DirectorySource struct {
	dir      string
	deviceID string
	pending  []string
	seen     map[string]bool
	watcher  *fsnotify.Watcher
}

// NewDirectorySource lists the images already in dir. With watch set, Next
// waits for new files instead of returning io.EOF once the backlog is done.
func NewDirectorySource(dir, deviceID string, watch bool) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	s := &DirectorySource{
		dir:      dir,
		deviceID: deviceID,
		seen:     make(map[string]bool),
	}

	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		s.pending = append(s.pending, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(s.pending)

	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, errors.Wrap(err, "failed to create directory watcher")
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, errors.Wrapf(err, "failed to watch %s", dir)
		}
		s.watcher = watcher
	}

	return s, nil
}

func (s *DirectorySource) Kind() model.SourceKind { return model.SourceDirectory }

// Next returns the next image. A file that cannot be decoded yields a
// DecodeError; the caller may skip it and keep pulling.
func (s *DirectorySource) Next(ctx context.Context) (*model.Frame, error) {
	for {
		if len(s.pending) > 0 {
			path := s.pending[0]
			s.pending = s.pending[1:]
			if s.seen[path] {
				continue
			}
			return s.load(path)
		}

		if s.watcher == nil {
			return nil, io.EOF
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil, io.EOF
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if isImageFile(event.Name) && !s.seen[event.Name] {
					s.pending = append(s.pending, event.Name)
				}
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil, io.EOF
			}
			return nil, &model.TransportFault{Transport: model.TransportStream, Err: err}
		}
	}
}

// load decodes one file. Files are only marked seen once they decode, so a
// file caught half-written is retried on its next write event.
func (s *DirectorySource) load(path string) (*model.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.DecodeError{Err: errors.Wrapf(err, "failed to load %s", filepath.Base(path))}
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", filepath.Base(path))
	}
	s.seen[path] = true

	frame := model.NewFrame(img, s.deviceID, model.SourceDirectory, time.Now().UTC())
	frame.Name = filepath.Base(path)
	return frame, nil
}

// Close stops watching the directory.
func (s *DirectorySource) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

func isImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}
