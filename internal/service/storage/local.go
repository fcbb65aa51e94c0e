package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// LocalBackend writes artifacts into a directory on the local disk.
type LocalBackend struct {
	dir string
}

// NewLocalBackend creates dir if needed.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "error creating fallback directory")
	}
	return &LocalBackend{dir: dir}, nil
}

func (b *LocalBackend) Name() string { return "local:" + b.dir }

// Dir returns the backing directory.
func (b *LocalBackend) Dir() string { return b.dir }

// Put writes through a temp file so readers never see a partial artifact.
func (b *LocalBackend) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := b.Path(key)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(b.dir, ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", errors.Wrapf(err, "error saving %s", key)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrapf(err, "error saving %s", key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Wrapf(err, "error saving %s", key)
	}
	return path, nil
}

// Read returns the stored bytes of key.
func (b *LocalBackend) Read(key string) ([]byte, error) {
	path, err := b.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", key)
	}
	return data, nil
}

// Remove deletes key, ignoring a missing file.
func (b *LocalBackend) Remove(key string) error {
	path, err := b.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove %s", key)
	}
	return nil
}

// Path resolves key inside the directory and rejects anything that escapes it.
func (b *LocalBackend) Path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." {
		return "", errors.Errorf("invalid artifact name %q", key)
	}
	return filepath.Join(b.dir, key), nil
}
