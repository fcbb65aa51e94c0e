package storage

import "context"

// Backend stores one encoded artifact under a key.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Put stores data under key and returns where it ended up.
	Put(ctx context.Context, key string, data []byte, contentType string) (location string, err error)
}
