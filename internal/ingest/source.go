package ingest

import (
	"context"

	"motorwatch/internal/model"
)

// Source is a pull-based frame source for the streaming loop.
// Next returns io.EOF once the stream has ended; that is a clean stop, not a fault.
type Source interface {
	Next(ctx context.Context) (*model.Frame, error)
	Kind() model.SourceKind
	Close() error
}
