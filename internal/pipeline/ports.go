package pipeline

import (
	"context"
	"errors"
)

// ErrNoMoreItems is returned by ItemReader.Read when the source is exhausted.
var ErrNoMoreItems = errors.New("pipeline: no more items")

// ItemReader is the interface for a data reading stage.
// O is the type of item to be read.
type ItemReader[O any] interface {
	// Open opens the underlying resource.
	Open(ctx context.Context) error
	// Read reads the next item. Returns ErrNoMoreItems when the source is
	// exhausted.
	Read(ctx context.Context) (O, error)
	// Close closes the underlying resource.
	Close(ctx context.Context) error
}

// ItemProcessor is the interface for an item transformation stage.
// I is the type of input item, O is the type of output item.
type ItemProcessor[I, O any] interface {
	// Process transforms an input item. A nil output with a nil error means
	// the item was filtered.
	Process(ctx context.Context, item I) (*O, error)
}

// ItemWriter is the interface for a data writing stage.
// I is the type of item to be written.
type ItemWriter[I any] interface {
	// Open opens the underlying resource.
	Open(ctx context.Context) error
	// Write persists a batch of items.
	Write(ctx context.Context, items []I) error
	// Close flushes and closes the underlying resource.
	Close(ctx context.Context) error
}
