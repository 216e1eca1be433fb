package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/stco/stationrecon/internal/pipeline"
	"github.com/stco/stationrecon/internal/support/logger"
)

// JSONArrayReader streams items of a top-level JSON array into typed records.
// The telemetry and override streams both arrive in this shape.
type JSONArrayReader[T any] struct {
	source Source

	rc      io.ReadCloser
	dec     *json.Decoder
	dropped int
}

func NewJSONArrayReader[T any](source Source) *JSONArrayReader[T] {
	return &JSONArrayReader[T]{source: source}
}

// Open fetches the source and consumes the opening bracket.
func (r *JSONArrayReader[T]) Open(ctx context.Context) error {
	rc, err := r.source.Fetch(ctx)
	if err != nil {
		return err
	}
	r.rc = rc
	r.dec = json.NewDecoder(rc)

	tok, err := r.dec.Token()
	if err == io.EOF {
		r.dec = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedRow, r.source.Name(), err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("%w: %s: want top-level array, got %v", ErrMalformedRow, r.source.Name(), tok)
	}
	return nil
}

// Read returns the next element. Elements that are well-formed JSON but do
// not bind to T are counted and skipped; a syntactically broken stream ends
// the read with ErrMalformedRow.
func (r *JSONArrayReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if r.dec == nil || !r.dec.More() {
			return zero, pipeline.ErrNoMoreItems
		}
		var raw json.RawMessage
		if err := r.dec.Decode(&raw); err != nil {
			return zero, fmt.Errorf("%w: %s: %v", ErrMalformedRow, r.source.Name(), err)
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			r.dropped++
			logger.Warnf("%s: dropping undecodable element: %v", r.source.Name(), err)
			continue
		}
		return item, nil
	}
}

// Dropped returns the number of elements skipped as malformed.
func (r *JSONArrayReader[T]) Dropped() int { return r.dropped }

func (r *JSONArrayReader[T]) Close(ctx context.Context) error {
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc = nil
	return err
}

var _ pipeline.ItemReader[struct{}] = (*JSONArrayReader[struct{}])(nil)
