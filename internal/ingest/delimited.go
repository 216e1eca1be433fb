package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/stco/stationrecon/internal/pipeline"
	"github.com/stco/stationrecon/internal/support/configbinder"
	"github.com/stco/stationrecon/internal/support/logger"
)

// DelimitedReader streams rows of a header-led delimited file into typed
// records. Quoted fields escape embedded quotes by doubling them. Rows that
// fail to decode are counted and skipped.
type DelimitedReader[T any] struct {
	source Source
	comma  rune

	rc      io.ReadCloser
	csv     *csv.Reader
	header  []string
	dropped int
}

func NewDelimitedReader[T any](source Source, comma rune) *DelimitedReader[T] {
	if comma == 0 {
		comma = ','
	}
	return &DelimitedReader[T]{source: source, comma: comma}
}

// Open fetches the source and consumes the header row.
func (r *DelimitedReader[T]) Open(ctx context.Context) error {
	rc, err := r.source.Fetch(ctx)
	if err != nil {
		return err
	}
	r.rc = rc
	r.csv = csv.NewReader(rc)
	r.csv.Comma = r.comma
	r.csv.FieldsPerRecord = -1

	header, err := r.csv.Read()
	if err == io.EOF {
		r.header = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: header: %v", ErrMalformedRow, r.source.Name(), err)
	}
	r.header = header
	return nil
}

// Read returns the next decoded record, skipping rows it cannot decode. It
// returns pipeline.ErrNoMoreItems at end of input.
func (r *DelimitedReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if r.header == nil {
			return zero, pipeline.ErrNoMoreItems
		}
		row, err := r.csv.Read()
		if err == io.EOF {
			return zero, pipeline.ErrNoMoreItems
		}
		if err != nil {
			r.dropped++
			logger.Warnf("%s: dropping unparseable row: %v", r.source.Name(), err)
			continue
		}
		if len(row) != len(r.header) {
			r.dropped++
			logger.Warnf("%s: dropping row with %d fields, want %d", r.source.Name(), len(row), len(r.header))
			continue
		}

		// Empty columns stay at the record's zero value rather than
		// failing numeric conversion.
		fields := make(map[string]interface{}, len(r.header))
		for i, name := range r.header {
			if row[i] != "" {
				fields[name] = row[i]
			}
		}
		var out T
		if err := decodeRow(fields, &out); err != nil {
			r.dropped++
			logger.Warnf("%s: dropping undecodable row: %v", r.source.Name(), err)
			continue
		}
		return out, nil
	}
}

// Close releases the source. The dropped-row count survives Close.
func (r *DelimitedReader[T]) Close(ctx context.Context) error {
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc = nil
	return err
}

// Dropped returns the number of rows skipped as malformed.
func (r *DelimitedReader[T]) Dropped() int { return r.dropped }

// decodeRow binds a header-keyed row map onto a typed record. Weak typing
// lets numeric columns arrive as strings, which is all a delimited file can
// carry.
func decodeRow(fields map[string]interface{}, target interface{}) error {
	if err := configbinder.BindProperties(fields, target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	return nil
}

// ReadAll drains a reader into a slice, opening and closing it around the
// loop.
func ReadAll[T any](ctx context.Context, r pipeline.ItemReader[T]) ([]T, error) {
	if err := r.Open(ctx); err != nil {
		return nil, err
	}
	defer r.Close(ctx)

	var out []T
	for {
		item, err := r.Read(ctx)
		if err == pipeline.ErrNoMoreItems {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
}
