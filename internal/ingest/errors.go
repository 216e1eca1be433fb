package ingest

import "errors"

// ErrMalformedRow marks a row that could not be decoded into its record type.
// Malformed rows are counted and dropped; they never abort a load.
var ErrMalformedRow = errors.New("ingest: malformed row")

// ErrSourceUnavailable marks a source that could not be fetched at all. The
// loader degrades the affected stream to empty and records a warning; only
// the absence of the primary joined dataset is fatal downstream.
var ErrSourceUnavailable = errors.New("ingest: source unavailable")
