package timegrid

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stco/stationrecon/internal/domain/model"
)

// ErrMissingTimezone marks a station absent from the timezone table. Rows for
// such stations are counted and dropped, never guessed.
var ErrMissingTimezone = errors.New("timegrid: station has no timezone mapping")

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Table maps a station code to its IANA timezone name.
type Table map[string]string

// Normalizer converts the three upstream temporal encodings to canonical grid
// keys: station-local wall-clock strings, UTC instants, and epoch-millisecond
// timestamps. Location lookups are cached; a Normalizer is safe for
// concurrent use.
type Normalizer struct {
	table Table

	mu        sync.RWMutex
	locations map[string]*time.Location
}

func NewNormalizer(table Table) *Normalizer {
	return &Normalizer{
		table:     table,
		locations: make(map[string]*time.Location),
	}
}

// Location resolves the station's timezone. It returns ErrMissingTimezone
// (wrapped) when the station is not in the table or the zone name fails to
// load.
func (n *Normalizer) Location(station string) (*time.Location, error) {
	n.mu.RLock()
	loc, ok := n.locations[station]
	n.mu.RUnlock()
	if ok {
		return loc, nil
	}

	name, ok := n.table[station]
	if !ok {
		return nil, fmt.Errorf("station %q: %w", station, ErrMissingTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("station %q zone %q: %w", station, name, ErrMissingTimezone)
	}

	n.mu.Lock()
	n.locations[station] = loc
	n.mu.Unlock()
	return loc, nil
}

// FromLocal builds a grid key from a station-local date and cutoff time
// string, deriving the UTC cutoff through the station timezone.
func (n *Normalizer) FromLocal(station, date, cutoffLocal string) (model.GridKey, error) {
	loc, err := n.Location(station)
	if err != nil {
		return model.GridKey{}, err
	}
	t, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+cutoffLocal, loc)
	if err != nil {
		return model.GridKey{}, fmt.Errorf("station %q: parse local cutoff %q %q: %w", station, date, cutoffLocal, err)
	}
	return n.key(station, t), nil
}

// FromUTC builds a grid key from a UTC instant, deriving the local date and
// cutoff through the station timezone.
func (n *Normalizer) FromUTC(station string, instant time.Time) (model.GridKey, error) {
	loc, err := n.Location(station)
	if err != nil {
		return model.GridKey{}, err
	}
	return n.key(station, instant.In(loc)), nil
}

// FromEpochMillis builds a grid key from an epoch-milliseconds timestamp, the
// encoding the override stream carries.
func (n *Normalizer) FromEpochMillis(station string, ms int64) (model.GridKey, error) {
	return n.FromUTC(station, time.UnixMilli(ms).UTC())
}

func (n *Normalizer) key(station string, local time.Time) model.GridKey {
	return model.GridKey{
		Station:     station,
		Date:        local.Format(dateLayout),
		CutoffLocal: local.Format(timeLayout),
		CutoffUTC:   local.UTC().Format(timeLayout),
	}
}

// Stations returns the station codes present in the table.
func (n *Normalizer) Stations() []string {
	out := make([]string, 0, len(n.table))
	for s := range n.table {
		out = append(out, s)
	}
	return out
}
