package model

import (
	"fmt"
	"strings"
)

// GridKey identifies one (station, calendar date, cutoff time) cell of the
// forecast grid. Cutoff times are carried in both station-local and UTC form;
// the composite wire format uses the local form. A GridKey is immutable once
// computed.
type GridKey struct {
	// Station is the station code (e.g., "DAB5").
	Station string
	// Date is the calendar date of the slot in "2006-01-02" form.
	Date string
	// CutoffLocal is the station-local cutoff time in "15:04:05" form.
	CutoffLocal string
	// CutoffUTC is the UTC cutoff time in "15:04:05" form.
	CutoffUTC string
}

// String returns the composite wire form "{date}#{station}#{time}", where
// time is the station-local cutoff.
func (k GridKey) String() string {
	return fmt.Sprintf("%s#%s#%s", k.Date, k.Station, k.CutoffLocal)
}

// SlotKey returns the (station, local cutoff time) pair used for the
// planned-versus-override join, which matches across dates.
func (k GridKey) SlotKey() string {
	return k.Station + "#" + k.CutoffLocal
}

// ParseGridKey parses the composite wire form "{date}#{station}#{time}".
// The UTC cutoff is not carried on the wire and is left empty.
func ParseGridKey(s string) (GridKey, error) {
	parts := strings.Split(s, "#")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return GridKey{}, fmt.Errorf("malformed grid key %q: want {date}#{station}#{time}", s)
	}
	return GridKey{
		Date:        parts[0],
		Station:     parts[1],
		CutoffLocal: parts[2],
	}, nil
}
