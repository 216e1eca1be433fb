package model

import (
	"encoding/json"
	"fmt"
)

// Telemetry row types. Target rows belong to the grid slot being inspected,
// match rows are comparable historical slots, and the three vp_* types are
// single-point reference markers.
const (
	PBATypeTarget      = "target"
	PBATypeMatch       = "match"
	PBATypeVPAutomated = "vp_automated"
	PBATypeVPWeekly    = "vp_weekly"
	PBATypeVPVOVI      = "vp_vovi"
)

// ReferenceMarkerOrder is the fixed rendering order of the single-point
// reference marker series; later entries draw on top.
var ReferenceMarkerOrder = []string{PBATypeVPAutomated, PBATypeVPWeekly, PBATypeVPVOVI}

// TelemetrySnapshot is one intraday telemetry row. Rows are keyed by the
// composite grid key plus a horizon rank; only minute-zero rows are eligible
// for joining, finer-grained rows are not part of the reconciled record.
type TelemetrySnapshot struct {
	Station  string `json:"station"`
	Date     string `json:"date"`
	GridTime string `json:"grid_time"`
	Type     string `json:"pba_type"`

	// HorizonRank orders snapshot horizons from farthest (largest) to
	// nearest (smallest). Category ordering always follows rank, never the
	// lexical order of labels.
	HorizonRank   int `json:"pba_horizon_rank"`
	HorizonDay    int `json:"horizon_day"`
	HorizonHour   int `json:"horizon_hour"`
	HorizonMinute int `json:"horizon_minute"`

	Scheduled   float64 `json:"scheduled"`
	Slammed     float64 `json:"slammed"`
	SoftCap     float64 `json:"soft_cap"`
	HardCap     float64 `json:"hard_cap"`
	Utilization float64 `json:"utilization"`

	P10 *float64 `json:"p10,omitempty"`
	P30 *float64 `json:"p30,omitempty"`
	P50 *float64 `json:"p50,omitempty"`
	P70 *float64 `json:"p70,omitempty"`
	P90 *float64 `json:"p90,omitempty"`

	CumMedian    *float64 `json:"cum_median,omitempty"`
	CumMedianAdj *float64 `json:"cum_median_adj,omitempty"`
}

// telemetryWire is the upstream JSON shape of a snapshot: rows carry the
// composite grid key string plus a pba_-prefixed rank. The split key fields
// and the bare rank name are accepted as a fallback.
type telemetryWire struct {
	GridKey  string `json:"grid_key"`
	Station  string `json:"station"`
	Date     string `json:"date"`
	GridTime string `json:"grid_time"`
	Type     string `json:"pba_type"`

	PBAHorizonRank *int `json:"pba_horizon_rank"`
	HorizonRank    *int `json:"horizon_rank"`
	HorizonDay     int  `json:"horizon_day"`
	HorizonHour    int  `json:"horizon_hour"`
	HorizonMinute  int  `json:"horizon_minute"`

	Scheduled   float64 `json:"scheduled"`
	Slammed     float64 `json:"slammed"`
	SoftCap     float64 `json:"soft_cap"`
	HardCap     float64 `json:"hard_cap"`
	Utilization float64 `json:"utilization"`

	P10 *float64 `json:"p10"`
	P30 *float64 `json:"p30"`
	P50 *float64 `json:"p50"`
	P70 *float64 `json:"p70"`
	P90 *float64 `json:"p90"`

	CumMedian    *float64 `json:"cum_median"`
	CumMedianAdj *float64 `json:"cum_median_adj"`
}

// UnmarshalJSON decodes the upstream row shape. A present grid_key is
// authoritative for station, date, and grid time.
func (t *TelemetrySnapshot) UnmarshalJSON(data []byte) error {
	var w telemetryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.GridKey != "" {
		key, err := ParseGridKey(w.GridKey)
		if err != nil {
			return err
		}
		w.Date, w.Station, w.GridTime = key.Date, key.Station, key.CutoffLocal
	}
	t.Station = w.Station
	t.Date = w.Date
	t.GridTime = w.GridTime
	t.Type = w.Type
	switch {
	case w.PBAHorizonRank != nil:
		t.HorizonRank = *w.PBAHorizonRank
	case w.HorizonRank != nil:
		t.HorizonRank = *w.HorizonRank
	default:
		t.HorizonRank = 0
	}
	t.HorizonDay = w.HorizonDay
	t.HorizonHour = w.HorizonHour
	t.HorizonMinute = w.HorizonMinute
	t.Scheduled = w.Scheduled
	t.Slammed = w.Slammed
	t.SoftCap = w.SoftCap
	t.HardCap = w.HardCap
	t.Utilization = w.Utilization
	t.P10 = w.P10
	t.P30 = w.P30
	t.P50 = w.P50
	t.P70 = w.P70
	t.P90 = w.P90
	t.CumMedian = w.CumMedian
	t.CumMedianAdj = w.CumMedianAdj
	return nil
}

// GridKeyString returns the composite "{date}#{station}#{time}" key the
// snapshot joins on.
func (t *TelemetrySnapshot) GridKeyString() string {
	return fmt.Sprintf("%s#%s#%s", t.Date, t.Station, t.GridTime)
}

// MinuteZero reports whether the snapshot sits on a whole-hour horizon.
// Only such rows are eligible for the join; sub-hour rows are counted and
// dropped.
func (t *TelemetrySnapshot) MinuteZero() bool { return t.HorizonMinute == 0 }

// HorizonLabel renders the snapshot's horizon as a compact "<D>d<HH>h"
// category label, e.g. rank day 2 hour 12 becomes "2d12h".
func (t *TelemetrySnapshot) HorizonLabel() string {
	return fmt.Sprintf("%dd%02dh", t.HorizonDay, t.HorizonHour)
}
