package join

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/stco/stationrecon/internal/domain/model"
	"github.com/stco/stationrecon/internal/support/logger"
	"github.com/stco/stationrecon/internal/timegrid"
)

// ErrNoJoinMatch marks a telemetry group that matched no joined cell. Such
// groups are dropped from the cell's series and counted, never fatal.
var ErrNoJoinMatch = errors.New("join: telemetry group has no matching cell")

// Window optionally restricts which override modifications participate in the
// join. Zero bounds are open.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) contains(ms int64) bool {
	t := time.UnixMilli(ms).UTC()
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// Stats counts what each join stage kept and dropped; the results report
// renders them per stage.
type Stats struct {
	PlannedRows          int
	OverrideRows         int
	TelemetryRows        int
	Cells                int
	DroppedMissingTZ     int
	OverridesOutOfWindow int
	DroppedSubMinute     int
	DroppedNoJoinMatch   int
}

// Groups holds one cell's classified telemetry, each slice ordered by
// ascending horizon rank.
type Groups struct {
	Target []model.TelemetrySnapshot
	Match  []model.TelemetrySnapshot
}

// Result is the immutable product of one reconciliation run.
type Result struct {
	Cells []model.JoinedCell
	// Groups maps a cell's composite grid key to its classified telemetry.
	Groups map[string]Groups
	Stats  Stats
}

// Engine reconciles the planned, override, and telemetry streams into
// JoinedCells with classified telemetry groups.
type Engine struct {
	normalizer *timegrid.Normalizer
	window     Window
}

func NewEngine(normalizer *timegrid.Normalizer, window Window) *Engine {
	return &Engine{normalizer: normalizer, window: window}
}

// Run performs Step A (planned × override full outer join) and Step B
// (× telemetry classification) over the three streams.
func (e *Engine) Run(ctx context.Context, planned []model.PlannedRecord, overrides []model.OverrideRecord, telemetry []model.TelemetrySnapshot) (*Result, error) {
	res := &Result{Groups: make(map[string]Groups)}
	res.Stats.PlannedRows = len(planned)
	res.Stats.OverrideRows = len(overrides)
	res.Stats.TelemetryRows = len(telemetry)

	cells, err := e.joinPlannedOverride(ctx, planned, overrides, &res.Stats)
	if err != nil {
		return nil, err
	}
	res.Cells = cells
	res.Stats.Cells = len(cells)

	classifyTelemetry(cells, telemetry, res)
	return res, nil
}

// GroupTelemetry classifies telemetry against cells that were already joined,
// as when the viewer loads a persisted joined dataset instead of computing one.
func GroupTelemetry(cells []model.JoinedCell, telemetry []model.TelemetrySnapshot) *Result {
	res := &Result{Cells: cells, Groups: make(map[string]Groups)}
	res.Stats.Cells = len(cells)
	res.Stats.TelemetryRows = len(telemetry)
	classifyTelemetry(cells, telemetry, res)
	return res
}

// joinPlannedOverride is Step A: a full outer join on (station, local cutoff
// time). Each planned row keeps its own date; an override with no planned
// counterpart becomes a list-only cell on its own derived date.
func (e *Engine) joinPlannedOverride(ctx context.Context, planned []model.PlannedRecord, overrides []model.OverrideRecord, stats *Stats) ([]model.JoinedCell, error) {
	// Latest in-window modification wins per slot.
	overrideBySlot := make(map[string]*model.OverrideRecord)
	for i := range overrides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o := &overrides[i]
		if !e.window.contains(o.EpochMillis) {
			stats.OverridesOutOfWindow++
			continue
		}
		key, err := e.normalizer.FromEpochMillis(o.Station, o.EpochMillis)
		if err != nil {
			stats.DroppedMissingTZ++
			logger.Warnf("dropping override for %s: %v", o.Station, err)
			continue
		}
		o.Date = key.Date
		o.CutoffLocal = key.CutoffLocal
		o.CutoffUTC = key.CutoffUTC
		slot := key.SlotKey()
		if prev, ok := overrideBySlot[slot]; !ok || o.EpochMillis > prev.EpochMillis {
			overrideBySlot[slot] = o
		}
	}

	var cells []model.JoinedCell
	matchedSlots := make(map[string]bool)
	for i := range planned {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := &planned[i]
		key, err := e.normalizer.FromLocal(p.Station, p.Date, p.CutoffLocal)
		if err != nil {
			stats.DroppedMissingTZ++
			logger.Warnf("dropping planned row for %s: %v", p.Station, err)
			continue
		}
		p.CutoffUTC = key.CutoffUTC

		cell := model.JoinedCell{
			Key:          key,
			Planned:      p,
			Availability: model.AvailabilityVPOnly,
		}
		slot := key.SlotKey()
		if o, ok := overrideBySlot[slot]; ok {
			cell.Override = o
			cell.Availability = model.AvailabilityBoth
			matchedSlots[slot] = true
		}
		cells = append(cells, cell)
	}

	// Unmatched overrides surface as list-only cells on their derived date.
	for slot, o := range overrideBySlot {
		if matchedSlots[slot] {
			continue
		}
		cells = append(cells, model.JoinedCell{
			Key: model.GridKey{
				Station:     o.Station,
				Date:        o.Date,
				CutoffLocal: o.CutoffLocal,
				CutoffUTC:   o.CutoffUTC,
			},
			Override:     o,
			Availability: model.AvailabilityListOnly,
		})
	}

	// Deterministic output order regardless of map iteration.
	sort.Slice(cells, func(a, b int) bool {
		return cells[a].Key.String() < cells[b].Key.String()
	})
	return cells, nil
}

// classifyTelemetry is Step B: minute-zero snapshots join a cell on
// (station, cutoff time); the observed-on date then decides target versus
// match, target taking precedence when both apply.
func classifyTelemetry(cells []model.JoinedCell, telemetry []model.TelemetrySnapshot, res *Result) {
	type dates struct {
		target  string
		match   string
		cellKey string
	}
	bySlot := make(map[string][]dates)
	for i := range cells {
		c := &cells[i]
		d := dates{cellKey: c.Key.String()}
		if c.Planned != nil {
			d.target = c.Planned.Date
		}
		if c.Override != nil {
			d.match = c.Override.MatchDate
		}
		slot := c.Key.SlotKey()
		bySlot[slot] = append(bySlot[slot], d)
	}

	for _, t := range telemetry {
		if !t.MinuteZero() {
			res.Stats.DroppedSubMinute++
			continue
		}
		slot := t.Station + "#" + t.GridTime
		candidates, ok := bySlot[slot]
		if !ok {
			res.Stats.DroppedNoJoinMatch++
			continue
		}
		claimed := false
		for _, d := range candidates {
			// Target precedence: when the observed-on date satisfies
			// both criteria the group is classified target only.
			switch {
			case d.target != "" && t.Date == d.target:
				g := res.Groups[d.cellKey]
				g.Target = append(g.Target, t)
				res.Groups[d.cellKey] = g
				claimed = true
			case d.match != "" && t.Date == d.match:
				g := res.Groups[d.cellKey]
				g.Match = append(g.Match, t)
				res.Groups[d.cellKey] = g
				claimed = true
			}
		}
		if !claimed {
			res.Stats.DroppedNoJoinMatch++
		}
	}

	for key, g := range res.Groups {
		sortByRank(g.Target)
		sortByRank(g.Match)
		res.Groups[key] = g
	}
}

func sortByRank(rows []model.TelemetrySnapshot) {
	sort.SliceStable(rows, func(a, b int) bool {
		return rows[a].HorizonRank < rows[b].HorizonRank
	})
}
