package chart

import (
	"sort"

	"github.com/stco/stationrecon/internal/domain/model"
	"github.com/stco/stationrecon/internal/join"
)

// Series type tags carried on the bundle for renderers.
const (
	SeriesTypeLine   = "line"
	SeriesTypeBand   = "band"
	SeriesTypeMarker = "marker"
)

var markerStyles = map[string]model.SeriesStyle{
	model.PBATypeVPAutomated: {Color: "#1f77b4", Marker: "circle"},
	model.PBATypeVPWeekly:    {Color: "#9467bd", Marker: "diamond"},
	model.PBATypeVPVOVI:      {Color: "#d62728", Marker: "star"},
}

var markerNames = map[string]string{
	model.PBATypeVPAutomated: "automated forecast",
	model.PBATypeVPWeekly:    "weekly forecast",
	model.PBATypeVPVOVI:      "adjusted forecast",
}

// Shape builds the chart model for one grid key from its classified
// telemetry groups. Series emission order is significant: renderers stack
// later series on top, and band fills pair with the trace emitted
// immediately before them.
func Shape(key model.GridKey, groups join.Groups) model.TimeSeriesBundle {
	target := lineRows(groups.Target)
	match := lineRows(groups.Match)

	bundle := model.TimeSeriesBundle{
		Key:           key,
		CategoryOrder: categoryOrder(groups),
	}

	bundle.Series = append(bundle.Series, groupSeries("target", target, "#2ca02c", "#ff7f0e")...)
	bundle.Series = append(bundle.Series, groupSeries("match", match, "#7f7f7f", "#c5b0d5")...)
	bands := bandSeries(target)
	bundle.Series = append(bundle.Series, bands...)
	// The cumulative lines ride on the same full p10/p90 coverage condition
	// as the bands: partial percentile coverage suppresses both.
	if len(bands) > 0 {
		bundle.Series = append(bundle.Series, cumulativeSeries(target)...)
	}
	bundle.Series = append(bundle.Series, markerSeries(groups)...)
	return bundle
}

// lineRows filters a classified group to its line-bearing rows, leaving the
// single-point reference marker rows behind.
func lineRows(rows []model.TelemetrySnapshot) []model.TelemetrySnapshot {
	var out []model.TelemetrySnapshot
	for _, r := range rows {
		switch r.Type {
		case model.PBATypeVPAutomated, model.PBATypeVPWeekly, model.PBATypeVPVOVI:
		default:
			out = append(out, r)
		}
	}
	return out
}

// categoryOrder builds the horizon-label domain ordered by the minimum rank
// observed per label. Rank is authoritative; the label string never sorts.
func categoryOrder(groups join.Groups) []string {
	minRank := map[string]int{}
	consider := func(rows []model.TelemetrySnapshot) {
		for _, r := range rows {
			label := r.HorizonLabel()
			if rank, ok := minRank[label]; !ok || r.HorizonRank < rank {
				minRank[label] = r.HorizonRank
			}
		}
	}
	consider(groups.Target)
	consider(groups.Match)

	labels := make([]string, 0, len(minRank))
	for label := range minRank {
		labels = append(labels, label)
	}
	sort.SliceStable(labels, func(a, b int) bool {
		if minRank[labels[a]] != minRank[labels[b]] {
			return minRank[labels[a]] < minRank[labels[b]]
		}
		return labels[a] < labels[b]
	})
	return labels
}

// groupSeries emits the baseline and capacity-ceiling series of one
// non-empty group. The two cap series share a legend group; the hard cap
// rides along without its own legend entry.
func groupSeries(group string, rows []model.TelemetrySnapshot, baseColor, capColor string) []model.Series {
	if len(rows) == 0 {
		return nil
	}
	capsGroup := group + "-caps"
	return []model.Series{
		{
			Name:           group + " scheduled",
			Type:           SeriesTypeLine,
			Points:         points(rows, func(r *model.TelemetrySnapshot) (float64, bool) { return r.Scheduled, true }),
			Style:          model.SeriesStyle{Color: baseColor, LineWidth: 2},
			LegendGroup:    group,
			ShowInLegend:   true,
			DefaultVisible: true,
		},
		{
			Name:           group + " slammed",
			Type:           SeriesTypeLine,
			Points:         points(rows, func(r *model.TelemetrySnapshot) (float64, bool) { return r.Slammed, true }),
			Style:          model.SeriesStyle{Color: baseColor, LineDash: "dot", LineWidth: 2},
			LegendGroup:    group,
			ShowInLegend:   true,
			DefaultVisible: true,
		},
		{
			Name:           group + " soft cap",
			Type:           SeriesTypeLine,
			Points:         points(rows, func(r *model.TelemetrySnapshot) (float64, bool) { return r.SoftCap, true }),
			Style:          model.SeriesStyle{Color: capColor, LineDash: "dash", LineWidth: 1},
			LegendGroup:    capsGroup,
			ShowInLegend:   true,
			DefaultVisible: true,
		},
		{
			Name:           group + " hard cap",
			Type:           SeriesTypeLine,
			Points:         points(rows, func(r *model.TelemetrySnapshot) (float64, bool) { return r.HardCap, true }),
			Style:          model.SeriesStyle{Color: capColor, LineWidth: 1},
			LegendGroup:    capsGroup,
			ShowInLegend:   false,
			DefaultVisible: true,
		},
	}
}

// bandSeries emits the nested uncertainty bands of the target group. A band
// appears only when every point carries both of its bounds; the lower bound
// must come immediately before its paired fill or the fill renders against
// the wrong trace.
func bandSeries(target []model.TelemetrySnapshot) []model.Series {
	if len(target) == 0 {
		return nil
	}
	// The outer p10/p90 condition gates all bands: no outer band, no
	// inner band.
	outer, ok := band(target, "p10/p90", "#bcdff1",
		func(r *model.TelemetrySnapshot) *float64 { return r.P10 },
		func(r *model.TelemetrySnapshot) *float64 { return r.P90 })
	if !ok {
		return nil
	}
	out := outer
	if inner, ok := band(target, "p30/p70", "#7fbde0",
		func(r *model.TelemetrySnapshot) *float64 { return r.P30 },
		func(r *model.TelemetrySnapshot) *float64 { return r.P70 }); ok {
		out = append(out, inner...)
	}
	return out
}

func band(rows []model.TelemetrySnapshot, name, color string, lower, upper func(*model.TelemetrySnapshot) *float64) ([]model.Series, bool) {
	for i := range rows {
		if lower(&rows[i]) == nil || upper(&rows[i]) == nil {
			return nil, false
		}
	}
	lowerSeries := model.Series{
		Name:           name + " lower",
		Type:           SeriesTypeBand,
		Points:         points(rows, func(r *model.TelemetrySnapshot) (float64, bool) { return *lower(r), true }),
		Style:          model.SeriesStyle{Color: color, LineWidth: 0},
		LegendGroup:    name,
		ShowInLegend:   false,
		DefaultVisible: true,
	}
	upperSeries := model.Series{
		Name:           name + " band",
		Type:           SeriesTypeBand,
		Points:         points(rows, func(r *model.TelemetrySnapshot) (float64, bool) { return *upper(r), true }),
		Style:          model.SeriesStyle{Color: color, LineWidth: 0, FillToPrevious: true},
		LegendGroup:    name,
		ShowInLegend:   true,
		DefaultVisible: true,
	}
	return []model.Series{lowerSeries, upperSeries}, true
}

// cumulativeSeries emits the cumulative-median line plus its adjusted
// variant, the latter hidden until toggled.
func cumulativeSeries(target []model.TelemetrySnapshot) []model.Series {
	var out []model.Series
	if pts := points(target, func(r *model.TelemetrySnapshot) (float64, bool) {
		if r.CumMedian == nil {
			return 0, false
		}
		return *r.CumMedian, true
	}); len(pts) > 0 {
		out = append(out, model.Series{
			Name:           "cumulative median",
			Type:           SeriesTypeLine,
			Points:         pts,
			Style:          model.SeriesStyle{Color: "#17becf", LineWidth: 2},
			LegendGroup:    "cumulative",
			ShowInLegend:   true,
			DefaultVisible: true,
		})
	}
	if pts := points(target, func(r *model.TelemetrySnapshot) (float64, bool) {
		if r.CumMedianAdj == nil {
			return 0, false
		}
		return *r.CumMedianAdj, true
	}); len(pts) > 0 {
		out = append(out, model.Series{
			Name:           "cumulative median (adjusted)",
			Type:           SeriesTypeLine,
			Points:         pts,
			Style:          model.SeriesStyle{Color: "#17becf", LineDash: "dash", LineWidth: 2},
			LegendGroup:    "cumulative",
			ShowInLegend:   true,
			DefaultVisible: false,
		})
	}
	return out
}

// markerSeries emits at most one single-point reference marker per alternate
// forecast type, in the fixed rendering order.
func markerSeries(groups join.Groups) []model.Series {
	first := map[string]*model.TelemetrySnapshot{}
	claim := func(rows []model.TelemetrySnapshot) {
		for i := range rows {
			t := rows[i].Type
			if _, isMarker := markerStyles[t]; !isMarker {
				continue
			}
			if _, ok := first[t]; !ok {
				first[t] = &rows[i]
			}
		}
	}
	claim(groups.Target)
	claim(groups.Match)

	var out []model.Series
	for _, typ := range model.ReferenceMarkerOrder {
		r, ok := first[typ]
		if !ok {
			continue
		}
		out = append(out, model.Series{
			Name:           markerNames[typ],
			Type:           SeriesTypeMarker,
			Points:         []model.Point{{Category: r.HorizonLabel(), Value: r.Scheduled}},
			Style:          markerStyles[typ],
			LegendGroup:    typ,
			ShowInLegend:   true,
			DefaultVisible: true,
		})
	}
	return out
}

func points(rows []model.TelemetrySnapshot, value func(*model.TelemetrySnapshot) (float64, bool)) []model.Point {
	var out []model.Point
	for i := range rows {
		v, ok := value(&rows[i])
		if !ok {
			continue
		}
		out = append(out, model.Point{Category: rows[i].HorizonLabel(), Value: v})
	}
	return out
}
