package model

// Facet is one selectable slice of the joined dataset, with its cell count.
type Facet struct {
	// Key is the stable machine identifier of the facet.
	Key string `json:"key"`
	// Label is the human-readable name shown in pickers.
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Point is one (category, value) pair of a series. Category is a horizon
// label from the bundle's CategoryOrder.
type Point struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// SeriesStyle carries the rendering hints attached to a series.
type SeriesStyle struct {
	Color     string `json:"color,omitempty"`
	LineDash  string `json:"line_dash,omitempty"`
	LineWidth int    `json:"line_width,omitempty"`
	Marker    string `json:"marker,omitempty"`
	// FillToPrevious fills the area between this series and the series
	// emitted immediately before it; the shaper relies on emission order
	// to pair band bounds with their fills.
	FillToPrevious bool `json:"fill_to_previous,omitempty"`
}

// Series is one named trace of a time-series bundle.
type Series struct {
	Name   string      `json:"name"`
	Type   string      `json:"type,omitempty"`
	Points []Point     `json:"points"`
	Style  SeriesStyle `json:"style"`
	// LegendGroup ties traces that toggle together; a group shows a single
	// legend entry.
	LegendGroup    string `json:"legend_group,omitempty"`
	ShowInLegend   bool   `json:"show_in_legend"`
	DefaultVisible bool   `json:"default_visible"`
}

// TimeSeriesBundle is the shaped chart model for one grid slot: an explicit
// category domain plus the ordered traces drawn over it.
type TimeSeriesBundle struct {
	Key GridKey `json:"key"`
	// CategoryOrder is the full horizon-label domain, ordered by the
	// minimum horizon rank observed per label, ascending (nearest first).
	CategoryOrder []string `json:"category_order"`
	Series        []Series `json:"series"`
}
