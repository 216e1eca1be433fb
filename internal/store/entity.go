package store

import (
	"strings"
	"time"

	"github.com/stco/stationrecon/internal/domain/model"
)

// CellSnapshot is the persisted form of one JoinedCell within a run.
type CellSnapshot struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	RunID        string    `gorm:"column:run_id;size:36;index:idx_cell_snapshots_run"`
	GridKey      string    `gorm:"column:grid_key;size:64;index:idx_cell_snapshots_key"`
	Station      string    `gorm:"column:station;size:16"`
	Date         string    `gorm:"column:slot_date;size:10"`
	CutoffLocal  string    `gorm:"column:cutoff_local;size:8"`
	CutoffUTC    string    `gorm:"column:cutoff_utc;size:8"`
	Availability string    `gorm:"column:availability;size:16"`
	Forecast     float64   `gorm:"column:forecast"`
	Adjusted     float64   `gorm:"column:adjusted"`
	SoftCap      float64   `gorm:"column:soft_cap"`
	HardCap      float64   `gorm:"column:hard_cap"`
	Utilization  float64   `gorm:"column:utilization"`
	Confidence   string    `gorm:"column:confidence;size:64"`
	Anomalous    bool      `gorm:"column:anomalous"`
	Severity     *int      `gorm:"column:severity"`
	Flags        string    `gorm:"column:flags;size:256"`
	TabGroup     string    `gorm:"column:tab_group;size:32"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// TableName fixes the table name independently of gorm's pluralization.
func (CellSnapshot) TableName() string { return "cell_snapshots" }

// newCellSnapshot flattens a JoinedCell for persistence.
func newCellSnapshot(runID string, c *model.JoinedCell) CellSnapshot {
	s := CellSnapshot{
		RunID:        runID,
		GridKey:      c.Key.String(),
		Station:      c.Key.Station,
		Date:         c.Key.Date,
		CutoffLocal:  c.Key.CutoffLocal,
		CutoffUTC:    c.Key.CutoffUTC,
		Availability: c.Availability,
		Confidence:   c.Confidence,
		Anomalous:    c.Anomalous,
		Severity:     c.Severity,
		Flags:        strings.Join(c.Flags, ","),
		TabGroup:     c.TabGroup,
	}
	if c.Planned != nil {
		s.Forecast = c.Planned.Forecast
		s.SoftCap = c.Planned.SoftCap
		s.HardCap = c.Planned.HardCap
		s.Utilization = c.Planned.Utilization
	}
	if c.Override != nil {
		s.Adjusted = c.Override.Adjusted
	}
	return s
}
