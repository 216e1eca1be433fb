package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/stco/stationrecon/internal/domain/model"
	"github.com/stco/stationrecon/internal/join"
	"github.com/stco/stationrecon/internal/support/logger"
	"github.com/stco/stationrecon/internal/timegrid"
)

// Report summarizes one reconciliation run per stage: what each source
// yielded, what the join kept and dropped, and how the cell set breaks down.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Stats join.Stats `json:"stats"`

	// Availability tallies cells per tier.
	Availability map[string]int `json:"availability"`
	// StationsPerBucket counts distinct stations per timezone bucket.
	StationsPerBucket map[string]int `json:"stations_per_bucket"`

	AnomalousCells int  `json:"anomalous_cells"`
	FlaggedCells   int  `json:"flagged_cells"`
	HasSetupData   bool `json:"has_setup_data"`

	// Warnings lists degraded sources and other non-fatal conditions.
	Warnings    []string `json:"warnings,omitempty"`
	DroppedRows int      `json:"dropped_rows"`
}

// Builder accumulates a run's report.
type Builder struct {
	report Report
	norm   *timegrid.Normalizer
}

func NewBuilder(norm *timegrid.Normalizer) *Builder {
	return &Builder{
		report: Report{
			RunID:             uuid.NewString(),
			StartedAt:         time.Now().UTC(),
			Availability:      make(map[string]int),
			StationsPerBucket: make(map[string]int),
		},
		norm: norm,
	}
}

// RunID is assigned at construction so callers can persist cells under the
// run before the report is finalized.
func (b *Builder) RunID() string {
	return b.report.RunID
}

func (b *Builder) AddWarning(msg string) *Builder {
	b.report.Warnings = append(b.report.Warnings, msg)
	return b
}

func (b *Builder) SetDroppedRows(n int) *Builder {
	b.report.DroppedRows = n
	return b
}

func (b *Builder) SetStats(stats join.Stats) *Builder {
	b.report.Stats = stats
	return b
}

func (b *Builder) SetClassification(anomalous, flagged int, hasSetup bool) *Builder {
	b.report.AnomalousCells = anomalous
	b.report.FlaggedCells = flagged
	b.report.HasSetupData = hasSetup
	return b
}

// AddCells tallies availability tiers and per-bucket station counts.
func (b *Builder) AddCells(cells []model.JoinedCell) *Builder {
	seen := map[string]bool{}
	for i := range cells {
		c := &cells[i]
		b.report.Availability[c.Availability]++
		if !seen[c.Key.Station] {
			seen[c.Key.Station] = true
			b.report.StationsPerBucket[b.norm.Bucket(c.Key.Station)]++
		}
	}
	return b
}

// Build stamps the finish time and returns the report.
func (b *Builder) Build() Report {
	b.report.FinishedAt = time.Now().UTC()
	r := b.report
	logger.Infof("run %s: %d cells, %d dropped rows, %d warnings",
		r.RunID, r.Stats.Cells, r.DroppedRows, len(r.Warnings))
	return r
}
