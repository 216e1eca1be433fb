package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/stco/stationrecon/internal/classify"
	"github.com/stco/stationrecon/internal/config"
	"github.com/stco/stationrecon/internal/domain/model"
	"github.com/stco/stationrecon/internal/export"
	"github.com/stco/stationrecon/internal/facet"
	"github.com/stco/stationrecon/internal/ingest"
	"github.com/stco/stationrecon/internal/join"
	"github.com/stco/stationrecon/internal/metrics"
	"github.com/stco/stationrecon/internal/pipeline"
	"github.com/stco/stationrecon/internal/report"
	"github.com/stco/stationrecon/internal/server"
	"github.com/stco/stationrecon/internal/store"
	"github.com/stco/stationrecon/internal/support/logger"
	"github.com/stco/stationrecon/internal/timegrid"
)

// Runner executes the two application modes: Setup reconciles the upstream
// streams into a persisted joined dataset, View loads a joined dataset and
// serves it.
type Runner struct {
	cfg      *config.Config
	norm     *timegrid.Normalizer
	engine   *join.Engine
	store    *store.SnapshotStore
	recorder metrics.Recorder
	exporter *export.ParquetExporter
}

func newRunner(
	cfg *config.Config,
	norm *timegrid.Normalizer,
	engine *join.Engine,
	snapshots *store.SnapshotStore,
	recorder metrics.Recorder,
	exporter *export.ParquetExporter,
) *Runner {
	return &Runner{
		cfg:      cfg,
		norm:     norm,
		engine:   engine,
		store:    snapshots,
		recorder: recorder,
		exporter: exporter,
	}
}

func (r *Runner) retryPolicy() pipeline.RetryPolicy {
	fr := r.cfg.Sources.FetchRetry
	return pipeline.NewFixedRetryPolicy(fr.MaxAttempts, time.Duration(fr.InitialIntervalMs)*time.Millisecond)
}

func (r *Runner) source(sc config.SourceConfig) ingest.Source {
	if sc.URL != "" {
		return ingest.NewHTTPSource(sc.URL, nil, r.retryPolicy())
	}
	return &ingest.FileSource{Path: sc.Path}
}

// readTimed wraps a full source read with fetch metrics.
func readTimed[T any](ctx context.Context, r *Runner, name string, reader pipeline.ItemReader[T]) ([]T, error) {
	started := time.Now()
	rows, err := ingest.ReadAll[T](ctx, reader)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.recorder.RecordSourceFetch(name, outcome, time.Since(started))
	return rows, err
}

// Setup runs the full reconciliation: fetch, join, classify, persist, export.
// The planned stream is mandatory; overrides and telemetry degrade to empty
// with a warning.
func (r *Runner) Setup(ctx context.Context) (report.Report, error) {
	started := time.Now()
	builder := report.NewBuilder(r.norm)
	dropped := 0

	plannedReader := ingest.NewDelimitedReader[model.PlannedRecord](r.source(r.cfg.Sources.Planned), ',')
	planned, err := readTimed(ctx, r, "planned", plannedReader)
	if err != nil {
		return report.Report{}, fmt.Errorf("planned stream: %w", err)
	}
	dropped += plannedReader.Dropped()

	overrideReader := ingest.NewJSONArrayReader[model.OverrideRecord](r.source(r.cfg.Sources.Overrides))
	overrides, err := readTimed(ctx, r, "overrides", overrideReader)
	if err != nil {
		logger.Warnf("override stream unavailable, continuing without overrides: %v", err)
		builder.AddWarning("override stream unavailable")
		overrides = nil
	} else {
		dropped += overrideReader.Dropped()
	}

	telemetryReader := ingest.NewJSONArrayReader[model.TelemetrySnapshot](r.source(r.cfg.Sources.Telemetry))
	telemetry, err := readTimed(ctx, r, "telemetry", telemetryReader)
	if err != nil {
		logger.Warnf("telemetry stream unavailable, continuing without telemetry: %v", err)
		builder.AddWarning("telemetry stream unavailable")
		telemetry = nil
	} else {
		dropped += telemetryReader.Dropped()
	}

	res, err := r.engine.Run(ctx, planned, overrides, telemetry)
	if err != nil {
		return report.Report{}, err
	}

	cls := classify.Apply(res.Cells, r.setupSnapshot(ctx))

	runID := builder.RunID()
	if err := r.store.SaveRun(ctx, runID, res.Cells); err != nil {
		return report.Report{}, err
	}

	if path := r.cfg.Sources.Joined.Path; path != "" {
		if err := writeJoinedFile(path, res.Cells); err != nil {
			return report.Report{}, err
		}
		logger.Infof("wrote %d joined cells to %s", len(res.Cells), path)
	}

	if r.exporter != nil {
		if err := r.exporter.Export(ctx, runID, res.Cells); err != nil {
			logger.Warnf("parquet export incomplete: %v", err)
			builder.AddWarning("parquet export incomplete")
		}
	}

	rep := builder.
		SetStats(res.Stats).
		SetDroppedRows(dropped).
		SetClassification(cls.Anomalous, cls.Flagged, cls.HasSetupData).
		AddCells(res.Cells).
		Build()
	r.recorder.RecordRun(time.Since(started), res.Stats, len(rep.Warnings))
	return rep, nil
}

// View loads a persisted joined dataset plus telemetry and assembles the run
// snapshot the HTTP API serves.
func (r *Runner) View(ctx context.Context) (*server.RunData, error) {
	started := time.Now()
	loader := ingest.NewLoader(r.source(r.cfg.Sources.Joined), r.source(r.cfg.Sources.Telemetry))
	loaded, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	res := join.GroupTelemetry(loaded.Cells, loaded.Telemetry)
	cls := classify.Apply(res.Cells, r.setupSnapshot(ctx))

	builder := report.NewBuilder(r.norm).
		SetStats(res.Stats).
		SetDroppedRows(loaded.DroppedRows).
		SetClassification(cls.Anomalous, cls.Flagged, cls.HasSetupData).
		AddCells(res.Cells)
	for _, w := range loaded.Warnings {
		builder.AddWarning(w)
	}
	rep := builder.Build()
	r.recorder.RecordRun(time.Since(started), res.Stats, len(rep.Warnings))

	logger.Infof("serving %d cells across %d facets", len(res.Cells), len(facet.Build(res.Cells, cls.HasSetupData)))
	return &server.RunData{
		Cells:        res.Cells,
		Groups:       res.Groups,
		Report:       rep,
		HasSetupData: cls.HasSetupData,
	}, nil
}

// setupSnapshot resolves the prior run used for the setup comparison. Any
// failure degrades to no comparison.
func (r *Runner) setupSnapshot(ctx context.Context) classify.SetupSnapshot {
	runID := r.cfg.SetupRunID
	if runID == "" {
		return nil
	}
	if runID == "latest" {
		latest, err := r.store.LatestRunID(ctx)
		if err != nil {
			logger.Warnf("resolving latest run for setup comparison: %v", err)
			return nil
		}
		runID = latest
	}
	snapshot, err := r.store.SetupConfidence(ctx, runID)
	if err != nil {
		logger.Warnf("loading setup confidence for run %s: %v", runID, err)
		return nil
	}
	return snapshot
}

func writeJoinedFile(path string, cells []model.JoinedCell) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create joined output %s: %w", path, err)
	}
	if err := ingest.WriteJoinedCells(f, cells); err != nil {
		f.Close()
		return fmt.Errorf("write joined output %s: %w", path, err)
	}
	return f.Close()
}
