package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/stco/stationrecon/internal/config"
	"github.com/stco/stationrecon/internal/export"
	"github.com/stco/stationrecon/internal/join"
	"github.com/stco/stationrecon/internal/metrics"
	"github.com/stco/stationrecon/internal/store"
	"github.com/stco/stationrecon/internal/support/logger"
	"github.com/stco/stationrecon/internal/timegrid"
)

// Module wires the application's shared components.
var Module = fx.Options(
	fx.Provide(newNormalizer),
	fx.Provide(fx.Annotate(
		metrics.NewPrometheusRecorder,
		fx.As(new(metrics.Recorder)),
	)),
	fx.Provide(newDatabase),
	fx.Provide(store.NewSnapshotStore),
	fx.Provide(newEngine),
	fx.Provide(newExporter),
	fx.Provide(newRunner),
	fx.Invoke(registerTelemetry),
)

func newNormalizer(cfg *config.Config) *timegrid.Normalizer {
	return timegrid.NewNormalizer(cfg.Sources.TimezoneTable)
}

// newDatabase opens the snapshot database, runs pending migrations, and ties
// the connection pool to the application lifecycle.
func newDatabase(lc fx.Lifecycle, cfg *config.Config) (*gorm.DB, error) {
	db, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db, cfg.Database.Type); err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}

func newEngine(cfg *config.Config, norm *timegrid.Normalizer) (*join.Engine, error) {
	var window join.Window
	if cfg.Window.Start != "" {
		t, err := time.Parse(time.RFC3339, cfg.Window.Start)
		if err != nil {
			return nil, fmt.Errorf("parse window start %q: %w", cfg.Window.Start, err)
		}
		window.Start = t
	}
	if cfg.Window.End != "" {
		t, err := time.Parse(time.RFC3339, cfg.Window.End)
		if err != nil {
			return nil, fmt.Errorf("parse window end %q: %w", cfg.Window.End, err)
		}
		window.End = t
	}
	return join.NewEngine(norm, window), nil
}

// newExporter returns nil when exports are disabled; the runner treats a nil
// exporter as a no-op.
func newExporter(cfg *config.Config) (*export.ParquetExporter, error) {
	if !cfg.Export.Enabled {
		return nil, nil
	}
	storage, err := export.NewLocalStorage(cfg.Export.BaseDir)
	if err != nil {
		return nil, err
	}
	return export.NewParquetExporter(storage, cfg.Export.Bucket, cfg.Export.Prefix), nil
}

// registerTelemetry installs the OTLP providers and shuts them down with the
// application. An empty endpoint leaves the no-op globals in place.
func registerTelemetry(lc fx.Lifecycle, cfg *config.Config) error {
	providers, err := metrics.SetupProviders(context.Background(), cfg.Telemetry)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := providers.Shutdown(ctx); err != nil {
				logger.Warnf("telemetry shutdown: %v", err)
			}
			return nil
		},
	})
	return nil
}
