package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stco/stationrecon/internal/config"
	"github.com/stco/stationrecon/internal/join"
	"github.com/stco/stationrecon/internal/metrics"
	"github.com/stco/stationrecon/internal/store"
	"github.com/stco/stationrecon/internal/timegrid"
)

const plannedCSV = `station,date,cutoff_local,forecast,soft_cap,hard_cap,utilization,confidence,severity,flags
DAB1,2026-01-15,08:00:00,1200,1500,1800,0.8,false,1,
PHX2,2026-01-15,09:00:00,900,1100,1300,0.7,true,3,"capped,late"
`

// 2026-01-15 08:30:00 America/New_York, so the override lands in DAB1's
// 08:30 slot rather than joining the planned 08:00 row.
const overridesJSON = `[
  {"station": "DAB1", "epoch_millis": 1768483800000, "match_date": "2025-01-16", "author": "ops", "original": 1200, "adjusted": 1350}
]`

const telemetryJSON = `[
  {"station": "DAB1", "date": "2026-01-15", "grid_time": "08:00:00", "pba_type": "target", "horizon_rank": 0, "scheduled": 1100},
  {"station": "DAB1", "date": "2026-01-15", "grid_time": "08:00:00", "pba_type": "target", "horizon_rank": 3, "horizon_day": 0, "horizon_hour": 3, "scheduled": 1000}
]`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	assert.NoError(t, err)
	return gormDB, mock
}

func testRunner(t *testing.T, cfg *config.Config, db *gorm.DB) *Runner {
	t.Helper()
	norm := timegrid.NewNormalizer(cfg.Sources.TimezoneTable)
	return newRunner(cfg, norm, join.NewEngine(norm, join.Window{}), store.NewSnapshotStore(db), metrics.NewPrometheusRecorder(), nil)
}

func TestSetupEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Sources.TimezoneTable = map[string]string{"DAB1": "America/New_York", "PHX2": "America/Phoenix"}
	cfg.Sources.Planned.Path = writeFixture(t, dir, "planned.csv", plannedCSV)
	cfg.Sources.Overrides.Path = writeFixture(t, dir, "overrides.json", overridesJSON)
	cfg.Sources.Telemetry.Path = writeFixture(t, dir, "telemetry.json", telemetryJSON)
	cfg.Sources.Joined.Path = filepath.Join(dir, "joined.csv")

	db, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `cell_snapshots`").
		WillReturnResult(sqlmock.NewResult(1, 3))
	mock.ExpectCommit()

	rep, err := testRunner(t, cfg, db).Setup(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Two planned rows plus the list-only override cell.
	assert.Equal(t, 3, rep.Stats.Cells)
	assert.Equal(t, 1, rep.Availability["list-only"])
	assert.Equal(t, 2, rep.Availability["vp-only"])
	// PHX2 confidence "true" and the confidence-less override cell.
	assert.Equal(t, 2, rep.AnomalousCells)
	assert.Equal(t, 1, rep.FlaggedCells)
	assert.False(t, rep.HasSetupData)

	out, err := os.ReadFile(cfg.Sources.Joined.Path)
	assert.NoError(t, err)
	assert.Contains(t, string(out), "DAB1")
	assert.Contains(t, string(out), "list-only")
}

func TestSetupMissingOverridesDegrades(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Sources.TimezoneTable = map[string]string{"DAB1": "America/New_York", "PHX2": "America/Phoenix"}
	cfg.Sources.Planned.Path = writeFixture(t, dir, "planned.csv", plannedCSV)
	cfg.Sources.Overrides.Path = filepath.Join(dir, "absent.json")
	cfg.Sources.Telemetry.Path = filepath.Join(dir, "absent2.json")
	cfg.Sources.Joined.Path = ""

	db, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `cell_snapshots`").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	rep, err := testRunner(t, cfg, db).Setup(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, rep.Stats.Cells)
	assert.Len(t, rep.Warnings, 2)
}

func TestSetupMissingPlannedFails(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Sources.Planned.Path = filepath.Join(dir, "absent.csv")

	db, _ := setupMockDB(t)
	_, err := testRunner(t, cfg, db).Setup(context.Background())
	assert.Error(t, err)
}

func TestViewServesJoinedDataset(t *testing.T) {
	dir := t.TempDir()
	cells := `grid_key,station,date,cutoff_local,cutoff_utc,availability,forecast,adjusted,soft_cap,hard_cap,utilization,confidence,severity,flags,tab_group,author
2026-01-15#DAB1#08:00:00,DAB1,2026-01-15,08:00:00,13:00:00,vp-only,1200,0,1500,1800,0.8,false,1,,vp-only|ok,
`
	cfg := config.NewConfig()
	cfg.Sources.TimezoneTable = map[string]string{"DAB1": "America/New_York"}
	cfg.Sources.Joined.Path = writeFixture(t, dir, "joined.csv", cells)
	cfg.Sources.Telemetry.Path = writeFixture(t, dir, "telemetry.json", telemetryJSON)

	db, _ := setupMockDB(t)
	data, err := testRunner(t, cfg, db).View(context.Background())
	assert.NoError(t, err)
	assert.Len(t, data.Cells, 1)
	assert.Len(t, data.Groups["2026-01-15#DAB1#08:00:00"].Target, 2)
	assert.False(t, data.HasSetupData)
}

func TestViewEmptyJoinedIsHardFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Sources.Joined.Path = filepath.Join(dir, "absent.csv")
	cfg.Sources.Telemetry.Path = filepath.Join(dir, "absent.json")

	db, _ := setupMockDB(t)
	_, err := testRunner(t, cfg, db).View(context.Background())
	assert.Error(t, err)
}
