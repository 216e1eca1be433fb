package export

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stco/stationrecon/internal/domain/model"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	assert.NoError(t, err)
	ctx := context.Background()

	err = s.Upload(ctx, "exports", "dt=2026-01-15/cells.parquet", strings.NewReader("payload"), "application/octet-stream")
	assert.NoError(t, err)

	rc, err := s.Download(ctx, "exports", "dt=2026-01-15/cells.parquet")
	assert.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "payload", string(body))

	var seen []string
	err = s.ListObjects(ctx, "exports", "dt=2026-01-15/", func(name string) error {
		seen = append(seen, name)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"dt=2026-01-15/cells.parquet"}, seen)

	assert.NoError(t, s.DeleteObject(ctx, "exports", "dt=2026-01-15/cells.parquet"))
	seen = nil
	assert.NoError(t, s.ListObjects(ctx, "exports", "", func(name string) error {
		seen = append(seen, name)
		return nil
	}))
	assert.Empty(t, seen)
}

func TestLocalStorageListHonorsPrefix(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	assert.NoError(t, err)
	ctx := context.Background()

	assert.NoError(t, s.Upload(ctx, "b", "dt=2026-01-15/a.parquet", strings.NewReader("x"), ""))
	assert.NoError(t, s.Upload(ctx, "b", "dt=2026-01-16/b.parquet", strings.NewReader("y"), ""))

	var seen []string
	assert.NoError(t, s.ListObjects(ctx, "b", "dt=2026-01-16/", func(name string) error {
		seen = append(seen, name)
		return nil
	}))
	assert.Equal(t, []string{"dt=2026-01-16/b.parquet"}, seen)
}

func TestParquetExportPartitionsByDate(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	assert.NoError(t, err)

	sev := 2
	cells := []model.JoinedCell{
		{
			Key:          model.GridKey{Station: "STA1", Date: "2026-01-15", CutoffLocal: "08:00:00"},
			Planned:      &model.PlannedRecord{Forecast: 1200},
			Availability: model.AvailabilityVPOnly,
			Severity:     &sev,
		},
		{
			Key:          model.GridKey{Station: "STA1", Date: "2026-01-16", CutoffLocal: "08:00:00"},
			Planned:      &model.PlannedRecord{Forecast: 900},
			Availability: model.AvailabilityVPOnly,
		},
	}

	exporter := NewParquetExporter(s, "exports", "cells")
	err = exporter.Export(context.Background(), "run-1", cells)
	assert.NoError(t, err)

	var objects []string
	assert.NoError(t, s.ListObjects(context.Background(), "exports", "", func(name string) error {
		objects = append(objects, name)
		return nil
	}))
	assert.Len(t, objects, 2)

	var partitions []string
	for _, o := range objects {
		assert.Contains(t, o, "run-1")
		assert.True(t, strings.HasSuffix(o, ".parquet"))
		partitions = append(partitions, o[:strings.LastIndex(o, "/")])
	}
	assert.ElementsMatch(t, []string{"cells/dt=2026-01-15", "cells/dt=2026-01-16"}, partitions)
}
