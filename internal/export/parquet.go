package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/stco/stationrecon/internal/domain/model"
	"github.com/stco/stationrecon/internal/support/logger"
)

// parquetCell is the Parquet row layout of one joined cell.
type parquetCell struct {
	GridKey      string  `parquet:"name=grid_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	Station      string  `parquet:"name=station, type=BYTE_ARRAY, convertedtype=UTF8"`
	SlotDate     string  `parquet:"name=slot_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	CutoffLocal  string  `parquet:"name=cutoff_local, type=BYTE_ARRAY, convertedtype=UTF8"`
	CutoffUTC    string  `parquet:"name=cutoff_utc, type=BYTE_ARRAY, convertedtype=UTF8"`
	Availability string  `parquet:"name=availability, type=BYTE_ARRAY, convertedtype=UTF8"`
	Forecast     float64 `parquet:"name=forecast, type=DOUBLE"`
	Adjusted     float64 `parquet:"name=adjusted, type=DOUBLE"`
	SoftCap      float64 `parquet:"name=soft_cap, type=DOUBLE"`
	HardCap      float64 `parquet:"name=hard_cap, type=DOUBLE"`
	Utilization  float64 `parquet:"name=utilization, type=DOUBLE"`
	Confidence   string  `parquet:"name=confidence, type=BYTE_ARRAY, convertedtype=UTF8"`
	Anomalous    bool    `parquet:"name=anomalous, type=BOOLEAN"`
	Severity     *int32  `parquet:"name=severity, type=INT32"`
	Flags        string  `parquet:"name=flags, type=BYTE_ARRAY, convertedtype=UTF8"`
	TabGroup     string  `parquet:"name=tab_group, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func toParquetCell(c *model.JoinedCell) parquetCell {
	row := parquetCell{
		GridKey:      c.Key.String(),
		Station:      c.Key.Station,
		SlotDate:     c.Key.Date,
		CutoffLocal:  c.Key.CutoffLocal,
		CutoffUTC:    c.Key.CutoffUTC,
		Availability: c.Availability,
		Confidence:   c.Confidence,
		Anomalous:    c.Anomalous,
		Flags:        strings.Join(c.Flags, ","),
		TabGroup:     c.TabGroup,
	}
	if c.Planned != nil {
		row.Forecast = c.Planned.Forecast
		row.SoftCap = c.Planned.SoftCap
		row.HardCap = c.Planned.HardCap
		row.Utilization = c.Planned.Utilization
	}
	if c.Override != nil {
		row.Adjusted = c.Override.Adjusted
	}
	if c.Severity != nil {
		sev := int32(*c.Severity)
		row.Severity = &sev
	}
	return row
}

// ParquetExporter writes joined cells as date-partitioned Parquet objects
// through a storage adapter.
type ParquetExporter struct {
	storage Storage
	bucket  string
	baseDir string
}

func NewParquetExporter(storage Storage, bucket, baseDir string) *ParquetExporter {
	return &ParquetExporter{storage: storage, bucket: bucket, baseDir: baseDir}
}

// Export writes one Parquet file per slot date under
// <baseDir>/dt=<date>/cells_<runID>.parquet. Failures are aggregated per
// partition; the healthy partitions still land.
func (e *ParquetExporter) Export(ctx context.Context, runID string, cells []model.JoinedCell) error {
	partitions := map[string][]parquetCell{}
	for i := range cells {
		row := toParquetCell(&cells[i])
		partitions[row.SlotDate] = append(partitions[row.SlotDate], row)
	}

	var multiErr error
	for date, rows := range partitions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.exportPartition(ctx, runID, date, rows); err != nil {
			multiErr = multierror.Append(multiErr, err)
		}
	}
	return multiErr
}

func (e *ParquetExporter) exportPartition(ctx context.Context, runID, date string, rows []parquetCell) error {
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(parquetCell), int64(len(rows)))
	if err != nil {
		return fmt.Errorf("create parquet writer for dt=%s: %w", date, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			return fmt.Errorf("write parquet row for dt=%s: %w", date, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet file for dt=%s: %w", date, err)
	}

	objectName := path.Join(e.baseDir, "dt="+date,
		fmt.Sprintf("cells_%s_%s.parquet", runID, time.Now().UTC().Format("20060102150405")))
	if err := e.storage.Upload(ctx, e.bucket, objectName, buf, "application/octet-stream"); err != nil {
		return fmt.Errorf("upload parquet file %s: %w", objectName, err)
	}
	logger.Infof("exported %d cells to %s/%s", len(rows), e.bucket, objectName)
	return nil
}
