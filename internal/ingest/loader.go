package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/stco/stationrecon/internal/domain/model"
	"github.com/stco/stationrecon/internal/support/logger"
)

// ErrNoData is the hard failure raised when the primary joined dataset is
// entirely absent. Every other source failure degrades to an empty stream.
var ErrNoData = errors.New("no data found — run the setup step first")

// LoadResult carries the two viewer inputs plus per-source degradation notes.
type LoadResult struct {
	Cells     []model.JoinedCell
	Telemetry []model.TelemetrySnapshot
	// Warnings lists sources that were unavailable and degraded to empty.
	Warnings []string
	// DroppedRows counts rows discarded as malformed across both sources.
	DroppedRows int
}

// Loader fetches the joined dataset and the telemetry stream concurrently.
// The two loads are independent: a failed source degrades to an empty slice
// with a warning rather than failing the run.
type Loader struct {
	Joined    Source
	Telemetry Source
}

func NewLoader(joined, telemetry Source) *Loader {
	return &Loader{Joined: joined, Telemetry: telemetry}
}

// Load runs both fetches and returns the combined result. It returns ErrNoData
// only when the joined dataset yielded no cells at all.
func (l *Loader) Load(ctx context.Context) (*LoadResult, error) {
	res := &LoadResult{}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		reader := NewJoinedCellReader(l.Joined)
		cells, err := ReadAll[model.JoinedCell](ctx, reader)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			logger.Warnf("joined dataset %s unavailable, degrading to empty: %v", l.Joined.Name(), err)
			res.Warnings = append(res.Warnings, "joined dataset unavailable: "+l.Joined.Name())
			return
		}
		res.Cells = cells
		res.DroppedRows += reader.Dropped()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		reader := NewJSONArrayReader[model.TelemetrySnapshot](l.Telemetry)
		rows, err := ReadAll[model.TelemetrySnapshot](ctx, reader)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			logger.Warnf("telemetry %s unavailable, degrading to empty: %v", l.Telemetry.Name(), err)
			res.Warnings = append(res.Warnings, "telemetry unavailable: "+l.Telemetry.Name())
			return
		}
		res.Telemetry = rows
		res.DroppedRows += reader.Dropped()
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(res.Cells) == 0 {
		return nil, ErrNoData
	}
	return res, nil
}
