package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stco/stationrecon/internal/classify"
	"github.com/stco/stationrecon/internal/domain/model"
	"github.com/stco/stationrecon/internal/facet"
	"github.com/stco/stationrecon/internal/join"
	"github.com/stco/stationrecon/internal/pipeline"
)

type stringSource struct {
	name string
	body string
	err  error
}

func (s *stringSource) Name() string { return s.name }

func (s *stringSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestDelimitedReaderDecodesRows(t *testing.T) {
	src := &stringSource{name: "test", body: strings.Join([]string{
		`station,date,cutoff_local,forecast,soft_cap,hard_cap,utilization,confidence,severity,flags`,
		`STA1,2026-01-15,08:00:00,1200,1500,1800,0.8,false,2,"late,capped"`,
		`STA2,2026-01-15,09:30:00,640,700,900,0.91,true,,`,
	}, "\n")}

	reader := NewDelimitedReader[model.PlannedRecord](src, ',')
	rows, err := ReadAll[model.PlannedRecord](context.Background(), reader)
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "STA1", rows[0].Station)
	assert.Equal(t, 1200.0, rows[0].Forecast)
	assert.Equal(t, "late,capped", rows[0].FlagsRaw)
	assert.Equal(t, "2", rows[0].SeverityRaw)
	assert.Equal(t, "true", rows[1].Confidence)
	assert.Equal(t, "", rows[1].FlagsRaw)
	assert.Equal(t, 0, reader.Dropped())
}

func TestDelimitedReaderSkipsMalformedRows(t *testing.T) {
	src := &stringSource{name: "test", body: strings.Join([]string{
		`station,date,cutoff_local,forecast`,
		`STA1,2026-01-15,08:00:00,1200`,
		`STA1,2026-01-15`,
		`STA2,2026-01-15,09:30:00,not-a-number`,
		`STA3,2026-01-15,10:00:00,500`,
	}, "\n")}

	reader := NewDelimitedReader[model.PlannedRecord](src, ',')
	rows, err := ReadAll[model.PlannedRecord](context.Background(), reader)
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 2, reader.Dropped())
}

func TestJoinedCellRoundTrip(t *testing.T) {
	sev := 3
	cells := []model.JoinedCell{
		{
			Key: model.GridKey{Station: "STA1", Date: "2026-01-15", CutoffLocal: "08:00:00", CutoffUTC: "13:00:00"},
			Planned: &model.PlannedRecord{
				Station: "STA1", Date: "2026-01-15", CutoffLocal: "08:00:00", CutoffUTC: "13:00:00",
				Forecast: 1200, SoftCap: 1500, HardCap: 1800, Utilization: 0.8,
			},
			Override: &model.OverrideRecord{
				Station: "STA1", Date: "2026-01-15", CutoffLocal: "08:00:00", CutoffUTC: "13:00:00",
				Adjusted: 1350, Author: `ops "night" shift, east`,
			},
			Availability: model.AvailabilityBoth,
			Confidence:   "False ",
			Severity:     &sev,
			Flags:        []string{"late", "capped"},
			TabGroup:     "vp+list|flagged",
		},
		{
			Key: model.GridKey{Station: "STA2", Date: "2026-01-15", CutoffLocal: "09:30:00", CutoffUTC: "17:30:00"},
			Planned: &model.PlannedRecord{
				Station: "STA2", Date: "2026-01-15", CutoffLocal: "09:30:00", CutoffUTC: "17:30:00",
				Forecast: 640,
			},
			Availability: model.AvailabilityVPOnly,
			Confidence:   "false",
			TabGroup:     "vp-only|ok",
		},
	}

	var buf bytes.Buffer
	assert.NoError(t, WriteJoinedCells(&buf, cells))

	// The author field contains both a comma and a doubled quote.
	assert.Contains(t, buf.String(), `"ops ""night"" shift, east"`)

	reader := NewJoinedCellReader(&stringSource{name: "test", body: buf.String()})
	got, err := ReadAll[model.JoinedCell](context.Background(), reader)
	assert.NoError(t, err)
	assert.Len(t, got, 2)

	assert.Equal(t, cells[0].Key, got[0].Key)
	assert.Equal(t, "False ", got[0].Confidence)
	assert.Equal(t, []string{"late", "capped"}, got[0].Flags)
	assert.NotNil(t, got[0].Severity)
	assert.Equal(t, 3, *got[0].Severity)
	assert.NotNil(t, got[0].Override)
	assert.Equal(t, `ops "night" shift, east`, got[0].Override.Author)
	assert.Equal(t, 1350.0, got[0].Override.Adjusted)

	assert.Nil(t, got[1].Override)
	assert.NotNil(t, got[1].Planned)
	assert.Equal(t, 640.0, got[1].Planned.Forecast)
}

// A written joined dataset must reload into cells the viewer can classify
// exactly as the setup run did: the override's match date drives match
// grouping, and the raw severity and flag columns survive re-derivation.
func TestJoinedRoundTripKeepsMatchClassification(t *testing.T) {
	sev := 3
	cells := []model.JoinedCell{{
		Key: model.GridKey{Station: "STA1", Date: "2026-01-15", CutoffLocal: "08:00:00", CutoffUTC: "13:00:00"},
		Planned: &model.PlannedRecord{
			Station: "STA1", Date: "2026-01-15", CutoffLocal: "08:00:00", CutoffUTC: "13:00:00",
			Forecast: 1200, Confidence: "false",
		},
		Override: &model.OverrideRecord{
			Station: "STA1", Date: "2026-01-15", CutoffLocal: "08:00:00", CutoffUTC: "13:00:00",
			Adjusted: 1350, MatchDate: "2026-01-08", Author: "ops",
		},
		Availability: model.AvailabilityBoth,
		Confidence:   "false",
		Severity:     &sev,
		Flags:        []string{"capped", "late"},
		TabGroup:     "vp+list|ok",
	}}

	var buf bytes.Buffer
	assert.NoError(t, WriteJoinedCells(&buf, cells))

	got, err := ReadAll[model.JoinedCell](context.Background(), NewJoinedCellReader(&stringSource{name: "joined", body: buf.String()}))
	assert.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NotNil(t, got[0].Override)
	assert.Equal(t, "2026-01-08", got[0].Override.MatchDate)

	res := join.GroupTelemetry(got, []model.TelemetrySnapshot{
		{Station: "STA1", Date: "2026-01-15", GridTime: "08:00:00", Type: model.PBATypeTarget, HorizonRank: 4, HorizonDay: 1},
		{Station: "STA1", Date: "2026-01-08", GridTime: "08:00:00", Type: model.PBATypeMatch, HorizonRank: 4, HorizonDay: 1},
	})
	g := res.Groups[got[0].Key.String()]
	assert.Len(t, g.Target, 1)
	assert.Len(t, g.Match, 1)
	assert.Equal(t, 0, res.Stats.DroppedNoJoinMatch)

	classify.Apply(got, nil)
	assert.Equal(t, []string{"capped", "late"}, got[0].Flags)
	assert.NotNil(t, got[0].Severity)
	assert.Equal(t, 3, *got[0].Severity)

	keys := make([]string, 0)
	for _, f := range facet.Build(got, false) {
		keys = append(keys, f.Key)
	}
	assert.Contains(t, keys, "flag:capped")
	assert.Contains(t, keys, "flag:late")
	assert.Contains(t, keys, "severity:3")
}

func TestJoinedCellReaderAcceptsJSONForm(t *testing.T) {
	src := &stringSource{name: "joined", body: `[
		{"grid_key":"2026-01-15#STA1#08:00:00","station":"STA1","date":"2026-01-15","cutoff_local":"08:00:00","cutoff_utc":"13:00:00","availability":"vp+list","forecast":1200,"adjusted":1350,"soft_cap":1500,"hard_cap":1800,"utilization":0.8,"confidence":"False ","severity":3,"flags":"late,capped","tab_group":"vp+list|flagged","author":"ops"},
		{"grid_key":"2026-01-15#STA2#09:00:00","station":"STA2","date":"2026-01-15","cutoff_local":"09:00:00","cutoff_utc":"17:00:00","availability":"vp-only","forecast":640,"confidence":"false","tab_group":"vp-only|ok"}
	]`}

	got, err := ReadAll[model.JoinedCell](context.Background(), NewJoinedCellReader(src))
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "False ", got[0].Confidence)
	assert.Equal(t, []string{"late", "capped"}, got[0].Flags)
	assert.NotNil(t, got[0].Severity)
	assert.Equal(t, 3, *got[0].Severity)
	assert.NotNil(t, got[0].Planned)
	assert.Equal(t, 1200.0, got[0].Planned.Forecast)
	assert.NotNil(t, got[0].Override)
	assert.Equal(t, 1350.0, got[0].Override.Adjusted)
	assert.Nil(t, got[1].Override)
}

func TestJSONArrayReaderSkipsBadElements(t *testing.T) {
	src := &stringSource{name: "telemetry", body: `[
		{"station":"STA1","date":"2026-01-15","grid_time":"08:00:00","pba_type":"target","horizon_rank":5,"horizon_day":2,"horizon_hour":12,"scheduled":100},
		{"station":"STA1","horizon_rank":"not-an-int"},
		{"station":"STA1","date":"2026-01-15","grid_time":"08:00:00","pba_type":"match","horizon_rank":3,"horizon_day":1,"horizon_hour":6,"scheduled":90}
	]`}

	reader := NewJSONArrayReader[model.TelemetrySnapshot](src)
	rows, err := ReadAll[model.TelemetrySnapshot](context.Background(), reader)
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, reader.Dropped())
	assert.Equal(t, model.PBATypeTarget, rows[0].Type)
	assert.Equal(t, "2026-01-15#STA1#08:00:00", rows[0].GridKeyString())
}

func TestLoaderDegradesTelemetryToEmpty(t *testing.T) {
	joined := &stringSource{name: "joined", body: strings.Join([]string{
		strings.Join([]string{"grid_key", "station", "date", "cutoff_local", "cutoff_utc", "availability", "forecast", "adjusted", "soft_cap", "hard_cap", "utilization", "confidence", "severity", "flags", "tab_group", "author"}, ","),
		`2026-01-15#STA1#08:00:00,STA1,2026-01-15,08:00:00,13:00:00,vp-only,1200,,1500,1800,0.8,false,,,vp-only|ok,`,
	}, "\n")}
	telemetry := &stringSource{name: "telemetry", err: errors.New("connection refused")}

	res, err := NewLoader(joined, telemetry).Load(context.Background())
	assert.NoError(t, err)
	assert.Len(t, res.Cells, 1)
	assert.Empty(t, res.Telemetry)
	assert.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "telemetry unavailable")
}

func TestLoaderHardFailsWithoutJoinedDataset(t *testing.T) {
	joined := &stringSource{name: "joined", err: errors.New("no such file")}
	telemetry := &stringSource{name: "telemetry", body: `[]`}

	_, err := NewLoader(joined, telemetry).Load(context.Background())
	assert.True(t, errors.Is(err, ErrNoData))
	assert.Contains(t, err.Error(), "run the setup step first")
}

func TestHTTPSourceRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, "payload")
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, srv.Client(), pipeline.NewFixedRetryPolicy(3, time.Millisecond))
	rc, err := src.Fetch(context.Background())
	assert.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, 3, attempts)
}

func TestHTTPSourceDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, srv.Client(), pipeline.NewFixedRetryPolicy(3, time.Millisecond))
	_, err := src.Fetch(context.Background())
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.Equal(t, 1, attempts)
}
