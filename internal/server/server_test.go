package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/stco/stationrecon/internal/domain/model"
	"github.com/stco/stationrecon/internal/join"
	"github.com/stco/stationrecon/internal/metrics"
	"github.com/stco/stationrecon/internal/report"
	"github.com/stco/stationrecon/internal/timegrid"
)

func testData() *RunData {
	key := model.GridKey{Station: "DAB1", Date: "2026-01-15", CutoffLocal: "08:00:00", CutoffUTC: "13:00:00"}
	cells := []model.JoinedCell{
		{
			Key:          key,
			Availability: model.AvailabilityBoth,
			Confidence:   "false",
			TabGroup:     "vp+list|ok",
		},
		{
			Key:          model.GridKey{Station: "PHX2", Date: "2026-01-15", CutoffLocal: "09:00:00", CutoffUTC: "16:00:00"},
			Availability: model.AvailabilityVPOnly,
			Confidence:   "true",
			Anomalous:    true,
			Flags:        []string{"capped"},
			TabGroup:     "vp-only|flagged",
		},
	}
	groups := map[string]join.Groups{
		key.String(): {
			Target: []model.TelemetrySnapshot{
				{Station: "DAB1", Date: "2026-01-15", GridTime: "08:00:00", Type: model.PBATypeTarget, Scheduled: 120},
			},
		},
	}
	norm := timegrid.NewNormalizer(timegrid.Table{"DAB1": "America/New_York", "PHX2": "America/Phoenix"})
	rep := report.NewBuilder(norm).SetClassification(1, 1, false).Build()
	return &RunData{Cells: cells, Groups: groups, Report: rep}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(testData(), metrics.NewPrometheusRecorder(), gin.TestMode)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(t), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(2), body["cells"])
}

func TestFacetsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/facets")
	assert.Equal(t, http.StatusOK, rec.Code)

	var facets []model.Facet
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &facets))
	assert.NotEmpty(t, facets)
	assert.Equal(t, "all", facets[0].Key)
	assert.Equal(t, 2, facets[0].Count)
}

func TestCellsFiltered(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/cells?facet=flagged")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Facet string             `json:"facet"`
		Count int                `json:"count"`
		Cells []model.JoinedCell `json:"cells"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "flagged", body.Facet)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "PHX2", body.Cells[0].Key.Station)

	rec = get(t, s, "/api/cells")
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "all", body.Facet)
	assert.Equal(t, 2, body.Count)
}

func TestSeriesEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/series/2026-01-15%23DAB1%2308:00:00")
	assert.Equal(t, http.StatusOK, rec.Code)

	var bundle model.TimeSeriesBundle
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.NotEmpty(t, bundle.Series)
	assert.Equal(t, []string{"0d00h"}, bundle.CategoryOrder)
}

func TestSeriesUnknownKey(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/series/2026-01-15%23XXX9%2308:00:00")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSeriesMalformedKey(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/series/not-a-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/report")
	assert.Equal(t, http.StatusOK, rec.Code)

	var rep report.Report
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 1, rep.AnomalousCells)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
