package facet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stco/stationrecon/internal/domain/model"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func testCells() []model.JoinedCell {
	return []model.JoinedCell{
		{
			Key:       model.GridKey{Station: "STA1", Date: "2026-01-15", CutoffLocal: "08:00:00"},
			Anomalous: true,
			Flags:     []string{"late", "capped"},
			Severity:  intPtr(3),
		},
		{
			Key:       model.GridKey{Station: "STA2", Date: "2026-01-15", CutoffLocal: "09:00:00"},
			Anomalous: false,
			Flags:     []string{"capped"},
			Severity:  intPtr(1),
		},
		{
			Key:       model.GridKey{Station: "STA3", Date: "2026-01-15", CutoffLocal: "10:00:00"},
			Anomalous: true,
		},
	}
}

func TestBuildOrdering(t *testing.T) {
	facets := Build(testCells(), false)

	keys := make([]string, 0, len(facets))
	for _, f := range facets {
		keys = append(keys, f.Key)
	}
	// All first, flag tokens alphabetical, anomaly pair, severities ascending.
	assert.Equal(t, []string{
		"all",
		"flag:capped", "flag:late",
		"flagged", "not-flagged",
		"severity:1", "severity:3",
	}, keys)

	assert.Equal(t, 3, facets[0].Count)
	assert.Equal(t, "All", facets[0].Label)
	assert.Equal(t, 2, facets[1].Count) // capped
	assert.Equal(t, 1, facets[2].Count) // late
	assert.Equal(t, 2, facets[3].Count) // flagged
	assert.Equal(t, 1, facets[4].Count) // not flagged
}

func TestBuildOmitsEmptyAnomalyBucket(t *testing.T) {
	cells := []model.JoinedCell{{Anomalous: true}, {Anomalous: true}}
	facets := Build(cells, false)

	for _, f := range facets {
		assert.NotEqual(t, KeyNotFlagged, f.Key)
	}
}

func TestBuildSetupFacetsGatedOnRunMarker(t *testing.T) {
	cells := testCells()
	cells[0].SetupAnomalous = boolPtr(true)
	cells[0].ConfidenceChanged = boolPtr(true)

	// Marker unset: setup facets never surface even with matching cells.
	for _, f := range Build(cells, false) {
		assert.NotEqual(t, KeySetupAnomaly, f.Key)
		assert.NotEqual(t, KeyConfidenceChanged, f.Key)
	}

	facets := Build(cells, true)
	var keys []string
	for _, f := range facets {
		keys = append(keys, f.Key)
	}
	assert.Contains(t, keys, KeySetupAnomaly)
	assert.Contains(t, keys, KeyConfidenceChanged)
}

func TestCountsAgreeWithPredicates(t *testing.T) {
	cells := testCells()
	cells[1].ConfidenceChanged = boolPtr(true)

	for _, f := range Build(cells, true) {
		assert.Len(t, Filter(cells, f.Key), f.Count, "facet %s", f.Key)
	}
}

func TestPredicateUnknownKeyMatchesNothing(t *testing.T) {
	assert.Empty(t, Filter(testCells(), "bogus"))
	assert.Empty(t, Filter(testCells(), "severity:not-a-number"))
}

func TestFilterAllIsIdentity(t *testing.T) {
	cells := testCells()
	assert.Equal(t, cells, Filter(cells, KeyAll))
}
