package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTelemetrySnapshotDecodesCompositeKey(t *testing.T) {
	raw := `{"grid_key":"2026-01-15#STA1#08:00:00","pba_type":"target","pba_horizon_rank":5,"horizon_day":2,"horizon_hour":12,"scheduled":120}`

	var snap TelemetrySnapshot
	assert.NoError(t, json.Unmarshal([]byte(raw), &snap))
	assert.Equal(t, "STA1", snap.Station)
	assert.Equal(t, "2026-01-15", snap.Date)
	assert.Equal(t, "08:00:00", snap.GridTime)
	assert.Equal(t, PBATypeTarget, snap.Type)
	assert.Equal(t, 5, snap.HorizonRank)
	assert.Equal(t, "2026-01-15#STA1#08:00:00", snap.GridKeyString())
	assert.Equal(t, "2d12h", snap.HorizonLabel())
}

func TestTelemetrySnapshotCompositeKeyWinsOverSplitFields(t *testing.T) {
	raw := `{"grid_key":"2026-01-15#STA1#08:00:00","station":"OTHER","date":"1999-01-01","grid_time":"00:00:00","pba_type":"match"}`

	var snap TelemetrySnapshot
	assert.NoError(t, json.Unmarshal([]byte(raw), &snap))
	assert.Equal(t, "STA1", snap.Station)
	assert.Equal(t, "2026-01-15", snap.Date)
	assert.Equal(t, "08:00:00", snap.GridTime)
}

func TestTelemetrySnapshotAcceptsSplitFields(t *testing.T) {
	raw := `{"station":"STA1","date":"2026-01-15","grid_time":"08:00:00","pba_type":"target","horizon_rank":3}`

	var snap TelemetrySnapshot
	assert.NoError(t, json.Unmarshal([]byte(raw), &snap))
	assert.Equal(t, "STA1", snap.Station)
	assert.Equal(t, 3, snap.HorizonRank)
}

func TestTelemetrySnapshotRejectsMalformedCompositeKey(t *testing.T) {
	var snap TelemetrySnapshot
	err := json.Unmarshal([]byte(`{"grid_key":"not-a-key","pba_type":"target"}`), &snap)
	assert.Error(t, err)
}
