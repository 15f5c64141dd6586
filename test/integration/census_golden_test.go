package integration

import (
	"bytes"
	"encoding/json"
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LuisBuenanyo/eos-phone-home/internal/census"
	"github.com/LuisBuenanyo/eos-phone-home/internal/report"
)

var updateGolden = flag.Bool("update-golden", false, "Update golden files")

func pingRecord(at time.Time, channel string, count any) census.Record {
	return census.Record{
		At:     at,
		Type:   census.RecordPing,
		Remote: "203.0.113.7",
		Payload: map[string]any{
			"image":   channel,
			"vendor":  "Endless",
			"product": "EC-200",
			"release": "3.9.1",
			"count":   count,
		},
	}
}

// TestGolden_CensusReport replays a two-day request log and renders the
// census digest.
// This test verifies:
// - Ingestion applies pings, skips activations and stale records, and
//   tolerates invalid payloads
// - Generation bucket shifting counts each machine once per channel
// - The Markdown digest matches the golden file.
func TestGolden_CensusReport(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping golden test in short mode")
	}

	// Local-time instants keep the history dates stable across host zones.
	day1 := time.Date(2019, 4, 18, 9, 0, 0, 0, time.Local)
	day2 := day1.Add(24 * time.Hour)

	records := []census.Record{
		{At: day1, Type: census.RecordActivate, Remote: "203.0.113.7",
			Payload: map[string]any{"image": "eos-3.9-amd64", "serial": "SN-EC200-0042"}},
		pingRecord(day1.Add(1*time.Minute), "eos-3.9-amd64", 0),
		pingRecord(day1.Add(2*time.Minute), "eos-3.9-amd64", 0),
		pingRecord(day1.Add(3*time.Minute), "eos-3.8-armhf", 0),
		pingRecord(day1.Add(4*time.Minute), "eos-3.9-amd64", "soon"),
		pingRecord(day2.Add(1*time.Minute), "eos-3.9-amd64", 1),
		pingRecord(day2.Add(2*time.Minute), "eos-3.8-armhf", 1),
		pingRecord(day1.Add(5*time.Minute), "eos-3.8-armhf", 0), // behind the watermark
	}

	var log bytes.Buffer
	enc := json.NewEncoder(&log)
	for _, rec := range records {
		require.NoError(t, enc.Encode(rec))
	}

	store, err := census.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	stats, err := census.Ingest(t.Context(), store, &log)
	require.NoError(t, err)
	require.Equal(t, census.IngestStats{Applied: 5, Skipped: 2, Invalid: 1}, stats)

	rep, err := report.Build(t.Context(), store,
		time.Date(2019, 4, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, int64(3), rep.TotalMachines())

	compareGolden(t, "../testdata/golden/census-report.golden.md", rep.Markdown(), *updateGolden)
}
