package census

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func pingRecord(at time.Time, channel string, count int) Record {
	return Record{
		At:     at,
		Type:   RecordPing,
		Remote: "203.0.113.7",
		Payload: map[string]any{
			"image": channel,
			"count": float64(count),
		},
	}
}

func logOf(t *testing.T, records ...Record) string {
	t.Helper()
	var b strings.Builder
	for _, rec := range records {
		line, err := json.Marshal(rec)
		require.NoError(t, err)
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func TestIngest_AppliesNewPings(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	log := logOf(t,
		pingRecord(now, "eos-3.9-amd64", 0),
		pingRecord(now.Add(time.Second), "eos-3.9-amd64", 0),
		pingRecord(now.Add(2*time.Second), "eos-3.9-arm", 0),
	)

	stats, err := Ingest(t.Context(), s, strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, IngestStats{Applied: 3}, stats)

	populations, err := s.Populations(t.Context())
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"eos-3.9-amd64": 2, "eos-3.9-arm": 1}, populations)
}

func TestIngest_ReplayIsNoOp(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	log := logOf(t,
		pingRecord(now, "ch", 0),
		pingRecord(now.Add(time.Second), "ch", 1),
	)

	first, err := Ingest(t.Context(), s, strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, IngestStats{Applied: 2}, first)

	second, err := Ingest(t.Context(), s, strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, IngestStats{Skipped: 2}, second)

	populations, err := s.Populations(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(1), populations["ch"])
}

func TestIngest_LiveApplicationThenReplayDoesNotDoubleCount(t *testing.T) {
	s := openTestStore(t)
	at := time.Now()

	// The live endpoint applied this ping already; the log replay must
	// recognize it through the watermark.
	mustApply(t, s, "ch", 0, at)

	stats, err := Ingest(t.Context(), s, strings.NewReader(logOf(t, pingRecord(at, "ch", 0))))
	require.NoError(t, err)
	require.Equal(t, IngestStats{Skipped: 1}, stats)

	populations, err := s.Populations(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(1), populations["ch"])
}

func TestIngest_SkipsActivationRecords(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	activation := Record{
		At:     now,
		Type:   RecordActivate,
		Remote: "203.0.113.7",
		Payload: map[string]any{
			"image":  "ch",
			"serial": "F7NOCX018isf",
		},
	}
	log := logOf(t, activation, pingRecord(now.Add(time.Second), "ch", 0))

	stats, err := Ingest(t.Context(), s, strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, IngestStats{Applied: 1, Skipped: 1}, stats)
}

func TestIngest_OlderRecordAfterNewerIsDropped(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	log := logOf(t,
		pingRecord(now.Add(time.Minute), "ch", 0),
		pingRecord(now, "ch", 0),
	)

	stats, err := Ingest(t.Context(), s, strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, IngestStats{Applied: 1, Skipped: 1}, stats)
}

func TestIngest_InvalidPingAdvancesWatermark(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	invalid := Record{
		At:      now.Add(time.Second),
		Type:    RecordPing,
		Remote:  "203.0.113.7",
		Payload: map[string]any{"image": "", "count": float64(0)},
	}
	log := logOf(t, pingRecord(now, "ch", 0), invalid)

	stats, err := Ingest(t.Context(), s, strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, IngestStats{Applied: 1, Invalid: 1}, stats)

	mark, err := s.Watermark(t.Context())
	require.NoError(t, err)
	require.Equal(t, Stamp(invalid.At), mark)
}

func TestIngest_UnparsableLinesAreCountedInvalid(t *testing.T) {
	s := openTestStore(t)
	log := "this is not json\n" + logOf(t, pingRecord(time.Now(), "ch", 0))

	stats, err := Ingest(t.Context(), s, strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, IngestStats{Applied: 1, Invalid: 1}, stats)
}

func TestIngest_SameDayAcrossRunsAccumulates(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2019, 4, 18, 9, 0, 0, 0, time.Local)

	_, err := Ingest(t.Context(), s, strings.NewReader(logOf(t, pingRecord(at, "ch", 0))))
	require.NoError(t, err)

	_, err = Ingest(t.Context(), s, strings.NewReader(logOf(t, pingRecord(at.Add(time.Hour), "ch", 0))))
	require.NoError(t, err)

	points, err := s.History(t.Context(), "ch")
	require.NoError(t, err)
	require.Equal(t, []HistoryPoint{{Date: "2019-04-18", Updates: 2, Machines: 2}}, points)
}

func TestRequestLog_AppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.log")
	rl, err := OpenRequestLog(path)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, rl.Append(pingRecord(now, "ch", 0)))
	require.NoError(t, rl.Append(pingRecord(now.Add(time.Second), "ch", 1)))
	require.NoError(t, rl.Close())

	// Appending must not truncate earlier records.
	rl, err = OpenRequestLog(path)
	require.NoError(t, err)
	require.NoError(t, rl.Append(pingRecord(now.Add(2*time.Second), "ch", 2)))
	require.NoError(t, rl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	s := openTestStore(t)
	stats, err := Ingest(t.Context(), s, strings.NewReader(string(data)))
	require.NoError(t, err)
	require.Equal(t, IngestStats{Applied: 3}, stats)

	populations, err := s.Populations(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(1), populations["ch"])
}

func TestPingFields_Validation(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"image": "ch", "count": float64(3)}, false},
		{"missing image", map[string]any{"count": float64(3)}, true},
		{"empty image", map[string]any{"image": "", "count": float64(3)}, true},
		{"missing count", map[string]any{"image": "ch"}, true},
		{"negative count", map[string]any{"image": "ch", "count": float64(-1)}, true},
		{"fractional count", map[string]any{"image": "ch", "count": 1.5}, true},
		{"string count", map[string]any{"image": "ch", "count": "3"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channel, generation, err := PingFields(tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "ch", channel)
			require.Equal(t, 3, generation)
		})
	}
}
