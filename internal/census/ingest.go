package census

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	pherrors "github.com/LuisBuenanyo/eos-phone-home/internal/errors"
	"github.com/LuisBuenanyo/eos-phone-home/internal/logfields"
)

// IngestStats summarizes one replay pass over a request log.
type IngestStats struct {
	Applied int
	Skipped int
	Invalid int
}

// Ingest replays request-log records into the store. Only ping records newer
// than the stored watermark are applied, so replaying a log the live service
// already accounted for is a no-op. The watermark advances through every
// newer ping, including invalid ones, which also means records that arrive
// out of timestamp order are dropped rather than double-counted.
func Ingest(ctx context.Context, store *Store, r io.Reader) (IngestStats, error) {
	var stats IngestStats

	mark, err := store.Watermark(ctx)
	if err != nil {
		return stats, err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			slog.Warn("Skipping unparsable record", slog.Int("line", line), logfields.Error(err))
			stats.Invalid++
			continue
		}
		if rec.Type != RecordPing {
			stats.Skipped++
			continue
		}

		stamp := Stamp(rec.At)
		if stamp <= mark {
			stats.Skipped++
			continue
		}
		mark = stamp

		channel, generation, err := PingFields(rec.Payload)
		if err != nil {
			slog.Warn("Skipping invalid ping record", slog.Int("line", line), logfields.Error(err))
			stats.Invalid++
			continue
		}
		if _, err := store.ApplyPing(ctx, channel, generation, rec.At); err != nil {
			return stats, err
		}
		stats.Applied++
	}
	if err := scanner.Err(); err != nil {
		return stats, pherrors.StorageError("read request log", err)
	}

	// Invalid-but-newer pings advanced the in-memory mark past the last
	// applied record; persist it so the next replay skips them too.
	if err := store.SetWatermark(ctx, mark); err != nil {
		return stats, err
	}
	return stats, nil
}
