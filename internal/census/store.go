package census

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	pherrors "github.com/LuisBuenanyo/eos-phone-home/internal/errors"
)

// schemaVersion is the census database layout version.
const schemaVersion = 1

// HistoryPoint is one day of one channel: how many pings arrived that day and
// the population estimate after the day's last ping.
type HistoryPoint struct {
	Date     string `json:"date"`
	Updates  int64  `json:"updates"`
	Machines int64  `json:"machines"`
}

// Store persists per-channel counters, daily history, and the ingestion
// watermark in SQLite. Use ":memory:" for throwaway stores in tests.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates a census database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pherrors.StorageError("open database", err)
	}
	// sqlite is effectively single-writer, and a single pooled connection
	// also keeps a ":memory:" store on one database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, pherrors.StorageError("initialize schema", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS db_version (
		version INT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS last_update (
		timestamp REAL NOT NULL
	);
	CREATE TABLE IF NOT EXISTS counters (
		channel TEXT PRIMARY KEY,
		buckets TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS history (
		channel TEXT NOT NULL,
		date TEXT NOT NULL,
		day INT NOT NULL,
		count INT NOT NULL,
		PRIMARY KEY (channel, date)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM db_version").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec("INSERT INTO db_version VALUES (?)", schemaVersion); err != nil {
			return err
		}
		if _, err := s.db.Exec("INSERT INTO last_update VALUES (0.0)"); err != nil {
			return err
		}
	case err != nil:
		return err
	case version != schemaVersion:
		return fmt.Errorf("unsupported database version %d (want %d)", version, schemaVersion)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Stamp converts a time to the REAL watermark representation. All watermark
// comparisons happen on these float values so a value read back from the
// database compares equal to the value that was stored.
func Stamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Watermark returns the newest request timestamp the census has accounted for.
func (s *Store) Watermark(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watermarkLocked(ctx)
}

func (s *Store) watermarkLocked(ctx context.Context) (float64, error) {
	var mark float64
	if err := s.db.QueryRowContext(ctx, "SELECT timestamp FROM last_update").Scan(&mark); err != nil {
		return 0, pherrors.StorageError("read watermark", err)
	}
	return mark, nil
}

// SetWatermark overwrites the stored watermark.
func (s *Store) SetWatermark(ctx context.Context, mark float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setWatermarkLocked(ctx, mark)
}

func (s *Store) setWatermarkLocked(ctx context.Context, mark float64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM last_update"); err != nil {
		return pherrors.StorageError("clear watermark", err)
	}
	if _, err := s.db.ExecContext(ctx, "INSERT INTO last_update VALUES (?)", mark); err != nil {
		return pherrors.StorageError("write watermark", err)
	}
	return nil
}

// ApplyPing folds one ping into the census: the channel counter absorbs the
// generation, the day's history row is upserted (day = pings so far that
// date, count = population after this ping), and the watermark advances if
// the ping is the newest seen. It returns the channel population after the
// ping.
func (s *Store) ApplyPing(ctx context.Context, channel string, generation int, at time.Time) (int64, error) {
	if channel == "" {
		return 0, pherrors.ValidationFailed("channel", "must not be empty")
	}
	if generation < 0 {
		return 0, pherrors.ValidationFailed("count", "must be a non-negative integer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, err := s.loadCounterLocked(ctx, channel)
	if err != nil {
		return 0, err
	}
	counter.Add(generation)
	if err := s.saveCounterLocked(ctx, channel, counter); err != nil {
		return 0, err
	}
	population := counter.Population()

	date := at.Local().Format("2006-01-02")
	var day int64
	err = s.db.QueryRowContext(ctx,
		"SELECT day FROM history WHERE channel = ? AND date = ?", channel, date,
	).Scan(&day)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, pherrors.StorageError("read history", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO history VALUES (?, ?, ?, ?)",
		channel, date, day+1, population,
	); err != nil {
		return 0, pherrors.StorageError("write history", err)
	}

	mark, err := s.watermarkLocked(ctx)
	if err != nil {
		return 0, err
	}
	if stamp := Stamp(at); stamp > mark {
		if err := s.setWatermarkLocked(ctx, stamp); err != nil {
			return 0, err
		}
	}
	return population, nil
}

func (s *Store) loadCounterLocked(ctx context.Context, channel string) (*Counter, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT buckets FROM counters WHERE channel = ?", channel,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return NewCounter(), nil
	}
	if err != nil {
		return nil, pherrors.StorageError("read counter", err)
	}

	counter := NewCounter()
	if err := json.Unmarshal([]byte(raw), counter); err != nil {
		return nil, pherrors.StorageError("decode counter", err)
	}
	return counter, nil
}

func (s *Store) saveCounterLocked(ctx context.Context, channel string, counter *Counter) error {
	raw, err := json.Marshal(counter)
	if err != nil {
		return pherrors.StorageError("encode counter", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO counters VALUES (?, ?)", channel, string(raw),
	); err != nil {
		return pherrors.StorageError("write counter", err)
	}
	return nil
}

// Channels lists every channel the census has seen, sorted.
func (s *Store) Channels(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT channel FROM counters ORDER BY channel")
	if err != nil {
		return nil, pherrors.StorageError("query channels", err)
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var ch string
		if err := rows.Scan(&ch); err != nil {
			return nil, pherrors.StorageError("scan channel", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, pherrors.StorageError("iterate channels", err)
	}
	return channels, nil
}

// Populations returns the current population estimate per channel.
func (s *Store) Populations(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT channel, buckets FROM counters")
	if err != nil {
		return nil, pherrors.StorageError("query counters", err)
	}
	defer rows.Close()

	populations := make(map[string]int64)
	for rows.Next() {
		var channel, raw string
		if err := rows.Scan(&channel, &raw); err != nil {
			return nil, pherrors.StorageError("scan counter", err)
		}
		counter := NewCounter()
		if err := json.Unmarshal([]byte(raw), counter); err != nil {
			return nil, pherrors.StorageError("decode counter", err)
		}
		populations[channel] = counter.Population()
	}
	if err := rows.Err(); err != nil {
		return nil, pherrors.StorageError("iterate counters", err)
	}
	return populations, nil
}

// Histogram returns a channel's generation buckets. Channels the census has
// never seen yield an empty histogram.
func (s *Store) Histogram(ctx context.Context, channel string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counter, err := s.loadCounterLocked(ctx, channel)
	if err != nil {
		return nil, err
	}
	return counter.Buckets(), nil
}

// History returns a channel's daily records in date order.
func (s *Store) History(ctx context.Context, channel string) ([]HistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT date, day, count FROM history WHERE channel = ? ORDER BY date", channel)
	if err != nil {
		return nil, pherrors.StorageError("query history", err)
	}
	defer rows.Close()

	var points []HistoryPoint
	for rows.Next() {
		var p HistoryPoint
		if err := rows.Scan(&p.Date, &p.Updates, &p.Machines); err != nil {
			return nil, pherrors.StorageError("scan history", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, pherrors.StorageError("iterate history", err)
	}
	return points, nil
}

// Reset clears counters, history, and the watermark, keeping the schema. Used
// before a full request-log rebuild.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range []string{
		"DELETE FROM counters",
		"DELETE FROM history",
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return pherrors.StorageError("reset census", err)
		}
	}
	return s.setWatermarkLocked(ctx, 0)
}
