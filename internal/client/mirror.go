package client

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Mirror remembers slots this client booked. It is advisory: consulted only when the API
// cannot be reached, and never authoritative over the server.
type Mirror interface {
	BookedSlots(ctx context.Context) ([]int64, error)
	RecordBooked(ctx context.Context, timestamp int64) error
}

// MemoryMirror keeps the mirror in process.
type MemoryMirror struct {
	mu     sync.Mutex
	booked map[int64]struct{}
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{booked: map[int64]struct{}{}}
}

func (m *MemoryMirror) BookedSlots(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.booked))
	for ts := range m.booked {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *MemoryMirror) RecordBooked(ctx context.Context, timestamp int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.booked[timestamp] = struct{}{}
	return nil
}

// SQLiteMirror persists the mirror in a local SQLite file so it survives restarts.
type SQLiteMirror struct {
	db  *sql.DB
	now func() time.Time
}

const mirrorSchema = `CREATE TABLE IF NOT EXISTS booked_slots (
	timestamp   INTEGER PRIMARY KEY,
	recorded_at TEXT NOT NULL
)`

// OpenSQLiteMirror opens or creates the mirror database at path.
func OpenSQLiteMirror(path string) (*SQLiteMirror, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("client: create mirror dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("client: open mirror: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under the poller.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(mirrorSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("client: migrate mirror: %w", err)
	}
	return &SQLiteMirror{db: db, now: time.Now}, nil
}

func (m *SQLiteMirror) BookedSlots(ctx context.Context) ([]int64, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT timestamp FROM booked_slots ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("client: query mirror: %w", err)
	}
	defer rows.Close()

	out := []int64{}
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("client: scan mirror: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (m *SQLiteMirror) RecordBooked(ctx context.Context, timestamp int64) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO booked_slots (timestamp, recorded_at) VALUES (?, ?) ON CONFLICT(timestamp) DO NOTHING`,
		timestamp, m.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("client: record booked slot: %w", err)
	}
	return nil
}

func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}

var (
	_ Mirror = (*MemoryMirror)(nil)
	_ Mirror = (*SQLiteMirror)(nil)
)
