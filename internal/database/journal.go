// Package database keeps the event journal: an append-only SQLite log of the
// events the detector emitted, kept for diagnostics. Nothing in it is ever
// read back into detector state.
package database

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

// EventRecord is one journal row
type EventRecord struct {
	ID        string
	Source    string
	Kind      pipeline.EventKind
	Timestamp time.Time
	FrameSeq  uint64
	Distance  float64
	Position  float64
}

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	Kind  pipeline.EventKind
	Since time.Time
	Limit int
}

// Journal handles SQLite journal operations
type Journal struct {
	db     *sql.DB
	source string

	mu       sync.Mutex
	failures uint64
}

// Open opens (creating if needed) the journal at path and runs migrations.
// source is stored with every row to tell cameras apart in a shared file.
func Open(path, source string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// A single connection serializes writers; SQLite allows one at a time anyway
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	j := &Journal{db: db, source: source}
	if err := j.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}

// Migrate runs journal migrations
func (j *Journal) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			kind TEXT NOT NULL,
			timestamp_ns INTEGER NOT NULL,
			frame_seq INTEGER NOT NULL,
			distance REAL DEFAULT 0,
			position REAL DEFAULT 0,
			recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_time ON events(timestamp_ns DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind_time ON events(kind, timestamp_ns DESC)`,
	}

	for _, migration := range migrations {
		if _, err := j.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Record appends an event. Recording the same event twice is a no-op.
func (j *Journal) Record(ev *pipeline.Event) error {
	query := `INSERT INTO events (id, source, kind, timestamp_ns, frame_seq, distance, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`

	_, err := j.db.Exec(query, ev.ID, j.source, string(ev.Kind), ev.Timestamp.UnixNano(),
		int64(ev.FrameSeq), ev.Distance, ev.Position)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// OnEvent implements pipeline.EventHandler. Failures are logged and counted;
// the journal never interrupts detection.
func (j *Journal) OnEvent(ev *pipeline.Event) {
	if err := j.Record(ev); err != nil {
		j.mu.Lock()
		j.failures++
		n := j.failures
		j.mu.Unlock()
		monitoring.Logf("[Journal] %v (failures: %d)", err, n)
	}
}

// Consume records events from ch until it is closed. It is meant to run on
// its own goroutine behind a buffered bus subscription, so a slow or locked
// database never holds up the tick loop.
func (j *Journal) Consume(ch <-chan *pipeline.Event) {
	for ev := range ch {
		j.OnEvent(ev)
	}
}

// Get retrieves an event by ID. A missing event returns nil, nil.
func (j *Journal) Get(id string) (*EventRecord, error) {
	query := `SELECT id, source, kind, timestamp_ns, frame_seq, distance, position FROM events WHERE id = ?`

	rec, err := scanRecord(j.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return rec, nil
}

// List returns events newest first
func (j *Journal) List(filter ListFilter) ([]*EventRecord, error) {
	query := `SELECT id, source, kind, timestamp_ns, frame_seq, distance, position FROM events WHERE 1=1`
	args := []interface{}{}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp_ns >= ?"
		args = append(args, filter.Since.UnixNano())
	}

	query += " ORDER BY timestamp_ns DESC, frame_seq DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var records []*EventRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByKind returns the number of journaled events per kind
func (j *Journal) CountByKind() (map[pipeline.EventKind]int, error) {
	rows, err := j.db.Query("SELECT kind, COUNT(*) FROM events GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[pipeline.EventKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[pipeline.EventKind(kind)] = n
	}
	return counts, rows.Err()
}

// DeleteBefore deletes events older than before and returns how many were removed
func (j *Journal) DeleteBefore(before time.Time) (int64, error) {
	result, err := j.db.Exec("DELETE FROM events WHERE timestamp_ns < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*EventRecord, error) {
	var rec EventRecord
	var kind string
	var ts, seq int64
	if err := row.Scan(&rec.ID, &rec.Source, &kind, &ts, &seq, &rec.Distance, &rec.Position); err != nil {
		return nil, err
	}
	rec.Kind = pipeline.EventKind(kind)
	rec.Timestamp = time.Unix(0, ts)
	rec.FrameSeq = uint64(seq)
	return &rec, nil
}

var _ pipeline.EventHandler = (*Journal)(nil)
