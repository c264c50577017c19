// Package history keeps a local SQLite log of battery queries and
// committed device changes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"kbd-indicator/internal/logger"
	"kbd-indicator/internal/types"
)

type Kind string

const (
	KindBatteryQuery Kind = "battery-query"
	KindDeviceCommit Kind = "device-commit"
)

// Entry is one logged event. Device and Paired are set for commits, Level
// for battery queries.
type Entry struct {
	ID     int64
	Kind   Kind
	Device types.DeviceID
	Paired bool
	Level  uint8
	At     time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	kind   TEXT    NOT NULL,
	device TEXT,
	paired INTEGER NOT NULL DEFAULT 0,
	level  INTEGER,
	ts     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_ts ON events(ts);
`

const queueSize = 64

// Store writes entries from a background goroutine so callers on the key
// path never wait for the disk.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	queue  chan Entry
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func Open(path string, l *logger.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	// SQLite serializes writers anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	s := &Store{
		db:     db,
		logger: l,
		queue:  make(chan Entry, queueSize),
	}
	s.wg.Add(1)
	go s.writer()

	l.Infof("History at %s", path)
	return s, nil
}

func (s *Store) writer() {
	defer s.wg.Done()
	for e := range s.queue {
		if err := s.Insert(context.Background(), e); err != nil {
			s.logger.Warnf("Failed to record %s: %v", e.Kind, err)
		}
	}
}

// Enqueue hands e to the writer. Entries are dropped when the queue is full
// or the store is closed.
func (s *Store) Enqueue(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.queue <- e:
	default:
		s.logger.Warnf("History queue full, dropping %s", e.Kind)
	}
}

func (s *Store) RecordBatteryQuery(level uint8, at time.Time) {
	s.Enqueue(Entry{Kind: KindBatteryQuery, Level: level, At: at})
}

func (s *Store) RecordDeviceCommit(dev types.DeviceID, paired bool, at time.Time) {
	s.Enqueue(Entry{Kind: KindDeviceCommit, Device: dev, Paired: paired, At: at})
}

// Insert writes e synchronously.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	var device sql.NullString
	var level sql.NullInt64
	switch e.Kind {
	case KindDeviceCommit:
		device = sql.NullString{String: e.Device.String(), Valid: true}
	case KindBatteryQuery:
		level = sql.NullInt64{Int64: int64(e.Level), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (kind, device, paired, level, ts) VALUES (?, ?, ?, ?, ?)`,
		string(e.Kind), device, e.Paired, level, e.At.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", e.Kind, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, device, paired, level, ts FROM events ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			kind   string
			device sql.NullString
			level  sql.NullInt64
			ts     int64
		)
		if err := rows.Scan(&e.ID, &kind, &device, &e.Paired, &level, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Kind = Kind(kind)
		e.At = time.Unix(0, ts)
		if device.Valid {
			if dev, err := types.ParseDevice(device.String); err == nil {
				e.Device = dev
			}
		}
		if level.Valid {
			e.Level = uint8(level.Int64)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close flushes queued entries and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	return s.db.Close()
}
