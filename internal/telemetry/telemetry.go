// Package telemetry spools one record per completed operation into a
// local SQLite database the system's telemetry shipper drains.
package telemetry

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Event is one operation record.
type Event struct {
	Operation string
	Bundles   []string
	Version   int
	Result    int
	Bytes     int64
}

// Recorder accepts operation records.
type Recorder interface {
	Record(ev Event) error
	Close() error
}

// Nop drops every record; used when telemetry is disabled.
type Nop struct{}

func (Nop) Record(Event) error { return nil }
func (Nop) Close() error       { return nil }

// Spool is the SQLite-backed recorder.
type Spool struct {
	db *sql.DB
}

// Open creates or opens the spool database.
func Open(path string) (*Spool, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry spool %s: %w", path, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation TEXT NOT NULL,
		bundles TEXT NOT NULL,
		version INTEGER NOT NULL,
		result INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		created INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create telemetry schema: %w", err)
	}
	return &Spool{db: db}, nil
}

// Record inserts one event.
func (s *Spool) Record(ev Event) error {
	_, err := s.db.Exec(
		`INSERT INTO events (operation, bundles, version, result, bytes, created) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Operation, strings.Join(ev.Bundles, ", "), ev.Version, ev.Result, ev.Bytes, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record telemetry event: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Spool) Close() error { return s.db.Close() }
