// Package savedb maintains the on-disk save index: named save slots pointing
// at snapshot files, plus a queryable log of simulation events. SQLite keeps
// it a single portable file next to the snapshots.
package savedb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"runnervale.ai/internal/protocol"
)

type SaveInfo struct {
	Slot      string
	WorldID   string
	Tick      uint64
	Digest    string
	Path      string
	CreatedAt string
}

type DB struct {
	db *sql.DB

	ch   chan eventRow
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type eventRow struct {
	Tick uint64
	Type string
	JSON string
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db: db,
		// Generous buffer: a busy tick can publish an event per runner
		// without stalling the sim.
		ch: make(chan eventRow, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS saves (
			slot TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			path TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_tick ON events(type, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordSave upserts a slot. Saves are rare and must not be lost, so the
// write is synchronous.
func (s *DB) RecordSave(info SaveInfo) error {
	if s == nil || s.closed.Load() {
		return fmt.Errorf("savedb closed")
	}
	if info.CreatedAt == "" {
		info.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`INSERT INTO saves (slot, world_id, tick, digest, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			world_id = excluded.world_id,
			tick = excluded.tick,
			digest = excluded.digest,
			path = excluded.path,
			created_at = excluded.created_at`,
		info.Slot, info.WorldID, info.Tick, info.Digest, info.Path, info.CreatedAt)
	return err
}

func (s *DB) GetSave(slot string) (SaveInfo, bool, error) {
	var info SaveInfo
	err := s.db.QueryRow(`SELECT slot, world_id, tick, digest, path, created_at
		FROM saves WHERE slot = ?`, slot).
		Scan(&info.Slot, &info.WorldID, &info.Tick, &info.Digest, &info.Path, &info.CreatedAt)
	if err == sql.ErrNoRows {
		return SaveInfo{}, false, nil
	}
	if err != nil {
		return SaveInfo{}, false, err
	}
	return info, true, nil
}

func (s *DB) ListSaves() ([]SaveInfo, error) {
	rows, err := s.db.Query(`SELECT slot, world_id, tick, digest, path, created_at
		FROM saves ORDER BY created_at DESC, slot ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaveInfo
	for rows.Next() {
		var info SaveInfo
		if err := rows.Scan(&info.Slot, &info.WorldID, &info.Tick, &info.Digest, &info.Path, &info.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *DB) DeleteSave(slot string) error {
	_, err := s.db.Exec(`DELETE FROM saves WHERE slot = ?`, slot)
	return err
}

// LogEvent queues an event row for the writer goroutine. Drops when the
// writer falls behind; the event log is an index, not the source of truth.
func (s *DB) LogEvent(tick uint64, ev protocol.Event) {
	if s == nil || s.closed.Load() {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case s.ch <- eventRow{Tick: tick, Type: ev.EventType(), JSON: string(b)}:
	default:
	}
}

func (s *DB) loop() {
	var seq uint64
	var lastTick uint64
	for row := range s.ch {
		if row.Tick != lastTick {
			lastTick = row.Tick
			seq = 0
		}
		_, err := s.db.Exec(`INSERT OR REPLACE INTO events (tick, seq, type, raw_json)
			VALUES (?, ?, ?, ?)`, row.Tick, seq, row.Type, row.JSON)
		if err == nil {
			seq++
		}
	}
}

// EventCount reports how many rows of a type were indexed (empty type counts
// everything).
func (s *DB) EventCount(eventType string) (int, error) {
	var n int
	var err error
	if eventType == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE type = ?`, eventType).Scan(&n)
	}
	return n, err
}
