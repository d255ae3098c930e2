// Package ledger keeps every classified candidate in a SQLite database so an
// interrupted search can resume.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/san-kum/zoosearch/internal/fly"
	"github.com/san-kum/zoosearch/internal/search"
)

const FileName = "ledger.db"

const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	scope       TEXT    NOT NULL,
	vx          TEXT    NOT NULL,
	vy          TEXT    NOT NULL,
	vz          TEXT    NOT NULL,
	idx         INTEGER NOT NULL,
	behavior    TEXT    NOT NULL,
	steps       INTEGER NOT NULL,
	min_x REAL, min_y REAL, min_z REAL,
	max_x REAL, max_y REAL, max_z REAL,
	fault       TEXT    NOT NULL DEFAULT '',
	recorded_at DATETIME NOT NULL,
	PRIMARY KEY (scope, vx, vy, vz)
);
CREATE INDEX IF NOT EXISTS idx_candidates_behavior ON candidates (scope, behavior);
`

// Ledger is a search.Ledger backed by SQLite. Entries are partitioned by a
// scope string so runs with different physical parameters never share
// classifications.
type Ledger struct {
	db    *sql.DB
	path  string
	scope string
}

var _ search.Ledger = (*Ledger)(nil)

// Open opens (creating if needed) dataDir/ledger.db.
func Open(dataDir, scope string) (*Ledger, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(dataDir, FileName)

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// Search workers record concurrently; one connection serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return &Ledger{db: db, path: path, scope: scope}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

func (l *Ledger) Path() string { return l.path }

func (l *Ledger) Scope() string { return l.scope }

func (l *Ledger) Lookup(ctx context.Context, t search.Triple) (search.Entry, bool, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT vx, vy, vz, idx, behavior, steps, min_x, min_y, min_z, max_x, max_y, max_z, fault
		FROM candidates WHERE scope = ? AND vx = ? AND vy = ? AND vz = ?`,
		l.scope, t[0], t[1], t[2])

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return search.Entry{}, false, nil
	}
	if err != nil {
		return search.Entry{}, false, err
	}
	return e, true, nil
}

func (l *Ledger) Record(ctx context.Context, e search.Entry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO candidates (scope, vx, vy, vz, idx, behavior, steps,
			min_x, min_y, min_z, max_x, max_y, max_z, fault, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope, vx, vy, vz) DO UPDATE SET
			idx = excluded.idx,
			behavior = excluded.behavior,
			steps = excluded.steps,
			min_x = excluded.min_x, min_y = excluded.min_y, min_z = excluded.min_z,
			max_x = excluded.max_x, max_y = excluded.max_y, max_z = excluded.max_z,
			fault = excluded.fault,
			recorded_at = excluded.recorded_at`,
		l.scope, e.Triple[0], e.Triple[1], e.Triple[2], e.Index, e.Behavior.String(), e.Steps,
		e.Box.Min[0], e.Box.Min[1], e.Box.Min[2], e.Box.Max[0], e.Box.Max[1], e.Box.Max[2],
		e.Fault, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording candidate %d: %w", e.Index, err)
	}
	return nil
}

// List returns the entries of the scope in product order. A negative
// behavior lists everything.
func (l *Ledger) List(ctx context.Context, behavior fly.Behavior) ([]search.Entry, error) {
	query := `
		SELECT vx, vy, vz, idx, behavior, steps, min_x, min_y, min_z, max_x, max_y, max_z, fault
		FROM candidates WHERE scope = ?`
	args := []any{l.scope}
	if behavior >= 0 {
		query += ` AND behavior = ?`
		args = append(args, behavior.String())
	}
	query += ` ORDER BY idx`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	defer rows.Close()

	var out []search.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts tallies the scope's entries by behavior.
func (l *Ledger) Counts(ctx context.Context) (map[fly.Behavior]int, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT behavior, COUNT(*) FROM candidates WHERE scope = ? GROUP BY behavior`, l.scope)
	if err != nil {
		return nil, fmt.Errorf("counting candidates: %w", err)
	}
	defer rows.Close()

	counts := make(map[fly.Behavior]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		b, err := fly.ParseBehavior(name)
		if err != nil {
			return nil, err
		}
		counts[b] = n
	}
	return counts, rows.Err()
}

// Clear drops every entry of the scope.
func (l *Ledger) Clear(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM candidates WHERE scope = ?`, l.scope)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (search.Entry, error) {
	var (
		e        search.Entry
		behavior string
	)
	err := s.Scan(&e.Triple[0], &e.Triple[1], &e.Triple[2], &e.Index, &behavior, &e.Steps,
		&e.Box.Min[0], &e.Box.Min[1], &e.Box.Min[2], &e.Box.Max[0], &e.Box.Max[1], &e.Box.Max[2],
		&e.Fault)
	if err != nil {
		return search.Entry{}, err
	}
	if e.Behavior, err = fly.ParseBehavior(behavior); err != nil {
		return search.Entry{}, err
	}
	return e, nil
}
