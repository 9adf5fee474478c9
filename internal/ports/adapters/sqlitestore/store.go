// Package sqlitestore keeps finished runs in a local SQLite database so they
// can be browsed and served again without reprocessing.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forPelevin/vidbrief/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	input TEXT NOT NULL DEFAULT '',
	durationMs INTEGER NOT NULL,
	mode TEXT NOT NULL,
	createdAt REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS utterances (
	runId TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	text TEXT NOT NULL,
	startMs INTEGER NOT NULL,
	endMs INTEGER NOT NULL,
	PRIMARY KEY (runId, seq)
);

CREATE TABLE IF NOT EXISTS records (
	runId TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	segmentRangeStart INTEGER NOT NULL,
	segmentRangeEnd INTEGER NOT NULL,
	PRIMARY KEY (runId, seq)
);

CREATE INDEX IF NOT EXISTS runs_createdAt ON runs(createdAt);
`

type Store struct {
	db *sql.DB
}

// DefaultPath returns the per-user database location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "vidbrief", "runs.sqlite")
}

// Open opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores run, replacing any earlier version with the same ID.
func (s *Store) Save(ctx context.Context, run types.Run) (err error) {
	if run.ID == "" {
		return errors.New("save run: empty id")
	}
	if len(run.Segments) > 0 && len(run.Segments) != len(run.Summary) {
		return fmt.Errorf("save run: %d segments for %d records", len(run.Segments), len(run.Summary))
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{
		`DELETE FROM utterances WHERE runId = ?`,
		`DELETE FROM records WHERE runId = ?`,
		`DELETE FROM runs WHERE id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, q, run.ID); err != nil {
			return fmt.Errorf("delete old run: %w", err)
		}
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, title, input, durationMs, mode, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Title, run.Input, run.Duration.Milliseconds(), string(run.Source), unixFromTime(created)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	ustmt, err := tx.PrepareContext(ctx, `INSERT INTO utterances (runId, seq, text, startMs, endMs) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare utterances: %w", err)
	}
	defer ustmt.Close()
	for i, u := range run.Transcript {
		if _, err = ustmt.ExecContext(ctx, run.ID, i, u.Text, u.StartTimeMs, u.EndTimeMs); err != nil {
			return fmt.Errorf("insert utterance %d: %w", i, err)
		}
	}

	rstmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (runId, seq, timestamp, title, content, segmentRangeStart, segmentRangeEnd)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare records: %w", err)
	}
	defer rstmt.Close()
	for i, r := range run.Summary {
		st, en := -1, -1
		if i < len(run.Segments) {
			st, en = run.Segments[i].Start, run.Segments[i].End
		}
		if _, err = rstmt.ExecContext(ctx, run.ID, i, r.Timestamp, r.Title, r.Content, st, en); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (types.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, input, durationMs, mode, createdAt
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return types.Run{}, err
	}
	if err := s.loadDetails(ctx, &run); err != nil {
		return types.Run{}, err
	}
	return run, nil
}

// Latest returns the most recently created run.
func (s *Store) Latest(ctx context.Context) (types.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, input, durationMs, mode, createdAt
		FROM runs ORDER BY createdAt DESC, rowid DESC LIMIT 1`)
	run, err := scanRun(row)
	if err != nil {
		return types.Run{}, err
	}
	if err := s.loadDetails(ctx, &run); err != nil {
		return types.Run{}, err
	}
	return run, nil
}

// List returns run headers, newest first, without transcripts.
func (s *Store) List(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.title, r.input, r.durationMs, r.mode, r.createdAt,
			(SELECT COUNT(*) FROM records WHERE runId = r.id)
		FROM runs r
		ORDER BY r.createdAt DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []types.Run
	for rows.Next() {
		var (
			run        types.Run
			durationMs int64
			mode       string
			createdAt  float64
			records    int
		)
		if err := rows.Scan(&run.ID, &run.Title, &run.Input, &durationMs, &mode, &createdAt, &records); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.Source = types.Source(mode)
		run.CreatedAt = timeFromUnix(createdAt)
		run.Summary = make([]types.SummaryRecord, records)
		out = append(out, run)
	}
	return out, rows.Err()
}

// Delete removes a run and everything attached to it.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", types.ErrRunNotFound, id)
	}
	return nil
}

func scanRun(row *sql.Row) (types.Run, error) {
	var (
		run        types.Run
		durationMs int64
		mode       string
		createdAt  float64
	)
	if err := row.Scan(&run.ID, &run.Title, &run.Input, &durationMs, &mode, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Run{}, types.ErrRunNotFound
		}
		return types.Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond
	run.Source = types.Source(mode)
	run.CreatedAt = timeFromUnix(createdAt)
	return run, nil
}

func (s *Store) loadDetails(ctx context.Context, run *types.Run) error {
	urows, err := s.db.QueryContext(ctx, `
		SELECT text, startMs, endMs FROM utterances
		WHERE runId = ? ORDER BY seq ASC`, run.ID)
	if err != nil {
		return fmt.Errorf("query utterances: %w", err)
	}
	defer urows.Close()
	for urows.Next() {
		var u types.Utterance
		if err := urows.Scan(&u.Text, &u.StartTimeMs, &u.EndTimeMs); err != nil {
			return fmt.Errorf("scan utterance: %w", err)
		}
		run.Transcript = append(run.Transcript, u)
	}
	if err := urows.Err(); err != nil {
		return err
	}

	rrows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, title, content, segmentRangeStart, segmentRangeEnd FROM records
		WHERE runId = ? ORDER BY seq ASC`, run.ID)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	defer rrows.Close()
	withSegments := true
	for rrows.Next() {
		var (
			r      types.SummaryRecord
			st, en int
		)
		if err := rrows.Scan(&r.Timestamp, &r.Title, &r.Content, &st, &en); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		run.Summary = append(run.Summary, r)
		if st < 0 || en <= st {
			withSegments = false
		}
		run.Segments = append(run.Segments, types.Segment{Start: st, End: en})
	}
	if !withSegments {
		run.Segments = nil
	}
	return rrows.Err()
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
