package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"nativekeymap/internal/keymap"
)

// Store is the snapshot history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and migrates it.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SchemaVersion returns the applied schema version.
func (s *Store) SchemaVersion() (int, error) {
	return schemaVersion(s.db)
}

// Record stores r unless the most recent snapshot has the same digest.
// It returns the id of the stored or matching row and whether a row was
// inserted. A zero TakenAt is set to now and a zero Digest is computed.
func (s *Store) Record(ctx context.Context, r *Record) (int64, bool, error) {
	if r.TakenAt.IsZero() {
		r.TakenAt = time.Now()
	}
	if r.Digest == ([32]byte{}) {
		r.Digest = r.Snapshot.Digest()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		lastID     int64
		lastDigest []byte
	)
	err = tx.QueryRowContext(ctx, "SELECT id, digest FROM snapshots ORDER BY id DESC LIMIT 1").Scan(&lastID, &lastDigest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, false, fmt.Errorf("read latest digest: %w", err)
	case string(lastDigest) == string(r.Digest[:]):
		r.ID = lastID
		return lastID, false, nil
	}

	keymapJSON, err := json.Marshal(r.Snapshot)
	if err != nil {
		return 0, false, fmt.Errorf("encode keymap: %w", err)
	}
	installed := r.Installed
	if installed == nil {
		installed = []string{}
	}
	installedJSON, err := json.Marshal(installed)
	if err != nil {
		return 0, false, fmt.Errorf("encode installed languages: %w", err)
	}

	var layout sql.NullString
	if r.HasLayout {
		layout = sql.NullString{String: r.Layout, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (taken_at, platform, layout, language, digest, key_count, keymap, installed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TakenAt.UnixNano(), r.Platform, layout, r.Language, r.Digest[:], r.Snapshot.Len(), string(keymapJSON), string(installedJSON),
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("get snapshot id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit: %w", err)
	}
	r.ID = id
	return id, true, nil
}

const recordColumns = "id, taken_at, platform, layout, language, installed, digest, keymap"

// Get returns the snapshot with the given id.
func (s *Store) Get(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM snapshots WHERE id = ?", id)
	return scanRecord(row)
}

// Latest returns the most recent snapshot.
func (s *Store) Latest(ctx context.Context) (*Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM snapshots ORDER BY id DESC LIMIT 1")
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (*Record, error) {
	var (
		r         Record
		takenAt   int64
		layout    sql.NullString
		installed string
		digest    []byte
		keymapTxt string
	)
	err := row.Scan(&r.ID, &takenAt, &r.Platform, &layout, &r.Language, &installed, &digest, &keymapTxt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}

	r.TakenAt = time.Unix(0, takenAt)
	r.Layout, r.HasLayout = layout.String, layout.Valid
	copy(r.Digest[:], digest)
	if err := json.Unmarshal([]byte(installed), &r.Installed); err != nil {
		return nil, fmt.Errorf("decode installed languages: %w", err)
	}
	var snap keymap.Snapshot
	if err := json.Unmarshal([]byte(keymapTxt), &snap); err != nil {
		return nil, fmt.Errorf("decode keymap: %w", err)
	}
	r.Snapshot = snap
	return &r, nil
}

// List returns up to limit summaries, newest first. A limit of zero or
// less lists everything.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, taken_at, platform, layout, language, digest, key_count
		FROM snapshots ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			takenAt int64
			layout  sql.NullString
			digest  []byte
		)
		if err := rows.Scan(&sum.ID, &takenAt, &sum.Platform, &layout, &sum.Language, &digest, &sum.Keys); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.TakenAt = time.Unix(0, takenAt)
		sum.Layout = layout.String
		copy(sum.Digest[:], digest)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Count returns the number of stored snapshots.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

// Prune deletes all but the newest keep snapshots and returns how many
// were removed. keep <= 0 removes nothing.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
