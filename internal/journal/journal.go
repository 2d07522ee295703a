// Package journal persists engine results in SQLite so CLI runs can be
// inspected later. Payloads are stored msgpack-encoded.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/vmihailenco/msgpack/v5"

	apperrors "chaosalign/internal/errors"
	"chaosalign/pkg/utils"
)

// Kind classifies a journal entry.
type Kind string

const (
	KindSignal   Kind = "signal"
	KindScore    Kind = "score"
	KindSnapshot Kind = "snapshot"
	KindImpact   Kind = "impact"
)

// Config holds journal configuration.
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DefaultConfig returns the default journal configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Enabled: false,
		Path:    filepath.Join(home, ".config", "chaosalign", "journal.db"),
	}
}

// Entry is one journalled result.
type Entry struct {
	ID        string
	Kind      Kind
	Subject   string
	Timestamp time.Time
	Payload   []byte
}

// Decode unpacks the entry payload into out.
func (e Entry) Decode(out any) error {
	if err := msgpack.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("failed to decode entry %s: %w", e.ID, err)
	}
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Kind    Kind
	Subject string
	Since   time.Time
	Limit   int
}

// Journal is a SQLite-backed result log.
type Journal struct {
	db    *sql.DB
	retry utils.RetryConfig
	now   func() time.Time
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	retry := utils.DefaultRetryConfig()
	retry.Retryable = isBusy

	j := &Journal{db: db, retry: retry, now: time.Now}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		subject TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_kind_subject ON entries(kind, subject, timestamp);
	`
	_, err := j.db.Exec(schema)
	return err
}

// isBusy reports whether err is a transient SQLite lock error.
func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores v under kind and subject and returns the new entry ID.
func (j *Journal) Record(ctx context.Context, kind Kind, subject string, v any) (string, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	id := uuid.NewString()
	ts := j.now().UnixNano()

	err = utils.Retry(ctx, j.retry, func() error {
		_, err := j.db.ExecContext(ctx, `
			INSERT INTO entries (id, kind, subject, timestamp, payload)
			VALUES (?, ?, ?, ?, ?)
		`, id, string(kind), subject, ts, payload)
		return err
	})
	if err != nil {
		return "", apperrors.Wrap(fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err), "failed to record entry")
	}
	return id, nil
}

// Get returns one entry by ID.
func (j *Journal) Get(ctx context.Context, id string) (Entry, error) {
	var (
		e    Entry
		kind string
		ts   int64
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT id, kind, subject, timestamp, payload FROM entries WHERE id = ?
	`, id).Scan(&e.ID, &kind, &e.Subject, &ts, &e.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, apperrors.Wrapf(apperrors.ErrDataNotFound, "entry %s", id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err)
	}
	e.Kind = Kind(kind)
	e.Timestamp = time.Unix(0, ts)
	return e, nil
}

// List returns matching entries, newest first.
func (j *Journal) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := "SELECT id, kind, subject, timestamp, payload FROM entries WHERE 1=1"
	args := []interface{}{}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if filter.Subject != "" {
		query += " AND subject = ?"
		args = append(args, filter.Subject)
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UnixNano())
	}
	query += " ORDER BY timestamp DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			kind string
			ts   int64
		)
		if err := rows.Scan(&e.ID, &kind, &e.Subject, &ts, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Kind = Kind(kind)
		e.Timestamp = time.Unix(0, ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries of a kind, or of all kinds when kind
// is empty.
func (j *Journal) Count(ctx context.Context, kind Kind) (int, error) {
	var n int
	var err error
	if kind == "" {
		err = j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n)
	} else {
		err = j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries WHERE kind = ?", string(kind)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err)
	}
	return n, nil
}

// Prune deletes entries older than before and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, "DELETE FROM entries WHERE timestamp < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err)
	}
	return res.RowsAffected()
}
