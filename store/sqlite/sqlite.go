/*
Package sqlite provides a SQLite-backed journal.Store.

PURPOSE:
  Default durable store for the payroll service. One file holds the
  hash-chained journal and the per-entry ledger snapshots.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on either table
  - No DELETE statements on either table
  - seq is the primary key and id is UNIQUE, so a replayed entry is
    rejected by the database even if the in-process checks were bypassed

KEY TABLES:
  journal_entries:   One row per successful operation (event as JSON)
  journal_snapshots: Encoded ledger state after that operation

INDEXES:
  - idx_journal_kind:     Filter by event kind (claims for payslips)
  - idx_journal_employee: Filter by employee (history views)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; Append additionally runs in a
  database transaction so entry and snapshot land together.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc, err := service.Open(ctx, cfg, store)

SEE ALSO:
  - journal/journal.go: Store contract
  - store/postgres/postgres.go: Same contract on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/payroll-ledger/journal"
)

// Store implements journal.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ journal.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS journal_entries (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		caller TEXT NOT NULL,
		employee TEXT NOT NULL DEFAULT '',
		event_json TEXT NOT NULL,
		prev_hash BLOB NOT NULL,
		hash BLOB NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_kind
		ON journal_entries(kind);
	CREATE INDEX IF NOT EXISTS idx_journal_employee
		ON journal_entries(employee, seq);

	CREATE TABLE IF NOT EXISTS journal_snapshots (
		seq INTEGER PRIMARY KEY REFERENCES journal_entries(seq),
		data BLOB NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// JOURNAL STORE (journal.Store interface)
// =============================================================================

// Append writes e and its snapshot in one transaction.
func (s *Store) Append(ctx context.Context, e journal.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventJSON, err := json.Marshal(e.Event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var exists int
	err = sqlTx.QueryRowContext(ctx, `SELECT 1 FROM journal_entries WHERE id = ?`, e.ID).Scan(&exists)
	switch {
	case err == nil:
		return journal.ErrDuplicateEntry
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check entry id: %w", err)
	}

	latest, err := latestHead(ctx, sqlTx)
	if err != nil {
		return err
	}
	if err := journal.CheckNext(latest, e); err != nil {
		return err
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO journal_entries
		(seq, id, kind, caller, employee, event_json, prev_hash, hash, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Seq,
		e.ID,
		string(e.Event.Kind),
		string(e.Event.Caller),
		string(e.Event.Employee),
		string(eventJSON),
		e.PrevHash[:],
		e.Hash[:],
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return journal.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to append entry: %w", err)
	}

	if _, err := sqlTx.ExecContext(ctx,
		`INSERT INTO journal_snapshots (seq, data) VALUES (?, ?)`, e.Seq, e.Snapshot); err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}

	return sqlTx.Commit()
}

// Latest returns the newest entry with its snapshot.
func (s *Store) Latest(ctx context.Context) (*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.queryEntries(ctx, `
		SELECT e.seq, e.id, e.event_json, e.prev_hash, e.hash, e.recorded_at, s.data
		FROM journal_entries e
		LEFT JOIN journal_snapshots s ON s.seq = e.seq
		ORDER BY e.seq DESC
		LIMIT 1
	`)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// Entries returns entries matching f in seq order.
func (s *Store) Entries(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshotCol := "NULL"
	if f.WithSnapshots {
		snapshotCol = "s.data"
	}
	var (
		where []string
		args  []any
	)
	where = append(where, "e.seq >= ?")
	args = append(args, f.FromSeq)
	if f.Kind != "" {
		where = append(where, "e.kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Employee != "" {
		where = append(where, "e.employee = ?")
		args = append(args, string(f.Employee))
	}
	limit := -1
	if f.Limit > 0 {
		limit = f.Limit
	}
	args = append(args, limit)

	query := `
		SELECT e.seq, e.id, e.event_json, e.prev_hash, e.hash, e.recorded_at, ` + snapshotCol + `
		FROM journal_entries e
		LEFT JOIN journal_snapshots s ON s.seq = e.seq
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY e.seq ASC
		LIMIT ?
	`
	return s.queryEntries(ctx, query, args...)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]journal.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (journal.Entry, error) {
	var (
		e          journal.Entry
		eventJSON  string
		prev, hash []byte
		recordedAt string
		snapshot   []byte
	)
	if err := rows.Scan(&e.Seq, &e.ID, &eventJSON, &prev, &hash, &recordedAt, &snapshot); err != nil {
		return journal.Entry{}, fmt.Errorf("failed to scan entry: %w", err)
	}
	if err := json.Unmarshal([]byte(eventJSON), &e.Event); err != nil {
		return journal.Entry{}, fmt.Errorf("entry %d: failed to decode event: %w", e.Seq, err)
	}
	copy(e.PrevHash[:], prev)
	copy(e.Hash[:], hash)
	e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
	e.Snapshot = snapshot
	return e, nil
}

func latestHead(ctx context.Context, tx *sql.Tx) (*journal.Entry, error) {
	var (
		e    journal.Entry
		hash []byte
	)
	err := tx.QueryRowContext(ctx,
		`SELECT seq, hash FROM journal_entries ORDER BY seq DESC LIMIT 1`).Scan(&e.Seq, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest entry: %w", err)
	}
	copy(e.Hash[:], hash)
	return &e, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
