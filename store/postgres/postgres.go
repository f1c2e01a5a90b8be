/*
Package postgres provides a PostgreSQL-backed journal.Store.

PURPOSE:
  Same contract and schema shape as store/sqlite, for deployments that
  already run PostgreSQL. Selected with store.driver: postgres.

CONCURRENCY:
  Several service processes may point at one database. Append takes a
  transaction-scoped advisory lock so the latest-entry check and the
  insert are atomic across processes; the seq primary key backs it up.

TYPES:
  event_json  JSONB        the payroll.Event
  prev_hash   BYTEA        32-byte BLAKE3 digest
  recorded_at TIMESTAMPTZ

SEE ALSO:
  - store/sqlite/sqlite.go: Default store
  - journal/journal.go: Store contract
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/payroll-ledger/journal"
)

// appendLockKey identifies the advisory lock serializing appends.
const appendLockKey = 0x7061_7972_6f6c_6c

// Store implements journal.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ journal.Store = (*Store)(nil)

// Connect opens a pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// New connects to dsn and migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks connectivity, for health endpoints.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS journal_entries (
		seq BIGINT PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		caller TEXT NOT NULL,
		employee TEXT NOT NULL DEFAULT '',
		event_json JSONB NOT NULL,
		prev_hash BYTEA NOT NULL,
		hash BYTEA NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_kind
		ON journal_entries(kind);
	CREATE INDEX IF NOT EXISTS idx_journal_employee
		ON journal_entries(employee, seq);

	CREATE TABLE IF NOT EXISTS journal_snapshots (
		seq BIGINT PRIMARY KEY REFERENCES journal_entries(seq),
		data BYTEA NOT NULL
	);
	`)
	return err
}

// Reset empties both tables. Development and tests only.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE journal_snapshots, journal_entries`)
	return err
}

// =============================================================================
// JOURNAL STORE (journal.Store interface)
// =============================================================================

func (s *Store) Append(ctx context.Context, e journal.Entry) error {
	eventJSON, err := json.Marshal(e.Event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(appendLockKey)); err != nil {
		return fmt.Errorf("failed to lock journal: %w", err)
	}

	var exists int
	err = tx.QueryRow(ctx, `SELECT 1 FROM journal_entries WHERE id = $1`, e.ID).Scan(&exists)
	switch {
	case err == nil:
		return journal.ErrDuplicateEntry
	case !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("failed to check entry id: %w", err)
	}

	latest, err := latestHead(ctx, tx)
	if err != nil {
		return err
	}
	if err := journal.CheckNext(latest, e); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO journal_entries
		(seq, id, kind, caller, employee, event_json, prev_hash, hash, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		int64(e.Seq),
		e.ID,
		string(e.Event.Kind),
		string(e.Event.Caller),
		string(e.Event.Employee),
		eventJSON,
		e.PrevHash[:],
		e.Hash[:],
		e.RecordedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return journal.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to append entry: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO journal_snapshots (seq, data) VALUES ($1, $2)`, int64(e.Seq), e.Snapshot); err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) Latest(ctx context.Context) (*journal.Entry, error) {
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

func (s *Store) Entries(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	snapshotCol := "NULL::BYTEA"
	if f.WithSnapshots {
		snapshotCol = "s.data"
	}
	where := []string{"e.seq >= $1"}
	args := []any{int64(f.FromSeq)}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("e.kind = $%d", len(args)))
	}
	if f.Employee != "" {
		args = append(args, string(f.Employee))
		where = append(where, fmt.Sprintf("e.employee = $%d", len(args)))
	}
	limit := ""
	if f.Limit > 0 {
		args = append(args, f.Limit)
		limit = fmt.Sprintf("LIMIT $%d", len(args))
	}

	query := `
		SELECT e.seq, e.id, e.event_json, e.prev_hash, e.hash, e.recorded_at, ` + snapshotCol + `
		FROM journal_entries e
		LEFT JOIN journal_snapshots s ON s.seq = e.seq
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY e.seq ASC
		` + limit
	return s.queryEntries(ctx, query, args...)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]journal.Entry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var (
			e          journal.Entry
			seq        int64
			eventJSON  []byte
			prev, hash []byte
		)
		if err := rows.Scan(&seq, &e.ID, &eventJSON, &prev, &hash, &e.RecordedAt, &e.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Seq = uint64(seq)
		if err := json.Unmarshal(eventJSON, &e.Event); err != nil {
			return nil, fmt.Errorf("entry %d: failed to decode event: %w", e.Seq, err)
		}
		copy(e.PrevHash[:], prev)
		copy(e.Hash[:], hash)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func latestHead(ctx context.Context, tx pgx.Tx) (*journal.Entry, error) {
	var (
		seq  int64
		hash []byte
	)
	err := tx.QueryRow(ctx,
		`SELECT seq, hash FROM journal_entries ORDER BY seq DESC LIMIT 1`).Scan(&seq, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest entry: %w", err)
	}
	e := &journal.Entry{Seq: uint64(seq)}
	copy(e.Hash[:], hash)
	return e, nil
}
