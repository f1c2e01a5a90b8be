/*
Package journal persists the payroll ledger as an append-only, hash-chained
sequence of entries.

PURPOSE:
  Every successful mutating operation produces exactly one Entry: the
  payroll.Event it emitted plus an encoded snapshot of the full ledger
  state after it. Recovery loads the latest snapshot; audit walks the
  events and verifies the chain.

APPEND-ONLY CONTRACT:
  - Append(): the ONLY write. Seq must be latest+1 and PrevHash must be
    the latest entry's Hash, otherwise ErrOutOfOrder.
  - Entry IDs are unique; a repeated ID fails ErrDuplicateEntry.
  - No Update() or Delete() methods exist.

CHAIN:
  Hash = blake3-keyed(PrevHash || Seq || ID || cbor(Event)). The first
  entry has Seq 1 and a zero PrevHash. See chain.go.

IMPLEMENTATIONS:
  - journal.Memory: in-process, for tests and the "memory" driver
  - store/sqlite.Store: default durable store
  - store/postgres.Store: server database

SEE ALSO:
  - codec.go: Snapshot encoding (CBOR + zstd)
  - service/service.go: The only writer
*/
package journal

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/warp/payroll-ledger/payroll"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrDuplicateEntry = errors.New("journal entry already exists")
	ErrOutOfOrder     = errors.New("journal entry does not extend the latest entry")
	ErrBrokenChain    = errors.New("journal hash chain is broken")
	ErrBadSnapshot    = errors.New("journal snapshot cannot be decoded")
)

// ChainError reports the first entry that fails verification.
type ChainError struct {
	Seq    uint64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("journal entry %d: %s", e.Seq, e.Reason)
}

func (e *ChainError) Unwrap() error { return ErrBrokenChain }

// =============================================================================
// ENTRY
// =============================================================================

// Hash is a 32-byte BLAKE3 digest. It renders as hex in JSON.
type Hash [32]byte

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(text []byte) error {
	n, err := hex.Decode(h[:], text)
	if err != nil {
		return err
	}
	if n != len(h) {
		return fmt.Errorf("hash: got %d bytes, want %d", n, len(h))
	}
	return nil
}

// Entry is one journaled operation.
type Entry struct {
	Seq        uint64        `json:"seq"`
	ID         string        `json:"id"`
	Event      payroll.Event `json:"event"`
	Snapshot   []byte        `json:"-"`
	PrevHash   Hash          `json:"prev_hash"`
	Hash       Hash          `json:"hash"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// =============================================================================
// STORE
// =============================================================================

// Store persists entries.
type Store interface {
	// Append persists e atomically, event and snapshot together.
	Append(ctx context.Context, e Entry) error

	// Latest returns the entry with the highest Seq, snapshot included,
	// or nil when the journal is empty.
	Latest(ctx context.Context) (*Entry, error)

	// Entries returns matching entries in Seq order. Snapshots are only
	// loaded when Filter.WithSnapshots is set.
	Entries(ctx context.Context, f Filter) ([]Entry, error)
}

// Filter selects entries. Zero fields match everything.
type Filter struct {
	FromSeq       uint64
	Kind          payroll.EventKind
	Employee      payroll.Identity
	Limit         int
	WithSnapshots bool
}

// Match reports whether e passes every criterion except Limit.
func (f Filter) Match(e Entry) bool {
	if e.Seq < f.FromSeq {
		return false
	}
	if f.Kind != "" && e.Event.Kind != f.Kind {
		return false
	}
	if f.Employee != "" && e.Event.Employee != f.Employee {
		return false
	}
	return true
}

// CheckNext validates that e may be appended after latest (nil when the
// journal is empty). Stores call it inside their write critical section.
func CheckNext(latest *Entry, e Entry) error {
	wantSeq, wantPrev := uint64(1), Hash{}
	if latest != nil {
		wantSeq, wantPrev = latest.Seq+1, latest.Hash
	}
	if e.Seq != wantSeq {
		return fmt.Errorf("%w: seq %d, want %d", ErrOutOfOrder, e.Seq, wantSeq)
	}
	if e.PrevHash != wantPrev {
		return fmt.Errorf("%w: prev hash %s, want %s", ErrOutOfOrder, e.PrevHash, wantPrev)
	}
	return nil
}
