package journal

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
	"github.com/warp/payroll-ledger/payroll"
)

// chainKey separates journal hashes from any other BLAKE3 use of the
// same bytes. ASCII, zero-padded to the 32 bytes keyed mode requires.
var chainKey = [32]byte{
	'p', 'a', 'y', 'r', 'o', 'l', 'l', '.', 'j', 'o', 'u', 'r', 'n', 'a', 'l', '.',
	'c', 'h', 'a', 'i', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ComputeHash returns the chain hash of an entry's identifying fields.
// The snapshot is not hashed: it is derived state, re-creatable from the
// events.
func ComputeHash(prev Hash, seq uint64, id string, ev payroll.Event) (Hash, error) {
	event, err := Marshal(ev)
	if err != nil {
		return Hash{}, fmt.Errorf("encode event: %w", err)
	}

	hasher, err := blake3.NewKeyed(chainKey[:])
	if err != nil {
		panic("journal: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var scratch [8]byte
	hasher.Write(prev[:])
	binary.BigEndian.PutUint64(scratch[:], seq)
	hasher.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], uint64(len(id)))
	hasher.Write(scratch[:])
	hasher.Write([]byte(id))
	hasher.Write(event)

	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h, nil
}

// Seal builds the entry that follows latest (nil for the first entry).
func Seal(latest *Entry, id string, ev payroll.Event, snapshot []byte, at time.Time) (Entry, error) {
	e := Entry{Seq: 1, ID: id, Event: ev, Snapshot: snapshot, RecordedAt: at}
	if latest != nil {
		e.Seq = latest.Seq + 1
		e.PrevHash = latest.Hash
	}
	h, err := ComputeHash(e.PrevHash, e.Seq, e.ID, e.Event)
	if err != nil {
		return Entry{}, err
	}
	e.Hash = h
	return e, nil
}

// Verify checks that entries form an unbroken chain. The slice may start
// anywhere in the journal; a slice starting at Seq 1 must have a zero
// PrevHash. Returns a *ChainError for the first bad entry.
func Verify(entries []Entry) error {
	for i, e := range entries {
		switch {
		case i == 0 && e.Seq == 1 && !e.PrevHash.IsZero():
			return &ChainError{Seq: e.Seq, Reason: "first entry has a previous hash"}
		case i > 0 && e.Seq != entries[i-1].Seq+1:
			return &ChainError{Seq: e.Seq, Reason: fmt.Sprintf("gap after %d", entries[i-1].Seq)}
		case i > 0 && e.PrevHash != entries[i-1].Hash:
			return &ChainError{Seq: e.Seq, Reason: "previous hash mismatch"}
		}
		want, err := ComputeHash(e.PrevHash, e.Seq, e.ID, e.Event)
		if err != nil {
			return &ChainError{Seq: e.Seq, Reason: err.Error()}
		}
		if want != e.Hash {
			return &ChainError{Seq: e.Seq, Reason: "hash mismatch"}
		}
	}
	return nil
}
