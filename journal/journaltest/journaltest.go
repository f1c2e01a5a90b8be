// Package journaltest holds the behavior every journal.Store must share.
// Each implementation runs it from its own tests.
package journaltest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-ledger/journal"
	"github.com/warp/payroll-ledger/payroll"
)

// Chain builds n sealed entries alternating between two employees.
func Chain(t *testing.T, n int) []journal.Entry {
	t.Helper()
	base := time.Date(2023, time.May, 1, 9, 0, 0, 0, time.UTC)
	var (
		out    []journal.Entry
		latest *journal.Entry
	)
	for i := 0; i < n; i++ {
		emp := payroll.Identity(fmt.Sprintf("emp-%d", i%2+1))
		ev := payroll.Event{
			Kind:         payroll.EventAddEmployee,
			Caller:       "admin",
			Employee:     emp,
			Manager:      "mgr-1",
			SalaryPerDay: decimal.NewFromInt(int64(100 + i)),
			At:           base.Add(time.Duration(i) * time.Minute),
		}
		if i%2 == 1 {
			ev.Kind = payroll.EventCheckIn
			ev.Period = payroll.Period{Month: time.May, Year: 2023}
		}
		e, err := journal.Seal(latest, fmt.Sprintf("entry-%d", i+1), ev, []byte(fmt.Sprintf("snapshot-%d", i+1)), ev.At)
		require.NoError(t, err)
		out = append(out, e)
		latest = &out[len(out)-1]
	}
	return out
}

// RunStoreTests exercises open()'s store against the journal.Store
// contract. open must return an empty store.
func RunStoreTests(t *testing.T, open func(t *testing.T) journal.Store) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		s := open(t)

		latest, err := s.Latest(ctx)
		require.NoError(t, err)
		assert.Nil(t, latest)

		entries, err := s.Entries(ctx, journal.Filter{})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("append and read back", func(t *testing.T) {
		s := open(t)
		chain := Chain(t, 4)
		for _, e := range chain {
			require.NoError(t, s.Append(ctx, e))
		}

		latest, err := s.Latest(ctx)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, uint64(4), latest.Seq)
		assert.Equal(t, chain[3].Hash, latest.Hash)
		assert.Equal(t, []byte("snapshot-4"), latest.Snapshot)

		entries, err := s.Entries(ctx, journal.Filter{})
		require.NoError(t, err)
		require.Len(t, entries, 4)
		for i, e := range entries {
			assert.Equal(t, chain[i].Seq, e.Seq)
			assert.Equal(t, chain[i].ID, e.ID)
			assert.Equal(t, chain[i].Event.Kind, e.Event.Kind)
			assert.True(t, chain[i].Event.SalaryPerDay.Equal(e.Event.SalaryPerDay))
			assert.True(t, chain[i].Event.At.Equal(e.Event.At))
			assert.Nil(t, e.Snapshot, "snapshots are opt-in")
		}
		assert.NoError(t, journal.Verify(entries), "chain must survive the round trip")
	})

	t.Run("filter", func(t *testing.T) {
		s := open(t)
		for _, e := range Chain(t, 6) {
			require.NoError(t, s.Append(ctx, e))
		}

		byKind, err := s.Entries(ctx, journal.Filter{Kind: payroll.EventCheckIn})
		require.NoError(t, err)
		assert.Len(t, byKind, 3)

		byEmployee, err := s.Entries(ctx, journal.Filter{Employee: "emp-1"})
		require.NoError(t, err)
		assert.Len(t, byEmployee, 3)

		page, err := s.Entries(ctx, journal.Filter{FromSeq: 3, Limit: 2, WithSnapshots: true})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, uint64(3), page[0].Seq)
		assert.Equal(t, []byte("snapshot-3"), page[0].Snapshot)
		assert.NoError(t, journal.Verify(page))
	})

	t.Run("rejects out of order", func(t *testing.T) {
		s := open(t)
		chain := Chain(t, 3)
		require.NoError(t, s.Append(ctx, chain[0]))

		err := s.Append(ctx, chain[2])
		assert.ErrorIs(t, err, journal.ErrOutOfOrder)

		forged := chain[1]
		forged.PrevHash = journal.Hash{1}
		err = s.Append(ctx, forged)
		assert.ErrorIs(t, err, journal.ErrOutOfOrder)

		require.NoError(t, s.Append(ctx, chain[1]))
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		s := open(t)
		chain := Chain(t, 2)
		require.NoError(t, s.Append(ctx, chain[0]))

		dup, err := journal.Seal(&chain[0], chain[0].ID, chain[1].Event, nil, chain[1].RecordedAt)
		require.NoError(t, err)
		err = s.Append(ctx, dup)
		assert.ErrorIs(t, err, journal.ErrDuplicateEntry)
	})
}
