package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-ledger/journal"
	"github.com/warp/payroll-ledger/journal/journaltest"
	"github.com/warp/payroll-ledger/store/postgres"
)

// Runs only when PAYROLL_TEST_POSTGRES_DSN points at a disposable database.
func TestStore_Contract(t *testing.T) {
	dsn := os.Getenv("PAYROLL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PAYROLL_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	store, err := postgres.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Ping(ctx))

	journaltest.RunStoreTests(t, func(t *testing.T) journal.Store {
		require.NoError(t, store.Reset(ctx))
		return store
	})
}
