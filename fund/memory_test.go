package fund_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-ledger/fund"
	"github.com/warp/payroll-ledger/payroll"
)

func TestMemory_TransferInOut(t *testing.T) {
	f := fund.NewMemory(decimal.Zero)

	require.NoError(t, f.TransferIn("admin", decimal.NewFromInt(500)))
	require.NoError(t, f.TransferOut("emp-1", decimal.NewFromInt(200)))

	assert.True(t, f.Balance().Equal(decimal.NewFromInt(300)))
	assert.True(t, f.PaidTo("emp-1").Equal(decimal.NewFromInt(200)))
	assert.Len(t, f.Transfers(), 2)
}

func TestMemory_TransferOut_InsufficientLeavesBalance(t *testing.T) {
	f := fund.NewMemory(decimal.NewFromInt(50))

	err := f.TransferOut("emp-1", decimal.NewFromInt(51))

	assert.ErrorIs(t, err, payroll.ErrInsufficientFund)
	assert.True(t, f.Balance().Equal(decimal.NewFromInt(50)))
	assert.Empty(t, f.Transfers())
}

func TestMemory_Reject(t *testing.T) {
	f := fund.NewMemory(decimal.NewFromInt(100))
	f.Reject = func(fund.Transfer) error { return errors.New("asset paused") }

	err := f.TransferOut("emp-1", decimal.NewFromInt(10))

	assert.ErrorIs(t, err, payroll.ErrTransferRejected)
	assert.True(t, f.Balance().Equal(decimal.NewFromInt(100)))
}

func TestMemory_CheckpointRollback(t *testing.T) {
	f := fund.NewMemory(decimal.NewFromInt(100))
	require.NoError(t, f.TransferIn("admin", decimal.NewFromInt(50)))
	cp := f.Checkpoint()

	require.NoError(t, f.TransferOut("emp-1", decimal.NewFromInt(120)))
	f.Rollback(cp)

	assert.True(t, f.Balance().Equal(decimal.NewFromInt(150)))
	assert.True(t, f.PaidTo("emp-1").IsZero())
	assert.Len(t, f.Transfers(), 1)
}

func TestMemory_Reset(t *testing.T) {
	f := fund.NewMemory(decimal.Zero)
	require.NoError(t, f.TransferIn("admin", decimal.NewFromInt(50)))

	f.Reset(decimal.NewFromInt(7))

	assert.True(t, f.Balance().Equal(decimal.NewFromInt(7)))
	assert.Empty(t, f.Transfers())
}
