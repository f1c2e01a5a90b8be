// Package fund provides Fund implementations for the payroll ledger.
package fund

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-ledger/payroll"
)

// =============================================================================
// MEMORY FUND - In-process pool of the accounting unit
// =============================================================================

// Transfer is one movement recorded by Memory.
type Transfer struct {
	From   payroll.Identity
	To     payroll.Identity
	Amount decimal.Decimal
}

// Memory is a Fund that keeps its balance in memory and records every
// transfer. It never talks to an external asset, so TransferIn always
// succeeds for a valid amount.
type Memory struct {
	mu        sync.RWMutex
	balance   decimal.Decimal
	transfers []Transfer

	// Reject, when set, is consulted before every transfer and can veto
	// it. Tests use it to simulate a failing asset.
	Reject func(t Transfer) error
}

var _ payroll.Fund = (*Memory)(nil)

// Pool is the pseudo-identity of the fund itself in transfer records.
const Pool payroll.Identity = "fund"

func NewMemory(initial decimal.Decimal) *Memory {
	return &Memory{balance: initial}
}

func (m *Memory) Balance() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance
}

// TransferIn credits the fund with amount paid by from.
func (m *Memory) TransferIn(from payroll.Identity, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := Transfer{From: from, To: Pool, Amount: amount}
	if err := m.admit(t); err != nil {
		return err
	}
	m.balance = m.balance.Add(amount)
	m.transfers = append(m.transfers, t)
	return nil
}

// TransferOut debits the fund and pays amount to to.
func (m *Memory) TransferOut(to payroll.Identity, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := Transfer{From: Pool, To: to, Amount: amount}
	if err := m.admit(t); err != nil {
		return err
	}
	if m.balance.LessThan(amount) {
		return &payroll.InsufficientFundError{Available: m.balance, Requested: amount}
	}
	m.balance = m.balance.Sub(amount)
	m.transfers = append(m.transfers, t)
	return nil
}

func (m *Memory) admit(t Transfer) error {
	if t.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", payroll.ErrTransferRejected, t.Amount)
	}
	if m.Reject != nil {
		if err := m.Reject(t); err != nil {
			return fmt.Errorf("%w: %v", payroll.ErrTransferRejected, err)
		}
	}
	return nil
}

// Transfers returns a copy of every successful transfer, oldest first.
func (m *Memory) Transfers() []Transfer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Transfer, len(m.transfers))
	copy(out, m.transfers)
	return out
}

// PaidTo sums every transfer out of the fund to id.
func (m *Memory) PaidTo(id payroll.Identity) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for _, t := range m.transfers {
		if t.From == Pool && t.To == id {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// Reset overwrites the balance and forgets past transfers. Used when a
// service is restored from a journal snapshot.
func (m *Memory) Reset(balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = balance
	m.transfers = nil
}

// Checkpoint marks the fund's current position.
type Checkpoint struct {
	balance   decimal.Decimal
	transfers int
}

func (m *Memory) Checkpoint() Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Checkpoint{balance: m.balance, transfers: len(m.transfers)}
}

// Rollback undoes every transfer made since c.
func (m *Memory) Rollback(c Checkpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = c.balance
	if c.transfers < len(m.transfers) {
		m.transfers = m.transfers[:c.transfers]
	}
}
