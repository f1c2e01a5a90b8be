/*
Package service runs the payroll ledger as a single, durable executor.

PURPOSE:
  payroll.Ledger is a plain state machine with no locking and no storage.
  Service wraps it with the two things a deployment needs:
  - Serialization: one mutating operation at a time, queries in parallel
  - Durability: every successful mutation is journaled before it is
    acknowledged

ALL-OR-NOTHING ACROSS MEMORY AND STORAGE:
  1. Capture ledger state and a fund checkpoint
  2. Run the ledger operation (it validates and mutates, or fails clean)
  3. Seal a journal entry: event + encoded post-state snapshot
  4. Append it; on failure restore the ledger and roll the fund back
  A caller therefore never observes an acknowledged operation that the
  journal does not hold, nor a rejected one that moved funds.

RECOVERY:
  Open() loads the latest entry and rebuilds ledger and fund from its
  snapshot. Admin, quota and windows come from the snapshot, so config
  changes to those take effect only on an empty journal.

SEE ALSO:
  - journal/journal.go: Entry and Store contract
  - auditor.go: Background chain verification
*/
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-ledger/fund"
	"github.com/warp/payroll-ledger/journal"
	"github.com/warp/payroll-ledger/payroll"
)

// ErrJournal wraps every failure to persist an otherwise valid operation.
var ErrJournal = errors.New("journal write failed")

// Config configures Open.
type Config struct {
	// Ledger initializes a fresh ledger. Its Fund field is ignored: the
	// service owns an in-process fund seeded with InitialFund.
	Ledger      payroll.Config
	InitialFund decimal.Decimal

	Logger *slog.Logger  // nil means slog.Default()
	NewID  func() string // nil means uuid.NewString
}

// Service is safe for concurrent use.
type Service struct {
	mu     sync.RWMutex
	ledger *payroll.Ledger
	fund   *fund.Memory
	store  journal.Store
	latest *journal.Entry

	log   *slog.Logger
	newID func() string
}

// Open builds a service on store, restoring from its latest snapshot when
// the journal is not empty.
func Open(ctx context.Context, cfg Config, store journal.Store) (*Service, error) {
	s := &Service{
		store: store,
		log:   cfg.Logger,
		newID: cfg.NewID,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest journal entry: %w", err)
	}

	lcfg := cfg.Ledger
	if latest == nil {
		s.fund = fund.NewMemory(cfg.InitialFund)
		lcfg.Fund = s.fund
		if s.ledger, err = payroll.New(lcfg); err != nil {
			return nil, err
		}
		s.log.Info("ledger initialized", "admin", lcfg.Admin, "fund", cfg.InitialFund)
		return s, nil
	}

	snap, err := journal.DecodeSnapshot(latest.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("restore entry %d: %w", latest.Seq, err)
	}
	s.fund = fund.NewMemory(snap.FundBalance)
	lcfg.Fund = s.fund
	if s.ledger, err = payroll.Restore(lcfg, snap.State); err != nil {
		return nil, fmt.Errorf("restore entry %d: %w", latest.Seq, err)
	}
	s.latest = latest
	s.log.Info("ledger restored",
		"seq", latest.Seq,
		"employees", len(snap.State.Employees),
		"records", len(snap.State.Records),
		"fund", snap.FundBalance)
	return s, nil
}

// =============================================================================
// EXECUTOR
// =============================================================================

func (s *Service) apply(ctx context.Context, op string, caller payroll.Identity, fn func(l *payroll.Ledger) (payroll.Event, error)) (payroll.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return payroll.Event{}, err
	}

	before := s.ledger.State()
	checkpoint := s.fund.Checkpoint()

	ev, err := fn(s.ledger)
	if err != nil {
		s.log.Warn("operation rejected", "op", op, "caller", caller, "error", err)
		return payroll.Event{}, err
	}

	entry, err := s.seal(ev)
	if err == nil {
		err = s.store.Append(ctx, entry)
	}
	if err != nil {
		s.ledger.Reset(before)
		s.fund.Rollback(checkpoint)
		s.log.Error("operation rolled back", "op", op, "caller", caller, "error", err)
		return payroll.Event{}, fmt.Errorf("%w: %s: %v", ErrJournal, op, err)
	}
	s.latest = &entry

	s.log.Info("operation applied", "op", op, "caller", caller, "seq", entry.Seq, "entry", entry.ID)
	return ev, nil
}

func (s *Service) seal(ev payroll.Event) (journal.Entry, error) {
	snapshot, err := journal.EncodeSnapshot(journal.Snapshot{
		State:       s.ledger.State(),
		FundBalance: s.fund.Balance(),
	})
	if err != nil {
		return journal.Entry{}, err
	}
	return journal.Seal(s.latest, s.newID(), ev, snapshot, s.ledger.Now())
}

// =============================================================================
// REGISTRY
// =============================================================================

func (s *Service) AddEmployee(ctx context.Context, caller, id, manager payroll.Identity, salaryPerDay decimal.Decimal) (payroll.Event, error) {
	return s.apply(ctx, "add employee", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.AddEmployee(caller, id, manager, salaryPerDay)
	})
}

func (s *Service) RemoveEmployee(ctx context.Context, caller, id payroll.Identity) (payroll.Event, error) {
	return s.apply(ctx, "remove employee", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.RemoveEmployee(caller, id)
	})
}

func (s *Service) ChangeSalary(ctx context.Context, caller, id payroll.Identity, salaryPerDay decimal.Decimal) (payroll.Event, error) {
	return s.apply(ctx, "change salary", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.ChangeSalary(caller, id, salaryPerDay)
	})
}

func (s *Service) ChangeManager(ctx context.Context, caller, id, manager payroll.Identity) (payroll.Event, error) {
	return s.apply(ctx, "change manager", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.ChangeManager(caller, id, manager)
	})
}

func (s *Service) ChangePaymentAddress(ctx context.Context, caller, id, newID payroll.Identity) (payroll.Event, error) {
	return s.apply(ctx, "change payment address", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.ChangePaymentAddress(caller, id, newID)
	})
}

func (s *Service) ChangeMaxChangeWorkingDays(ctx context.Context, caller payroll.Identity, n int) (payroll.Event, error) {
	return s.apply(ctx, "change max change working days", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.ChangeMaxChangeWorkingDays(caller, n)
	})
}

func (s *Service) ChangeAdmin(ctx context.Context, caller, newAdmin payroll.Identity) (payroll.Event, error) {
	return s.apply(ctx, "change admin", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.ChangeAdmin(caller, newAdmin)
	})
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (s *Service) CheckIn(ctx context.Context, caller payroll.Identity) (payroll.Event, error) {
	return s.apply(ctx, "check in", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.CheckIn(caller)
	})
}

func (s *Service) CheckOut(ctx context.Context, caller payroll.Identity) (payroll.Event, error) {
	return s.apply(ctx, "check out", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.CheckOut(caller)
	})
}

func (s *Service) ChangeWorkingDays(ctx context.Context, caller, id payroll.Identity, period payroll.Period, days int) (payroll.Event, error) {
	return s.apply(ctx, "change working days", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.ChangeWorkingDays(caller, id, period, days)
	})
}

func (s *Service) ChangeWorkingDaysByAdmin(ctx context.Context, caller, id payroll.Identity, period payroll.Period, days int) (payroll.Event, error) {
	return s.apply(ctx, "change working days by admin", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.ChangeWorkingDaysByAdmin(caller, id, period, days)
	})
}

// =============================================================================
// SETTLEMENT
// =============================================================================

func (s *Service) GetPaid(ctx context.Context, caller payroll.Identity, period payroll.Period) (payroll.Event, error) {
	return s.apply(ctx, "get paid", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.GetPaid(caller, period)
	})
}

func (s *Service) AddFund(ctx context.Context, caller payroll.Identity, amount decimal.Decimal) (payroll.Event, error) {
	return s.apply(ctx, "add fund", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.AddFund(caller, amount)
	})
}

func (s *Service) WithdrawFund(ctx context.Context, caller payroll.Identity, amount decimal.Decimal) (payroll.Event, error) {
	return s.apply(ctx, "withdraw fund", caller, func(l *payroll.Ledger) (payroll.Event, error) {
		return l.WithdrawFund(caller, amount)
	})
}

// =============================================================================
// QUERIES
// =============================================================================

// Settings is the ledger's current configuration.
type Settings struct {
	Admin                payroll.Identity   `json:"admin"`
	MaxChangeWorkingDays int                `json:"max_change_working_days"`
	CheckIn              payroll.TimeWindow `json:"check_in"`
	CheckOut             payroll.TimeWindow `json:"check_out"`
	Location             string             `json:"location"`
}

func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Settings{
		Admin:                s.ledger.Admin(),
		MaxChangeWorkingDays: s.ledger.MaxChangeWorkingDays(),
		CheckIn:              s.ledger.CheckInWindow(),
		CheckOut:             s.ledger.CheckOutWindow(),
		Location:             s.ledger.Location().String(),
	}
}

func (s *Service) Location() *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Location()
}

func (s *Service) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Now()
}

// CurrentPeriod is the period containing now in the ledger location.
func (s *Service) CurrentPeriod() payroll.Period {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return payroll.PeriodOf(s.ledger.Now(), s.ledger.Location())
}

func (s *Service) FundBalance() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.FundBalance()
}

func (s *Service) EmployeeInfo(id payroll.Identity) (payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.EmployeeInfo(id)
}

func (s *Service) Employees() []payroll.Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Employees()
}

func (s *Service) CheckInInfo(id payroll.Identity, period payroll.Period) payroll.MonthlyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.CheckInInfo(id, period)
}

func (s *Service) Records(id payroll.Identity) []payroll.RecordEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Records(id)
}

func (s *Service) RecordsInPeriod(period payroll.Period) []payroll.RecordEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.RecordsInPeriod(period)
}

func (s *Service) Outstanding(id payroll.Identity) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Outstanding(id)
}

func (s *Service) WorkingDayChange(id payroll.Identity, period payroll.Period) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.WorkingDayChange(id, period)
}

// Transfers lists fund movements since the service was opened.
func (s *Service) Transfers() []fund.Transfer {
	return s.fund.Transfers()
}

// =============================================================================
// JOURNAL
// =============================================================================

func (s *Service) Journal(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	return s.store.Entries(ctx, f)
}

// Head returns the latest journaled entry, or nil before the first one.
func (s *Service) Head() *journal.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil
	}
	e := *s.latest
	e.Snapshot = nil
	return &e
}

// Verify checks the whole stored chain and that it ends at the entry this
// service last wrote.
func (s *Service) Verify(ctx context.Context) error {
	head := s.Head()
	entries, err := s.store.Entries(ctx, journal.Filter{})
	if err != nil {
		return err
	}
	if err := journal.Verify(entries); err != nil {
		return err
	}
	if head == nil {
		if len(entries) > 0 {
			return &journal.ChainError{Seq: entries[0].Seq, Reason: "entries written by another writer"}
		}
		return nil
	}
	if len(entries) == 0 || entries[0].Seq != 1 {
		return &journal.ChainError{Seq: 1, Reason: "journal does not start at the first entry"}
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Seq == head.Seq {
			if entries[i].Hash != head.Hash {
				return &journal.ChainError{Seq: head.Seq, Reason: "head hash differs from stored entry"}
			}
			return nil
		}
	}
	return &journal.ChainError{Seq: head.Seq, Reason: "head entry missing from store"}
}

// ClaimEntry finds the journal entry that settled the record (id, period):
// either the ClaimSalary that paid it or the RemoveEmployee that paid it
// out. Payment address changes are followed back, so a record claimed
// under an earlier identity is still found. Returns nil when unsettled.
func (s *Service) ClaimEntry(ctx context.Context, id payroll.Identity, period payroll.Period) (*journal.Entry, error) {
	entries, err := s.store.Entries(ctx, journal.Filter{})
	if err != nil {
		return nil, err
	}
	loc := s.Location()

	// Walk newest first. The settling entry is the earliest settlement
	// after the latest entry that touched the record.
	holder := id
	var found *journal.Entry
	for i := len(entries) - 1; i >= 0; i-- {
		ev := entries[i].Event
		switch ev.Kind {
		case payroll.EventClaimSalary:
			if ev.Employee == holder && ev.Period == period {
				found = &entries[i]
			}
		case payroll.EventRemoveEmployee:
			if ev.Employee == holder && ev.Amount.IsPositive() && period.Before(payroll.PeriodOf(ev.At, loc)) {
				found = &entries[i]
			}
		case payroll.EventCheckIn, payroll.EventCheckOut, payroll.EventChangeWorkingDays:
			if ev.Employee == holder && ev.Period == period && found != nil {
				return found, nil
			}
		case payroll.EventChangePaymentAddress:
			if ev.NewID == holder {
				holder = ev.Employee
			}
		}
	}
	return found, nil
}
