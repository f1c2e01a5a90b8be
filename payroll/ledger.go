/*
ledger.go - Ledger root, capability checks and read-only queries

PURPOSE:
  The Ledger owns all payroll state: the admin identity, the manager
  quota, the employee registry, the monthly record table, the change
  counters and a handle to the fund. It is created once and mutated only
  through the operations in registry.go, attendance.go and settlement.go.

CRITICAL INVARIANTS:
  1. ALL-OR-NOTHING: Every operation validates fully before it mutates.
     A fund failure rolls back whatever the operation had already set.
  2. SINGLE WRITER: A Ledger is not safe for concurrent use. Callers
     serialize access (see service.Service).
  3. RETENTION: Records are keyed by (employee, period) in one flat map
     and survive removal of the employee.

ROLES:
  Roles are identity comparisons against state, evaluated at the top of
  each operation:
  - Admin:    caller == l.admin
  - Manager:  caller == employees[target].Manager
  - Employee: the caller itself, which must be registered

SEE ALSO:
  - state.go: Export/restore for the journal
  - service/service.go: Serialized executor with durable journal
*/
package payroll

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-ledger/clock"
)

// Config holds everything fixed at initialization.
type Config struct {
	Admin                Identity
	MaxChangeWorkingDays int
	CheckIn              TimeWindow
	CheckOut             TimeWindow

	// Location is the reference zone for weekdays, windows and periods.
	// Nil means UTC.
	Location *time.Location

	Fund  Fund
	Clock clock.Clock // nil means clock.Real()
}

func (c Config) validate() error {
	if c.Admin.IsZero() {
		return ErrInvalidIdentity
	}
	if c.MaxChangeWorkingDays < 0 || !c.CheckIn.Valid() || !c.CheckOut.Valid() || c.Fund == nil {
		return ErrInvalidConfig
	}
	return nil
}

// Ledger is the payroll state machine.
type Ledger struct {
	initialized          bool
	admin                Identity
	maxChangeWorkingDays int
	checkIn              TimeWindow
	checkOut             TimeWindow
	loc                  *time.Location
	fund                 Fund
	clock                clock.Clock

	employees map[Identity]Employee
	records   map[recordKey]MonthlyRecord
	// changes records the days moved by the latest manager override per
	// record. It is informational only; the quota is checked per move.
	changes map[recordKey]int
}

// New returns an initialized ledger.
func New(cfg Config) (*Ledger, error) {
	l := &Ledger{}
	if err := l.Init(cfg); err != nil {
		return nil, err
	}
	return l, nil
}

// Init initializes a zero Ledger. It fails with ErrAlreadyInitialized
// on a second call.
func (l *Ledger) Init(cfg Config) error {
	if l.initialized {
		return opErr("init", cfg.Admin, ErrAlreadyInitialized)
	}
	if err := cfg.validate(); err != nil {
		return opErr("init", cfg.Admin, err)
	}
	l.admin = cfg.Admin
	l.maxChangeWorkingDays = cfg.MaxChangeWorkingDays
	l.checkIn = cfg.CheckIn
	l.checkOut = cfg.CheckOut
	l.loc = cfg.Location
	if l.loc == nil {
		l.loc = time.UTC
	}
	l.fund = cfg.Fund
	l.clock = cfg.Clock
	if l.clock == nil {
		l.clock = clock.Real()
	}
	l.employees = make(map[Identity]Employee)
	l.records = make(map[recordKey]MonthlyRecord)
	l.changes = make(map[recordKey]int)
	l.initialized = true
	return nil
}

// =============================================================================
// ACCESS CONTROL
// =============================================================================

func (l *Ledger) requireInit(op string, caller Identity) error {
	if !l.initialized {
		return opErr(op, caller, ErrNotInitialized)
	}
	return nil
}

func (l *Ledger) requireAdmin(op string, caller Identity) error {
	if err := l.requireInit(op, caller); err != nil {
		return err
	}
	if caller.IsZero() || caller != l.admin {
		return opErr(op, caller, ErrUnauthorized)
	}
	return nil
}

func (l *Ledger) requireManager(op string, caller Identity, emp Employee) error {
	if caller.IsZero() || caller != emp.Manager {
		return opErr(op, caller, ErrUnauthorized)
	}
	return nil
}

func (l *Ledger) lookup(op string, caller, id Identity) (Employee, error) {
	emp, ok := l.employees[id]
	if !ok {
		return Employee{}, opErr(op, caller, ErrNotFound)
	}
	return emp, nil
}

func (l *Ledger) now() time.Time { return l.clock.Now() }

func (l *Ledger) event(kind EventKind, caller Identity) Event {
	return Event{Kind: kind, Caller: caller, At: l.now()}
}

// =============================================================================
// QUERIES - Read-only, no authorization
// =============================================================================

func (l *Ledger) Admin() Identity { return l.admin }
func (l *Ledger) MaxChangeWorkingDays() int { return l.maxChangeWorkingDays }
func (l *Ledger) CheckInWindow() TimeWindow { return l.checkIn }
func (l *Ledger) CheckOutWindow() TimeWindow { return l.checkOut }
func (l *Ledger) Location() *time.Location { return l.loc }
func (l *Ledger) Now() time.Time { return l.now() }
func (l *Ledger) FundBalance() decimal.Decimal { return l.fund.Balance() }

// EmployeeInfo returns the registry entry for id.
func (l *Ledger) EmployeeInfo(id Identity) (Employee, error) {
	return l.lookup("employee info", "", id)
}

// CheckInInfo returns the record for (id, period), or the zero record
// when none exists. Records of removed employees are still reported.
func (l *Ledger) CheckInInfo(id Identity, period Period) MonthlyRecord {
	return l.records[recordKey{Employee: id, Period: period}]
}

// Employees lists registered employees ordered by identity.
func (l *Ledger) Employees() []Employee {
	out := make([]Employee, 0, len(l.employees))
	for _, e := range l.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Records lists every record held under id, oldest period first.
func (l *Ledger) Records(id Identity) []RecordEntry {
	var out []RecordEntry
	for k, r := range l.records {
		if k.Employee == id {
			out = append(out, RecordEntry{Employee: k.Employee, Period: k.Period, Record: r})
		}
	}
	sortEntries(out)
	return out
}

// RecordsInPeriod lists every record for period across all identities.
func (l *Ledger) RecordsInPeriod(period Period) []RecordEntry {
	var out []RecordEntry
	for k, r := range l.records {
		if k.Period == period {
			out = append(out, RecordEntry{Employee: k.Employee, Period: k.Period, Record: r})
		}
	}
	sortEntries(out)
	return out
}

// Outstanding is the unclaimed accrued amount held under id.
func (l *Ledger) Outstanding(id Identity) decimal.Decimal {
	total := decimal.Zero
	for k, r := range l.records {
		if k.Employee == id && !r.Claimed {
			total = total.Add(r.Amount())
		}
	}
	return total
}

// Claimable is the unclaimed amount held under id for periods before
// current.
func (l *Ledger) Claimable(id Identity, current Period) decimal.Decimal {
	total := decimal.Zero
	for k, r := range l.records {
		if k.Employee == id && !r.Claimed && k.Period.Before(current) {
			total = total.Add(r.Amount())
		}
	}
	return total
}

// WorkingDayChange returns the days moved by the latest manager override
// of (id, period) since the last admin override.
func (l *Ledger) WorkingDayChange(id Identity, period Period) int {
	return l.changes[recordKey{Employee: id, Period: period}]
}

func sortEntries(entries []RecordEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Period != b.Period {
			return a.Period.Before(b.Period)
		}
		return a.Employee < b.Employee
	})
}
