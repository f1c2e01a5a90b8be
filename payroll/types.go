/*
Package payroll provides the attendance-accrual and payroll-settlement engine.

PURPOSE:
  Tracks employees, records daily attendance against fixed check-in and
  check-out windows, accrues per-month working-day counts and pays wages
  out of a shared fund. Everything else in the module (journal, HTTP API,
  stores) wraps this package without adding business rules.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identity: Opaque caller/employee identifier (address-equivalent)
  - Period: A (month, year) accrual period
  - Employee: Registry entry (manager, daily rate, join date)
  - MonthlyRecord: Attendance and claim state for one employee + period

DESIGN PRINCIPLES:
  1. Determinism: Every decision is a function of state, clock, caller, args
  2. Precision: Fund amounts are integer-valued decimal.Decimal
  3. Retention: Monthly records outlive the employee entry
  4. All-or-nothing: Validation completes before any mutation

SEE ALSO:
  - ledger.go: Ledger root, access control, queries
  - attendance.go: Check-in/check-out state machine and overrides
  - settlement.go: Claims and fund movements
*/
package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Identity identifies a caller: admin, manager, or employee. The ledger
// never interprets it beyond equality.
type Identity string

func (id Identity) IsZero() bool { return id == "" }
func (id Identity) String() string { return string(id) }

// =============================================================================
// PERIOD - Accrual period (month, year)
// =============================================================================

type Period struct {
	Month time.Month `json:"month"`
	Year  int        `json:"year"`
}

// PeriodOf returns the period containing t in loc.
func PeriodOf(t time.Time, loc *time.Location) Period {
	local := t.In(loc)
	return Period{Month: local.Month(), Year: local.Year()}
}

func (p Period) Valid() bool { return p.Month >= time.January && p.Month <= time.December }

// Before reports whether p is strictly earlier than other.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month)) }

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID           Identity        `json:"id"`
	Manager      Identity        `json:"manager"`
	SalaryPerDay decimal.Decimal `json:"salary_per_day"`
	JoinDate     time.Time       `json:"join_date"`
}

// =============================================================================
// MONTHLY RECORD - Attendance + claim state for (employee, period)
// =============================================================================

// MonthlyRecord is the accrual state of one employee in one period.
//
// INVARIANTS:
//   - WorkingDays only grows through check-out, or is overwritten by an override.
//   - SalarySnapshot is the daily rate in effect when the record was created.
//   - Once Claimed, neither WorkingDays nor Claimed change again.
type MonthlyRecord struct {
	IsCheckedIn    bool            `json:"is_checked_in"`
	WorkingDays    int             `json:"working_days"`
	SalarySnapshot decimal.Decimal `json:"salary_snapshot"`
	Claimed        bool            `json:"claimed"`
	LastCheckIn    time.Time       `json:"last_check_in"`
}

// Amount is the wage owed for the record: WorkingDays x SalarySnapshot.
func (r MonthlyRecord) Amount() decimal.Decimal {
	return r.SalarySnapshot.Mul(decimal.NewFromInt(int64(r.WorkingDays)))
}

// RecordEntry pairs a record with its key, for listings and snapshots.
type RecordEntry struct {
	Employee Identity      `json:"employee"`
	Period   Period        `json:"period"`
	Record   MonthlyRecord `json:"record"`
}

type recordKey struct {
	Employee Identity
	Period   Period
}

// =============================================================================
// AMOUNT HELPERS
// =============================================================================

// validAmount reports whether d is a usable fund amount: a non-negative
// integer in the smallest fund unit.
func validAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.IsInteger()
}
