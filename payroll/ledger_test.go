package payroll_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-ledger/clock"
	"github.com/warp/payroll-ledger/fund"
	"github.com/warp/payroll-ledger/payroll"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	admin = payroll.Identity("admin")
	emp1  = payroll.Identity("emp-1")
	emp2  = payroll.Identity("emp-2")
	mgr1  = payroll.Identity("mgr-1")
	mgr2  = payroll.Identity("mgr-2")

	maxChangeWorkingDays = 10
)

var (
	checkInWindow  = payroll.TimeWindow{Hour: 8, Tolerance: 900 * time.Second}
	checkOutWindow = payroll.TimeWindow{Hour: 16, Tolerance: 900 * time.Second}

	may2023  = payroll.Period{Month: time.May, Year: 2023}
	june2023 = payroll.Period{Month: time.June, Year: 2023}
)

type fixture struct {
	ledger *payroll.Ledger
	clock  *clock.FakeClock
	fund   *fund.Memory
}

// newFixture starts the clock on Monday 2023-05-01 at 09:00 UTC.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := clock.Fake(may(1, 9, 0, 0))
	f := fund.NewMemory(decimal.Zero)
	l, err := payroll.New(payroll.Config{
		Admin:                admin,
		MaxChangeWorkingDays: maxChangeWorkingDays,
		CheckIn:              checkInWindow,
		CheckOut:             checkOutWindow,
		Fund:                 f,
		Clock:                c,
	})
	require.NoError(t, err)
	return &fixture{ledger: l, clock: c, fund: f}
}

func may(day, hour, minute, second int) time.Time {
	return time.Date(2023, time.May, day, hour, minute, second, 0, time.UTC)
}

func june(day, hour, minute, second int) time.Time {
	return time.Date(2023, time.June, day, hour, minute, second, 0, time.UTC)
}

func units(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func (f *fixture) addEmployee(t *testing.T, id, manager payroll.Identity, rate int64) {
	t.Helper()
	_, err := f.ledger.AddEmployee(admin, id, manager, units(rate))
	require.NoError(t, err)
}

func (f *fixture) fundWith(t *testing.T, amount int64) {
	t.Helper()
	_, err := f.ledger.AddFund(admin, units(amount))
	require.NoError(t, err)
}

// workDay checks id in at 08:00 and out at 16:00 on the given May day.
func (f *fixture) workDay(t *testing.T, id payroll.Identity, day int) {
	t.Helper()
	f.clock.Set(may(day, 8, 0, 0))
	_, err := f.ledger.CheckIn(id)
	require.NoError(t, err)
	f.clock.Set(may(day, 16, 0, 0))
	_, err = f.ledger.CheckOut(id)
	require.NoError(t, err)
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func TestLedger_Initialize(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, admin, f.ledger.Admin())
	assert.Equal(t, maxChangeWorkingDays, f.ledger.MaxChangeWorkingDays())
	assert.Equal(t, checkInWindow, f.ledger.CheckInWindow())
	assert.Equal(t, checkOutWindow, f.ledger.CheckOutWindow())
	assert.True(t, f.ledger.FundBalance().IsZero())
}

func TestLedger_InitTwice_Rejected(t *testing.T) {
	f := newFixture(t)

	err := f.ledger.Init(payroll.Config{Admin: emp1, Fund: f.fund})

	assert.ErrorIs(t, err, payroll.ErrAlreadyInitialized)
	assert.Equal(t, admin, f.ledger.Admin(), "admin must not change")
}

func TestLedger_InvalidConfig(t *testing.T) {
	_, err := payroll.New(payroll.Config{Admin: admin})
	assert.ErrorIs(t, err, payroll.ErrInvalidConfig, "fund is required")

	_, err = payroll.New(payroll.Config{Fund: fund.NewMemory(decimal.Zero)})
	assert.ErrorIs(t, err, payroll.ErrInvalidIdentity)

	_, err = payroll.New(payroll.Config{
		Admin:   admin,
		Fund:    fund.NewMemory(decimal.Zero),
		CheckIn: payroll.TimeWindow{Hour: 24},
	})
	assert.ErrorIs(t, err, payroll.ErrInvalidConfig)
}

func TestLedger_ZeroValue_NotInitialized(t *testing.T) {
	var l payroll.Ledger

	_, err := l.CheckIn(emp1)
	assert.ErrorIs(t, err, payroll.ErrNotInitialized)

	_, err = l.AddEmployee(admin, emp1, mgr1, units(100))
	assert.ErrorIs(t, err, payroll.ErrNotInitialized)
}

// =============================================================================
// EMPLOYEE REGISTRY
// =============================================================================

func TestAddEmployee(t *testing.T) {
	f := newFixture(t)

	ev, err := f.ledger.AddEmployee(admin, emp1, mgr1, units(100))
	require.NoError(t, err)
	assert.Equal(t, payroll.EventAddEmployee, ev.Kind)
	assert.Equal(t, emp1, ev.Employee)
	assert.Equal(t, mgr1, ev.Manager)
	assert.True(t, ev.SalaryPerDay.Equal(units(100)))

	info, err := f.ledger.EmployeeInfo(emp1)
	require.NoError(t, err)
	assert.Equal(t, mgr1, info.Manager)
	assert.True(t, info.SalaryPerDay.Equal(units(100)))
	assert.Equal(t, f.clock.Now(), info.JoinDate)

	_, err = f.ledger.AddEmployee(emp1, emp1, mgr1, units(100))
	assert.ErrorIs(t, err, payroll.ErrUnauthorized)

	_, err = f.ledger.AddEmployee(admin, emp1, mgr1, units(100))
	assert.ErrorIs(t, err, payroll.ErrAlreadyExists)
}

func TestAddEmployee_InvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.AddEmployee(admin, emp1, mgr1, units(-1))
	assert.ErrorIs(t, err, payroll.ErrInvalidAmount)

	_, err = f.ledger.AddEmployee(admin, emp1, mgr1, decimal.RequireFromString("1.5"))
	assert.ErrorIs(t, err, payroll.ErrInvalidAmount)

	_, err = f.ledger.AddEmployee(admin, "", mgr1, units(1))
	assert.ErrorIs(t, err, payroll.ErrInvalidIdentity)

	assert.Empty(t, f.ledger.Employees())
}

func TestRemoveEmployee(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)

	ev, err := f.ledger.RemoveEmployee(admin, emp1)
	require.NoError(t, err)
	assert.Equal(t, payroll.EventRemoveEmployee, ev.Kind)
	assert.Equal(t, emp1, ev.Employee)
	assert.True(t, ev.Amount.IsZero())

	_, err = f.ledger.RemoveEmployee(emp1, emp1)
	assert.ErrorIs(t, err, payroll.ErrUnauthorized)

	_, err = f.ledger.RemoveEmployee(admin, emp1)
	assert.ErrorIs(t, err, payroll.ErrNotFound)
}

func TestRemoveEmployee_SettlesElapsedMonths(t *testing.T) {
	// GIVEN: An employee with two unpaid working days in May and an empty fund
	// WHEN: Removing the employee in June before and after funding
	// THEN: Removal fails until the fund covers May, then pays it

	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	f.workDay(t, emp1, 2)
	f.workDay(t, emp1, 3)
	f.clock.Set(june(1, 9, 0, 0))

	_, err := f.ledger.RemoveEmployee(admin, emp1)
	var short *payroll.InsufficientFundError
	require.ErrorAs(t, err, &short)
	assert.True(t, short.Requested.Equal(units(200)))
	_, err = f.ledger.EmployeeInfo(emp1)
	assert.NoError(t, err, "failed removal must leave the employee registered")

	f.fundWith(t, 150)
	_, err = f.ledger.RemoveEmployee(admin, emp1)
	assert.ErrorIs(t, err, payroll.ErrInsufficientFund)

	f.fundWith(t, 50)
	ev, err := f.ledger.RemoveEmployee(admin, emp1)
	require.NoError(t, err)
	assert.Equal(t, payroll.EventRemoveEmployee, ev.Kind)
	assert.True(t, ev.Amount.Equal(units(200)))

	assert.True(t, f.ledger.FundBalance().IsZero())
	assert.True(t, f.fund.PaidTo(emp1).Equal(units(200)))

	// Records are retained for audit, settled.
	rec := f.ledger.CheckInInfo(emp1, may2023)
	assert.Equal(t, 2, rec.WorkingDays)
	assert.True(t, rec.Claimed)
}

func TestRemoveEmployee_LeavesRunningMonthOpen(t *testing.T) {
	// GIVEN: An employee removed mid-May with one worked day
	// WHEN: The same identity is added back and keeps working in May
	// THEN: The May record is still open to attendance and overrides

	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	f.workDay(t, emp1, 2)
	f.fundWith(t, 1000)

	ev, err := f.ledger.RemoveEmployee(admin, emp1)
	require.NoError(t, err)
	assert.True(t, ev.Amount.IsZero(), "the running month is not claimable yet")
	assert.True(t, f.ledger.FundBalance().Equal(units(1000)))
	assert.False(t, f.ledger.CheckInInfo(emp1, may2023).Claimed)

	f.addEmployee(t, emp1, mgr1, 200)
	f.workDay(t, emp1, 3)

	rec := f.ledger.CheckInInfo(emp1, may2023)
	assert.Equal(t, 2, rec.WorkingDays)
	assert.True(t, rec.SalarySnapshot.Equal(units(100)), "snapshot is taken once per record")
	assert.False(t, rec.Claimed)

	_, err = f.ledger.ChangeWorkingDaysByAdmin(admin, emp1, may2023, 5)
	require.NoError(t, err)

	f.clock.Set(june(1, 9, 0, 0))
	ev, err = f.ledger.GetPaid(emp1, may2023)
	require.NoError(t, err)
	assert.True(t, ev.Amount.Equal(units(500)))
}

func TestRemoveEmployee_TransferFailure_RollsBack(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	f.workDay(t, emp1, 2)
	f.fundWith(t, 100)
	f.clock.Set(june(1, 9, 0, 0))
	f.fund.Reject = func(fund.Transfer) error { return assert.AnError }

	_, err := f.ledger.RemoveEmployee(admin, emp1)

	assert.ErrorIs(t, err, payroll.ErrTransferRejected)
	assert.False(t, f.ledger.CheckInInfo(emp1, may2023).Claimed)
	_, err = f.ledger.EmployeeInfo(emp1)
	assert.NoError(t, err)
}

func TestUpdateEmployee(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	joinDate := f.clock.Now()
	f.clock.Advance(time.Hour)

	ev, err := f.ledger.ChangeSalary(admin, emp1, units(200))
	require.NoError(t, err)
	assert.Equal(t, payroll.EventChangeSalary, ev.Kind)
	_, err = f.ledger.ChangeSalary(emp1, emp1, units(200))
	assert.ErrorIs(t, err, payroll.ErrUnauthorized)

	ev, err = f.ledger.ChangeManager(admin, emp1, mgr2)
	require.NoError(t, err)
	assert.Equal(t, mgr2, ev.Manager)
	_, err = f.ledger.ChangeManager(emp1, emp1, mgr2)
	assert.ErrorIs(t, err, payroll.ErrUnauthorized)

	info, err := f.ledger.EmployeeInfo(emp1)
	require.NoError(t, err)
	assert.Equal(t, mgr2, info.Manager)
	assert.True(t, info.SalaryPerDay.Equal(units(200)))
	assert.Equal(t, joinDate, info.JoinDate)

	ev, err = f.ledger.ChangePaymentAddress(admin, emp1, emp2)
	require.NoError(t, err)
	assert.Equal(t, payroll.EventChangePaymentAddress, ev.Kind)
	assert.Equal(t, emp1, ev.Employee)
	assert.Equal(t, emp2, ev.NewID)
	_, err = f.ledger.ChangePaymentAddress(emp1, emp1, emp2)
	assert.ErrorIs(t, err, payroll.ErrUnauthorized)

	_, err = f.ledger.ChangeSalary(admin, emp1, units(200))
	assert.ErrorIs(t, err, payroll.ErrNotFound)
	_, err = f.ledger.ChangeManager(admin, emp1, mgr2)
	assert.ErrorIs(t, err, payroll.ErrNotFound)
	_, err = f.ledger.ChangePaymentAddress(admin, emp1, emp2)
	assert.ErrorIs(t, err, payroll.ErrNotFound)

	moved, err := f.ledger.EmployeeInfo(emp2)
	require.NoError(t, err)
	assert.Equal(t, emp2, moved.ID)
	assert.Equal(t, mgr2, moved.Manager)
	assert.True(t, moved.SalaryPerDay.Equal(units(200)))
	assert.Equal(t, joinDate, moved.JoinDate)
}

func TestChangeSalary_KeepsExistingSnapshot(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	f.workDay(t, emp1, 31)

	_, err := f.ledger.ChangeSalary(admin, emp1, units(250))
	require.NoError(t, err)

	f.clock.Set(june(1, 8, 0, 0))
	_, err = f.ledger.CheckIn(emp1)
	require.NoError(t, err)

	assert.True(t, f.ledger.CheckInInfo(emp1, may2023).SalarySnapshot.Equal(units(100)))
	assert.True(t, f.ledger.CheckInInfo(emp1, june2023).SalarySnapshot.Equal(units(250)))
}

func TestChangePaymentAddress_MigratesRecords(t *testing.T) {
	// GIVEN: emp-1 has an unclaimed April record and a claimed March record
	// WHEN: The payout identity moves to emp-2
	// THEN: Both records move with claimed status intact; only emp-2 can claim

	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	april := payroll.Period{Month: time.April, Year: 2023}
	march := payroll.Period{Month: time.March, Year: 2023}
	_, err := f.ledger.ChangeWorkingDaysByAdmin(admin, emp1, march, 2)
	require.NoError(t, err)
	_, err = f.ledger.ChangeWorkingDaysByAdmin(admin, emp1, april, 3)
	require.NoError(t, err)
	_, err = f.ledger.ChangeWorkingDays(mgr1, emp1, april, 5)
	require.NoError(t, err)
	f.fundWith(t, 1000)
	_, err = f.ledger.GetPaid(emp1, march)
	require.NoError(t, err)

	_, err = f.ledger.ChangePaymentAddress(admin, emp1, emp2)
	require.NoError(t, err)

	assert.Empty(t, f.ledger.Records(emp1))
	assert.True(t, f.ledger.CheckInInfo(emp2, march).Claimed)
	assert.Equal(t, 5, f.ledger.CheckInInfo(emp2, april).WorkingDays)
	assert.Equal(t, 2, f.ledger.WorkingDayChange(emp2, april))

	_, err = f.ledger.GetPaid(emp1, april)
	assert.ErrorIs(t, err, payroll.ErrNotFound)

	ev, err := f.ledger.GetPaid(emp2, april)
	require.NoError(t, err)
	assert.True(t, ev.Amount.Equal(units(500)))
	assert.True(t, f.fund.PaidTo(emp2).Equal(units(500)))
}

func TestChangePaymentAddress_Conflicts(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	f.addEmployee(t, emp2, mgr1, 100)

	_, err := f.ledger.ChangePaymentAddress(admin, emp1, emp2)
	assert.ErrorIs(t, err, payroll.ErrAlreadyExists)

	// A removed employee's retained records block reuse of its identity
	// for overlapping periods.
	f.workDay(t, emp2, 2)
	f.fundWith(t, 100)
	_, err = f.ledger.RemoveEmployee(admin, emp2)
	require.NoError(t, err)
	f.workDay(t, emp1, 3)

	_, err = f.ledger.ChangePaymentAddress(admin, emp1, emp2)
	assert.ErrorIs(t, err, payroll.ErrAlreadyExists)
	assert.Equal(t, 1, f.ledger.CheckInInfo(emp1, may2023).WorkingDays, "nothing moved")

	_, err = f.ledger.ChangePaymentAddress(admin, emp1, emp1)
	assert.NoError(t, err, "moving to the same identity is a no-op")
}

func TestChangeMaxChangeWorkingDays(t *testing.T) {
	f := newFixture(t)

	ev, err := f.ledger.ChangeMaxChangeWorkingDays(admin, 20)
	require.NoError(t, err)
	assert.Equal(t, payroll.EventChangeMaxChangeWorkingDays, ev.Kind)
	assert.Equal(t, 20, ev.Days)
	assert.Equal(t, 20, f.ledger.MaxChangeWorkingDays())

	_, err = f.ledger.ChangeMaxChangeWorkingDays(emp1, 20)
	assert.ErrorIs(t, err, payroll.ErrUnauthorized)
}

func TestChangeAdmin(t *testing.T) {
	f := newFixture(t)

	ev, err := f.ledger.ChangeAdmin(admin, emp1)
	require.NoError(t, err)
	assert.Equal(t, payroll.EventChangeAdmin, ev.Kind)
	assert.Equal(t, emp1, ev.NewID)
	assert.Equal(t, emp1, f.ledger.Admin())

	_, err = f.ledger.ChangeAdmin(mgr1, emp1)
	assert.ErrorIs(t, err, payroll.ErrUnauthorized)

	_, err = f.ledger.AddEmployee(admin, emp2, mgr1, units(1))
	assert.ErrorIs(t, err, payroll.ErrUnauthorized, "old admin lost the capability")
}

func TestQueries_Defaults(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.EmployeeInfo(emp1)
	assert.ErrorIs(t, err, payroll.ErrNotFound)
	assert.True(t, payroll.IsNotFound(err))

	rec := f.ledger.CheckInInfo(emp1, may2023)
	assert.Equal(t, payroll.MonthlyRecord{}, rec)
}

// =============================================================================
// STATE EXPORT / RESTORE
// =============================================================================

func TestState_RestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	f.addEmployee(t, emp2, mgr2, 300)
	f.workDay(t, emp1, 2)
	_, err := f.ledger.ChangeWorkingDays(mgr2, emp2, may2023, 4)
	require.NoError(t, err)

	restored, err := payroll.Restore(payroll.Config{Fund: f.fund, Clock: f.clock}, f.ledger.State())
	require.NoError(t, err)

	assert.Equal(t, f.ledger.State(), restored.State())
	assert.Equal(t, 4, restored.WorkingDayChange(emp2, may2023))
	assert.Equal(t, admin, restored.Admin())
}

func TestState_ResetUndoesMutation(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	before := f.ledger.State()

	f.workDay(t, emp1, 2)
	f.ledger.Reset(before)

	assert.Equal(t, payroll.MonthlyRecord{}, f.ledger.CheckInInfo(emp1, may2023))
	assert.Equal(t, before, f.ledger.State())
}
