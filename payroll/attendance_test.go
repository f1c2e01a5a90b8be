package payroll_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-ledger/payroll"
)

// =============================================================================
// CHECK-IN / CHECK-OUT
// =============================================================================

func TestCheckIn_CreatesRecordWithSnapshot(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 120)

	// Thursday 2023-05-04 08:00:06 UTC.
	f.clock.Set(time.Unix(1683187206, 0).UTC())
	ev, err := f.ledger.CheckIn(emp1)
	require.NoError(t, err)

	assert.Equal(t, payroll.EventCheckIn, ev.Kind)
	assert.Equal(t, emp1, ev.Employee)
	assert.Equal(t, may2023, ev.Period)
	assert.Equal(t, f.clock.Now(), ev.At)

	rec := f.ledger.CheckInInfo(emp1, may2023)
	assert.True(t, rec.IsCheckedIn)
	assert.Equal(t, 0, rec.WorkingDays)
	assert.True(t, rec.SalarySnapshot.Equal(units(120)))
	assert.Equal(t, f.clock.Now(), rec.LastCheckIn)
}

func TestCheckOut_CountsOneDayPerPair(t *testing.T) {
	// GIVEN: An employee working three weekdays
	// WHEN: Each day has exactly one check-in and one check-out
	// THEN: The period accrues three working days

	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)

	f.workDay(t, emp1, 1)
	f.workDay(t, emp1, 2)
	f.workDay(t, emp1, 3)

	rec := f.ledger.CheckInInfo(emp1, may2023)
	assert.Equal(t, 3, rec.WorkingDays)
	assert.False(t, rec.IsCheckedIn)
}

func TestCheckIn_RepeatedRestamps(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)

	f.clock.Set(may(2, 7, 50, 0))
	_, err := f.ledger.CheckIn(emp1)
	require.NoError(t, err)
	f.clock.Set(may(2, 8, 10, 0))
	_, err = f.ledger.CheckIn(emp1)
	require.NoError(t, err)

	assert.Equal(t, may(2, 8, 10, 0), f.ledger.CheckInInfo(emp1, may2023).LastCheckIn)

	f.clock.Set(may(2, 16, 0, 0))
	_, err = f.ledger.CheckOut(emp1)
	require.NoError(t, err)
	assert.Equal(t, 1, f.ledger.CheckInInfo(emp1, may2023).WorkingDays)
}

func TestCheckOut_WithoutCheckIn(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	f.clock.Set(may(2, 16, 0, 0))

	_, err := f.ledger.CheckOut(emp1)
	assert.ErrorIs(t, err, payroll.ErrCheckInFirst)

	// A completed pair does not leave a second checkout open.
	f.workDay(t, emp1, 3)
	_, err = f.ledger.CheckOut(emp1)
	assert.ErrorIs(t, err, payroll.ErrCheckInFirst)
	assert.Equal(t, 1, f.ledger.CheckInInfo(emp1, may2023).WorkingDays)
}

func TestAttendance_UnknownEmployee(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(may(2, 8, 0, 0))

	_, err := f.ledger.CheckIn(emp1)
	assert.ErrorIs(t, err, payroll.ErrNotFound)

	_, err = f.ledger.CheckOut(emp1)
	assert.ErrorIs(t, err, payroll.ErrNotFound)
}

func TestCheckIn_Weekend(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)

	for _, at := range []time.Time{
		may(6, 8, 0, 0), // Saturday, inside the window
		may(7, 8, 0, 0), // Sunday
		may(6, 3, 0, 0), // Saturday, outside the window: weekend wins
	} {
		f.clock.Set(at)
		_, err := f.ledger.CheckIn(emp1)
		assert.ErrorIs(t, err, payroll.ErrWeekendNotAllowed, at.String())
	}
	assert.Empty(t, f.ledger.Records(emp1))
}

func TestCheckIn_WindowBoundaries(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		ok   bool
	}{
		{"on target", may(2, 8, 0, 0), true},
		{"earliest", may(2, 7, 45, 0), true},
		{"latest", may(2, 8, 15, 0), true},
		{"one second early", may(2, 7, 44, 59), false},
		{"one second late", may(2, 8, 15, 1), false},
		{"afternoon", may(2, 16, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addEmployee(t, emp1, mgr1, 100)
			f.clock.Set(tt.at)

			_, err := f.ledger.CheckIn(emp1)

			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, payroll.ErrCheckInWindow)
			var we *payroll.WindowError
			require.ErrorAs(t, err, &we)
			assert.Equal(t, may(2, 8, 0, 0), we.Target)
			assert.False(t, f.ledger.CheckInInfo(emp1, may2023).IsCheckedIn)
		})
	}
}

func TestCheckOut_WindowBoundaries(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		ok   bool
	}{
		{"earliest", may(2, 15, 45, 0), true},
		{"latest", may(2, 16, 15, 0), true},
		{"one second early", may(2, 15, 44, 59), false},
		{"one second late", may(2, 16, 15, 1), false},
		{"noon", may(2, 12, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addEmployee(t, emp1, mgr1, 100)
			f.clock.Set(may(2, 8, 0, 0))
			_, err := f.ledger.CheckIn(emp1)
			require.NoError(t, err)
			f.clock.Set(tt.at)

			_, err = f.ledger.CheckOut(emp1)

			rec := f.ledger.CheckInInfo(emp1, may2023)
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, 1, rec.WorkingDays)
				return
			}
			assert.ErrorIs(t, err, payroll.ErrCheckOutWindow)
			assert.Equal(t, 0, rec.WorkingDays)
			assert.True(t, rec.IsCheckedIn, "failed checkout keeps the day open")
		})
	}
}

func TestCheckOut_WeekendAfterFridayCheckIn(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)

	f.clock.Set(may(5, 8, 0, 0)) // Friday
	_, err := f.ledger.CheckIn(emp1)
	require.NoError(t, err)

	f.clock.Set(may(6, 16, 0, 0)) // Saturday
	_, err = f.ledger.CheckOut(emp1)

	assert.NoError(t, err, "checkout does not apply the weekend rule")
	assert.Equal(t, 1, f.ledger.CheckInInfo(emp1, may2023).WorkingDays)
}

func TestCheckOut_AfterMonthRollover(t *testing.T) {
	// GIVEN: A check-in on Wednesday 2023-05-31, the last weekday of May
	// WHEN: The checkout happens on Thursday 2023-06-01
	// THEN: It resolves June's record and fails; May stays checked in

	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)

	f.clock.Set(may(31, 8, 0, 0))
	_, err := f.ledger.CheckIn(emp1)
	require.NoError(t, err)

	f.clock.Set(june(1, 16, 0, 0))
	_, err = f.ledger.CheckOut(emp1)

	assert.ErrorIs(t, err, payroll.ErrCheckInFirst)
	assert.True(t, f.ledger.CheckInInfo(emp1, may2023).IsCheckedIn)
	assert.Equal(t, 0, f.ledger.CheckInInfo(emp1, may2023).WorkingDays)
	assert.Equal(t, payroll.MonthlyRecord{}, f.ledger.CheckInInfo(emp1, june2023))
}

func TestAttendance_ClaimedPeriodIsFrozen(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	f.fundWith(t, 1000)
	april := payroll.Period{Month: time.April, Year: 2023}
	_, err := f.ledger.ChangeWorkingDaysByAdmin(admin, emp1, april, 3)
	require.NoError(t, err)
	_, err = f.ledger.GetPaid(emp1, april)
	require.NoError(t, err)

	_, err = f.ledger.ChangeWorkingDays(mgr1, emp1, april, 4)
	assert.ErrorIs(t, err, payroll.ErrAlreadyClaimed)
	_, err = f.ledger.ChangeWorkingDaysByAdmin(admin, emp1, april, 20)
	assert.ErrorIs(t, err, payroll.ErrAlreadyClaimed)
	assert.Equal(t, 3, f.ledger.CheckInInfo(emp1, april).WorkingDays)
}

// =============================================================================
// WORKING-DAY OVERRIDES
// =============================================================================

func TestChangeWorkingDays_QuotaSequence(t *testing.T) {
	// GIVEN: A quota of 10 days per manager override
	// WHEN: The manager moves a period 0 -> 4 -> 20 -> 14 -> 2
	// THEN: Moves of at most 10 succeed; larger ones fail and change nothing

	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)

	ev, err := f.ledger.ChangeWorkingDays(mgr1, emp1, may2023, 4)
	require.NoError(t, err)
	assert.Equal(t, payroll.EventChangeWorkingDays, ev.Kind)
	assert.Equal(t, mgr1, ev.Caller)
	assert.Equal(t, emp1, ev.Employee)
	assert.Equal(t, may2023, ev.Period)
	assert.Equal(t, 4, ev.Days)
	assert.Equal(t, 4, f.ledger.WorkingDayChange(emp1, may2023))

	_, err = f.ledger.ChangeWorkingDays(mgr1, emp1, may2023, 20)
	assert.ErrorIs(t, err, payroll.ErrQuotaExceeded)
	var qe *payroll.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, payroll.QuotaError{Current: 4, Requested: 20, Max: 10}, *qe)
	assert.Equal(t, 4, f.ledger.CheckInInfo(emp1, may2023).WorkingDays)

	_, err = f.ledger.ChangeWorkingDays(mgr1, emp1, may2023, 14)
	require.NoError(t, err)
	assert.Equal(t, 10, f.ledger.WorkingDayChange(emp1, may2023))

	_, err = f.ledger.ChangeWorkingDays(mgr1, emp1, may2023, 2)
	assert.ErrorIs(t, err, payroll.ErrQuotaExceeded)
	assert.Equal(t, 14, f.ledger.CheckInInfo(emp1, may2023).WorkingDays)
}

func TestChangeWorkingDays_CreatesRecordWithCurrentRate(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	_, err := f.ledger.ChangeSalary(admin, emp1, units(175))
	require.NoError(t, err)
	april := payroll.Period{Month: time.April, Year: 2023}

	_, err = f.ledger.ChangeWorkingDays(mgr1, emp1, april, 5)
	require.NoError(t, err)

	rec := f.ledger.CheckInInfo(emp1, april)
	assert.Equal(t, 5, rec.WorkingDays)
	assert.True(t, rec.SalarySnapshot.Equal(units(175)))
	assert.False(t, rec.IsCheckedIn)
}

func TestChangeWorkingDays_ErrorOrder(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	bad := payroll.Period{Month: 13, Year: 2023}

	tests := []struct {
		name   string
		caller payroll.Identity
		id     payroll.Identity
		period payroll.Period
		days   int
		want   error
	}{
		{"unknown employee before auth", mgr2, emp2, bad, 0, payroll.ErrNotFound},
		{"wrong manager before validation", mgr2, emp1, bad, 0, payroll.ErrUnauthorized},
		{"admin is not the manager", admin, emp1, may2023, 1, payroll.ErrUnauthorized},
		{"days before month", mgr1, emp1, bad, 0, payroll.ErrInvalidWorkingDays},
		{"days above 31", mgr1, emp1, may2023, 32, payroll.ErrInvalidWorkingDays},
		{"month zero", mgr1, emp1, payroll.Period{Month: 0, Year: 2023}, 1, payroll.ErrInvalidMonth},
		{"month thirteen", mgr1, emp1, bad, 1, payroll.ErrInvalidMonth},
		{"quota", mgr1, emp1, may2023, 11, payroll.ErrQuotaExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.ChangeWorkingDays(tt.caller, tt.id, tt.period, tt.days)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.ledger.Records(emp1))
}

func TestChangeWorkingDaysByAdmin_ErrorOrder(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)
	bad := payroll.Period{Month: 13, Year: 2023}

	tests := []struct {
		name   string
		caller payroll.Identity
		id     payroll.Identity
		period payroll.Period
		days   int
		want   error
	}{
		{"auth first", mgr1, emp2, bad, 0, payroll.ErrUnauthorized},
		{"days before month", admin, emp2, bad, 0, payroll.ErrInvalidWorkingDays},
		{"month before lookup", admin, emp2, bad, 5, payroll.ErrInvalidMonth},
		{"unknown employee", admin, emp2, may2023, 5, payroll.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.ChangeWorkingDaysByAdmin(tt.caller, tt.id, tt.period, tt.days)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestChangeWorkingDaysByAdmin_IgnoresQuotaAndResetsCounter(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)

	_, err := f.ledger.ChangeWorkingDays(mgr1, emp1, may2023, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, f.ledger.WorkingDayChange(emp1, may2023))

	ev, err := f.ledger.ChangeWorkingDaysByAdmin(admin, emp1, may2023, 30)
	require.NoError(t, err)
	assert.Equal(t, admin, ev.Caller)
	assert.Equal(t, 30, f.ledger.CheckInInfo(emp1, may2023).WorkingDays)
	assert.Equal(t, 0, f.ledger.WorkingDayChange(emp1, may2023))

	// The manager's quota now applies from the admin's value.
	_, err = f.ledger.ChangeWorkingDays(mgr1, emp1, may2023, 21)
	assert.NoError(t, err)
	_, err = f.ledger.ChangeWorkingDays(mgr1, emp1, may2023, 31)
	assert.NoError(t, err)
}

func TestChangeWorkingDays_QuotaFollowsLimitChange(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, emp1, mgr1, 100)

	_, err := f.ledger.ChangeMaxChangeWorkingDays(admin, 2)
	require.NoError(t, err)
	_, err = f.ledger.ChangeWorkingDays(mgr1, emp1, may2023, 3)
	assert.ErrorIs(t, err, payroll.ErrQuotaExceeded)

	_, err = f.ledger.ChangeMaxChangeWorkingDays(admin, 0)
	require.NoError(t, err)
	_, err = f.ledger.ChangeWorkingDays(mgr1, emp1, may2023, 1)
	assert.ErrorIs(t, err, payroll.ErrQuotaExceeded, "a zero quota blocks every manager move")
}

// =============================================================================
// LOCATION
// =============================================================================

func TestCheckIn_UsesLedgerLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	f := newFixture(t)
	l, err := payroll.New(payroll.Config{
		Admin:    admin,
		CheckIn:  checkInWindow,
		CheckOut: checkOutWindow,
		Location: loc,
		Fund:     f.fund,
		Clock:    f.clock,
	})
	require.NoError(t, err)
	_, err = l.AddEmployee(admin, emp1, mgr1, units(100))
	require.NoError(t, err)

	// 01:00 UTC on Tuesday is 08:00 local.
	f.clock.Set(may(2, 1, 0, 0))
	_, err = l.CheckIn(emp1)
	assert.NoError(t, err)

	// 08:00 UTC on Friday is 15:00 local.
	f.clock.Set(may(5, 8, 0, 0))
	_, err = l.CheckIn(emp1)
	assert.ErrorIs(t, err, payroll.ErrCheckInWindow)

	// Friday 2023-05-05 20:00 UTC is already Saturday local.
	f.clock.Set(may(5, 20, 0, 0))
	_, err = l.CheckIn(emp1)
	assert.ErrorIs(t, err, payroll.ErrWeekendNotAllowed)
}
