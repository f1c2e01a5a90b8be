/*
attendance.go - Check-in/check-out state machine and working-day overrides

STATES per (employee, period):

  NoRecord --CheckIn--> CheckedIn --CheckOut--> CheckedOut --GetPaid--> Claimed
                           ^                        |
                           +--------CheckIn---------+

  - CheckIn creates the record on first use with the current daily rate
    as its salary snapshot.
  - Each completed CheckIn/CheckOut pair adds exactly one working day.
  - Overrides overwrite WorkingDays outright and may create the record.

KNOWN QUIRKS (kept deliberately, the behavior callers already rely on):
  - CheckOut derives the period from the checkout time, not from the
    check-in. Checking in on the last day of a month and out after the
    rollover lands on the new month's record and fails ErrCheckInFirst.
  - CheckOut does not repeat the weekend test; only CheckIn applies it.
  - Overrides accept 1..31 days for any month, without checking the
    month's real length.

QUOTA:
  A manager override may move WorkingDays by at most MaxChangeWorkingDays
  from its current value. The size of the latest manager move is kept as
  the record's change counter; an admin override resets it to zero and is
  never subject to the quota.
*/
package payroll

const maxOverrideDays = 31

// CheckIn opens the caller's working day.
func (l *Ledger) CheckIn(caller Identity) (Event, error) {
	const op = "check in"
	if err := l.requireInit(op, caller); err != nil {
		return Event{}, err
	}
	emp, err := l.lookup(op, caller, caller)
	if err != nil {
		return Event{}, err
	}

	now := l.now()
	if IsWeekend(now, l.loc) {
		return Event{}, opErr(op, caller, ErrWeekendNotAllowed)
	}
	if err := l.checkIn.check(windowCheckIn, now, l.loc); err != nil {
		return Event{}, opErr(op, caller, err)
	}

	key := recordKey{Employee: caller, Period: PeriodOf(now, l.loc)}
	rec, ok := l.records[key]
	if !ok {
		rec = MonthlyRecord{SalarySnapshot: emp.SalaryPerDay}
	}
	if rec.Claimed {
		return Event{}, opErr(op, caller, ErrAlreadyClaimed)
	}
	rec.IsCheckedIn = true
	rec.LastCheckIn = now
	l.records[key] = rec

	return Event{Kind: EventCheckIn, Caller: caller, Employee: caller, Period: key.Period, At: now}, nil
}

// CheckOut closes the caller's working day and accrues one working day.
func (l *Ledger) CheckOut(caller Identity) (Event, error) {
	const op = "check out"
	if err := l.requireInit(op, caller); err != nil {
		return Event{}, err
	}
	if _, err := l.lookup(op, caller, caller); err != nil {
		return Event{}, err
	}

	now := l.now()
	key := recordKey{Employee: caller, Period: PeriodOf(now, l.loc)}
	rec, ok := l.records[key]
	if !ok || !rec.IsCheckedIn {
		return Event{}, opErr(op, caller, ErrCheckInFirst)
	}
	if rec.Claimed {
		return Event{}, opErr(op, caller, ErrAlreadyClaimed)
	}
	if err := l.checkOut.check(windowCheckOut, now, l.loc); err != nil {
		return Event{}, opErr(op, caller, err)
	}

	rec.WorkingDays++
	rec.IsCheckedIn = false
	l.records[key] = rec

	return Event{Kind: EventCheckOut, Caller: caller, Employee: caller, Period: key.Period, At: now}, nil
}

// ChangeWorkingDays lets the employee's manager overwrite the working
// days of a period, within the quota.
func (l *Ledger) ChangeWorkingDays(caller, id Identity, period Period, days int) (Event, error) {
	const op = "change working days"
	if err := l.requireInit(op, caller); err != nil {
		return Event{}, err
	}
	emp, err := l.lookup(op, caller, id)
	if err != nil {
		return Event{}, err
	}
	if err := l.requireManager(op, caller, emp); err != nil {
		return Event{}, err
	}
	if err := validateOverride(period, days); err != nil {
		return Event{}, opErr(op, caller, err)
	}

	key := recordKey{Employee: id, Period: period}
	rec := l.recordFor(key, emp)
	if rec.Claimed {
		return Event{}, opErr(op, caller, ErrAlreadyClaimed)
	}
	moved := abs(days - rec.WorkingDays)
	if moved > l.maxChangeWorkingDays {
		return Event{}, opErr(op, caller, &QuotaError{Current: rec.WorkingDays, Requested: days, Max: l.maxChangeWorkingDays})
	}

	rec.WorkingDays = days
	l.records[key] = rec
	l.changes[key] = moved

	return l.workingDaysEvent(caller, id, period, days), nil
}

// ChangeWorkingDaysByAdmin overwrites the working days of a period
// without any quota, and resets the manager change counter.
func (l *Ledger) ChangeWorkingDaysByAdmin(caller, id Identity, period Period, days int) (Event, error) {
	const op = "change working days by admin"
	if err := l.requireAdmin(op, caller); err != nil {
		return Event{}, err
	}
	if err := validateOverride(period, days); err != nil {
		return Event{}, opErr(op, caller, err)
	}
	emp, err := l.lookup(op, caller, id)
	if err != nil {
		return Event{}, err
	}

	key := recordKey{Employee: id, Period: period}
	rec := l.recordFor(key, emp)
	if rec.Claimed {
		return Event{}, opErr(op, caller, ErrAlreadyClaimed)
	}

	rec.WorkingDays = days
	l.records[key] = rec
	delete(l.changes, key)

	return l.workingDaysEvent(caller, id, period, days), nil
}

// recordFor returns the existing record or a fresh one snapshotting the
// employee's current rate. It does not store it.
func (l *Ledger) recordFor(key recordKey, emp Employee) MonthlyRecord {
	if rec, ok := l.records[key]; ok {
		return rec
	}
	return MonthlyRecord{SalarySnapshot: emp.SalaryPerDay}
}

func (l *Ledger) workingDaysEvent(caller, id Identity, period Period, days int) Event {
	ev := l.event(EventChangeWorkingDays, caller)
	ev.Employee, ev.Period, ev.Days = id, period, days
	return ev
}

func validateOverride(period Period, days int) error {
	if days < 1 || days > maxOverrideDays {
		return ErrInvalidWorkingDays
	}
	if !period.Valid() {
		return ErrInvalidMonth
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
