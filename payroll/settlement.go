/*
settlement.go - Salary claims and fund movements

EXACTLY-ONCE:
  GetPaid pays a (employee, period) at most once. The record's Claimed
  flag is the only guard: it is set before the fund transfer and cleared
  again if the transfer fails, so a retried call either sees Claimed and
  fails ErrAlreadyClaimed, or finds the record untouched.

ELIGIBILITY:
  Only fully elapsed periods can be claimed: the requested period must be
  strictly before the period containing "now". The amount is
  WorkingDays x SalarySnapshot and is never paid partially.
*/
package payroll

import (
	"github.com/shopspring/decimal"
)

// GetPaid pays the caller's wage for period out of the fund.
func (l *Ledger) GetPaid(caller Identity, period Period) (Event, error) {
	const op = "get paid"
	if err := l.requireInit(op, caller); err != nil {
		return Event{}, err
	}
	if !period.Valid() {
		return Event{}, opErr(op, caller, ErrInvalidMonth)
	}
	if _, err := l.lookup(op, caller, caller); err != nil {
		return Event{}, err
	}

	now := l.now()
	if !period.Before(PeriodOf(now, l.loc)) {
		return Event{}, opErr(op, caller, ErrFutureMonthClaim)
	}
	key := recordKey{Employee: caller, Period: period}
	rec, ok := l.records[key]
	if !ok || rec.WorkingDays == 0 {
		return Event{}, opErr(op, caller, ErrNoWorkingDays)
	}
	if rec.Claimed {
		return Event{}, opErr(op, caller, ErrAlreadyClaimed)
	}
	amount := rec.Amount()
	if available := l.fund.Balance(); available.LessThan(amount) {
		return Event{}, opErr(op, caller, &InsufficientFundError{Available: available, Requested: amount})
	}

	rec.Claimed = true
	l.records[key] = rec
	if err := l.fund.TransferOut(caller, amount); err != nil {
		rec.Claimed = false
		l.records[key] = rec
		return Event{}, opErr(op, caller, err)
	}

	return Event{
		Kind:     EventClaimSalary,
		Caller:   caller,
		Employee: caller,
		Period:   period,
		Amount:   amount,
		At:       now,
	}, nil
}

// AddFund moves amount from the admin into the fund.
func (l *Ledger) AddFund(caller Identity, amount decimal.Decimal) (Event, error) {
	const op = "add fund"
	if err := l.requireAdmin(op, caller); err != nil {
		return Event{}, err
	}
	if !validAmount(amount) {
		return Event{}, opErr(op, caller, ErrInvalidAmount)
	}
	if err := l.fund.TransferIn(caller, amount); err != nil {
		return Event{}, opErr(op, caller, err)
	}

	ev := l.event(EventAddFund, caller)
	ev.Amount = amount
	return ev, nil
}

// WithdrawFund moves amount from the fund back to the admin.
func (l *Ledger) WithdrawFund(caller Identity, amount decimal.Decimal) (Event, error) {
	const op = "withdraw fund"
	if err := l.requireAdmin(op, caller); err != nil {
		return Event{}, err
	}
	if !validAmount(amount) {
		return Event{}, opErr(op, caller, ErrInvalidAmount)
	}
	if available := l.fund.Balance(); available.LessThan(amount) {
		return Event{}, opErr(op, caller, &InsufficientFundError{Available: available, Requested: amount})
	}
	if err := l.fund.TransferOut(caller, amount); err != nil {
		return Event{}, opErr(op, caller, err)
	}

	ev := l.event(EventWithdrawFund, caller)
	ev.Amount = amount
	return ev, nil
}
