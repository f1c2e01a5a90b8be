package payroll

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// EMPLOYEE REGISTRY - Admin-only lifecycle operations
// =============================================================================

// AddEmployee registers id under manager at salaryPerDay, joining now.
func (l *Ledger) AddEmployee(caller, id, manager Identity, salaryPerDay decimal.Decimal) (Event, error) {
	const op = "add employee"
	if err := l.requireAdmin(op, caller); err != nil {
		return Event{}, err
	}
	if id.IsZero() || manager.IsZero() {
		return Event{}, opErr(op, caller, ErrInvalidIdentity)
	}
	if !validAmount(salaryPerDay) {
		return Event{}, opErr(op, caller, ErrInvalidAmount)
	}
	if _, exists := l.employees[id]; exists {
		return Event{}, opErr(op, caller, ErrAlreadyExists)
	}

	ev := l.event(EventAddEmployee, caller)
	l.employees[id] = Employee{ID: id, Manager: manager, SalaryPerDay: salaryPerDay, JoinDate: ev.At}

	ev.Employee, ev.Manager, ev.SalaryPerDay = id, manager, salaryPerDay
	return ev, nil
}

// RemoveEmployee pays out every unclaimed record of an elapsed period, then
// deletes the registry entry. Monthly records are kept. The running month
// stays unclaimed so it can still be claimed once it ends.
//
// Fails with ErrInsufficientFund when the fund cannot cover the claimable
// balance; nothing changes in that case.
func (l *Ledger) RemoveEmployee(caller, id Identity) (Event, error) {
	const op = "remove employee"
	if err := l.requireAdmin(op, caller); err != nil {
		return Event{}, err
	}
	if _, err := l.lookup(op, caller, id); err != nil {
		return Event{}, err
	}

	current := PeriodOf(l.now(), l.loc)
	owed := l.Claimable(id, current)
	if available := l.fund.Balance(); available.LessThan(owed) {
		return Event{}, opErr(op, caller, &InsufficientFundError{Available: available, Requested: owed})
	}

	// Mark first so a retried removal can never pay twice; undo on failure.
	var settled []recordKey
	for k, r := range l.records {
		if k.Employee == id && !r.Claimed && k.Period.Before(current) {
			r.Claimed = true
			l.records[k] = r
			settled = append(settled, k)
		}
	}
	if owed.IsPositive() {
		if err := l.fund.TransferOut(id, owed); err != nil {
			for _, k := range settled {
				r := l.records[k]
				r.Claimed = false
				l.records[k] = r
			}
			return Event{}, opErr(op, caller, err)
		}
	}
	delete(l.employees, id)

	ev := l.event(EventRemoveEmployee, caller)
	ev.Employee, ev.Amount = id, owed
	return ev, nil
}

// ChangeSalary sets a new daily rate. Existing records keep their snapshot.
func (l *Ledger) ChangeSalary(caller, id Identity, salaryPerDay decimal.Decimal) (Event, error) {
	const op = "change salary"
	if err := l.requireAdmin(op, caller); err != nil {
		return Event{}, err
	}
	emp, err := l.lookup(op, caller, id)
	if err != nil {
		return Event{}, err
	}
	if !validAmount(salaryPerDay) {
		return Event{}, opErr(op, caller, ErrInvalidAmount)
	}

	emp.SalaryPerDay = salaryPerDay
	l.employees[id] = emp

	ev := l.event(EventChangeSalary, caller)
	ev.Employee, ev.SalaryPerDay = id, salaryPerDay
	return ev, nil
}

// ChangeManager reassigns who may override id's working days.
func (l *Ledger) ChangeManager(caller, id, manager Identity) (Event, error) {
	const op = "change manager"
	if err := l.requireAdmin(op, caller); err != nil {
		return Event{}, err
	}
	emp, err := l.lookup(op, caller, id)
	if err != nil {
		return Event{}, err
	}
	if manager.IsZero() {
		return Event{}, opErr(op, caller, ErrInvalidIdentity)
	}

	emp.Manager = manager
	l.employees[id] = emp

	ev := l.event(EventChangeManager, caller)
	ev.Employee, ev.Manager = id, manager
	return ev, nil
}

// ChangePaymentAddress moves the employee, with every monthly record and
// change counter, from id to newID. Claimed status moves unchanged, and
// from then on only newID can check in or claim.
func (l *Ledger) ChangePaymentAddress(caller, id, newID Identity) (Event, error) {
	const op = "change payment address"
	if err := l.requireAdmin(op, caller); err != nil {
		return Event{}, err
	}
	emp, err := l.lookup(op, caller, id)
	if err != nil {
		return Event{}, err
	}
	if newID.IsZero() {
		return Event{}, opErr(op, caller, ErrInvalidIdentity)
	}

	ev := l.event(EventChangePaymentAddress, caller)
	ev.Employee, ev.NewID = id, newID
	if newID == id {
		return ev, nil
	}
	if _, taken := l.employees[newID]; taken {
		return Event{}, opErr(op, caller, ErrAlreadyExists)
	}

	var moving []recordKey
	for k := range l.records {
		if k.Employee != id {
			continue
		}
		// newID may hold records from an earlier, removed employee.
		if _, clash := l.records[recordKey{Employee: newID, Period: k.Period}]; clash {
			return Event{}, opErr(op, caller, ErrAlreadyExists)
		}
		moving = append(moving, k)
	}

	for _, k := range moving {
		dst := recordKey{Employee: newID, Period: k.Period}
		l.records[dst] = l.records[k]
		delete(l.records, k)
		if n, ok := l.changes[k]; ok {
			l.changes[dst] = n
			delete(l.changes, k)
		}
	}
	emp.ID = newID
	delete(l.employees, id)
	l.employees[newID] = emp
	return ev, nil
}

// ChangeMaxChangeWorkingDays sets the manager override quota.
func (l *Ledger) ChangeMaxChangeWorkingDays(caller Identity, n int) (Event, error) {
	const op = "change max change working days"
	if err := l.requireAdmin(op, caller); err != nil {
		return Event{}, err
	}
	if n < 0 {
		return Event{}, opErr(op, caller, ErrInvalidWorkingDays)
	}

	l.maxChangeWorkingDays = n

	ev := l.event(EventChangeMaxChangeWorkingDays, caller)
	ev.Days = n
	return ev, nil
}

// ChangeAdmin hands the Admin capability to newAdmin.
func (l *Ledger) ChangeAdmin(caller, newAdmin Identity) (Event, error) {
	const op = "change admin"
	if err := l.requireAdmin(op, caller); err != nil {
		return Event{}, err
	}
	if newAdmin.IsZero() {
		return Event{}, opErr(op, caller, ErrInvalidIdentity)
	}

	l.admin = newAdmin

	ev := l.event(EventChangeAdmin, caller)
	ev.NewID = newAdmin
	return ev, nil
}
