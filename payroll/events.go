package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names what a successful operation did.
type EventKind string

const (
	EventAddEmployee                EventKind = "AddEmployee"
	EventRemoveEmployee             EventKind = "RemoveEmployee"
	EventChangeSalary               EventKind = "ChangeSalary"
	EventChangeManager              EventKind = "ChangeManager"
	EventChangePaymentAddress       EventKind = "ChangePaymentAddress"
	EventChangeMaxChangeWorkingDays EventKind = "ChangeMaxChangeWorkingDays"
	EventChangeAdmin                EventKind = "ChangeAdmin"
	EventChangeWorkingDays          EventKind = "ChangeWorkingDays"
	EventCheckIn                    EventKind = "CheckIn"
	EventCheckOut                   EventKind = "CheckOut"
	EventClaimSalary                EventKind = "ClaimSalary"
	EventAddFund                    EventKind = "AddFund"
	EventWithdrawFund               EventKind = "WithdrawFund"
)

// Event is emitted by every successful mutating operation. Only the
// fields relevant to Kind are set; At is always the ledger clock time.
//
//	AddEmployee                Employee, Manager, SalaryPerDay
//	RemoveEmployee             Employee, Amount (settled on removal)
//	ChangeSalary               Employee, SalaryPerDay
//	ChangeManager              Employee, Manager
//	ChangePaymentAddress       Employee, NewID
//	ChangeMaxChangeWorkingDays Days
//	ChangeAdmin                NewID
//	ChangeWorkingDays          Caller, Employee, Period, Days
//	CheckIn, CheckOut          Employee
//	ClaimSalary                Employee, Period, Amount
//	AddFund, WithdrawFund      Amount
type Event struct {
	Kind         EventKind       `json:"kind"`
	Caller       Identity        `json:"caller"`
	Employee     Identity        `json:"employee,omitempty"`
	Manager      Identity        `json:"manager,omitempty"`
	NewID        Identity        `json:"new_id,omitempty"`
	SalaryPerDay decimal.Decimal `json:"salary_per_day"`
	Period       Period          `json:"period"`
	Days         int             `json:"days,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	At           time.Time       `json:"at"`
}
