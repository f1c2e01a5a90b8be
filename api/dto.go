/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers around several DTOs

AMOUNTS:
  decimal.Decimal encodes as a JSON string ("1500") and decodes from a
  string or a number. Amounts are whole fund units.

VALIDATION:
  Done by the ledger, not here. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - export.go: AttendanceRow (CSV)
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-ledger/journal"
	"github.com/warp/payroll-ledger/payroll"
	"github.com/warp/payroll-ledger/service"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID           string          `json:"id"`
	Manager      string          `json:"manager"`
	SalaryPerDay decimal.Decimal `json:"salary_per_day"`
	JoinDate     string          `json:"join_date"`
	Outstanding  decimal.Decimal `json:"outstanding"`
}

type CreateEmployeeRequest struct {
	ID           string          `json:"id"`
	Manager      string          `json:"manager"`
	SalaryPerDay decimal.Decimal `json:"salary_per_day"`
}

type ChangeSalaryRequest struct {
	SalaryPerDay decimal.Decimal `json:"salary_per_day"`
}

type ChangeManagerRequest struct {
	Manager string `json:"manager"`
}

type ChangePaymentAddressRequest struct {
	NewID string `json:"new_id"`
}

// =============================================================================
// RECORDS
// =============================================================================

type RecordDTO struct {
	Employee         string          `json:"employee"`
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	IsCheckedIn      bool            `json:"is_checked_in"`
	WorkingDays      int             `json:"working_days"`
	SalarySnapshot   decimal.Decimal `json:"salary_snapshot"`
	Amount           decimal.Decimal `json:"amount"`
	Claimed          bool            `json:"claimed"`
	LastCheckIn      *string         `json:"last_check_in,omitempty"`
	WorkingDayChange int             `json:"working_day_change"`
}

type WorkingDaysRequest struct {
	Days int `json:"days"`
}

type ClaimRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// =============================================================================
// FUND AND ADMIN
// =============================================================================

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type FundDTO struct {
	Balance decimal.Decimal `json:"balance"`
}

type TransferDTO struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type ChangeAdminRequest struct {
	Admin string `json:"admin"`
}

type ChangeMaxChangeWorkingDaysRequest struct {
	MaxChangeWorkingDays int `json:"max_change_working_days"`
}

// =============================================================================
// STATUS AND JOURNAL
// =============================================================================

// OperationResponse acknowledges a journaled mutation.
type OperationResponse struct {
	Event payroll.Event `json:"event"`
}

type StatusDTO struct {
	Now         time.Time        `json:"now"`
	Period      string           `json:"period"`
	FundBalance decimal.Decimal  `json:"fund_balance"`
	Settings    service.Settings `json:"settings"`
	JournalSeq  uint64           `json:"journal_seq"`
	JournalHead string           `json:"journal_head,omitempty"`
	Audit       *AuditDTO        `json:"audit,omitempty"`
}

type AuditDTO struct {
	CheckedAt time.Time `json:"checked_at"`
	Entries   uint64    `json:"entries"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
}

type JournalEntryDTO struct {
	Seq        uint64        `json:"seq"`
	ID         string        `json:"id"`
	Event      payroll.Event `json:"event"`
	PrevHash   journal.Hash  `json:"prev_hash"`
	Hash       journal.Hash  `json:"hash"`
	RecordedAt time.Time     `json:"recorded_at"`
}

type JournalResponse struct {
	Entries  []JournalEntryDTO `json:"entries"`
	Verified bool              `json:"verified"`
	Error    string            `json:"error,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type LoadScenarioResponse struct {
	ScenarioID string          `json:"scenario_id"`
	Events     []payroll.Event `json:"events"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
