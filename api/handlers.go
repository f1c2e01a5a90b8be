/*
handlers.go - HTTP API handlers for the payroll ledger

PURPOSE:
  Exposes the payroll service via REST API. Handles HTTP request/response
  and JSON serialization, and delegates every decision to the service.
  No business rule lives here.

ENDPOINTS:
  Status:
    GET    /api/status                                   Clock, fund, settings, journal head

  Employees:
    GET    /api/employees                                List employees
    POST   /api/employees                                Add employee (admin)
    GET    /api/employees/{id}                           Employee details
    DELETE /api/employees/{id}                           Remove and settle (admin)
    PUT    /api/employees/{id}/salary                    Change daily rate (admin)
    PUT    /api/employees/{id}/manager                   Change manager (admin)
    PUT    /api/employees/{id}/payment-address           Move identity (admin)
    GET    /api/employees/{id}/records                   All monthly records
    GET    /api/employees/{id}/records/{year}/{month}    One monthly record
    PUT    /api/employees/{id}/records/{year}/{month}/working-days  Manager override
    GET    /api/employees/{id}/payslips/{year}/{month}   Payslip PDF

  Attendance and claims (caller is the employee):
    POST   /api/attendance/check-in
    POST   /api/attendance/check-out
    POST   /api/claims

  Fund:
    GET    /api/fund
    GET    /api/fund/transfers
    POST   /api/fund/deposits                            (admin)
    POST   /api/fund/withdrawals                         (admin)

  Admin:
    PUT    /api/admin/admin
    PUT    /api/admin/max-change-working-days
    PUT    /api/admin/employees/{id}/records/{year}/{month}/working-days

  Journal and reports:
    GET    /api/journal                                  Entries plus chain verification
    POST   /api/journal/verify                           Run the auditor now
    GET    /api/reports/attendance?year=&month=          CSV export

AUTHENTICATION:
  Bearer JWT, subject = caller identity (see auth.go). Reads are open;
  mutations require a caller and the ledger decides whether that caller
  may perform them.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input (body, amount, identity, month, day count)
  - 401: Missing or invalid token
  - 403: Caller lacks the required role
  - 404: Employee or payslip not found
  - 409: Already exists, already claimed
  - 422: Business rule (window, weekend, quota, fund, period not over)
  - 500: Journal or internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - export.go: CSV report
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/payroll-ledger/journal"
	"github.com/warp/payroll-ledger/payroll"
	"github.com/warp/payroll-ledger/payslip"
	"github.com/warp/payroll-ledger/service"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *service.Service
	Auditor *service.Auditor // optional

	// Company and Currency are printed on payslips.
	Company  string
	Currency string

	Logger *slog.Logger
}

func NewHandler(svc *service.Service, auditor *service.Auditor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service: svc,
		Auditor: auditor,
		Logger:  logger,
	}
}

// =============================================================================
// STATUS
// =============================================================================

// GetStatus returns the ledger clock, fund balance, settings and journal head.
// GET /api/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	dto := StatusDTO{
		Now:         h.Service.Now(),
		Period:      h.Service.CurrentPeriod().String(),
		FundBalance: h.Service.FundBalance(),
		Settings:    h.Service.Settings(),
	}
	if head := h.Service.Head(); head != nil {
		dto.JournalSeq = head.Seq
		dto.JournalHead = head.Hash.String()
	}
	if h.Auditor != nil {
		if st := h.Auditor.Status(); !st.CheckedAt.IsZero() {
			dto.Audit = toAuditDTO(st)
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all registered employees.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees := h.Service.Employees()
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = h.toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns one employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Service.EmployeeInfo(pathIdentity(r, "id"))
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toEmployeeDTO(emp))
}

// AddEmployee registers an employee.
// POST /api/employees
func (h *Handler) AddEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, _ := Caller(r.Context())
	ev, err := h.Service.AddEmployee(r.Context(), caller,
		payroll.Identity(req.ID), payroll.Identity(req.Manager), req.SalaryPerDay)
	h.respond(w, http.StatusCreated, ev, err)
}

// RemoveEmployee removes an employee after settling unclaimed records.
// DELETE /api/employees/{id}
func (h *Handler) RemoveEmployee(w http.ResponseWriter, r *http.Request) {
	caller, _ := Caller(r.Context())
	ev, err := h.Service.RemoveEmployee(r.Context(), caller, pathIdentity(r, "id"))
	h.respond(w, http.StatusOK, ev, err)
}

// ChangeSalary sets the daily rate for future records.
// PUT /api/employees/{id}/salary
func (h *Handler) ChangeSalary(w http.ResponseWriter, r *http.Request) {
	var req ChangeSalaryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, _ := Caller(r.Context())
	ev, err := h.Service.ChangeSalary(r.Context(), caller, pathIdentity(r, "id"), req.SalaryPerDay)
	h.respond(w, http.StatusOK, ev, err)
}

// ChangeManager reassigns an employee's manager.
// PUT /api/employees/{id}/manager
func (h *Handler) ChangeManager(w http.ResponseWriter, r *http.Request) {
	var req ChangeManagerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, _ := Caller(r.Context())
	ev, err := h.Service.ChangeManager(r.Context(), caller, pathIdentity(r, "id"), payroll.Identity(req.Manager))
	h.respond(w, http.StatusOK, ev, err)
}

// ChangePaymentAddress moves an employee and their records to a new identity.
// PUT /api/employees/{id}/payment-address
func (h *Handler) ChangePaymentAddress(w http.ResponseWriter, r *http.Request) {
	var req ChangePaymentAddressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, _ := Caller(r.Context())
	ev, err := h.Service.ChangePaymentAddress(r.Context(), caller, pathIdentity(r, "id"), payroll.Identity(req.NewID))
	h.respond(w, http.StatusOK, ev, err)
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListRecords returns every monthly record of an employee, oldest first.
// GET /api/employees/{id}/records
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	id := pathIdentity(r, "id")
	entries := h.Service.Records(id)
	dtos := make([]RecordDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toRecordDTO(e.Employee, e.Period, e.Record, h.Service.WorkingDayChange(e.Employee, e.Period))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRecord returns one monthly record. Missing records read as zero.
// GET /api/employees/{id}/records/{year}/{month}
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	period, ok := pathPeriod(w, r)
	if !ok {
		return
	}
	id := pathIdentity(r, "id")
	rec := h.Service.CheckInInfo(id, period)
	writeJSON(w, http.StatusOK, toRecordDTO(id, period, rec, h.Service.WorkingDayChange(id, period)))
}

// ChangeWorkingDays is the manager override, limited by the change quota.
// PUT /api/employees/{id}/records/{year}/{month}/working-days
func (h *Handler) ChangeWorkingDays(w http.ResponseWriter, r *http.Request) {
	period, ok := pathPeriod(w, r)
	if !ok {
		return
	}
	var req WorkingDaysRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, _ := Caller(r.Context())
	ev, err := h.Service.ChangeWorkingDays(r.Context(), caller, pathIdentity(r, "id"), period, req.Days)
	h.respond(w, http.StatusOK, ev, err)
}

// ChangeWorkingDaysByAdmin is the unrestricted admin override.
// PUT /api/admin/employees/{id}/records/{year}/{month}/working-days
func (h *Handler) ChangeWorkingDaysByAdmin(w http.ResponseWriter, r *http.Request) {
	period, ok := pathPeriod(w, r)
	if !ok {
		return
	}
	var req WorkingDaysRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, _ := Caller(r.Context())
	ev, err := h.Service.ChangeWorkingDaysByAdmin(r.Context(), caller, pathIdentity(r, "id"), period, req.Days)
	h.respond(w, http.StatusOK, ev, err)
}

// =============================================================================
// ATTENDANCE AND CLAIMS
// =============================================================================

// CheckIn opens the caller's working day.
// POST /api/attendance/check-in
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	caller, _ := Caller(r.Context())
	ev, err := h.Service.CheckIn(r.Context(), caller)
	h.respond(w, http.StatusOK, ev, err)
}

// CheckOut closes the caller's working day and counts it.
// POST /api/attendance/check-out
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	caller, _ := Caller(r.Context())
	ev, err := h.Service.CheckOut(r.Context(), caller)
	h.respond(w, http.StatusOK, ev, err)
}

// Claim pays the caller's wages for an elapsed period.
// POST /api/claims
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, _ := Caller(r.Context())
	period := payroll.Period{Month: time.Month(req.Month), Year: req.Year}
	ev, err := h.Service.GetPaid(r.Context(), caller, period)
	h.respond(w, http.StatusOK, ev, err)
}

// =============================================================================
// PAYSLIPS
// =============================================================================

// GetPayslip renders the PDF payslip of a claimed period. Only the
// employee and the admin may read it.
// GET /api/employees/{id}/payslips/{year}/{month}
func (h *Handler) GetPayslip(w http.ResponseWriter, r *http.Request) {
	period, ok := pathPeriod(w, r)
	if !ok {
		return
	}
	id := pathIdentity(r, "id")
	caller, _ := Caller(r.Context())
	if caller != id && caller != h.Service.Settings().Admin {
		writeError(w, http.StatusForbidden, "Only the employee or the admin may read a payslip", payroll.ErrUnauthorized)
		return
	}

	var manager payroll.Identity
	if emp, err := h.Service.EmployeeInfo(id); err == nil {
		manager = emp.Manager
	}
	slip, err := payslip.FromRecord(id, manager, period, h.Service.CheckInInfo(id, period))
	if err != nil {
		writeError(w, http.StatusNotFound, "No claimed salary for this period", err)
		return
	}
	slip.Company = h.Company
	slip.Currency = h.Currency

	entry, err := h.Service.ClaimEntry(r.Context(), id, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read journal", err)
		return
	}
	if entry != nil {
		slip.ClaimedAt = entry.Event.At
		slip.Reference = fmt.Sprintf("journal #%d %s", entry.Seq, entry.Hash.String()[:16])
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=\"payslip-%s-%s.pdf\"", id, period))
	if err := payslip.Render(w, slip); err != nil {
		h.Logger.Error("payslip render failed", "employee", id, "period", period.String(), "error", err)
	}
}

// =============================================================================
// FUND HANDLERS
// =============================================================================

// GetFund returns the fund balance.
// GET /api/fund
func (h *Handler) GetFund(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FundDTO{Balance: h.Service.FundBalance()})
}

// ListTransfers returns fund movements since the server started.
// GET /api/fund/transfers
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	transfers := h.Service.Transfers()
	dtos := make([]TransferDTO, len(transfers))
	for i, t := range transfers {
		dtos[i] = TransferDTO{From: t.From.String(), To: t.To.String(), Amount: t.Amount}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddFund deposits admin funds into the pool.
// POST /api/fund/deposits
func (h *Handler) AddFund(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, _ := Caller(r.Context())
	ev, err := h.Service.AddFund(r.Context(), caller, req.Amount)
	h.respond(w, http.StatusOK, ev, err)
}

// WithdrawFund pays fund units out to the admin.
// POST /api/fund/withdrawals
func (h *Handler) WithdrawFund(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, _ := Caller(r.Context())
	ev, err := h.Service.WithdrawFund(r.Context(), caller, req.Amount)
	h.respond(w, http.StatusOK, ev, err)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ChangeAdmin hands the admin role to another identity.
// PUT /api/admin/admin
func (h *Handler) ChangeAdmin(w http.ResponseWriter, r *http.Request) {
	var req ChangeAdminRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, _ := Caller(r.Context())
	ev, err := h.Service.ChangeAdmin(r.Context(), caller, payroll.Identity(req.Admin))
	h.respond(w, http.StatusOK, ev, err)
}

// ChangeMaxChangeWorkingDays sets the manager override quota.
// PUT /api/admin/max-change-working-days
func (h *Handler) ChangeMaxChangeWorkingDays(w http.ResponseWriter, r *http.Request) {
	var req ChangeMaxChangeWorkingDaysRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, _ := Caller(r.Context())
	ev, err := h.Service.ChangeMaxChangeWorkingDays(r.Context(), caller, req.MaxChangeWorkingDays)
	h.respond(w, http.StatusOK, ev, err)
}

// =============================================================================
// JOURNAL HANDLERS
// =============================================================================

// GetJournal returns journal entries and whether the full chain verifies.
// GET /api/journal?from=&kind=&employee=&limit=
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := journal.Filter{
		Kind:     payroll.EventKind(q.Get("kind")),
		Employee: payroll.Identity(q.Get("employee")),
	}
	if v := q.Get("from"); v != "" {
		from, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from", err)
			return
		}
		f.FromSeq = from
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		f.Limit = limit
	}

	entries, err := h.Service.Journal(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read journal", err)
		return
	}

	resp := JournalResponse{Entries: make([]JournalEntryDTO, len(entries)), Verified: true}
	for i, e := range entries {
		resp.Entries[i] = JournalEntryDTO{
			Seq:        e.Seq,
			ID:         e.ID,
			Event:      e.Event,
			PrevHash:   e.PrevHash,
			Hash:       e.Hash,
			RecordedAt: e.RecordedAt,
		}
	}
	if err := h.Service.Verify(r.Context()); err != nil {
		resp.Verified = false
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// VerifyJournal runs the auditor once and returns its result.
// POST /api/journal/verify
func (h *Handler) VerifyJournal(w http.ResponseWriter, r *http.Request) {
	var st service.AuditStatus
	if h.Auditor != nil {
		st = h.Auditor.Check(r.Context())
	} else {
		st = service.AuditStatus{CheckedAt: h.Service.Now(), Err: h.Service.Verify(r.Context())}
		if head := h.Service.Head(); head != nil {
			st.Entries = head.Seq
		}
	}
	status := http.StatusOK
	if st.Err != nil {
		status = http.StatusConflict
	}
	writeJSON(w, status, toAuditDTO(st))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) toEmployeeDTO(e payroll.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:           e.ID.String(),
		Manager:      e.Manager.String(),
		SalaryPerDay: e.SalaryPerDay,
		JoinDate:     e.JoinDate.Format(time.RFC3339),
		Outstanding:  h.Service.Outstanding(e.ID),
	}
}

func toRecordDTO(id payroll.Identity, p payroll.Period, rec payroll.MonthlyRecord, change int) RecordDTO {
	dto := RecordDTO{
		Employee:         id.String(),
		Year:             p.Year,
		Month:            int(p.Month),
		IsCheckedIn:      rec.IsCheckedIn,
		WorkingDays:      rec.WorkingDays,
		SalarySnapshot:   rec.SalarySnapshot,
		Amount:           rec.Amount(),
		Claimed:          rec.Claimed,
		WorkingDayChange: change,
	}
	if !rec.LastCheckIn.IsZero() {
		dto.LastCheckIn = strPtr(rec.LastCheckIn.Format(time.RFC3339))
	}
	return dto
}

func toAuditDTO(st service.AuditStatus) *AuditDTO {
	dto := &AuditDTO{CheckedAt: st.CheckedAt, Entries: st.Entries, OK: st.OK()}
	if st.Err != nil {
		dto.Error = st.Err.Error()
	}
	return dto
}

// respond acknowledges a mutation or maps its error to a status.
func (h *Handler) respond(w http.ResponseWriter, status int, ev payroll.Event, err error) {
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	writeJSON(w, status, OperationResponse{Event: ev})
}

func (h *Handler) writeOpError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", "error", err)
		writeError(w, status, "Internal error", err)
		return
	}
	writeError(w, status, http.StatusText(status), err)
}

func statusFor(err error) int {
	switch {
	case payroll.IsForbidden(err):
		return http.StatusForbidden
	case payroll.IsNotFound(err):
		return http.StatusNotFound
	case payroll.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, payroll.ErrInvalidAmount),
		errors.Is(err, payroll.ErrInvalidIdentity),
		errors.Is(err, payroll.ErrInvalidMonth),
		errors.Is(err, payroll.ErrInvalidWorkingDays):
		return http.StatusBadRequest
	case payroll.IsClientError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func pathIdentity(r *http.Request, key string) payroll.Identity {
	return payroll.Identity(chi.URLParam(r, key))
}

func pathPeriod(w http.ResponseWriter, r *http.Request) (payroll.Period, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return payroll.Period{}, false
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return payroll.Period{}, false
	}
	return payroll.Period{Month: time.Month(month), Year: year}, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func strPtr(s string) *string {
	return &s
}
