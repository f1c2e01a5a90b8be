package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/warp/payroll-ledger/payroll"
)

// AttendanceRow is one line of the monthly attendance report.
type AttendanceRow struct {
	Employee       string `csv:"employee"`
	Period         string `csv:"period"`
	WorkingDays    int    `csv:"working_days"`
	SalarySnapshot string `csv:"salary_per_day"`
	Amount         string `csv:"amount"`
	Claimed        bool   `csv:"claimed"`
	CheckedIn      bool   `csv:"checked_in"`
	LastCheckIn    string `csv:"last_check_in"`
	ManagerChange  int    `csv:"manager_change"`
}

// ExportAttendance streams every record of one period as CSV. Without
// year and month it reports the current period.
// GET /api/reports/attendance?year=&month=
func (h *Handler) ExportAttendance(w http.ResponseWriter, r *http.Request) {
	period := h.Service.CurrentPeriod()
	q := r.URL.Query()
	if q.Get("year") != "" || q.Get("month") != "" {
		year, err := strconv.Atoi(q.Get("year"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		month, err := strconv.Atoi(q.Get("month"))
		if err != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "Invalid month", payroll.ErrInvalidMonth)
			return
		}
		period = payroll.Period{Month: time.Month(month), Year: year}
	}

	entries := h.Service.RecordsInPeriod(period)
	rows := make([]*AttendanceRow, len(entries))
	for i, e := range entries {
		row := &AttendanceRow{
			Employee:       e.Employee.String(),
			Period:         e.Period.String(),
			WorkingDays:    e.Record.WorkingDays,
			SalarySnapshot: e.Record.SalarySnapshot.String(),
			Amount:         e.Record.Amount().String(),
			Claimed:        e.Record.Claimed,
			CheckedIn:      e.Record.IsCheckedIn,
			ManagerChange:  h.Service.WorkingDayChange(e.Employee, e.Period),
		}
		if !e.Record.LastCheckIn.IsZero() {
			row.LastCheckIn = e.Record.LastCheckIn.Format(time.RFC3339)
		}
		rows[i] = row
	}

	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode report", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"attendance-%s.csv\"", period))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}
