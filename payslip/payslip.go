// Package payslip renders one-page PDF payslips for claimed periods.
package payslip

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-ledger/payroll"
)

var ErrNotClaimed = errors.New("period has not been claimed")

// Slip is everything printed on a payslip. Reference ties it to the
// journal entry that paid it.
type Slip struct {
	Company      string
	Currency     string
	Employee     payroll.Identity
	Manager      payroll.Identity
	Period       payroll.Period
	WorkingDays  int
	SalaryPerDay decimal.Decimal
	Amount       decimal.Decimal
	ClaimedAt    time.Time
	Reference    string
}

// FromRecord builds a Slip for a claimed record.
func FromRecord(emp payroll.Identity, manager payroll.Identity, period payroll.Period, rec payroll.MonthlyRecord) (Slip, error) {
	if !rec.Claimed {
		return Slip{}, ErrNotClaimed
	}
	return Slip{
		Employee:     emp,
		Manager:      manager,
		Period:       period,
		WorkingDays:  rec.WorkingDays,
		SalaryPerDay: rec.SalarySnapshot,
		Amount:       rec.Amount(),
	}, nil
}

// Render writes s as an A4 PDF to w.
func Render(w io.Writer, s Slip) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Payslip %s %s", s.Employee, s.Period), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)
	if s.Company != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 6, s.Company)
		pdf.Ln(10)
	}

	pdf.SetFont("Helvetica", "", 12)
	line(pdf, "Employee", s.Employee.String())
	if !s.Manager.IsZero() {
		line(pdf, "Manager", s.Manager.String())
	}
	line(pdf, "Period", s.Period.String())
	pdf.Ln(3)
	line(pdf, "Working days", fmt.Sprintf("%d", s.WorkingDays))
	line(pdf, "Daily rate", money(s.SalaryPerDay, s.Currency))

	pdf.SetFont("Helvetica", "B", 12)
	line(pdf, "Paid", money(s.Amount, s.Currency))

	pdf.SetFont("Helvetica", "", 9)
	pdf.Ln(6)
	if !s.ClaimedAt.IsZero() {
		line(pdf, "Claimed at", s.ClaimedAt.UTC().Format(time.RFC3339))
	}
	if s.Reference != "" {
		line(pdf, "Reference", s.Reference)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render payslip: %w", err)
	}
	return pdf.Output(w)
}

func line(pdf *gofpdf.Fpdf, label, value string) {
	pdf.CellFormat(45, 8, label+":", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, value, "", 1, "L", false, 0, "")
}

func money(d decimal.Decimal, currency string) string {
	if currency == "" {
		return d.String()
	}
	return d.String() + " " + currency
}
