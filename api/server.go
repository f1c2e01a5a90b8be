/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. Logger:        Request logging
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for a browser frontend
  5. Authenticate:  Bearer JWT subject becomes the caller

ROUTES:
  GET routes are open, except payslips. Every other route goes through
  RequireCaller, and the ledger then checks the caller's role.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token parsing and caller context
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Options configures NewRouter.
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(Authenticate(opts.JWTSecret))

	r.Route("/api", func(r chi.Router) {
		auth := r.With(RequireCaller)

		r.Get("/status", h.GetStatus)

		// Employee routes
		r.Get("/employees", h.ListEmployees)
		auth.Post("/employees", h.AddEmployee)
		r.Get("/employees/{id}", h.GetEmployee)
		auth.Delete("/employees/{id}", h.RemoveEmployee)
		auth.Put("/employees/{id}/salary", h.ChangeSalary)
		auth.Put("/employees/{id}/manager", h.ChangeManager)
		auth.Put("/employees/{id}/payment-address", h.ChangePaymentAddress)
		r.Get("/employees/{id}/records", h.ListRecords)
		r.Get("/employees/{id}/records/{year}/{month}", h.GetRecord)
		auth.Put("/employees/{id}/records/{year}/{month}/working-days", h.ChangeWorkingDays)
		auth.Get("/employees/{id}/payslips/{year}/{month}", h.GetPayslip)

		// Attendance and claims
		auth.Post("/attendance/check-in", h.CheckIn)
		auth.Post("/attendance/check-out", h.CheckOut)
		auth.Post("/claims", h.Claim)

		// Fund routes
		r.Get("/fund", h.GetFund)
		r.Get("/fund/transfers", h.ListTransfers)
		auth.Post("/fund/deposits", h.AddFund)
		auth.Post("/fund/withdrawals", h.WithdrawFund)

		// Admin routes
		auth.Put("/admin/admin", h.ChangeAdmin)
		auth.Put("/admin/max-change-working-days", h.ChangeMaxChangeWorkingDays)
		auth.Put("/admin/employees/{id}/records/{year}/{month}/working-days", h.ChangeWorkingDaysByAdmin)

		// Journal and reports
		r.Get("/journal", h.GetJournal)
		auth.Post("/journal/verify", h.VerifyJournal)
		r.Get("/reports/attendance", h.ExportAttendance)

		// Scenario routes
		r.Get("/scenarios", h.ListScenarios)
		auth.Post("/scenarios/load", h.LoadScenario)
	})

	return r
}
