/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Seeds a fresh ledger with a small team so the API can be explored
  without scripting a dozen calls. Scenarios run through the ordinary
  service operations as the authenticated caller, so they are journaled
  like any other change and only the admin can load them.

AVAILABLE SCENARIOS:
  basic-team:  One manager, two employees, a funded pool
  month-end:   basic-team plus last month's working days set by the
               admin, ready to claim

HOW SCENARIOS WORK:
  Steps run in order and stop at the first failure. Steps that already
  succeeded stay applied: the journal is append-only, there is no reset.
  Loading a scenario twice therefore fails with 409 on the first step.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "month-end"}
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-ledger/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "basic-team",
		Name:        "Basic Team",
		Description: "Manager ada with employees alice and bob, fund of 10000",
	},
	{
		ID:          "month-end",
		Name:        "Month End",
		Description: "Basic team with last month's working days recorded, ready to claim",
	},
}

const (
	demoManager payroll.Identity = "ada"
	demoAlice   payroll.Identity = "alice"
	demoBob     payroll.Identity = "bob"
)

type scenarioStep func(ctx context.Context, h *Handler, caller payroll.Identity) (payroll.Event, error)

func basicTeamSteps() []scenarioStep {
	return []scenarioStep{
		func(ctx context.Context, h *Handler, caller payroll.Identity) (payroll.Event, error) {
			return h.Service.AddEmployee(ctx, caller, demoAlice, demoManager, decimal.NewFromInt(100))
		},
		func(ctx context.Context, h *Handler, caller payroll.Identity) (payroll.Event, error) {
			return h.Service.AddEmployee(ctx, caller, demoBob, demoManager, decimal.NewFromInt(120))
		},
		func(ctx context.Context, h *Handler, caller payroll.Identity) (payroll.Event, error) {
			return h.Service.AddFund(ctx, caller, decimal.NewFromInt(10000))
		},
	}
}

func monthEndSteps(previous payroll.Period) []scenarioStep {
	override := func(id payroll.Identity, days int) scenarioStep {
		return func(ctx context.Context, h *Handler, caller payroll.Identity) (payroll.Event, error) {
			return h.Service.ChangeWorkingDaysByAdmin(ctx, caller, id, previous, days)
		}
	}
	return append(basicTeamSteps(), override(demoAlice, 20), override(demoBob, 18))
}

func previousPeriod(p payroll.Period) payroll.Period {
	if p.Month == 1 {
		return payroll.Period{Month: 12, Year: p.Year - 1}
	}
	return payroll.Period{Month: p.Month - 1, Year: p.Year}
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario applies a demo scenario as the caller.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var steps []scenarioStep
	switch req.ScenarioID {
	case "basic-team":
		steps = basicTeamSteps()
	case "month-end":
		steps = monthEndSteps(previousPeriod(h.Service.CurrentPeriod()))
	default:
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	caller, _ := Caller(r.Context())
	resp := LoadScenarioResponse{ScenarioID: req.ScenarioID, Events: []payroll.Event{}}
	for i, step := range steps {
		ev, err := step(r.Context(), h, caller)
		if err != nil {
			h.Logger.Warn("scenario stopped", "scenario", req.ScenarioID, "step", i+1, "error", err)
			h.writeOpError(w, fmt.Errorf("scenario %s step %d: %w", req.ScenarioID, i+1, err))
			return
		}
		resp.Events = append(resp.Events, ev)
	}

	h.Logger.Info("scenario loaded", "scenario", req.ScenarioID, "events", len(resp.Events))
	writeJSON(w, http.StatusOK, resp)
}
