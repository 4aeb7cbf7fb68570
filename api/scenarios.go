/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for demos of the portal. Each scenario creates employees, team
	assignments and leave requests through the Engine, so the data obeys
	every rule a real submission would.

AVAILABLE SCENARIOS:

	team-with-lead: CPL=4 SL=2 employee with a lead and one PENDING_TL request
	no-lead:        Employee without a lead; submissions go straight to HR
	awaiting-hr:    Request endorsed by the lead, waiting in PENDING_HR
	payroll-month:  Approved request with LOP in the previous month

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Create employees with balances
 3. Assign team leads
 4. Submit and decide leave requests

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "team-with-lead"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Engine-backed endpoints used after loading
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "team-with-lead",
		Name:        "Team With Lead",
		Description: "Employee with CPL=4, SL=2 and a team lead; one 3-day request waits for the lead",
	},
	{
		ID:          "no-lead",
		Name:        "No Team Lead",
		Description: "Employee without a team lead; new requests go straight to HR",
	},
	{
		ID:          "awaiting-hr",
		Name:        "Awaiting HR",
		Description: "Request endorsed by the team lead and waiting for HR's split",
	},
	{
		ID:          "payroll-month",
		Name:        "Payroll Month",
		Description: "Approved request last month with one LOP day, ready for the payroll close",
	},
}

// Resetter is implemented by stores that can be wiped for demos.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body", errs)
		return
	}

	loader, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Unknown scenario", req.ScenarioID)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID, loader); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// LoadScenarioByID resets the store and runs the loader.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string, loader func(context.Context, *leave.Engine) error) error {
	resetter, ok := h.Engine.Store.(Resetter)
	if !ok {
		return fmt.Errorf("store %T cannot be reset", h.Engine.Store)
	}
	if err := resetter.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	h.currentScenario = ""

	if err := loader(ctx, h.Engine); err != nil {
		return fmt.Errorf("failed to load scenario %s: %w", id, err)
	}
	h.currentScenario = id
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

var scenarioLoaders = map[string]func(context.Context, *leave.Engine) error{
	"team-with-lead": loadTeamWithLeadScenario,
	"no-lead":        loadNoLeadScenario,
	"awaiting-hr":    loadAwaitingHRScenario,
	"payroll-month":  loadPayrollMonthScenario,
}

func seedEmployees(ctx context.Context, e *leave.Engine, employees ...leave.EmployeeInput) error {
	for _, in := range employees {
		if _, err := e.UpsertEmployee(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

// teamWithLead creates emp-001 (CPL=4, SL=2) led by lead-001 and submits
// a 3-day CPL request for Jan 10-12 of the current year.
func teamWithLead(ctx context.Context, e *leave.Engine) (*leave.LeaveRequest, error) {
	if err := seedEmployees(ctx, e,
		leave.EmployeeInput{ID: "lead-001", Name: "Priya Raman", Balance: leave.Balance{CPL: 6, SL: 4}},
		leave.EmployeeInput{ID: "emp-001", Name: "Arjun Mehta", Balance: leave.Balance{CPL: 4, SL: 2}},
	); err != nil {
		return nil, err
	}
	if err := e.AssignTeamLead(ctx, "lead-001", "emp-001"); err != nil {
		return nil, err
	}

	year := time.Now().UTC().Year()
	return e.SubmitLeaveRequest(ctx, leave.SubmitInput{
		EmployeeID: "emp-001",
		StartDate:  leave.NewDate(year, time.January, 10),
		EndDate:    leave.NewDate(year, time.January, 12),
		Reason:     "Family function",
		Requested:  leave.Allocation{CPL: 3},
	})
}

func loadTeamWithLeadScenario(ctx context.Context, e *leave.Engine) error {
	_, err := teamWithLead(ctx, e)
	return err
}

func loadNoLeadScenario(ctx context.Context, e *leave.Engine) error {
	return seedEmployees(ctx, e,
		leave.EmployeeInput{ID: "emp-002", Name: "Meera Iyer", Balance: leave.Balance{CPL: 2, SL: 5}},
	)
}

func loadAwaitingHRScenario(ctx context.Context, e *leave.Engine) error {
	req, err := teamWithLead(ctx, e)
	if err != nil {
		return err
	}
	_, err = e.ApproveAsTeamLead(ctx, req.ID, "lead-001")
	return err
}

// loadPayrollMonthScenario approves a 3-day request in the previous month
// with CPL=1 SL=1, leaving one LOP day.
func loadPayrollMonthScenario(ctx context.Context, e *leave.Engine) error {
	if err := seedEmployees(ctx, e,
		leave.EmployeeInput{ID: "emp-003", Name: "Kabir Shah", Balance: leave.Balance{CPL: 1, SL: 3}},
	); err != nil {
		return err
	}

	year, month := previousMonth(time.Now())
	req, err := e.SubmitLeaveRequest(ctx, leave.SubmitInput{
		EmployeeID: "emp-003",
		StartDate:  leave.NewDate(year, month, 5),
		EndDate:    leave.NewDate(year, month, 7),
		Reason:     "Medical",
		Requested:  leave.Allocation{CPL: 1, SL: 1},
	})
	if err != nil {
		return err
	}
	_, err = e.ApproveAsHR(ctx, req.ID, "hr-001", leave.Allocation{CPL: 1, SL: 1})
	return err
}
