/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response and
  JSON serialization, and delegates every decision to leave.Engine.

ENDPOINTS:
  Employees:
    GET    /api/employees                      List all employees
    PUT    /api/employees/{id}                 Create or edit employee
    GET    /api/employees/{id}                 Get employee details
    GET    /api/employees/{id}/balance         Granted and effective balance
    GET    /api/employees/{id}/leave-requests  Employee's requests
    POST   /api/employees/{id}/leave-requests  Submit a leave request

  Team leads:
    GET    /api/team-leads/{id}/pending        PENDING_TL queue
    GET    /api/team-leads/{id}/members        Assigned members

  Leave requests:
    GET    /api/leave-requests                 HR view (?status=A,B)
    GET    /api/leave-requests/{id}            Single request
    GET    /api/leave-requests/{id}/audit      Audit trail
    POST   /api/leave-requests/{id}/tl/approve Team lead approval
    POST   /api/leave-requests/{id}/tl/reject  Team lead rejection
    POST   /api/leave-requests/{id}/hr/approve HR approval with split
    POST   /api/leave-requests/{id}/hr/reject  HR rejection
    GET    /api/leave-requests/{id}/lop        LOP of an approved request

  Payroll:
    GET    /api/payroll/lop                    Monthly LOP (?employee_id=&month=YYYY-MM)
    POST   /api/payroll/close                  Freeze a month
    GET    /api/payroll/closes                 Frozen months

  Admin:
    POST   /api/admin/team-assignments         Assign team lead
    DELETE /api/admin/team-assignments         Remove team lead

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate body shape (dto.go)
  3. Call leave.Engine
  4. Serialize response
  5. Map errors (errors.go)

ERROR HANDLING:
  Errors are returned as JSON {error, code, details}:
  - 400 INVALID_INPUT:        malformed body, bad dates, invalid allocation
  - 403 FORBIDDEN:            team-lead action by someone else
  - 404 NOT_FOUND:            unknown employee or request
  - 409 CONFLICT:             overlapping request
  - 409 INVALID_STATE:        action not allowed in current status
  - 422 INSUFFICIENT_BALANCE: balance checks
  - 500 INTERNAL_ERROR

SECURITY NOTE:
  No authentication. Actor IDs in bodies are trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *leave.Engine
	logger *zap.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler around the engine.
func NewHandler(engine *leave.Engine, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("api.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("api.handler")
	}
	return &Handler{Engine: engine, logger: l}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Engine.ListEmployees(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Engine.GetEmployee(r.Context(), employeeParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// UpsertEmployee creates an employee or replaces its name and balance.
// PUT /api/employees/{id}
func (h *Handler) UpsertEmployee(w http.ResponseWriter, r *http.Request) {
	var req UpsertEmployeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body", errs)
		return
	}

	emp, err := h.Engine.UpsertEmployee(r.Context(), leave.EmployeeInput{
		ID:      employeeParam(r),
		Name:    req.Name,
		Balance: leave.Balance{CPL: req.CPL, SL: req.SL},
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// GetBalance returns the granted and the effective balance.
// GET /api/employees/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)

	emp, err := h.Engine.GetEmployee(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	effective, err := h.Engine.GetEffectiveBalance(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		EmployeeID: string(id),
		Granted:    emp.Balance,
		Effective:  effective,
	})
}

// ListEmployeeRequests returns the employee's own requests.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Engine.ListRequestsForEmployee(r.Context(), employeeParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(requests))
}

// SubmitLeaveRequest submits a new request for the employee.
// POST /api/employees/{id}/leave-requests
func (h *Handler) SubmitLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body", errs)
		return
	}

	in, err := req.ToInput(employeeParam(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid date", err.Error())
		return
	}

	created, err := h.Engine.SubmitLeaveRequest(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(*created))
}

// =============================================================================
// TEAM LEAD HANDLERS
// =============================================================================

// ListPendingForTeamLead returns the lead's PENDING_TL queue.
func (h *Handler) ListPendingForTeamLead(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Engine.ListPendingForTeamLead(r.Context(), employeeParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(requests))
}

func (h *Handler) ListTeamMembers(w http.ResponseWriter, r *http.Request) {
	leadID := employeeParam(r)
	members, err := h.Engine.TeamMembers(r.Context(), leadID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = string(m)
	}
	writeJSON(w, http.StatusOK, TeamMembersDTO{TeamLeadID: string(leadID), Members: ids})
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// ListAllRequests is the HR view. ?status= takes a comma separated list.
// GET /api/leave-requests
func (h *Handler) ListAllRequests(w http.ResponseWriter, r *http.Request) {
	var statuses []leave.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, leave.Status(strings.ToUpper(s)))
			}
		}
	}

	requests, err := h.Engine.ListAllForHR(r.Context(), statuses...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(requests))
}

func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Engine.GetRequest(r.Context(), requestParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*req))
}

// GetAuditTrail returns every transition of the request, oldest first.
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Engine.AuditTrail(r.Context(), requestParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveAsTeamLead moves PENDING_TL to PENDING_HR.
// POST /api/leave-requests/{id}/tl/approve
func (h *Handler) ApproveAsTeamLead(w http.ResponseWriter, r *http.Request) {
	var req TeamLeadDecisionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body", errs)
		return
	}

	updated, err := h.Engine.ApproveAsTeamLead(r.Context(), requestParam(r), leave.EmployeeID(req.TeamLeadID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

// RejectAsTeamLead moves PENDING_TL to REJECTED_TL.
func (h *Handler) RejectAsTeamLead(w http.ResponseWriter, r *http.Request) {
	var req TeamLeadDecisionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body", errs)
		return
	}

	updated, err := h.Engine.RejectAsTeamLead(r.Context(), requestParam(r), leave.EmployeeID(req.TeamLeadID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

// ApproveAsHR finalizes PENDING_HR with HR's CPL/SL split.
// POST /api/leave-requests/{id}/hr/approve
func (h *Handler) ApproveAsHR(w http.ResponseWriter, r *http.Request) {
	var req HRApproveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body", errs)
		return
	}

	updated, err := h.Engine.ApproveAsHR(r.Context(), requestParam(r), req.ActorID, req.Allocation.toAllocation())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

// RejectAsHR moves PENDING_HR to REJECTED.
func (h *Handler) RejectAsHR(w http.ResponseWriter, r *http.Request) {
	var req HRRejectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body", errs)
		return
	}

	updated, err := h.Engine.RejectAsHR(r.Context(), requestParam(r), req.ActorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

// GetRequestLOP returns the LOP days of an approved request.
func (h *Handler) GetRequestLOP(w http.ResponseWriter, r *http.Request) {
	id := requestParam(r)
	lop, err := h.Engine.LOPForRequest(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RequestLOPDTO{RequestID: string(id), LOP: lop})
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// GetMonthlyLOP returns one employee's LOP statement.
// GET /api/payroll/lop?employee_id=emp-1&month=2025-01
func (h *Handler) GetMonthlyLOP(w http.ResponseWriter, r *http.Request) {
	employeeID := strings.TrimSpace(r.URL.Query().Get("employee_id"))
	if employeeID == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "employee_id is required", nil)
		return
	}
	year, month, err := leave.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid month", err.Error())
		return
	}

	statement, err := h.Engine.MonthlyLOP(r.Context(), leave.EmployeeID(employeeID), year, month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLOPStatementDTO(statement))
}

// ClosePayrollMonth freezes a month's statements. Closing twice returns
// the first close.
// POST /api/payroll/close
func (h *Handler) ClosePayrollMonth(w http.ResponseWriter, r *http.Request) {
	var req ClosePayrollRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body", errs)
		return
	}
	year, month, err := leave.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid month", err.Error())
		return
	}

	pc, err := h.Engine.CloseMonth(r.Context(), year, month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollCloseDTO(*pc))
}

func (h *Handler) ListPayrollCloses(w http.ResponseWriter, r *http.Request) {
	closes, err := h.Engine.ListPayrollCloses(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]PayrollCloseDTO, len(closes))
	for i, c := range closes {
		dtos[i] = toPayrollCloseDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// AssignTeamLead sets the employee's lead, replacing any previous one.
// POST /api/admin/team-assignments
func (h *Handler) AssignTeamLead(w http.ResponseWriter, r *http.Request) {
	var req TeamAssignmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body", errs)
		return
	}

	if err := h.Engine.AssignTeamLead(r.Context(), leave.EmployeeID(req.TeamLeadID), leave.EmployeeID(req.EmployeeID)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// UnassignTeamLead removes a (lead, employee) pair.
// DELETE /api/admin/team-assignments
func (h *Handler) UnassignTeamLead(w http.ResponseWriter, r *http.Request) {
	var req TeamAssignmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body", errs)
		return
	}

	if err := h.Engine.UnassignTeamLead(r.Context(), leave.EmployeeID(req.TeamLeadID), leave.EmployeeID(req.EmployeeID)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func employeeParam(r *http.Request) leave.EmployeeID {
	return leave.EmployeeID(chi.URLParam(r, "id"))
}

func requestParam(r *http.Request) leave.RequestID {
	return leave.RequestID(chi.URLParam(r, "id"))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body", err.Error())
		return false
	}
	return true
}

// fail renders a leave error. Internal errors are logged and their
// details withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := classify(err)
	if apiErr.Status >= http.StatusInternalServerError {
		leave.LoggerFrom(r.Context(), h.logger).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, apiErr.Status, apiErr.Code, apiErr.Message, nil)
		return
	}
	writeError(w, apiErr.Status, apiErr.Code, apiErr.Message, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}
