package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	engine := leave.NewEngine(store.NewTxMemory(), zap.NewNop())
	h := NewHandler(engine, zap.NewNop())
	return &testServer{t: t, handler: h, router: NewRouter(h, RouterOptions{Metrics: true})}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) putEmployee(id, name string, cpl, sl int) {
	s.t.Helper()
	rec := s.do(http.MethodPut, "/api/employees/"+id, UpsertEmployeeRequest{Name: name, CPL: cpl, SL: sl})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
}

func (s *testServer) assign(lead, emp string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/admin/team-assignments", TeamAssignmentRequest{TeamLeadID: lead, EmployeeID: emp})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) submit(emp string, body SubmitLeaveRequest) LeaveRequestDTO {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/employees/"+emp+"/leave-requests", body)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[LeaveRequestDTO](s.t, rec)
}

func jan(start, end string) SubmitLeaveRequest {
	return SubmitLeaveRequest{StartDate: "2025-01-" + start, EndDate: "2025-01-" + end, Reason: "Family function"}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestAPI_FullLifecycle(t *testing.T) {
	// GIVEN: Employee CPL=4 SL=2 with a lead
	// WHEN: Submit CPL=3, lead approves, HR approves {2,1}
	// THEN: Each step returns the new status; balance reflects the debit
	s := newTestServer(t)
	s.putEmployee("lead", "Priya", 0, 0)
	s.putEmployee("emp", "Arjun", 4, 2)
	s.assign("lead", "emp")

	body := jan("10", "12")
	body.Requested = AllocationDTO{CPL: 3}
	created := s.submit("emp", body)
	assert.Equal(t, "PENDING_TL", created.Status)
	assert.Equal(t, 3, created.TotalDays)
	assert.Equal(t, "2025-01-10", created.StartDate)

	rec := s.do(http.MethodGet, "/api/employees/emp/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decode[BalanceDTO](t, rec)
	assert.Equal(t, leave.Balance{CPL: 4, SL: 2}, bal.Granted)
	assert.Equal(t, leave.Balance{CPL: 1, SL: 2}, bal.Effective)

	rec = s.do(http.MethodGet, "/api/team-leads/lead/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]LeaveRequestDTO](t, rec), 1)

	rec = s.do(http.MethodPost, "/api/leave-requests/"+created.ID+"/tl/approve", TeamLeadDecisionRequest{TeamLeadID: "lead"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PENDING_HR", decode[LeaveRequestDTO](t, rec).Status)

	rec = s.do(http.MethodPost, "/api/leave-requests/"+created.ID+"/hr/approve", HRApproveRequest{
		ActorID: "hr-1", Allocation: AllocationDTO{CPL: 2, SL: 1},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[LeaveRequestDTO](t, rec)
	assert.Equal(t, "APPROVED", approved.Status)
	require.NotNil(t, approved.Breakup)
	assert.Equal(t, leave.Breakup{CPL: 2, SL: 1, LOP: 0}, *approved.Breakup)

	rec = s.do(http.MethodGet, "/api/employees/emp/balance", nil)
	bal = decode[BalanceDTO](t, rec)
	assert.Equal(t, leave.Balance{CPL: 2, SL: 1}, bal.Granted)

	rec = s.do(http.MethodGet, "/api/leave-requests/"+created.ID+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trail := decode[[]AuditEntryDTO](t, rec)
	require.Len(t, trail, 3)
	assert.Equal(t, "hr_approve", trail[2].Action)

	rec = s.do(http.MethodGet, "/api/leave-requests/"+created.ID+"/lop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[RequestLOPDTO](t, rec).LOP)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestAPI_SubmitErrors(t *testing.T) {
	s := newTestServer(t)
	s.putEmployee("emp", "Arjun", 4, 2)
	first := jan("10", "12")
	first.Requested = AllocationDTO{CPL: 3}
	s.submit("emp", first)

	tests := []struct {
		name   string
		emp    string
		body   any
		status int
		code   string
	}{
		{"overlap", "emp", SubmitLeaveRequest{StartDate: "2025-01-11", EndDate: "2025-01-13", Reason: "x"}, http.StatusConflict, CodeConflict},
		{"insufficient CPL", "emp", SubmitLeaveRequest{StartDate: "2025-02-01", EndDate: "2025-02-05", Reason: "x", Requested: AllocationDTO{CPL: 2}}, http.StatusUnprocessableEntity, CodeInsufficientBalance},
		{"allocation exceeds days", "emp", SubmitLeaveRequest{StartDate: "2025-03-01", EndDate: "2025-03-01", Reason: "x", Requested: AllocationDTO{CPL: 1, SL: 1}}, http.StatusBadRequest, CodeInvalidInput},
		{"end before start", "emp", SubmitLeaveRequest{StartDate: "2025-03-05", EndDate: "2025-03-01", Reason: "x"}, http.StatusBadRequest, CodeInvalidInput},
		{"missing reason", "emp", SubmitLeaveRequest{StartDate: "2025-03-01", EndDate: "2025-03-01", Reason: "  "}, http.StatusBadRequest, CodeInvalidInput},
		{"bad date format", "emp", SubmitLeaveRequest{StartDate: "01/03/2025", EndDate: "2025-03-01", Reason: "x"}, http.StatusBadRequest, CodeInvalidInput},
		{"negative allocation", "emp", SubmitLeaveRequest{StartDate: "2025-03-01", EndDate: "2025-03-01", Reason: "x", Requested: AllocationDTO{SL: -1}}, http.StatusBadRequest, CodeInvalidInput},
		{"malformed json", "emp", "{not json", http.StatusBadRequest, CodeInvalidInput},
		{"unknown employee", "ghost", SubmitLeaveRequest{StartDate: "2025-03-01", EndDate: "2025-03-01", Reason: "x"}, http.StatusNotFound, CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/employees/"+tt.emp+"/leave-requests", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestAPI_DecisionErrors(t *testing.T) {
	s := newTestServer(t)
	s.putEmployee("lead", "Lead", 0, 0)
	s.putEmployee("other", "Other", 0, 0)
	s.putEmployee("emp", "Emp", 1, 0)
	s.assign("lead", "emp")
	body := jan("10", "12")
	body.Requested = AllocationDTO{CPL: 1}
	req := s.submit("emp", body)
	base := "/api/leave-requests/" + req.ID

	// Wrong lead
	rec := s.do(http.MethodPost, base+"/tl/approve", TeamLeadDecisionRequest{TeamLeadID: "other"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, CodeForbidden, decode[ErrorResponse](t, rec).Code)

	// HR before the lead
	rec = s.do(http.MethodPost, base+"/hr/reject", HRRejectRequest{ActorID: "hr"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeInvalidState, decode[ErrorResponse](t, rec).Code)

	// Missing actor
	rec = s.do(http.MethodPost, base+"/tl/approve", TeamLeadDecisionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "team_lead_id")

	rec = s.do(http.MethodPost, base+"/tl/approve", TeamLeadDecisionRequest{TeamLeadID: "lead"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Allocation larger than the range
	rec = s.do(http.MethodPost, base+"/hr/approve", HRApproveRequest{ActorID: "hr", Allocation: AllocationDTO{CPL: 4}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Allocation beyond the granted balance
	rec = s.do(http.MethodPost, base+"/hr/approve", HRApproveRequest{ActorID: "hr", Allocation: AllocationDTO{CPL: 2}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// LOP of a request that is not approved
	rec = s.do(http.MethodGet, base+"/lop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, base+"/hr/approve", HRApproveRequest{ActorID: "hr", Allocation: AllocationDTO{CPL: 1}})
	require.Equal(t, http.StatusOK, rec.Code)

	// Double click
	rec = s.do(http.MethodPost, base+"/hr/approve", HRApproveRequest{ActorID: "hr", Allocation: AllocationDTO{CPL: 1}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, base+"/lop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[RequestLOPDTO](t, rec).LOP)

	rec = s.do(http.MethodGet, "/api/leave-requests/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestAPI_ListAllRequests_StatusFilter(t *testing.T) {
	s := newTestServer(t)
	s.putEmployee("emp", "Emp", 5, 5)
	a := s.submit("emp", jan("01", "01"))
	b := s.submit("emp", jan("02", "02"))
	rec := s.do(http.MethodPost, "/api/leave-requests/"+b.ID+"/hr/reject", HRRejectRequest{ActorID: "hr"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/leave-requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]LeaveRequestDTO](t, rec), 2)

	rec = s.do(http.MethodGet, "/api/leave-requests?status=pending_hr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]LeaveRequestDTO](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	rec = s.do(http.MethodGet, "/api/leave-requests?status=PENDING_HR,REJECTED", nil)
	assert.Len(t, decode[[]LeaveRequestDTO](t, rec), 2)

	rec = s.do(http.MethodGet, "/api/leave-requests?status=WITHDRAWN", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/employees/emp/leave-requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]LeaveRequestDTO](t, rec), 2)
}

func TestAPI_EmployeesAndTeams(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]EmployeeDTO](t, rec))

	s.putEmployee("lead", "Lead", 0, 0)
	s.putEmployee("emp", "Emp", 3, 1)

	rec = s.do(http.MethodPut, "/api/employees/bad", UpsertEmployeeRequest{Name: "", CPL: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodPut, "/api/employees/bad", UpsertEmployeeRequest{Name: "x", CPL: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.assign("lead", "emp")

	rec = s.do(http.MethodGet, "/api/employees/lead", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[EmployeeDTO](t, rec).IsTeamLead)

	rec = s.do(http.MethodGet, "/api/team-leads/lead/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"emp"}, decode[TeamMembersDTO](t, rec).Members)

	rec = s.do(http.MethodPost, "/api/admin/team-assignments", TeamAssignmentRequest{TeamLeadID: "emp", EmployeeID: "emp"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, "/api/admin/team-assignments", TeamAssignmentRequest{TeamLeadID: "lead", EmployeeID: "emp"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/team-leads/lead/members", nil)
	assert.Empty(t, decode[TeamMembersDTO](t, rec).Members)

	rec = s.do(http.MethodGet, "/api/employees/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodGet, "/api/team-leads/ghost/pending", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Payroll(t *testing.T) {
	// GIVEN: Approved 3-day February request with CPL=1, i.e. 2 LOP days
	// WHEN: Monthly LOP is queried and the month closed twice
	// THEN: 2 days, fraction 2/28; the second close returns the first
	s := newTestServer(t)
	s.putEmployee("emp", "Emp", 1, 0)
	created := s.submit("emp", SubmitLeaveRequest{StartDate: "2025-02-10", EndDate: "2025-02-12", Reason: "x", Requested: AllocationDTO{CPL: 1}})
	rec := s.do(http.MethodPost, "/api/leave-requests/"+created.ID+"/hr/approve", HRApproveRequest{ActorID: "hr", Allocation: AllocationDTO{CPL: 1}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/payroll/lop?employee_id=emp&month=2025-02", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stmt := decode[LOPStatementDTO](t, rec)
	assert.Equal(t, "2025-02", stmt.Month)
	assert.Equal(t, 2, stmt.Days)
	assert.True(t, decimal.RequireFromString("0.0714").Equal(stmt.Fraction))
	assert.Equal(t, []string{created.ID}, stmt.RequestIDs)

	rec = s.do(http.MethodGet, "/api/payroll/lop?employee_id=emp&month=Feb", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodGet, "/api/payroll/lop?month=2025-02", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/payroll/close", ClosePayrollRequest{Month: "2025-02"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[PayrollCloseDTO](t, rec)
	require.Len(t, first.Statements, 1)

	rec = s.do(http.MethodPost, "/api/payroll/close", ClosePayrollRequest{Month: "2025-02"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.ID, decode[PayrollCloseDTO](t, rec).ID)

	rec = s.do(http.MethodPost, "/api/payroll/close", ClosePayrollRequest{Month: "2025/02"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/payroll/closes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]PayrollCloseDTO](t, rec), 1)
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClassify_UnknownErrorIsInternal(t *testing.T) {
	apiErr := classify(assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, CodeInternal, apiErr.Code)
}
