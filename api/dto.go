/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the leave domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request bodies carry `validate` tags. Each request type has Normalize()
  (trim strings) and Ok() which returns field -> message for every failed
  rule. Domain rules (balance, overlap, transitions) stay in the leave
  package; the tags only reject bodies that are malformed.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: Domain types
*/
package api

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validationErrors turns validator output into field -> message.
func validationErrors(err error) map[string]string {
	out := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["body"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			out[field] = "is required"
		case "min", "gte":
			out[field] = fmt.Sprintf("must be at least %s", fe.Param())
		case "datetime":
			out[field] = fmt.Sprintf("must be a date in format %s", fe.Param())
		case "oneof":
			out[field] = fmt.Sprintf("must be one of %s", fe.Param())
		default:
			out[field] = fmt.Sprintf("failed %s validation", fe.Tag())
		}
	}
	return out
}

func check(dto any) (map[string]string, bool) {
	if err := validate.Struct(dto); err != nil {
		return validationErrors(err), false
	}
	return map[string]string{}, true
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// AllocationDTO is a CPL/SL split.
type AllocationDTO struct {
	CPL int `json:"cpl" validate:"gte=0"`
	SL  int `json:"sl" validate:"gte=0"`
}

func (a AllocationDTO) toAllocation() leave.Allocation {
	return leave.Allocation{CPL: a.CPL, SL: a.SL}
}

// UpsertEmployeeRequest creates or edits an employee. The ID comes from
// the URL.
type UpsertEmployeeRequest struct {
	Name string `json:"name" validate:"required"`
	CPL  int    `json:"cpl" validate:"gte=0"`
	SL   int    `json:"sl" validate:"gte=0"`
}

func (d *UpsertEmployeeRequest) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
}

func (d *UpsertEmployeeRequest) Ok() (map[string]string, bool) {
	d.Normalize()
	return check(d)
}

// SubmitLeaveRequest is the body of POST /api/employees/{id}/leave-requests.
type SubmitLeaveRequest struct {
	StartDate string        `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string        `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason    string        `json:"reason" validate:"required"`
	Requested AllocationDTO `json:"requested"`
}

func (d *SubmitLeaveRequest) Normalize() {
	d.StartDate = strings.TrimSpace(d.StartDate)
	d.EndDate = strings.TrimSpace(d.EndDate)
	d.Reason = strings.TrimSpace(d.Reason)
}

func (d *SubmitLeaveRequest) Ok() (map[string]string, bool) {
	d.Normalize()
	return check(d)
}

// ToInput converts the body into engine input. Ok must have passed.
func (d *SubmitLeaveRequest) ToInput(employeeID leave.EmployeeID) (leave.SubmitInput, error) {
	start, err := leave.ParseDate(d.StartDate)
	if err != nil {
		return leave.SubmitInput{}, err
	}
	end, err := leave.ParseDate(d.EndDate)
	if err != nil {
		return leave.SubmitInput{}, err
	}
	return leave.SubmitInput{
		EmployeeID: employeeID,
		StartDate:  start,
		EndDate:    end,
		Reason:     d.Reason,
		Requested:  d.Requested.toAllocation(),
	}, nil
}

// TeamLeadDecisionRequest identifies the acting lead.
type TeamLeadDecisionRequest struct {
	TeamLeadID string `json:"team_lead_id" validate:"required"`
}

func (d *TeamLeadDecisionRequest) Ok() (map[string]string, bool) {
	d.TeamLeadID = strings.TrimSpace(d.TeamLeadID)
	return check(d)
}

// HRApproveRequest carries HR's final split.
type HRApproveRequest struct {
	ActorID    string        `json:"actor_id" validate:"required"`
	Allocation AllocationDTO `json:"allocation"`
}

func (d *HRApproveRequest) Ok() (map[string]string, bool) {
	d.ActorID = strings.TrimSpace(d.ActorID)
	return check(d)
}

type HRRejectRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
}

func (d *HRRejectRequest) Ok() (map[string]string, bool) {
	d.ActorID = strings.TrimSpace(d.ActorID)
	return check(d)
}

// TeamAssignmentRequest assigns or unassigns a lead.
type TeamAssignmentRequest struct {
	TeamLeadID string `json:"team_lead_id" validate:"required"`
	EmployeeID string `json:"employee_id" validate:"required"`
}

func (d *TeamAssignmentRequest) Ok() (map[string]string, bool) {
	d.TeamLeadID = strings.TrimSpace(d.TeamLeadID)
	d.EmployeeID = strings.TrimSpace(d.EmployeeID)
	return check(d)
}

// ClosePayrollRequest names the month to close, "YYYY-MM".
type ClosePayrollRequest struct {
	Month string `json:"month" validate:"required,datetime=2006-01"`
}

func (d *ClosePayrollRequest) Ok() (map[string]string, bool) {
	d.Month = strings.TrimSpace(d.Month)
	return check(d)
}

// LoadScenarioRequest is the request to load a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

func (d *LoadScenarioRequest) Ok() (map[string]string, bool) {
	d.ScenarioID = strings.TrimSpace(d.ScenarioID)
	return check(d)
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Balance    leave.Balance `json:"balance"`
	IsTeamLead bool          `json:"is_team_lead"`
	CreatedAt  string        `json:"created_at,omitempty"`
	UpdatedAt  string        `json:"updated_at,omitempty"`
}

// BalanceDTO shows granted, reserved and effective balance side by side.
type BalanceDTO struct {
	EmployeeID string        `json:"employee_id"`
	Granted    leave.Balance `json:"granted"`
	Effective  leave.Balance `json:"effective"`
}

// LeaveRequestDTO represents a leave request.
type LeaveRequestDTO struct {
	ID         string         `json:"id"`
	EmployeeID string         `json:"employee_id"`
	StartDate  string         `json:"start_date"`
	EndDate    string         `json:"end_date"`
	TotalDays  int            `json:"total_days"`
	Reason     string         `json:"reason"`
	Requested  AllocationDTO  `json:"requested"`
	Status     string         `json:"status"`
	Breakup    *leave.Breakup `json:"breakup,omitempty"`
	TeamLeadID *string        `json:"team_lead_id,omitempty"`
	DecidedBy  *string        `json:"decided_by,omitempty"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

type AuditEntryDTO struct {
	ID         string         `json:"id"`
	At         string         `json:"at"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	FromStatus string         `json:"from_status,omitempty"`
	ToStatus   string         `json:"to_status"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type TeamMembersDTO struct {
	TeamLeadID string   `json:"team_lead_id"`
	Members    []string `json:"members"`
}

type RequestLOPDTO struct {
	RequestID string `json:"request_id"`
	LOP       int    `json:"lop"`
}

// LOPStatementDTO is one employee's monthly loss of pay.
type LOPStatementDTO struct {
	EmployeeID string          `json:"employee_id"`
	Month      string          `json:"month"`
	Days       int             `json:"days"`
	Fraction   decimal.Decimal `json:"fraction"`
	RequestIDs []string        `json:"request_ids"`
}

type PayrollCloseDTO struct {
	ID         string            `json:"id"`
	Month      string            `json:"month"`
	ClosedAt   string            `json:"closed_at"`
	Statements []LOPStatementDTO `json:"statements"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:         string(e.ID),
		Name:       e.Name,
		Balance:    e.Balance,
		IsTeamLead: e.IsTeamLead,
		CreatedAt:  formatTime(e.CreatedAt),
		UpdatedAt:  formatTime(e.UpdatedAt),
	}
}

func toLeaveRequestDTO(r leave.LeaveRequest) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:         string(r.ID),
		EmployeeID: string(r.EmployeeID),
		StartDate:  r.StartDate.Format(leave.DateLayout),
		EndDate:    r.EndDate.Format(leave.DateLayout),
		TotalDays:  r.TotalDays,
		Reason:     r.Reason,
		Requested:  AllocationDTO{CPL: r.Requested.CPL, SL: r.Requested.SL},
		Status:     string(r.Status),
		Breakup:    r.Breakup,
		DecidedBy:  r.DecidedBy,
		CreatedAt:  formatTime(r.CreatedAt),
		UpdatedAt:  formatTime(r.UpdatedAt),
	}
	if r.TeamLeadID != nil {
		lead := string(*r.TeamLeadID)
		dto.TeamLeadID = &lead
	}
	return dto
}

func toLeaveRequestDTOs(rs []leave.LeaveRequest) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toLeaveRequestDTO(r)
	}
	return dtos
}

func toAuditEntryDTO(e leave.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:         e.ID,
		At:         formatTime(e.At),
		ActorID:    e.ActorID,
		Action:     string(e.Action),
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		Payload:    e.Payload,
	}
}

func toLOPStatementDTO(s leave.LOPStatement) LOPStatementDTO {
	ids := make([]string, len(s.RequestIDs))
	for i, id := range s.RequestIDs {
		ids[i] = string(id)
	}
	return LOPStatementDTO{
		EmployeeID: string(s.EmployeeID),
		Month:      formatMonth(s.Year, s.Month),
		Days:       s.Days,
		Fraction:   s.Fraction,
		RequestIDs: ids,
	}
}

func toPayrollCloseDTO(c leave.PayrollClose) PayrollCloseDTO {
	statements := make([]LOPStatementDTO, len(c.Statements))
	for i, s := range c.Statements {
		statements[i] = toLOPStatementDTO(s)
	}
	return PayrollCloseDTO{
		ID:         c.ID,
		Month:      formatMonth(c.Year, c.Month),
		ClosedAt:   formatTime(c.ClosedAt),
		Statements: statements,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatMonth(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}
