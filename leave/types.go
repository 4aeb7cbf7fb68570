/*
Package leave implements the leave request lifecycle and balance reservation engine.

PURPOSE:
  Employees hold two paid-leave entitlements (CPL and SL). A leave request
  tentatively reserves part of that entitlement while it waits for a Team
  Lead and then HR to decide on it. On final approval the reservation
  becomes a permanent debit and the request gets a CPL/SL/LOP breakup that
  payroll reads.

KEY CONCEPTS IN THIS FILE (types.go):
  - Balance:      CPL/SL day counters (granted or effective)
  - Allocation:   A CPL/SL split proposed by the employee or decided by HR
  - Breakup:      The final CPL/SL/LOP split of an approved request
  - LeaveRequest: The request entity and its status
  - Employee:     Entitlement holder

STATE MACHINE:
  ┌────────────┐ approve  ┌────────────┐ approve(alloc) ┌──────────┐
  │ PENDING_TL │────────▶ │ PENDING_HR │──────────────▶ │ APPROVED │
  └────────────┘          └────────────┘                └──────────┘
        │ reject                │ reject
        ▼                       ▼
  ┌─────────────┐         ┌──────────┐
  │ REJECTED_TL │         │ REJECTED │
  └─────────────┘         └──────────┘

  Requests of employees without a team lead start in PENDING_HR.

SEE ALSO:
  - ledger.go:    Effective balance and debit
  - validator.go: Submission checks
  - workflow.go:  Transitions
  - engine.go:    Locked entry points used by the API
*/
package leave

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RequestID string

// =============================================================================
// BALANCE - Entitlement counters in whole days
// =============================================================================

// Balance holds CPL and SL day counts. Used both for the permanent
// entitlement and for the effective (spendable) projection.
type Balance struct {
	CPL int `json:"cpl"`
	SL  int `json:"sl"`
}

func (b Balance) Total() int { return b.CPL + b.SL }

func (b Balance) Sub(a Allocation) Balance {
	return Balance{CPL: b.CPL - a.CPL, SL: b.SL - a.SL}
}

func (b Balance) IsNegative() bool { return b.CPL < 0 || b.SL < 0 }

// Allocation is a CPL/SL split. The employee proposes one at submission
// (the reservation); HR decides the final one at approval.
type Allocation struct {
	CPL int `json:"cpl"`
	SL  int `json:"sl"`
}

func (a Allocation) Total() int       { return a.CPL + a.SL }
func (a Allocation) IsNegative() bool { return a.CPL < 0 || a.SL < 0 }

// Breakup is the final split of an approved request.
// CPL + SL + LOP always equals the request's TotalDays.
type Breakup struct {
	CPL int `json:"cpl"`
	SL  int `json:"sl"`
	LOP int `json:"lop"`
}

func (b Breakup) Total() int { return b.CPL + b.SL + b.LOP }

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID         EmployeeID
	Name       string
	Balance    Balance
	IsTeamLead bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type Status string

const (
	StatusPendingTL  Status = "PENDING_TL"
	StatusPendingHR  Status = "PENDING_HR"
	StatusApproved   Status = "APPROVED"
	StatusRejectedTL Status = "REJECTED_TL"
	StatusRejected   Status = "REJECTED"
)

// IsLive reports whether the request still waits for a decision.
// Only live requests hold a reservation and take part in overlap checks.
func (s Status) IsLive() bool {
	return s == StatusPendingTL || s == StatusPendingHR
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejectedTL || s == StatusRejected
}

func (s Status) Valid() bool {
	return s.IsLive() || s.IsTerminal()
}

// LeaveRequest is append-only in spirit: it is never deleted, only moved
// to a terminal status.
type LeaveRequest struct {
	ID         RequestID
	EmployeeID EmployeeID

	// Inclusive range at day precision (UTC midnight).
	StartDate time.Time
	EndDate   time.Time
	TotalDays int
	Reason    string

	// Tentative split asked for by the employee. Counts against the
	// effective balance while the request is live.
	Requested Allocation

	Status Status

	// Set only once HR approves.
	Breakup *Breakup

	// Actors
	TeamLeadID *EmployeeID // lead who endorsed or rejected
	DecidedBy  *string     // HR actor for the final decision

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Overlaps reports whether [start, end] intersects the request's range.
// Both bounds are inclusive.
func (r LeaveRequest) Overlaps(start, end time.Time) bool {
	return !start.After(r.EndDate) && !r.StartDate.After(end)
}

// =============================================================================
// TEAM ASSIGNMENT
// =============================================================================

// TeamAssignment links an employee to the lead who approves first.
// An employee has at most one lead at a time.
type TeamAssignment struct {
	TeamLeadID EmployeeID
	EmployeeID EmployeeID
	AssignedAt time.Time
}

// =============================================================================
// SUBMISSION INPUT
// =============================================================================

type SubmitInput struct {
	EmployeeID EmployeeID
	StartDate  time.Time
	EndDate    time.Time
	Reason     string
	Requested  Allocation
}
