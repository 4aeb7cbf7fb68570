/*
validator.go - Submission gate

PURPOSE:
  Accepts or refuses a new leave request. Composes the OverlapGuard, the
  BalanceLedger and the TeamAssignmentDirectory; on success the request is
  stored in its initial status together with an audit entry.

CHECK ORDER:
  1. Input:      end >= start, reason not blank, CPL/SL not negative
  2. Overlap:    no live request of the employee intersects the range
  3. Balance:    requested CPL/SL each fit the effective balance
  4. Allocation: requested CPL+SL fits in the number of days
  5. Routing:    PENDING_TL with a lead, PENDING_HR without

  LOP is not fixed here. HR decides the final split; LOP is whatever the
  split leaves uncovered.

CONCURRENCY:
  The checks read state that a concurrent submission could change. Callers
  must hold the employee's lock (see engine.go) across Submit.
*/
package leave

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RequestValidator struct {
	Store     Store
	Ledger    *BalanceLedger
	Guard     *OverlapGuard
	Directory *TeamAssignmentDirectory
}

// NewRequestValidator wires the validator and its collaborators to one store.
func NewRequestValidator(store Store) *RequestValidator {
	return &RequestValidator{
		Store:     store,
		Ledger:    NewBalanceLedger(store),
		Guard:     NewOverlapGuard(store),
		Directory: NewTeamAssignmentDirectory(store),
	}
}

// Submit validates the input and records the request.
func (v *RequestValidator) Submit(ctx context.Context, in SubmitInput) (*LeaveRequest, error) {
	start, end := Day(in.StartDate), Day(in.EndDate)

	// 1. Input
	if err := validateInput(in, start, end); err != nil {
		return nil, err
	}
	totalDays := DaysInclusive(start, end)

	if _, err := v.Store.GetEmployee(ctx, in.EmployeeID); err != nil {
		return nil, err
	}

	// 2. Overlap
	overlap, err := v.Guard.HasOverlap(ctx, in.EmployeeID, start, end)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, fmt.Errorf("%w: %s to %s", ErrOverlap, start.Format(DateLayout), end.Format(DateLayout))
	}

	// 3. Effective balance
	effective, err := v.Ledger.EffectiveBalance(ctx, in.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate effective balance: %w", err)
	}
	if in.Requested.CPL > effective.CPL {
		return nil, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientCPL, in.Requested.CPL, effective.CPL)
	}
	if in.Requested.SL > effective.SL {
		return nil, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientSL, in.Requested.SL, effective.SL)
	}

	// 4. Allocation fits the range
	if in.Requested.Total() > totalDays {
		return nil, fmt.Errorf("%w: CPL+SL=%d, total days=%d", ErrAllocationExceedsTotal, in.Requested.Total(), totalDays)
	}

	// 5. Routing
	status := StatusPendingHR
	if _, ok, err := v.Directory.LeadFor(ctx, in.EmployeeID); err != nil {
		return nil, fmt.Errorf("failed to resolve team lead: %w", err)
	} else if ok {
		status = StatusPendingTL
	}

	now := time.Now().UTC()
	req := &LeaveRequest{
		ID:         RequestID(uuid.NewString()),
		EmployeeID: in.EmployeeID,
		StartDate:  start,
		EndDate:    end,
		TotalDays:  totalDays,
		Reason:     strings.TrimSpace(in.Reason),
		Requested:  in.Requested,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := v.Store.SaveRequest(ctx, *req); err != nil {
		return nil, fmt.Errorf("failed to record leave request: %w", err)
	}

	if err := v.Store.AppendAudit(ctx, AuditEntry{
		ID:         uuid.NewString(),
		At:         now,
		ActorID:    string(in.EmployeeID),
		Action:     ActionSubmit,
		RequestID:  req.ID,
		EmployeeID: req.EmployeeID,
		ToStatus:   status,
		Payload: map[string]any{
			"total_days":    totalDays,
			"requested_cpl": in.Requested.CPL,
			"requested_sl":  in.Requested.SL,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to record audit entry: %w", err)
	}

	return req, nil
}

func validateInput(in SubmitInput, start, end time.Time) error {
	if in.EmployeeID == "" {
		return &ValidationError{Field: "employee_id", Message: "is required"}
	}
	if start.IsZero() || end.IsZero() {
		return &ValidationError{Field: "start_date", Message: "start and end dates are required"}
	}
	if end.Before(start) {
		return &ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	if DaysInclusive(start, end) <= 0 {
		return &ValidationError{Field: "end_date", Message: "range must cover at least one day"}
	}
	if strings.TrimSpace(in.Reason) == "" {
		return &ValidationError{Field: "reason", Message: "is required"}
	}
	if in.Requested.IsNegative() {
		return &ValidationError{Field: "requested", Message: "CPL and SL must not be negative"}
	}
	return nil
}
