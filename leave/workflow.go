/*
workflow.go - Two-stage approval state machine

PURPOSE:
  Moves a request from submission to exactly one terminal decision.

TRANSITIONS:
  PENDING_TL --tl_approve-->         PENDING_HR   (no balance effect)
  PENDING_TL --tl_reject-->          REJECTED_TL  (reservation released)
  PENDING_HR --hr_approve(alloc)-->  APPROVED     (ledger debit, breakup set)
  PENDING_HR --hr_reject-->          REJECTED     (reservation released)

  Every other (status, action) pair fails with ErrInvalidTransition and
  changes nothing. Repeating an applied action therefore fails too, which
  is what keeps a double-clicked approval from debiting twice.

HR APPROVAL:
  HR supplies the final CPL/SL split, which may differ from what the
  employee asked for. LOP = TotalDays - CPL - SL. The debit, the request
  update and the audit entry go through the same Store; the engine runs
  them inside one WithTx so a failed debit leaves the request in
  PENDING_HR with the balance untouched.

SEE ALSO:
  - ledger.go: Debit
  - engine.go: Locking and transaction scope
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ACTIONS
// =============================================================================

type Action string

const (
	ActionSubmit    Action = "submit"
	ActionTLApprove Action = "tl_approve"
	ActionTLReject  Action = "tl_reject"
	ActionHRApprove Action = "hr_approve"
	ActionHRReject  Action = "hr_reject"
)

var transitions = map[Status]map[Action]Status{
	StatusPendingTL: {
		ActionTLApprove: StatusPendingHR,
		ActionTLReject:  StatusRejectedTL,
	},
	StatusPendingHR: {
		ActionHRApprove: StatusApproved,
		ActionHRReject:  StatusRejected,
	},
}

// Next returns the status reached by applying action in status from.
func Next(from Status, action Action) (Status, bool) {
	to, ok := transitions[from][action]
	return to, ok
}

// =============================================================================
// APPROVAL WORKFLOW
// =============================================================================

type ApprovalWorkflow struct {
	Store     Store
	Ledger    *BalanceLedger
	Directory *TeamAssignmentDirectory
}

func NewApprovalWorkflow(store Store) *ApprovalWorkflow {
	return &ApprovalWorkflow{
		Store:     store,
		Ledger:    NewBalanceLedger(store),
		Directory: NewTeamAssignmentDirectory(store),
	}
}

// ApproveAsTeamLead endorses a PENDING_TL request and hands it to HR.
func (w *ApprovalWorkflow) ApproveAsTeamLead(ctx context.Context, id RequestID, leadID EmployeeID) (*LeaveRequest, error) {
	return w.teamLeadDecision(ctx, id, leadID, ActionTLApprove)
}

// RejectAsTeamLead ends a PENDING_TL request in REJECTED_TL.
func (w *ApprovalWorkflow) RejectAsTeamLead(ctx context.Context, id RequestID, leadID EmployeeID) (*LeaveRequest, error) {
	return w.teamLeadDecision(ctx, id, leadID, ActionTLReject)
}

func (w *ApprovalWorkflow) teamLeadDecision(ctx context.Context, id RequestID, leadID EmployeeID, action Action) (*LeaveRequest, error) {
	req, to, err := w.load(ctx, id, action)
	if err != nil {
		return nil, err
	}

	lead, ok, err := w.Directory.LeadFor(ctx, req.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve team lead: %w", err)
	}
	if !ok || lead != leadID {
		return nil, fmt.Errorf("%w: %s does not lead %s", ErrNotTeamLead, leadID, req.EmployeeID)
	}

	from := req.Status
	req.Status = to
	req.TeamLeadID = &leadID
	req.UpdatedAt = time.Now().UTC()

	if err := w.record(ctx, req, string(leadID), action, from, nil); err != nil {
		return nil, err
	}
	return req, nil
}

// ApproveAsHR finalizes a PENDING_HR request with HR's split.
func (w *ApprovalWorkflow) ApproveAsHR(ctx context.Context, id RequestID, actorID string, alloc Allocation) (*LeaveRequest, error) {
	req, to, err := w.load(ctx, id, ActionHRApprove)
	if err != nil {
		return nil, err
	}

	if alloc.IsNegative() {
		return nil, fmt.Errorf("%w: CPL and SL must not be negative", ErrInvalidAllocation)
	}
	if alloc.Total() > req.TotalDays {
		return nil, fmt.Errorf("%w: CPL+SL=%d exceeds total days %d", ErrInvalidAllocation, alloc.Total(), req.TotalDays)
	}

	if err := w.Ledger.Debit(ctx, req.EmployeeID, alloc); err != nil {
		return nil, err
	}

	breakup := Breakup{CPL: alloc.CPL, SL: alloc.SL, LOP: req.TotalDays - alloc.Total()}
	from := req.Status
	req.Status = to
	req.Breakup = &breakup
	req.DecidedBy = &actorID
	req.UpdatedAt = time.Now().UTC()

	payload := map[string]any{"cpl": breakup.CPL, "sl": breakup.SL, "lop": breakup.LOP}
	if err := w.record(ctx, req, actorID, ActionHRApprove, from, payload); err != nil {
		return nil, err
	}
	return req, nil
}

// RejectAsHR ends a PENDING_HR request in REJECTED.
func (w *ApprovalWorkflow) RejectAsHR(ctx context.Context, id RequestID, actorID string) (*LeaveRequest, error) {
	req, to, err := w.load(ctx, id, ActionHRReject)
	if err != nil {
		return nil, err
	}

	from := req.Status
	req.Status = to
	req.DecidedBy = &actorID
	req.UpdatedAt = time.Now().UTC()

	if err := w.record(ctx, req, actorID, ActionHRReject, from, nil); err != nil {
		return nil, err
	}
	return req, nil
}

// load fetches the request and checks the action is allowed in its status.
func (w *ApprovalWorkflow) load(ctx context.Context, id RequestID, action Action) (*LeaveRequest, Status, error) {
	req, err := w.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, "", err
	}
	to, ok := Next(req.Status, action)
	if !ok {
		return nil, "", &TransitionError{RequestID: id, Action: action, From: req.Status}
	}
	return req, to, nil
}

func (w *ApprovalWorkflow) record(ctx context.Context, req *LeaveRequest, actorID string, action Action, from Status, payload map[string]any) error {
	if err := w.Store.SaveRequest(ctx, *req); err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}
	if err := w.Store.AppendAudit(ctx, AuditEntry{
		ID:         uuid.NewString(),
		At:         req.UpdatedAt,
		ActorID:    actorID,
		Action:     action,
		RequestID:  req.ID,
		EmployeeID: req.EmployeeID,
		FromStatus: from,
		ToStatus:   req.Status,
		Payload:    payload,
	}); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}
