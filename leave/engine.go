/*
engine.go - Locked, transactional entry points used by the API

PURPOSE:
  The Engine is the only way the outside world changes leave state. Every
  write runs with the employee's lock held and inside one TxStore.WithTx
  scope, so check-then-write sequences cannot interleave and a failure
  part-way through leaves nothing behind.

LOCKING:
  Submit and the four decisions lock the employee who owns the request.
  Different employees never contend. Reads do not lock; they see the last
  committed state.

  Decision calls look up the request once before locking to learn its
  employee. The employee of a request never changes, so the lookup does
  not race with the locked section, which loads the request again.

IDEMPOTENCE:
  A repeated decision fails with ErrInvalidTransition inside the lock, so
  two concurrent HR approvals of one request debit exactly once.

SEE ALSO:
  - validator.go, workflow.go, payroll.go: The logic run under the lock
  - api/handlers.go: HTTP binding
*/
package leave

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Engine struct {
	Store TxStore

	locks   *KeyedMutex
	closeMu sync.Mutex
	logger  *zap.Logger
}

// NewEngine builds an engine over store. The optional logger defaults to
// the global zap logger.
func NewEngine(store TxStore, logger ...*zap.Logger) *Engine {
	l := zap.L().Named("leave.engine")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.engine")
	}
	return &Engine{
		Store:  store,
		locks:  NewKeyedMutex(),
		logger: l,
	}
}

func (e *Engine) log(ctx context.Context) *zap.Logger {
	return LoggerFrom(ctx, e.logger)
}

// =============================================================================
// SUBMISSION
// =============================================================================

// SubmitLeaveRequest validates and records a new request.
func (e *Engine) SubmitLeaveRequest(ctx context.Context, in SubmitInput) (*LeaveRequest, error) {
	l := e.log(ctx).With(zap.String("employee_id", string(in.EmployeeID)))
	l.Debug("submitting leave request",
		zap.Time("start_date", in.StartDate),
		zap.Time("end_date", in.EndDate),
		zap.Int("requested_cpl", in.Requested.CPL),
		zap.Int("requested_sl", in.Requested.SL),
	)

	unlock := e.locks.Lock(in.EmployeeID)
	defer unlock()

	var created *LeaveRequest
	err := e.Store.WithTx(ctx, func(tx Store) error {
		req, err := NewRequestValidator(tx).Submit(ctx, in)
		if err != nil {
			return err
		}
		created = req
		return nil
	})
	recordSubmission(err)
	if err != nil {
		e.logFailure(l, "leave request refused", err)
		return nil, err
	}

	l.Info("leave request submitted",
		zap.String("leave_id", string(created.ID)),
		zap.String("status", string(created.Status)),
		zap.Int("total_days", created.TotalDays),
	)
	return created, nil
}

// =============================================================================
// DECISIONS
// =============================================================================

func (e *Engine) ApproveAsTeamLead(ctx context.Context, id RequestID, leadID EmployeeID) (*LeaveRequest, error) {
	return e.decide(ctx, id, ActionTLApprove, string(leadID), func(w *ApprovalWorkflow) (*LeaveRequest, error) {
		return w.ApproveAsTeamLead(ctx, id, leadID)
	})
}

func (e *Engine) RejectAsTeamLead(ctx context.Context, id RequestID, leadID EmployeeID) (*LeaveRequest, error) {
	return e.decide(ctx, id, ActionTLReject, string(leadID), func(w *ApprovalWorkflow) (*LeaveRequest, error) {
		return w.RejectAsTeamLead(ctx, id, leadID)
	})
}

// ApproveAsHR finalizes the request with HR's split. The debit, the status
// change and the audit entry commit together or not at all.
func (e *Engine) ApproveAsHR(ctx context.Context, id RequestID, actorID string, alloc Allocation) (*LeaveRequest, error) {
	req, err := e.decide(ctx, id, ActionHRApprove, actorID, func(w *ApprovalWorkflow) (*LeaveRequest, error) {
		return w.ApproveAsHR(ctx, id, actorID, alloc)
	})
	if err == nil && req.Breakup != nil {
		recordBreakup(*req.Breakup)
	}
	return req, err
}

func (e *Engine) RejectAsHR(ctx context.Context, id RequestID, actorID string) (*LeaveRequest, error) {
	return e.decide(ctx, id, ActionHRReject, actorID, func(w *ApprovalWorkflow) (*LeaveRequest, error) {
		return w.RejectAsHR(ctx, id, actorID)
	})
}

func (e *Engine) decide(ctx context.Context, id RequestID, action Action, actorID string, fn func(*ApprovalWorkflow) (*LeaveRequest, error)) (*LeaveRequest, error) {
	l := e.log(ctx).With(
		zap.String("leave_id", string(id)),
		zap.String("action", string(action)),
		zap.String("actor_id", actorID),
	)

	current, err := e.Store.GetRequest(ctx, id)
	if err != nil {
		recordTransition(action, err)
		e.logFailure(l, "leave decision refused", err)
		return nil, err
	}
	l = l.With(zap.String("employee_id", string(current.EmployeeID)))

	unlock := e.locks.Lock(current.EmployeeID)
	defer unlock()

	var updated *LeaveRequest
	err = e.Store.WithTx(ctx, func(tx Store) error {
		req, err := fn(NewApprovalWorkflow(tx))
		if err != nil {
			return err
		}
		updated = req
		return nil
	})
	recordTransition(action, err)
	if err != nil {
		e.logFailure(l, "leave decision refused", err)
		return nil, err
	}

	l.Info("leave request decided", zap.String("status", string(updated.Status)))
	return updated, nil
}

// logFailure logs caller mistakes at warn and everything else at error.
func (e *Engine) logFailure(l *zap.Logger, msg string, err error) {
	if IsClientError(err) || IsNotFound(err) {
		l.Warn(msg, zap.Error(err))
		return
	}
	l.Error(msg, zap.Error(err))
}

// =============================================================================
// QUERIES
// =============================================================================

// GetEffectiveBalance returns what the employee can still request.
func (e *Engine) GetEffectiveBalance(ctx context.Context, employeeID EmployeeID) (Balance, error) {
	return NewBalanceLedger(e.Store).EffectiveBalance(ctx, employeeID)
}

func (e *Engine) ListRequestsForEmployee(ctx context.Context, employeeID EmployeeID) ([]LeaveRequest, error) {
	if _, err := e.Store.GetEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	return e.Store.ListRequests(ctx, RequestFilter{EmployeeIDs: []EmployeeID{employeeID}})
}

// ListPendingForTeamLead returns the PENDING_TL queue of the lead's team.
func (e *Engine) ListPendingForTeamLead(ctx context.Context, leadID EmployeeID) ([]LeaveRequest, error) {
	if _, err := e.Store.GetEmployee(ctx, leadID); err != nil {
		return nil, err
	}
	return NewTeamAssignmentDirectory(e.Store).PendingFor(ctx, leadID)
}

// ListAllForHR returns every request, optionally narrowed to statuses.
func (e *Engine) ListAllForHR(ctx context.Context, statuses ...Status) ([]LeaveRequest, error) {
	for _, s := range statuses {
		if !s.Valid() {
			return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", s)}
		}
	}
	return e.Store.ListRequests(ctx, RequestFilter{Statuses: statuses})
}

func (e *Engine) GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error) {
	return e.Store.GetRequest(ctx, id)
}

// AuditTrail returns the request's audit entries, oldest first.
func (e *Engine) AuditTrail(ctx context.Context, id RequestID) ([]AuditEntry, error) {
	if _, err := e.Store.GetRequest(ctx, id); err != nil {
		return nil, err
	}
	return e.Store.AuditFor(ctx, id)
}

// =============================================================================
// PAYROLL
// =============================================================================

func (e *Engine) LOPForRequest(ctx context.Context, id RequestID) (int, error) {
	return NewPayrollLOPFeed(e.Store).LOPForRequest(ctx, id)
}

func (e *Engine) MonthlyLOP(ctx context.Context, employeeID EmployeeID, year int, month time.Month) (LOPStatement, error) {
	return NewPayrollLOPFeed(e.Store).MonthlyLOP(ctx, employeeID, year, month)
}

// CloseMonth freezes the month's LOP statements. Safe to call repeatedly.
func (e *Engine) CloseMonth(ctx context.Context, year int, month time.Month) (*PayrollClose, error) {
	if month < time.January || month > time.December {
		return nil, &ValidationError{Field: "month", Message: "must be between 1 and 12"}
	}

	e.closeMu.Lock()
	defer e.closeMu.Unlock()

	l := e.log(ctx).With(zap.Int("year", year), zap.String("month", month.String()))

	var pc *PayrollClose
	err := e.Store.WithTx(ctx, func(tx Store) error {
		c, err := NewPayrollLOPFeed(tx).CloseMonth(ctx, year, month)
		if err != nil {
			return err
		}
		pc = c
		return nil
	})
	if err != nil {
		l.Error("payroll close failed", zap.Error(err))
		return nil, err
	}

	l.Info("payroll month closed", zap.String("close_id", pc.ID), zap.Int("statements", len(pc.Statements)))
	return pc, nil
}

func (e *Engine) ListPayrollCloses(ctx context.Context) ([]PayrollClose, error) {
	return e.Store.ListPayrollCloses(ctx)
}

// =============================================================================
// DIRECTORY AND EMPLOYEES
// =============================================================================

// AssignTeamLead makes leadID the first-stage approver of employeeID.
// Requests already submitted keep their status.
func (e *Engine) AssignTeamLead(ctx context.Context, leadID, employeeID EmployeeID) error {
	// The lead's record is rewritten too when it gets flagged.
	unlock := e.locks.LockAll(leadID, employeeID)
	defer unlock()

	err := e.Store.WithTx(ctx, func(tx Store) error {
		return NewTeamAssignmentDirectory(tx).Assign(ctx, leadID, employeeID)
	})
	l := e.log(ctx).With(zap.String("lead_id", string(leadID)), zap.String("employee_id", string(employeeID)))
	if err != nil {
		e.logFailure(l, "team assignment refused", err)
		return err
	}
	l.Info("team lead assigned")
	return nil
}

func (e *Engine) UnassignTeamLead(ctx context.Context, leadID, employeeID EmployeeID) error {
	unlock := e.locks.LockAll(leadID, employeeID)
	defer unlock()

	err := e.Store.WithTx(ctx, func(tx Store) error {
		return NewTeamAssignmentDirectory(tx).Unassign(ctx, leadID, employeeID)
	})
	l := e.log(ctx).With(zap.String("lead_id", string(leadID)), zap.String("employee_id", string(employeeID)))
	if err != nil {
		e.logFailure(l, "team unassignment refused", err)
		return err
	}
	l.Info("team lead unassigned")
	return nil
}

func (e *Engine) TeamMembers(ctx context.Context, leadID EmployeeID) ([]EmployeeID, error) {
	if _, err := e.Store.GetEmployee(ctx, leadID); err != nil {
		return nil, err
	}
	members, err := NewTeamAssignmentDirectory(e.Store).MembersOf(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []EmployeeID{}
	}
	return members, nil
}

// EmployeeInput is the HR-editable part of an employee.
type EmployeeInput struct {
	ID      EmployeeID
	Name    string
	Balance Balance
}

// UpsertEmployee creates an employee or overwrites name and granted
// balance. Lowering the balance below what live requests reserve is
// allowed; the effective balance goes negative and blocks new
// submissions until requests are decided.
func (e *Engine) UpsertEmployee(ctx context.Context, in EmployeeInput) (*Employee, error) {
	if in.ID == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, &ValidationError{Field: "name", Message: "is required"}
	}
	if in.Balance.IsNegative() {
		return nil, &ValidationError{Field: "balance", Message: "CPL and SL must not be negative"}
	}

	unlock := e.locks.Lock(in.ID)
	defer unlock()

	var saved Employee
	err := e.Store.WithTx(ctx, func(tx Store) error {
		now := time.Now().UTC()
		emp := Employee{ID: in.ID, CreatedAt: now}
		existing, err := tx.GetEmployee(ctx, in.ID)
		switch {
		case err == nil:
			emp = *existing
		case !IsNotFound(err):
			return err
		}
		emp.Name = strings.TrimSpace(in.Name)
		emp.Balance = in.Balance
		emp.UpdatedAt = now
		if err := tx.SaveEmployee(ctx, emp); err != nil {
			return fmt.Errorf("failed to save employee: %w", err)
		}
		saved = emp
		return nil
	})
	if err != nil {
		e.log(ctx).Error("employee upsert failed", zap.String("employee_id", string(in.ID)), zap.Error(err))
		return nil, err
	}

	e.log(ctx).Info("employee saved",
		zap.String("employee_id", string(saved.ID)),
		zap.Int("cpl", saved.Balance.CPL),
		zap.Int("sl", saved.Balance.SL),
	)
	return &saved, nil
}

func (e *Engine) GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error) {
	return e.Store.GetEmployee(ctx, id)
}

func (e *Engine) ListEmployees(ctx context.Context) ([]Employee, error) {
	return e.Store.ListEmployees(ctx)
}
