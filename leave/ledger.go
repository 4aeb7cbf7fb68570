/*
ledger.go - Entitlement counters and the effective balance projection

PURPOSE:
  The BalanceLedger answers two questions:
  1. "How much can this employee still ask for?" (EffectiveBalance)
  2. "Take these days off the permanent balance." (Debit)

IMPLICIT RESERVATION:
  There is no stored "reserved" counter. The effective balance is the
  permanent balance minus the Requested split of every live request,
  recomputed from the RequestStore on every call. A rejected request stops
  counting the moment its status leaves PENDING_TL/PENDING_HR, so there is
  nothing to release and nothing to drift.

  Employee CPL=4 SL=2, live request asks CPL=3:
    effective = {CPL: 4-3, SL: 2-0} = {1, 2}

DEBIT:
  Called once, when a request becomes APPROVED. It is the only write to the
  permanent balance made by the engine. There is no credit.

SEE ALSO:
  - validator.go: Compares a submission against EffectiveBalance
  - workflow.go:  Calls Debit inside the approval transaction
*/
package leave

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// BALANCE LEDGER
// =============================================================================

type BalanceLedger struct {
	Store Store
}

func NewBalanceLedger(store Store) *BalanceLedger {
	return &BalanceLedger{Store: store}
}

// EffectiveBalance returns the granted balance minus what live requests
// have tentatively requested. The result may be negative if HR lowered the
// granted balance after submissions were accepted.
func (l *BalanceLedger) EffectiveBalance(ctx context.Context, employeeID EmployeeID) (Balance, error) {
	emp, err := l.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return Balance{}, err
	}

	reserved, err := l.Reserved(ctx, employeeID)
	if err != nil {
		return Balance{}, err
	}
	return emp.Balance.Sub(reserved), nil
}

// Reserved sums the Requested split over the employee's live requests.
func (l *BalanceLedger) Reserved(ctx context.Context, employeeID EmployeeID) (Allocation, error) {
	live, err := l.Store.ListRequests(ctx, RequestFilter{
		EmployeeIDs: []EmployeeID{employeeID},
		Statuses:    []Status{StatusPendingTL, StatusPendingHR},
	})
	if err != nil {
		return Allocation{}, fmt.Errorf("failed to load live requests: %w", err)
	}

	var reserved Allocation
	for _, r := range live {
		reserved.CPL += r.Requested.CPL
		reserved.SL += r.Requested.SL
	}
	return reserved, nil
}

// Debit permanently subtracts an allocation from the employee's balance.
// Nothing is written when either counter would go negative.
func (l *BalanceLedger) Debit(ctx context.Context, employeeID EmployeeID, alloc Allocation) error {
	emp, err := l.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return err
	}

	remaining := emp.Balance.Sub(alloc)
	if remaining.IsNegative() {
		return &InsufficientBalanceError{
			EmployeeID: employeeID,
			Available:  emp.Balance,
			Requested:  alloc,
		}
	}

	emp.Balance = remaining
	emp.UpdatedAt = time.Now().UTC()
	if err := l.Store.SaveEmployee(ctx, *emp); err != nil {
		return fmt.Errorf("failed to record debit: %w", err)
	}
	return nil
}
