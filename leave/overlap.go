package leave

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// OVERLAP GUARD - Date conflicts among live requests
// =============================================================================

// OverlapGuard checks a candidate range against the employee's live
// requests. APPROVED and rejected requests never block a submission.
type OverlapGuard struct {
	Store RequestStore
}

func NewOverlapGuard(store RequestStore) *OverlapGuard {
	return &OverlapGuard{Store: store}
}

// HasOverlap reports whether [start, end] intersects a PENDING_TL or
// PENDING_HR request of the employee. Bounds are inclusive.
func (g *OverlapGuard) HasOverlap(ctx context.Context, employeeID EmployeeID, start, end time.Time) (bool, error) {
	conflict, err := g.FirstConflict(ctx, employeeID, start, end)
	if err != nil {
		return false, err
	}
	return conflict != nil, nil
}

// FirstConflict returns the earliest live request that intersects the
// range, or nil.
func (g *OverlapGuard) FirstConflict(ctx context.Context, employeeID EmployeeID, start, end time.Time) (*LeaveRequest, error) {
	live, err := g.Store.ListRequests(ctx, RequestFilter{
		EmployeeIDs: []EmployeeID{employeeID},
		Statuses:    []Status{StatusPendingTL, StatusPendingHR},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load live requests: %w", err)
	}

	start, end = Day(start), Day(end)
	for i := range live {
		if live[i].Overlaps(start, end) {
			return &live[i], nil
		}
	}
	return nil, nil
}
