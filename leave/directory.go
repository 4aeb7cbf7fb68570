package leave

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// TEAM ASSIGNMENT DIRECTORY - Who approves first
// =============================================================================

// TeamAssignmentDirectory resolves the first-stage approver of an employee.
// Being a team lead does not exempt an employee from having a lead of
// their own; a lead with no lead above routes straight to HR.
type TeamAssignmentDirectory struct {
	Store Store
}

func NewTeamAssignmentDirectory(store Store) *TeamAssignmentDirectory {
	return &TeamAssignmentDirectory{Store: store}
}

func (d *TeamAssignmentDirectory) LeadFor(ctx context.Context, employeeID EmployeeID) (EmployeeID, bool, error) {
	return d.Store.LeadFor(ctx, employeeID)
}

// PendingFor returns PENDING_TL requests of the employees currently
// assigned to the lead.
func (d *TeamAssignmentDirectory) PendingFor(ctx context.Context, leadID EmployeeID) ([]LeaveRequest, error) {
	members, err := d.Store.MembersOf(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load team members: %w", err)
	}
	if len(members) == 0 {
		return []LeaveRequest{}, nil
	}
	return d.Store.ListRequests(ctx, RequestFilter{
		EmployeeIDs: members,
		Statuses:    []Status{StatusPendingTL},
	})
}

func (d *TeamAssignmentDirectory) MembersOf(ctx context.Context, leadID EmployeeID) ([]EmployeeID, error) {
	return d.Store.MembersOf(ctx, leadID)
}

// Assign makes leadID the employee's team lead, replacing any previous
// one, and flags the lead as such.
func (d *TeamAssignmentDirectory) Assign(ctx context.Context, leadID, employeeID EmployeeID) error {
	if leadID == "" || employeeID == "" {
		return fmt.Errorf("%w: lead and employee are required", ErrInvalidAssignment)
	}
	if leadID == employeeID {
		return fmt.Errorf("%w: an employee cannot lead themselves", ErrInvalidAssignment)
	}

	lead, err := d.Store.GetEmployee(ctx, leadID)
	if err != nil {
		return err
	}
	if _, err := d.Store.GetEmployee(ctx, employeeID); err != nil {
		return err
	}

	now := time.Now().UTC()
	if !lead.IsTeamLead {
		lead.IsTeamLead = true
		lead.UpdatedAt = now
		if err := d.Store.SaveEmployee(ctx, *lead); err != nil {
			return fmt.Errorf("failed to flag team lead: %w", err)
		}
	}

	return d.Store.SaveAssignment(ctx, TeamAssignment{
		TeamLeadID: leadID,
		EmployeeID: employeeID,
		AssignedAt: now,
	})
}

// Unassign removes the pair. Requests already in PENDING_TL stay there
// until a newly assigned lead acts on them.
func (d *TeamAssignmentDirectory) Unassign(ctx context.Context, leadID, employeeID EmployeeID) error {
	removed, err := d.Store.DeleteAssignment(ctx, leadID, employeeID)
	if err != nil {
		return fmt.Errorf("failed to remove assignment: %w", err)
	}
	if !removed {
		return fmt.Errorf("%w: %s is not assigned to %s", ErrInvalidAssignment, employeeID, leadID)
	}
	return nil
}
