/*
store.go - Persistence interfaces for employees, requests and assignments

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  never holds state of its own: balances, requests and assignments are
  read from the Store on every call so that the effective balance is always
  recomputed from the source of truth.

KEY INTERFACES:
  EmployeeStore:   Entitlement holders and their permanent balance
  RequestStore:    Leave requests (never deleted)
  AssignmentStore: Employee -> team lead relation
  AuditLog:        Append-only record of every transition
  PayrollStore:    Frozen monthly LOP statements
  TxStore:         Runs a function against a transactional Store view

ATOMICITY:
  HR approval writes the debited balance, the approved request and the
  audit entry through one WithTx call. Either all of them are committed or
  none is.

IMPLEMENTATIONS:
  - leave/store/memory.go:  In-memory, snapshot + rollback
  - store/sqlite/sqlite.go: SQLite via database/sql

SEE ALSO:
  - engine.go: Uses WithTx for every write
*/
package leave

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Interface for engine persistence
// =============================================================================

type EmployeeStore interface {
	// GetEmployee returns ErrEmployeeNotFound when the ID is unknown.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)

	// SaveEmployee inserts or replaces an employee.
	SaveEmployee(ctx context.Context, emp Employee) error

	ListEmployees(ctx context.Context) ([]Employee, error)
}

// RequestFilter narrows ListRequests. Zero values match everything.
type RequestFilter struct {
	EmployeeIDs []EmployeeID
	Statuses    []Status

	// Inclusive bounds on StartDate.
	StartFrom *time.Time
	StartTo   *time.Time
}

// Matches applies the filter to a single request. Store implementations
// without a query language use it directly.
func (f RequestFilter) Matches(r LeaveRequest) bool {
	if len(f.EmployeeIDs) > 0 {
		found := false
		for _, id := range f.EmployeeIDs {
			if id == r.EmployeeID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == r.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.StartFrom != nil && r.StartDate.Before(*f.StartFrom) {
		return false
	}
	if f.StartTo != nil && r.StartDate.After(*f.StartTo) {
		return false
	}
	return true
}

type RequestStore interface {
	// GetRequest returns ErrRequestNotFound when the ID is unknown.
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)

	// SaveRequest inserts or updates a request. There is no delete.
	SaveRequest(ctx context.Context, req LeaveRequest) error

	// ListRequests returns matching requests ordered by CreatedAt.
	ListRequests(ctx context.Context, filter RequestFilter) ([]LeaveRequest, error)
}

type AssignmentStore interface {
	// LeadFor returns the employee's current lead, if any.
	LeadFor(ctx context.Context, employeeID EmployeeID) (EmployeeID, bool, error)

	// MembersOf returns the employees assigned to a lead.
	MembersOf(ctx context.Context, leadID EmployeeID) ([]EmployeeID, error)

	// SaveAssignment replaces any previous lead of the employee.
	SaveAssignment(ctx context.Context, a TeamAssignment) error

	// DeleteAssignment removes the (lead, employee) pair. Returns false
	// when no such pair existed.
	DeleteAssignment(ctx context.Context, leadID, employeeID EmployeeID) (bool, error)
}

// =============================================================================
// AUDIT LOG - Separate from requests, tracks who did what when
// =============================================================================

type AuditEntry struct {
	ID         string
	At         time.Time
	ActorID    string
	Action     Action
	RequestID  RequestID
	EmployeeID EmployeeID
	FromStatus Status // empty for submissions
	ToStatus   Status
	Payload    map[string]any
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	AuditFor(ctx context.Context, requestID RequestID) ([]AuditEntry, error)
}

// =============================================================================
// PAYROLL STORE - Frozen month closes
// =============================================================================

type PayrollStore interface {
	SavePayrollClose(ctx context.Context, c PayrollClose) error

	// GetPayrollClose returns nil, nil when the month was never closed.
	GetPayrollClose(ctx context.Context, year int, month time.Month) (*PayrollClose, error)

	ListPayrollCloses(ctx context.Context) ([]PayrollClose, error)
}

// Store is everything the engine persists.
type Store interface {
	EmployeeStore
	RequestStore
	AssignmentStore
	AuditLog
	PayrollStore
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
