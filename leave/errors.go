/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error kinds in one place. Every error here is a recoverable,
  caller-facing outcome; none of them is fatal to the service. Structured
  errors carry context and unwrap to a sentinel so callers can branch with
  errors.Is.

ERROR CATEGORIES:
  1. Submission errors - bad input, overlap, insufficient effective balance
  2. Decision errors   - invalid allocation, invalid transition, debit failure
  3. Lookup errors     - unknown employee or request

RETRIES:
  None of these succeed on an unchanged retry. Balance and overlap outcomes
  depend on state; the caller has to change the input.

SEE ALSO:
  - validator.go: Submission errors
  - workflow.go:  Decision errors
  - api/errors.go: HTTP mapping
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation covers malformed input: bad date range, empty reason,
	// negative day counts.
	ErrValidation = errors.New("validation failed")

	// ErrOverlap is returned when a live request of the same employee
	// intersects the requested range.
	ErrOverlap = errors.New("overlapping leave request exists")

	ErrInsufficientCPL = errors.New("insufficient CPL balance")
	ErrInsufficientSL  = errors.New("insufficient SL balance")

	// ErrAllocationExceedsTotal is returned at submission when the
	// requested CPL+SL is larger than the number of days asked for.
	ErrAllocationExceedsTotal = errors.New("allocation exceeds total days")

	// ErrInvalidAllocation is returned at HR approval when the final split
	// is negative or larger than the request.
	ErrInvalidAllocation = errors.New("invalid allocation")

	// ErrInsufficientBalance is returned when the ledger debit at final
	// approval would drive a counter below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidTransition is returned when an action does not match the
	// request's current status. The request is left untouched.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotTeamLead is returned when a team-lead action comes from someone
	// who is not the employee's assigned lead.
	ErrNotTeamLead = errors.New("actor is not the employee's team lead")

	ErrEmployeeNotFound = errors.New("employee not found")
	ErrRequestNotFound  = errors.New("leave request not found")

	// ErrNotApproved is returned by the payroll feed for requests that have
	// no final breakup yet.
	ErrNotApproved = errors.New("leave request is not approved")

	ErrInvalidAssignment = errors.New("invalid team assignment")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientBalanceError is raised by the ledger debit.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Available  Balance
	Requested  Allocation
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available CPL=%d SL=%d, requested CPL=%d SL=%d",
		e.EmployeeID, e.Available.CPL, e.Available.SL, e.Requested.CPL, e.Requested.SL)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// TransitionError records the action that was refused and the status the
// request was in.
type TransitionError struct {
	RequestID RequestID
	Action    Action
	From      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s request %s in status %s", e.Action, e.RequestID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to caller input or state
// the caller has to correct.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrInsufficientCPL) ||
		errors.Is(err, ErrInsufficientSL) ||
		errors.Is(err, ErrAllocationExceedsTotal) ||
		errors.Is(err, ErrInvalidAllocation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotTeamLead) ||
		errors.Is(err, ErrNotApproved) ||
		errors.Is(err, ErrInvalidAssignment)
}

// IsNotFound returns true if the error indicates a missing employee or request.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}

// IsConflict returns true for errors caused by the current state of other
// requests or of the request itself.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrInvalidTransition)
}
