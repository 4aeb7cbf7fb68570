package api

import (
	"errors"
	"net/http"

	"github.com/warp/leave-engine/leave"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeInvalidState        = "INVALID_STATE"
	CodeForbidden           = "FORBIDDEN"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeInternal            = "INTERNAL_ERROR"
)

// APIError pairs an HTTP status with a stable code.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// classify maps a leave error to its HTTP rendering. Unknown errors are
// internal.
func classify(err error) APIError {
	switch {
	case errors.Is(err, leave.ErrEmployeeNotFound):
		return APIError{http.StatusNotFound, CodeNotFound, "Employee not found"}
	case errors.Is(err, leave.ErrRequestNotFound):
		return APIError{http.StatusNotFound, CodeNotFound, "Leave request not found"}

	case errors.Is(err, leave.ErrValidation):
		return APIError{http.StatusBadRequest, CodeInvalidInput, "Invalid input"}
	case errors.Is(err, leave.ErrAllocationExceedsTotal):
		return APIError{http.StatusBadRequest, CodeInvalidInput, "Allocation exceeds total days"}
	case errors.Is(err, leave.ErrInvalidAllocation):
		return APIError{http.StatusBadRequest, CodeInvalidInput, "Invalid allocation"}
	case errors.Is(err, leave.ErrInvalidAssignment):
		return APIError{http.StatusBadRequest, CodeInvalidInput, "Invalid team assignment"}

	case errors.Is(err, leave.ErrOverlap):
		return APIError{http.StatusConflict, CodeConflict, "Overlapping leave request exists"}
	case errors.Is(err, leave.ErrInvalidTransition):
		return APIError{http.StatusConflict, CodeInvalidState, "Action not allowed in current status"}
	case errors.Is(err, leave.ErrNotApproved):
		return APIError{http.StatusConflict, CodeInvalidState, "Leave request is not approved"}

	case errors.Is(err, leave.ErrNotTeamLead):
		return APIError{http.StatusForbidden, CodeForbidden, "Not the employee's team lead"}

	case errors.Is(err, leave.ErrInsufficientCPL):
		return APIError{http.StatusUnprocessableEntity, CodeInsufficientBalance, "Insufficient CPL balance"}
	case errors.Is(err, leave.ErrInsufficientSL):
		return APIError{http.StatusUnprocessableEntity, CodeInsufficientBalance, "Insufficient SL balance"}
	case errors.Is(err, leave.ErrInsufficientBalance):
		return APIError{http.StatusUnprocessableEntity, CodeInsufficientBalance, "Insufficient balance"}
	}
	return APIError{http.StatusInternalServerError, CodeInternal, "Internal server error"}
}
