package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestEngine(t *testing.T) (*leave.Engine, *store.TxMemory) {
	t.Helper()
	s := store.NewTxMemory()
	return leave.NewEngine(s), s
}

func date(year int, month time.Month, day int) time.Time {
	return leave.NewDate(year, month, day)
}

func addEmployee(t *testing.T, e *leave.Engine, id leave.EmployeeID, cpl, sl int) {
	t.Helper()
	_, err := e.UpsertEmployee(context.Background(), leave.EmployeeInput{
		ID:      id,
		Name:    "Employee " + string(id),
		Balance: leave.Balance{CPL: cpl, SL: sl},
	})
	require.NoError(t, err)
}

func assignLead(t *testing.T, e *leave.Engine, lead, member leave.EmployeeID) {
	t.Helper()
	require.NoError(t, e.AssignTeamLead(context.Background(), lead, member))
}

func submit(t *testing.T, e *leave.Engine, emp leave.EmployeeID, start, end time.Time, cpl, sl int) *leave.LeaveRequest {
	t.Helper()
	req, err := e.SubmitLeaveRequest(context.Background(), leave.SubmitInput{
		EmployeeID: emp,
		StartDate:  start,
		EndDate:    end,
		Reason:     "Personal",
		Requested:  leave.Allocation{CPL: cpl, SL: sl},
	})
	require.NoError(t, err)
	return req
}

func effective(t *testing.T, e *leave.Engine, emp leave.EmployeeID) leave.Balance {
	t.Helper()
	b, err := e.GetEffectiveBalance(context.Background(), emp)
	require.NoError(t, err)
	return b
}

func granted(t *testing.T, e *leave.Engine, emp leave.EmployeeID) leave.Balance {
	t.Helper()
	got, err := e.GetEmployee(context.Background(), emp)
	require.NoError(t, err)
	return got.Balance
}
