package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return FromDB(db), mock
}

func date(y int, m time.Month, d int) time.Time { return leave.NewDate(y, m, d) }

// seedEmployees satisfies the foreign keys of requests and assignments.
func seedEmployees(t *testing.T, s *Store, ids ...leave.EmployeeID) {
	t.Helper()
	now := time.Now().UTC()
	for _, id := range ids {
		require.NoError(t, s.SaveEmployee(context.Background(), leave.Employee{
			ID: id, Name: string(id), CreatedAt: now, UpdatedAt: now,
		}))
	}
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestEmployees_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, time.January, 2, 9, 30, 0, 123456789, time.UTC)

	_, err := s.GetEmployee(ctx, "emp")
	require.ErrorIs(t, err, leave.ErrEmployeeNotFound)

	require.NoError(t, s.SaveEmployee(ctx, leave.Employee{
		ID: "emp", Name: "Asha", Balance: leave.Balance{CPL: 4, SL: 2},
		IsTeamLead: true, CreatedAt: created, UpdatedAt: created,
	}))
	require.NoError(t, s.SaveEmployee(ctx, leave.Employee{
		ID: "emp", Name: "Asha K", Balance: leave.Balance{CPL: 3, SL: 2},
		IsTeamLead: true, CreatedAt: created, UpdatedAt: created.Add(time.Hour),
	}))

	got, err := s.GetEmployee(ctx, "emp")
	require.NoError(t, err)
	assert.Equal(t, "Asha K", got.Name)
	assert.Equal(t, leave.Balance{CPL: 3, SL: 2}, got.Balance)
	assert.True(t, got.IsTeamLead)
	assert.True(t, created.Equal(got.CreatedAt), "created_at keeps nanoseconds")

	all, err := s.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEmployees_NegativeBalanceRejectedBySchema(t *testing.T) {
	s := newTestStore(t)

	err := s.SaveEmployee(context.Background(), leave.Employee{ID: "emp", Name: "x", Balance: leave.Balance{CPL: -1}})

	assert.Error(t, err)
}

func TestRequests_RoundTripAndFilter(t *testing.T) {
	// GIVEN: An approved request with breakup and lead, a pending one
	// WHEN: Read back by ID and by filter
	// THEN: All optional columns survive and filters match the memory store
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	lead := leave.EmployeeID("lead")
	hr := "hr-1"
	seedEmployees(t, s, "emp", "lead")

	approved := leave.LeaveRequest{
		ID: "r1", EmployeeID: "emp",
		StartDate: date(2025, time.March, 3), EndDate: date(2025, time.March, 7), TotalDays: 5,
		Reason: "Trip", Requested: leave.Allocation{CPL: 2, SL: 1}, Status: leave.StatusApproved,
		Breakup: &leave.Breakup{CPL: 2, SL: 1, LOP: 2}, TeamLeadID: &lead, DecidedBy: &hr,
		CreatedAt: now, UpdatedAt: now,
	}
	pending := leave.LeaveRequest{
		ID: "r2", EmployeeID: "emp",
		StartDate: date(2025, time.April, 1), EndDate: date(2025, time.April, 1), TotalDays: 1,
		Reason: "Doctor", Requested: leave.Allocation{SL: 1}, Status: leave.StatusPendingHR,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.SaveRequest(ctx, approved))
	require.NoError(t, s.SaveRequest(ctx, pending))

	got, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
	require.NotNil(t, got.Breakup)
	assert.Equal(t, leave.Breakup{CPL: 2, SL: 1, LOP: 2}, *got.Breakup)
	require.NotNil(t, got.TeamLeadID)
	assert.Equal(t, lead, *got.TeamLeadID)
	require.NotNil(t, got.DecidedBy)
	assert.Equal(t, hr, *got.DecidedBy)
	assert.True(t, approved.StartDate.Equal(got.StartDate))

	got, err = s.GetRequest(ctx, "r2")
	require.NoError(t, err)
	assert.Nil(t, got.Breakup)
	assert.Nil(t, got.TeamLeadID)
	assert.Nil(t, got.DecidedBy)

	_, err = s.GetRequest(ctx, "missing")
	assert.ErrorIs(t, err, leave.ErrRequestNotFound)

	all, err := s.ListRequests(ctx, leave.RequestFilter{EmployeeIDs: []leave.EmployeeID{"emp"}})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, leave.RequestID("r1"), all[0].ID, "same created_at falls back to insertion order")

	from, to := date(2025, time.March, 1), date(2025, time.March, 31)
	march, err := s.ListRequests(ctx, leave.RequestFilter{
		Statuses:  []leave.Status{leave.StatusApproved, leave.StatusRejected},
		StartFrom: &from,
		StartTo:   &to,
	})
	require.NoError(t, err)
	require.Len(t, march, 1)
	assert.Equal(t, leave.RequestID("r1"), march[0].ID)
}

func TestAssignments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedEmployees(t, s, "emp", "lead-a", "lead-b")

	require.NoError(t, s.SaveAssignment(ctx, leave.TeamAssignment{TeamLeadID: "lead-a", EmployeeID: "emp", AssignedAt: now}))
	require.NoError(t, s.SaveAssignment(ctx, leave.TeamAssignment{TeamLeadID: "lead-b", EmployeeID: "emp", AssignedAt: now}))

	lead, ok, err := s.LeadFor(ctx, "emp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, leave.EmployeeID("lead-b"), lead, "reassignment replaces the lead")

	members, err := s.MembersOf(ctx, "lead-a")
	require.NoError(t, err)
	assert.Empty(t, members)

	removed, err := s.DeleteAssignment(ctx, "lead-b", "emp")
	require.NoError(t, err)
	assert.True(t, removed)
	_, ok, err = s.LeadFor(ctx, "emp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAudit_PayloadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.AppendAudit(ctx, leave.AuditEntry{
		ID: "a1", At: at, ActorID: "emp", Action: leave.ActionSubmit,
		RequestID: "r1", EmployeeID: "emp", ToStatus: leave.StatusPendingHR,
	}))
	require.NoError(t, s.AppendAudit(ctx, leave.AuditEntry{
		ID: "a2", At: at, ActorID: "hr", Action: leave.ActionHRApprove,
		RequestID: "r1", EmployeeID: "emp", FromStatus: leave.StatusPendingHR, ToStatus: leave.StatusApproved,
		Payload: map[string]any{"cpl": 1, "sl": 0, "lop": 2},
	}))

	err := s.AppendAudit(ctx, leave.AuditEntry{ID: "a1", At: at, RequestID: "r1", ToStatus: leave.StatusPendingHR})
	require.ErrorIs(t, err, ErrDuplicate)

	trail, err := s.AuditFor(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, leave.Status(""), trail[0].FromStatus)
	assert.Nil(t, trail[0].Payload)
	assert.Equal(t, leave.ActionHRApprove, trail[1].Action)
	assert.Equal(t, float64(2), trail[1].Payload["lop"])
}

func TestPayrollCloses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	none, err := s.GetPayrollClose(ctx, 2025, time.February)
	require.NoError(t, err)
	assert.Nil(t, none)

	pc := leave.PayrollClose{
		ID: "c1", Year: 2025, Month: time.February, ClosedAt: time.Now().UTC(),
		Statements: []leave.LOPStatement{{
			EmployeeID: "emp", Year: 2025, Month: time.February, Days: 2,
			Fraction: decimal.RequireFromString("0.0714"), RequestIDs: []leave.RequestID{"r1"},
		}},
	}
	require.NoError(t, s.SavePayrollClose(ctx, pc))

	pc.ID = "c2"
	require.ErrorIs(t, s.SavePayrollClose(ctx, pc), ErrDuplicate, "one close per month")

	got, err := s.GetPayrollClose(ctx, 2025, time.February)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.ID)
	require.Len(t, got.Statements, 1)
	assert.True(t, got.Statements[0].Fraction.Equal(decimal.RequireFromString("0.0714")))
	assert.Equal(t, []leave.RequestID{"r1"}, got.Statements[0].RequestIDs)

	all, err := s.ListPayrollCloses(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEmployee(ctx, leave.Employee{ID: "emp", Name: "x", Balance: leave.Balance{CPL: 4}}))
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx leave.Store) error {
		emp, err := tx.GetEmployee(ctx, "emp")
		if err != nil {
			return err
		}
		emp.Balance.CPL = 1
		if err := tx.SaveEmployee(ctx, *emp); err != nil {
			return err
		}
		return boom
	})

	require.ErrorIs(t, err, boom)
	emp, err := s.GetEmployee(ctx, "emp")
	require.NoError(t, err)
	assert.Equal(t, 4, emp.Balance.CPL)
}

func TestWithTx_MockRollbackOnError(t *testing.T) {
	// GIVEN: A mocked database
	// WHEN: The callback writes and then fails
	// THEN: The transaction is rolled back, never committed
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO employees").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx leave.Store) error {
		if err := tx.SaveEmployee(ctx, leave.Employee{ID: "emp", Name: "x"}); err != nil {
			return err
		}
		return boom
	})

	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_MockCommit(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO leave_requests").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.WithTx(ctx, func(tx leave.Store) error {
		if err := tx.SaveRequest(ctx, leave.LeaveRequest{ID: "r1", EmployeeID: "emp", Status: leave.StatusPendingHR}); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, leave.AuditEntry{ID: "a1", RequestID: "r1", Action: leave.ActionSubmit, ToStatus: leave.StatusPendingHR})
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_MockBeginFails(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	called := false
	err := s.WithTx(context.Background(), func(leave.Store) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEmployee_MockNoRows(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name, cpl, sl").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "cpl", "sl", "is_team_lead", "created_at", "updated_at"}))

	_, err := s.GetEmployee(context.Background(), "ghost")

	require.ErrorIs(t, err, leave.ErrEmployeeNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// ENGINE ON SQLITE
// =============================================================================

func TestEngine_LifecycleOnSQLite(t *testing.T) {
	// GIVEN: The engine backed by SQLite
	// WHEN: Submit, lead approval, HR approval with LOP, month close
	// THEN: Same outcomes as the memory store
	s := newTestStore(t)
	e := leave.NewEngine(s)
	ctx := context.Background()

	_, err := e.UpsertEmployee(ctx, leave.EmployeeInput{ID: "lead", Name: "Lead"})
	require.NoError(t, err)
	_, err = e.UpsertEmployee(ctx, leave.EmployeeInput{ID: "emp", Name: "Emp", Balance: leave.Balance{CPL: 4, SL: 2}})
	require.NoError(t, err)
	require.NoError(t, e.AssignTeamLead(ctx, "lead", "emp"))

	req, err := e.SubmitLeaveRequest(ctx, leave.SubmitInput{
		EmployeeID: "emp", StartDate: date(2025, time.January, 10), EndDate: date(2025, time.January, 14),
		Reason: "Family", Requested: leave.Allocation{CPL: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPendingTL, req.Status)

	bal, err := e.GetEffectiveBalance(ctx, "emp")
	require.NoError(t, err)
	assert.Equal(t, leave.Balance{CPL: 1, SL: 2}, bal)

	_, err = e.ApproveAsTeamLead(ctx, req.ID, "lead")
	require.NoError(t, err)
	approved, err := e.ApproveAsHR(ctx, req.ID, "hr", leave.Allocation{CPL: 2, SL: 1})
	require.NoError(t, err)
	assert.Equal(t, leave.Breakup{CPL: 2, SL: 1, LOP: 2}, *approved.Breakup)

	_, err = e.ApproveAsHR(ctx, req.ID, "hr", leave.Allocation{CPL: 2, SL: 1})
	require.ErrorIs(t, err, leave.ErrInvalidTransition)

	emp, err := e.GetEmployee(ctx, "emp")
	require.NoError(t, err)
	assert.Equal(t, leave.Balance{CPL: 2, SL: 1}, emp.Balance)

	pc, err := e.CloseMonth(ctx, 2025, time.January)
	require.NoError(t, err)
	require.Len(t, pc.Statements, 1)
	assert.Equal(t, 2, pc.Statements[0].Days)

	trail, err := e.AuditTrail(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 3)
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEmployee(ctx, leave.Employee{ID: "emp", Name: "x"}))

	require.NoError(t, s.Reset(ctx))

	all, err := s.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
