package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

func TestPreviousMonth(t *testing.T) {
	tests := []struct {
		now   time.Time
		year  int
		month time.Month
	}{
		{time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC), 2025, time.February},
		{time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 2024, time.December},
		{time.Date(2025, time.March, 31, 23, 59, 0, 0, time.UTC), 2025, time.February},
	}

	for _, tt := range tests {
		year, month := previousMonth(tt.now)
		assert.Equal(t, tt.year, year, tt.now.String())
		assert.Equal(t, tt.month, month, tt.now.String())
	}
}

func TestPayrollCloseScheduler_ClosesPreviousMonthOnce(t *testing.T) {
	// GIVEN: An approved February request with LOP and a clock in March
	// WHEN: RunNow is called twice
	// THEN: February is closed by the first call, the second is a no-op
	engine := leave.NewEngine(store.NewTxMemory(), zap.NewNop())
	ctx := context.Background()
	_, err := engine.UpsertEmployee(ctx, leave.EmployeeInput{ID: "emp", Name: "Emp"})
	require.NoError(t, err)
	req, err := engine.SubmitLeaveRequest(ctx, leave.SubmitInput{
		EmployeeID: "emp",
		StartDate:  leave.NewDate(2025, time.February, 3),
		EndDate:    leave.NewDate(2025, time.February, 4),
		Reason:     "x",
	})
	require.NoError(t, err)
	_, err = engine.ApproveAsHR(ctx, req.ID, "hr", leave.Allocation{})
	require.NoError(t, err)

	ps := NewPayrollCloseScheduler(engine, zap.NewNop())
	ps.Now = func() time.Time { return time.Date(2025, time.March, 2, 8, 0, 0, 0, time.UTC) }

	pc := ps.RunNow(ctx)
	require.NotNil(t, pc)
	assert.Equal(t, 2025, pc.Year)
	assert.Equal(t, time.February, pc.Month)
	require.Len(t, pc.Statements, 1)
	assert.Equal(t, 2, pc.Statements[0].Days)

	assert.Nil(t, ps.RunNow(ctx))

	closes, err := engine.ListPayrollCloses(ctx)
	require.NoError(t, err)
	assert.Len(t, closes, 1)
}

func TestPayrollCloseScheduler_StartStop(t *testing.T) {
	engine := leave.NewEngine(store.NewTxMemory(), zap.NewNop())
	ps := NewPayrollCloseScheduler(engine, zap.NewNop())
	ps.CheckInterval = 10 * time.Millisecond
	ps.Now = func() time.Time { return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC) }

	ps.Start()
	ps.Start()
	require.Eventually(t, func() bool {
		pc, err := engine.Store.GetPayrollClose(context.Background(), 2025, time.May)
		return err == nil && pc != nil
	}, time.Second, 5*time.Millisecond)
	ps.Stop()
	ps.Stop()

	// Restart after stop
	ps.Start()
	ps.Stop()
}

func TestPayrollCloseScheduler_Disabled(t *testing.T) {
	engine := leave.NewEngine(store.NewTxMemory(), zap.NewNop())
	ps := NewPayrollCloseScheduler(engine, zap.NewNop())
	ps.Enabled = false
	ps.Now = func() time.Time { return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC) }

	ps.Start()
	ps.Stop()

	closes, err := engine.ListPayrollCloses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, closes)
}
