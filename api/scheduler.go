/*
scheduler.go - Automated payroll month close

PURPOSE:
  Periodically freezes the LOP statements of the month that just ended so
  payroll reads stable numbers without anyone calling POST /api/payroll/close.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each check closes the previous calendar month (UTC)
  - Months already closed are skipped; CloseMonth is idempotent anyway
  - Requests approved after the close do not change the frozen statements;
    MonthlyLOP still reports live numbers

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPayrollCloseScheduler(engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ClosePayrollMonth endpoint (manual close)
  - leave/payroll.go: CloseMonth
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// PayrollCloseScheduler closes the previous month on a timer.
type PayrollCloseScheduler struct {
	Engine        *leave.Engine
	CheckInterval time.Duration
	Enabled       bool

	// Now is the clock used to pick the month to close.
	Now func() time.Time

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayrollCloseScheduler creates a new scheduler.
func NewPayrollCloseScheduler(engine *leave.Engine, logger ...*zap.Logger) *PayrollCloseScheduler {
	l := zap.L().Named("payroll.scheduler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("payroll.scheduler")
	}
	return &PayrollCloseScheduler{
		Engine:        engine,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
		logger:        l,
	}
}

// Start begins the scheduler.
func (ps *PayrollCloseScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.logger.Info("disabled, not starting")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan struct{})
	ps.wg.Add(1)

	go ps.run()

	ps.logger.Info("started", zap.Duration("check_interval", ps.CheckInterval))
}

// Stop stops the scheduler and waits for a running check to finish.
func (ps *PayrollCloseScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		ps.logger.Info("stopped")
	}
}

func (ps *PayrollCloseScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.RunNow(context.Background())

	for {
		select {
		case <-ps.ticker.C:
			ps.RunNow(context.Background())
		case <-ps.stop:
			return
		}
	}
}

// RunNow closes the previous month if it is still open and returns the
// close, or nil when the month was already closed or the close failed.
func (ps *PayrollCloseScheduler) RunNow(ctx context.Context) *leave.PayrollClose {
	year, month := previousMonth(ps.Now())
	l := ps.logger.With(zap.Int("year", year), zap.String("month", month.String()))

	existing, err := ps.Engine.Store.GetPayrollClose(ctx, year, month)
	if err != nil {
		l.Error("failed to check payroll close", zap.Error(err))
		return nil
	}
	if existing != nil {
		l.Debug("month already closed", zap.String("close_id", existing.ID))
		return nil
	}

	pc, err := ps.Engine.CloseMonth(ctx, year, month)
	if err != nil {
		l.Error("failed to close payroll month", zap.Error(err))
		return nil
	}
	return pc
}

// previousMonth returns the calendar month before now's, in UTC.
func previousMonth(now time.Time) (int, time.Month) {
	first := leave.StartOfMonth(now.UTC().Year(), now.UTC().Month())
	prev := first.AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}
