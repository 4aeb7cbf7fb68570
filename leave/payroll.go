/*
payroll.go - Read-only LOP feed for salary computation

PURPOSE:
  Payroll never looks at leave requests directly. It asks this feed how many
  loss-of-pay days an employee has for a month, or for one approved request.
  Only APPROVED requests carry a breakup, so only they contribute.

MONTH ATTRIBUTION:
  A request counts toward the month of its StartDate. A request that runs
  from Jan 30 to Feb 2 contributes all of its LOP to January.

FRACTION:
  Statements carry Fraction = LOP days / calendar days of the month,
  rounded to 4 places with decimal arithmetic. Payroll multiplies it by the
  monthly salary; this package does not know about money.

MONTH CLOSE:
  CloseMonth freezes the statements of a month so later queries by payroll
  read the same numbers even if more requests get approved afterwards.
  Closing a month twice returns the first close.

SEE ALSO:
  - api/scheduler.go: Closes the previous month periodically
*/
package leave

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LOPStatement is one employee's loss of pay for one month.
type LOPStatement struct {
	EmployeeID EmployeeID      `json:"employee_id"`
	Year       int             `json:"year"`
	Month      time.Month      `json:"month"`
	Days       int             `json:"days"`
	Fraction   decimal.Decimal `json:"fraction"`
	RequestIDs []RequestID     `json:"request_ids"`
}

// PayrollClose is a frozen set of statements for a month.
type PayrollClose struct {
	ID         string
	Year       int
	Month      time.Month
	Statements []LOPStatement
	ClosedAt   time.Time
}

type PayrollLOPFeed struct {
	Store Store
}

func NewPayrollLOPFeed(store Store) *PayrollLOPFeed {
	return &PayrollLOPFeed{Store: store}
}

// LOPForRequest returns the LOP days of an approved request.
func (f *PayrollLOPFeed) LOPForRequest(ctx context.Context, id RequestID) (int, error) {
	req, err := f.Store.GetRequest(ctx, id)
	if err != nil {
		return 0, err
	}
	if req.Status != StatusApproved || req.Breakup == nil {
		return 0, fmt.Errorf("%w: %s is %s", ErrNotApproved, id, req.Status)
	}
	return req.Breakup.LOP, nil
}

// MonthlyLOP sums the LOP of the employee's approved requests starting in
// the given month.
func (f *PayrollLOPFeed) MonthlyLOP(ctx context.Context, employeeID EmployeeID, year int, month time.Month) (LOPStatement, error) {
	if _, err := f.Store.GetEmployee(ctx, employeeID); err != nil {
		return LOPStatement{}, err
	}

	statements, err := f.statements(ctx, []EmployeeID{employeeID}, year, month)
	if err != nil {
		return LOPStatement{}, err
	}
	if s, ok := statements[employeeID]; ok {
		return s, nil
	}
	return LOPStatement{
		EmployeeID: employeeID,
		Year:       year,
		Month:      month,
		Fraction:   decimal.Zero,
		RequestIDs: []RequestID{},
	}, nil
}

// CloseMonth freezes the month's statements. Employees with no approved
// leave in the month get no statement.
func (f *PayrollLOPFeed) CloseMonth(ctx context.Context, year int, month time.Month) (*PayrollClose, error) {
	existing, err := f.Store.GetPayrollClose(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to load payroll close: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	byEmployee, err := f.statements(ctx, nil, year, month)
	if err != nil {
		return nil, err
	}

	pc := PayrollClose{
		ID:         uuid.NewString(),
		Year:       year,
		Month:      month,
		Statements: make([]LOPStatement, 0, len(byEmployee)),
		ClosedAt:   time.Now().UTC(),
	}
	for _, s := range byEmployee {
		pc.Statements = append(pc.Statements, s)
	}
	sort.Slice(pc.Statements, func(i, j int) bool {
		return pc.Statements[i].EmployeeID < pc.Statements[j].EmployeeID
	})

	if err := f.Store.SavePayrollClose(ctx, pc); err != nil {
		return nil, fmt.Errorf("failed to save payroll close: %w", err)
	}
	return &pc, nil
}

func (f *PayrollLOPFeed) statements(ctx context.Context, employees []EmployeeID, year int, month time.Month) (map[EmployeeID]LOPStatement, error) {
	from, to := StartOfMonth(year, month), EndOfMonth(year, month)
	approved, err := f.Store.ListRequests(ctx, RequestFilter{
		EmployeeIDs: employees,
		Statuses:    []Status{StatusApproved},
		StartFrom:   &from,
		StartTo:     &to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load approved requests: %w", err)
	}

	out := make(map[EmployeeID]LOPStatement)
	for _, r := range approved {
		if r.Breakup == nil {
			continue
		}
		s, ok := out[r.EmployeeID]
		if !ok {
			s = LOPStatement{EmployeeID: r.EmployeeID, Year: year, Month: month, RequestIDs: []RequestID{}}
		}
		s.Days += r.Breakup.LOP
		s.RequestIDs = append(s.RequestIDs, r.ID)
		out[r.EmployeeID] = s
	}

	monthDays := decimal.NewFromInt(int64(DaysInMonth(year, month)))
	for id, s := range out {
		s.Fraction = decimal.NewFromInt(int64(s.Days)).Div(monthDays).Round(4)
		out[id] = s
	}
	return out, nil
}
