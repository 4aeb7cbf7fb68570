/*
Package sqlite provides a SQLite-backed implementation of leave.TxStore.

PURPOSE:
  Durable storage for employees, leave requests, team assignments, the
  audit log and payroll month closes. The in-memory store in
  leave/store is the reference behaviour; this one must match it.

KEY TABLES:
  employees:        Permanent CPL/SL balance per employee
  leave_requests:   Every request ever submitted (no DELETE)
  team_assignments: One row per member; member -> lead
  audit_log:        Append-only transition history
  payroll_closes:   Frozen LOP statements, one row per month

  Dates are stored as TEXT "YYYY-MM-DD", timestamps as fixed-width UTC
  text so that lexical order is chronological order.

INDEXES:
  - idx_leave_requests_employee_status: Effective balance and overlap (hot path)
  - idx_leave_requests_status:          HR queue
  - idx_team_assignments_lead:          Team-lead queue

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction; the Store handed to the callback runs on the sql.Tx
  without touching the mutex again.

  The pool is capped at one connection so that ":memory:" databases are
  shared by every query.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := leave.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/leave-engine/leave"
)

// timestampLayout is fixed width so TEXT comparison orders correctly.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// Store implements leave.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := FromDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// FromDB wraps an already open handle. The schema is not migrated.
func FromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cpl INTEGER NOT NULL DEFAULT 0 CHECK (cpl >= 0),
		sl INTEGER NOT NULL DEFAULT 0 CHECK (sl >= 0),
		is_team_lead BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Leave requests are never deleted; decisions only move the status.
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_days INTEGER NOT NULL,
		reason TEXT NOT NULL,
		requested_cpl INTEGER NOT NULL DEFAULT 0,
		requested_sl INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		breakup_cpl INTEGER,
		breakup_sl INTEGER,
		breakup_lop INTEGER,
		team_lead_id TEXT,
		decided_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee_status
		ON leave_requests(employee_id, status);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_start
		ON leave_requests(start_date);

	-- At most one lead per member.
	CREATE TABLE IF NOT EXISTS team_assignments (
		employee_id TEXT PRIMARY KEY REFERENCES employees(id),
		team_lead_id TEXT NOT NULL REFERENCES employees(id),
		assigned_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_team_assignments_lead
		ON team_assignments(team_lead_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		request_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		from_status TEXT,
		to_status TEXT NOT NULL,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_request
		ON audit_log(request_id);

	CREATE TABLE IF NOT EXISTS payroll_closes (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		statements_json TEXT NOT NULL,
		closed_at TEXT NOT NULL,
		UNIQUE(year, month)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOCKED ENTRY POINTS (leave.Store interface)
// =============================================================================

func (s *Store) read() queries {
	return queries{db: s.db}
}

func (s *Store) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetEmployee(ctx, id)
}

func (s *Store) SaveEmployee(ctx context.Context, emp leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SaveEmployee(ctx, emp)
}

func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListEmployees(ctx)
}

func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetRequest(ctx, id)
}

func (s *Store) SaveRequest(ctx context.Context, req leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SaveRequest(ctx, req)
}

func (s *Store) ListRequests(ctx context.Context, filter leave.RequestFilter) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListRequests(ctx, filter)
}

func (s *Store) LeadFor(ctx context.Context, employeeID leave.EmployeeID) (leave.EmployeeID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().LeadFor(ctx, employeeID)
}

func (s *Store) MembersOf(ctx context.Context, leadID leave.EmployeeID) ([]leave.EmployeeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().MembersOf(ctx, leadID)
}

func (s *Store) SaveAssignment(ctx context.Context, a leave.TeamAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SaveAssignment(ctx, a)
}

func (s *Store) DeleteAssignment(ctx context.Context, leadID, employeeID leave.EmployeeID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().DeleteAssignment(ctx, leadID, employeeID)
}

func (s *Store) AppendAudit(ctx context.Context, entry leave.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().AppendAudit(ctx, entry)
}

func (s *Store) AuditFor(ctx context.Context, requestID leave.RequestID) ([]leave.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().AuditFor(ctx, requestID)
}

func (s *Store) SavePayrollClose(ctx context.Context, c leave.PayrollClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SavePayrollClose(ctx, c)
}

func (s *Store) GetPayrollClose(ctx context.Context, year int, month time.Month) (*leave.PayrollClose, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetPayrollClose(ctx, year, month)
}

func (s *Store) ListPayrollCloses(ctx context.Context) ([]leave.PayrollClose, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListPayrollCloses(ctx)
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{db: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"audit_log", "payroll_closes", "team_assignments", "leave_requests", "employees"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// QUERIES - Run on *sql.DB or *sql.Tx, never lock
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements leave.Store on top of a querier.
type queries struct {
	db querier
}

// --- employees ---

func (q queries) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, cpl, sl, is_team_lead, created_at, updated_at
		FROM employees WHERE id = ?`, id)

	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, leave.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &emp, nil
}

func (q queries) SaveEmployee(ctx context.Context, emp leave.Employee) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, cpl, sl, is_team_lead, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			cpl = excluded.cpl,
			sl = excluded.sl,
			is_team_lead = excluded.is_team_lead,
			updated_at = excluded.updated_at`,
		emp.ID, emp.Name, emp.Balance.CPL, emp.Balance.SL, emp.IsTeamLead,
		formatTimestamp(emp.CreatedAt), formatTimestamp(emp.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (q queries) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, cpl, sl, is_team_lead, created_at, updated_at
		FROM employees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	out := make([]leave.Employee, 0)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (leave.Employee, error) {
	var (
		emp                  leave.Employee
		createdAt, updatedAt string
	)
	if err := row.Scan(&emp.ID, &emp.Name, &emp.Balance.CPL, &emp.Balance.SL, &emp.IsTeamLead, &createdAt, &updatedAt); err != nil {
		return leave.Employee{}, err
	}
	emp.CreatedAt = parseTimestamp(createdAt)
	emp.UpdatedAt = parseTimestamp(updatedAt)
	return emp, nil
}

// --- leave requests ---

const requestColumns = `
	id, employee_id, start_date, end_date, total_days, reason,
	requested_cpl, requested_sl, status,
	breakup_cpl, breakup_sl, breakup_lop,
	team_lead_id, decided_by, created_at, updated_at`

func (q queries) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)

	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, leave.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leave request: %w", err)
	}
	return &req, nil
}

// SaveRequest upserts; the rowid of an existing request is kept so the
// insertion order used as a tie-breaker does not change.
func (q queries) SaveRequest(ctx context.Context, r leave.LeaveRequest) error {
	var bCPL, bSL, bLOP sql.NullInt64
	if r.Breakup != nil {
		bCPL = sql.NullInt64{Int64: int64(r.Breakup.CPL), Valid: true}
		bSL = sql.NullInt64{Int64: int64(r.Breakup.SL), Valid: true}
		bLOP = sql.NullInt64{Int64: int64(r.Breakup.LOP), Valid: true}
	}
	var lead, decidedBy sql.NullString
	if r.TeamLeadID != nil {
		lead = nullString(string(*r.TeamLeadID))
	}
	if r.DecidedBy != nil {
		decidedBy = nullString(*r.DecidedBy)
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO leave_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			breakup_cpl = excluded.breakup_cpl,
			breakup_sl = excluded.breakup_sl,
			breakup_lop = excluded.breakup_lop,
			team_lead_id = excluded.team_lead_id,
			decided_by = excluded.decided_by,
			updated_at = excluded.updated_at`,
		r.ID, r.EmployeeID,
		r.StartDate.Format(leave.DateLayout), r.EndDate.Format(leave.DateLayout),
		r.TotalDays, r.Reason,
		r.Requested.CPL, r.Requested.SL, r.Status,
		bCPL, bSL, bLOP,
		lead, decidedBy,
		formatTimestamp(r.CreatedAt), formatTimestamp(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save leave request: %w", err)
	}
	return nil
}

func (q queries) ListRequests(ctx context.Context, filter leave.RequestFilter) ([]leave.LeaveRequest, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.EmployeeIDs) > 0 {
		where = append(where, "employee_id IN ("+placeholders(len(filter.EmployeeIDs))+")")
		for _, id := range filter.EmployeeIDs {
			args = append(args, id)
		}
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, st)
		}
	}
	if filter.StartFrom != nil {
		where = append(where, "start_date >= ?")
		args = append(args, filter.StartFrom.Format(leave.DateLayout))
	}
	if filter.StartTo != nil {
		where = append(where, "start_date <= ?")
		args = append(args, filter.StartTo.Format(leave.DateLayout))
	}

	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	out := make([]leave.LeaveRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRequest(row scanner) (leave.LeaveRequest, error) {
	var (
		r                    leave.LeaveRequest
		start, end           string
		bCPL, bSL, bLOP      sql.NullInt64
		lead, decidedBy      sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&r.ID, &r.EmployeeID, &start, &end, &r.TotalDays, &r.Reason,
		&r.Requested.CPL, &r.Requested.SL, &r.Status,
		&bCPL, &bSL, &bLOP,
		&lead, &decidedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return leave.LeaveRequest{}, err
	}

	if r.StartDate, err = leave.ParseDate(start); err != nil {
		return leave.LeaveRequest{}, err
	}
	if r.EndDate, err = leave.ParseDate(end); err != nil {
		return leave.LeaveRequest{}, err
	}
	if bCPL.Valid {
		r.Breakup = &leave.Breakup{CPL: int(bCPL.Int64), SL: int(bSL.Int64), LOP: int(bLOP.Int64)}
	}
	if lead.Valid {
		id := leave.EmployeeID(lead.String)
		r.TeamLeadID = &id
	}
	if decidedBy.Valid {
		by := decidedBy.String
		r.DecidedBy = &by
	}
	r.CreatedAt = parseTimestamp(createdAt)
	r.UpdatedAt = parseTimestamp(updatedAt)
	return r, nil
}

// --- team assignments ---

func (q queries) LeadFor(ctx context.Context, employeeID leave.EmployeeID) (leave.EmployeeID, bool, error) {
	var lead string
	err := q.db.QueryRowContext(ctx,
		`SELECT team_lead_id FROM team_assignments WHERE employee_id = ?`, employeeID,
	).Scan(&lead)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get team lead: %w", err)
	}
	return leave.EmployeeID(lead), true, nil
}

func (q queries) MembersOf(ctx context.Context, leadID leave.EmployeeID) ([]leave.EmployeeID, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT employee_id FROM team_assignments WHERE team_lead_id = ? ORDER BY employee_id`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	out := make([]leave.EmployeeID, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, leave.EmployeeID(id))
	}
	return out, rows.Err()
}

func (q queries) SaveAssignment(ctx context.Context, a leave.TeamAssignment) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO team_assignments (employee_id, team_lead_id, assigned_at)
		VALUES (?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			team_lead_id = excluded.team_lead_id,
			assigned_at = excluded.assigned_at`,
		a.EmployeeID, a.TeamLeadID, formatTimestamp(a.AssignedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save team assignment: %w", err)
	}
	return nil
}

func (q queries) DeleteAssignment(ctx context.Context, leadID, employeeID leave.EmployeeID) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM team_assignments WHERE employee_id = ? AND team_lead_id = ?`, employeeID, leadID)
	if err != nil {
		return false, fmt.Errorf("failed to delete team assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- audit ---

func (q queries) AppendAudit(ctx context.Context, e leave.AuditEntry) error {
	var payload sql.NullString
	if len(e.Payload) > 0 {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode audit payload: %w", err)
		}
		payload = nullString(string(b))
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, actor_id, action, request_id, employee_id, from_status, to_status, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, formatTimestamp(e.At), e.ActorID, e.Action, e.RequestID, e.EmployeeID,
		nullString(string(e.FromStatus)), e.ToStatus, payload,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: audit entry %s", ErrDuplicate, e.ID)
		}
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// AuditFor decodes payload numbers as float64, as encoding/json does.
func (q queries) AuditFor(ctx context.Context, requestID leave.RequestID) ([]leave.AuditEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, at, actor_id, action, request_id, employee_id, from_status, to_status, payload_json
		FROM audit_log WHERE request_id = ?
		ORDER BY at ASC, rowid ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	out := make([]leave.AuditEntry, 0)
	for rows.Next() {
		var (
			e             leave.AuditEntry
			at            string
			from, payload sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &e.ActorID, &e.Action, &e.RequestID, &e.EmployeeID, &from, &e.ToStatus, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.At = parseTimestamp(at)
		e.FromStatus = leave.Status(from.String)
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode audit payload: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- payroll closes ---

func (q queries) SavePayrollClose(ctx context.Context, c leave.PayrollClose) error {
	statements, err := json.Marshal(c.Statements)
	if err != nil {
		return fmt.Errorf("failed to encode statements: %w", err)
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO payroll_closes (id, year, month, statements_json, closed_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Year, int(c.Month), string(statements), formatTimestamp(c.ClosedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: payroll close %d-%02d", ErrDuplicate, c.Year, c.Month)
		}
		return fmt.Errorf("failed to save payroll close: %w", err)
	}
	return nil
}

func (q queries) GetPayrollClose(ctx context.Context, year int, month time.Month) (*leave.PayrollClose, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, year, month, statements_json, closed_at
		FROM payroll_closes WHERE year = ? AND month = ?`, year, int(month))

	c, err := scanClose(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payroll close: %w", err)
	}
	return &c, nil
}

func (q queries) ListPayrollCloses(ctx context.Context) ([]leave.PayrollClose, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, year, month, statements_json, closed_at
		FROM payroll_closes ORDER BY year ASC, month ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll closes: %w", err)
	}
	defer rows.Close()

	out := make([]leave.PayrollClose, 0)
	for rows.Next() {
		c, err := scanClose(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll close: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanClose(row scanner) (leave.PayrollClose, error) {
	var (
		c                    leave.PayrollClose
		month                int
		statements, closedAt string
	)
	if err := row.Scan(&c.ID, &c.Year, &month, &statements, &closedAt); err != nil {
		return leave.PayrollClose{}, err
	}
	c.Month = time.Month(month)
	c.ClosedAt = parseTimestamp(closedAt)
	if err := json.Unmarshal([]byte(statements), &c.Statements); err != nil {
		return leave.PayrollClose{}, fmt.Errorf("failed to decode statements: %w", err)
	}
	return c, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
