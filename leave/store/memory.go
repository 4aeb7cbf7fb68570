// Package store provides in-process Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	memoryState
}

type memoryState struct {
	employees  map[leave.EmployeeID]leave.Employee
	requests   map[leave.RequestID]leave.LeaveRequest
	leads      map[leave.EmployeeID]leave.TeamAssignment // keyed by member
	audit      []leave.AuditEntry
	closes     map[closeKey]leave.PayrollClose
	requestSeq map[leave.RequestID]int
	nextSeq    int
}

type closeKey struct {
	Year  int
	Month time.Month
}

func NewMemory() *Memory {
	return &Memory{memoryState: newMemoryState()}
}

func newMemoryState() memoryState {
	return memoryState{
		employees:  make(map[leave.EmployeeID]leave.Employee),
		requests:   make(map[leave.RequestID]leave.LeaveRequest),
		leads:      make(map[leave.EmployeeID]leave.TeamAssignment),
		closes:     make(map[closeKey]leave.PayrollClose),
		requestSeq: make(map[leave.RequestID]int),
	}
}

// --- employees ---

func (m *Memory) GetEmployee(_ context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEmployee(id)
}

func (m *Memory) SaveEmployee(_ context.Context, emp leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveEmployee(emp)
	return nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEmployees(), nil
}

// --- requests ---

func (m *Memory) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequest(id)
}

func (m *Memory) SaveRequest(_ context.Context, req leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveRequest(req)
	return nil
}

func (m *Memory) ListRequests(_ context.Context, filter leave.RequestFilter) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRequests(filter), nil
}

// --- assignments ---

func (m *Memory) LeadFor(_ context.Context, employeeID leave.EmployeeID) (leave.EmployeeID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.leadFor(employeeID)
	return lead, ok, nil
}

func (m *Memory) MembersOf(_ context.Context, leadID leave.EmployeeID) ([]leave.EmployeeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.membersOf(leadID), nil
}

func (m *Memory) SaveAssignment(_ context.Context, a leave.TeamAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[a.EmployeeID] = a
	return nil
}

func (m *Memory) DeleteAssignment(_ context.Context, leadID, employeeID leave.EmployeeID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteAssignment(leadID, employeeID), nil
}

// --- audit ---

func (m *Memory) AppendAudit(_ context.Context, entry leave.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, copyAudit(entry))
	return nil
}

func (m *Memory) AuditFor(_ context.Context, requestID leave.RequestID) ([]leave.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.auditFor(requestID), nil
}

// --- payroll ---

func (m *Memory) SavePayrollClose(_ context.Context, c leave.PayrollClose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes[closeKey{c.Year, c.Month}] = copyClose(c)
	return nil
}

func (m *Memory) GetPayrollClose(_ context.Context, year int, month time.Month) (*leave.PayrollClose, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPayrollClose(year, month), nil
}

func (m *Memory) ListPayrollCloses(_ context.Context) ([]leave.PayrollClose, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPayrollCloses(), nil
}

// =============================================================================
// STATE HELPERS - Callers hold the lock
// =============================================================================

func (s *memoryState) getEmployee(id leave.EmployeeID) (*leave.Employee, error) {
	emp, ok := s.employees[id]
	if !ok {
		return nil, leave.ErrEmployeeNotFound
	}
	return &emp, nil
}

func (s *memoryState) saveEmployee(emp leave.Employee) {
	s.employees[emp.ID] = emp
}

func (s *memoryState) listEmployees() []leave.Employee {
	out := make([]leave.Employee, 0, len(s.employees))
	for _, emp := range s.employees {
		out = append(out, emp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryState) getRequest(id leave.RequestID) (*leave.LeaveRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, leave.ErrRequestNotFound
	}
	req = copyRequest(req)
	return &req, nil
}

func (s *memoryState) saveRequest(req leave.LeaveRequest) {
	if _, ok := s.requestSeq[req.ID]; !ok {
		s.nextSeq++
		s.requestSeq[req.ID] = s.nextSeq
	}
	s.requests[req.ID] = copyRequest(req)
}

// listRequests orders by CreatedAt, then by insertion order for requests
// created within the same clock tick.
func (s *memoryState) listRequests(filter leave.RequestFilter) []leave.LeaveRequest {
	out := make([]leave.LeaveRequest, 0)
	for _, r := range s.requests {
		if filter.Matches(r) {
			out = append(out, copyRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return s.requestSeq[out[i].ID] < s.requestSeq[out[j].ID]
	})
	return out
}

func (s *memoryState) leadFor(employeeID leave.EmployeeID) (leave.EmployeeID, bool) {
	a, ok := s.leads[employeeID]
	return a.TeamLeadID, ok
}

func (s *memoryState) membersOf(leadID leave.EmployeeID) []leave.EmployeeID {
	out := make([]leave.EmployeeID, 0)
	for member, a := range s.leads {
		if a.TeamLeadID == leadID {
			out = append(out, member)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *memoryState) deleteAssignment(leadID, employeeID leave.EmployeeID) bool {
	a, ok := s.leads[employeeID]
	if !ok || a.TeamLeadID != leadID {
		return false
	}
	delete(s.leads, employeeID)
	return true
}

func (s *memoryState) auditFor(requestID leave.RequestID) []leave.AuditEntry {
	out := make([]leave.AuditEntry, 0)
	for _, e := range s.audit {
		if e.RequestID == requestID {
			out = append(out, copyAudit(e))
		}
	}
	return out
}

func (s *memoryState) getPayrollClose(year int, month time.Month) *leave.PayrollClose {
	c, ok := s.closes[closeKey{year, month}]
	if !ok {
		return nil
	}
	c = copyClose(c)
	return &c
}

func (s *memoryState) listPayrollCloses() []leave.PayrollClose {
	out := make([]leave.PayrollClose, 0, len(s.closes))
	for _, c := range s.closes {
		out = append(out, copyClose(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// clone deep-copies the state for snapshots.
func (s *memoryState) clone() memoryState {
	c := newMemoryState()
	for k, v := range s.employees {
		c.employees[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = copyRequest(v)
	}
	for k, v := range s.leads {
		c.leads[k] = v
	}
	c.audit = make([]leave.AuditEntry, len(s.audit))
	copy(c.audit, s.audit)
	for k, v := range s.closes {
		c.closes[k] = copyClose(v)
	}
	for k, v := range s.requestSeq {
		c.requestSeq[k] = v
	}
	c.nextSeq = s.nextSeq
	return c
}

// =============================================================================
// COPY HELPERS - Callers never share memory with the store
// =============================================================================

func copyRequest(r leave.LeaveRequest) leave.LeaveRequest {
	if r.Breakup != nil {
		b := *r.Breakup
		r.Breakup = &b
	}
	if r.TeamLeadID != nil {
		id := *r.TeamLeadID
		r.TeamLeadID = &id
	}
	if r.DecidedBy != nil {
		by := *r.DecidedBy
		r.DecidedBy = &by
	}
	return r
}

func copyAudit(e leave.AuditEntry) leave.AuditEntry {
	if e.Payload != nil {
		p := make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			p[k] = v
		}
		e.Payload = p
	}
	return e
}

func copyClose(c leave.PayrollClose) leave.PayrollClose {
	statements := make([]leave.LOPStatement, len(c.Statements))
	for i, s := range c.Statements {
		s.RequestIDs = append([]leave.RequestID{}, s.RequestIDs...)
		statements[i] = s
	}
	c.Statements = statements
	return c
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The store's write lock is held for the whole of fn.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.memoryState.clone()

	if err := fn(&txMemoryView{state: &tm.memoryState}); err != nil {
		tm.memoryState = snapshot
		return err
	}
	return nil
}

// txMemoryView is the Store handed to WithTx callbacks. It works on the
// parent's state directly; the parent's lock is already held.
type txMemoryView struct {
	state *memoryState
}

func (tv *txMemoryView) GetEmployee(_ context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	return tv.state.getEmployee(id)
}

func (tv *txMemoryView) SaveEmployee(_ context.Context, emp leave.Employee) error {
	tv.state.saveEmployee(emp)
	return nil
}

func (tv *txMemoryView) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	return tv.state.listEmployees(), nil
}

func (tv *txMemoryView) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	return tv.state.getRequest(id)
}

func (tv *txMemoryView) SaveRequest(_ context.Context, req leave.LeaveRequest) error {
	tv.state.saveRequest(req)
	return nil
}

func (tv *txMemoryView) ListRequests(_ context.Context, filter leave.RequestFilter) ([]leave.LeaveRequest, error) {
	return tv.state.listRequests(filter), nil
}

func (tv *txMemoryView) LeadFor(_ context.Context, employeeID leave.EmployeeID) (leave.EmployeeID, bool, error) {
	lead, ok := tv.state.leadFor(employeeID)
	return lead, ok, nil
}

func (tv *txMemoryView) MembersOf(_ context.Context, leadID leave.EmployeeID) ([]leave.EmployeeID, error) {
	return tv.state.membersOf(leadID), nil
}

func (tv *txMemoryView) SaveAssignment(_ context.Context, a leave.TeamAssignment) error {
	tv.state.leads[a.EmployeeID] = a
	return nil
}

func (tv *txMemoryView) DeleteAssignment(_ context.Context, leadID, employeeID leave.EmployeeID) (bool, error) {
	return tv.state.deleteAssignment(leadID, employeeID), nil
}

func (tv *txMemoryView) AppendAudit(_ context.Context, entry leave.AuditEntry) error {
	tv.state.audit = append(tv.state.audit, copyAudit(entry))
	return nil
}

func (tv *txMemoryView) AuditFor(_ context.Context, requestID leave.RequestID) ([]leave.AuditEntry, error) {
	return tv.state.auditFor(requestID), nil
}

func (tv *txMemoryView) SavePayrollClose(_ context.Context, c leave.PayrollClose) error {
	tv.state.closes[closeKey{c.Year, c.Month}] = copyClose(c)
	return nil
}

func (tv *txMemoryView) GetPayrollClose(_ context.Context, year int, month time.Month) (*leave.PayrollClose, error) {
	return tv.state.getPayrollClose(year, month), nil
}

func (tv *txMemoryView) ListPayrollCloses(_ context.Context) ([]leave.PayrollClose, error) {
	return tv.state.listPayrollCloses(), nil
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memoryState = newMemoryState()
	return nil
}
