package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used when no database is configured and by
// tests. It holds a single default tenant plus any added explicitly.
type Memory struct {
	mu      sync.Mutex
	tenants []Tenant
	calls   map[string]*Call
	leads   []Lead
}

func NewMemory(tenants ...Tenant) *Memory {
	m := &Memory{calls: make(map[string]*Call)}
	for _, t := range tenants {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		m.tenants = append(m.tenants, t)
	}
	return m
}

func (m *Memory) TenantByNumber(_ context.Context, number string) (Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.PhoneNumber == number {
			return t, nil
		}
	}
	return Tenant{}, ErrNotFound
}

func (m *Memory) DefaultTenant(_ context.Context) (Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tenants) == 0 {
		return Tenant{}, ErrNotFound
	}
	return m.tenants[0], nil
}

func (m *Memory) StartCall(_ context.Context, call Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.calls[call.CallSID]; exists {
		return nil
	}
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	c := call
	m.calls[call.CallSID] = &c
	return nil
}

func (m *Memory) FinishCall(_ context.Context, fin FinishCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[fin.CallSID]
	if !ok {
		return ErrNotFound
	}
	ended := fin.EndedAt
	call.EndedAt = &ended
	call.DurationSeconds = fin.DurationSeconds
	call.Transcript = fin.Transcript
	call.Summary = fin.Summary
	return nil
}

func (m *Memory) SetCallOutcome(_ context.Context, callSID, outcome string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[callSID]
	if !ok {
		return ErrNotFound
	}
	call.Outcome = outcome
	return nil
}

func (m *Memory) CreateLead(_ context.Context, lead Lead) (Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	m.leads = append(m.leads, lead)
	return lead, nil
}

func (m *Memory) UpdateLeadBooking(_ context.Context, callSID, date, timeOfDay string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.leads) - 1; i >= 0; i-- {
		if m.leads[i].CallSID == callSID {
			m.leads[i].RequestedDate = date
			m.leads[i].RequestedTime = timeOfDay
			return nil
		}
	}
	return nil
}

// CallBySID returns a copy of a recorded call, for tests and teardown checks.
func (m *Memory) CallBySID(callSID string) (Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[callSID]
	if !ok {
		return Call{}, false
	}
	return *call, true
}

// Leads returns a copy of all recorded leads.
func (m *Memory) Leads() []Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Lead, len(m.leads))
	copy(out, m.leads)
	return out
}
