package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryTenantResolution(t *testing.T) {
	m := NewMemory(
		Tenant{Name: "Acme Plumbing", PhoneNumber: "+15551234567"},
		Tenant{Name: "Beta HVAC", PhoneNumber: "+15559876543"},
	)

	got, err := m.TenantByNumber(context.Background(), "+15559876543")
	if err != nil {
		t.Fatalf("TenantByNumber: %v", err)
	}
	if got.Name != "Beta HVAC" {
		t.Errorf("tenant = %q, want %q", got.Name, "Beta HVAC")
	}

	if _, err := m.TenantByNumber(context.Background(), "+10000000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unmatched number err = %v, want ErrNotFound", err)
	}

	def, err := m.DefaultTenant(context.Background())
	if err != nil {
		t.Fatalf("DefaultTenant: %v", err)
	}
	if def.Name != "Acme Plumbing" {
		t.Errorf("default tenant = %q, want first configured", def.Name)
	}
}

func TestMemoryCallLifecycle(t *testing.T) {
	m := NewMemory(Tenant{ID: "t1", PhoneNumber: "+15551234567"})
	ctx := context.Background()
	started := time.Now().Add(-90 * time.Second)

	if err := m.StartCall(ctx, Call{CallSID: "CA1", TenantID: "t1", StartedAt: started}); err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	// Idempotent on repeat.
	if err := m.StartCall(ctx, Call{CallSID: "CA1", TenantID: "t1", StartedAt: started}); err != nil {
		t.Fatalf("StartCall repeat: %v", err)
	}

	fin := FinishCall{CallSID: "CA1", EndedAt: time.Now(), DurationSeconds: 90, Transcript: "AI: hi\nCaller: hello", Summary: "greeting"}
	if err := m.FinishCall(ctx, fin); err != nil {
		t.Fatalf("FinishCall: %v", err)
	}

	call, ok := m.CallBySID("CA1")
	if !ok {
		t.Fatal("call not recorded")
	}
	if call.EndedAt == nil {
		t.Fatal("EndedAt not set")
	}
	if call.DurationSeconds != 90 {
		t.Errorf("duration = %d, want 90", call.DurationSeconds)
	}
	if call.Summary != "greeting" {
		t.Errorf("summary = %q", call.Summary)
	}

	if err := m.FinishCall(ctx, FinishCall{CallSID: "CAmissing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("finish of unknown call err = %v, want ErrNotFound", err)
	}
}

func TestMemoryLeadsAndOutcome(t *testing.T) {
	m := NewMemory(Tenant{ID: "t1", PhoneNumber: "+15551234567"})
	ctx := context.Background()

	if err := m.StartCall(ctx, Call{CallSID: "CA1", TenantID: "t1", StartedAt: time.Now()}); err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	lead, err := m.CreateLead(ctx, Lead{TenantID: "t1", CallSID: "CA1", Name: "Jane"})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if lead.ID == "" {
		t.Error("lead id not assigned")
	}
	if err := m.SetCallOutcome(ctx, "CA1", "lead_captured"); err != nil {
		t.Fatalf("SetCallOutcome: %v", err)
	}
	if err := m.UpdateLeadBooking(ctx, "CA1", "2026-09-01", "morning"); err != nil {
		t.Fatalf("UpdateLeadBooking: %v", err)
	}

	leads := m.Leads()
	if len(leads) != 1 || leads[0].RequestedDate != "2026-09-01" {
		t.Errorf("leads = %+v", leads)
	}
	call, _ := m.CallBySID("CA1")
	if call.Outcome != "lead_captured" {
		t.Errorf("outcome = %q, want lead_captured", call.Outcome)
	}
}
