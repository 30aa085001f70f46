package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/vango-go/vai-bridge/pkg/bridge/store"
)

type fakeMessenger struct {
	to, from, body string
	err            error
}

func (f *fakeMessenger) SendMessage(_ context.Context, to, from, body string) error {
	f.to, f.from, f.body = to, from, body
	return f.err
}

func newTestRegistry(t *testing.T) (*Registry, *store.Memory, *fakeMessenger) {
	t.Helper()
	mem := store.NewMemory(store.Tenant{ID: "t1", PhoneNumber: "+15551234567"})
	if err := mem.StartCall(context.Background(), store.Call{CallSID: "CA1", TenantID: "t1"}); err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	msgr := &fakeMessenger{}
	reg := NewRegistry(
		CreateLeadExecutor{Store: mem},
		BookEstimateExecutor{Store: mem},
		SendSMSExecutor{Messenger: msgr, FromNumber: "+15551234567"},
		EscalateExecutor{Store: mem},
	)
	return reg, mem, msgr
}

func TestRegistryNamesAndDefinitions(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	want := []string{ToolBookEstimate, ToolCreateLead, ToolEscalateToHuman, ToolSendSMS}
	got := reg.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names = %v, want %v", got, want)
	}
	defs := reg.Definitions()
	if len(defs) != 4 {
		t.Fatalf("Definitions = %d entries, want 4", len(defs))
	}
	for _, def := range defs {
		if def.Type != "function" || def.Name == "" {
			t.Errorf("malformed definition: %+v", def)
		}
	}
}

func TestDispatchUnknownToolErrors(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	_, err := reg.Dispatch(context.Background(), "open_pod_bay_doors", Call{})
	if err == nil || !strings.Contains(err.Error(), "unknown tool") {
		t.Errorf("err = %v, want unknown tool", err)
	}
}

func TestCreateLeadCapturesAndTagsOutcome(t *testing.T) {
	reg, mem, _ := newTestRegistry(t)
	call := Call{
		CallSID:    "CA1",
		TenantID:   "t1",
		FromNumber: "+15550009999",
		Arguments:  map[string]any{"name": "Jane", "issue": "leaky faucet", "urgency": "routine"},
	}
	result, err := reg.Dispatch(context.Background(), ToolCreateLead, call)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result["success"] != true {
		t.Errorf("result = %+v", result)
	}
	leadID, _ := result["lead_id"].(string)
	if leadID == "" {
		t.Error("lead_id missing from result")
	}

	leads := mem.Leads()
	if len(leads) != 1 {
		t.Fatalf("leads = %d, want 1", len(leads))
	}
	if leads[0].Name != "Jane" || leads[0].Phone != "+15550009999" {
		t.Errorf("lead = %+v, want caller number as fallback phone", leads[0])
	}
	rec, _ := mem.CallBySID("CA1")
	if rec.Outcome != OutcomeLeadCaptured {
		t.Errorf("outcome = %q, want %q", rec.Outcome, OutcomeLeadCaptured)
	}
}

func TestCreateLeadRequiresName(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	_, err := reg.Dispatch(context.Background(), ToolCreateLead, Call{CallSID: "CA1", Arguments: map[string]any{}})
	if err == nil {
		t.Error("expected error for missing name")
	}
}

func TestBookEstimateUpdatesLead(t *testing.T) {
	reg, mem, _ := newTestRegistry(t)
	ctx := context.Background()
	if _, err := reg.Dispatch(ctx, ToolCreateLead, Call{CallSID: "CA1", TenantID: "t1", Arguments: map[string]any{"name": "Jane"}}); err != nil {
		t.Fatalf("create lead: %v", err)
	}
	result, err := reg.Dispatch(ctx, ToolBookEstimate, Call{CallSID: "CA1", Arguments: map[string]any{"date": "2026-09-01", "time": "morning"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result["success"] != true {
		t.Errorf("result = %+v", result)
	}
	leads := mem.Leads()
	if len(leads) != 1 || leads[0].RequestedDate != "2026-09-01" || leads[0].RequestedTime != "morning" {
		t.Errorf("leads = %+v", leads)
	}
}

func TestSendSMSDefaultsToCaller(t *testing.T) {
	reg, _, msgr := newTestRegistry(t)
	_, err := reg.Dispatch(context.Background(), ToolSendSMS, Call{
		CallSID:    "CA1",
		FromNumber: "+15550009999",
		Arguments:  map[string]any{"message": "see you soon"},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if msgr.to != "+15550009999" || msgr.from != "+15551234567" || msgr.body != "see you soon" {
		t.Errorf("sms = to %q from %q body %q", msgr.to, msgr.from, msgr.body)
	}
}

func TestSendSMSFailureSurfaces(t *testing.T) {
	reg, _, msgr := newTestRegistry(t)
	msgr.err = fmt.Errorf("carrier rejected")
	_, err := reg.Dispatch(context.Background(), ToolSendSMS, Call{
		FromNumber: "+15550009999",
		Arguments:  map[string]any{"message": "hi"},
	})
	if err == nil || !strings.Contains(err.Error(), "carrier rejected") {
		t.Errorf("err = %v, want wrapped carrier error", err)
	}
}

func TestEscalateTagsOutcome(t *testing.T) {
	reg, mem, _ := newTestRegistry(t)
	_, err := reg.Dispatch(context.Background(), ToolEscalateToHuman, Call{CallSID: "CA1", Arguments: map[string]any{"reason": "billing dispute"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	rec, _ := mem.CallBySID("CA1")
	if rec.Outcome != OutcomeEscalated {
		t.Errorf("outcome = %q, want %q", rec.Outcome, OutcomeEscalated)
	}
}
