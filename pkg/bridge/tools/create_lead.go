package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vango-go/vai-bridge/pkg/bridge/store"
)

// CreateLeadExecutor records a new prospect captured during the call and
// tags the call outcome.
type CreateLeadExecutor struct {
	Store  store.Store
	Logger *slog.Logger
}

func (e CreateLeadExecutor) Name() string { return ToolCreateLead }

func (e CreateLeadExecutor) Definition() Definition {
	return Definition{
		Type:        "function",
		Name:        ToolCreateLead,
		Description: "Capture the caller's contact details and issue as a new lead. Call this once you know at least the caller's name.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":    map[string]any{"type": "string", "description": "Caller's full name"},
				"phone":   map[string]any{"type": "string", "description": "Callback number, if different from the caller ID"},
				"email":   map[string]any{"type": "string"},
				"issue":   map[string]any{"type": "string", "description": "What the caller needs help with"},
				"urgency": map[string]any{"type": "string", "enum": []string{"emergency", "urgent", "routine"}},
				"address": map[string]any{"type": "string", "description": "Service address"},
			},
			"required": []string{"name"},
		},
	}
}

func (e CreateLeadExecutor) Execute(ctx context.Context, call Call) (map[string]any, error) {
	if e.Store == nil {
		return nil, fmt.Errorf("lead store is not configured")
	}
	name := stringArg(call.Arguments, "name")
	if name == "" {
		return nil, fmt.Errorf("lead name is required")
	}
	phone := stringArg(call.Arguments, "phone")
	if phone == "" {
		phone = call.FromNumber
	}

	lead, err := e.Store.CreateLead(ctx, store.Lead{
		TenantID: call.TenantID,
		CallSID:  call.CallSID,
		Name:     name,
		Phone:    phone,
		Email:    stringArg(call.Arguments, "email"),
		Issue:    stringArg(call.Arguments, "issue"),
		Urgency:  stringArg(call.Arguments, "urgency"),
		Address:  stringArg(call.Arguments, "address"),
	})
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}

	if err := e.Store.SetCallOutcome(ctx, call.CallSID, OutcomeLeadCaptured); err != nil && e.Logger != nil {
		e.Logger.Warn("failed to tag call outcome", "call_sid", call.CallSID, "error", err)
	}

	return map[string]any{
		"success": true,
		"lead_id": lead.ID,
		"message": fmt.Sprintf("Lead created for %s. Let the caller know someone will follow up shortly.", name),
	}, nil
}
