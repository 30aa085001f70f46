package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vango-go/vai-bridge/pkg/bridge/store"
)

// EscalateExecutor marks the call for human follow-up. Actual transfer is an
// operator concern; the tool records the request and tells the model what to
// say.
type EscalateExecutor struct {
	Store  store.Store
	Logger *slog.Logger
}

func (e EscalateExecutor) Name() string { return ToolEscalateToHuman }

func (e EscalateExecutor) Definition() Definition {
	return Definition{
		Type:        "function",
		Name:        ToolEscalateToHuman,
		Description: "Flag this call for a human callback when the caller asks for a person or the request is out of scope.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{"type": "string", "description": "Why the caller needs a human"},
			},
		},
	}
}

func (e EscalateExecutor) Execute(ctx context.Context, call Call) (map[string]any, error) {
	if e.Store == nil {
		return nil, fmt.Errorf("call store is not configured")
	}
	reason := stringArg(call.Arguments, "reason")

	if err := e.Store.SetCallOutcome(ctx, call.CallSID, OutcomeEscalated); err != nil {
		return nil, fmt.Errorf("escalate call: %w", err)
	}
	if e.Logger != nil {
		e.Logger.Info("call escalated", "call_sid", call.CallSID, "reason", reason)
	}
	return map[string]any{
		"success": true,
		"message": "Flagged for the team. Tell the caller someone will call them back as soon as possible.",
	}, nil
}
