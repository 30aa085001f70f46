package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vango-go/vai-bridge/pkg/bridge/store"
)

// BookEstimateExecutor records a requested appointment slot against the
// call's lead. Confirmation of the slot happens offline; the tool only
// captures the request.
type BookEstimateExecutor struct {
	Store  store.Store
	Logger *slog.Logger
}

func (e BookEstimateExecutor) Name() string { return ToolBookEstimate }

func (e BookEstimateExecutor) Definition() Definition {
	return Definition{
		Type:        "function",
		Name:        ToolBookEstimate,
		Description: "Request an on-site estimate appointment for the caller. Use after a lead has been captured.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"date":    map[string]any{"type": "string", "description": "Requested date, YYYY-MM-DD"},
				"time":    map[string]any{"type": "string", "description": "Requested time of day, e.g. morning or 2pm"},
				"name":    map[string]any{"type": "string"},
				"address": map[string]any{"type": "string"},
			},
			"required": []string{"date", "time"},
		},
	}
}

func (e BookEstimateExecutor) Execute(ctx context.Context, call Call) (map[string]any, error) {
	if e.Store == nil {
		return nil, fmt.Errorf("booking store is not configured")
	}
	date := stringArg(call.Arguments, "date")
	timeOfDay := stringArg(call.Arguments, "time")
	if date == "" || timeOfDay == "" {
		return nil, fmt.Errorf("booking date and time are required")
	}

	if err := e.Store.UpdateLeadBooking(ctx, call.CallSID, date, timeOfDay); err != nil {
		return nil, fmt.Errorf("book estimate: %w", err)
	}
	if e.Logger != nil {
		e.Logger.Info("estimate requested", "call_sid", call.CallSID, "date", date, "time", timeOfDay)
	}

	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Estimate requested for %s %s. Tell the caller the office will confirm the exact time.", date, timeOfDay),
	}, nil
}
