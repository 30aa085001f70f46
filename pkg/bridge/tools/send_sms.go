package tools

import (
	"context"
	"fmt"
	"log/slog"
)

// Messenger sends one SMS. Satisfied by twiliorest.Client.
type Messenger interface {
	SendMessage(ctx context.Context, to, from, body string) error
}

// SendSMSExecutor texts the caller (or another number the model supplies)
// from the tenant's configured number.
type SendSMSExecutor struct {
	Messenger  Messenger
	FromNumber string
	Logger     *slog.Logger
}

func (e SendSMSExecutor) Name() string { return ToolSendSMS }

func (e SendSMSExecutor) Definition() Definition {
	return Definition{
		Type:        "function",
		Name:        ToolSendSMS,
		Description: "Send a text message, e.g. a booking confirmation or the office address. Defaults to the caller's number.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to":      map[string]any{"type": "string", "description": "Destination number; omit to text the caller"},
				"message": map[string]any{"type": "string"},
			},
			"required": []string{"message"},
		},
	}
}

func (e SendSMSExecutor) Execute(ctx context.Context, call Call) (map[string]any, error) {
	if e.Messenger == nil {
		return nil, fmt.Errorf("sms is not configured")
	}
	body := stringArg(call.Arguments, "message")
	if body == "" {
		return nil, fmt.Errorf("sms message is required")
	}
	to := stringArg(call.Arguments, "to")
	if to == "" {
		to = call.FromNumber
	}
	if to == "" {
		return nil, fmt.Errorf("sms destination is unknown")
	}

	if err := e.Messenger.SendMessage(ctx, to, e.FromNumber, body); err != nil {
		return nil, fmt.Errorf("send sms: %w", err)
	}
	if e.Logger != nil {
		e.Logger.Info("sms sent", "call_sid", call.CallSID, "to", to)
	}
	return map[string]any{
		"success": true,
		"message": "Text message sent.",
	}, nil
}
