// Package tools implements the business actions the AI agent can invoke
// mid-call and the registry that dispatches them. Recognized names are fixed
// at construction; their schemas are advertised to the AI transport when the
// session is configured.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const (
	ToolCreateLead      = "create_lead"
	ToolBookEstimate    = "book_estimate"
	ToolSendSMS         = "send_sms"
	ToolEscalateToHuman = "escalate_to_human"

	OutcomeLeadCaptured = "lead_captured"
	OutcomeEscalated    = "escalated"
)

// Definition is a tool schema in the AI transport's function format.
type Definition struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Call carries the per-call context an executor may need alongside the
// model-supplied arguments.
type Call struct {
	CallSID    string
	TenantID   string
	FromNumber string
	ToNumber   string
	Arguments  map[string]any
}

type Executor interface {
	Name() string
	Definition() Definition
	Execute(ctx context.Context, call Call) (map[string]any, error)
}

type Registry struct {
	byName map[string]Executor
}

func NewRegistry(executors ...Executor) *Registry {
	registry := &Registry{byName: make(map[string]Executor, len(executors))}
	for _, ex := range executors {
		if ex == nil {
			continue
		}
		registry.byName[ex.Name()] = ex
	}
	return registry
}

func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byName[strings.TrimSpace(name)]
	return ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns every registered schema in name order.
func (r *Registry) Definitions() []Definition {
	if r == nil {
		return nil
	}
	out := make([]Definition, 0, len(r.byName))
	for _, name := range r.Names() {
		out = append(out, r.byName[name].Definition())
	}
	return out
}

// Dispatch runs the named executor. An unknown name is a dispatch error,
// not a protocol error; the caller converts any error into a structured
// failure payload so the AI transport always receives a reply.
func (r *Registry) Dispatch(ctx context.Context, name string, call Call) (map[string]any, error) {
	if r == nil {
		return nil, fmt.Errorf("tool registry is not configured")
	}
	ex, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return ex.Execute(ctx, call)
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}
