// Package store persists tenants, calls, and leads for the call bridge.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// Tenant is one organization answering calls on a configured number.
type Tenant struct {
	ID               string
	Name             string
	PhoneNumber      string
	Greeting         string
	Instructions     string
	Voice            string
	StripeCustomerID string
}

// Call is the persisted record of one phone call.
type Call struct {
	ID              string
	CallSID         string
	TenantID        string
	FromNumber      string
	ToNumber        string
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationSeconds int
	Transcript      string
	Summary         string
	Outcome         string
}

// Lead is a captured prospect tied to a call.
type Lead struct {
	ID            string
	TenantID      string
	CallSID       string
	Name          string
	Phone         string
	Email         string
	Issue         string
	Urgency       string
	Address       string
	RequestedDate string
	RequestedTime string
}

// FinishCall carries everything teardown knows about a completed call.
type FinishCall struct {
	CallSID         string
	EndedAt         time.Time
	DurationSeconds int
	Transcript      string
	Summary         string
}

// Store is the persistence contract consumed by the stream handler and the
// tool executors.
type Store interface {
	// TenantByNumber resolves the tenant owning a configured outbound number.
	TenantByNumber(ctx context.Context, number string) (Tenant, error)
	// DefaultTenant is the single-tenant fallback when no number matches.
	DefaultTenant(ctx context.Context) (Tenant, error)

	// StartCall inserts the call row for a newly started stream.
	StartCall(ctx context.Context, call Call) error
	// FinishCall records the outcome of a completed call.
	FinishCall(ctx context.Context, fin FinishCall) error
	// SetCallOutcome tags a call mid-flight (lead_captured, escalated, ...).
	SetCallOutcome(ctx context.Context, callSID, outcome string) error

	CreateLead(ctx context.Context, lead Lead) (Lead, error)
	// UpdateLeadBooking records a requested appointment slot on the most
	// recent lead for the call, if any.
	UpdateLeadBooking(ctx context.Context, callSID, date, timeOfDay string) error
}
