// Package billing reports metered call usage.
package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/client"
)

const defaultMeterName = "call_minutes"

// Reporter emits one billing meter event per completed call. A nil Reporter
// (no API key configured) is a no-op; billing must never affect call
// teardown.
type Reporter struct {
	api    *client.API
	meter  string
	logger *slog.Logger
}

func New(apiKey, meterName string, logger *slog.Logger) *Reporter {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	if strings.TrimSpace(meterName) == "" {
		meterName = defaultMeterName
	}
	if logger == nil {
		logger = slog.Default()
	}
	api := &client.API{}
	api.Init(strings.TrimSpace(apiKey), nil)
	return &Reporter{api: api, meter: meterName, logger: logger}
}

// ReportCall records the call's duration, rounded up to whole minutes,
// against the tenant's billing customer. Tenants without a customer id are
// skipped.
func (r *Reporter) ReportCall(ctx context.Context, customerID string, duration time.Duration) error {
	if r == nil {
		return nil
	}
	if strings.TrimSpace(customerID) == "" {
		return nil
	}
	minutes := int64((duration + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	params := &stripe.BillingMeterEventParams{
		EventName: stripe.String(r.meter),
		Payload: map[string]string{
			"value":              strconv.FormatInt(minutes, 10),
			"stripe_customer_id": strings.TrimSpace(customerID),
		},
	}
	params.Context = ctx
	if _, err := r.api.BillingMeterEvents.New(params); err != nil {
		return fmt.Errorf("report call minutes: %w", err)
	}
	r.logger.Debug("reported call usage", "customer_id", customerID, "minutes", minutes)
	return nil
}
