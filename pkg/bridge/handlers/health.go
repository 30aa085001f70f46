package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vango-go/vai-bridge/pkg/bridge/config"
	"github.com/vango-go/vai-bridge/pkg/bridge/lifecycle"
	"github.com/vango-go/vai-bridge/pkg/bridge/sessions"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
	Sessions  *sessions.Tracker
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK             bool     `json:"ok"`
		Draining       bool     `json:"draining"`
		ActiveCalls    int      `json:"active_calls"`
		StoreEnabled   bool     `json:"store_enabled"`
		BillingEnabled bool     `json:"billing_enabled"`
		Issues         []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)
	if h.Config.OpenAIAPIKey == "" {
		issues = append(issues, "openai api key not configured")
	}
	if h.Config.MaxSessions <= 0 {
		issues = append(issues, "max_sessions must be > 0")
	}
	if h.Config.ConnectTimeout <= 0 || h.Config.GreetingDelay <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}
	if h.Lifecycle.IsDraining() {
		issues = append(issues, "draining")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:             ok,
		Draining:       h.Lifecycle.IsDraining(),
		ActiveCalls:    h.Sessions.Count(),
		StoreEnabled:   h.Config.DatabaseURL != "",
		BillingEnabled: h.Config.StripeKey != "",
		Issues:         issues,
	})
}
