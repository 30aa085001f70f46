package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-go/vai-bridge/pkg/bridge/billing"
	"github.com/vango-go/vai-bridge/pkg/bridge/config"
	"github.com/vango-go/vai-bridge/pkg/bridge/lifecycle"
	"github.com/vango-go/vai-bridge/pkg/bridge/mw"
	"github.com/vango-go/vai-bridge/pkg/bridge/session"
	"github.com/vango-go/vai-bridge/pkg/bridge/sessions"
	"github.com/vango-go/vai-bridge/pkg/bridge/store"
	"github.com/vango-go/vai-bridge/pkg/bridge/summary"
	"github.com/vango-go/vai-bridge/pkg/bridge/telephony"
	"github.com/vango-go/vai-bridge/pkg/bridge/tools"
	"github.com/vango-go/vai-bridge/pkg/bridge/twiliorest"
)

const (
	startHandshakeTimeout = 10 * time.Second
	teardownWait          = 10 * time.Second
	fallbackMessage       = "We are sorry, the assistant is unavailable right now. Please call back later."
)

// StreamHandler serves the telephony media-stream WebSocket. It owns the
// socket's read side and the call's persistence lifecycle; the per-call
// bridge owns the write side and the AI leg.
type StreamHandler struct {
	Config     config.Config
	Store      store.Store
	Logger     *slog.Logger
	Lifecycle  *lifecycle.Lifecycle
	Sessions   *sessions.Tracker
	Twilio     *twiliorest.Client
	Summarizer *summary.Summarizer
	Billing    *billing.Reporter

	// Dial overrides the AI transport dialer, for tests.
	Dial session.RealtimeDialer
}

func (h StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	if r.Method != http.MethodGet {
		mw.WriteJSONError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed", reqID)
		return
	}
	if h.Lifecycle.IsDraining() {
		mw.WriteJSONError(w, http.StatusServiceUnavailable, "overloaded", "server is draining", reqID)
		return
	}
	if h.Config.MaxSessions > 0 && h.Sessions.Count() >= h.Config.MaxSessions {
		mw.WriteJSONError(w, http.StatusServiceUnavailable, "overloaded", "too many concurrent calls", reqID)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("stream upgrade failed", "request_id", reqID, "error", err)
		return
	}
	defer conn.Close()

	info, err := h.awaitStart(conn)
	if err != nil {
		logger.Warn("stream handshake failed", "request_id", reqID, "error", err)
		return
	}
	logger = logger.With("call_sid", info.CallSID, "stream_sid", info.StreamSID)

	tenant := h.resolveTenant(r.Context(), logger, info)
	sess := session.NewCallSession(info.CallSID, info.StreamSID, tenant.ID)
	sess.From = firstNonEmpty(info.Param("From"), info.Param("from"))
	sess.To = firstNonEmpty(info.Param("To"), info.Param("to"), tenant.PhoneNumber)

	if h.Store != nil {
		if err := h.Store.StartCall(r.Context(), store.Call{
			CallSID:    info.CallSID,
			TenantID:   tenant.ID,
			FromNumber: sess.From,
			ToNumber:   sess.To,
			StartedAt:  sess.StartedAt,
		}); err != nil {
			logger.Warn("failed to record call start", "error", err)
		}
	}

	bridge, err := session.New(session.Dependencies{
		Conn:    conn,
		Logger:  logger,
		Session: sess,
		Tools:   h.buildTools(tenant),
		Config:  h.bridgeConfig(tenant),
		Dial:    h.Dial,
	})
	if err != nil {
		logger.Error("failed to build bridge", "error", err)
		h.sayFallback(info.CallSID, logger)
		return
	}

	unregister := h.Sessions.Register(info.StreamSID, sessions.Handle{Cancel: bridge.Close})
	defer unregister()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- bridge.Run() }()

	// An init failure leaves the caller in dead air unless the call is taken
	// over; the read loop below won't notice until the caller hangs up.
	go func() {
		<-bridge.Done()
		if !bridge.EverReady() && bridge.State() == session.StateError {
			h.sayFallback(info.CallSID, logger)
		}
	}()

	h.readLoop(conn, bridge, logger)

	bridge.Close()
	select {
	case err := <-runErrCh:
		if err != nil {
			logger.Warn("bridge ended with error", "error", err)
		}
	case <-time.After(teardownWait):
		logger.Error("bridge did not stop in time")
	}

	h.finishCall(sess, tenant, logger)
}

// awaitStart consumes frames until the stream's start event arrives.
func (h StreamHandler) awaitStart(conn *websocket.Conn) (telephony.StartInfo, error) {
	deadline := time.Now().Add(startHandshakeTimeout)
	_ = conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return telephony.StartInfo{}, err
		}
		msg, err := telephony.ParseMessage(data)
		if err != nil {
			return telephony.StartInfo{}, err
		}
		switch msg.Event {
		case telephony.EventConnected:
			continue
		case telephony.EventStart:
			return msg.StartInfo()
		default:
			return telephony.StartInfo{}, errors.New("expected start event, got " + msg.Event)
		}
	}
}

func (h StreamHandler) readLoop(conn *websocket.Conn, bridge *session.Bridge, logger *slog.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("stream read ended", "error", err)
			}
			return
		}
		msg, err := telephony.ParseMessage(data)
		if err != nil {
			logger.Debug("unparseable stream frame dropped", "error", err)
			continue
		}
		switch msg.Event {
		case telephony.EventMedia:
			if !msg.InboundAudio() {
				continue
			}
			payload, err := msg.AudioPayload()
			if err != nil {
				logger.Debug("bad media payload dropped", "error", err)
				continue
			}
			bridge.ForwardCallerAudio(payload)
		case telephony.EventStop:
			return
		case telephony.EventError:
			logger.Warn("stream reported error, tearing down")
			return
		case telephony.EventMark:
			// Playback marks are not used.
		default:
			logger.Debug("unhandled stream event", "event", msg.Event)
		}
	}
}

// resolveTenant maps the dialed number to a tenant, falling back to the
// single configured tenant when no number matches.
func (h StreamHandler) resolveTenant(ctx context.Context, logger *slog.Logger, info telephony.StartInfo) store.Tenant {
	if h.Store == nil {
		return store.Tenant{}
	}
	to := firstNonEmpty(info.Param("To"), info.Param("to"))
	if to != "" {
		tenant, err := h.Store.TenantByNumber(ctx, to)
		if err == nil {
			return tenant
		}
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("tenant lookup failed", "to", to, "error", err)
		}
	}
	tenant, err := h.Store.DefaultTenant(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("default tenant lookup failed", "error", err)
		}
		return store.Tenant{}
	}
	return tenant
}

func (h StreamHandler) buildTools(tenant store.Tenant) *tools.Registry {
	if h.Store == nil {
		return tools.NewRegistry()
	}
	executors := []tools.Executor{
		tools.CreateLeadExecutor{Store: h.Store},
		tools.BookEstimateExecutor{Store: h.Store},
		tools.EscalateExecutor{Store: h.Store},
	}
	if h.Twilio != nil {
		executors = append(executors, tools.SendSMSExecutor{
			Messenger:  h.Twilio,
			FromNumber: firstNonEmpty(h.Config.TwilioFromNumber, tenant.PhoneNumber),
		})
	}
	return tools.NewRegistry(executors...)
}

func (h StreamHandler) bridgeConfig(tenant store.Tenant) session.Config {
	instructions := firstNonEmpty(tenant.Instructions, h.Config.Instructions)
	if tenant.Greeting != "" {
		instructions = strings.TrimSpace(instructions + "\n\nOpen the call with: " + tenant.Greeting)
	}
	return session.Config{
		OpenAIAPIKey:    h.Config.OpenAIAPIKey,
		RealtimeBaseURL: h.Config.RealtimeBaseURL,
		Model:           h.Config.RealtimeModel,
		Voice:           firstNonEmpty(tenant.Voice, h.Config.Voice),
		Instructions:    instructions,
		ConnectTimeout:  h.Config.ConnectTimeout,
		GreetingDelay:   h.Config.GreetingDelay,
		PingInterval:    h.Config.PingInterval,
		WriteTimeout:    h.Config.WriteTimeout,
		FrameInterval:   h.Config.FrameInterval,
	}
}

// sayFallback takes over the call with a spoken apology so an AI-side init
// failure never leaves the caller in silence.
func (h StreamHandler) sayFallback(callSID string, logger *slog.Logger) {
	if h.Twilio == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Twilio.SayAndHangup(ctx, callSID, fallbackMessage); err != nil {
		logger.Warn("fallback takeover failed", "error", err)
	}
}

func (h StreamHandler) finishCall(sess *session.CallSession, tenant store.Tenant, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	endedAt := time.Now()
	duration := sess.Duration(endedAt)
	transcript := sess.Transcript()

	var text string
	if h.Summarizer != nil {
		text = h.Summarizer.Summarize(ctx, transcript)
	} else {
		text = summary.TailSummary(transcript)
	}

	if h.Store != nil {
		if err := h.Store.FinishCall(ctx, store.FinishCall{
			CallSID:         sess.CallSID,
			EndedAt:         endedAt,
			DurationSeconds: int(duration.Round(time.Second) / time.Second),
			Transcript:      strings.Join(transcript, "\n"),
			Summary:         text,
		}); err != nil {
			logger.Warn("failed to record call finish", "error", err)
		}
	}

	if h.Billing != nil && tenant.StripeCustomerID != "" {
		if err := h.Billing.ReportCall(ctx, tenant.StripeCustomerID, duration); err != nil {
			logger.Warn("failed to report billing usage", "error", err)
		}
	}

	logger.Info("call finished",
		"duration_s", int(duration.Seconds()),
		"transcript_lines", len(transcript),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
