package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-go/vai-bridge/pkg/bridge/tools"
)

const (
	defaultRealtimeBaseURL = "wss://api.openai.com/v1/realtime"
	defaultRealtimeModel   = "gpt-4o-realtime-preview-2024-10-01"
)

// RealtimeConfig describes one AI-leg connection. Each call gets its own
// config and its own connection; there is no process-wide client state.
type RealtimeConfig struct {
	APIKey         string
	BaseWSURL      string
	Model          string
	ConnectTimeout time.Duration
}

// RealtimeEvent is the normalized form of an inbound AI transport event.
// Only the fields relevant to the event type are populated.
type RealtimeEvent struct {
	Type       string
	SessionID  string
	Audio      []byte // decoded PCM16 bytes, response.audio.delta
	Transcript string
	ToolCallID string
	ToolName   string
	ToolArgs   string // raw JSON object
	ErrMessage string
}

// AILeg is the bridge's view of the AI transport connection. Satisfied by
// realtimeConn; tests substitute a scripted fake.
type AILeg interface {
	Events() <-chan RealtimeEvent
	UpdateSession(ctx context.Context, settings sessionSettings) error
	AppendAudio(ctx context.Context, pcm []byte) error
	CreateItem(ctx context.Context, item conversationItem) error
	CreateResponse(ctx context.Context) error
	FailureReason() string
	Close() error
}

// RealtimeDialer opens the AI leg. Injectable for tests.
type RealtimeDialer func(ctx context.Context, cfg RealtimeConfig) (AILeg, error)

// Outbound wire shapes.

type sessionUpdateEvent struct {
	Type    string          `json:"type"`
	Session sessionSettings `json:"session"`
}

type sessionSettings struct {
	Modalities              []string            `json:"modalities"`
	Instructions            string              `json:"instructions"`
	Voice                   string              `json:"voice"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	InputAudioTranscription *audioTranscription `json:"input_audio_transcription,omitempty"`
	TurnDetection           *turnDetection      `json:"turn_detection,omitempty"`
	Tools                   []tools.Definition  `json:"tools"`
	Temperature             float64             `json:"temperature,omitempty"`
}

type audioTranscription struct {
	Model string `json:"model"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

type conversationItemEvent struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type conversationItem struct {
	Type    string        `json:"type"` // "message" | "function_call_output"
	Role    string        `json:"role,omitempty"`
	Content []contentPart `json:"content,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type audioAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type responseCreateEvent struct {
	Type string `json:"type"`
}

type realtimeConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	errMu   sync.Mutex

	events    chan RealtimeEvent
	closed    chan struct{}
	closeOnce sync.Once

	lastServerError string
	lastClose       string
}

// DialRealtime opens the AI transport WebSocket and starts its read loop.
func DialRealtime(ctx context.Context, cfg RealtimeConfig) (AILeg, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("realtime api key is required")
	}
	wsURL, err := buildRealtimeURL(strings.TrimSpace(cfg.BaseWSURL), strings.TrimSpace(cfg.Model))
	if err != nil {
		return nil, err
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+strings.TrimSpace(cfg.APIKey))
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	out := &realtimeConn{
		conn:   conn,
		events: make(chan RealtimeEvent, 256),
		closed: make(chan struct{}),
	}
	go out.readLoop()
	return out, nil
}

func buildRealtimeURL(base, model string) (string, error) {
	if base == "" {
		base = defaultRealtimeBaseURL
	}
	if model == "" {
		model = defaultRealtimeModel
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid realtime ws url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "wss"
	}
	q := u.Query()
	if q.Get("model") == "" {
		q.Set("model", model)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *realtimeConn) Events() <-chan RealtimeEvent {
	if c == nil {
		ch := make(chan RealtimeEvent)
		close(ch)
		return ch
	}
	return c.events
}

func (c *realtimeConn) UpdateSession(ctx context.Context, settings sessionSettings) error {
	return c.writeJSON(ctx, sessionUpdateEvent{Type: "session.update", Session: settings})
}

func (c *realtimeConn) AppendAudio(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	return c.writeJSON(ctx, audioAppendEvent{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
}

func (c *realtimeConn) CreateItem(ctx context.Context, item conversationItem) error {
	return c.writeJSON(ctx, conversationItemEvent{Type: "conversation.item.create", Item: item})
}

func (c *realtimeConn) CreateResponse(ctx context.Context) error {
	return c.writeJSON(ctx, responseCreateEvent{Type: "response.create"})
}

func (c *realtimeConn) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		close(c.closed)
		c.setLastClose("closed")
		_ = c.conn.Close()
	})
	return nil
}

func (c *realtimeConn) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				c.setLastClose(fmt.Sprintf("code=%d msg=%s", closeErr.Code, strings.TrimSpace(closeErr.Text)))
			} else {
				c.setLastClose(strings.TrimSpace(err.Error()))
			}
			return
		}

		ev, ok := parseRealtimeEvent(data)
		if !ok {
			continue
		}
		if ev.Type == "error" {
			c.setLastServerError(ev.ErrMessage)
		}

		select {
		case c.events <- ev:
		case <-c.closed:
			return
		}
	}
}

func parseRealtimeEvent(data []byte) (RealtimeEvent, bool) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return RealtimeEvent{}, false
	}
	eventType := decodeString(msg["type"])
	if eventType == "" {
		return RealtimeEvent{}, false
	}

	ev := RealtimeEvent{Type: eventType}
	switch eventType {
	case "session.created", "session.updated":
		var session struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(msg["session"], &session)
		ev.SessionID = strings.TrimSpace(session.ID)
	case "response.audio.delta":
		delta := decodeString(msg["delta"])
		if delta == "" {
			return RealtimeEvent{}, false
		}
		decoded, err := base64.StdEncoding.DecodeString(delta)
		if err != nil {
			return RealtimeEvent{}, false
		}
		ev.Audio = decoded
	case "response.audio_transcript.done":
		ev.Transcript = decodeString(msg["transcript"])
	case "conversation.item.input_audio_transcription.completed":
		ev.Transcript = decodeString(msg["transcript"])
	case "response.function_call_arguments.done":
		ev.ToolCallID = decodeString(msg["call_id"])
		ev.ToolName = decodeString(msg["name"])
		ev.ToolArgs = decodeString(msg["arguments"])
	case "error":
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(msg["error"], &payload)
		ev.ErrMessage = strings.TrimSpace(payload.Message)
	}
	return ev, true
}

func (c *realtimeConn) writeJSON(ctx context.Context, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	}
	if err := c.conn.WriteJSON(payload); err != nil {
		reason := strings.TrimSpace(c.FailureReason())
		if reason == "" {
			return err
		}
		return fmt.Errorf("%w (realtime %s)", err, reason)
	}
	return nil
}

func (c *realtimeConn) setLastServerError(msg string) {
	msg = collapseWhitespace(msg)
	if msg == "" {
		return
	}
	c.errMu.Lock()
	c.lastServerError = msg
	c.errMu.Unlock()
}

func (c *realtimeConn) setLastClose(msg string) {
	msg = collapseWhitespace(msg)
	if msg == "" {
		return
	}
	c.errMu.Lock()
	c.lastClose = msg
	c.errMu.Unlock()
}

// FailureReason summarizes the last server error and close cause for logs.
func (c *realtimeConn) FailureReason() string {
	if c == nil {
		return ""
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	parts := make([]string, 0, 2)
	if c.lastServerError != "" {
		parts = append(parts, "server_error="+c.lastServerError)
	}
	if c.lastClose != "" {
		parts = append(parts, "close="+c.lastClose)
	}
	return strings.Join(parts, " ")
}

func decodeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func collapseWhitespace(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) > 300 {
		msg = msg[:300] + "…"
	}
	return msg
}
