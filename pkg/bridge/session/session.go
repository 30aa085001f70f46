// Package session owns one live phone call: the shared CallSession record,
// the AI-leg state machine, the frame pacer, and the outbound telephony
// writer. One Bridge per call; calls share nothing.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-go/vai-bridge/pkg/audio"
	"github.com/vango-go/vai-bridge/pkg/bridge/telephony"
	"github.com/vango-go/vai-bridge/pkg/bridge/tools"
)

const (
	defaultFrameBytes    = 160 // 20 ms of μ-law at 8 kHz
	defaultFrameInterval = 20 * time.Millisecond

	// greetingTrigger is the synthetic user turn that makes the agent speak
	// first once the session is configured.
	greetingTrigger = "Start the conversation now."

	outboundQueueSize         = 256
	outboundPriorityQueueSize = 8
	toolDispatchTimeout       = 15 * time.Second
)

type Config struct {
	OpenAIAPIKey    string
	RealtimeBaseURL string
	Model           string
	Voice           string
	Instructions    string

	ConnectTimeout time.Duration
	GreetingDelay  time.Duration
	PingInterval   time.Duration
	WriteTimeout   time.Duration

	FrameBytes    int
	FrameInterval time.Duration

	Conditioner        audio.ConditionerConfig
	DisableConditioner bool
}

type Dependencies struct {
	// Conn is the telephony leg, usually a *websocket.Conn. The handler
	// keeps reading it; the bridge owns all writes to it.
	Conn   wsWriter
	Logger *slog.Logger

	Session *CallSession
	Tools   *tools.Registry
	Config  Config

	// Dial overrides the AI transport dialer, for tests.
	Dial RealtimeDialer
}

type toolResult struct {
	callID  string
	payload map[string]any
}

// Bridge runs the AI leg for one call and moves audio and control events
// between the two transports. All session state is mutated by the single
// Run loop; the handler only feeds it through channels.
type Bridge struct {
	sess   *CallSession
	logger *slog.Logger
	cfg    Config
	tools  *tools.Registry
	dial   RealtimeDialer
	conn   wsWriter

	ctx       context.Context
	cancel    context.CancelFunc
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame
	callerAudio      chan []byte
	toolResults      chan toolResult

	stateMu sync.Mutex
	state   BridgeState

	everReady atomic.Bool
}

func New(deps Dependencies) (*Bridge, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("telephony connection is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("call session is required")
	}
	if deps.Tools == nil {
		deps.Tools = tools.NewRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Dial == nil {
		if strings.TrimSpace(deps.Config.OpenAIAPIKey) == "" {
			return nil, fmt.Errorf("ai transport api key is required")
		}
		deps.Dial = DialRealtime
	}
	if deps.Config.FrameBytes <= 0 {
		deps.Config.FrameBytes = defaultFrameBytes
	}
	if deps.Config.FrameInterval <= 0 {
		deps.Config.FrameInterval = defaultFrameInterval
	}
	if deps.Config.ConnectTimeout <= 0 {
		deps.Config.ConnectTimeout = 10 * time.Second
	}
	if deps.Config.GreetingDelay <= 0 {
		deps.Config.GreetingDelay = time.Second
	}
	if deps.Config.Voice == "" {
		deps.Config.Voice = "alloy"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		sess:             deps.Session,
		logger:           deps.Logger.With("call_sid", deps.Session.CallSID),
		cfg:              deps.Config,
		tools:            deps.Tools,
		dial:             deps.Dial,
		conn:             deps.Conn,
		ctx:              ctx,
		cancel:           cancel,
		closing:          make(chan struct{}),
		done:             make(chan struct{}),
		outboundPriority: make(chan outboundFrame, outboundPriorityQueueSize),
		outboundNormal:   make(chan outboundFrame, outboundQueueSize),
		callerAudio:      make(chan []byte, 64),
		toolResults:      make(chan toolResult, 8),
		state:            StateConnecting,
	}, nil
}

// ForwardCallerAudio hands one companded frame from the telephony leg to the
// run loop. Never blocks; frames are dropped if the loop is gone or behind.
func (b *Bridge) ForwardCallerAudio(mulaw []byte) {
	if b == nil || len(mulaw) == 0 {
		return
	}
	select {
	case b.callerAudio <- mulaw:
	case <-b.ctx.Done():
	default:
	}
}

// Close begins teardown. Safe to call more than once.
func (b *Bridge) Close() {
	if b != nil {
		b.closeOnce.Do(func() { close(b.closing) })
	}
}

// Done is closed when Run has fully exited.
func (b *Bridge) Done() <-chan struct{} { return b.done }

func (b *Bridge) State() BridgeState {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.state
}

// EverReady reports whether the AI leg was ever confirmed. The handler uses
// this to distinguish init failures (speak a fallback) from mid-call drops.
func (b *Bridge) EverReady() bool { return b.everReady.Load() }

func (b *Bridge) setState(next BridgeState) {
	b.stateMu.Lock()
	prev := b.state
	if prev.terminal() {
		b.stateMu.Unlock()
		return
	}
	b.state = next
	b.stateMu.Unlock()
	if prev != next {
		b.logger.Debug("bridge state", "from", prev.String(), "to", next.String())
	}
	if next == StateReady {
		b.everReady.Store(true)
	}
}

// Run drives the call until teardown. It blocks; the handler runs it in its
// own goroutine and triggers teardown via Close.
func (b *Bridge) Run() error {
	defer close(b.done)
	defer b.cancel()

	leg, err := b.dial(b.ctx, RealtimeConfig{
		APIKey:         b.cfg.OpenAIAPIKey,
		BaseWSURL:      b.cfg.RealtimeBaseURL,
		Model:          b.cfg.Model,
		ConnectTimeout: b.cfg.ConnectTimeout,
	})
	if err != nil {
		b.setState(StateError)
		return fmt.Errorf("connect ai transport: %w", err)
	}
	defer leg.Close()
	b.setState(StateConnected)

	writerErrCh := make(chan error, 1)
	go func() {
		w := &telephonyWriter{
			ws:           b.conn,
			ctx:          b.ctx,
			priority:     b.outboundPriority,
			normal:       b.outboundNormal,
			pingInterval: b.cfg.PingInterval,
			writeTimeout: b.cfg.WriteTimeout,
		}
		writerErrCh <- w.Run()
	}()

	var conditioner *audio.Conditioner
	if !b.cfg.DisableConditioner {
		conditioner = audio.NewConditioner(b.cfg.Conditioner)
	}

	pacer := newFramePacer(b.cfg.FrameBytes)
	var (
		ticker      *time.Ticker
		tickCh      <-chan time.Time
		greetCh     <-chan time.Time
		speaking    bool
		greetingSet bool
		writerDown  bool
	)

	startPacer := func() {
		if writerDown || ticker != nil {
			return
		}
		ticker = time.NewTicker(b.cfg.FrameInterval)
		tickCh = ticker.C
	}
	stopPacer := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickCh = nil
		}
	}
	defer stopPacer()

	sendNormal := func(payload []byte) {
		select {
		case b.outboundNormal <- outboundFrame{payload: payload}:
		default:
			b.logger.Debug("outbound media queue full, frame dropped")
		}
	}
	sendPriority := func(payload []byte) {
		select {
		case b.outboundPriority <- outboundFrame{payload: payload}:
		default:
			b.logger.Debug("outbound priority queue full, frame dropped")
		}
	}

	// haltPlayback flushes the in-flight partial frame, discards the rest of
	// the buffer, and tells the telephony leg to wipe whatever it already
	// queued. Used for barge-in and as the new-turn safety net.
	haltPlayback := func(clear bool) {
		if frame, ok := pacer.Flush(); ok {
			sendPriority(telephony.MediaFrame(b.sess.StreamSID, frame))
		}
		stopPacer()
		if clear {
			sendPriority(telephony.ClearFrame(b.sess.StreamSID))
		}
	}

	sendGreeting := func() error {
		if greetingSet {
			return nil
		}
		greetingSet = true
		if err := leg.CreateItem(b.ctx, conversationItem{
			Type:    "message",
			Role:    "user",
			Content: []contentPart{{Type: "input_text", Text: greetingTrigger}},
		}); err != nil {
			return fmt.Errorf("send greeting item: %w", err)
		}
		if err := leg.CreateResponse(b.ctx); err != nil {
			return fmt.Errorf("request greeting response: %w", err)
		}
		b.setState(StateGreetingSent)
		return nil
	}

	configure := func() error {
		settings := sessionSettings{
			Modalities:              []string{"text", "audio"},
			Instructions:            b.cfg.Instructions,
			Voice:                   b.cfg.Voice,
			InputAudioFormat:        "pcm16",
			OutputAudioFormat:       "pcm16",
			InputAudioTranscription: &audioTranscription{Model: "whisper-1"},
			TurnDetection: &turnDetection{
				Type:              "server_vad",
				Threshold:         0.5,
				PrefixPaddingMS:   300,
				SilenceDurationMS: 500,
			},
			Tools:       b.tools.Definitions(),
			Temperature: 0.8,
		}
		if err := leg.UpdateSession(b.ctx, settings); err != nil {
			return fmt.Errorf("configure session: %w", err)
		}
		b.setState(StateConfiguring)
		return nil
	}

	dispatchTool := func(ev RealtimeEvent) {
		args := map[string]any{}
		if strings.TrimSpace(ev.ToolArgs) != "" {
			if err := json.Unmarshal([]byte(ev.ToolArgs), &args); err != nil {
				b.logger.Warn("malformed tool arguments", "tool", ev.ToolName, "error", err)
				args = map[string]any{}
			}
		}
		call := tools.Call{
			CallSID:    b.sess.CallSID,
			TenantID:   b.sess.TenantID,
			FromNumber: b.sess.From,
			ToNumber:   b.sess.To,
			Arguments:  args,
		}
		go func() {
			// Dispatch outlives teardown; a late result is discarded below,
			// not awaited.
			dispatchCtx, cancel := context.WithTimeout(context.Background(), toolDispatchTimeout)
			defer cancel()

			payload, err := b.tools.Dispatch(dispatchCtx, ev.ToolName, call)
			if err != nil {
				payload = map[string]any{"error": err.Error()}
			}
			select {
			case b.toolResults <- toolResult{callID: ev.ToolCallID, payload: payload}:
			case <-b.ctx.Done():
			}
		}()
	}

	handleEvent := func(ev RealtimeEvent) error {
		switch ev.Type {
		case "session.created":
			if ev.SessionID != "" {
				b.sess.SetAISessionID(ev.SessionID)
			}
			return configure()

		case "session.updated":
			// Confirmations can repeat or arrive out of order; arm the
			// greeting exactly once.
			if greetCh == nil && !greetingSet {
				greetCh = time.After(b.cfg.GreetingDelay)
			}
			b.setState(StateReady)

		case "response.created":
			// Unconditionally halt residue from the previous turn, whether or
			// not a speech_started event was observed.
			haltPlayback(false)
			speaking = true
			b.setState(StateActive)

		case "response.audio.delta":
			pcm := audio.Downsample3x(audio.BytesToPCM(ev.Audio))
			if conditioner != nil {
				pcm = conditioner.Process(pcm)
			}
			pacer.Append(audio.EncodeMuLaw(pcm))
			startPacer()

		case "response.audio_transcript.done":
			if ev.Transcript != "" {
				b.sess.AppendTranscript("AI: " + ev.Transcript)
			}

		case "conversation.item.input_audio_transcription.completed":
			if ev.Transcript != "" {
				b.sess.AppendTranscript("Caller: " + ev.Transcript)
			}

		case "input_audio_buffer.speech_started":
			if speaking {
				haltPlayback(true)
				speaking = false
			}

		case "response.done":
			speaking = false

		case "response.function_call_arguments.done":
			dispatchTool(ev)

		case "error":
			b.logger.Warn("ai transport error", "message", ev.ErrMessage)
		}
		return nil
	}

	for {
		select {
		case <-b.closing:
			// Flush lands in the priority queue before the writer sees the
			// cancel, so its shutdown drain always carries it out.
			haltPlayback(false)
			b.cancel()
			if writerErrCh != nil {
				<-writerErrCh
			}
			b.setState(StateClosed)
			return nil

		case <-b.ctx.Done():
			b.setState(StateClosed)
			return nil

		case err := <-writerErrCh:
			if err != nil {
				// A dead telephony writer degrades audio, not the session.
				b.logger.Warn("telephony writer stopped", "error", err)
			}
			writerDown = true
			stopPacer()
			pacer.Reset()
			writerErrCh = nil

		case ev, ok := <-leg.Events():
			if !ok {
				select {
				case <-b.closing:
					b.cancel()
					b.setState(StateClosed)
					return nil
				case <-b.ctx.Done():
					b.setState(StateClosed)
					return nil
				default:
				}
				b.setState(StateError)
				reason := leg.FailureReason()
				if reason == "" {
					reason = "connection closed"
				}
				return fmt.Errorf("ai transport closed: %s", reason)
			}
			if err := handleEvent(ev); err != nil {
				b.setState(StateError)
				return err
			}

		case <-greetCh:
			greetCh = nil
			if err := sendGreeting(); err != nil {
				b.setState(StateError)
				return err
			}

		case <-tickCh:
			frame, ok := pacer.Tick()
			if !ok {
				stopPacer()
				continue
			}
			sendNormal(telephony.MediaFrame(b.sess.StreamSID, frame))
			if pacer.Pending() == 0 {
				stopPacer()
			}

		case mulaw := <-b.callerAudio:
			if b.State() < StateReady {
				continue
			}
			pcm := audio.Upsample3x(audio.DecodeMuLaw(mulaw))
			if err := leg.AppendAudio(b.ctx, audio.PCMToBytes(pcm)); err != nil {
				b.logger.Warn("failed to forward caller audio", "error", err)
			}

		case res := <-b.toolResults:
			output, err := json.Marshal(res.payload)
			if err != nil {
				output = []byte(`{"error":"failed to serialize tool result"}`)
			}
			if err := leg.CreateItem(b.ctx, conversationItem{
				Type:   "function_call_output",
				CallID: res.callID,
				Output: string(output),
			}); err != nil {
				b.logger.Warn("failed to send tool output", "error", err)
				continue
			}
			if err := leg.CreateResponse(b.ctx); err != nil {
				b.logger.Warn("failed to request post-tool response", "error", err)
			}
		}
	}
}
