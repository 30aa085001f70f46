package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// AI transport.
	OpenAIAPIKey    string
	RealtimeBaseURL string
	RealtimeModel   string
	Voice           string
	Instructions    string
	ConnectTimeout  time.Duration
	GreetingDelay   time.Duration

	// Persistence. Empty DatabaseURL selects the in-memory store.
	DatabaseURL string

	// Telephony REST credentials, used for SMS sends and the spoken
	// init-failure fallback. Optional; features degrade when unset.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Billing. Optional; reporting is skipped when unset.
	StripeKey   string
	StripeMeter string

	// Summarization. Optional; falls back to a transcript tail.
	GeminiAPIKey string

	// Sessions.
	MaxSessions   int
	PingInterval  time.Duration
	WriteTimeout  time.Duration
	FrameInterval time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("VAI_BRIDGE_ADDR", ":8080"),
		OpenAIAPIKey:        strings.TrimSpace(os.Getenv("VAI_BRIDGE_OPENAI_API_KEY")),
		RealtimeBaseURL:     envOr("VAI_BRIDGE_OPENAI_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeModel:       envOr("VAI_BRIDGE_OPENAI_MODEL", "gpt-4o-realtime-preview-2024-10-01"),
		Voice:               envOr("VAI_BRIDGE_OPENAI_VOICE", "alloy"),
		Instructions:        strings.TrimSpace(os.Getenv("VAI_BRIDGE_INSTRUCTIONS")),
		ConnectTimeout:      envDurationOr("VAI_BRIDGE_CONNECT_TIMEOUT", 10*time.Second),
		GreetingDelay:       envDurationOr("VAI_BRIDGE_GREETING_DELAY", time.Second),
		DatabaseURL:         strings.TrimSpace(os.Getenv("VAI_BRIDGE_DATABASE_URL")),
		TwilioAccountSID:    strings.TrimSpace(os.Getenv("VAI_BRIDGE_TWILIO_ACCOUNT_SID")),
		TwilioAuthToken:     strings.TrimSpace(os.Getenv("VAI_BRIDGE_TWILIO_AUTH_TOKEN")),
		TwilioFromNumber:    strings.TrimSpace(os.Getenv("VAI_BRIDGE_TWILIO_FROM_NUMBER")),
		StripeKey:           strings.TrimSpace(os.Getenv("VAI_BRIDGE_STRIPE_KEY")),
		StripeMeter:         envOr("VAI_BRIDGE_STRIPE_METER", "call_minutes"),
		GeminiAPIKey:        strings.TrimSpace(os.Getenv("VAI_BRIDGE_GEMINI_API_KEY")),
		MaxSessions:         envIntOr("VAI_BRIDGE_MAX_SESSIONS", 50),
		PingInterval:        envDurationOr("VAI_BRIDGE_WS_PING_INTERVAL", 20*time.Second),
		WriteTimeout:        envDurationOr("VAI_BRIDGE_WS_WRITE_TIMEOUT", 5*time.Second),
		FrameInterval:       envDurationOr("VAI_BRIDGE_FRAME_INTERVAL", 20*time.Millisecond),
		ReadHeaderTimeout:   envDurationOr("VAI_BRIDGE_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("VAI_BRIDGE_SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("VAI_BRIDGE_OPENAI_API_KEY must be set")
	}
	if !strings.HasPrefix(cfg.RealtimeBaseURL, "ws://") && !strings.HasPrefix(cfg.RealtimeBaseURL, "wss://") {
		return Config{}, fmt.Errorf("VAI_BRIDGE_OPENAI_REALTIME_URL must be a ws:// or wss:// URL")
	}
	if cfg.ConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("VAI_BRIDGE_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.GreetingDelay <= 0 {
		return Config{}, fmt.Errorf("VAI_BRIDGE_GREETING_DELAY must be > 0")
	}
	if cfg.MaxSessions <= 0 {
		return Config{}, fmt.Errorf("VAI_BRIDGE_MAX_SESSIONS must be > 0")
	}
	if cfg.PingInterval <= 0 {
		return Config{}, fmt.Errorf("VAI_BRIDGE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WriteTimeout <= 0 {
		return Config{}, fmt.Errorf("VAI_BRIDGE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.FrameInterval <= 0 {
		return Config{}, fmt.Errorf("VAI_BRIDGE_FRAME_INTERVAL must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VAI_BRIDGE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VAI_BRIDGE_SHUTDOWN_TIMEOUT must be > 0")
	}
	if (cfg.TwilioAccountSID == "") != (cfg.TwilioAuthToken == "") {
		return Config{}, fmt.Errorf("VAI_BRIDGE_TWILIO_ACCOUNT_SID and VAI_BRIDGE_TWILIO_AUTH_TOKEN must be set together")
	}
	if cfg.StripeKey != "" && strings.TrimSpace(cfg.StripeMeter) == "" {
		return Config{}, fmt.Errorf("VAI_BRIDGE_STRIPE_METER must not be empty when billing is enabled")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
