// Package summary condenses a call transcript into a short note stored with
// the call record.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/genai"
)

const (
	defaultModel = "gemini-2.5-flash"

	fallbackTailLines = 5
	fallbackMaxChars  = 500
)

// Summarizer produces call summaries with a generative model, falling back
// to the transcript tail when unconfigured or when the model call fails.
// Summarize never returns an error; teardown must not fail on summaries.
type Summarizer struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// New builds a Summarizer. An empty API key yields a fallback-only instance.
func New(ctx context.Context, apiKey string, logger *slog.Logger) (*Summarizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Summarizer{model: defaultModel, logger: logger}
	if strings.TrimSpace(apiKey) == "" {
		return s, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init summary client: %w", err)
	}
	s.client = client
	return s, nil
}

func (s *Summarizer) Summarize(ctx context.Context, transcript []string) string {
	if len(transcript) == 0 {
		return ""
	}
	if s == nil || s.client == nil {
		return TailSummary(transcript)
	}

	genCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	prompt := "Summarize this phone call in two sentences or less. Note the caller's need and any follow-up that was arranged.\n\n" +
		strings.Join(transcript, "\n")
	resp, err := s.client.Models.GenerateContent(genCtx, s.model, genai.Text(prompt), nil)
	if err != nil {
		s.logger.Warn("summary generation failed, using transcript tail", "error", err)
		return TailSummary(transcript)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return TailSummary(transcript)
	}
	return clamp(text, fallbackMaxChars)
}

// TailSummary joins the last few transcript lines, capped for storage.
func TailSummary(transcript []string) string {
	start := len(transcript) - fallbackTailLines
	if start < 0 {
		start = 0
	}
	return clamp(strings.Join(transcript[start:], " "), fallbackMaxChars)
}

// clamp cuts s to at most max bytes without splitting a UTF-8 sequence.
func clamp(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
