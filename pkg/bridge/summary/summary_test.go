package summary

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTailSummaryLastLines(t *testing.T) {
	transcript := []string{
		"AI: Hello, thanks for calling.",
		"Caller: Hi, my water heater is broken.",
		"AI: Sorry to hear that. Can I get your name?",
		"Caller: Jane Smith.",
		"AI: Thanks Jane. What's the address?",
		"Caller: 12 Elm Street.",
		"AI: Got it, someone will call you back today.",
	}
	got := TailSummary(transcript)
	if strings.Contains(got, "water heater") {
		t.Errorf("summary should only keep the last 5 lines, got %q", got)
	}
	if !strings.Contains(got, "12 Elm Street") {
		t.Errorf("summary missing tail content: %q", got)
	}
}

func TestTailSummaryShortTranscript(t *testing.T) {
	got := TailSummary([]string{"AI: Hello."})
	if got != "AI: Hello." {
		t.Errorf("summary = %q", got)
	}
}

func TestTailSummaryCapsLength(t *testing.T) {
	long := strings.Repeat("word ", 300)
	got := TailSummary([]string{long})
	if len(got) > 500 {
		t.Errorf("summary length = %d, want <= 500", len(got))
	}
}

func TestTailSummaryCapKeepsValidUTF8(t *testing.T) {
	// Multi-byte runes positioned so the byte cap lands mid-sequence.
	long := strings.Repeat("é", 300)
	got := TailSummary([]string{long})
	if len(got) > 500 {
		t.Fatalf("summary length = %d, want <= 500", len(got))
	}
	if !utf8.ValidString(got) {
		t.Error("capped summary contains a split rune")
	}
}

func TestSummarizeWithoutClientFallsBack(t *testing.T) {
	s, err := New(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	transcript := []string{"AI: Hello.", "Caller: Hi."}
	if got := s.Summarize(context.Background(), transcript); got != TailSummary(transcript) {
		t.Errorf("Summarize = %q, want tail fallback", got)
	}
	if got := s.Summarize(context.Background(), nil); got != "" {
		t.Errorf("empty transcript summary = %q, want empty", got)
	}
}
