package session

import (
	"strings"
	"sync"
	"time"
)

// CallSession is the shared record of one phone call. The stream handler
// creates and owns it; the bridge holds a reference for appending transcript
// lines and reading identifiers. Nothing else touches it.
type CallSession struct {
	CallSID   string
	StreamSID string
	TenantID  string
	From      string
	To        string
	StartedAt time.Time

	mu          sync.Mutex
	aiSessionID string
	transcript  []string
}

func NewCallSession(callSID, streamSID, tenantID string) *CallSession {
	return &CallSession{
		CallSID:   callSID,
		StreamSID: streamSID,
		TenantID:  tenantID,
		StartedAt: time.Now(),
	}
}

// AppendTranscript records one speaker-tagged utterance. Lines land in the
// order their source events complete, which may interleave caller and AI
// lines relative to wall clock.
func (c *CallSession) AppendTranscript(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	c.mu.Lock()
	c.transcript = append(c.transcript, line)
	c.mu.Unlock()
}

// Transcript returns a copy of the transcript so far.
func (c *CallSession) Transcript() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.transcript))
	copy(out, c.transcript)
	return out
}

func (c *CallSession) SetAISessionID(id string) {
	c.mu.Lock()
	c.aiSessionID = id
	c.mu.Unlock()
}

func (c *CallSession) AISessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aiSessionID
}

// Duration is the elapsed call time as of now.
func (c *CallSession) Duration(now time.Time) time.Duration {
	if c.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(c.StartedAt)
}
