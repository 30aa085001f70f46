// Package telephony defines the media-stream wire protocol spoken by the
// telephony leg: inbound lifecycle/media events and the outbound frame
// builders used to push audio back to the caller.
package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
	EventError     = "error"
)

const (
	TrackInbound  = "inbound"
	TrackOutbound = "outbound"
)

// Message is one inbound JSON frame. Depending on the transport's
// configuration the start identifiers arrive either nested under Start or at
// the top level, so both are kept.
type Message struct {
	Event     string `json:"event"`
	CallSID   string `json:"callSid,omitempty"`
	StreamSID string `json:"streamSid,omitempty"`

	Start *StartPayload `json:"start,omitempty"`
	Media *MediaPayload `json:"media,omitempty"`
	Stop  *StopPayload  `json:"stop,omitempty"`
}

type StartPayload struct {
	CallSID          string            `json:"callSid"`
	StreamSID        string            `json:"streamSid"`
	AccountSID       string            `json:"accountSid,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

type StopPayload struct {
	CallSID string `json:"callSid,omitempty"`
}

// StartInfo is the normalized identity of a new stream.
type StartInfo struct {
	CallSID   string
	StreamSID string
	Params    map[string]string
}

func (s StartInfo) Param(name string) string {
	return strings.TrimSpace(s.Params[name])
}

func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("parse stream message: %w", err)
	}
	if strings.TrimSpace(msg.Event) == "" {
		return Message{}, fmt.Errorf("stream message missing event")
	}
	return msg, nil
}

// StartInfo extracts call/stream identifiers from a start event. The nested
// start object is authoritative when present; top-level fields fill any gaps
// (both layouts occur across transport versions).
func (m Message) StartInfo() (StartInfo, error) {
	info := StartInfo{
		CallSID:   strings.TrimSpace(m.CallSID),
		StreamSID: strings.TrimSpace(m.StreamSID),
		Params:    map[string]string{},
	}
	if m.Start != nil {
		if v := strings.TrimSpace(m.Start.CallSID); v != "" {
			info.CallSID = v
		}
		if v := strings.TrimSpace(m.Start.StreamSID); v != "" {
			info.StreamSID = v
		}
		for k, v := range m.Start.CustomParameters {
			info.Params[k] = v
		}
	}
	if info.CallSID == "" {
		return StartInfo{}, fmt.Errorf("start event missing callSid")
	}
	if info.StreamSID == "" {
		return StartInfo{}, fmt.Errorf("start event missing streamSid")
	}
	return info, nil
}

// InboundAudio reports whether a media payload carries caller audio. Frames
// without a track tag are treated as inbound; the tag is not always present.
func (m Message) InboundAudio() bool {
	if m.Event != EventMedia || m.Media == nil {
		return false
	}
	track := strings.TrimSpace(m.Media.Track)
	return track == "" || track == TrackInbound
}

// AudioPayload decodes the base64 companded audio of a media event.
func (m Message) AudioPayload() ([]byte, error) {
	if m.Media == nil || strings.TrimSpace(m.Media.Payload) == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(m.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode media payload: %w", err)
	}
	return data, nil
}

type outboundMedia struct {
	Event     string           `json:"event"`
	StreamSID string           `json:"streamSid"`
	Media     outboundMediaPay `json:"media"`
}

type outboundMediaPay struct {
	Payload string `json:"payload"`
}

type outboundControl struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

// MediaFrame builds one outbound audio frame for a stream.
func MediaFrame(streamSID string, payload []byte) []byte {
	data, _ := json.Marshal(outboundMedia{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     outboundMediaPay{Payload: base64.StdEncoding.EncodeToString(payload)},
	})
	return data
}

// ClearFrame builds the control frame that flushes the transport's buffered
// playback, used on barge-in.
func ClearFrame(streamSID string) []byte {
	data, _ := json.Marshal(outboundControl{
		Event:     "clear",
		StreamSID: streamSID,
	})
	return data
}
