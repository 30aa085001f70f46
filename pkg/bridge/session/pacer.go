package session

import "github.com/vango-go/vai-bridge/pkg/audio"

// framePacer buffers bursty encoded audio and hands it out one fixed-size
// frame per tick. The run loop owns the tick timer; the pacer only manages
// bytes so the timing policy stays testable.
type framePacer struct {
	frameBytes int
	buf        []byte
}

func newFramePacer(frameBytes int) *framePacer {
	if frameBytes <= 0 {
		frameBytes = defaultFrameBytes
	}
	return &framePacer{frameBytes: frameBytes}
}

func (p *framePacer) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	p.buf = append(p.buf, data...)
}

func (p *framePacer) Pending() int {
	return len(p.buf)
}

// Tick removes exactly one frame. A short remainder is padded with silence
// rather than held back, so latency never accumulates. Returns false only
// when the buffer is empty (the caller pauses the timer then).
func (p *framePacer) Tick() ([]byte, bool) {
	if len(p.buf) == 0 {
		return nil, false
	}
	if len(p.buf) >= p.frameBytes {
		frame := make([]byte, p.frameBytes)
		copy(frame, p.buf[:p.frameBytes])
		p.buf = p.buf[p.frameBytes:]
		return frame, true
	}
	frame := p.pad(p.buf)
	p.buf = nil
	return frame, true
}

// Flush emits at most one silence-padded frame from the head of the buffer
// and discards the rest. Used on teardown and barge-in so a cut never drops
// the in-flight partial frame but also never replays stale audio.
func (p *framePacer) Flush() ([]byte, bool) {
	if len(p.buf) == 0 {
		return nil, false
	}
	head := p.buf
	if len(head) > p.frameBytes {
		head = head[:p.frameBytes]
	}
	frame := p.pad(head)
	p.buf = nil
	return frame, true
}

// Reset discards everything buffered.
func (p *framePacer) Reset() {
	p.buf = nil
}

func (p *framePacer) pad(data []byte) []byte {
	frame := make([]byte, p.frameBytes)
	copy(frame, data)
	for i := len(data); i < p.frameBytes; i++ {
		frame[i] = audio.MuLawSilence
	}
	return frame
}
