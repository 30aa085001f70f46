package session

import (
	"testing"

	"github.com/vango-go/vai-bridge/pkg/audio"
)

func TestPacerEmitsFixedSizeFrames(t *testing.T) {
	p := newFramePacer(160)

	// Bursty appends of ragged sizes.
	appended := 0
	for _, n := range []int{1, 159, 160, 161, 320, 7} {
		chunk := make([]byte, n)
		for i := range chunk {
			chunk[i] = byte(n)
		}
		p.Append(chunk)
		appended += n
	}

	emitted := 0
	for {
		frame, ok := p.Tick()
		if !ok {
			break
		}
		if len(frame) != 160 {
			t.Fatalf("frame size = %d, want 160", len(frame))
		}
		emitted += len(frame)
	}
	if emitted < appended {
		t.Errorf("emitted %d bytes < appended %d: padding must never truncate", emitted, appended)
	}
}

func TestPacerPadsShortRemainder(t *testing.T) {
	p := newFramePacer(160)
	p.Append(make([]byte, 100))

	frame, ok := p.Tick()
	if !ok || len(frame) != 160 {
		t.Fatalf("frame = %d bytes, ok=%v", len(frame), ok)
	}
	for i := 100; i < 160; i++ {
		if frame[i] != audio.MuLawSilence {
			t.Fatalf("frame[%d] = %#02x, want silence padding", i, frame[i])
		}
	}
	if _, ok := p.Tick(); ok {
		t.Error("empty pacer should not tick")
	}
}

func TestPacerEmptyPausesNotPads(t *testing.T) {
	p := newFramePacer(160)
	if _, ok := p.Tick(); ok {
		t.Fatal("empty buffer must yield no frame, not continuous silence")
	}
	if p.Pending() != 0 {
		t.Fatalf("Pending = %d", p.Pending())
	}
}

func TestPacerFlushEmitsPartialAndDiscardsRest(t *testing.T) {
	p := newFramePacer(160)
	p.Append(make([]byte, 500))

	frame, ok := p.Flush()
	if !ok || len(frame) != 160 {
		t.Fatalf("flush frame = %d bytes, ok=%v", len(frame), ok)
	}
	if p.Pending() != 0 {
		t.Errorf("Pending after flush = %d, want 0", p.Pending())
	}
	if _, ok := p.Tick(); ok {
		t.Error("no frames may be emitted from the pre-flush buffer")
	}
}

func TestPacerFlushOfEmptyBuffer(t *testing.T) {
	p := newFramePacer(160)
	if _, ok := p.Flush(); ok {
		t.Error("flush of empty buffer should emit nothing")
	}
}

func TestPacerReset(t *testing.T) {
	p := newFramePacer(160)
	p.Append(make([]byte, 480))
	p.Reset()
	if p.Pending() != 0 {
		t.Errorf("Pending after reset = %d", p.Pending())
	}
}
