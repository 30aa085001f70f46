package audio

import (
	"math"
	"testing"
)

func sine(n int, freqHz, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/8000))
	}
	return out
}

func TestConditionerDisabledStagesPassThrough(t *testing.T) {
	c := NewConditioner(ConditionerConfig{})
	in := sine(320, 300, 8000)
	want := make([]int16, len(in))
	copy(want, in)

	got := c.Process(in)
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("sample %d changed with all stages disabled: %d != %d", i, got[i], want[i])
		}
	}
}

func TestLimiterOnlyEngagesAbovePeak(t *testing.T) {
	c := NewConditioner(ConditionerConfig{Limiter: true})

	quiet := sine(160, 300, 10000)
	wantQuiet := make([]int16, len(quiet))
	copy(wantQuiet, quiet)
	c.Process(quiet)
	for i := range quiet {
		if quiet[i] != wantQuiet[i] {
			t.Fatalf("limiter altered sub-ceiling audio at %d", i)
		}
	}

	loud := sine(160, 300, 32600)
	c.Process(loud)
	ceiling := int16(math.Ceil(0.85 * 32767))
	for i, s := range loud {
		if s > ceiling || s < -ceiling {
			t.Fatalf("sample %d = %d exceeds limiter ceiling", i, s)
		}
	}
}

func TestHighPassRemovesDCOffset(t *testing.T) {
	c := NewConditioner(ConditionerConfig{HighPass: true})
	in := make([]int16, 8000)
	for i := range in {
		in[i] = 5000 // pure DC
	}
	out := c.Process(in)

	// By the tail of one second the filter should have drained the offset.
	tail := out[len(out)-100:]
	sum := 0.0
	for _, s := range tail {
		sum += float64(s)
	}
	if mean := sum / float64(len(tail)); math.Abs(mean) > 100 {
		t.Fatalf("tail mean = %v, want near zero after high-pass", mean)
	}
}

func TestDCRemovalSkipsCleanAudio(t *testing.T) {
	c := NewConditioner(ConditionerConfig{DCRemoval: true})
	in := sine(320, 300, 8000) // zero-mean
	want := make([]int16, len(in))
	copy(want, in)
	c.Process(in)
	for i := range in {
		if in[i] != want[i] {
			t.Fatalf("dc removal touched clean audio at %d", i)
		}
	}
}

func TestDitherStaysWithinOneLSB(t *testing.T) {
	c := NewConditioner(ConditionerConfig{Dither: true})
	in := sine(320, 300, 8000)
	want := make([]int16, len(in))
	copy(want, in)
	c.Process(in)
	for i := range in {
		if d := int(in[i]) - int(want[i]); d > 1 || d < -1 {
			t.Fatalf("dither moved sample %d by %d", i, d)
		}
	}
}

func TestLowPassPreservesLength(t *testing.T) {
	c := NewConditioner(ConditionerConfig{LowPass: true})
	in := sine(480, 3000, 12000)
	if got := len(c.Process(in)); got != 480 {
		t.Fatalf("length = %d, want 480", got)
	}
}
