package audio

import (
	"math"
	"math/rand/v2"
)

// ConditionerConfig toggles the individual stages of the outbound pipeline.
// Conditioning is only applied to synthesized audio headed to the caller;
// caller audio headed upstream is forwarded untouched so the provider's own
// speech-boundary detection sees the raw signal.
type ConditionerConfig struct {
	HighPass  bool
	LowPass   bool
	Limiter   bool
	DCRemoval bool
	Dither    bool

	SampleRate       int     // defaults to 8000
	HighPassCutoffHz float64 // defaults to 100
	LowPassCutoffHz  float64 // defaults to 3400
	LimiterCeiling   float64 // fraction of full scale, defaults to 0.85
	DCNoiseFloor     float64 // minimum offset before removal kicks in, defaults to 100
}

// DefaultConditionerConfig enables every stage at telephony-appropriate settings.
func DefaultConditionerConfig() ConditionerConfig {
	return ConditionerConfig{
		HighPass:  true,
		LowPass:   true,
		Limiter:   true,
		DCRemoval: true,
		Dither:    true,
	}
}

// Conditioner cleans up resampled synthesized audio before μ-law encoding.
// Filter history carries across buffers, so one Conditioner belongs to one
// call and must not be shared.
type Conditioner struct {
	cfg ConditionerConfig

	hpAlpha  float64
	hpPrevIn float64
	hpPrev   float64

	lpAlpha float64
	lpPrev  float64

	dcMean float64
	dcInit bool
}

func NewConditioner(cfg ConditionerConfig) *Conditioner {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 8000
	}
	if cfg.HighPassCutoffHz <= 0 {
		cfg.HighPassCutoffHz = 100
	}
	if cfg.LowPassCutoffHz <= 0 {
		cfg.LowPassCutoffHz = 3400
	}
	if cfg.LimiterCeiling <= 0 || cfg.LimiterCeiling > 1 {
		cfg.LimiterCeiling = 0.85
	}
	if cfg.DCNoiseFloor <= 0 {
		cfg.DCNoiseFloor = 100
	}

	dt := 1.0 / float64(cfg.SampleRate)
	hpRC := 1.0 / (2 * math.Pi * cfg.HighPassCutoffHz)
	lpRC := 1.0 / (2 * math.Pi * cfg.LowPassCutoffHz)

	return &Conditioner{
		cfg:     cfg,
		hpAlpha: hpRC / (hpRC + dt),
		lpAlpha: dt / (lpRC + dt),
	}
}

// Process runs the enabled stages over samples in place and returns the slice.
func (c *Conditioner) Process(samples []int16) []int16 {
	if c == nil || len(samples) == 0 {
		return samples
	}
	if c.cfg.HighPass {
		c.highPass(samples)
	}
	if c.cfg.LowPass {
		c.lowPass(samples)
	}
	if c.cfg.Limiter {
		c.limit(samples)
	}
	if c.cfg.DCRemoval {
		c.removeDC(samples)
	}
	if c.cfg.Dither {
		c.dither(samples)
	}
	return samples
}

func (c *Conditioner) highPass(samples []int16) {
	for i, s := range samples {
		x := float64(s)
		y := c.hpAlpha * (c.hpPrev + x - c.hpPrevIn)
		c.hpPrevIn = x
		c.hpPrev = y
		samples[i] = clampPCM(y)
	}
}

func (c *Conditioner) lowPass(samples []int16) {
	for i, s := range samples {
		c.lpPrev += c.lpAlpha * (float64(s) - c.lpPrev)
		samples[i] = clampPCM(c.lpPrev)
	}
}

// limit scales the whole buffer down when its peak exceeds the ceiling.
// Below the ceiling the signal passes at unity gain.
func (c *Conditioner) limit(samples []int16) {
	peak := 0.0
	for _, s := range samples {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
	}
	ceiling := c.cfg.LimiterCeiling * 32767
	if peak <= ceiling {
		return
	}
	scale := ceiling / peak
	for i, s := range samples {
		samples[i] = clampPCM(float64(s) * scale)
	}
}

// removeDC subtracts a trailing-window mean, but only once the offset clears
// the noise floor; clean audio passes untouched.
func (c *Conditioner) removeDC(samples []int16) {
	sum := 0.0
	for _, s := range samples {
		sum += float64(s)
	}
	mean := sum / float64(len(samples))
	if !c.dcInit {
		c.dcMean = mean
		c.dcInit = true
	} else {
		c.dcMean = 0.9*c.dcMean + 0.1*mean
	}
	if math.Abs(c.dcMean) < c.cfg.DCNoiseFloor {
		return
	}
	offset := c.dcMean
	for i, s := range samples {
		samples[i] = clampPCM(float64(s) - offset)
	}
}

// dither adds ±1 LSB triangular noise to mask requantization artifacts.
func (c *Conditioner) dither(samples []int16) {
	for i, s := range samples {
		noise := (rand.Float64() + rand.Float64()) - 1.0
		samples[i] = clampPCM(float64(s) + noise)
	}
}
