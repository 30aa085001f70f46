package audio

// Upsample3x converts 8 kHz PCM to 24 kHz using Catmull-Rom interpolation.
// Every input sample produces exactly three output samples, the first of
// which equals the input sample. Edge samples reuse the nearest real sample.
func Upsample3x(in []int16) []int16 {
	if len(in) == 0 {
		return nil
	}
	out := make([]int16, len(in)*3)
	for i := range in {
		p1 := float64(in[i])
		p0 := float64(in[clampIndex(i-1, len(in))])
		p2 := float64(in[clampIndex(i+1, len(in))])
		p3 := float64(in[clampIndex(i+2, len(in))])

		out[i*3] = in[i]
		out[i*3+1] = clampPCM(catmullRom(p0, p1, p2, p3, 1.0/3.0))
		out[i*3+2] = clampPCM(catmullRom(p0, p1, p2, p3, 2.0/3.0))
	}
	return out
}

// Downsample3x converts 24 kHz PCM to 8 kHz with a 3-tap weighted average
// (0.25/0.5/0.25) around each decimation center to reduce aliasing.
func Downsample3x(in []int16) []int16 {
	n := len(in) / 3
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		center := i*3 + 1
		prev := float64(in[clampIndex(center-1, len(in))])
		cur := float64(in[center])
		next := float64(in[clampIndex(center+1, len(in))])
		out[i] = clampPCM(0.25*prev + 0.5*cur + 0.25*next)
	}
	return out
}

// catmullRom evaluates the cubic Hermite spline through p1..p2 at t in [0,1].
func catmullRom(p0, p1, p2, p3, t float64) float64 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * ((2 * p1) +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func clampPCM(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
