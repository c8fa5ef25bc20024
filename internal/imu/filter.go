package imu

import (
	"math"
	"slices"
)

// biquad holds normalised second-order coefficients (a0 = 1).
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// butterworthLowPass designs a 2nd-order Butterworth low-pass section via
// the bilinear transform. A cutoff at or above Nyquist is pulled down to
// 0.9 of Nyquist.
func butterworthLowPass(cutoffHz, fs float64) biquad {
	nyq := fs / 2
	if cutoffHz >= nyq {
		cutoffHz = 0.9 * nyq
	}
	k := math.Tan(math.Pi * cutoffHz / fs)
	k2 := k * k
	norm := 1 / (1 + math.Sqrt2*k + k2)

	b0 := k2 * norm
	return biquad{
		b0: b0,
		b1: 2 * b0,
		b2: b0,
		a1: 2 * (k2 - 1) * norm,
		a2: (1 - math.Sqrt2*k + k2) * norm,
	}
}

// steadyState returns the transposed direct-form II state for a unit step
// input that has settled.
func (f biquad) steadyState() (z1, z2 float64) {
	y := (f.b0 + f.b1 + f.b2) / (1 + f.a1 + f.a2)
	z2 = f.b2 - f.a2*y
	z1 = f.b1 - f.a1*y + z2
	return z1, z2
}

// apply runs the filter forward over x, starting from the settled state
// for x[0].
func (f biquad) apply(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	s1, s2 := f.steadyState()
	z1, z2 := s1*x[0], s2*x[0]
	for i, v := range x {
		y := f.b0*v + z1
		z1 = f.b1*v - f.a1*y + z2
		z2 = f.b2*v - f.a2*y
		out[i] = y
	}
	return out
}

// padLen is the number of odd-reflected samples added on each side before
// zero-phase filtering.
const padLen = 9

// LowPass applies a zero-phase (forward-backward) 2nd-order Butterworth
// low-pass filter to x. Series too short to pad are returned unchanged.
func LowPass(x []float64, cutoffHz, fs float64) []float64 {
	n := len(x)
	if n <= padLen || fs <= 0 || cutoffHz <= 0 {
		return slices.Clone(x)
	}
	f := butterworthLowPass(cutoffHz, fs)

	ext := make([]float64, 0, n+2*padLen)
	for i := padLen; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-padLen; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	y := f.apply(ext)
	slices.Reverse(y)
	y = f.apply(y)
	slices.Reverse(y)
	return y[padLen : padLen+n]
}

// gradient is the second-order central difference of x with unit spacing,
// one-sided at the ends.
func gradient(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	switch {
	case n < 2:
		return out
	case n == 2:
		out[0] = x[1] - x[0]
		out[1] = out[0]
		return out
	}
	out[0] = x[1] - x[0]
	out[n-1] = x[n-1] - x[n-2]
	for i := 1; i < n-1; i++ {
		out[i] = (x[i+1] - x[i-1]) / 2
	}
	return out
}

// unwrap removes jumps larger than half of period by adding multiples of
// period.
func unwrap(x []float64, period float64) []float64 {
	out := slices.Clone(x)
	offset := 0.0
	for i := 1; i < len(x); i++ {
		d := x[i] - x[i-1]
		if math.Abs(d) > period/2 {
			offset -= period * math.Round(d/period)
		}
		out[i] = x[i] + offset
	}
	return out
}

func clip(x []float64, limit float64) {
	for i, v := range x {
		x[i] = math.Max(-limit, math.Min(limit, v))
	}
}

func roundTo(x []float64, decimals int) {
	p := math.Pow(10, float64(decimals))
	for i, v := range x {
		x[i] = math.Round(v*p) / p
	}
}
