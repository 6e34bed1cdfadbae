// Package dsp holds the scalar signal-processing primitives shared by the
// demodulator: byte-to-float conversion, quadrature demodulation, a
// first-order low-pass filter, and RMS signal strength.
package dsp

import "math"

// SplitIQ converts an interleaved I,Q byte stream (each sample in [0,255],
// centered at 127.5) into separate I and Q float64 buffers. The input must
// have even length; len(iq)/2 samples are produced in each output.
func SplitIQ(iq []byte) (i, q []float64) {
	n := len(iq) / 2
	i = make([]float64, n)
	q = make([]float64, n)
	for k := 0; k < n; k++ {
		i[k] = float64(iq[2*k]) - 127.5
		q[k] = float64(iq[2*k+1]) - 127.5
	}
	return i, q
}

// QuadratureDemod computes the instantaneous-phase derivative of an I/Q
// pair sequence, unwrapped into (-pi, pi]. prevPhase is the phase assumed
// to precede i[0], q[0] (0 for a fresh stream) and is returned so the
// caller can carry it across calls.
func QuadratureDemod(i, q []float64, prevPhase float64) (out []float64, lastPhase float64) {
	out = make([]float64, len(i))
	phase := prevPhase
	for n := range i {
		cur := math.Atan2(q[n], i[n])
		d := cur - phase
		for d > math.Pi {
			d -= 2 * math.Pi
		}
		for d <= -math.Pi {
			d += 2 * math.Pi
		}
		out[n] = d
		phase = cur
	}
	return out, phase
}

// LowPass applies a first-order IIR filter y[n] = a*x[n] + (1-a)*y[n-1],
// y[0] = x[0]. No filter state is carried between calls: every call
// starts afresh from its own first sample.
func LowPass(x []float64, alpha float64) []float64 {
	y := make([]float64, len(x))
	if len(x) == 0 {
		return y
	}
	y[0] = x[0]
	for n := 1; n < len(x); n++ {
		y[n] = alpha*x[n] + (1-alpha)*y[n-1]
	}
	return y
}

// RMSPower returns sqrt((sum(i^2) + sum(q^2)) / n). It is scale-invariant
// up to a constant factor: RMSPower(k*i, k*q) == |k| * RMSPower(i, q).
func RMSPower(i, q []float64) float64 {
	n := len(i)
	if n == 0 {
		return 0
	}
	var sum float64
	for k := 0; k < n; k++ {
		sum += i[k]*i[k] + q[k]*q[k]
	}
	return math.Sqrt(sum / float64(n))
}
