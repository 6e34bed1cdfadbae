// Package voice implements the simplified ACELP-style frame decoder from
// spec.md §4.F: a 137-bit frame is unpacked into LPC coefficients, pitch
// parameters, and a fixed-codebook excitation, synthesized into 160
// samples of 8 kHz PCM.
package voice

import "math"

const (
	FrameBits   = 137
	FrameSize   = 160 // samples per frame
	LPCOrder    = 10
	deEmphasis  = 0.95
	pcmScale    = 16384.0
)

// bit field offsets/widths from spec.md §4.F.
const (
	lpcOffset, lpcWidth               = 0, 30
	pitchPeriodOffset, pitchPeriodW   = 30, 7
	pitchGainOffset, pitchGainW       = 37, 4
	codebookOffset, codebookW         = 41, 52
	fixedGainOffset, fixedGainW       = 93, 10
)

// extractBits reads numBits starting at startBit (MSB-first) from a byte
// slice, matching the reference layout in spec.md §4.F.
func extractBits(data []byte, startBit, numBits int) uint64 {
	var result uint64
	for i := 0; i < numBits; i++ {
		bitIdx := startBit + i
		byteIdx := bitIdx / 8
		shift := 7 - (bitIdx % 8)
		bit := (data[byteIdx] >> uint(shift)) & 1
		result = (result << 1) | uint64(bit)
	}
	return result
}

// Decoder holds the per-pipeline voice decoder state (spec.md §3): the
// previous frame's samples and excitation, and a running frame counter.
// It must be reused across frames of the same call — it is not safe for
// concurrent use.
type Decoder struct {
	prevSamples   [FrameSize]float64
	prevExcite    [FrameSize]float64
	lpcCoeffs     [LPCOrder]float64
	pitchPeriod   float64
	pitchGain     float64
	frameCounter  uint64
}

// NewDecoder returns a decoder with zeroed history, ready for the first
// frame of a call.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// decodeLPC splits the 30-bit LPC field into ten 3-bit values, group i
// at bit offset i*3 (LSB-first), each mapped to a coefficient in
// [-0.875, 0.875] via (value-3.5)/4.
func decodeLPC(bits uint64) [LPCOrder]float64 {
	var coeffs [LPCOrder]float64
	for i := 0; i < LPCOrder; i++ {
		shift := uint(i * 3)
		value := (bits >> shift) & 0x7
		coeffs[i] = (float64(value) - 3.5) / 4.0
	}
	return coeffs
}

// generateExcitation places four pulses into a fresh FrameSize buffer per
// spec.md §4.F: position = (cb>>(6p))&0x3F mod 160, sign from bit 6p+6.
func generateExcitation(codebook uint64, fixedGain float64) [FrameSize]float64 {
	var excitation [FrameSize]float64
	for p := 0; p < 4; p++ {
		pos := int((codebook>>(6*uint(p)))&0x3F) % FrameSize
		signBit := (codebook >> uint(6*p+6)) & 1
		sign := -1.0
		if signBit == 1 {
			sign = 1.0
		}
		excitation[pos] += sign * fixedGain
	}
	return excitation
}

// Decode implements spec.md §4.F end to end: field extraction, LPC and
// pitch decode, excitation generation, adaptive (pitch) contribution, LPC
// synthesis, de-emphasis, and int16 PCM clipping. frame must be at least
// ceil(137/8) = 18 bytes, MSB-first packed.
func (d *Decoder) Decode(frame []byte) [FrameSize]int16 {
	lpcBits := extractBits(frame, lpcOffset, lpcWidth)
	periodIdx := extractBits(frame, pitchPeriodOffset, pitchPeriodW)
	gainIdx := extractBits(frame, pitchGainOffset, pitchGainW)
	codebook := extractBits(frame, codebookOffset, codebookW)
	fixedGainIdx := extractBits(frame, fixedGainOffset, fixedGainW)

	d.lpcCoeffs = decodeLPC(lpcBits)
	d.pitchPeriod = 20.0 + 0.5*float64(periodIdx)
	d.pitchGain = float64(gainIdx) / 15.0
	fixedGain := math.Pow(10, (float64(fixedGainIdx)-512)/400)

	excitation := generateExcitation(codebook, fixedGain)

	// Adaptive (pitch) contribution, per spec.md §4.F.
	pitchFloor := int(math.Floor(d.pitchPeriod))
	var adapted [FrameSize]float64
	for n := 0; n < FrameSize; n++ {
		idx := n - pitchFloor
		if idx >= 0 {
			adapted[n] = excitation[n] + d.pitchGain*excitation[idx]
		} else {
			adapted[n] = excitation[n] + d.pitchGain*d.prevExcite[FrameSize+idx]
		}
	}
	d.prevExcite = adapted

	// LPC synthesis, substituting previous-frame samples when n-k-1 < 0.
	var y [FrameSize]float64
	for n := 0; n < FrameSize; n++ {
		var prediction float64
		for k := 0; k < LPCOrder; k++ {
			histIdx := n - k - 1
			if histIdx >= 0 {
				prediction += d.lpcCoeffs[k] * y[histIdx]
			} else {
				prediction += d.lpcCoeffs[k] * d.prevSamples[FrameSize+histIdx]
			}
		}
		v := adapted[n] + prediction
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		y[n] = v
	}

	// De-emphasis, applied in reverse index order.
	for i := FrameSize - 1; i > 0; i-- {
		y[i] += deEmphasis * y[i-1]
	}

	d.prevSamples = y
	d.frameCounter++

	var pcm [FrameSize]int16
	for n := 0; n < FrameSize; n++ {
		scaled := math.Round(y[n] * pcmScale)
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		pcm[n] = int16(scaled)
	}
	return pcm
}

// FrameCount reports how many frames this decoder instance has decoded.
func (d *Decoder) FrameCount() uint64 {
	return d.frameCounter
}
