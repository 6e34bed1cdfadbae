// Package demod implements the symbol slicer and shared live-mutable
// parameter/status records described in spec.md §3/§4.B. A Demodulator
// converts a buffer of interleaved I/Q bytes into sliced bits, gated by
// squelch and reporting its findings through a Status block that the
// burst detector and operator panel both read.
package demod

import (
	"errors"
	"sync"
	"time"

	"github.com/letstrythisshit/tetrasdr/internal/dsp"
)

// BurstLen is the fixed capacity of a demodulator's bit buffer (spec.md §6).
const BurstLen = 510

// Nominal front-end rates (spec.md §6).
const (
	SampleRate = 2_400_000
	SymbolRate = 18_000
)

// SamplesPerSymbol is the fixed-rate decimation factor used to slice bits.
func SamplesPerSymbol(sampleRate, symbolRate int) float64 {
	return float64(sampleRate) / float64(symbolRate)
}

// Params holds the seven live-mutable detection parameters (spec.md §3),
// guarded by a single mutex. Zero value is not valid; use DefaultParams.
type Params struct {
	mu sync.Mutex

	minSignalPower      float64
	strongMatchThresh   int
	moderateMatchThresh int
	strongCorrelation   float64
	moderateCorrelation float64
	lowPassAlpha        float64
	moderatePowerMult   float64
}

// DefaultParams returns the panel "reset to defaults" values from spec.md §6.
func DefaultParams() *Params {
	p := &Params{}
	p.Reset()
	return p
}

// Reset restores the documented default values.
func (p *Params) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minSignalPower = 8.0
	p.strongMatchThresh = 20
	p.moderateMatchThresh = 19
	p.strongCorrelation = 0.8
	p.moderateCorrelation = 0.75
	p.lowPassAlpha = 0.5
	p.moderatePowerMult = 1.2
}

// Snapshot is an immutable copy of the current parameter values.
type Snapshot struct {
	MinSignalPower      float64
	StrongMatchThresh   int
	ModerateMatchThresh int
	StrongCorrelation   float64
	ModerateCorrelation float64
	LowPassAlpha        float64
	ModeratePowerMult   float64
}

// Snapshot returns the current values under the parameter mutex.
func (p *Params) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		MinSignalPower:      p.minSignalPower,
		StrongMatchThresh:   p.strongMatchThresh,
		ModerateMatchThresh: p.moderateMatchThresh,
		StrongCorrelation:   p.strongCorrelation,
		ModerateCorrelation: p.moderateCorrelation,
		LowPassAlpha:        p.lowPassAlpha,
		ModeratePowerMult:   p.moderatePowerMult,
	}
}

var errOutOfRange = errors.New("demod: value out of declared range")

// SetMinSignalPower accepts [0, +inf); a negative value is rejected with
// an error and the current value is kept. Negative power makes no physical sense.
func (p *Params) SetMinSignalPower(v float64) error {
	if v < 0 {
		return errOutOfRange
	}
	p.mu.Lock()
	p.minSignalPower = v
	p.mu.Unlock()
	return nil
}

// SetStrongMatchThreshold accepts [0, 22] (spec.md §3: "≤ 22"); a value
// outside it is rejected with an error and the current value is kept.
func (p *Params) SetStrongMatchThreshold(v int) error {
	if v < 0 || v > 22 {
		return errOutOfRange
	}
	p.mu.Lock()
	p.strongMatchThresh = v
	p.mu.Unlock()
	return nil
}

// SetModerateMatchThreshold accepts [0, 22]; a value outside it is
// rejected with an error and the current value is kept.
func (p *Params) SetModerateMatchThreshold(v int) error {
	if v < 0 || v > 22 {
		return errOutOfRange
	}
	p.mu.Lock()
	p.moderateMatchThresh = v
	p.mu.Unlock()
	return nil
}

// SetStrongCorrelation accepts [0, 1]; a value outside it is rejected
// with an error and the current value is kept.
func (p *Params) SetStrongCorrelation(v float64) error {
	if v < 0 || v > 1 {
		return errOutOfRange
	}
	p.mu.Lock()
	p.strongCorrelation = v
	p.mu.Unlock()
	return nil
}

// SetModerateCorrelation accepts [0, 1]; a value outside it is rejected
// with an error and the current value is kept.
func (p *Params) SetModerateCorrelation(v float64) error {
	if v < 0 || v > 1 {
		return errOutOfRange
	}
	p.mu.Lock()
	p.moderateCorrelation = v
	p.mu.Unlock()
	return nil
}

// SetLowPassAlpha accepts (0, 1]; a value outside it is rejected with an
// error and the current value is kept.
func (p *Params) SetLowPassAlpha(v float64) error {
	if v <= 0 || v > 1 {
		return errOutOfRange
	}
	p.mu.Lock()
	p.lowPassAlpha = v
	p.mu.Unlock()
	return nil
}

// SetModeratePowerMultiplier accepts [0, +inf); a negative value is
// rejected with an error and the current value is kept.
func (p *Params) SetModeratePowerMultiplier(v float64) error {
	if v < 0 {
		return errOutOfRange
	}
	p.mu.Lock()
	p.moderatePowerMult = v
	p.mu.Unlock()
	return nil
}

// Status holds the live-readable detection status (spec.md §3), guarded by
// its own mutex, distinct from Params' mutex per spec.md §5.
type Status struct {
	mu sync.Mutex

	currentPower     float64
	lastMatchCount   int
	lastCorrelation  float64
	lastOffset       int
	burstDetected    bool
	lastDetectionUs  int64
	detectionCount   uint64
}

// StatusSnapshot is an immutable copy of the current status.
type StatusSnapshot struct {
	CurrentPower    float64
	LastMatchCount  int
	LastCorrelation float64
	LastOffset      int
	BurstDetected   bool
	LastDetectionUs int64
	DetectionCount  uint64
}

// Snapshot returns the current status under the status mutex.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatusSnapshot{
		CurrentPower:    s.currentPower,
		LastMatchCount:  s.lastMatchCount,
		LastCorrelation: s.lastCorrelation,
		LastOffset:      s.lastOffset,
		BurstDetected:   s.burstDetected,
		LastDetectionUs: s.lastDetectionUs,
		DetectionCount:  s.detectionCount,
	}
}

// SetPower records the current RMS power. Called once per process().
func (s *Status) SetPower(power float64) {
	s.mu.Lock()
	s.currentPower = power
	s.mu.Unlock()
}

// RecordDetection stamps a burst-detector accept (spec.md §4.C step 6).
func (s *Status) RecordDetection(matches int, corr float64, offset int, now time.Time) {
	s.mu.Lock()
	s.burstDetected = true
	s.lastMatchCount = matches
	s.lastCorrelation = corr
	s.lastOffset = offset
	s.lastDetectionUs = now.UnixMicro()
	s.detectionCount++
	s.mu.Unlock()
}

// ClearDetected resets the burst-detected flag between decisions; the
// accumulated counters (detectionCount, etc.) are left untouched.
func (s *Status) ClearDetected() {
	s.mu.Lock()
	s.burstDetected = false
	s.mu.Unlock()
}

// Demodulator holds the per-pipeline state: the fixed-capacity bit buffer
// with its valid count, and the last carrier phase, carried into the next
// Process call's quadrature demodulation. It keeps no I/Q buffers (Process
// allocates them per call) and no symbol-timing phase (every call slices
// from sample 0 of its buffer). It is reused
// across bursts and is not safe for concurrent use from more than one
// goroutine at a time (only the producer/orchestrator thread drives it,
// per spec.md §5).
type Demodulator struct {
	Params *Params
	Status *Status

	sampleRate int
	symbolRate int

	prevPhase float64
	bits      [BurstLen]byte
	bitCount  int
}

// New creates a Demodulator sharing the given parameter/status blocks.
func New(params *Params, status *Status, sampleRate, symbolRate int) *Demodulator {
	return &Demodulator{
		Params:     params,
		Status:     status,
		sampleRate: sampleRate,
		symbolRate: symbolRate,
	}
}

// Bits returns the valid prefix of the current bit buffer.
func (d *Demodulator) Bits() []byte {
	return d.bits[:d.bitCount]
}

// LoadBits installs a bit sequence directly into the buffer, bypassing
// Process. Used by test harnesses and by ByteSource implementations that
// already have sliced bits (e.g. replay of a previously captured burst).
func (d *Demodulator) LoadBits(bits []byte) {
	n := copy(d.bits[:], bits)
	d.bitCount = n
}

// Process implements spec.md §4.B: convert, compute RMS power, squelch
// gate, low-pass filter, and fixed-rate decimation into sliced bits. It
// returns the number of bits produced, or -1 on a fatal/insufficient-input
// failure (spec.md §4.B's failure modes).
func (d *Demodulator) Process(iqBytes []byte) int {
	if len(iqBytes) < 2 {
		return -1
	}

	i, q := dsp.SplitIQ(iqBytes)
	power := dsp.RMSPower(i, q)
	d.Status.SetPower(power)

	snap := d.Params.Snapshot()
	if power < snap.MinSignalPower {
		d.bitCount = 0
		return 0
	}

	demod, lastPhase := dsp.QuadratureDemod(i, q, d.prevPhase)
	d.prevPhase = lastPhase
	filtered := dsp.LowPass(demod, snap.LowPassAlpha)

	sps := SamplesPerSymbol(d.sampleRate, d.symbolRate)
	if sps <= 0 {
		return -1
	}

	produced := 0
	for pos := 0.0; int(pos) < len(filtered) && produced < BurstLen; pos += sps {
		idx := int(pos)
		bit := byte(0)
		if filtered[idx] > 0 {
			bit = 1
		}
		d.bits[produced] = bit
		produced++
	}
	d.bitCount = produced
	return produced
}
