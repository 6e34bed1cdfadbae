// Package tuner implements the abstract tuner handle of spec.md §4.I and
// its concrete backends: a hamlib-controlled radio, and a simulated
// tuner for tests and replay sources. trunk.Tuner is the interface both
// satisfy.
package tuner

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/xylo04/goHamlib"
)

const (
	MinFreqHz = 380_000_000
	MaxFreqHz = 470_000_000
)

// ErrOutOfBand is returned when a requested frequency falls outside the
// receive band of spec.md §6.
var ErrOutOfBand = fmt.Errorf("tuner: frequency outside [%d, %d] Hz band", MinFreqHz, MaxFreqHz)

// Simulated is an in-memory Tuner for tests, replay sources, and any
// deployment without real hardware: Tune just records the frequency.
type Simulated struct {
	current atomic.Uint64
}

// NewSimulated returns a simulated tuner initially tuned to initialFreq.
func NewSimulated(initialFreq uint64) *Simulated {
	s := &Simulated{}
	s.current.Store(initialFreq)
	return s
}

func (s *Simulated) Tune(freqHz uint64) error {
	if freqHz < MinFreqHz || freqHz > MaxFreqHz {
		return ErrOutOfBand
	}
	s.current.Store(freqHz)
	return nil
}

func (s *Simulated) CurrentFrequency() uint64 {
	return s.current.Load()
}

// Hamlib drives a real radio through hamlib's rig-control abstraction,
// mirroring samoyed's PTT control path (a single serialised handle to
// the radio, retuned only from the manager/producer threads per
// spec.md §5).
type Hamlib struct {
	mu      sync.Mutex
	rig     *goHamlib.Rig
	current uint64
}

// OpenHamlib opens the named hamlib rig model on devicePath and tunes it
// to initialFreq.
func OpenHamlib(model goHamlib.RigModel, devicePath string, initialFreq uint64) (*Hamlib, error) {
	rig := goHamlib.RigInit(model)
	if rig == nil {
		return nil, fmt.Errorf("tuner: hamlib rig init failed for model %v", model)
	}
	rig.SetConf("rig_pathname", devicePath)
	if err := rig.Open(); err != nil {
		return nil, fmt.Errorf("tuner: hamlib open %s: %w", devicePath, err)
	}

	h := &Hamlib{rig: rig}
	if err := h.Tune(initialFreq); err != nil {
		rig.Close()
		return nil, err
	}
	return h, nil
}

// Tune implements trunk.Tuner: it is the only writer of current
// frequency, serialised by mu (spec.md §5's single-owner tuner policy).
func (h *Hamlib) Tune(freqHz uint64) error {
	if freqHz < MinFreqHz || freqHz > MaxFreqHz {
		return ErrOutOfBand
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.rig.SetFreq(goHamlib.RIG_VFO_CURR, float64(freqHz)); err != nil {
		return fmt.Errorf("tuner: hamlib set freq %d: %w", freqHz, err)
	}
	h.current = freqHz
	return nil
}

// CurrentFrequency returns the frequency last set by Tune, read under mu.
func (h *Hamlib) CurrentFrequency() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Close releases the underlying hamlib handle.
func (h *Hamlib) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rig.Close()
	return nil
}
