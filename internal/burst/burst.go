// Package burst implements the training-sequence correlation burst
// detector described in spec.md §4.C: a single deterministic pass over a
// demodulator's bit buffer deciding whether a TETRA burst is present.
package burst

import (
	"time"

	"github.com/letstrythisshit/tetrasdr/internal/demod"
)

// TrainingSequence is the 22-bit reference pattern from spec.md §6.
var TrainingSequence = [22]byte{1, 1, 0, 0, 1, 0, 1, 0, 0, 1, 1, 1, 0, 1, 0, 0, 0, 1, 1, 0, 1, 0}

// Detector runs the correlation decision against a shared Status/Params
// pair. It holds no state of its own beyond the parameters it reads.
type Detector struct{}

// Result carries the scan's best candidate, independent of whether it was
// ultimately accepted.
type Result struct {
	Accepted    bool
	Matches     int
	Correlation float64
	Offset      int
}

// matches counts how many of the 22 training bits equal bits[offset:offset+22].
func matches(bits []byte, offset int) int {
	m := 0
	for j := 0; j < len(TrainingSequence); j++ {
		if bits[offset+j] == TrainingSequence[j] {
			m++
		}
	}
	return m
}

func correlation(m int) float64 {
	return (float64(m) - float64(len(TrainingSequence)-m)) / float64(len(TrainingSequence))
}

// Detect runs spec.md §4.C's algorithm over the demodulator's current bit
// buffer against its shared Params/Status, and stamps Status on any true
// acceptance. now is the caller's clock (injected for determinism in tests).
func (Detector) Detect(d *demod.Demodulator, now time.Time) Result {
	bits := d.Bits()
	snap := d.Params.Snapshot()
	status := d.Status.Snapshot()

	if status.CurrentPower < snap.MinSignalPower {
		return Result{}
	}

	if len(bits) < len(TrainingSequence) {
		return Result{}
	}

	best := Result{Offset: -1}
	for offset := 0; offset <= len(bits)-len(TrainingSequence); offset++ {
		m := matches(bits, offset)
		corr := correlation(m)

		if best.Offset == -1 || m > best.Matches {
			best = Result{Matches: m, Correlation: corr, Offset: offset}
		}

		if m >= snap.StrongMatchThresh && corr >= snap.StrongCorrelation {
			result := Result{Accepted: true, Matches: m, Correlation: corr, Offset: offset}
			d.Status.RecordDetection(m, corr, offset, now)
			return result
		}
	}

	if best.Matches >= snap.ModerateMatchThresh &&
		best.Correlation >= snap.ModerateCorrelation &&
		status.CurrentPower >= snap.MinSignalPower*snap.ModeratePowerMult {
		best.Accepted = true
		d.Status.RecordDetection(best.Matches, best.Correlation, best.Offset, now)
		return best
	}

	return Result{Matches: best.Matches, Correlation: best.Correlation, Offset: best.Offset}
}
