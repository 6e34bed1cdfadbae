package burst

import (
	"testing"
	"time"

	"github.com/letstrythisshit/tetrasdr/internal/demod"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func newDemodWithBits(bits []byte, power float64) *demod.Demodulator {
	status := &demod.Status{}
	status.SetPower(power)
	d := demod.New(demod.DefaultParams(), status, demod.SampleRate, demod.SymbolRate)
	d.LoadBits(bits)
	return d
}

func TestDetect_TrainingSequenceAccept(t *testing.T) {
	bits := make([]byte, 510)
	for i := range bits {
		bits[i] = byte(i % 2)
	}
	copy(bits[50:72], TrainingSequence[:])

	d := newDemodWithBits(bits, 10.0)
	result := Detector{}.Detect(d, time.Now())

	assert.True(t, result.Accepted)
	assert.Equal(t, 50, result.Offset)
	assert.Equal(t, 22, result.Matches)
	assert.Equal(t, 1.0, result.Correlation)

	snap := d.Status.Snapshot()
	assert.True(t, snap.BurstDetected)
	assert.Equal(t, 22, snap.LastMatchCount)
	assert.Equal(t, 50, snap.LastOffset)
	assert.Equal(t, uint64(1), snap.DetectionCount)
}

func TestDetect_SquelchRejectsRegardlessOfBits(t *testing.T) {
	bits := make([]byte, 510)
	copy(bits[50:72], TrainingSequence[:])

	d := newDemodWithBits(bits, 1.0) // below default min of 8.0
	result := Detector{}.Detect(d, time.Now())
	assert.False(t, result.Accepted)
}

func TestDetect_TieBreakLowestOffsetWins(t *testing.T) {
	bits := make([]byte, 44)
	copy(bits[0:22], TrainingSequence[:])
	copy(bits[22:44], TrainingSequence[:])
	// Both copies are full 22-bit matches. SetStrongMatchThreshold rejects
	// 23 (above 22), so the default threshold of 20 stays in place and the
	// strong accept fires at the first full match the scan reaches, offset
	// 0; the copy at offset 22 is never reached.
	params := demod.DefaultParams()
	_ = params.SetStrongMatchThreshold(23) // out of range: rejected, default 20 kept
	status := &demod.Status{}
	status.SetPower(10.0)
	d := demod.New(params, status, demod.SampleRate, demod.SymbolRate)
	d.LoadBits(bits)

	result := Detector{}.Detect(d, time.Now())
	assert.Equal(t, 0, result.Offset)
}

func TestDetect_MatchesAndCorrInRangeAndAcceptImpliesThreshold(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(22, 510).Draw(t, "n")
		bits := make([]byte, n)
		for i := range bits {
			bits[i] = byte(rapid.IntRange(0, 1).Draw(t, "bit"))
		}
		power := rapid.Float64Range(0, 50).Draw(t, "power")

		d := newDemodWithBits(bits, power)
		snap := d.Params.Snapshot()
		result := Detector{}.Detect(d, time.Now())

		assert.GreaterOrEqual(t, result.Matches, 0)
		assert.LessOrEqual(t, result.Matches, 22)
		assert.GreaterOrEqual(t, result.Correlation, -1.0)
		assert.LessOrEqual(t, result.Correlation, 1.0)

		if result.Accepted {
			strongOK := result.Matches >= snap.StrongMatchThresh && result.Correlation >= snap.StrongCorrelation
			moderateOK := result.Matches >= snap.ModerateMatchThresh &&
				result.Correlation >= snap.ModerateCorrelation &&
				power >= snap.MinSignalPower*snap.ModeratePowerMult
			assert.True(t, strongOK || moderateOK)
		}
	})
}
