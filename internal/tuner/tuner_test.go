package tuner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulated_TuneWithinBand(t *testing.T) {
	s := NewSimulated(400_000_000)
	assert.NoError(t, s.Tune(420_025_000))
	assert.Equal(t, uint64(420_025_000), s.CurrentFrequency())
}

func TestSimulated_TuneOutOfBandRejected(t *testing.T) {
	s := NewSimulated(400_000_000)
	err := s.Tune(100_000_000)
	assert.ErrorIs(t, err, ErrOutOfBand)
	assert.Equal(t, uint64(400_000_000), s.CurrentFrequency())

	err = s.Tune(500_000_000)
	assert.ErrorIs(t, err, ErrOutOfBand)
}

func TestSimulated_BoundaryFrequenciesAccepted(t *testing.T) {
	s := NewSimulated(MinFreqHz)
	assert.NoError(t, s.Tune(MinFreqHz))
	assert.NoError(t, s.Tune(MaxFreqHz))
}
