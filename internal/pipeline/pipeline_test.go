package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/letstrythisshit/tetrasdr/internal/demod"
	"github.com/letstrythisshit/tetrasdr/internal/pdu"
	"github.com/letstrythisshit/tetrasdr/internal/tea1"
	"github.com/letstrythisshit/tetrasdr/internal/trunk"
	"github.com/letstrythisshit/tetrasdr/internal/voice"
	"github.com/stretchr/testify/assert"
)

type stubTuner struct{ freq uint64 }

func (s *stubTuner) Tune(freq uint64) error   { s.freq = freq; return nil }
func (s *stubTuner) CurrentFrequency() uint64 { return s.freq }

type recordingSink struct{ frames [][]int16 }

func (r *recordingSink) Write(samples []int16) error {
	cp := make([]int16, len(samples))
	copy(cp, samples)
	r.frames = append(r.frames, cp)
	return nil
}

func newVoiceDemod() *demod.Demodulator {
	d := demod.New(demod.DefaultParams(), &demod.Status{}, demod.SampleRate, demod.SymbolRate)
	d.Params.SetLowPassAlpha(1.0) // no filter history: filtered[n] == phase-delta[n]
	return d
}

// synthesizeIQ builds a 256KiB I/Q buffer whose decimated samples carry
// exactly the given bits: each decimated sample position gets a small
// forward phase rotation (bit=1) or backward rotation (bit=0), and all
// intervening samples hold the prior angle steady so their phase deltas
// are zero and never influence the decimated bit (with LowPassAlpha=1,
// the filter has no memory, so only the delta landing exactly on the
// decimated index determines its bit).
func synthesizeIQ(bits []byte) []byte {
	const bufLen = 256 * 1024
	n := bufLen / 2
	sps := demod.SamplesPerSymbol(demod.SampleRate, demod.SymbolRate)

	i := make([]float64, n)
	q := make([]float64, n)
	const radius = 50.0
	const delta = 0.5

	theta := 0.0
	nextBitIdx := 0
	nextPos := 0
	curI, curQ := radius, 0.0
	for s := 0; s < n; s++ {
		if nextBitIdx < len(bits) && s == nextPos {
			if bits[nextBitIdx] == 1 {
				theta += delta
			} else {
				theta -= delta
			}
			curI = radius * math.Cos(theta)
			curQ = radius * math.Sin(theta)
			nextBitIdx++
			nextPos = int(float64(nextBitIdx) * sps)
		}
		i[s] = curI
		q[s] = curQ
	}

	iq := make([]byte, bufLen)
	for s := 0; s < n; s++ {
		iq[2*s] = byte(i[s] + 127.5)
		iq[2*s+1] = byte(q[s] + 127.5)
	}
	return iq
}

func bitsWithTrainingSequenceAt(offset int, fill byte) []byte {
	bits := make([]byte, demod.BurstLen)
	for i := range bits {
		bits[i] = fill
	}
	training := []byte{1, 1, 0, 0, 1, 0, 1, 0, 0, 1, 1, 1, 0, 1, 0, 0, 0, 1, 1, 0, 1, 0}
	copy(bits[offset:offset+len(training)], training)
	return bits
}

func TestProcessBuffer_SquelchedBufferProducesNoOutput(t *testing.T) {
	p := New(Config{}, newVoiceDemod(), nil, nil, nil, nil, nil)
	sink := &recordingSink{}
	p.AddSink(sink)

	noise := make([]byte, 256*1024)
	for i := range noise {
		noise[i] = 127
	}
	p.ProcessBuffer(noise)
	assert.Empty(t, sink.frames)
}

func TestProcessBuffer_ControlChannelRoutesToManager(t *testing.T) {
	tuner := &stubTuner{freq: 410_000_000}
	cfg := trunk.Config{ControlFreq: 410_000_000, AutoFollow: true, EmergencyOverride: true}
	manager := trunk.NewManager(cfg, tuner, nil)

	controlDemod := newVoiceDemod()

	bits := bitsWithTrainingSequenceAt(50, 0)
	msgBits := pdu.Encode(pdu.Message{Type: pdu.ChannelRelease, TalkGroupID: 7})
	copy(bits, msgBits)
	// Re-stamp the training sequence after overlaying the PDU header,
	// since the header occupies bits [0..24) and the training sequence
	// lives at [50..72) — they do not overlap, this just documents that
	// ordering matters if the offsets ever change.
	copy(bits[50:72], []byte{1, 1, 0, 0, 1, 0, 1, 0, 0, 1, 1, 1, 0, 1, 0, 0, 0, 1, 1, 0, 1, 0})

	iq := synthesizeIQ(bits)

	p := New(Config{TrunkingEnabled: true, ControlFreq: 410_000_000}, newVoiceDemod(), controlDemod, nil, nil, manager, tuner)
	p.ProcessBuffer(iq)

	assert.Equal(t, uint64(1), manager.Stats().ControlMessages)
}

func TestProcessBuffer_VoiceDecryptAndDecodeReachesSink(t *testing.T) {
	var key [tea1.KeySize]byte
	cipherCtx := tea1.NewContext(key, true)
	codec := voice.NewDecoder()

	d := newVoiceDemod()
	bits := bitsWithTrainingSequenceAt(50, 0)
	iq := synthesizeIQ(bits)

	p := New(Config{VulnerabilityMode: true}, d, nil, cipherCtx, codec, nil, nil)
	sink := &recordingSink{}
	p.AddSink(sink)

	p.ProcessBuffer(iq)

	assert.Len(t, sink.frames, 1)
	assert.Len(t, sink.frames[0], voice.FrameSize)
}

func TestSimulatedSource_StopsOnContextCancel(t *testing.T) {
	src := NewSimulatedSource(64, 5*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var calls int
	err := src.Run(ctx, func(b []byte) {
		calls++
		assert.Len(t, b, 64)
	})
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 1)
}

func TestReplaySource_DeliversWholeBuffersOnly(t *testing.T) {
	data := make([]byte, 100)
	src := NewReplaySource(data, 30)
	var calls int
	err := src.Run(context.Background(), func(b []byte) {
		calls++
		assert.Len(t, b, 30)
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls) // 100/30 = 3 whole buffers, trailing 10 bytes dropped
}
