// Package pipeline implements the orchestrator of spec.md §4.J: it wires
// one I/Q buffer at a time through the demodulator, burst detector,
// cipher, voice decoder, and audio ring, and through the PDU parser and
// channel manager when the tuner sits on the control frequency.
package pipeline

import (
	"context"
	"time"

	"github.com/letstrythisshit/tetrasdr/internal/audioring"
	"github.com/letstrythisshit/tetrasdr/internal/burst"
	"github.com/letstrythisshit/tetrasdr/internal/demod"
	"github.com/letstrythisshit/tetrasdr/internal/pdu"
	"github.com/letstrythisshit/tetrasdr/internal/tea1"
	"github.com/letstrythisshit/tetrasdr/internal/trunk"
	"github.com/letstrythisshit/tetrasdr/internal/voice"
)

// ByteSource models the callback-driven I/Q delivery of spec.md §9: it
// calls onBuffer once per arriving buffer until the context is
// cancelled, then returns.
type ByteSource interface {
	Run(ctx context.Context, onBuffer func([]byte)) error
}

// Sink receives decoded PCM frames; *audioring.WAVSink satisfies it
// directly and *audioring.Ring through RingSink, so both can be attached
// simultaneously.
type Sink interface {
	Write(samples []int16) error
}

// ringSinkAdapter adapts audioring.Ring's (n int) Write signature to the
// error-returning Sink interface the pipeline expects, since the ring
// itself can never fail a write (it only overwrites).
type ringSinkAdapter struct{ ring *audioring.Ring }

func (r ringSinkAdapter) Write(samples []int16) error {
	r.ring.Write(samples)
	return nil
}

// RingSink wraps a Ring as a Sink.
func RingSink(ring *audioring.Ring) Sink { return ringSinkAdapter{ring: ring} }

// Config selects which optional stages are active.
type Config struct {
	VulnerabilityMode bool
	TrunkingEnabled   bool
	ControlFreq       uint64
}

// Pipeline is the orchestrator. It is not safe for concurrent calls to
// ProcessBuffer, by design (spec.md §5: one producer thread runs the
// per-buffer pipeline to completion synchronously).
type Pipeline struct {
	cfg Config

	controlDemod *demod.Demodulator
	voiceDemod   *demod.Demodulator
	detector     burst.Detector

	cipher *tea1.Context
	codec  *voice.Decoder

	sinks []Sink

	manager *trunk.Manager
	tuner   trunk.Tuner

	bitAccum []byte
}

// New builds a pipeline. cipher and codec may be nil to disable
// decryption/voice decode (e.g. a control-channel-only deployment);
// manager and tuner may be nil outside trunking mode.
func New(cfg Config, voiceDemod, controlDemod *demod.Demodulator, cipher *tea1.Context, codec *voice.Decoder, manager *trunk.Manager, tuner trunk.Tuner) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		controlDemod: controlDemod,
		voiceDemod:   voiceDemod,
		cipher:       cipher,
		codec:        codec,
		manager:      manager,
		tuner:        tuner,
	}
}

// AddSink attaches an additional PCM consumer (ring, WAV file, ...).
func (p *Pipeline) AddSink(s Sink) {
	p.sinks = append(p.sinks, s)
}

// onControlChannel reports whether the tuner currently sits on the
// control frequency and trunking is enabled.
func (p *Pipeline) onControlChannel() bool {
	return p.cfg.TrunkingEnabled && p.tuner != nil && p.tuner.CurrentFrequency() == p.cfg.ControlFreq
}

// activeDemod selects the demodulator per spec.md §4.J step 1.
func (p *Pipeline) activeDemod() *demod.Demodulator {
	if p.onControlChannel() && p.controlDemod != nil {
		return p.controlDemod
	}
	return p.voiceDemod
}

// packBitsToBytes packs bits (one bit per byte, 0/1) MSB-first into
// whole bytes, truncating any trailing partial byte.
func packBitsToBytes(bits []byte) []byte {
	n := len(bits) / 8
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		var b byte
		for j := 0; j < 8; j++ {
			b = (b << 1) | (bits[i*8+j] & 1)
		}
		out[i] = b
	}
	return out
}

// ProcessBuffer runs one I/Q buffer through the pipeline per spec.md
// §4.J.
func (p *Pipeline) ProcessBuffer(iq []byte) {
	d := p.activeDemod()
	d.Status.ClearDetected()
	bitCount := d.Process(iq)
	if bitCount <= 0 {
		return
	}

	result := p.detector.Detect(d, time.Now())
	if !result.Accepted {
		return
	}

	if d == p.controlDemod {
		msg := pdu.Parse(d.Bits())
		if p.manager != nil {
			p.manager.ProcessControlMessage(msg)
		}
		return
	}

	if !p.cfg.VulnerabilityMode || bitCount < voice.FrameBits || p.cipher == nil {
		return
	}

	packed := packBitsToBytes(d.Bits()[:bitCount])
	p.cipher.DecryptStream(packed)

	if p.codec == nil || len(packed) < (voice.FrameBits+7)/8 {
		return
	}

	pcm := p.codec.Decode(packed)
	samples := pcm[:]
	for _, s := range p.sinks {
		_ = s.Write(samples)
	}
}

// Run drives source until ctx is cancelled, calling ProcessBuffer for
// every buffer the source delivers.
func (p *Pipeline) Run(ctx context.Context, source ByteSource) error {
	return source.Run(ctx, p.ProcessBuffer)
}
