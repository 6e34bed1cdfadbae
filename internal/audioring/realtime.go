package audioring

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// paStream abstracts the subset of *portaudio.Stream RealtimeSink needs,
// so tests can substitute a fake rather than opening a real device.
type paStream interface {
	Start() error
	Stop() error
	Close() error
	Write() error
}

// RealtimeSink drains a Ring into the default output device via
// portaudio, one callback buffer at a time.
type RealtimeSink struct {
	ring   *Ring
	stream paStream
	buf    []int16
}

// NewRealtimeSink opens the system default output device at sampleRate
// with mono PCM as a blocking-write stream and wires it to ring: each
// Pump call pulls up to len(buf) samples from ring, padding with silence
// if the ring runs dry, and writes them to the stream.
func NewRealtimeSink(ring *Ring, sampleRate, framesPerBuffer int) (*RealtimeSink, error) {
	s := &RealtimeSink{
		ring: ring,
		buf:  make([]int16, framesPerBuffer),
	}

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), framesPerBuffer, s.buf)
	if err != nil {
		return nil, fmt.Errorf("audioring: open default output stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

// Start begins playback; each call to the underlying stream's Write
// drains fresh samples from the ring first.
func (s *RealtimeSink) Start() error {
	return s.stream.Start()
}

// pump refills s.buf from the ring and writes one buffer's worth of
// audio, zero-filling any shortfall with silence.
func (s *RealtimeSink) pump() error {
	n := s.ring.Read(s.buf)
	for i := n; i < len(s.buf); i++ {
		s.buf[i] = 0
	}
	return s.stream.Write()
}

// Pump writes exactly one buffer of audio; callers drive this from the
// pipeline's output goroutine.
func (s *RealtimeSink) Pump() error {
	return s.pump()
}

// Stop halts playback without closing the underlying device.
func (s *RealtimeSink) Stop() error {
	return s.stream.Stop()
}

// Close releases the underlying portaudio stream.
func (s *RealtimeSink) Close() error {
	return s.stream.Close()
}
