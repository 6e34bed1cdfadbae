package pipeline

import (
	"context"
	"crypto/rand"
	"io"
	"os"
	"time"

	"github.com/creack/pty"
	"github.com/pkg/term"
)

// SimulatedSource emits random I/Q buffers at a fixed rate, matching
// samoyed's KISS-over-pty simulation mode: useful for exercising the
// pipeline without real hardware.
type SimulatedSource struct {
	BufferSize int
	Interval   time.Duration
}

// NewSimulatedSource returns a source producing bufferSize-byte buffers
// of random noise at the given interval (spec.md §9's "simulation mode
// (random bytes at 10 Hz)").
func NewSimulatedSource(bufferSize int, interval time.Duration) *SimulatedSource {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &SimulatedSource{BufferSize: bufferSize, Interval: interval}
}

// Run implements ByteSource.
func (s *SimulatedSource) Run(ctx context.Context, onBuffer func([]byte)) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	buf := make([]byte, s.BufferSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := rand.Read(buf); err != nil {
				return err
			}
			onBuffer(buf)
		}
	}
}

// ReplaySource replays a fixed I/Q capture in bufferSize-sized chunks,
// useful for regression tests against recorded captures.
type ReplaySource struct {
	Data       []byte
	BufferSize int
}

// NewReplaySource wraps a pre-recorded I/Q capture.
func NewReplaySource(data []byte, bufferSize int) *ReplaySource {
	return &ReplaySource{Data: data, BufferSize: bufferSize}
}

// Run implements ByteSource, delivering whole buffers and silently
// dropping any final short one per spec.md §7's transient-error policy.
func (r *ReplaySource) Run(ctx context.Context, onBuffer func([]byte)) error {
	for off := 0; off+r.BufferSize <= len(r.Data); off += r.BufferSize {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		onBuffer(r.Data[off : off+r.BufferSize])
	}
	return nil
}

// PTYSource reads I/Q bytes from a pseudo-terminal, mirroring samoyed's
// pty-backed KISS transport: it is used both for its replay-test harness
// and for feeding a real software-defined-radio daemon that writes to a
// pty.
type PTYSource struct {
	Master     *os.File
	BufferSize int
}

// OpenSimulatedPTY opens a fresh pty pair, returning a source bound to
// the master side; the slave side's name is returned so a companion
// writer process can be pointed at it.
func OpenSimulatedPTY(bufferSize int) (*PTYSource, string, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, "", err
	}
	name := slave.Name()
	return &PTYSource{Master: master, BufferSize: bufferSize}, name, nil
}

// Run implements ByteSource by reading fixed-size chunks from the pty
// master until it errors or ctx is cancelled.
func (p *PTYSource) Run(ctx context.Context, onBuffer func([]byte)) error {
	buf := make([]byte, p.BufferSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		n, err := io.ReadFull(p.Master, buf)
		if err != nil {
			return err
		}
		if n == p.BufferSize {
			onBuffer(buf)
		}
	}
}

// serialSource reads I/Q bytes from a physical serial device via
// github.com/pkg/term, the transport samoyed uses for its TNC command
// port — reused here for hardware front ends that expose I/Q over a
// serial link rather than a USB bulk endpoint.
type serialSource struct {
	t          *term.Term
	BufferSize int
}

// OpenSerialSource opens devicename at baud and returns a ByteSource
// reading fixed-size buffers from it.
func OpenSerialSource(devicename string, baud int, bufferSize int) (ByteSource, error) {
	t, err := term.Open(devicename, term.Speed(baud))
	if err != nil {
		return nil, err
	}
	return &serialSource{t: t, BufferSize: bufferSize}, nil
}

func (s *serialSource) Run(ctx context.Context, onBuffer func([]byte)) error {
	buf := make([]byte, s.BufferSize)
	for {
		select {
		case <-ctx.Done():
			return s.t.Close()
		default:
		}
		n, err := io.ReadFull(s.t, buf)
		if err != nil {
			return err
		}
		if n == s.BufferSize {
			onBuffer(buf)
		}
	}
}
