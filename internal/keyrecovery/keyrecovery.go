// Package keyrecovery implements the bounded brute-force recovery engine
// described in spec.md §4.E: given a ciphertext block and a known
// plaintext candidate, search the reduced 32-bit keyspace for a key that
// reproduces the plaintext. This is intentionally bounded — it is a
// demonstration of the published TEA1 key-schedule weakness, not a
// production cryptanalysis tool (spec.md §1 Non-goals).
package keyrecovery

import (
	"time"

	"github.com/letstrythisshit/tetrasdr/internal/tea1"
)

// DefaultMaxCandidates is spec.md §4.E's default budget.
const DefaultMaxCandidates = 1_000_000

// ProgressEvery is how often (in candidates tested) progress is reported.
const ProgressEvery = 100_000

// Options configures one recovery run.
type Options struct {
	MaxCandidates uint64
	// OnProgress, if non-nil, is called every ProgressEvery candidates
	// with the count tested so far and the elapsed duration.
	OnProgress func(tested uint64, elapsed time.Duration)
}

// Result reports the outcome of a recovery attempt.
type Result struct {
	Found         bool
	Key           uint32
	CandidatesRun uint64
	Elapsed       time.Duration
	// RatePerSecond and EstimatedFullSweep are only meaningful when the
	// search exhausted its budget without finding a match.
	RatePerSecond       float64
	EstimatedFullSweep time.Duration
}

// testCandidate builds the 80-bit key whose first four bytes encode
// candidate big-endian and whose remaining bytes are zero, decrypts the
// first ciphertext block under the vulnerable key schedule, and compares
// against the known plaintext.
func testCandidate(candidate uint32, ciphertext, knownPlaintext []byte) bool {
	var key [tea1.KeySize]byte
	key[0] = byte(candidate >> 24)
	key[1] = byte(candidate >> 16)
	key[2] = byte(candidate >> 8)
	key[3] = byte(candidate)

	ctx := tea1.NewContext(key, true)
	decrypted := ctx.DecryptBlock(ciphertext[:tea1.BlockSize])

	n := len(knownPlaintext)
	if n > tea1.BlockSize {
		n = tea1.BlockSize
	}
	for i := 0; i < n; i++ {
		if decrypted[i] != knownPlaintext[i] {
			return false
		}
	}
	return true
}

// now is overridable in tests so elapsed/rate calculations stay
// deterministic; defaults to the wall clock.
var now = time.Now

// Recover implements spec.md §4.E: iterate k = 0,1,2,... constructing the
// reduced-key candidate, stop at the first match or when the budget is
// exhausted. ciphertext must be at least one TEA1 block (8 bytes).
func Recover(ciphertext, knownPlaintext []byte, opts Options) Result {
	budget := opts.MaxCandidates
	if budget == 0 {
		budget = DefaultMaxCandidates
	}

	start := now()
	var tested uint64
	for candidate := uint64(0); candidate < budget && candidate <= 0xFFFFFFFF; candidate++ {
		tested++
		if testCandidate(uint32(candidate), ciphertext, knownPlaintext) {
			return Result{
				Found:         true,
				Key:           uint32(candidate),
				CandidatesRun: tested,
				Elapsed:       now().Sub(start),
			}
		}
		if opts.OnProgress != nil && tested%ProgressEvery == 0 {
			opts.OnProgress(tested, now().Sub(start))
		}
	}

	elapsed := now().Sub(start)
	var rate float64
	var fullSweep time.Duration
	if elapsed > 0 {
		rate = float64(tested) / elapsed.Seconds()
		if rate > 0 {
			fullSweep = time.Duration(float64(1<<32) / rate * float64(time.Second))
		}
	}

	return Result{
		Found:               false,
		CandidatesRun:       tested,
		Elapsed:             elapsed,
		RatePerSecond:       rate,
		EstimatedFullSweep: fullSweep,
	}
}

// KnownHeaderPatterns is the small table of expected TETRA header
// patterns from spec.md §4.E / original_source's tea1_crack.c: the
// all-zero pattern and the 0x55-repeating pattern.
var KnownHeaderPatterns = [][tea1.BlockSize]byte{
	{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	{0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55},
}

// RecoverKnownPlaintext runs Recover against each entry of
// KnownHeaderPatterns in turn, returning the first success.
func RecoverKnownPlaintext(ciphertext []byte, opts Options) Result {
	for _, pattern := range KnownHeaderPatterns {
		result := Recover(ciphertext, pattern[:], opts)
		if result.Found {
			return result
		}
	}
	return Result{}
}
