package keyrecovery

import (
	"testing"
	"time"

	"github.com/letstrythisshit/tetrasdr/internal/tea1"
	"github.com/stretchr/testify/assert"
)

func TestRecover_HappyPath(t *testing.T) {
	var plaintext [tea1.BlockSize]byte // all zero

	var key [tea1.KeySize]byte
	key[0], key[1], key[2], key[3] = 0x00, 0x00, 0x00, 0x2A

	ctx := tea1.NewContext(key, true)
	ciphertext := ctx.EncryptBlock(plaintext[:])

	result := Recover(ciphertext[:], plaintext[:], Options{MaxCandidates: 100})
	assert.True(t, result.Found)
	assert.Equal(t, uint32(0x0000002A), result.Key)
}

func TestRecover_BudgetExhausted(t *testing.T) {
	var plaintext [tea1.BlockSize]byte
	var key [tea1.KeySize]byte
	key[0], key[1], key[2], key[3] = 0xFF, 0xFF, 0xFF, 0xFF

	ctx := tea1.NewContext(key, true)
	ciphertext := ctx.EncryptBlock(plaintext[:])

	result := Recover(ciphertext[:], plaintext[:], Options{MaxCandidates: 10})
	assert.False(t, result.Found)
	assert.Equal(t, uint64(10), result.CandidatesRun)
}

func TestRecoverKnownPlaintext_FindsAllZeroPattern(t *testing.T) {
	var key [tea1.KeySize]byte
	key[0], key[1], key[2], key[3] = 0x00, 0x00, 0x01, 0x00

	ctx := tea1.NewContext(key, true)
	var zero [tea1.BlockSize]byte
	ciphertext := ctx.EncryptBlock(zero[:])

	result := RecoverKnownPlaintext(ciphertext[:], Options{MaxCandidates: 2000})
	assert.True(t, result.Found)
	assert.Equal(t, uint32(0x00000100), result.Key)
}

func TestRecover_ProgressCallback(t *testing.T) {
	var plaintext [tea1.BlockSize]byte
	var key [tea1.KeySize]byte
	key[0], key[1], key[2], key[3] = 0xFF, 0xFF, 0xFF, 0xFF
	ctx := tea1.NewContext(key, true)
	ciphertext := ctx.EncryptBlock(plaintext[:])

	var progressCalls int
	Recover(ciphertext[:], plaintext[:], Options{
		MaxCandidates: ProgressEvery * 2,
		OnProgress: func(tested uint64, _ time.Duration) {
			progressCalls++
		},
	})
	assert.GreaterOrEqual(t, progressCalls, 1)
}
