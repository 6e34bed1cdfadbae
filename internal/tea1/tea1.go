// Package tea1 implements the TEA1 block/stream cipher exactly as
// specified in spec.md §4.D, including the reduced-keyspace key-schedule
// weakness being modelled. The S-box and round constant are compile-time
// constants; the key schedule and round function are deterministic
// functions of (key, mode) only.
//
// This is a deliberately simplified educational cipher (see spec.md §9's
// Open Question) and is not the real TETRA TEA1 algorithm; test vectors
// from one implementation of this spec are only meaningful against
// another implementation of the same spec.
package tea1

const (
	KeySize   = 10 // 80-bit key
	BlockSize = 8  // 64-bit block
	IVSize    = 8
	Rounds    = 32

	roundConstant uint32 = 0x9E3779B9
)

// sbox is the fixed 256-entry substitution table from spec.md §6,
// mirrored byte-for-byte from the reference implementation this spec is
// modelled on so that test vectors match across implementations.
var sbox = [256]byte{
	0x63, 0x7c, 0x77, 0x7b, 0xf2, 0x6b, 0x6f, 0xc5, 0x30, 0x01, 0x67, 0x2b, 0xfe, 0xd7, 0xab, 0x76,
	0xca, 0x82, 0xc9, 0x7d, 0xfa, 0x59, 0x47, 0xf0, 0xad, 0xd4, 0xa2, 0xaf, 0x9c, 0xa4, 0x72, 0xc0,
	0xb7, 0xfd, 0x93, 0x26, 0x36, 0x3f, 0xf7, 0xcc, 0x34, 0xa5, 0xe5, 0xf1, 0x71, 0xd8, 0x31, 0x15,
	0x04, 0xc7, 0x23, 0xc3, 0x18, 0x96, 0x05, 0x9a, 0x07, 0x12, 0x80, 0xe2, 0xeb, 0x27, 0xb2, 0x75,
	0x09, 0x83, 0x2c, 0x1a, 0x1b, 0x6e, 0x5a, 0xa0, 0x52, 0x3b, 0xd6, 0xb3, 0x29, 0xe3, 0x2f, 0x84,
	0x53, 0xd1, 0x00, 0xed, 0x20, 0xfc, 0xb1, 0x5b, 0x6a, 0xcb, 0xbe, 0x39, 0x4a, 0x4c, 0x58, 0xcf,
	0xd0, 0xef, 0xaa, 0xfb, 0x43, 0x4d, 0x33, 0x85, 0x45, 0xf9, 0x02, 0x7f, 0x50, 0x3c, 0x9f, 0xa8,
	0x51, 0xa3, 0x40, 0x8f, 0x92, 0x9d, 0x38, 0xf5, 0xbc, 0xb6, 0xda, 0x21, 0x10, 0xff, 0xf3, 0xd2,
	0xcd, 0x0c, 0x13, 0xec, 0x5f, 0x97, 0x44, 0x17, 0xc4, 0xa7, 0x7e, 0x3d, 0x64, 0x5d, 0x19, 0x73,
	0x60, 0x81, 0x4f, 0xdc, 0x22, 0x2a, 0x90, 0x88, 0x46, 0xee, 0xb8, 0x14, 0xde, 0x5e, 0x0b, 0xdb,
	0xe0, 0x32, 0x3a, 0x0a, 0x49, 0x06, 0x24, 0x5c, 0xc2, 0xd3, 0xac, 0x62, 0x91, 0x95, 0xe4, 0x79,
	0xe7, 0xc8, 0x37, 0x6d, 0x8d, 0xd5, 0x4e, 0xa9, 0x6c, 0x56, 0xf4, 0xea, 0x65, 0x7a, 0xae, 0x08,
	0xba, 0x78, 0x25, 0x2e, 0x1c, 0xa6, 0xb4, 0xc6, 0xe8, 0xdd, 0x74, 0x1f, 0x4b, 0xbd, 0x8b, 0x8a,
	0x70, 0x3e, 0xb5, 0x66, 0x48, 0x03, 0xf6, 0x0e, 0x61, 0x35, 0x57, 0xb9, 0x86, 0xc1, 0x1d, 0x9e,
	0xe1, 0xf8, 0x98, 0x11, 0x69, 0xd9, 0x8e, 0x94, 0x9b, 0x1e, 0x87, 0xe9, 0xce, 0x55, 0x28, 0xdf,
	0x8c, 0xa1, 0x89, 0x0d, 0xbf, 0xe6, 0x42, 0x68, 0x41, 0x99, 0x2d, 0x0f, 0xb0, 0x54, 0xbb, 0x16,
}

// ExtractReducedKey keeps bytes 0..3 of the 80-bit key (big-endian) and
// discards bytes 4..9 — the abstract representation of the published
// key-schedule weakness (spec.md §4.D).
func ExtractReducedKey(key [KeySize]byte) uint32 {
	return uint32(key[0])<<24 | uint32(key[1])<<16 | uint32(key[2])<<8 | uint32(key[3])
}

// Context holds the cipher state for one pipeline instance (spec.md §3):
// the original 80-bit key, an evolving IV, the derived reduced key, and
// the vulnerability-mode flag.
type Context struct {
	Key            [KeySize]byte
	IV             [IVSize]byte
	ReducedKey     uint32
	VulnerableMode bool
}

// NewContext builds a cipher context and derives the reduced key
// regardless of mode (deriving it is cheap and the vulnerable path needs
// it; non-vulnerable mode simply never consults it).
func NewContext(key [KeySize]byte, vulnerableMode bool) *Context {
	return &Context{
		Key:            key,
		ReducedKey:     ExtractReducedKey(key),
		VulnerableMode: vulnerableMode,
	}
}

func rotl32(x uint32, n uint) uint32 {
	n &= 31
	return (x << n) | (x >> (32 - n))
}

func rotr32(x uint32, n uint) uint32 {
	n &= 31
	return (x >> n) | (x << (32 - n))
}

// roundKeys derives the 32 round keys per spec.md §4.D: in vulnerable mode
// the base is the reduced key rotated left by 1 bit each round; in full
// mode the base is the XOR of three 32-bit words derived from the 80 key
// bits, the first two rotating in opposite directions.
func (c *Context) roundKeys() [Rounds]uint32 {
	var rk [Rounds]uint32

	if c.VulnerableMode {
		base := c.ReducedKey
		for i := 0; i < Rounds; i++ {
			rk[i] = base ^ (uint32(i) * roundConstant)
			base = rotl32(base, 1)
		}
		return rk
	}

	k0 := uint32(c.Key[0])<<24 | uint32(c.Key[1])<<16 | uint32(c.Key[2])<<8 | uint32(c.Key[3])
	k1 := uint32(c.Key[4])<<24 | uint32(c.Key[5])<<16 | uint32(c.Key[6])<<8 | uint32(c.Key[7])
	k2 := uint32(c.Key[8])<<8 | uint32(c.Key[9])

	for i := 0; i < Rounds; i++ {
		rk[i] = k0 ^ k1 ^ k2 ^ (uint32(i) * roundConstant)
		k0 = rotl32(k0, 1)
		k1 = rotr32(k1, 1)
	}
	return rk
}

// roundFn is the byte-wise S-box substitution, XOR with the round key,
// then a 7-bit left rotation (spec.md §4.D).
func roundFn(half uint32, key uint32) uint32 {
	var b [4]byte
	b[0] = byte(half >> 24)
	b[1] = byte(half >> 16)
	b[2] = byte(half >> 8)
	b[3] = byte(half)
	for i := range b {
		b[i] = sbox[b[i]]
	}
	subbed := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	subbed ^= key
	return rotl32(subbed, 7)
}

var invSbox = func() [256]byte {
	var inv [256]byte
	for i, v := range sbox {
		inv[v] = byte(i)
	}
	return inv
}()

// roundFnInverse undoes roundFn for a fixed key: inverse rotation, XOR
// (self-inverse), inverse S-box. Only EncryptBlock needs it — decryption
// never inverts the round function, it just runs rounds in reverse order
// per spec.md §4.D.
func roundFnInverse(out uint32, key uint32) uint32 {
	v := rotr32(out, 7)
	v ^= key
	var b [4]byte
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
	for i := range b {
		b[i] = invSbox[b[i]]
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func loadBlock(block []byte) (l, r uint32) {
	l = uint32(block[0])<<24 | uint32(block[1])<<16 | uint32(block[2])<<8 | uint32(block[3])
	r = uint32(block[4])<<24 | uint32(block[5])<<16 | uint32(block[6])<<8 | uint32(block[7])
	return l, r
}

func storeBlock(out []byte, l, r uint32) {
	out[0] = byte(l >> 24)
	out[1] = byte(l >> 16)
	out[2] = byte(l >> 8)
	out[3] = byte(l)
	out[4] = byte(r >> 24)
	out[5] = byte(r >> 16)
	out[6] = byte(r >> 8)
	out[7] = byte(r)
}

// DecryptBlock decrypts one 64-bit block (spec.md §4.D): for round in
// 31..0, (L,R) := (RoundFn(R, k[round]), L).
func (c *Context) DecryptBlock(block []byte) [BlockSize]byte {
	l, r := loadBlock(block)
	rk := c.roundKeys()
	for round := Rounds - 1; round >= 0; round-- {
		l, r = roundFn(r, rk[round]), l
	}
	var out [BlockSize]byte
	storeBlock(out[:], l, r)
	return out
}

// EncryptBlock is the inverse of DecryptBlock, used to construct test
// vectors and by the key-recovery engine's self-tests. It is not part of
// the air-interface contract itself — TEA1 as deployed is only ever
// decrypted by a receiver — but follows from inverting DecryptBlock's
// round transform (L,R) := (RoundFn(R,k), L) one round at a time.
func (c *Context) EncryptBlock(block []byte) [BlockSize]byte {
	l, r := loadBlock(block)
	rk := c.roundKeys()
	for round := 0; round < Rounds; round++ {
		l, r = r, roundFnInverse(l, rk[round])
	}
	var out [BlockSize]byte
	storeBlock(out[:], l, r)
	return out
}

// DecryptStream implements spec.md §4.D's CBC-style chaining: plaintext of
// block i is D(C_i) XOR IV_i, and IV_{i+1} = C_i. The first IV is all-zero
// (set by NewContext's zero value). Operates in place over whole
// BlockSize-byte blocks; any trailing partial block is left untouched.
func (c *Context) DecryptStream(data []byte) {
	blocks := len(data) / BlockSize
	for i := 0; i < blocks; i++ {
		block := data[i*BlockSize : (i+1)*BlockSize]
		plain := c.DecryptBlock(block)
		for j := 0; j < BlockSize; j++ {
			plain[j] ^= c.IV[j]
		}
		copy(c.IV[:], block)
		copy(block, plain[:])
	}
}
