package pdu

// packBits writes the low (end-start) bits of v into bits[start:end],
// MSB-first, the inverse of bitsToUint32. It exists to build test
// fixtures and round-trip fuzz input; the air interface itself is
// receive-only (spec.md §1 Non-goals).
func packBits(bits []byte, start, end int, v uint32) {
	width := end - start
	for i := 0; i < width; i++ {
		shift := uint(width - 1 - i)
		bits[start+i] = byte((v >> shift) & 1)
	}
}

func setBit(bits []byte, idx int, v bool) {
	if v {
		bits[idx] = 1
	} else {
		bits[idx] = 0
	}
}

// Encode packs a Message back into a bit vector of the length minLenFor
// requires for its Type, the inverse of Parse for every known Type.
func Encode(msg Message) []byte {
	n := minLenFor(msg.Type)
	bits := make([]byte, n)
	packBits(bits, 0, 8, uint32(msg.Type))

	switch msg.Type {
	case ChannelGrant:
		packBits(bits, 8, 24, msg.TalkGroupID)
		packBits(bits, 24, 48, msg.SourceID)
		slot := uint32((msg.ChannelFreq - channelFreqBase) / channelFreqStep)
		packBits(bits, 48, 60, slot)
		setBit(bits, 60, msg.Encrypted)
		setBit(bits, 61, msg.Emergency)

	case ChannelRelease:
		packBits(bits, 8, 24, msg.TalkGroupID)

	case GroupCall:
		packBits(bits, 8, 24, msg.TalkGroupID)
		packBits(bits, 24, 48, msg.SourceID)
		setBit(bits, 48, msg.Emergency)

	case UnitToUnit:
		packBits(bits, 8, 32, msg.SourceID)
		packBits(bits, 32, 56, msg.DestID)
		setBit(bits, 56, msg.Encrypted)

	case Registration, Affiliation:
		packBits(bits, 8, 32, msg.SourceID)
		packBits(bits, 32, 48, msg.TalkGroupID)

	case Emergency:
		packBits(bits, 8, 32, msg.SourceID)
		packBits(bits, 32, 48, msg.TalkGroupID)

	case Status:
		packBits(bits, 8, 32, msg.SourceID)
	}

	return bits
}
