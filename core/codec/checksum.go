package codec

// Checksum computes the 16-bit one's-complement integrity check used by
// RESP frames (spec §4.2): byte pairs are packed big-endian into 16-bit
// words, the words are summed with end-around carry folding, and the
// result is bitwise inverted. RESP is the only kind that carries a check;
// HELLO/RREQ/RREP/DATA are idempotent at this layer and rely on the
// seen-cache instead (duplicates there are harmless to re-process).
func Checksum(message []byte) uint16 {
	var sum uint32
	for i := 0; i < len(message); i += 2 {
		word := uint32(message[i]) << 8
		if i+1 < len(message) {
			word |= uint32(message[i+1])
		}
		sum += word
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// VerifyChecksum reports whether received matches Checksum(message).
func VerifyChecksum(message []byte, received uint16) bool {
	return Checksum(message) == received
}
