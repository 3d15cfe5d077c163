package ip6

// Checksum accumulates the internet one's-complement sum over buf, folded
// into 16 bits and combined with initial. Byte pairs are summed big-endian;
// an odd trailing byte is padded on the right.
func Checksum(buf []byte, initial uint16) uint16 {
	v := uint32(initial)

	l := len(buf)
	if l&1 != 0 {
		l--
		v += uint32(buf[l]) << 8
	}

	for i := 0; i < l; i += 2 {
		v += uint32(buf[i])<<8 + uint32(buf[i+1])
	}

	return ChecksumCombine(uint16(v), uint16(v>>16))
}

// ChecksumCombine combines two partial checksums by adding them with
// end-around carry.
func ChecksumCombine(a, b uint16) uint16 {
	v := uint32(a) + uint32(b)
	return uint16(v + v>>16)
}

// PseudoHeaderChecksum computes the partial checksum of the IPv6
// pseudo-header (RFC 2460 section 8.1): source address, destination address,
// upper-layer payload length, and next-header value. The result seeds the
// checksum of any upper-layer protocol that covers the pseudo-header, ICMPv6
// included.
func PseudoHeaderChecksum(src, dst Address, length uint16, proto ProtocolNumber) uint16 {
	sum := Checksum(src[:], 0)
	sum = Checksum(dst[:], sum)
	sum = Checksum([]byte{byte(length >> 8), byte(length)}, sum)
	return Checksum([]byte{0, byte(proto)}, sum)
}
