package icmp6

import "encoding/binary"

// Header is an ICMPv6 header stored in a byte slice, accessed in place at
// its fixed wire offsets.
type Header []byte

const (
	// HeaderSize is the length of the header without type-specific data:
	// type, code, and checksum. It is also the minimum viable size of an
	// inbound datagram.
	HeaderSize = 4

	// EchoHeaderSize is the length of an echo request/reply header:
	// the base header plus identifier and sequence. Echo payload data
	// begins at this offset.
	EchoHeaderSize = 8

	// ChecksumOffset is the byte offset of the checksum field.
	ChecksumOffset = 2

	identOffset    = 4
	sequenceOffset = 6
)

// Type is the ICMPv6 message type field, per RFC 4443 numbering.
type Type byte

// Message types handled by this engine.
const (
	TypeDestinationUnreachable Type = 1
	TypeEchoRequest            Type = 128
	TypeEchoReply              Type = 129
)

// Type returns the message type field.
func (h Header) Type() Type { return Type(h[0]) }

// SetType sets the message type field.
func (h Header) SetType(t Type) { h[0] = byte(t) }

// Code returns the code field.
func (h Header) Code() byte { return h[1] }

// SetCode sets the code field.
func (h Header) SetCode(c byte) { h[1] = c }

// Checksum returns the checksum field.
func (h Header) Checksum() uint16 {
	return binary.BigEndian.Uint16(h[ChecksumOffset:])
}

// SetChecksum sets the checksum field.
func (h Header) SetChecksum(sum uint16) {
	binary.BigEndian.PutUint16(h[ChecksumOffset:], sum)
}

// Ident returns the echo identifier field.
func (h Header) Ident() uint16 {
	return binary.BigEndian.Uint16(h[identOffset:])
}

// SetIdent sets the echo identifier field.
func (h Header) SetIdent(id uint16) {
	binary.BigEndian.PutUint16(h[identOffset:], id)
}

// Sequence returns the echo sequence field.
func (h Header) Sequence() uint16 {
	return binary.BigEndian.Uint16(h[sequenceOffset:])
}

// SetSequence sets the echo sequence field.
func (h Header) SetSequence(seq uint16) {
	binary.BigEndian.PutUint16(h[sequenceOffset:], seq)
}
