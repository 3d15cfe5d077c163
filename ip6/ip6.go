// Package ip6 holds the IPv6 core types shared across the weft stack:
// addresses, upper-layer protocol numbers, datagram metadata, and the
// internet-checksum primitives used by the transport layers.
package ip6

import "net/netip"

// ProtocolNumber identifies an IPv6 upper-layer protocol (next header).
type ProtocolNumber uint8

// Upper-layer protocol numbers carried in the IPv6 next-header field.
const (
	ProtoUDP    ProtocolNumber = 17
	ProtoICMP6  ProtocolNumber = 58
	ProtoNoNext ProtocolNumber = 59
)

// AddressSize is the size of an IPv6 address in bytes.
const AddressSize = 16

// HeaderSize is the size of the fixed IPv6 header. Upper layers reserve at
// least this much front headroom in messages they hand down for sending.
const HeaderSize = 40

// Address is an IPv6 address in wire order.
type Address [AddressSize]byte

// IsMulticast reports whether a is an IPv6 multicast address (ff00::/8).
func (a Address) IsMulticast() bool {
	return a[0] == 0xff
}

// IsUnspecified reports whether a is the unspecified address (::).
func (a Address) IsUnspecified() bool {
	return a == Address{}
}

// String returns the canonical text form of the address.
func (a Address) String() string {
	return netip.AddrFrom16(a).String()
}

// AddressFrom returns the Address for a parsed netip address.
// Only meaningful for 16-byte (IPv6) addresses.
func AddressFrom(addr netip.Addr) Address {
	return Address(addr.As16())
}

// MessageInfo carries the directional metadata of a datagram: the remote
// peer, the local (socket) address, and the receiving or sending interface.
// It has value semantics and is copied between an inbound context and any
// reply synthesized from it.
type MessageInfo struct {
	PeerAddr    Address
	LocalAddr   Address
	InterfaceID uint32
}
