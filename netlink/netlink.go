// Package netlink implements the wire format shared by every kernel
// routing-control message: the fixed 16-byte header, the family-specific
// structs that follow it, and the TLV attribute encoding used inside both.
// It does not open sockets or know about sequence numbers; see package
// nlsock for that.
package netlink

import "encoding/binary"

// Native is the byte order used for every integer field in a kernel
// control message and in primitive-typed attributes. The handful of
// conventionally big-endian fields (VXLAN destination port, the TC
// protocol field) are swapped explicitly by their callers with Htons.
var Native = binary.LittleEndian

// Message header flags (see linux/netlink.h).
const (
	Request    = 0x1
	Multi      = 0x2
	Ack        = 0x4
	Root       = 0x100
	Match      = 0x200
	Dump       = Root | Match
	Replace    = 0x100
	Excl       = 0x200
	Create     = 0x400
	Append     = 0x800
)

// Message types that every family shares.
const (
	Noop    = 0x1
	ErrorMsg = 0x2
	Done    = 0x3
	Overrun = 0x4
)

// HeaderLen is the on-wire size of Header in bytes.
const HeaderLen = 16

// Header is the 16-byte message header shared by every kernel control
// message: total length (including itself), type, flags, sequence number,
// sender/receiver identifier. Field order and widths must match the
// kernel ABI exactly.
type Header struct {
	Len   uint32
	Type  uint16
	Flags uint16
	Seq   uint32
	Pid   uint32
}

// PutHeader writes h into b in wire order. b must be at least HeaderLen
// bytes.
func PutHeader(b []byte, h Header) {
	Native.PutUint32(b[0:4], h.Len)
	Native.PutUint16(b[4:6], h.Type)
	Native.PutUint16(b[6:8], h.Flags)
	Native.PutUint32(b[8:12], h.Seq)
	Native.PutUint32(b[12:16], h.Pid)
}

// ParseHeader reads a Header from the front of b. It returns false if b is
// shorter than HeaderLen.
func ParseHeader(b []byte) (Header, bool) {
	if len(b) < HeaderLen {
		return Header{}, false
	}
	return Header{
		Len:   Native.Uint32(b[0:4]),
		Type:  Native.Uint16(b[4:6]),
		Flags: Native.Uint16(b[6:8]),
		Seq:   Native.Uint32(b[8:12]),
		Pid:   Native.Uint32(b[12:16]),
	}, true
}

// Align rounds n up to the next 4-byte boundary, the alignment every
// message and attribute length advances by on this wire format.
func Align(n int) int {
	return (n + 3) &^ 3
}

// Htons swaps a uint16 from host to big-endian byte order, for the small
// set of fields the kernel always expects in network byte order
// regardless of host endianness (VXLAN port, TC protocol id).
func Htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}

// Ntohs is the same operation as Htons; the swap is its own inverse.
func Ntohs(v uint16) uint16 {
	return Htons(v)
}

// ParseError inspects a NLMSG_ERROR payload (the 4-byte signed error code
// followed by the original request header) and reports whether it
// represents a plain acknowledgement (code == 0) or a kernel error.
func ParseError(data []byte) (errno int32, orig Header, ok bool) {
	if len(data) < 4+HeaderLen {
		return 0, Header{}, false
	}
	errno = int32(Native.Uint32(data[0:4]))
	orig, ok = ParseHeader(data[4:])
	return errno, orig, ok
}
