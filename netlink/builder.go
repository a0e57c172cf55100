package netlink

import "errors"

// ErrBufferTooSmall is returned the instant any builder operation would
// write past the end of the caller-supplied buffer. It means the caller
// under-allocated; retrying at the same buffer size will not help.
var ErrBufferTooSmall = errors.New("netlink: buffer too small")

// MessageHandle identifies a message started with StartMessage, to be
// passed back to Finalize once the caller is done appending to it.
type MessageHandle struct {
	start int
}

// Builder assembles a single netlink message into a caller-owned buffer.
// A Builder is not reusable across messages; call NewBuilder again for
// the next one. Every append operation is checked against the buffer's
// remaining capacity; none of them ever write past buf.
type Builder struct {
	buf []byte
	n   int
}

// NewBuilder wraps buf for building. The buffer's full capacity (not its
// initial length) is the limit; len(buf) is ignored and n starts at 0.
func NewBuilder(buf []byte) *Builder {
	return &Builder{buf: buf[:cap(buf)]}
}

func (b *Builder) room(n int) bool {
	return b.n+n <= len(b.buf)
}

// StartMessage reserves a header at the current position, writing a
// provisional length, and returns a handle for Finalize.
func (b *Builder) StartMessage(msgType, flags uint16, seq, pid uint32) (MessageHandle, error) {
	if !b.room(HeaderLen) {
		return MessageHandle{}, ErrBufferTooSmall
	}
	h := MessageHandle{start: b.n}
	PutHeader(b.buf[b.n:b.n+HeaderLen], Header{Len: 0, Type: msgType, Flags: flags, Seq: seq, Pid: pid})
	b.n += HeaderLen
	return h, nil
}

// AppendRaw appends raw little-endian bytes, e.g. a family header struct
// already serialized by the caller. The caller guarantees the bytes match
// the message type.
func (b *Builder) AppendRaw(data []byte) error {
	if !b.room(len(data)) {
		return ErrBufferTooSmall
	}
	copy(b.buf[b.n:], data)
	b.n += len(data)
	return nil
}

// AppendAttribute writes a TLV with the given type and payload, zero
// padded to a 4-byte boundary.
func (b *Builder) AppendAttribute(attrType uint16, data []byte) error {
	length := AttrHeaderLen + len(data)
	aligned := Align(length)
	if !b.room(aligned) {
		return ErrBufferTooSmall
	}
	Native.PutUint16(b.buf[b.n:b.n+2], uint16(length))
	Native.PutUint16(b.buf[b.n+2:b.n+4], attrType)
	copy(b.buf[b.n+4:b.n+length], data)
	for i := length; i < aligned; i++ {
		b.buf[b.n+i] = 0
	}
	b.n += aligned
	return nil
}

// AppendUint8Attr writes a single-byte attribute.
func (b *Builder) AppendUint8Attr(attrType uint16, v uint8) error {
	return b.AppendAttribute(attrType, []byte{v})
}

// AppendUint16Attr writes a host-endian uint16 attribute.
func (b *Builder) AppendUint16Attr(attrType uint16, v uint16) error {
	var data [2]byte
	Native.PutUint16(data[:], v)
	return b.AppendAttribute(attrType, data[:])
}

// AppendUint32Attr writes a host-endian uint32 attribute.
func (b *Builder) AppendUint32Attr(attrType uint16, v uint32) error {
	var data [4]byte
	Native.PutUint32(data[:], v)
	return b.AppendAttribute(attrType, data[:])
}

// AppendUint64Attr writes a host-endian uint64 attribute.
func (b *Builder) AppendUint64Attr(attrType uint16, v uint64) error {
	var data [8]byte
	Native.PutUint64(data[:], v)
	return b.AppendAttribute(attrType, data[:])
}

// AppendStringAttr writes s followed by a single NUL, then pads, e.g. for
// IFLA_IFNAME.
func (b *Builder) AppendStringAttr(attrType uint16, s string) error {
	data := make([]byte, len(s)+1)
	copy(data, s)
	return b.AppendAttribute(attrType, data)
}

// BeginNested reserves a TLV header for a nested attribute and returns its
// start offset; children are appended with further Append* calls, and the
// header is back-patched by EndNested once they're all written.
func (b *Builder) BeginNested(attrType uint16) (int, error) {
	if !b.room(AttrHeaderLen) {
		return 0, ErrBufferTooSmall
	}
	start := b.n
	Native.PutUint16(b.buf[b.n:b.n+2], 0) // length patched in EndNested
	Native.PutUint16(b.buf[b.n+2:b.n+4], attrType)
	b.n += AttrHeaderLen
	return start, nil
}

// EndNested back-patches the nested attribute started at start so that its
// length covers every byte appended since, then pads the whole span to a
// 4-byte boundary.
func (b *Builder) EndNested(start int) error {
	length := b.n - start
	Native.PutUint16(b.buf[start:start+2], uint16(length))
	aligned := Align(length)
	if !b.room(aligned - length) {
		return ErrBufferTooSmall
	}
	for i := length; i < aligned; i++ {
		b.buf[start+i] = 0
	}
	b.n = start + aligned
	return nil
}

// Finalize writes the final total length into the header reserved by
// StartMessage and returns the finished message as a slice of the
// builder's buffer. The Builder must not be used again afterward.
func (b *Builder) Finalize(h MessageHandle) []byte {
	Native.PutUint32(b.buf[h.start:h.start+4], uint32(b.n-h.start))
	return b.buf[h.start:b.n]
}

// Len reports the number of bytes written so far.
func (b *Builder) Len() int {
	return b.n
}

// Bytes exposes the buffer written so far, for callers that need to
// back-patch a raw struct header written earlier (e.g. route.Nexthop's
// length field, which EndNested's TLV-only back-patching doesn't cover).
func (b *Builder) Bytes() []byte {
	return b.buf[:b.n]
}
