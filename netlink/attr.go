package netlink

import "errors"

// AttrHeaderLen is the on-wire size of an attribute's length+type header.
const AttrHeaderLen = 4

// ErrTruncatedAttr is returned when an attribute header or payload runs
// past the end of the buffer being parsed.
var ErrTruncatedAttr = errors.New("netlink: truncated attribute")

// Attribute is a single parsed TLV record: its type and its payload, with
// padding already stripped.
type Attribute struct {
	Type uint16
	Data []byte
}

// Uint8 returns the attribute payload's first byte, or 0 if empty.
func (a Attribute) Uint8() uint8 {
	if len(a.Data) < 1 {
		return 0
	}
	return a.Data[0]
}

// Uint16 interprets the payload as a host-endian uint16.
func (a Attribute) Uint16() uint16 {
	if len(a.Data) < 2 {
		return 0
	}
	return Native.Uint16(a.Data)
}

// Uint32 interprets the payload as a host-endian uint32.
func (a Attribute) Uint32() uint32 {
	if len(a.Data) < 4 {
		return 0
	}
	return Native.Uint32(a.Data)
}

// Int32 interprets the payload as a host-endian int32.
func (a Attribute) Int32() int32 {
	return int32(a.Uint32())
}

// String returns the payload up to (but not including) its terminating
// NUL, the convention used by string attributes such as IFLA_IFNAME.
func (a Attribute) String() string {
	b := a.Data
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Nested parses the payload as a further sequence of attributes.
func (a Attribute) Nested() (*AttrIterator, error) {
	return NewAttrIterator(a.Data)
}

// AttrIterator walks a TLV-encoded byte range, yielding one Attribute per
// Next call. It stops cleanly (ok == false, err == nil) when the buffer is
// exhausted, and stops with an error only when a TLV header is internally
// inconsistent (length < header size, or length past the remaining
// buffer) — per the defensive-parsing contract, callers keep whatever was
// already yielded.
type AttrIterator struct {
	rest []byte
}

// NewAttrIterator constructs an iterator over b. b itself need not be
// attribute-aligned; each step reads an aligned stride.
func NewAttrIterator(b []byte) (*AttrIterator, error) {
	return &AttrIterator{rest: b}, nil
}

// Next advances the iterator, returning false once the buffer is
// exhausted or malformed.
func (it *AttrIterator) Next() (Attribute, bool, error) {
	if len(it.rest) == 0 {
		return Attribute{}, false, nil
	}
	if len(it.rest) < AttrHeaderLen {
		return Attribute{}, false, ErrTruncatedAttr
	}
	length := int(Native.Uint16(it.rest[0:2]))
	typ := Native.Uint16(it.rest[2:4])
	if length < AttrHeaderLen || length > len(it.rest) {
		return Attribute{}, false, ErrTruncatedAttr
	}
	data := it.rest[AttrHeaderLen:length]
	adv := Align(length)
	if adv > len(it.rest) {
		adv = len(it.rest)
	}
	it.rest = it.rest[adv:]
	return Attribute{Type: typ, Data: data}, true, nil
}

// ParseAttributes collects every attribute an iterator yields into a
// slice, stopping (without error) at the first malformed TLV and
// returning whatever was parsed up to that point.
func ParseAttributes(b []byte) ([]Attribute, error) {
	it, err := NewAttrIterator(b)
	if err != nil {
		return nil, err
	}
	var out []Attribute
	for {
		a, ok, err := it.Next()
		if err != nil {
			return out, nil
		}
		if !ok {
			return out, nil
		}
		out = append(out, a)
	}
}

// ParseAttributesMap is a convenience over ParseAttributes for callers
// that only care about the last attribute of each type (the common case
// for non-repeating attributes like IFLA_IFNAME).
func ParseAttributesMap(b []byte) (map[uint16]Attribute, error) {
	attrs, err := ParseAttributes(b)
	if err != nil {
		return nil, err
	}
	m := make(map[uint16]Attribute, len(attrs))
	for _, a := range attrs {
		m[a.Type] = a
	}
	return m, nil
}
