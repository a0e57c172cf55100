package netlink

import "unsafe"

// Family-specific header structs. Field order and widths match the kernel
// ABI exactly; sizes are derived with unsafe.Sizeof rather than hardcoded,
// the same idiom the teacher uses for its request structs.

// IfInfomsg is the header of RTM_NEWLINK/RTM_DELLINK/RTM_GETLINK messages.
type IfInfomsg struct {
	Family uint8
	pad    uint8
	Type   uint16
	Index  int32
	Flags  uint32
	Change uint32
}

// SizeofIfInfomsg is the wire size of IfInfomsg.
const SizeofIfInfomsg = int(unsafe.Sizeof(IfInfomsg{}))

// Serialize returns the raw little-endian bytes of msg.
func (msg *IfInfomsg) Serialize() []byte {
	return (*(*[SizeofIfInfomsg]byte)(unsafe.Pointer(msg)))[:]
}

// DeserializeIfInfomsg reinterprets b (which must be at least
// SizeofIfInfomsg bytes) as an IfInfomsg.
func DeserializeIfInfomsg(b []byte) *IfInfomsg {
	if len(b) < SizeofIfInfomsg {
		return nil
	}
	return (*IfInfomsg)(unsafe.Pointer(&b[0]))
}

// NewIfInfomsg builds a header for the given family, defaulting Change to
// all-ones (the kernel convention for "apply every flag bit present in
// Flags").
func NewIfInfomsg(family uint8) *IfInfomsg {
	return &IfInfomsg{Family: family, Change: 0xFFFFFFFF}
}

// IfAddrmsg is the header of RTM_NEWADDR/RTM_DELADDR/RTM_GETADDR messages.
type IfAddrmsg struct {
	Family    uint8
	Prefixlen uint8
	Flags     uint8
	Scope     uint8
	Index     uint32
}

const SizeofIfAddrmsg = int(unsafe.Sizeof(IfAddrmsg{}))

func (msg *IfAddrmsg) Serialize() []byte {
	return (*(*[SizeofIfAddrmsg]byte)(unsafe.Pointer(msg)))[:]
}

func DeserializeIfAddrmsg(b []byte) *IfAddrmsg {
	if len(b) < SizeofIfAddrmsg {
		return nil
	}
	return (*IfAddrmsg)(unsafe.Pointer(&b[0]))
}

// Rtmsg is the header of RTM_NEWROUTE/RTM_DELROUTE/RTM_GETROUTE messages.
type Rtmsg struct {
	Family   uint8
	DstLen   uint8
	SrcLen   uint8
	Tos      uint8
	Table    uint8
	Protocol uint8
	Scope    uint8
	Type     uint8
	Flags    uint32
}

const SizeofRtmsg = int(unsafe.Sizeof(Rtmsg{}))

func (msg *Rtmsg) Serialize() []byte {
	return (*(*[SizeofRtmsg]byte)(unsafe.Pointer(msg)))[:]
}

func DeserializeRtmsg(b []byte) *Rtmsg {
	if len(b) < SizeofRtmsg {
		return nil
	}
	return (*Rtmsg)(unsafe.Pointer(&b[0]))
}

// Ndmsg is the header of RTM_NEWNEIGH/RTM_DELNEIGH/RTM_GETNEIGH messages
// (also reused, with Family set to AF_BRIDGE, for bridge FDB entries).
type Ndmsg struct {
	Family  uint8
	pad1    uint8
	pad2    uint16
	Index   int32
	State   uint16
	Flags   uint8
	Type    uint8
}

const SizeofNdmsg = int(unsafe.Sizeof(Ndmsg{}))

func (msg *Ndmsg) Serialize() []byte {
	return (*(*[SizeofNdmsg]byte)(unsafe.Pointer(msg)))[:]
}

func DeserializeNdmsg(b []byte) *Ndmsg {
	if len(b) < SizeofNdmsg {
		return nil
	}
	return (*Ndmsg)(unsafe.Pointer(&b[0]))
}

// FibRuleHdr is the header of RTM_NEWRULE/RTM_DELRULE/RTM_GETRULE
// messages. Table is a single byte for backward compatibility; callers
// needing a table id above 255 rely on the FRA_TABLE attribute and leave
// this field 0.
type FibRuleHdr struct {
	Family uint8
	DstLen uint8
	SrcLen uint8
	Tos    uint8
	Table  uint8
	res1   uint8
	res2   uint8
	Action uint8
	Flags  uint32
}

const SizeofFibRuleHdr = int(unsafe.Sizeof(FibRuleHdr{}))

func (msg *FibRuleHdr) Serialize() []byte {
	return (*(*[SizeofFibRuleHdr]byte)(unsafe.Pointer(msg)))[:]
}

func DeserializeFibRuleHdr(b []byte) *FibRuleHdr {
	if len(b) < SizeofFibRuleHdr {
		return nil
	}
	return (*FibRuleHdr)(unsafe.Pointer(&b[0]))
}

// TcMsg is the header of RTM_NEWQDISC/RTM_NEWTCLASS/RTM_NEWTFILTER and
// their GET/DEL counterparts.
type TcMsg struct {
	Family  uint8
	pad1    uint8
	pad2    uint16
	Index   int32
	Handle  uint32
	Parent  uint32
	Info    uint32
}

const SizeofTcMsg = int(unsafe.Sizeof(TcMsg{}))

func (msg *TcMsg) Serialize() []byte {
	return (*(*[SizeofTcMsg]byte)(unsafe.Pointer(msg)))[:]
}

func DeserializeTcMsg(b []byte) *TcMsg {
	if len(b) < SizeofTcMsg {
		return nil
	}
	return (*TcMsg)(unsafe.Pointer(&b[0]))
}

// RtNexthop is the fixed-size header preceding each hop's attributes
// inside an RTA_MULTIPATH payload (see spec.md's ECMP encoding rules).
type RtNexthop struct {
	Len     uint16
	Flags   uint8
	Hops    uint8
	Ifindex int32
}

const SizeofRtNexthop = int(unsafe.Sizeof(RtNexthop{}))

func (h *RtNexthop) Serialize() []byte {
	return (*(*[SizeofRtNexthop]byte)(unsafe.Pointer(h)))[:]
}

func DeserializeRtNexthop(b []byte) *RtNexthop {
	if len(b) < SizeofRtNexthop {
		return nil
	}
	return (*RtNexthop)(unsafe.Pointer(&b[0]))
}
