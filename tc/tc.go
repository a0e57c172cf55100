// Package tc implements the qdisc/class/filter create and delete
// operations (RTM_*QDISC, RTM_*TCLASS, RTM_*TFILTER), per spec.md §4.4.
package tc

import (
	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/necode"
	"github.com/EsteSystems/netctl/netlink"
	"github.com/EsteSystems/netctl/nlsock"
)

// RTM_* message types for traffic control objects, not otherwise exposed
// by x/sys/unix's general rtnetlink constant set.
const (
	rtmNewQdisc  = 36
	rtmDelQdisc  = 37
	rtmNewTclass = 40
	rtmDelTclass = 41
	rtmNewTfilter = 44
	rtmDelTfilter = 45
)

// TCA_* top-level attribute types shared by qdiscs, classes and filters.
const (
	tcaKind    = 1
	tcaOptions = 2
)

// Per-kind TCA_* option attribute types.
const (
	tcaTbfParms  = 1
	tcaTbfRate64 = 4
	tcaTbfBurst  = 6

	tcaHtbParms  = 1
	tcaHtbInit   = 2
	tcaHtbRate64 = 6
	tcaHtbCeil64 = 7

	tcaU32Classid = 1
	tcaU32Sel     = 5
)

func ratespec(bytesPerSec uint64) (Ratespec, bool) {
	if bytesPerSec > 0xFFFFFFFF {
		return Ratespec{Rate: 0xFFFFFFFF}, true
	}
	return Ratespec{Rate: uint32(bytesPerSec)}, false
}

// bufferSize implements spec.md's sizing formula: buffer = max(rate/10, 1600).
func bufferSize(bytesPerSec uint64) uint32 {
	b := bytesPerSec / 10
	if b < 1600 {
		b = 1600
	}
	if b > 0xFFFFFFFF {
		b = 0xFFFFFFFF
	}
	return uint32(b)
}

func newTcRequest(s *nlsock.Socket, buf []byte, msgType uint16, flags uint16, ifindex int32, handle, parent uint32) (*netlink.Builder, netlink.MessageHandle, error) {
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(msgType, netlink.Request|netlink.Ack|flags, s.NextSeq(), s.Pid())
	if err != nil {
		return nil, netlink.MessageHandle{}, err
	}
	msg := &netlink.TcMsg{Family: unix.AF_UNSPEC, Index: ifindex, Handle: handle, Parent: parent}
	if err := b.AppendRaw(msg.Serialize()); err != nil {
		return nil, netlink.MessageHandle{}, err
	}
	return b, h, nil
}

func sendTc(s *nlsock.Socket, b *netlink.Builder, h netlink.MessageHandle) error {
	_, err := s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}

// CreatePfifo creates a "pfifo" qdisc whose OPTIONS payload is a bare u32
// queue limit.
func CreatePfifo(s *nlsock.Socket, ifindex int32, parent uint32, handle uint32, limit uint32) error {
	buf := make([]byte, 256)
	b, h, err := newTcRequest(s, buf, rtmNewQdisc, netlink.Create|netlink.Excl, ifindex, handle, parent)
	if err != nil {
		return err
	}
	if err := b.AppendStringAttr(tcaKind, "pfifo"); err != nil {
		return err
	}
	if err := b.AppendUint32Attr(tcaOptions, limit); err != nil {
		return err
	}
	return sendTc(s, b, h)
}

// CreateFqCodel creates an "fq_codel" qdisc, which carries no OPTIONS.
func CreateFqCodel(s *nlsock.Socket, ifindex int32, parent uint32, handle uint32) error {
	buf := make([]byte, 128)
	b, h, err := newTcRequest(s, buf, rtmNewQdisc, netlink.Create|netlink.Excl, ifindex, handle, parent)
	if err != nil {
		return err
	}
	if err := b.AppendStringAttr(tcaKind, "fq_codel"); err != nil {
		return err
	}
	return sendTc(s, b, h)
}

// CreateTbf creates a "tbf" (token bucket filter) qdisc at the given rate
// (bytes/sec) and burst (bytes).
func CreateTbf(s *nlsock.Socket, ifindex int32, parent uint32, handle uint32, rateBps uint64, burst uint32, limit uint32) error {
	buf := make([]byte, 256)
	b, h, err := newTcRequest(s, buf, rtmNewQdisc, netlink.Create|netlink.Excl, ifindex, handle, parent)
	if err != nil {
		return err
	}
	if err := b.AppendStringAttr(tcaKind, "tbf"); err != nil {
		return err
	}
	opts, err := b.BeginNested(tcaOptions)
	if err != nil {
		return err
	}
	rate, overflow := ratespec(rateBps)
	qopt := &TbfQopt{Rate: rate, Limit: limit, Buffer: bufferSize(rateBps), Mtu: 2048}
	if err := b.AppendAttribute(tcaTbfParms, qopt.Serialize()); err != nil {
		return err
	}
	if err := b.AppendUint32Attr(tcaTbfBurst, burst); err != nil {
		return err
	}
	if overflow {
		if err := b.AppendUint64Attr(tcaTbfRate64, rateBps); err != nil {
			return err
		}
	}
	if err := b.EndNested(opts); err != nil {
		return err
	}
	return sendTc(s, b, h)
}

// CreateHtbQdisc creates the root "htb" qdisc.
func CreateHtbQdisc(s *nlsock.Socket, ifindex int32, parent uint32, handle uint32, defaultClass uint32) error {
	buf := make([]byte, 256)
	b, h, err := newTcRequest(s, buf, rtmNewQdisc, netlink.Create|netlink.Excl, ifindex, handle, parent)
	if err != nil {
		return err
	}
	if err := b.AppendStringAttr(tcaKind, "htb"); err != nil {
		return err
	}
	opts, err := b.BeginNested(tcaOptions)
	if err != nil {
		return err
	}
	glob := &HtbGlob{Version: 3, Rate2Quantum: 10, Defcls: defaultClass}
	if err := b.AppendAttribute(tcaHtbInit, glob.Serialize()); err != nil {
		return err
	}
	if err := b.EndNested(opts); err != nil {
		return err
	}
	return sendTc(s, b, h)
}

// CreateHtbClass creates an HTB class with the given rate/ceiling
// (bytes/sec). Quantum is left 0, letting the kernel compute it, per
// spec.md.
func CreateHtbClass(s *nlsock.Socket, ifindex int32, parent, classid uint32, rateBps, ceilBps uint64) error {
	buf := make([]byte, 256)
	b, h, err := newTcRequest(s, buf, rtmNewTclass, netlink.Create|netlink.Excl, ifindex, classid, parent)
	if err != nil {
		return err
	}
	if err := b.AppendStringAttr(tcaKind, "htb"); err != nil {
		return err
	}
	opts, err := b.BeginNested(tcaOptions)
	if err != nil {
		return err
	}
	rate, rateOverflow := ratespec(rateBps)
	ceil, ceilOverflow := ratespec(ceilBps)
	htbOpt := &HtbOpt{
		Rate:    rate,
		Ceil:    ceil,
		Buffer:  bufferSize(rateBps),
		Cbuffer: bufferSize(ceilBps),
		Quantum: 0,
	}
	if err := b.AppendAttribute(tcaHtbParms, htbOpt.Serialize()); err != nil {
		return err
	}
	if rateOverflow {
		if err := b.AppendUint64Attr(tcaHtbRate64, rateBps); err != nil {
			return err
		}
	}
	if ceilOverflow {
		if err := b.AppendUint64Attr(tcaHtbCeil64, ceilBps); err != nil {
			return err
		}
	}
	if err := b.EndNested(opts); err != nil {
		return err
	}
	return sendTc(s, b, h)
}

// DeleteQdisc removes the qdisc identified by handle/parent on ifindex.
func DeleteQdisc(s *nlsock.Socket, ifindex int32, parent, handle uint32) error {
	buf := make([]byte, 64)
	b, h, err := newTcRequest(s, buf, rtmDelQdisc, 0, ifindex, handle, parent)
	if err != nil {
		return err
	}
	return sendTc(s, b, h)
}

// DeleteClass removes the class identified by classid/parent on ifindex.
func DeleteClass(s *nlsock.Socket, ifindex int32, parent, classid uint32) error {
	buf := make([]byte, 64)
	b, h, err := newTcRequest(s, buf, rtmDelTclass, 0, ifindex, classid, parent)
	if err != nil {
		return err
	}
	return sendTc(s, b, h)
}

// U32Match is one {mask, value, byte-offset} match term for a u32 filter.
type U32Match struct {
	Mask, Val uint32
	Off       int32
}

// CreateU32Filter creates a u32 classifier matching every term in
// matches (ANDed together), directing matching packets to classid. info
// packs priority in the upper 16 bits and the (big-endian) protocol in
// the lower 16, per spec.md.
func CreateU32Filter(s *nlsock.Socket, ifindex int32, parent uint32, priority uint16, protocol uint16, classid uint32, matches []U32Match) error {
	buf := make([]byte, 512)
	b := netlink.NewBuilder(buf)
	info := uint32(priority)<<16 | uint32(netlink.Htons(protocol))
	h, err := b.StartMessage(rtmNewTfilter, netlink.Request|netlink.Ack|netlink.Create|netlink.Excl, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	msg := &netlink.TcMsg{Family: unix.AF_UNSPEC, Index: ifindex, Parent: parent, Info: info}
	if err := b.AppendRaw(msg.Serialize()); err != nil {
		return err
	}
	if err := b.AppendStringAttr(tcaKind, "u32"); err != nil {
		return err
	}
	opts, err := b.BeginNested(tcaOptions)
	if err != nil {
		return err
	}
	if err := b.AppendUint32Attr(tcaU32Classid, classid); err != nil {
		return err
	}

	selStart := b.Len()
	sel := &U32Sel{Nkeys: uint8(len(matches))}
	if err := b.AppendAttribute(tcaU32Sel, sel.Serialize()); err != nil {
		return err
	}
	// The TCA_U32_SEL attribute's payload is the fixed tc_u32_sel struct
	// immediately followed by nkeys tc_u32_key structs with no TLV framing
	// between them; extend its already-written length to cover them.
	for _, m := range matches {
		k := &U32Key{Mask: m.Mask, Val: m.Val, Off: m.Off}
		if err := b.AppendRaw(k.Serialize()); err != nil {
			return err
		}
	}
	fixupAttrLength(b, selStart)

	if err := b.EndNested(opts); err != nil {
		return err
	}
	return sendTc(s, b, h)
}

// fixupAttrLength extends the TLV header written at start to cover
// everything appended since, because AppendAttribute already finalised a
// length covering only its own fixed payload and CreateU32Filter appends
// the variable-length key array afterward instead of through
// AppendAttribute.
func fixupAttrLength(b *netlink.Builder, start int) {
	length := b.Len() - start
	netlink.Native.PutUint16(b.Bytes()[start:start+2], uint16(length))
}

// DeleteFilter removes the filter identified by priority/protocol/parent.
func DeleteFilter(s *nlsock.Socket, ifindex int32, parent uint32, priority, protocol uint16) error {
	buf := make([]byte, 64)
	b := netlink.NewBuilder(buf)
	info := uint32(priority)<<16 | uint32(netlink.Htons(protocol))
	h, err := b.StartMessage(rtmDelTfilter, netlink.Request|netlink.Ack, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	msg := &netlink.TcMsg{Family: unix.AF_UNSPEC, Index: ifindex, Parent: parent, Info: info}
	if err := b.AppendRaw(msg.Serialize()); err != nil {
		return err
	}
	return sendTc(s, b, h)
}
