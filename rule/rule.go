// Package rule implements List/Add/Delete for IP policy rules
// (RTM_*RULE messages), per spec.md §4.4.
package rule

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/metrics"
	"github.com/EsteSystems/netctl/necode"
	"github.com/EsteSystems/netctl/netlink"
	"github.com/EsteSystems/netctl/nlsock"
)

// FRA_* attribute types (linux/fib_rules.h).
const (
	fra_SRC      = 2
	fra_DST      = 1
	fra_IIFNAME  = 3
	fra_GOTO     = 4
	fra_PRIORITY = 6
	fra_TABLE    = 15
	fra_FWMARK   = 10
	fra_FWMASK   = 16
	fra_OIFNAME  = 17
)

// FR_ACT_* rule actions this package recognises (linux/fib_rules.h),
// hand-defined alongside the FRA_* attribute types above rather than
// pulled from x/sys/unix.
const (
	ActionToTable = 1
	ActionGoto    = 2
)

// Rule is a snapshot view of one RTM_NEWRULE record. Table is always
// the resolved table id: the header byte when <= 255 and no FRA_TABLE
// attribute was present, otherwise the attribute's value, per
// spec.md's "FRA_TABLE used unconditionally" note.
type Rule struct {
	Family   uint8
	Src      net.IP
	SrcLen   uint8
	Dst      net.IP
	DstLen   uint8
	Tos      uint8
	Table    uint32
	Priority uint32
	Action   uint8
	IifName  string
	OifName  string
	Goto     uint32
}

// Parse decodes one RTM_*RULE message body into a Rule.
func Parse(body []byte) (*Rule, error) {
	if len(body) < netlink.SizeofFibRuleHdr {
		return nil, necode.ErrVerificationFailed
	}
	hdr := netlink.DeserializeFibRuleHdr(body)
	r := &Rule{
		Family: hdr.Family,
		SrcLen: hdr.SrcLen,
		DstLen: hdr.DstLen,
		Tos:    hdr.Tos,
		Table:  uint32(hdr.Table),
		Action: hdr.Action,
	}

	attrs, err := netlink.ParseAttributes(body[netlink.SizeofFibRuleHdr:])
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		switch a.Type {
		case fra_SRC:
			r.Src = append(net.IP(nil), a.Data...)
		case fra_DST:
			r.Dst = append(net.IP(nil), a.Data...)
		case fra_IIFNAME:
			r.IifName = a.String()
		case fra_OIFNAME:
			r.OifName = a.String()
		case fra_PRIORITY:
			r.Priority = a.Uint32()
		case fra_GOTO:
			r.Goto = a.Uint32()
		case fra_TABLE:
			// FRA_TABLE is authoritative whenever present; the header
			// byte only carries table ids <= 255 on its own.
			if v := a.Uint32(); v > 0 {
				r.Table = v
			}
		}
	}
	return r, nil
}

// List dumps every IP policy rule for the given address family
// (unix.AF_INET or unix.AF_INET6).
func List(s *nlsock.Socket, family uint8) ([]*Rule, error) {
	buf := make([]byte, netlink.HeaderLen+netlink.SizeofFibRuleHdr)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_GETRULE, netlink.Request|netlink.Dump, s.NextSeq(), s.Pid())
	if err != nil {
		return nil, err
	}
	hdr := &netlink.FibRuleHdr{Family: family}
	if err := b.AppendRaw(hdr.Serialize()); err != nil {
		return nil, err
	}

	bodies, err := s.Request(b.Finalize(h))
	if err != nil {
		return nil, necode.FromKernel(err)
	}
	out := make([]*Rule, 0, len(bodies))
	for _, body := range bodies {
		r, err := Parse(body)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	metrics.DumpSizeHistogram.WithLabelValues("rule").Observe(float64(len(out)))
	return out, nil
}

// Add creates a policy rule routing matching traffic to the given
// table, at the given priority. Src/Dst may be nil to match any
// address in that direction.
func Add(s *nlsock.Socket, family uint8, src net.IP, srcLen uint8, dst net.IP, dstLen uint8, table uint32, priority uint32) error {
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_NEWRULE, netlink.Request|netlink.Ack|netlink.Create|netlink.Excl, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	hdr := &netlink.FibRuleHdr{
		Family: family,
		SrcLen: srcLen,
		DstLen: dstLen,
		Action: ActionToTable,
	}
	if table <= 255 {
		hdr.Table = uint8(table)
	}
	if err := b.AppendRaw(hdr.Serialize()); err != nil {
		return err
	}
	if src != nil {
		if err := b.AppendAttribute(fra_SRC, src); err != nil {
			return err
		}
	}
	if dst != nil {
		if err := b.AppendAttribute(fra_DST, dst); err != nil {
			return err
		}
	}
	if err := b.AppendUint32Attr(fra_TABLE, table); err != nil {
		return err
	}
	if priority != 0 {
		if err := b.AppendUint32Attr(fra_PRIORITY, priority); err != nil {
			return err
		}
	}

	_, err = s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}

// Delete removes a policy rule matching the given selector fields;
// zero-value Src/Dst/priority are treated as "don't care" by the
// kernel's rule-matching semantics for RTM_DELRULE.
func Delete(s *nlsock.Socket, family uint8, src net.IP, srcLen uint8, dst net.IP, dstLen uint8, table uint32, priority uint32) error {
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_DELRULE, netlink.Request|netlink.Ack, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	hdr := &netlink.FibRuleHdr{
		Family: family,
		SrcLen: srcLen,
		DstLen: dstLen,
	}
	if table <= 255 {
		hdr.Table = uint8(table)
	}
	if err := b.AppendRaw(hdr.Serialize()); err != nil {
		return err
	}
	if src != nil {
		if err := b.AppendAttribute(fra_SRC, src); err != nil {
			return err
		}
	}
	if dst != nil {
		if err := b.AppendAttribute(fra_DST, dst); err != nil {
			return err
		}
	}
	if err := b.AppendUint32Attr(fra_TABLE, table); err != nil {
		return err
	}
	if priority != 0 {
		if err := b.AppendUint32Attr(fra_PRIORITY, priority); err != nil {
			return err
		}
	}

	_, err = s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}
