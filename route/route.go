// Package route implements the List/Add/Delete operations for the routing
// table (RTM_*ROUTE messages), including ECMP multipath encoding, per
// spec.md §4.4.
package route

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/metrics"
	"github.com/EsteSystems/netctl/necode"
	"github.com/EsteSystems/netctl/netlink"
	"github.com/EsteSystems/netctl/nlsock"
)

// RTA_* attribute types (linux/rtnetlink.h).
const (
	rta_DST       = 1
	rta_OIF       = 4
	rta_GATEWAY   = 5
	rta_PRIORITY  = 6
	rta_PREFSRC   = 7
	rta_MULTIPATH = 9
	rta_TABLE     = 15
)

// Route table, protocol, scope and type values this package recognises
// (linux/rtnetlink.h / linux/fib_rules.h), hand-defined alongside the RTA_*
// attribute types above rather than pulled from x/sys/unix, the same
// locally-pinned-constant approach the other object-operation packages use
// for their own family-specific enums.
const (
	TableMain    = 254
	TableDefault = 253

	ProtoStatic = 4

	ScopeUniverse = 0
	ScopeLink     = 253

	TypeUnicast = 1
)

// Nexthop is one next-hop of an ECMP (multipath) route.
type Nexthop struct {
	Gateway net.IP
	Ifindex int32
	Weight  uint8 // 1-255; encoded on the wire as Weight-1
}

// Route is a snapshot view of one RTM_NEWROUTE record.
type Route struct {
	Family   uint8
	Dst      net.IP
	DstLen   uint8
	Gateway  net.IP
	PrefSrc  net.IP
	Oif      int32
	Priority uint32
	Table    uint8
	Protocol uint8
	Scope    uint8
	Type     uint8
	Nexthops []Nexthop // populated only for RTA_MULTIPATH routes
}

// Parse decodes one RTM_*ROUTE message body into a Route.
func Parse(body []byte) (*Route, error) {
	if len(body) < netlink.SizeofRtmsg {
		return nil, necode.ErrVerificationFailed
	}
	hdr := netlink.DeserializeRtmsg(body)
	r := &Route{
		Family:   hdr.Family,
		DstLen:   hdr.DstLen,
		Table:    hdr.Table,
		Protocol: hdr.Protocol,
		Scope:    hdr.Scope,
		Type:     hdr.Type,
	}

	attrs, err := netlink.ParseAttributes(body[netlink.SizeofRtmsg:])
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		switch a.Type {
		case rta_DST:
			r.Dst = append(net.IP(nil), a.Data...)
		case rta_GATEWAY:
			r.Gateway = append(net.IP(nil), a.Data...)
		case rta_PREFSRC:
			r.PrefSrc = append(net.IP(nil), a.Data...)
		case rta_OIF:
			r.Oif = a.Int32()
		case rta_PRIORITY:
			r.Priority = a.Uint32()
		case rta_TABLE:
			// FIB table ids above 255 only appear here; the byte field in
			// the header is authoritative below that.
			if v := a.Uint32(); v > 0 {
				r.Table = uint8(v)
			}
		case rta_MULTIPATH:
			hops, err := decodeMultipath(a.Data)
			if err != nil {
				continue
			}
			r.Nexthops = hops
		}
	}
	return r, nil
}

// List dumps the route table, skipping any route whose table is neither
// MAIN nor DEFAULT.
func List(s *nlsock.Socket) ([]*Route, error) {
	buf := make([]byte, netlink.HeaderLen+netlink.SizeofRtmsg)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_GETROUTE, netlink.Request|netlink.Dump, s.NextSeq(), s.Pid())
	if err != nil {
		return nil, err
	}
	rt := &netlink.Rtmsg{Family: unix.AF_UNSPEC}
	if err := b.AppendRaw(rt.Serialize()); err != nil {
		return nil, err
	}

	bodies, err := s.Request(b.Finalize(h))
	if err != nil {
		return nil, necode.FromKernel(err)
	}
	out := make([]*Route, 0, len(bodies))
	for _, body := range bodies {
		r, err := Parse(body)
		if err != nil {
			continue
		}
		if r.Table != TableMain && r.Table != TableDefault {
			continue
		}
		out = append(out, r)
	}
	metrics.DumpSizeHistogram.WithLabelValues("route").Observe(float64(len(out)))
	return out, nil
}

// decodeMultipath parses an RTA_MULTIPATH payload back into Nexthops. Each
// record is a fixed RtNexthop header (whose Len field spans the header and
// its own attributes) followed by that many bytes of ordinary attributes,
// not a further TLV sequence at the top level.
func decodeMultipath(data []byte) ([]Nexthop, error) {
	var hops []Nexthop
	for len(data) >= netlink.SizeofRtNexthop {
		nh := netlink.DeserializeRtNexthop(data)
		if int(nh.Len) < netlink.SizeofRtNexthop || int(nh.Len) > len(data) {
			break
		}
		hop := Nexthop{Ifindex: nh.Ifindex, Weight: nh.Hops + 1}
		attrs, err := netlink.ParseAttributes(data[netlink.SizeofRtNexthop:nh.Len])
		if err == nil {
			for _, a := range attrs {
				if a.Type == rta_GATEWAY {
					hop.Gateway = append(net.IP(nil), a.Data...)
				}
			}
		}
		hops = append(hops, hop)

		adv := netlink.Align(int(nh.Len))
		if adv > len(data) {
			adv = len(data)
		}
		data = data[adv:]
	}
	return hops, nil
}

// encodeMultipath builds the RTA_MULTIPATH payload for a list of next-hops:
// a sequence of {RtNexthop header, GATEWAY attribute}, each back-patched to
// span its own header and attribute, per spec.md's ECMP encoding discipline.
func encodeMultipath(b *netlink.Builder, hops []Nexthop) error {
	for _, hop := range hops {
		start := b.Len()
		if err := b.AppendRaw((&netlink.RtNexthop{}).Serialize()); err != nil {
			return err
		}
		weight := hop.Weight
		if weight == 0 {
			weight = 1
		}
		if ip4 := hop.Gateway.To4(); ip4 != nil {
			if err := b.AppendAttribute(rta_GATEWAY, ip4); err != nil {
				return err
			}
		} else if hop.Gateway != nil {
			if err := b.AppendAttribute(rta_GATEWAY, hop.Gateway.To16()); err != nil {
				return err
			}
		}
		end := b.Len()
		nh := &netlink.RtNexthop{
			Len:     uint16(end - start),
			Hops:    weight - 1,
			Ifindex: hop.Ifindex,
		}
		copy(b.Bytes()[start:start+netlink.SizeofRtNexthop], nh.Serialize())
	}
	return nil
}

// Add creates a route. When len(hops) >= 1 the route is encoded as ECMP
// (RTA_MULTIPATH) instead of a plain GATEWAY/OIF pair; a single-element
// hops list is still valid ECMP encoding, matching the source's contract
// of "N >= 1 next-hops".
func Add(s *nlsock.Socket, family uint8, dst net.IP, dstLen uint8, gateway net.IP, oif int32, priority uint32, hops []Nexthop) error {
	buf := make([]byte, 1024)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_NEWROUTE, netlink.Request|netlink.Ack|netlink.Create|netlink.Excl, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	scope := uint8(ScopeLink)
	if gateway != nil || len(hops) > 0 {
		scope = ScopeUniverse
	}
	rt := &netlink.Rtmsg{
		Family:   family,
		DstLen:   dstLen,
		Table:    TableMain,
		Protocol: ProtoStatic,
		Scope:    scope,
		Type:     TypeUnicast,
	}
	if err := b.AppendRaw(rt.Serialize()); err != nil {
		return err
	}
	if dst != nil {
		if err := b.AppendAttribute(rta_DST, dst); err != nil {
			return err
		}
	}
	if priority != 0 {
		if err := b.AppendUint32Attr(rta_PRIORITY, priority); err != nil {
			return err
		}
	}
	switch {
	case len(hops) > 0:
		mp, err := b.BeginNested(rta_MULTIPATH)
		if err != nil {
			return err
		}
		if err := encodeMultipath(b, hops); err != nil {
			return err
		}
		if err := b.EndNested(mp); err != nil {
			return err
		}
	default:
		if gateway != nil {
			if err := b.AppendAttribute(rta_GATEWAY, gateway); err != nil {
				return err
			}
		}
		if oif != 0 {
			if err := b.AppendUint32Attr(rta_OIF, uint32(oif)); err != nil {
				return err
			}
		}
	}

	_, err = s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}

// Delete removes a route matching dst/dstLen within the main table.
func Delete(s *nlsock.Socket, family uint8, dst net.IP, dstLen uint8) error {
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_DELROUTE, netlink.Request|netlink.Ack, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	rt := &netlink.Rtmsg{Family: family, DstLen: dstLen, Table: TableMain}
	if err := b.AppendRaw(rt.Serialize()); err != nil {
		return err
	}
	if dst != nil {
		if err := b.AppendAttribute(rta_DST, dst); err != nil {
			return err
		}
	}
	_, err = s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}
