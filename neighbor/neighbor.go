// Package neighbor implements the List/Add/Delete operations for ARP/NDP
// neighbor entries and bridge FDB entries, which share the same Ndmsg
// layout, per spec.md §4.4.
package neighbor

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/metrics"
	"github.com/EsteSystems/netctl/necode"
	"github.com/EsteSystems/netctl/netlink"
	"github.com/EsteSystems/netctl/nlsock"
)

// NDA_* attribute types (linux/neighbour.h).
const (
	nda_DST    = 1
	nda_LLADDR = 2
	nda_VLAN   = 5
)

// NUD_* neighbor states and NTF_* flags this package sets or recognises
// (linux/neighbour.h), hand-defined rather than pulled from x/sys/unix.
const (
	nudIncomplete = 0x01
	nudReachable  = 0x02
	nudStale      = 0x04
	nudDelay      = 0x08
	nudProbe      = 0x10
	nudFailed     = 0x20
	nudNoarp      = 0x40
	nudPermanent  = 0x80

	StatePermanent = nudPermanent
	StateReachable = nudReachable
	StateStale     = nudStale

	FlagSelf = 0x02
)

var stateNames = map[uint16]string{
	nudIncomplete: "INCOMPLETE",
	nudReachable:  "REACHABLE",
	nudStale:      "STALE",
	nudDelay:      "DELAY",
	nudProbe:      "PROBE",
	nudFailed:     "FAILED",
	nudNoarp:      "NOARP",
	nudPermanent:  "PERMANENT",
}

// Neighbor is a snapshot view of one RTM_NEWNEIGH record (also used, with
// Family == AF_BRIDGE, for bridge FDB entries).
type Neighbor struct {
	Family  uint8
	Index   int32
	IP      net.IP
	LLAddr  net.HardwareAddr
	State   uint16
	Flags   uint8
	VLAN    uint16
	HasVLAN bool
}

// StateName returns the textual NUD_* state name, or "UNKNOWN".
func (n *Neighbor) StateName() string {
	if s, ok := stateNames[n.State]; ok {
		return s
	}
	return "UNKNOWN"
}

// Parse decodes one RTM_*NEIGH message body into a Neighbor.
func Parse(body []byte) (*Neighbor, error) {
	if len(body) < netlink.SizeofNdmsg {
		return nil, necode.ErrVerificationFailed
	}
	hdr := netlink.DeserializeNdmsg(body)
	n := &Neighbor{
		Family: hdr.Family,
		Index:  hdr.Index,
		State:  hdr.State,
		Flags:  hdr.Flags,
	}

	attrs, err := netlink.ParseAttributes(body[netlink.SizeofNdmsg:])
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		switch a.Type {
		case nda_DST:
			n.IP = append(net.IP(nil), a.Data...)
		case nda_LLADDR:
			n.LLAddr = append(net.HardwareAddr(nil), a.Data...)
		case nda_VLAN:
			n.VLAN = a.Uint16()
			n.HasVLAN = true
		}
	}
	return n, nil
}

func list(s *nlsock.Socket, family uint8) ([]*Neighbor, error) {
	buf := make([]byte, netlink.HeaderLen+netlink.SizeofNdmsg)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_GETNEIGH, netlink.Request|netlink.Dump, s.NextSeq(), s.Pid())
	if err != nil {
		return nil, err
	}
	nd := &netlink.Ndmsg{Family: family}
	if err := b.AppendRaw(nd.Serialize()); err != nil {
		return nil, err
	}

	bodies, err := s.Request(b.Finalize(h))
	if err != nil {
		return nil, necode.FromKernel(err)
	}
	out := make([]*Neighbor, 0, len(bodies))
	for _, body := range bodies {
		n, err := Parse(body)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	kind := "neighbor"
	if family == unix.AF_BRIDGE {
		kind = "fdb"
	}
	metrics.DumpSizeHistogram.WithLabelValues(kind).Observe(float64(len(out)))
	return out, nil
}

// List dumps ARP (IPv4) and NDP (IPv6) neighbor tables together.
func List(s *nlsock.Socket) ([]*Neighbor, error) {
	v4, err := list(s, unix.AF_INET)
	if err != nil {
		return nil, err
	}
	v6, err := list(s, unix.AF_INET6)
	if err != nil {
		return nil, err
	}
	return append(v4, v6...), nil
}

// ListFDB dumps bridge forwarding-database entries (the neighbor table
// filtered to family AF_BRIDGE).
func ListFDB(s *nlsock.Socket) ([]*Neighbor, error) {
	return list(s, unix.AF_BRIDGE)
}

func addrFamily(ip net.IP) uint8 {
	if ip.To4() != nil {
		return unix.AF_INET
	}
	return unix.AF_INET6
}

// Add creates a neighbor (ARP/NDP) entry. When permanent is false the
// entry is created REACHABLE instead.
func Add(s *nlsock.Socket, index int32, ip net.IP, lladdr net.HardwareAddr, permanent bool) error {
	state := uint16(StateReachable)
	if permanent {
		state = StatePermanent
	}
	return addEntry(s, unix.AF_UNSPEC, index, addrFamily(ip), ip, lladdr, state, 0, false, 0)
}

// AddFDB creates a static bridge FDB entry, optionally tagged with a VLAN
// id, per spec.md's bridge FDB layout (family AF_BRIDGE, NTF_SELF,
// NUD_PERMANENT).
func AddFDB(s *nlsock.Socket, index int32, lladdr net.HardwareAddr, vlanID uint16, hasVLAN bool) error {
	return addEntry(s, unix.AF_BRIDGE, index, unix.AF_BRIDGE, nil, lladdr, StatePermanent, FlagSelf, hasVLAN, vlanID)
}

func addEntry(s *nlsock.Socket, msgFamily uint8, index int32, ipFamily uint8, ip net.IP, lladdr net.HardwareAddr, state uint16, flags uint8, hasVLAN bool, vlanID uint16) error {
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_NEWNEIGH, netlink.Request|netlink.Ack|netlink.Create|netlink.Excl, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	family := msgFamily
	if family == unix.AF_UNSPEC {
		family = ipFamily
	}
	nd := &netlink.Ndmsg{Family: family, Index: index, State: state, Flags: flags}
	if err := b.AppendRaw(nd.Serialize()); err != nil {
		return err
	}
	if ip != nil {
		if err := b.AppendAttribute(nda_DST, ip); err != nil {
			return err
		}
	}
	if lladdr != nil {
		if err := b.AppendAttribute(nda_LLADDR, lladdr); err != nil {
			return err
		}
	}
	if hasVLAN {
		if err := b.AppendUint16Attr(nda_VLAN, vlanID); err != nil {
			return err
		}
	}
	_, err = s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}

// Delete removes a neighbor entry by interface index and IP.
func Delete(s *nlsock.Socket, index int32, ip net.IP) error {
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_DELNEIGH, netlink.Request|netlink.Ack, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	nd := &netlink.Ndmsg{Family: addrFamily(ip), Index: index}
	if err := b.AppendRaw(nd.Serialize()); err != nil {
		return err
	}
	if err := b.AppendAttribute(nda_DST, ip); err != nil {
		return err
	}
	_, err = s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}

// DeleteFDB removes a static bridge FDB entry.
func DeleteFDB(s *nlsock.Socket, index int32, lladdr net.HardwareAddr) error {
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_DELNEIGH, netlink.Request|netlink.Ack, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	nd := &netlink.Ndmsg{Family: unix.AF_BRIDGE, Index: index, Flags: FlagSelf}
	if err := b.AppendRaw(nd.Serialize()); err != nil {
		return err
	}
	if err := b.AppendAttribute(nda_LLADDR, lladdr); err != nil {
		return err
	}
	_, err = s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}
