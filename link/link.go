// Package link implements the List/Get/Create/Set/Delete operations for
// network interfaces (RTM_*LINK messages), per spec.md §4.4.
package link

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/metrics"
	"github.com/EsteSystems/netctl/necode"
	"github.com/EsteSystems/netctl/netlink"
	"github.com/EsteSystems/netctl/nlsock"
)

// IFLA_* attribute types used by this package (linux/if_link.h).
const (
	ifla_ADDRESS       = 1
	ifla_BROADCAST     = 2
	ifla_IFNAME        = 3
	ifla_MTU           = 4
	ifla_LINK          = 5
	ifla_MASTER        = 10
	ifla_OPERSTATE     = 16
	ifla_LINKINFO      = 18
	ifla_STATS64       = 23
	ifla_AF_SPEC       = 26
	ifla_NET_NS_FD     = 28
	ifla_CARRIER       = 33
	ifla_LINK_NETNSID  = 37

	ifla_info_KIND       = 1
	ifla_info_DATA       = 2
	ifla_info_SLAVE_KIND = 4

	ifla_vlan_ID    = 1
	ifla_vlan_FLAGS = 2

	ifla_bridge_VLAN_FILTERING = 7
	ifla_bridge_VLAN_INFO      = 2 // nested inside IFLA_AF_SPEC
)

// OperState names IFLA_OPERSTATE byte values (linux/if.h's
// IF_OPER_* enum, in order).
var OperState = [...]string{
	"UNKNOWN", "NOTPRESENT", "DOWN", "LOWERLAYERDOWN",
	"TESTING", "DORMANT", "UP",
}

// MaxNameLen is the longest visible interface name the kernel will
// accept (IFNAMSIZ - 1, since the buffer itself is null terminated).
const MaxNameLen = 15

// Interface is a snapshot view of one RTM_NEWLINK record.
type Interface struct {
	Index       int32
	Name        string
	HWAddr      net.HardwareAddr
	MTU         uint32
	OperState   string
	Carrier     bool
	Flags       uint32
	Master      *int32 // nil when unset
	LinkIndex   *int32 // IFLA_LINK: underlying/peer link, when present
	PeerNetnsID *int32
	Kind        string // "", "bond", "bridge", "vlan", "veth", "vxlan", "gre", "gretap", ...
	InfoData    []byte // raw IFLA_INFO_DATA blob, re-parsed on demand by the kind views
}

// Up reports whether IFF_UP is set.
func (i *Interface) Up() bool { return i.Flags&unix.IFF_UP != 0 }

// Parse decodes one RTM_*LINK message body (IfInfomsg followed by
// attributes) into an Interface.
func Parse(body []byte) (*Interface, error) {
	if len(body) < netlink.SizeofIfInfomsg {
		return nil, necode.ErrVerificationFailed
	}
	hdr := netlink.DeserializeIfInfomsg(body)
	iface := &Interface{Index: hdr.Index, Flags: hdr.Flags}

	attrs, err := netlink.ParseAttributes(body[netlink.SizeofIfInfomsg:])
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		switch a.Type {
		case ifla_IFNAME:
			iface.Name = a.String()
		case ifla_ADDRESS:
			iface.HWAddr = append(net.HardwareAddr(nil), a.Data...)
		case ifla_MTU:
			iface.MTU = a.Uint32()
		case ifla_OPERSTATE:
			idx := int(a.Uint8())
			if idx >= 0 && idx < len(OperState) {
				iface.OperState = OperState[idx]
			}
		case ifla_CARRIER:
			iface.Carrier = a.Uint8() != 0
		case ifla_MASTER:
			v := a.Int32()
			iface.Master = &v
		case ifla_LINK:
			v := a.Int32()
			iface.LinkIndex = &v
		case ifla_LINK_NETNSID:
			v := a.Int32()
			iface.PeerNetnsID = &v
		case ifla_LINKINFO:
			nested, err := a.Nested()
			if err != nil {
				continue
			}
			for {
				child, ok, err := nested.Next()
				if err != nil || !ok {
					break
				}
				switch child.Type {
				case ifla_info_KIND, ifla_info_SLAVE_KIND:
					if iface.Kind == "" {
						iface.Kind = child.String()
					}
				case ifla_info_DATA:
					iface.InfoData = append([]byte(nil), child.Data...)
				}
			}
		}
	}
	return iface, nil
}

// List dumps the whole link table.
func List(s *nlsock.Socket) ([]*Interface, error) {
	buf := make([]byte, netlink.HeaderLen+netlink.SizeofIfInfomsg)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_GETLINK, netlink.Request|netlink.Dump, s.NextSeq(), s.Pid())
	if err != nil {
		return nil, err
	}
	if err := b.AppendRaw(netlink.NewIfInfomsg(unix.AF_UNSPEC).Serialize()); err != nil {
		return nil, err
	}
	msg := b.Finalize(h)

	bodies, err := s.Request(msg)
	if err != nil {
		return nil, necode.FromKernel(err)
	}
	out := make([]*Interface, 0, len(bodies))
	for _, body := range bodies {
		iface, err := Parse(body)
		if err != nil {
			continue
		}
		out = append(out, iface)
	}
	metrics.DumpSizeHistogram.WithLabelValues("link").Observe(float64(len(out)))
	return out, nil
}

// Get looks up a single interface by name.
func Get(s *nlsock.Socket, name string) (*Interface, error) {
	ifaces, err := List(s)
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Name == name {
			return iface, nil
		}
	}
	return nil, necode.ErrInterfaceNotFound
}

// GetByIndex looks up a single interface by ifindex.
func GetByIndex(s *nlsock.Socket, index int32) (*Interface, error) {
	ifaces, err := List(s)
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Index == index {
			return iface, nil
		}
	}
	return nil, necode.ErrInterfaceNotFound
}

func setLinkFlags(s *nlsock.Socket, index int32, flags, change uint32, attrs func(*netlink.Builder) error) error {
	buf := make([]byte, 1024)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_SETLINK, netlink.Request|netlink.Ack, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	ifi := &netlink.IfInfomsg{Family: unix.AF_UNSPEC, Index: index, Flags: flags, Change: change}
	if err := b.AppendRaw(ifi.Serialize()); err != nil {
		return err
	}
	if attrs != nil {
		if err := attrs(b); err != nil {
			return err
		}
	}
	msg := b.Finalize(h)
	_, err = s.Request(msg)
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}

// SetState brings the interface at index up or down, per spec.md's
// example 2: flags=UP and change=UP (or flags=0/change=UP for down), so
// the kernel applies only the UP bit.
func SetState(s *nlsock.Socket, index int32, up bool) error {
	var flags uint32
	if up {
		flags = unix.IFF_UP
	}
	return setLinkFlags(s, index, flags, unix.IFF_UP, nil)
}

// SetMTU sets the interface's MTU.
func SetMTU(s *nlsock.Socket, index int32, mtu uint32) error {
	return setLinkFlags(s, index, 0, 0, func(b *netlink.Builder) error {
		return b.AppendUint32Attr(ifla_MTU, mtu)
	})
}

// SetMaster enslaves the interface at index to the interface at
// masterIndex, or frees it (masterIndex == 0).
func SetMaster(s *nlsock.Socket, index, masterIndex int32) error {
	return setLinkFlags(s, index, 0, 0, func(b *netlink.Builder) error {
		return b.AppendUint32Attr(ifla_MASTER, uint32(masterIndex))
	})
}

// MoveToNetns moves the interface at index into the namespace identified
// by an open /proc/.../ns/net file descriptor.
func MoveToNetns(s *nlsock.Socket, index int32, nsFD int) error {
	return setLinkFlags(s, index, 0, 0, func(b *netlink.Builder) error {
		return b.AppendUint32Attr(ifla_NET_NS_FD, uint32(nsFD))
	})
}

// Delete removes a (virtual) interface by index.
func Delete(s *nlsock.Socket, index int32) error {
	buf := make([]byte, netlink.HeaderLen+netlink.SizeofIfInfomsg)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_DELLINK, netlink.Request|netlink.Ack, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	ifi := &netlink.IfInfomsg{Family: unix.AF_UNSPEC, Index: index}
	if err := b.AppendRaw(ifi.Serialize()); err != nil {
		return err
	}
	_, err = s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}
