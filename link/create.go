package link

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/necode"
	"github.com/EsteSystems/netctl/netlink"
	"github.com/EsteSystems/netctl/nlsock"
)

// IFLA_VETH_INFO_PEER and family-specific INFO_DATA attribute types
// (linux/if_link.h / if_vlan.h / if_tunnel.h / if_bonding.h subset this
// package recognises, per spec.md §4.4's kind list).
const (
	ifla_veth_INFO_PEER = 1

	ifla_vxlan_ID          = 1
	ifla_vxlan_GROUP       = 2
	ifla_vxlan_LINK        = 3
	ifla_vxlan_LOCAL       = 4
	ifla_vxlan_TTL         = 5
	ifla_vxlan_LEARNING    = 7
	ifla_vxlan_PORT        = 15

	ifla_gre_LINK   = 1
	ifla_gre_IFLAGS = 2
	ifla_gre_OFLAGS = 3
	ifla_gre_IKEY   = 4
	ifla_gre_OKEY   = 5
	ifla_gre_LOCAL  = 6
	ifla_gre_REMOTE = 7
	ifla_gre_TTL    = 8

	ifla_bond_MODE = 1
)

// newLinkRequest starts an RTM_NEWLINK message requesting creation
// (CREATE|EXCL, per spec.md §4.4) with the given interface name, and
// returns the builder positioned to receive an optional IFLA_LINKINFO.
func newLinkRequest(s *nlsock.Socket, buf []byte, name string) (*netlink.Builder, netlink.MessageHandle, error) {
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_NEWLINK, netlink.Request|netlink.Ack|netlink.Create|netlink.Excl, s.NextSeq(), s.Pid())
	if err != nil {
		return nil, netlink.MessageHandle{}, err
	}
	if err := b.AppendRaw(netlink.NewIfInfomsg(unix.AF_UNSPEC).Serialize()); err != nil {
		return nil, netlink.MessageHandle{}, err
	}
	if name != "" {
		if err := b.AppendStringAttr(ifla_IFNAME, name); err != nil {
			return nil, netlink.MessageHandle{}, err
		}
	}
	return b, h, nil
}

func send(s *nlsock.Socket, b *netlink.Builder, h netlink.MessageHandle) error {
	_, err := s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}

// CreateBond creates a new bond master interface.
func CreateBond(s *nlsock.Socket, name, mode string) error {
	buf := make([]byte, 512)
	b, h, err := newLinkRequest(s, buf, name)
	if err != nil {
		return err
	}
	info, err := b.BeginNested(ifla_LINKINFO)
	if err != nil {
		return err
	}
	if err := b.AppendStringAttr(ifla_info_KIND, "bond"); err != nil {
		return err
	}
	if mode != "" {
		data, err := b.BeginNested(ifla_info_DATA)
		if err != nil {
			return err
		}
		if err := b.AppendStringAttr(ifla_bond_MODE, mode); err != nil {
			return err
		}
		if err := b.EndNested(data); err != nil {
			return err
		}
	}
	if err := b.EndNested(info); err != nil {
		return err
	}
	return send(s, b, h)
}

// CreateBridge creates a new bridge master interface.
func CreateBridge(s *nlsock.Socket, name string) error {
	buf := make([]byte, 512)
	b, h, err := newLinkRequest(s, buf, name)
	if err != nil {
		return err
	}
	info, err := b.BeginNested(ifla_LINKINFO)
	if err != nil {
		return err
	}
	if err := b.AppendStringAttr(ifla_info_KIND, "bridge"); err != nil {
		return err
	}
	if err := b.EndNested(info); err != nil {
		return err
	}
	return send(s, b, h)
}

// CreateVLAN creates a new 802.1Q VLAN sub-interface on top of
// parentIndex.
func CreateVLAN(s *nlsock.Socket, name string, parentIndex int32, vlanID uint16) error {
	buf := make([]byte, 512)
	b, h, err := newLinkRequest(s, buf, name)
	if err != nil {
		return err
	}
	if err := b.AppendUint32Attr(ifla_LINK, uint32(parentIndex)); err != nil {
		return err
	}
	info, err := b.BeginNested(ifla_LINKINFO)
	if err != nil {
		return err
	}
	if err := b.AppendStringAttr(ifla_info_KIND, "vlan"); err != nil {
		return err
	}
	data, err := b.BeginNested(ifla_info_DATA)
	if err != nil {
		return err
	}
	if err := b.AppendUint16Attr(ifla_vlan_ID, vlanID); err != nil {
		return err
	}
	if err := b.EndNested(data); err != nil {
		return err
	}
	if err := b.EndNested(info); err != nil {
		return err
	}
	return send(s, b, h)
}

// CreateVeth creates a veth pair: name, plus a peer named peerName.
func CreateVeth(s *nlsock.Socket, name, peerName string) error {
	buf := make([]byte, 512)
	b, h, err := newLinkRequest(s, buf, name)
	if err != nil {
		return err
	}
	info, err := b.BeginNested(ifla_LINKINFO)
	if err != nil {
		return err
	}
	if err := b.AppendStringAttr(ifla_info_KIND, "veth"); err != nil {
		return err
	}
	data, err := b.BeginNested(ifla_info_DATA)
	if err != nil {
		return err
	}
	peer, err := b.BeginNested(ifla_veth_INFO_PEER)
	if err != nil {
		return err
	}
	if err := b.AppendRaw(netlink.NewIfInfomsg(unix.AF_UNSPEC).Serialize()); err != nil {
		return err
	}
	if err := b.AppendStringAttr(ifla_IFNAME, peerName); err != nil {
		return err
	}
	if err := b.EndNested(peer); err != nil {
		return err
	}
	if err := b.EndNested(data); err != nil {
		return err
	}
	if err := b.EndNested(info); err != nil {
		return err
	}
	return send(s, b, h)
}

// VXLANOpts configures CreateVXLAN. Dev, when nonzero, binds the VXLAN
// device to an underlying interface (IFLA_VXLAN_LINK).
type VXLANOpts struct {
	VNI      uint32
	Local    net.IP
	Group    net.IP
	Dev      int32
	Port     uint16 // host order; encoded big-endian on the wire
	TTL      uint8
	Learning bool
}

// CreateVXLAN creates a VXLAN tunnel interface.
func CreateVXLAN(s *nlsock.Socket, name string, opts VXLANOpts) error {
	buf := make([]byte, 512)
	b, h, err := newLinkRequest(s, buf, name)
	if err != nil {
		return err
	}
	info, err := b.BeginNested(ifla_LINKINFO)
	if err != nil {
		return err
	}
	if err := b.AppendStringAttr(ifla_info_KIND, "vxlan"); err != nil {
		return err
	}
	data, err := b.BeginNested(ifla_info_DATA)
	if err != nil {
		return err
	}
	if err := b.AppendUint32Attr(ifla_vxlan_ID, opts.VNI); err != nil {
		return err
	}
	if opts.Dev != 0 {
		if err := b.AppendUint32Attr(ifla_vxlan_LINK, uint32(opts.Dev)); err != nil {
			return err
		}
	}
	if ip4 := opts.Local.To4(); ip4 != nil {
		if err := b.AppendAttribute(ifla_vxlan_LOCAL, ip4); err != nil {
			return err
		}
	}
	if ip4 := opts.Group.To4(); ip4 != nil {
		if err := b.AppendAttribute(ifla_vxlan_GROUP, ip4); err != nil {
			return err
		}
	}
	if opts.Port != 0 {
		if err := b.AppendUint16Attr(ifla_vxlan_PORT, netlink.Htons(opts.Port)); err != nil {
			return err
		}
	}
	if opts.TTL != 0 {
		if err := b.AppendUint8Attr(ifla_vxlan_TTL, opts.TTL); err != nil {
			return err
		}
	}
	learning := uint8(0)
	if opts.Learning {
		learning = 1
	}
	if err := b.AppendUint8Attr(ifla_vxlan_LEARNING, learning); err != nil {
		return err
	}
	if err := b.EndNested(data); err != nil {
		return err
	}
	if err := b.EndNested(info); err != nil {
		return err
	}
	return send(s, b, h)
}

// GREOpts configures CreateGRE/CreateGRETAP.
type GREOpts struct {
	Local, Remote net.IP
	TTL           uint8
}

func createGRETunnel(s *nlsock.Socket, name, kind string, opts GREOpts) error {
	buf := make([]byte, 512)
	b, h, err := newLinkRequest(s, buf, name)
	if err != nil {
		return err
	}
	info, err := b.BeginNested(ifla_LINKINFO)
	if err != nil {
		return err
	}
	if err := b.AppendStringAttr(ifla_info_KIND, kind); err != nil {
		return err
	}
	data, err := b.BeginNested(ifla_info_DATA)
	if err != nil {
		return err
	}
	if ip4 := opts.Local.To4(); ip4 != nil {
		if err := b.AppendAttribute(ifla_gre_LOCAL, ip4); err != nil {
			return err
		}
	}
	if ip4 := opts.Remote.To4(); ip4 != nil {
		if err := b.AppendAttribute(ifla_gre_REMOTE, ip4); err != nil {
			return err
		}
	}
	if opts.TTL != 0 {
		if err := b.AppendUint8Attr(ifla_gre_TTL, opts.TTL); err != nil {
			return err
		}
	}
	if err := b.EndNested(data); err != nil {
		return err
	}
	if err := b.EndNested(info); err != nil {
		return err
	}
	return send(s, b, h)
}

// CreateGRE creates a GRE tunnel interface.
func CreateGRE(s *nlsock.Socket, name string, opts GREOpts) error {
	return createGRETunnel(s, name, "gre", opts)
}

// CreateGRETAP creates a GRETAP (Ethernet-over-GRE) tunnel interface.
func CreateGRETAP(s *nlsock.Socket, name string, opts GREOpts) error {
	return createGRETunnel(s, name, "gretap", opts)
}
