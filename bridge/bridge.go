// Package bridge implements the bridge-specific link operations spec.md
// §4.4 calls out separately from the generic link create/set path: VLAN
// filtering and per-port VLAN membership.
package bridge

import (
	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/necode"
	"github.com/EsteSystems/netctl/netlink"
	"github.com/EsteSystems/netctl/nlsock"
)

// IFLA_* attribute types used for bridge-specific configuration
// (linux/if_link.h / linux/if_bridge.h).
const (
	ifla_LINKINFO = 18
	ifla_AF_SPEC  = 26

	ifla_info_KIND = 1
	ifla_info_DATA = 2

	ifla_bridge_VLAN_FILTERING = 7

	ifla_bridge_VLAN_INFO = 2 // nested inside IFLA_AF_SPEC
)

// BridgeVlanInfo flags (linux/if_bridge.h).
const (
	BridgeVlanInfoPVID    = 0x2
	BridgeVlanInfoUntagged = 0x4
)

// SetVLANFiltering toggles VLAN-aware mode on the bridge at index, per
// spec.md's "new-link with the bridge's index, IFLA_LINKINFO(KIND="bridge",
// INFO_DATA(VLAN_FILTERING=u8))".
func SetVLANFiltering(s *nlsock.Socket, index int32, enabled bool) error {
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_NEWLINK, netlink.Request|netlink.Ack, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	ifi := &netlink.IfInfomsg{Family: unix.AF_UNSPEC, Index: index}
	if err := b.AppendRaw(ifi.Serialize()); err != nil {
		return err
	}
	info, err := b.BeginNested(ifla_LINKINFO)
	if err != nil {
		return err
	}
	if err := b.AppendStringAttr(ifla_info_KIND, "bridge"); err != nil {
		return err
	}
	data, err := b.BeginNested(ifla_info_DATA)
	if err != nil {
		return err
	}
	v := uint8(0)
	if enabled {
		v = 1
	}
	if err := b.AppendUint8Attr(ifla_bridge_VLAN_FILTERING, v); err != nil {
		return err
	}
	if err := b.EndNested(data); err != nil {
		return err
	}
	if err := b.EndNested(info); err != nil {
		return err
	}
	_, err = s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}

// AddPortVLAN adds a VLAN entry to a bridge port, per spec.md's "set-link
// with family = bridge, IFLA_AF_SPEC nested containing a BRIDGE_VLAN_INFO
// attribute whose payload is {flags u16, vid u16}".
func AddPortVLAN(s *nlsock.Socket, portIndex int32, vlanID uint16, flags uint16) error {
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_SETLINK, netlink.Request|netlink.Ack, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	ifi := &netlink.IfInfomsg{Family: unix.AF_BRIDGE, Index: portIndex}
	if err := b.AppendRaw(ifi.Serialize()); err != nil {
		return err
	}
	spec, err := b.BeginNested(ifla_AF_SPEC)
	if err != nil {
		return err
	}
	var payload [4]byte
	netlink.Native.PutUint16(payload[0:2], flags)
	netlink.Native.PutUint16(payload[2:4], vlanID)
	if err := b.AppendAttribute(ifla_bridge_VLAN_INFO, payload[:]); err != nil {
		return err
	}
	if err := b.EndNested(spec); err != nil {
		return err
	}
	_, err = s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}

// DeletePortVLAN removes a VLAN entry from a bridge port.
func DeletePortVLAN(s *nlsock.Socket, portIndex int32, vlanID uint16) error {
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_DELLINK, netlink.Request|netlink.Ack, s.NextSeq(), s.Pid())
	if err != nil {
		return err
	}
	ifi := &netlink.IfInfomsg{Family: unix.AF_BRIDGE, Index: portIndex}
	if err := b.AppendRaw(ifi.Serialize()); err != nil {
		return err
	}
	spec, err := b.BeginNested(ifla_AF_SPEC)
	if err != nil {
		return err
	}
	var payload [4]byte
	netlink.Native.PutUint16(payload[2:4], vlanID)
	if err := b.AppendAttribute(ifla_bridge_VLAN_INFO, payload[:]); err != nil {
		return err
	}
	if err := b.EndNested(spec); err != nil {
		return err
	}
	_, err = s.Request(b.Finalize(h))
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}
