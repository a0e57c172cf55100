package link

import (
	"net"

	"github.com/EsteSystems/netctl/necode"
	"github.com/EsteSystems/netctl/netlink"
)

// BondInfo is the IFLA_INFO_DATA view of a "bond" kind interface.
type BondInfo struct {
	Mode string
}

// AsBond re-parses iface's InfoData as a bond, failing if Kind != "bond".
func (iface *Interface) AsBond() (*BondInfo, error) {
	if iface.Kind != "bond" {
		return nil, necode.ErrNotABond
	}
	info := &BondInfo{}
	attrs, err := netlink.ParseAttributes(iface.InfoData)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if a.Type == ifla_bond_MODE {
			info.Mode = a.String()
		}
	}
	return info, nil
}

// BridgeInfo is the IFLA_INFO_DATA view of a "bridge" kind interface.
type BridgeInfo struct {
	VLANFiltering bool
}

// AsBridge re-parses iface's InfoData as a bridge, failing if Kind != "bridge".
func (iface *Interface) AsBridge() (*BridgeInfo, error) {
	if iface.Kind != "bridge" {
		return nil, necode.ErrNotABridge
	}
	info := &BridgeInfo{}
	attrs, err := netlink.ParseAttributes(iface.InfoData)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if a.Type == ifla_bridge_VLAN_FILTERING {
			info.VLANFiltering = a.Uint8() != 0
		}
	}
	return info, nil
}

// VLANInfo is the IFLA_INFO_DATA view of a "vlan" kind interface.
type VLANInfo struct {
	ID uint16
}

// AsVLAN re-parses iface's InfoData as a VLAN sub-interface.
func (iface *Interface) AsVLAN() (*VLANInfo, error) {
	if iface.Kind != "vlan" {
		return nil, necode.ErrVerificationFailed
	}
	info := &VLANInfo{}
	attrs, err := netlink.ParseAttributes(iface.InfoData)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if a.Type == ifla_vlan_ID {
			info.ID = a.Uint16()
		}
	}
	return info, nil
}

// VXLANInfo is the IFLA_INFO_DATA view of a "vxlan" kind interface.
type VXLANInfo struct {
	VNI   uint32
	Local net.IP
	Group net.IP
	Dev   int32
	Port  uint16 // host order, after undoing the wire big-endian swap
	TTL   uint8
}

// AsVXLAN re-parses iface's InfoData as a VXLAN tunnel.
func (iface *Interface) AsVXLAN() (*VXLANInfo, error) {
	if iface.Kind != "vxlan" {
		return nil, necode.ErrVerificationFailed
	}
	info := &VXLANInfo{}
	attrs, err := netlink.ParseAttributes(iface.InfoData)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		switch a.Type {
		case ifla_vxlan_ID:
			info.VNI = a.Uint32()
		case ifla_vxlan_LOCAL:
			info.Local = append(net.IP(nil), a.Data...)
		case ifla_vxlan_GROUP:
			info.Group = append(net.IP(nil), a.Data...)
		case ifla_vxlan_LINK:
			info.Dev = a.Int32()
		case ifla_vxlan_PORT:
			info.Port = netlink.Ntohs(a.Uint16())
		case ifla_vxlan_TTL:
			info.TTL = a.Uint8()
		}
	}
	return info, nil
}

// GREInfo is the IFLA_INFO_DATA view of a "gre"/"gretap" kind interface.
type GREInfo struct {
	Local, Remote net.IP
	TTL           uint8
}

// AsGRE re-parses iface's InfoData as a GRE or GRETAP tunnel.
func (iface *Interface) AsGRE() (*GREInfo, error) {
	if iface.Kind != "gre" && iface.Kind != "gretap" {
		return nil, necode.ErrVerificationFailed
	}
	info := &GREInfo{}
	attrs, err := netlink.ParseAttributes(iface.InfoData)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		switch a.Type {
		case ifla_gre_LOCAL:
			info.Local = append(net.IP(nil), a.Data...)
		case ifla_gre_REMOTE:
			info.Remote = append(net.IP(nil), a.Data...)
		case ifla_gre_TTL:
			info.TTL = a.Uint8()
		}
	}
	return info, nil
}
