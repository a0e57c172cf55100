package bridge

import (
	"testing"

	"github.com/EsteSystems/netctl/netlink"
)

func TestVLANInfoPayloadEncoding(t *testing.T) {
	buf := make([]byte, 64)
	b := netlink.NewBuilder(buf)
	var payload [4]byte
	netlink.Native.PutUint16(payload[0:2], BridgeVlanInfoPVID|BridgeVlanInfoUntagged)
	netlink.Native.PutUint16(payload[2:4], 100)
	if err := b.AppendAttribute(ifla_bridge_VLAN_INFO, payload[:]); err != nil {
		t.Fatal(err)
	}
	attrs, err := netlink.ParseAttributes(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(attrs) != 1 {
		t.Fatalf("got %d attrs", len(attrs))
	}
	flags := netlink.Native.Uint16(attrs[0].Data[0:2])
	vid := netlink.Native.Uint16(attrs[0].Data[2:4])
	if flags != BridgeVlanInfoPVID|BridgeVlanInfoUntagged || vid != 100 {
		t.Errorf("flags=%#x vid=%d", flags, vid)
	}
}
