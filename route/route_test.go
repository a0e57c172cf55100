package route

import (
	"net"
	"testing"

	"github.com/EsteSystems/netctl/netlink"
)

func TestECMPEncodeDecodeRoundTrip(t *testing.T) {
	hops := []Nexthop{
		{Gateway: net.ParseIP("10.0.0.1").To4(), Ifindex: 2, Weight: 1},
		{Gateway: net.ParseIP("10.0.0.2").To4(), Ifindex: 3, Weight: 4},
	}

	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	if err := encodeMultipath(b, hops); err != nil {
		t.Fatal(err)
	}

	decoded, err := decodeMultipath(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != len(hops) {
		t.Fatalf("got %d hops, want %d", len(decoded), len(hops))
	}
	for i, want := range hops {
		got := decoded[i]
		if got.Ifindex != want.Ifindex {
			t.Errorf("hop %d: ifindex = %d, want %d", i, got.Ifindex, want.Ifindex)
		}
		if got.Weight != want.Weight {
			t.Errorf("hop %d: weight = %d, want %d", i, got.Weight, want.Weight)
		}
		if !got.Gateway.Equal(want.Gateway) {
			t.Errorf("hop %d: gateway = %v, want %v", i, got.Gateway, want.Gateway)
		}
	}
}

func TestECMPWeightZeroDefaultsToOne(t *testing.T) {
	hops := []Nexthop{{Gateway: net.ParseIP("10.0.0.1").To4(), Ifindex: 1, Weight: 0}}
	buf := make([]byte, 64)
	b := netlink.NewBuilder(buf)
	if err := encodeMultipath(b, hops); err != nil {
		t.Fatal(err)
	}
	decoded, err := decodeMultipath(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if decoded[0].Weight != 1 {
		t.Errorf("weight = %d, want 1", decoded[0].Weight)
	}
}

func TestParseKeepsTableIDUsedByListFilter(t *testing.T) {
	mkRoute := func(table uint8) []byte {
		buf := make([]byte, 64)
		b := netlink.NewBuilder(buf)
		rt := &netlink.Rtmsg{Family: 2, Table: table, Protocol: ProtoStatic, Scope: ScopeUniverse, Type: TypeUnicast}
		if err := b.AppendRaw(rt.Serialize()); err != nil {
			t.Fatal(err)
		}
		return buf[:b.Len()]
	}

	main, err := Parse(mkRoute(TableMain))
	if err != nil {
		t.Fatal(err)
	}
	local, err := Parse(mkRoute(255)) // RT_TABLE_LOCAL
	if err != nil {
		t.Fatal(err)
	}
	if main.Table != TableMain {
		t.Errorf("main.Table = %d", main.Table)
	}
	if local.Table == TableMain || local.Table == TableDefault {
		t.Errorf("local.Table = %d should not be main/default", local.Table)
	}
}
