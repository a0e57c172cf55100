package neighbor

import (
	"net"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/netlink"
)

func TestParseRoundTrip(t *testing.T) {
	buf := make([]byte, 128)
	b := netlink.NewBuilder(buf)
	nd := &netlink.Ndmsg{Family: unix.AF_INET, Index: 3, State: StatePermanent}
	if err := b.AppendRaw(nd.Serialize()); err != nil {
		t.Fatal(err)
	}
	ip := net.ParseIP("192.168.1.1").To4()
	if err := b.AppendAttribute(nda_DST, ip); err != nil {
		t.Fatal(err)
	}
	mac, err := ParseMAC("00:11:22:33:44:55")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AppendAttribute(nda_LLADDR, mac); err != nil {
		t.Fatal(err)
	}

	n, err := Parse(buf[:b.Len()])
	if err != nil {
		t.Fatal(err)
	}
	if !n.IP.Equal(ip) {
		t.Errorf("IP = %v, want %v", n.IP, ip)
	}
	if n.LLAddr.String() != mac.String() {
		t.Errorf("LLAddr = %v, want %v", n.LLAddr, mac)
	}
	if n.StateName() != "PERMANENT" {
		t.Errorf("StateName() = %q", n.StateName())
	}
	if n.Index != 3 {
		t.Errorf("Index = %d", n.Index)
	}
}
