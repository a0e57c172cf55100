package rule

import (
	"net"
	"testing"

	"github.com/EsteSystems/netctl/netlink"
)

// buildRuleBody constructs a raw RTM_*RULE message body (header + TLVs)
// the same way Add does, without a socket, so Parse can be exercised
// directly.
func buildRuleBody(t *testing.T, hdr netlink.FibRuleHdr, table uint32, priority uint32, src net.IP) []byte {
	t.Helper()
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(1, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AppendRaw(hdr.Serialize()); err != nil {
		t.Fatal(err)
	}
	if src != nil {
		if err := b.AppendAttribute(fra_SRC, src); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.AppendUint32Attr(fra_TABLE, table); err != nil {
		t.Fatal(err)
	}
	if priority != 0 {
		if err := b.AppendUint32Attr(fra_PRIORITY, priority); err != nil {
			t.Fatal(err)
		}
	}
	msg := b.Finalize(h)
	return msg[netlink.HeaderLen:]
}

func TestParseTableAttributeOverridesHeaderByte(t *testing.T) {
	body := buildRuleBody(t, netlink.FibRuleHdr{Family: 2, Table: 0}, 10000, 100, nil)
	r, err := Parse(body)
	if err != nil {
		t.Fatal(err)
	}
	if r.Table != 10000 {
		t.Errorf("table = %d, want 10000 (above the header byte's 255 ceiling)", r.Table)
	}
	if r.Priority != 100 {
		t.Errorf("priority = %d, want 100", r.Priority)
	}
}

func TestParseSmallTableFromAttribute(t *testing.T) {
	body := buildRuleBody(t, netlink.FibRuleHdr{Family: 2, Table: 254}, 254, 0, nil)
	r, err := Parse(body)
	if err != nil {
		t.Fatal(err)
	}
	if r.Table != 254 {
		t.Errorf("table = %d, want 254", r.Table)
	}
}

func TestParseSrcAddress(t *testing.T) {
	src := net.ParseIP("192.168.1.0").To4()
	body := buildRuleBody(t, netlink.FibRuleHdr{Family: 2, SrcLen: 24}, 254, 0, src)
	r, err := Parse(body)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Src.Equal(src) {
		t.Errorf("src = %v, want %v", r.Src, src)
	}
	if r.SrcLen != 24 {
		t.Errorf("srclen = %d, want 24", r.SrcLen)
	}
}

func TestParseTooShortBodyFails(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for a too-short body")
	}
}
