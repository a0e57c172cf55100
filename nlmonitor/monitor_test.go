package nlmonitor

import (
	"testing"
	"time"

	"github.com/EsteSystems/netctl/link"
	"github.com/EsteSystems/netctl/netlink"
)

func buildLink(t *testing.T, index int32, name string, flags uint32, mtu uint32) []byte {
	t.Helper()
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	ifi := &netlink.IfInfomsg{Index: index, Flags: flags}
	if err := b.AppendRaw(ifi.Serialize()); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendStringAttr(3 /* IFLA_IFNAME */, name); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendUint32Attr(4 /* IFLA_MTU */, mtu); err != nil {
		t.Fatal(err)
	}
	return buf[:b.Len()]
}

func TestLinkEventsAddedThenUpThenRenamed(t *testing.T) {
	m := &Monitor{links: make(map[int32]*link.Interface)}
	now := time.Now()

	evs := m.linkEvents(rtmNewlink, buildLink(t, 1, "eth0", 0, 1500), now)
	if len(evs) != 1 || evs[0].Kind != InterfaceAdded {
		t.Fatalf("first events: %+v", evs)
	}

	evs = m.linkEvents(rtmNewlink, buildLink(t, 1, "eth0", 0x1 /* IFF_UP */, 1500), now)
	if len(evs) != 1 || evs[0].Kind != InterfaceUp {
		t.Fatalf("second events: %+v", evs)
	}

	evs = m.linkEvents(rtmNewlink, buildLink(t, 1, "eth1", 0x1, 1500), now)
	foundUp, foundRenamed := false, false
	for _, e := range evs {
		switch e.Kind {
		case InterfaceUp:
			foundUp = true
		case InterfaceRenamed:
			foundRenamed = true
		}
	}
	if !foundUp || !foundRenamed {
		t.Fatalf("expected up+renamed, got %+v", evs)
	}

	evs = m.linkEvents(rtmDellink, buildLink(t, 1, "eth1", 0x1, 1500), now)
	if len(evs) != 1 || evs[0].Kind != InterfaceRemoved {
		t.Fatalf("delete events: %+v", evs)
	}
	if _, ok := m.links[1]; ok {
		t.Error("removed interface should be evicted from the diff cache")
	}
}

func TestLinkEventsMTUChanged(t *testing.T) {
	m := &Monitor{links: make(map[int32]*link.Interface)}
	now := time.Now()
	m.linkEvents(rtmNewlink, buildLink(t, 2, "eth0", 0x1, 1500), now)
	evs := m.linkEvents(rtmNewlink, buildLink(t, 2, "eth0", 0x1, 9000), now)
	found := false
	for _, e := range evs {
		if e.Kind == InterfaceMTUChanged {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an MTU-changed event, got %+v", evs)
	}
}
