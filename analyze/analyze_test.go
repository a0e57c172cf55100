package analyze

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/executor"
	"github.com/EsteSystems/netctl/ipaddr"
	"github.com/EsteSystems/netctl/link"
	"github.com/EsteSystems/netctl/route"
)

func withResolvConf(t *testing.T, contents string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	if contents != "" {
		if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
	}
	old := resolvConfPath
	resolvConfPath = path
	t.Cleanup(func() { resolvConfPath = old })
}

func TestConnectivityFlagsMissingDefaultGateway(t *testing.T) {
	withResolvConf(t, "nameserver 8.8.8.8\n")
	snap := &executor.Snapshot{}
	recs := Connectivity(snap)
	found := false
	for _, r := range recs {
		if r.Message == "no default gateway" && r.Status == StatusError {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing-default-gateway error, got %+v", recs)
	}
}

func TestConnectivityDetectsDefaultGateway(t *testing.T) {
	withResolvConf(t, "nameserver 8.8.8.8\n")
	snap := &executor.Snapshot{Routes: []*route.Route{
		{DstLen: 0, Gateway: net.ParseIP("10.0.0.1")},
	}}
	recs := Connectivity(snap)
	for _, r := range recs {
		if r.Message == "default gateway present" {
			return
		}
	}
	t.Fatalf("expected default-gateway-present record, got %+v", recs)
}

func TestConnectivityCountsNameserverLines(t *testing.T) {
	withResolvConf(t, "")
	snap := &executor.Snapshot{}
	recs := Connectivity(snap)
	for _, r := range recs {
		if r.Message == "no nameserver configured" {
			return
		}
	}
	t.Fatalf("expected no-nameserver warning with empty resolv.conf, got %+v", recs)
}

func TestConnectivityRoutableAddressExcludesLoopbackAndLinkLocal(t *testing.T) {
	withResolvConf(t, "nameserver 8.8.8.8\n")
	snap := &executor.Snapshot{Addresses: []*ipaddr.Address{
		{IP: net.ParseIP("127.0.0.1")},
		{IP: net.ParseIP("169.254.1.2")},
	}}
	recs := Connectivity(snap)
	for _, r := range recs {
		if r.Message == "no routable address assigned" {
			return
		}
	}
	t.Fatalf("loopback/link-local addresses should not count as routable: %+v", recs)
}

func TestHealthBondQuorum(t *testing.T) {
	bondIdx := int32(10)
	snap := &executor.Snapshot{Interfaces: []*link.Interface{
		{Index: bondIdx, Name: "bond0", Kind: "bond", Flags: unix.IFF_UP},
		{Index: 1, Name: "eth0", Master: &bondIdx, Carrier: true},
		{Index: 2, Name: "eth1", Master: &bondIdx, Carrier: true},
	}}
	recs := Health(snap)
	for _, r := range recs {
		if r.Status == StatusHealthy {
			return
		}
	}
	t.Fatalf("expected a healthy bond record, got %+v", recs)
}

func TestHealthDuplicateIPv4Detection(t *testing.T) {
	snap := &executor.Snapshot{Addresses: []*ipaddr.Address{
		{IP: net.ParseIP("10.0.0.5")},
		{IP: net.ParseIP("10.0.0.5")},
	}}
	recs := Health(snap)
	for _, r := range recs {
		if r.Status == StatusWarning {
			return
		}
	}
	t.Fatalf("expected duplicate-address warning, got %+v", recs)
}
