// Package analyze implements C7: connectivity and health reports
// computed from a live executor.Snapshot, per spec.md §4.7.
package analyze

import (
	"bufio"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/EsteSystems/netctl/executor"
	"github.com/EsteSystems/netctl/link"
)

// Status is the closed set of report-record severities.
type Status string

const (
	StatusOK        Status = "ok"
	StatusWarning   Status = "warning"
	StatusError     Status = "error"
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Record is one tagged analyzer finding.
type Record struct {
	Status         Status
	Message        string
	Recommendation string
}

var resolvConfPath = "/etc/resolv.conf"

var (
	linkLocalV4 = mustParseCIDR("169.254.0.0/16")
	linkLocalV6 = mustParseCIDR("fe80::/10")
	loopbackV4  = mustParseCIDR("127.0.0.0/8")
)

func mustParseCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// isRoutable excludes loopback, link-local, and the IPv6 loopback
// address ::1 from counting as a routable address.
func isRoutable(ip net.IP) bool {
	if ip.IsLoopback() {
		return false
	}
	if loopbackV4.Contains(ip) || linkLocalV4.Contains(ip) || linkLocalV6.Contains(ip) {
		return false
	}
	return true
}

// countNameservers counts "nameserver" directive lines in a
// resolv.conf-shaped file; a missing file counts as zero.
func countNameservers(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 && fields[0] == "nameserver" {
			count++
		}
	}
	return count
}

// Connectivity reports default-gateway presence, DNS configuration,
// carrier state, and routable-address presence.
func Connectivity(snap *executor.Snapshot) []Record {
	var out []Record

	hasDefaultGW := false
	for _, r := range snap.Routes {
		if r.DstLen == 0 && r.Gateway != nil {
			hasDefaultGW = true
			break
		}
	}
	if hasDefaultGW {
		out = append(out, Record{Status: StatusOK, Message: "default gateway present"})
	} else {
		out = append(out, Record{Status: StatusError, Message: "no default gateway",
			Recommendation: "add a default route"})
	}

	nsCount := countNameservers(resolvConfPath)
	if nsCount > 0 {
		out = append(out, Record{Status: StatusOK, Message: "DNS configured"})
	} else {
		out = append(out, Record{Status: StatusWarning, Message: "no nameserver configured",
			Recommendation: "add a nameserver line to " + resolvConfPath})
	}

	carrierUp := false
	for _, i := range snap.Interfaces {
		if i.Name != "lo" && i.Up() && i.Carrier {
			carrierUp = true
			break
		}
	}
	if carrierUp {
		out = append(out, Record{Status: StatusOK, Message: "at least one interface up with carrier"})
	} else {
		out = append(out, Record{Status: StatusError, Message: "no non-loopback interface up with carrier",
			Recommendation: "check cabling/link state"})
	}

	routable := false
	for _, a := range snap.Addresses {
		if isRoutable(a.IP) {
			routable = true
			break
		}
	}
	if routable {
		out = append(out, Record{Status: StatusOK, Message: "at least one routable address assigned"})
	} else {
		out = append(out, Record{Status: StatusWarning, Message: "no routable address assigned"})
	}

	return out
}

// Health reports bond member quorum, bridge port counts, VLAN parent
// liveness, duplicate IPv4 assignments, and multiple default routes.
func Health(snap *executor.Snapshot) []Record {
	var out []Record

	bondMembers := map[int32][]int32{}
	for _, i := range snap.Interfaces {
		if i.Master != nil {
			bondMembers[*i.Master] = append(bondMembers[*i.Master], i.Index)
		}
	}
	for _, i := range snap.Interfaces {
		if i.Kind != "bond" {
			continue
		}
		members := bondMembers[i.Index]
		upCount := 0
		for _, idx := range members {
			if m := findByIndex(snap.Interfaces, idx); m != nil && m.Carrier {
				upCount++
			}
		}
		switch {
		case len(members) >= 2 && upCount == len(members):
			out = append(out, Record{Status: StatusHealthy, Message: "bond " + i.Name + " has full member quorum"})
		case upCount > 0:
			out = append(out, Record{Status: StatusDegraded, Message: "bond " + i.Name + " has a degraded member set",
				Recommendation: "check cabling on down members"})
		default:
			out = append(out, Record{Status: StatusUnhealthy, Message: "bond " + i.Name + " has no active members",
				Recommendation: "check member interfaces"})
		}
	}

	bridgePorts := map[int32]int{}
	for _, i := range snap.Interfaces {
		if i.Master != nil {
			if master := findByIndex(snap.Interfaces, *i.Master); master != nil && master.Kind == "bridge" {
				bridgePorts[*i.Master]++
			}
		}
	}
	for _, i := range snap.Interfaces {
		if i.Kind == "bridge" {
			out = append(out, Record{Status: StatusOK, Message: "bridge " + i.Name + " has " + strconv.Itoa(bridgePorts[i.Index]) + " ports"})
		}
	}

	for _, i := range snap.Interfaces {
		if i.Kind != "vlan" || i.LinkIndex == nil {
			continue
		}
		parent := findByIndex(snap.Interfaces, *i.LinkIndex)
		if parent == nil || !parent.Up() {
			out = append(out, Record{Status: StatusWarning, Message: "vlan " + i.Name + " parent is down or missing",
				Recommendation: "bring up the parent interface"})
		}
	}

	seen := map[string]int{}
	for _, a := range snap.Addresses {
		if a.IP == nil || a.IP.To4() == nil {
			continue
		}
		seen[a.IP.String()]++
	}
	for ip, n := range seen {
		if n > 1 {
			out = append(out, Record{Status: StatusWarning, Message: "duplicate IPv4 address " + ip + " assigned " + strconv.Itoa(n) + " times"})
		}
	}

	defaultRoutes := 0
	for _, r := range snap.Routes {
		if r.DstLen == 0 {
			defaultRoutes++
		}
	}
	if defaultRoutes > 1 {
		out = append(out, Record{Status: StatusWarning, Message: "multiple default routes present",
			Recommendation: "verify route priorities are intentional"})
	}

	return out
}

func findByIndex(ifaces []*link.Interface, idx int32) *link.Interface {
	for _, i := range ifaces {
		if i.Index == idx {
			return i
		}
	}
	return nil
}

