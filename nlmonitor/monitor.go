// Package nlmonitor implements the non-blocking, cooperatively scheduled
// subscription to kernel link/address/route/neighbor multicast groups,
// per spec.md §4.3.
package nlmonitor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/ipaddr"
	"github.com/EsteSystems/netctl/link"
	"github.com/EsteSystems/netctl/metrics"
	"github.com/EsteSystems/netctl/neighbor"
	"github.com/EsteSystems/netctl/netlink"
	"github.com/EsteSystems/netctl/route"
)

// Sentinel setup errors, mirroring package nlsock's terminal taxonomy for
// the monitor's own (non-blocking) socket.
var (
	ErrSocketCreationFailed = errors.New("nlmonitor: socket creation failed")
	ErrBindFailed           = errors.New("nlmonitor: bind failed")
)

// RTMGRP_* multicast group bits (linux/rtnetlink.h), OR-combined into the
// subscription bitmask bound at socket creation.
const (
	GroupLink     = 0x1
	GroupNeigh    = 0x4
	GroupIPv4Addr = 0x10
	GroupIPv4Route = 0x40
	GroupIPv6Addr = 0x100
	GroupIPv6Route = 0x400
)

// DefaultGroups matches spec.md §4.3's default subscription: link changes,
// IPv4 and IPv6 address changes, IPv4 and IPv6 route changes, neighbor
// changes.
const DefaultGroups = GroupLink | GroupNeigh | GroupIPv4Addr | GroupIPv4Route | GroupIPv6Addr | GroupIPv6Route

// RTM_* message types this package dispatches on.
const (
	rtmNewlink  = 16
	rtmDellink  = 17
	rtmNewaddr  = 20
	rtmDeladdr  = 21
	rtmNewroute = 24
	rtmDelroute = 25
	rtmNewneigh = 28
	rtmDelneigh = 29
)

// recvBufferSize is the fixed local receive buffer spec.md §4.3 specifies.
const recvBufferSize = 32 * 1024

// neighKey identifies a neighbor entry across polls for change detection.
type neighKey struct {
	index int32
	ip    string
}

// Monitor owns one non-blocking AF_NETLINK socket subscribed to a set of
// multicast groups, plus the small amount of prior-state needed to turn
// raw NEWLINK/NEWNEIGH notifications into edge-triggered events (renamed,
// mtu changed, master changed, neighbor changed).
type Monitor struct {
	fd            int
	stopRequested bool

	links     map[int32]*link.Interface
	neighbors map[neighKey]*neighbor.Neighbor
}

// Open creates and binds the monitor's socket, subscribing to groups (an
// OR-combination of the Group* constants; use DefaultGroups for the
// spec's default set).
func Open(groups uint32) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSocketCreationFailed, err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: groups}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %v", ErrBindFailed, err)
	}
	return &Monitor{
		fd:        fd,
		links:     make(map[int32]*link.Interface),
		neighbors: make(map[neighKey]*neighbor.Neighbor),
	}, nil
}

// Close releases the monitor's socket.
func (m *Monitor) Close() error {
	if m.fd < 0 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = -1
	return err
}

// Callback is invoked once per parsed event. It must not re-enter the
// monitor (calling Poll or Run on the same Monitor from within a
// callback), per spec.md §6's event callback contract.
type Callback func(Event)

// Poll drains any pending notifications (waiting up to timeoutMs
// milliseconds, or indefinitely if timeoutMs < 0) and invokes cb once per
// parsed event, then returns.
func (m *Monitor) Poll(timeoutMs int, cb Callback) error {
	if m.fd < 0 {
		return errors.New("nlmonitor: poll on a closed monitor")
	}
	start := time.Now()
	defer func() {
		metrics.PollingLatency.Observe(time.Since(start).Seconds())
	}()

	fds := []unix.PollFd{{Fd: int32(m.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("nlmonitor: poll: %w", err)
	}
	if n == 0 {
		return nil
	}

	buf := make([]byte, recvBufferSize)
	for {
		nr, _, err := unix.Recvfrom(m.fd, buf, 0)
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil
		}
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("nlmonitor: recv: %w", err)
		}
		m.dispatch(buf[:nr], cb)
		if m.stopRequested {
			return nil
		}
	}
}

// Run polls with a 1-second timeout until a callback invokes Event.Stop
// or Poll returns an error (as it does once the monitor has been
// closed), per spec.md §4.3's run-until-stopped helper.
func (m *Monitor) Run(cb Callback) error {
	m.stopRequested = false
	for !m.stopRequested {
		if err := m.Poll(1000, cb); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) dispatch(data []byte, cb Callback) {
	for len(data) >= netlink.HeaderLen {
		hdr, ok := netlink.ParseHeader(data)
		if !ok {
			return
		}
		adv := netlink.Align(int(hdr.Len))
		if adv < netlink.HeaderLen || adv > len(data) {
			return
		}
		body := data[netlink.HeaderLen:adv]

		if hdr.Type == unix.NLMSG_OVERRUN {
			metrics.ErrorCount.WithLabelValues("overrun").Inc()
			return
		}

		now := time.Now()
		for _, ev := range m.parseOne(hdr.Type, body, now) {
			ev.mon = m
			cb(ev)
			metrics.EventCount.WithLabelValues(ev.Kind.String()).Inc()
			if m.stopRequested {
				return
			}
		}
		data = data[adv:]
	}
}

func (m *Monitor) parseOne(msgType uint16, body []byte, ts time.Time) []Event {
	switch msgType {
	case rtmNewlink, rtmDellink:
		return m.linkEvents(msgType, body, ts)
	case rtmNewaddr, rtmDeladdr:
		return m.addrEvents(msgType, body, ts)
	case rtmNewroute, rtmDelroute:
		return m.routeEvents(msgType, body, ts)
	case rtmNewneigh, rtmDelneigh:
		return m.neighEvents(msgType, body, ts)
	default:
		return nil
	}
}

func (m *Monitor) linkEvents(msgType uint16, body []byte, ts time.Time) []Event {
	iface, err := link.Parse(body)
	if err != nil {
		return nil
	}
	prev := m.links[iface.Index]

	var out []Event
	emit := func(kind Kind) {
		out = append(out, Event{Kind: kind, Timestamp: ts, Interface: iface})
	}

	switch {
	case msgType == rtmDellink:
		emit(InterfaceRemoved)
		delete(m.links, iface.Index)
		return out
	case iface.Up():
		emit(InterfaceUp)
	case prev != nil && prev.Up():
		emit(InterfaceDown)
	case prev == nil:
		emit(InterfaceAdded)
	}

	if prev != nil {
		if prev.Name != iface.Name {
			emit(InterfaceRenamed)
		}
		if prev.MTU != iface.MTU {
			emit(InterfaceMTUChanged)
		}
		if !sameIndexPtr(prev.Master, iface.Master) {
			emit(InterfaceMasterChanged)
		}
	}
	m.links[iface.Index] = iface
	return out
}

func sameIndexPtr(a, b *int32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (m *Monitor) addrEvents(msgType uint16, body []byte, ts time.Time) []Event {
	addr, err := ipaddr.Parse(body)
	if err != nil {
		return nil
	}
	kind := AddressAdded
	if msgType == rtmDeladdr {
		kind = AddressRemoved
	}
	return []Event{{Kind: kind, Timestamp: ts, Address: addr}}
}

func (m *Monitor) routeEvents(msgType uint16, body []byte, ts time.Time) []Event {
	r, err := route.Parse(body)
	if err != nil {
		return nil
	}
	if r.Type != route.TypeUnicast {
		return nil
	}
	kind := RouteAdded
	if msgType == rtmDelroute {
		kind = RouteRemoved
	}
	return []Event{{Kind: kind, Timestamp: ts, Route: r}}
}

func (m *Monitor) neighEvents(msgType uint16, body []byte, ts time.Time) []Event {
	n, err := neighbor.Parse(body)
	if err != nil {
		return nil
	}
	key := neighKey{index: n.Index, ip: n.IP.String()}

	if msgType == rtmDelneigh {
		delete(m.neighbors, key)
		return []Event{{Kind: NeighborRemoved, Timestamp: ts, Neighbor: n}}
	}

	prev, existed := m.neighbors[key]
	m.neighbors[key] = n
	if !existed {
		return []Event{{Kind: NeighborAdded, Timestamp: ts, Neighbor: n}}
	}
	if prev.State != n.State || prev.LLAddr.String() != n.LLAddr.String() {
		return []Event{{Kind: NeighborChanged, Timestamp: ts, Neighbor: n}}
	}
	return nil
}
