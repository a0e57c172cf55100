package nlmonitor

import (
	"time"

	"github.com/EsteSystems/netctl/ipaddr"
	"github.com/EsteSystems/netctl/link"
	"github.com/EsteSystems/netctl/neighbor"
	"github.com/EsteSystems/netctl/route"
)

// Kind is the closed set of notifications the monitor can deliver
// (spec.md §4.3).
type Kind int

const (
	InterfaceAdded Kind = iota
	InterfaceRemoved
	InterfaceUp
	InterfaceDown
	InterfaceRenamed
	InterfaceMTUChanged
	InterfaceMasterChanged
	AddressAdded
	AddressRemoved
	RouteAdded
	RouteRemoved
	NeighborAdded
	NeighborRemoved
	NeighborChanged
)

//go:generate stringer -type=Kind

func (k Kind) String() string {
	switch k {
	case InterfaceAdded:
		return "interface_added"
	case InterfaceRemoved:
		return "interface_removed"
	case InterfaceUp:
		return "interface_up"
	case InterfaceDown:
		return "interface_down"
	case InterfaceRenamed:
		return "interface_renamed"
	case InterfaceMTUChanged:
		return "interface_mtu_changed"
	case InterfaceMasterChanged:
		return "interface_master_changed"
	case AddressAdded:
		return "address_added"
	case AddressRemoved:
		return "address_removed"
	case RouteAdded:
		return "route_added"
	case RouteRemoved:
		return "route_removed"
	case NeighborAdded:
		return "neighbor_added"
	case NeighborRemoved:
		return "neighbor_removed"
	case NeighborChanged:
		return "neighbor_changed"
	default:
		return "unknown"
	}
}

// Event is one notification delivered to a Poll/Run callback. Only the
// field matching Kind's subject is populated; the rest are nil/zero.
type Event struct {
	Kind      Kind
	Timestamp time.Time

	Interface *link.Interface
	Address   *ipaddr.Address
	Route     *route.Route
	Neighbor  *neighbor.Neighbor

	mon *Monitor
}

// Stop requests that the enclosing Run loop return after this poll
// iteration. It has no effect outside of Run, and must only be called
// from within the event callback itself (the callback contract forbids
// re-entering the monitor any other way).
func (e Event) Stop() {
	if e.mon != nil {
		e.mon.stopRequested = true
	}
}
