package core

import (
	"fmt"
	"time"

	"github.com/encodeous/routesim/state"
)

type RouterEvent int

// trace events

const (
	RouteAdded RouterEvent = iota
	RouteImproved
	RouteRefreshed
	RouteUnreachable
	ProbeForwarded
	StaleUpdate
	RecordFlooded
)

// warn events

const (
	InconsistentState RouterEvent = iota + 1000
	MalformedUpdate
	UnknownDestination
	ProbeExpired
)

func (e RouterEvent) String() string {
	switch e {
	case RouteAdded:
		return "RouteAdded"
	case RouteImproved:
		return "RouteImproved"
	case RouteRefreshed:
		return "RouteRefreshed"
	case RouteUnreachable:
		return "RouteUnreachable"
	case ProbeForwarded:
		return "ProbeForwarded"
	case StaleUpdate:
		return "StaleUpdate"
	case RecordFlooded:
		return "RecordFlooded"
	case InconsistentState:
		return "InconsistentState"
	case MalformedUpdate:
		return "MalformedUpdate"
	case UnknownDestination:
		return "UnknownDestination"
	case ProbeExpired:
		return "ProbeExpired"
	default:
		return fmt.Sprintf("RouterEvent(%d)", int(e))
	}
}

// Router is the interface a protocol uses to act on the network
type Router interface {
	Send(port state.Port, msg state.Message)
	Log(event RouterEvent, desc string, args ...any)
}

// Protocol is the behaviour hosted by a node. Every method is called from the node's goroutine only.
type Protocol interface {
	HandleMessage(port state.Port, msg state.Message)
	HandleNewLink(port state.Port, endpoint state.NodeId, cost uint32)
	HandleRemoveLink(port state.Port)
	HandleTime(now time.Time)
	// Inspect returns a human-readable dump of the forwarding state. It must not mutate anything.
	Inspect() string
}

// forwardProbe sends a trace probe to the next hop of route. Probes without a
// usable route are dropped here and only show up as a missing observation.
func forwardProbe(r Router, msg state.Message, route state.ForwardingEntry, reachable bool, portOf func(state.NodeId) (state.Port, bool)) {
	if len(msg.Route) > state.MaxHops {
		r.Log(UnknownDestination, "probe exceeded hop limit", "dst", msg.Dst, "route", msg.Route)
		return
	}
	if !reachable {
		r.Log(UnknownDestination, "dropped probe", "dst", msg.Dst, "err", state.ErrUnknownDestination)
		return
	}
	port, ok := portOf(route.NextHop)
	if !ok {
		r.Log(UnknownDestination, "no link to next hop", "dst", msg.Dst, "nh", route.NextHop)
		return
	}
	r.Log(ProbeForwarded, "forwarded probe", "dst", msg.Dst, "nh", route.NextHop)
	r.Send(port, msg)
}
