package core

// Distance vector routing with split horizon. Unreachable routes are capped at
// state.INF rather than removed, which bounds count-to-infinity.

import (
	"maps"
	"slices"
	"time"

	"github.com/encodeous/routesim/state"
)

// HandleRouteUpdate applies an advertisement from a neighbour, and re-advertises the route if it changed.
func HandleRouteUpdate(s *state.DVState, r Router, upd state.RouteUpdate) {
	if !applyRouteUpdate(s, r, upd) {
		return
	}
	for _, port := range sortedPorts(s.Neighbours) {
		sendRoute(s, r, port, upd.Dst)
	}
}

func applyRouteUpdate(s *state.DVState, r Router, upd state.RouteUpdate) bool {
	src, dst := upd.Src, upd.Dst
	srcRoute, srcKnown := s.Routes[src]
	dstRoute, dstKnown := s.Routes[dst]

	if !dstKnown && dst != s.Id {
		// a destination we have never heard of, learnt through a neighbour we know
		if srcKnown {
			s.Routes[dst] = state.ForwardingEntry{
				NextHop: src,
				Cost:    state.AddMetric(srcRoute.Cost, upd.Cost),
			}
			r.Log(RouteAdded, "added route", "dst", dst, "route", s.Routes[dst])
			return true
		}
		return false
	}

	if dstKnown && srcKnown {
		candidate := state.AddMetric(srcRoute.Cost, upd.Cost)
		// A strictly cheaper path always wins. An update from the current next hop
		// is authoritative and must be taken even when it is worse, otherwise cost
		// increases would never propagate.
		if dstRoute.Cost > candidate || (dstRoute.NextHop == src && src != dst) {
			s.Routes[dst] = state.ForwardingEntry{
				NextHop: src,
				Cost:    candidate,
			}
			if dstRoute.Cost > candidate {
				r.Log(RouteImproved, "improved route", "dst", dst, "route", s.Routes[dst])
			} else {
				r.Log(RouteRefreshed, "refreshed route", "dst", dst, "route", s.Routes[dst])
			}
			return true
		}
	}
	return false
}

// sendRoute advertises our route to dst on port, unless the neighbour on that
// port is our next hop for dst (split horizon).
func sendRoute(s *state.DVState, r Router, port state.Port, dst state.NodeId) bool {
	neigh, ok := s.Neighbours[port]
	if !ok {
		return false
	}
	route, ok := s.Routes[dst]
	if !ok || route.NextHop == neigh || dst == neigh {
		return false
	}
	r.Send(port, state.NewRouteUpdate(s.Id, neigh, state.RouteUpdate{
		Src:  s.Id,
		Dst:  dst,
		Cost: route.Cost,
	}))
	return true
}

// HandleNewLink records a new neighbour and exchanges routes with it.
func HandleNewLink(s *state.DVState, r Router, port state.Port, endpoint state.NodeId, cost uint32) {
	if old, ok := s.Neighbours[port]; ok && old != endpoint {
		r.Log(InconsistentState, "port reused without removal", "port", port, "old", old, "new", endpoint)
		delete(s.Ports, old)
	}
	existing, known := s.Routes[endpoint]
	improves := !known || existing.Cost > cost

	others := sortedPorts(s.Neighbours)
	s.Neighbours[port] = endpoint
	s.Ports[endpoint] = port
	if improves && endpoint != s.Id {
		s.Routes[endpoint] = state.ForwardingEntry{NextHop: endpoint, Cost: min(cost, state.INF)}
		r.Log(RouteAdded, "direct route", "dst", endpoint, "route", s.Routes[endpoint])
	}

	// tell the new neighbour everything we know
	for _, dst := range sortedDestinations(s.Routes) {
		sendRoute(s, r, port, dst)
	}

	// and tell everyone else about the new neighbour, if it is now closer
	if improves {
		for _, other := range others {
			if other == port {
				continue
			}
			sendRoute(s, r, other, endpoint)
		}
	}
}

// HandleRemoveLink marks every route through the departed neighbour as unreachable.
// Routes are repaired by later advertisements from the remaining neighbours.
func HandleRemoveLink(s *state.DVState, r Router, port state.Port) {
	neigh, ok := s.Neighbours[port]
	if !ok {
		r.Log(InconsistentState, "removed unknown port", "port", port)
		return
	}
	delete(s.Neighbours, port)
	if s.Ports[neigh] == port {
		delete(s.Ports, neigh)
	}

	s.Routes[neigh] = state.ForwardingEntry{NextHop: neigh, Cost: state.INF}
	for dst, route := range s.Routes {
		if route.NextHop == neigh {
			route.Cost = state.INF
			s.Routes[dst] = route
			r.Log(RouteUnreachable, "route lost", "dst", dst, "nh", neigh)
		}
	}
	if neigh == s.Id {
		s.Routes[s.Id] = state.ForwardingEntry{NextHop: s.Id, Cost: 0}
	}
}

// HandleTime periodically advertises the full table to every neighbour.
func HandleTime(s *state.DVState, r Router, now time.Time) {
	if !s.LastBroadcast.IsZero() && now.Sub(s.LastBroadcast) <= s.Heartbeat {
		return
	}
	s.LastBroadcast = now
	dsts := sortedDestinations(s.Routes)
	for _, port := range sortedPorts(s.Neighbours) {
		for _, dst := range dsts {
			sendRoute(s, r, port, dst)
		}
	}
}

func sortedPorts[V any](m map[state.Port]V) []state.Port {
	return slices.Sorted(maps.Keys(m))
}

func sortedDestinations(m map[state.NodeId]state.ForwardingEntry) []state.NodeId {
	return slices.Sorted(maps.Keys(m))
}
