package core

// Link state routing. Every router floods a sequence-numbered record of its
// neighbour costs, and computes shortest paths over the records it holds.

import (
	"maps"
	"slices"
	"time"

	"github.com/encodeous/routesim/state"
)

// HandleLinkState processes a record flooded by another router.
func HandleLinkState(s *state.LSState, r Router, from state.Port, rec state.LinkStateRecord) {
	if rec.Owner == s.Id {
		return // our own record, echoed back
	}
	stored, ok := s.Records[rec.Owner]
	if !ok {
		cloned := rec.Clone()
		s.Records[rec.Owner] = &cloned
	} else if !stored.ApplyUpdate(rec) {
		r.Log(StaleUpdate, "suppressed record", "record", rec, "stored", stored.Seqno, "err", state.ErrStaleUpdate)
		return
	}
	r.Log(RecordFlooded, "flooding record", "record", rec)
	flood(s, r, *s.Records[rec.Owner], &from)
	ComputeLinkStateRoutes(s, r)
}

// LSHandleNewLink records a new neighbour, synchronises our database with it and re-originates our record.
func LSHandleNewLink(s *state.LSState, r Router, port state.Port, endpoint state.NodeId, cost uint32) {
	s.Neighbours[port] = state.Neighbour{Id: endpoint, Cost: cost}
	for _, owner := range slices.Sorted(maps.Keys(s.Records)) {
		if owner == s.Id {
			continue
		}
		r.Send(port, state.NewLinkStateAdvert(s.Id, endpoint, *s.Records[owner]))
	}
	originate(s, r)
	ComputeLinkStateRoutes(s, r)
}

func LSHandleRemoveLink(s *state.LSState, r Router, port state.Port) {
	if _, ok := s.Neighbours[port]; !ok {
		r.Log(InconsistentState, "removed unknown port", "port", port)
		return
	}
	delete(s.Neighbours, port)
	originate(s, r)
	ComputeLinkStateRoutes(s, r)
}

// LSHandleTime re-announces our record on every heartbeat. Receivers that already
// hold the same neighbour costs do not flood it further.
func LSHandleTime(s *state.LSState, r Router, now time.Time) {
	if !s.LastBroadcast.IsZero() && now.Sub(s.LastBroadcast) <= s.Heartbeat {
		return
	}
	s.LastBroadcast = now
	originate(s, r)
}

// originate bumps our sequence number and floods our current neighbour costs.
func originate(s *state.LSState, r Router) {
	s.Seqno++
	nb := make(map[state.NodeId]uint32, len(s.Neighbours))
	for _, n := range s.Neighbours {
		if cur, ok := nb[n.Id]; !ok || n.Cost < cur {
			nb[n.Id] = n.Cost
		}
	}
	s.Records[s.Id] = &state.LinkStateRecord{Owner: s.Id, Seqno: s.Seqno, NbCost: nb}
	flood(s, r, *s.Records[s.Id], nil)
}

func flood(s *state.LSState, r Router, rec state.LinkStateRecord, except *state.Port) {
	for _, port := range sortedPorts(s.Neighbours) {
		if except != nil && port == *except {
			continue
		}
		r.Send(port, state.NewLinkStateAdvert(s.Id, s.Neighbours[port].Id, rec))
	}
}

// ComputeLinkStateRoutes runs Dijkstra over the record database. Nodes without a
// record of their own, such as clients, are reachable but never transited.
func ComputeLinkStateRoutes(s *state.LSState, r Router) {
	type visit struct {
		id   state.NodeId
		cost uint64
		nh   state.NodeId
	}
	dist := map[state.NodeId]visit{s.Id: {id: s.Id}}
	done := make(map[state.NodeId]bool)

	for {
		// pick the closest unvisited node, lowest id on ties
		var cur *visit
		for _, v := range dist {
			if done[v.id] {
				continue
			}
			if cur == nil || v.cost < cur.cost || (v.cost == cur.cost && v.id < cur.id) {
				cur = &v
			}
		}
		if cur == nil {
			break
		}
		done[cur.id] = true

		rec, ok := s.Records[cur.id]
		if !ok {
			continue
		}
		for _, nb := range slices.Sorted(maps.Keys(rec.NbCost)) {
			if done[nb] {
				continue
			}
			alt := cur.cost + uint64(rec.NbCost[nb])
			nh := cur.nh
			if cur.id == s.Id {
				nh = nb
			}
			old, seen := dist[nb]
			if !seen || alt < old.cost || (alt == old.cost && nh < old.nh) {
				dist[nb] = visit{id: nb, cost: alt, nh: nh}
			}
		}
	}

	routes := make(map[state.NodeId]state.ForwardingEntry, len(dist))
	for id, v := range dist {
		if id == s.Id {
			continue
		}
		routes[id] = state.ForwardingEntry{NextHop: v.nh, Cost: uint32(min(v.cost, uint64(^uint32(0))))}
	}
	for dst, route := range routes {
		if old, ok := s.Routes[dst]; !ok || old != route {
			r.Log(RouteImproved, "route changed", "dst", dst, "route", route)
		}
	}
	for dst := range s.Routes {
		if _, ok := routes[dst]; !ok {
			r.Log(RouteUnreachable, "route lost", "dst", dst)
		}
	}
	s.Routes = routes
}
