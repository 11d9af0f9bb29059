package state

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

type NodeId string

// Port identifies one link attachment on a node.
type Port int

type ForwardingEntry struct {
	NextHop NodeId
	Cost    uint32
}

func (e ForwardingEntry) String() string {
	return fmt.Sprintf("(nh: %s, cost: %d)", e.NextHop, e.Cost)
}

// AddMetric adds two costs, saturating at INF.
func AddMetric(a, b uint32) uint32 {
	return uint32(min(uint64(INF), uint64(a)+uint64(b)))
}

// DVState is the state held by a distance vector router. It must only be accessed from the router's goroutine.
type DVState struct {
	Id            NodeId
	Neighbours    map[Port]NodeId // neighbour table, port -> neighbour
	Ports         map[NodeId]Port
	Routes        map[NodeId]ForwardingEntry
	Heartbeat     time.Duration
	LastBroadcast time.Time
}

func NewDVState(id NodeId, heartbeat time.Duration) *DVState {
	return &DVState{
		Id:         id,
		Neighbours: make(map[Port]NodeId),
		Ports:      make(map[NodeId]Port),
		Routes:     make(map[NodeId]ForwardingEntry),
		Heartbeat:  heartbeat,
	}
}

func (s *DVState) StringRoutes() string {
	return stringTable(s.Routes)
}

type Neighbour struct {
	Id   NodeId
	Cost uint32
}

// LSState is the state held by a link state router. It must only be accessed from the router's goroutine.
type LSState struct {
	Id            NodeId
	Seqno         uint32
	Neighbours    map[Port]Neighbour
	Records       map[NodeId]*LinkStateRecord
	Routes        map[NodeId]ForwardingEntry
	Heartbeat     time.Duration
	LastBroadcast time.Time
}

func NewLSState(id NodeId, heartbeat time.Duration) *LSState {
	return &LSState{
		Id:         id,
		Neighbours: make(map[Port]Neighbour),
		Records:    make(map[NodeId]*LinkStateRecord),
		Routes:     make(map[NodeId]ForwardingEntry),
		Heartbeat:  heartbeat,
	}
}

// PortOf returns the port facing the given neighbour.
func (s *LSState) PortOf(id NodeId) (Port, bool) {
	for port, n := range s.Neighbours {
		if n.Id == id {
			return port, true
		}
	}
	return 0, false
}

func (s *LSState) StringRoutes() string {
	return stringTable(s.Routes)
}

// LinkStateRecord is the link state advertisement of a single router.
type LinkStateRecord struct {
	Owner  NodeId
	Seqno  uint32
	NbCost map[NodeId]uint32
}

// ApplyUpdate adopts a strictly newer record. It returns true only when the
// neighbour costs changed, meaning the record should be flooded further.
func (l *LinkStateRecord) ApplyUpdate(candidate LinkStateRecord) bool {
	if candidate.Seqno <= l.Seqno {
		return false
	}
	l.Seqno = candidate.Seqno
	if maps.Equal(l.NbCost, candidate.NbCost) {
		return false
	}
	l.NbCost = maps.Clone(candidate.NbCost)
	return true
}

func (l LinkStateRecord) Clone() LinkStateRecord {
	return LinkStateRecord{
		Owner:  l.Owner,
		Seqno:  l.Seqno,
		NbCost: maps.Clone(l.NbCost),
	}
}

func (l LinkStateRecord) String() string {
	nbs := make([]string, 0, len(l.NbCost))
	for n, c := range l.NbCost {
		nbs = append(nbs, fmt.Sprintf("%s=%d", n, c))
	}
	slices.Sort(nbs)
	return fmt.Sprintf("(owner: %s, seqno: %d, nb: [%s])", l.Owner, l.Seqno, strings.Join(nbs, " "))
}

func stringTable(routes map[NodeId]ForwardingEntry) string {
	rt := make([]string, 0, len(routes))
	for dst, route := range routes {
		rt = append(rt, fmt.Sprintf("%s via %s", dst, route))
	}
	slices.Sort(rt)
	return strings.Join(rt, "\n")
}
