package state

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

type MessageKind uint8

const (
	RoutingUpdate MessageKind = iota + 1
	LinkState
	TraceProbe
)

func (k MessageKind) String() string {
	switch k {
	case RoutingUpdate:
		return "RoutingUpdate"
	case LinkState:
		return "LinkState"
	case TraceProbe:
		return "TraceProbe"
	default:
		return fmt.Sprintf("MessageKind(%d)", k)
	}
}

// Payload is implemented by RouteUpdate, LinkStateRecord and Probe.
type Payload interface {
	Kind() MessageKind
}

// RouteUpdate is a distance vector advertisement: Src can reach Dst at Cost.
type RouteUpdate struct {
	Src  NodeId
	Dst  NodeId
	Cost uint32
}

func (RouteUpdate) Kind() MessageKind { return RoutingUpdate }

func (u RouteUpdate) String() string {
	return fmt.Sprintf("(src: %s, dst: %s, cost: %d)", u.Src, u.Dst, u.Cost)
}

func (LinkStateRecord) Kind() MessageKind { return LinkState }

// Probe carries the identity of a traceroute probe. The hops it traversed are in Message.Route.
type Probe struct {
	Id     uuid.UUID
	SentAt time.Time
}

func (Probe) Kind() MessageKind { return TraceProbe }

// Message is immutable once created. Forwarding builds a new Message with WithHop.
type Message struct {
	Src     NodeId
	Dst     NodeId
	Route   []NodeId
	Payload Payload
}

func (m Message) Kind() MessageKind {
	if m.Payload == nil {
		return 0
	}
	return m.Payload.Kind()
}

func (m Message) IsTraceroute() bool {
	return m.Kind() == TraceProbe
}

func (m Message) IsRouting() bool {
	k := m.Kind()
	return k == RoutingUpdate || k == LinkState
}

// WithHop returns a copy of the message with hop appended to its route.
func (m Message) WithHop(hop NodeId) Message {
	route := make([]NodeId, len(m.Route), len(m.Route)+1)
	copy(route, m.Route)
	m.Route = append(route, hop)
	return m
}

func (m Message) String() string {
	return fmt.Sprintf("%s %s -> %s %v %v", m.Kind(), m.Src, m.Dst, m.Route, m.Payload)
}

func NewRouteUpdate(src, dst NodeId, upd RouteUpdate) Message {
	return Message{Src: src, Dst: dst, Payload: upd}
}

func NewLinkStateAdvert(src, dst NodeId, rec LinkStateRecord) Message {
	return Message{Src: src, Dst: dst, Payload: rec.Clone()}
}

func NewProbe(src, dst NodeId, probe Probe) Message {
	return Message{Src: src, Dst: dst, Route: []NodeId{src}, Payload: probe}
}

// SameRoute reports whether two routes visit the same hops in order.
func SameRoute(a, b []NodeId) bool {
	return slices.Equal(a, b)
}
