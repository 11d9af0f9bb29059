package core

import (
	"time"

	"github.com/encodeous/routesim/state"
)

// DVRouter runs the distance vector protocol.
type DVRouter struct {
	*state.DVState
	Router
}

func NewDVRouter(id state.NodeId, r Router, heartbeat time.Duration) *DVRouter {
	return &DVRouter{
		DVState: state.NewDVState(id, heartbeat),
		Router:  r,
	}
}

func (d *DVRouter) HandleMessage(port state.Port, msg state.Message) {
	switch p := msg.Payload.(type) {
	case state.Probe:
		route, ok := d.Routes[msg.Dst]
		forwardProbe(d.Router, msg, route, ok && route.Cost < state.INF, d.portOf)
	case state.RouteUpdate:
		HandleRouteUpdate(d.DVState, d.Router, p)
	default:
		d.Log(InconsistentState, "unexpected message", "port", port, "kind", msg.Kind())
	}
}

func (d *DVRouter) portOf(id state.NodeId) (state.Port, bool) {
	port, ok := d.Ports[id]
	return port, ok
}

func (d *DVRouter) HandleNewLink(port state.Port, endpoint state.NodeId, cost uint32) {
	HandleNewLink(d.DVState, d.Router, port, endpoint, cost)
}

func (d *DVRouter) HandleRemoveLink(port state.Port) {
	HandleRemoveLink(d.DVState, d.Router, port)
}

func (d *DVRouter) HandleTime(now time.Time) {
	HandleTime(d.DVState, d.Router, now)
}

func (d *DVRouter) Inspect() string {
	return d.StringRoutes()
}

// LSRouter runs the link state protocol.
type LSRouter struct {
	*state.LSState
	Router
}

func NewLSRouter(id state.NodeId, r Router, heartbeat time.Duration) *LSRouter {
	return &LSRouter{
		LSState: state.NewLSState(id, heartbeat),
		Router:  r,
	}
}

func (l *LSRouter) HandleMessage(port state.Port, msg state.Message) {
	switch p := msg.Payload.(type) {
	case state.Probe:
		route, ok := l.Routes[msg.Dst]
		forwardProbe(l.Router, msg, route, ok, l.PortOf)
	case state.LinkStateRecord:
		HandleLinkState(l.LSState, l.Router, port, p)
	default:
		l.Log(InconsistentState, "unexpected message", "port", port, "kind", msg.Kind())
	}
}

func (l *LSRouter) HandleNewLink(port state.Port, endpoint state.NodeId, cost uint32) {
	LSHandleNewLink(l.LSState, l.Router, port, endpoint, cost)
}

func (l *LSRouter) HandleRemoveLink(port state.Port) {
	LSHandleRemoveLink(l.LSState, l.Router, port)
}

func (l *LSRouter) HandleTime(now time.Time) {
	LSHandleTime(l.LSState, l.Router, now)
}

func (l *LSRouter) Inspect() string {
	return l.StringRoutes()
}
