package core

import (
	"testing"
	"time"

	"github.com/encodeous/routesim/state"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLinkExchange(t *testing.T) {
	// A has links to B (port 1, cost 1) and C (port 2, cost 3)
	//        B
	//     1 /
	//      A
	//     3 \
	//        C
	h := &RouterHarness{}
	rs := state.NewDVState("A", time.Second)

	HandleNewLink(rs, h, 1, "B", 1)
	assert.Empty(t, h.GetActions())

	HandleNewLink(rs, h, 2, "C", 3)
	assert.Equal(t, `UPDATE_ROUTE 1 C 3
UPDATE_ROUTE 2 B 1`, h.GetActions().String())
	assert.Equal(t, `B via (nh: B, cost: 1)
C via (nh: C, cost: 3)`, rs.StringRoutes())
}

func TestNewLinkNotCheaper(t *testing.T) {
	h := &RouterHarness{}
	rs := state.NewDVState("A", time.Second)
	HandleNewLink(rs, h, 1, "B", 1)
	h.Advertise(rs, "B", "C", 1)
	h.GetActions()

	// a direct link to C that is worse than the path through B
	HandleNewLink(rs, h, 2, "C", 5)
	a := h.GetActions()
	assert.Equal(t, `UPDATE_ROUTE 2 B 1`, a.String())
	assert.Equal(t, state.ForwardingEntry{NextHop: "B", Cost: 2}, rs.Routes["C"])
}

func TestUpdateRule(t *testing.T) {
	h := &RouterHarness{}
	rs := state.NewDVState("A", time.Second)
	HandleNewLink(rs, h, 1, "B", 1)
	HandleNewLink(rs, h, 2, "C", 3)
	h.GetActions()

	// cheaper path to C through B, nothing to tell anyone because of split horizon
	h.Advertise(rs, "B", "C", 1)
	assert.Equal(t, state.ForwardingEntry{NextHop: "B", Cost: 2}, rs.Routes["C"])
	assert.Empty(t, h.GetActions())

	// unknown destination learnt through a known neighbour
	h.Advertise(rs, "B", "D", 2)
	assert.Equal(t, state.ForwardingEntry{NextHop: "B", Cost: 3}, rs.Routes["D"])
	assert.Equal(t, `UPDATE_ROUTE 2 D 3`, h.GetActions().String())

	// a worse path from a neighbour that is not our next hop is ignored
	h.Advertise(rs, "C", "D", 10)
	assert.Equal(t, state.ForwardingEntry{NextHop: "B", Cost: 3}, rs.Routes["D"])
	assert.Empty(t, h.GetActions())

	// advertisements from unknown neighbours are ignored
	h.Advertise(rs, "X", "E", 1)
	assert.NotContains(t, rs.Routes, state.NodeId("E"))

	// a worse path from the current next hop is authoritative
	h.Advertise(rs, "B", "D", 5)
	assert.Equal(t, state.ForwardingEntry{NextHop: "B", Cost: 6}, rs.Routes["D"])
	a := h.GetActions()
	assert.Equal(t, `UPDATE_ROUTE 2 D 6`, a.String())
	h.Advertise(rs, "B", "D", 5)
	h.GetLogs().AssertContains(t, RouteRefreshed)

	// routes about ourselves are never learnt
	h.Advertise(rs, "B", "A", 1)
	assert.NotContains(t, rs.Routes, state.NodeId("A"))
}

func TestCostIsClamped(t *testing.T) {
	h := &RouterHarness{}
	rs := state.NewDVState("A", time.Second)
	HandleNewLink(rs, h, 1, "B", 4)
	h.Advertise(rs, "B", "D", 15)
	assert.Equal(t, state.INF, rs.Routes["D"].Cost)

	h.Advertise(rs, "B", "E", 2)
	h.Advertise(rs, "B", "E", 100)
	assert.Equal(t, state.INF, rs.Routes["E"].Cost)

	for dst, route := range rs.Routes {
		assert.LessOrEqual(t, route.Cost, state.INF, "route to %s", dst)
	}
}

func TestRemoveLink(t *testing.T) {
	h := &RouterHarness{}
	rs := state.NewDVState("A", time.Second)
	HandleNewLink(rs, h, 1, "B", 1)
	HandleNewLink(rs, h, 2, "C", 3)
	h.Advertise(rs, "B", "D", 1)
	h.Advertise(rs, "C", "E", 1)
	h.GetActions()

	HandleRemoveLink(rs, h, 1)
	assert.Equal(t, `B via (nh: B, cost: 16)
C via (nh: C, cost: 3)
D via (nh: B, cost: 16)
E via (nh: C, cost: 4)`, rs.StringRoutes())
	assert.Empty(t, h.GetActions(), "link removal must not trigger updates")
	assert.NotContains(t, rs.Neighbours, state.Port(1))
	assert.NotContains(t, rs.Ports, state.NodeId("B"))

	// C repairs the route on its next advertisement
	h.Advertise(rs, "C", "D", 2)
	assert.Equal(t, state.ForwardingEntry{NextHop: "C", Cost: 5}, rs.Routes["D"])
}

func TestRemoveLinkToSelf(t *testing.T) {
	h := &RouterHarness{}
	rs := state.NewDVState("A", time.Second)
	HandleNewLink(rs, h, 1, "A", 1)
	HandleRemoveLink(rs, h, 1)
	assert.Equal(t, state.ForwardingEntry{NextHop: "A", Cost: 0}, rs.Routes["A"])

	HandleRemoveLink(rs, h, 7)
	h.GetLogs().AssertContains(t, InconsistentState)
}

func TestHeartbeat(t *testing.T) {
	h := &RouterHarness{}
	rs := state.NewDVState("A", time.Second)
	HandleNewLink(rs, h, 1, "B", 1)
	HandleNewLink(rs, h, 2, "C", 1)
	h.Advertise(rs, "B", "D", 1)
	h.GetActions()

	now := time.Now()
	HandleTime(rs, h, now)
	assert.Equal(t, `UPDATE_ROUTE 1 C 1
UPDATE_ROUTE 2 B 1
UPDATE_ROUTE 2 D 2`, h.GetActions().String())

	HandleTime(rs, h, now.Add(500*time.Millisecond))
	assert.Empty(t, h.GetActions())

	HandleTime(rs, h, now.Add(1500*time.Millisecond))
	assert.Len(t, h.GetActions(), 3)
}

func TestSplitHorizon(t *testing.T) {
	h := &RouterHarness{}
	rs := state.NewDVState("A", time.Second)
	violations := 0
	h.OnSend = func(port state.Port, msg state.Message) {
		upd, ok := msg.Payload.(state.RouteUpdate)
		require.True(t, ok)
		neigh := rs.Neighbours[port]
		if rs.Routes[upd.Dst].NextHop == neigh || upd.Dst == neigh {
			violations++
			t.Errorf("advertised %s to %s, which is its next hop", upd.Dst, neigh)
		}
	}

	now := time.Now()
	HandleNewLink(rs, h, 1, "B", 1)
	HandleNewLink(rs, h, 2, "C", 2)
	HandleNewLink(rs, h, 3, "D", 4)
	h.Advertise(rs, "B", "C", 1)
	h.Advertise(rs, "C", "E", 1)
	h.Advertise(rs, "D", "E", 1)
	h.Advertise(rs, "B", "F", 3)
	h.Advertise(rs, "D", "F", 1)
	HandleTime(rs, h, now)
	h.Advertise(rs, "C", "E", 9)
	HandleRemoveLink(rs, h, 2)
	HandleTime(rs, h, now.Add(2*time.Second))
	HandleNewLink(rs, h, 2, "C", 1)
	HandleTime(rs, h, now.Add(4*time.Second))

	assert.Zero(t, violations)
	assert.NotEmpty(t, h.GetActions())
}

func TestDVForwardProbe(t *testing.T) {
	h := &RouterHarness{}
	d := NewDVRouter("A", h, time.Second)
	d.HandleNewLink(1, "B", 1)
	d.HandleNewLink(2, "C", 1)
	d.HandleMessage(1, state.NewRouteUpdate("B", "A", state.RouteUpdate{Src: "B", Dst: "b", Cost: 1}))
	h.GetActions()

	probe := state.NewProbe("c", "b", state.Probe{Id: uuid.New(), SentAt: time.Now()})
	d.HandleMessage(2, probe.WithHop("C").WithHop("A"))
	assert.Equal(t, `PROBE 1 b`, h.GetActions().String())

	// no route
	d.HandleMessage(2, state.NewProbe("c", "x", state.Probe{Id: uuid.New()}))
	assert.Empty(t, h.GetActions())

	// unreachable route
	d.HandleRemoveLink(1)
	d.HandleMessage(2, probe)
	assert.Empty(t, h.GetActions())
	h.GetLogs().AssertContains(t, UnknownDestination)
}

func TestProbeHopLimit(t *testing.T) {
	h := &RouterHarness{}
	d := NewDVRouter("A", h, time.Second)
	d.HandleNewLink(1, "B", 1)
	h.GetActions()

	probe := state.NewProbe("a", "B", state.Probe{Id: uuid.New()})
	for range state.MaxHops {
		probe = probe.WithHop("A")
	}
	d.HandleMessage(1, probe)
	assert.Empty(t, h.GetActions())
}

func TestHarnessDrainsSendsAndLogsSeparately(t *testing.T) {
	h := &RouterHarness{}
	d := NewDVRouter("A", h, time.Second)
	d.HandleRemoveLink(3)
	d.HandleNewLink(1, "B", 1)
	d.HandleNewLink(2, "C", 1)

	assert.NotEmpty(t, h.GetActions())
	logs := h.GetLogs()
	logs.AssertContains(t, InconsistentState, "port", state.Port(3))
	logs.AssertContains(t, RouteAdded, "dst", state.NodeId("B"))
	assert.Empty(t, h.GetLogs())
	assert.Empty(t, h.GetActions())
}
