package core

import (
	"sync"
	"testing"
	"time"

	"github.com/encodeous/routesim/state"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type reports struct {
	mu  sync.Mutex
	obs []state.RouteObservation
}

func (r *reports) ReportRoute(src, dst state.NodeId, route []state.NodeId, sentAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, state.RouteObservation{Src: src, Dst: dst, Route: route, Timestamp: sentAt})
}

func (r *reports) get() []state.RouteObservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]state.RouteObservation(nil), r.obs...)
}

func TestClientSendsProbes(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := &RouterHarness{}
	rep := &reports{}
	c := NewClient("a", h, []state.NodeId{"b", "c"}, time.Second, time.Hour, rep)
	defer c.Close()

	now := time.Now()
	c.HandleTime(now)
	assert.Empty(t, h.GetActions())
	h.GetLogs().AssertContains(t, InconsistentState)

	c.HandleNewLink(1, "A", 1)
	c.HandleTime(now.Add(500 * time.Millisecond))
	assert.Empty(t, h.GetActions())

	c.HandleTime(now.Add(time.Second))
	assert.Equal(t, `PROBE 1 b
PROBE 1 c`, h.GetActions().String())

	// routing traffic is ignored
	c.HandleMessage(1, state.NewRouteUpdate("A", "a", state.RouteUpdate{Src: "A", Dst: "b", Cost: 1}))
	assert.Empty(t, rep.get())

	sent := now.Add(-time.Second)
	probe := state.NewProbe("b", "a", state.Probe{Id: uuid.New(), SentAt: sent}).WithHop("B").WithHop("A").WithHop("a")
	c.HandleMessage(1, probe)
	require.Len(t, rep.get(), 1)
	obs := rep.get()[0]
	assert.Equal(t, state.NodeId("b"), obs.Src)
	assert.Equal(t, state.NodeId("a"), obs.Dst)
	assert.Equal(t, []state.NodeId{"b", "B", "A", "a"}, obs.Route)
	assert.True(t, sent.Equal(obs.Timestamp))

	c.HandleRemoveLink(1)
	c.HandleTime(now.Add(3 * time.Second))
	assert.Empty(t, h.GetActions())
}

func TestClientReportsLostProbes(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := &RouterHarness{}
	rep := &reports{}
	c := NewClient("a", h, []state.NodeId{"b"}, time.Hour, time.Millisecond, rep)
	defer c.Close()

	sent := make(chan state.Message, 4)
	h.OnSend = func(port state.Port, msg state.Message) {
		sent <- msg
	}
	c.HandleNewLink(1, "A", 1)
	c.SendProbes(time.Now())
	require.Len(t, sent, 1)

	assert.Eventually(t, func() bool {
		c.HandleTime(time.Now())
		return len(rep.get()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	obs := rep.get()[0]
	assert.Equal(t, state.NodeId("a"), obs.Src)
	assert.Equal(t, state.NodeId("b"), obs.Dst)
	assert.Empty(t, obs.Route)
}

func TestClientDeliveredProbeDoesNotExpire(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := &RouterHarness{}
	rep := &reports{}
	c := NewClient("a", h, []state.NodeId{"a"}, time.Hour, 20*time.Millisecond, rep)
	defer c.Close()

	var probe state.Message
	h.OnSend = func(port state.Port, msg state.Message) {
		probe = msg
	}
	c.HandleNewLink(1, "A", 1)
	c.SendProbes(time.Now())
	c.HandleMessage(1, probe.WithHop("A").WithHop("a"))

	time.Sleep(50 * time.Millisecond)
	c.HandleTime(time.Now())
	time.Sleep(10 * time.Millisecond)
	c.HandleTime(time.Now())
	require.Len(t, rep.get(), 1)
	assert.Equal(t, []state.NodeId{"a", "A", "a"}, rep.get()[0].Route)
}
