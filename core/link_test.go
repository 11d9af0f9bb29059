package core

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/encodeous/routesim/state"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	panic("unreachable")
}

func TestLinkDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	ra, rb := newRecorder(), newRecorder()
	a, doneA := startNode(t, ctx, "a", ra)
	b, doneB := startNode(t, ctx, "b", rb)

	var inflight sync.WaitGroup
	cfg := state.LinkCfg{A: "a", B: "b", PortA: 1, PortB: 2, CostAB: 20, CostBA: 1}
	link := NewLink(cfg, time.Millisecond, a, b, &inflight, nil, slog.New(slog.DiscardHandler))
	assert.Equal(t, 20*time.Millisecond, link.Latency("a"))
	assert.Equal(t, time.Millisecond, link.Latency("b"))

	link.Attach()
	assert.Equal(t, state.Port(1), receive(t, ra.links))
	assert.Equal(t, state.Port(2), receive(t, rb.links))

	start := time.Now()
	probe := state.NewProbe("a", "b", state.Probe{Id: uuid.New(), SentAt: start})
	a.Dispatch(func(n *Node) error {
		n.Send(1, probe)
		return nil
	})
	got := receive(t, rb.msgs)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, []state.NodeId{"a", "b"}, got.Route)
	assert.Equal(t, []state.NodeId{"a"}, probe.Route, "the sent message must not change")
	assert.Equal(t, probe.Payload.(state.Probe).Id, got.Payload.(state.Probe).Id)

	b.Dispatch(func(n *Node) error {
		n.Send(2, state.NewRouteUpdate("b", "a", state.RouteUpdate{Src: "b", Dst: "x", Cost: 3}))
		return nil
	})
	upd := receive(t, ra.msgs)
	assert.Equal(t, state.RouteUpdate{Src: "b", Dst: "x", Cost: 3}, upd.Payload)

	cancel()
	require.NoError(t, <-doneA)
	require.NoError(t, <-doneB)
	link.Close()
	inflight.Wait()
}

func TestLinkCloseDropsInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	ra, rb := newRecorder(), newRecorder()
	a, doneA := startNode(t, ctx, "a", ra)
	b, doneB := startNode(t, ctx, "b", rb)

	var inflight sync.WaitGroup
	cfg := state.LinkCfg{A: "a", B: "b", PortA: 1, PortB: 1, CostAB: 16, CostBA: 16}
	link := NewLink(cfg, time.Hour, a, b, &inflight, nil, slog.New(slog.DiscardHandler))
	link.Attach()
	receive(t, ra.links)
	receive(t, rb.links)

	_, err := a.DispatchWait(func(n *Node) (any, error) {
		n.Send(1, state.NewRouteUpdate("a", "b", state.RouteUpdate{Src: "a", Dst: "a"}))
		n.Send(1, state.NewRouteUpdate("a", "b", state.RouteUpdate{Src: "a", Dst: "c"}))
		return nil, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, link.Close())
	link.Detach()
	assert.Equal(t, state.Port(1), receive(t, ra.removed))
	assert.Equal(t, state.Port(1), receive(t, rb.removed))
	inflight.Wait()

	// nothing is sent on a closed link
	link.Transmit("a", state.NewRouteUpdate("a", "b", state.RouteUpdate{Src: "a", Dst: "a"}))
	assert.Equal(t, 0, link.Close())
	assert.Empty(t, rb.msgs)

	cancel()
	require.NoError(t, <-doneA)
	require.NoError(t, <-doneB)
}

func TestClosedLinkReportsNothing(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	a := NewNode(ctx, "a", time.Millisecond, logger)
	b := NewNode(ctx, "b", time.Millisecond, logger)
	ev := NewEvents()
	sub, unsub := ev.Subscribe(8)

	var inflight sync.WaitGroup
	cfg := state.LinkCfg{A: "a", B: "b", PortA: 1, PortB: 1, CostAB: 1, CostBA: 1}
	link := NewLink(cfg, time.Hour, a, b, &inflight, ev, logger)
	upd := state.NewRouteUpdate("a", "b", state.RouteUpdate{Src: "a", Dst: "a"})

	link.Transmit("a", upd)
	sent, ok := receive(t, sub).(Event)
	require.True(t, ok)
	assert.Equal(t, MessageSent, sent.Kind)
	assert.Equal(t, state.NodeId("b"), sent.To)
	assert.Equal(t, time.Hour, sent.Latency)

	assert.Equal(t, 1, link.Close())
	inflight.Wait()
	link.Transmit("b", upd)
	select {
	case e := <-sub:
		t.Fatalf("unexpected event after close: %v", e)
	case <-time.After(50 * time.Millisecond):
	}

	unsub()
	require.NoError(t, ev.Close())
}
