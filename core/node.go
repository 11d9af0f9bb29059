package core

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"runtime"
	"time"

	"github.com/encodeous/routesim/perf"
	"github.com/encodeous/routesim/state"
)

// Node hosts a single Protocol. All protocol state is owned by the goroutine running MainLoop,
// everything else talks to it through Dispatch.
type Node struct {
	Id    state.NodeId
	Proto Protocol
	Tick  time.Duration

	ctx      context.Context
	logger   *slog.Logger
	dispatch chan func(*Node) error
	links    map[state.Port]*Link
}

func NewNode(ctx context.Context, id state.NodeId, tick time.Duration, logger *slog.Logger) *Node {
	if tick < state.MinTick {
		tick = state.MinTick
	}
	return &Node{
		Id:       id,
		Tick:     tick,
		ctx:      ctx,
		logger:   logger.With("node", string(id)),
		dispatch: make(chan func(*Node) error, state.DispatchBuffer),
		links:    make(map[state.Port]*Link),
	}
}

// Dispatch queues fun to run on the node's goroutine without waiting for it to complete.
// It returns false if the node has been stopped.
func (n *Node) Dispatch(fun func(*Node) error) bool {
	select {
	case n.dispatch <- fun:
		return true
	case <-n.ctx.Done():
		return false
	}
}

// DispatchWait runs fun on the node's goroutine and waits for it to complete
func (n *Node) DispatchWait(fun func(*Node) (any, error)) (any, error) {
	ret := make(chan state.Pair[any, error], 1)
	ok := n.Dispatch(func(n *Node) error {
		res, err := fun(n)
		ret <- state.Pair[any, error]{V1: res, V2: err}
		return err
	})
	if !ok {
		return nil, n.ctx.Err()
	}
	select {
	case res := <-ret:
		return res.V1, res.V2
	case <-n.ctx.Done():
		return nil, n.ctx.Err()
	}
}

// ScheduleTask dispatches fun after delay
func (n *Node) ScheduleTask(fun func(*Node) error, delay time.Duration) {
	time.AfterFunc(delay, func() {
		n.Dispatch(fun)
	})
}

func (n *Node) MainLoop() error {
	n.logger.Debug("started main loop")
	ticker := time.NewTicker(n.Tick)
	defer ticker.Stop()
	for {
		select {
		case fun := <-n.dispatch:
			start := time.Now()
			err := fun(n)
			if err != nil {
				n.logger.Error("error occurred during dispatch", "error", err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > time.Millisecond*4 {
				n.logger.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(n.dispatch))
			}
		case now := <-ticker.C:
			n.Proto.HandleTime(now)
		case <-n.ctx.Done():
			goto endLoop
		}
	}
endLoop:
	n.logger.Debug("stopped main loop", "reason", context.Cause(n.ctx))
	if c, ok := n.Proto.(io.Closer); ok {
		if err := c.Close(); err != nil {
			n.logger.Error("error occurred during cleanup", "error", err)
		}
	}
	return nil
}

// Send implements Router
func (n *Node) Send(port state.Port, msg state.Message) {
	link, ok := n.links[port]
	if !ok {
		n.logger.Debug("no link on port", "port", port, "msg", msg)
		perf.DroppedPerSecond.Add(1)
		return
	}
	link.Transmit(n.Id, msg)
}

// Log implements Router
func (n *Node) Log(event RouterEvent, desc string, args ...any) {
	args = append([]any{"event", event.String()}, args...)
	switch event {
	case InconsistentState, MalformedUpdate:
		n.logger.Warn(desc, args...)
	default:
		n.logger.Debug(desc, args...)
	}
}

func (n *Node) attach(port state.Port, link *Link, endpoint state.NodeId, cost uint32) {
	n.links[port] = link
	n.Proto.HandleNewLink(port, endpoint, cost)
}

func (n *Node) detach(port state.Port, link *Link) {
	if n.links[port] != link {
		return
	}
	delete(n.links, port)
	n.Proto.HandleRemoveLink(port)
}

func (n *Node) receive(port state.Port, link *Link, msg state.Message) {
	if n.links[port] != link {
		// the link went down while the message was queued
		perf.DroppedPerSecond.Add(1)
		return
	}
	n.Proto.HandleMessage(port, msg)
}
