package core

import (
	"log/slog"
	"sync"
	"time"

	"github.com/encodeous/routesim/perf"
	"github.com/encodeous/routesim/protocol"
	"github.com/encodeous/routesim/state"
)

// Link is a bidirectional connection between two nodes. Messages are encoded on send
// and delivered after cost * unit in each direction.
type Link struct {
	Cfg  state.LinkCfg
	unit time.Duration
	a, b *Node

	events   *Events
	logger   *slog.Logger
	inflight *sync.WaitGroup

	mu      sync.Mutex
	down    bool
	nextId  uint64
	pending map[uint64]*time.Timer
}

func NewLink(cfg state.LinkCfg, unit time.Duration, a, b *Node, inflight *sync.WaitGroup, events *Events, logger *slog.Logger) *Link {
	return &Link{
		Cfg:      cfg,
		unit:     unit,
		a:        a,
		b:        b,
		events:   events,
		logger:   logger.With("link", cfg.Edge()),
		inflight: inflight,
		pending:  make(map[uint64]*time.Timer),
	}
}

// Latency returns the one-way delay for messages sent by from.
func (l *Link) Latency(from state.NodeId) time.Duration {
	if from == l.Cfg.B {
		return time.Duration(l.Cfg.CostBA) * l.unit
	}
	return time.Duration(l.Cfg.CostAB) * l.unit
}

func (l *Link) peer(from state.NodeId) (*Node, state.Port) {
	if from == l.Cfg.B {
		return l.a, l.Cfg.PortA
	}
	return l.b, l.Cfg.PortB
}

// Attach tells both endpoints about the link.
func (l *Link) Attach() {
	l.a.Dispatch(func(n *Node) error {
		n.attach(l.Cfg.PortA, l, l.Cfg.B, l.Cfg.CostAB)
		return nil
	})
	l.b.Dispatch(func(n *Node) error {
		n.attach(l.Cfg.PortB, l, l.Cfg.A, l.Cfg.CostBA)
		return nil
	})
}

// Detach tells both endpoints the link is gone. The link should be closed first.
func (l *Link) Detach() {
	l.a.Dispatch(func(n *Node) error {
		n.detach(l.Cfg.PortA, l)
		return nil
	})
	l.b.Dispatch(func(n *Node) error {
		n.detach(l.Cfg.PortB, l)
		return nil
	})
}

// Transmit encodes msg and schedules its delivery to the other endpoint.
// Messages sent on a closed link are dropped without being reported as sent.
func (l *Link) Transmit(from state.NodeId, msg state.Message) {
	buf, err := protocol.Marshal(msg)
	if err != nil {
		l.logger.Error("failed to encode message", "msg", msg, "error", err)
		return
	}
	to, port := l.peer(from)
	delay := l.Latency(from)

	l.mu.Lock()
	if l.down {
		l.mu.Unlock()
		perf.DroppedPerSecond.Add(1)
		return
	}
	id := l.nextId
	l.nextId++
	l.inflight.Add(1)
	l.pending[id] = time.AfterFunc(delay, func() {
		l.deliver(id, to, port, buf)
	})
	l.mu.Unlock()

	perf.MessagesPerSecond.Add(1)
	perf.BytesPerSecond.Add(float64(len(buf)))
	perf.MessageSize.Add(float64(len(buf)))
	if msg.IsRouting() {
		perf.RoutingPerSecond.Add(1)
	} else {
		perf.ProbesPerSecond.Add(1)
	}
	l.events.Emit(Event{
		Kind:    MessageSent,
		At:      time.Now(),
		From:    from,
		To:      to.Id,
		Message: msg,
		Latency: delay,
	})
}

func (l *Link) deliver(id uint64, to *Node, port state.Port, buf []byte) {
	defer l.inflight.Done()
	l.mu.Lock()
	_, ok := l.pending[id]
	delete(l.pending, id)
	l.mu.Unlock()
	if !ok {
		return // dropped by Close
	}

	msg, err := protocol.Unmarshal(buf)
	if err != nil {
		to.Log(MalformedUpdate, "discarded message", "port", port, "error", err)
		return
	}
	if msg.IsTraceroute() {
		msg = msg.WithHop(to.Id)
	}
	to.Dispatch(func(n *Node) error {
		n.receive(port, l, msg)
		return nil
	})
}

// Close drops every message still in flight and returns how many were dropped.
// Subsequent transmissions are discarded.
func (l *Link) Close() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.down = true
	dropped := 0
	for id, t := range l.pending {
		if t.Stop() {
			l.inflight.Done()
		}
		delete(l.pending, id)
		dropped++
	}
	perf.DroppedPerSecond.Add(float64(dropped))
	return dropped
}
