package core

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/encodeous/routesim/state"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// Reporter receives the route a probe took. An empty route means the probe was lost.
type Reporter interface {
	ReportRoute(src, dst state.NodeId, route []state.NodeId, sentAt time.Time)
}

type pendingProbe struct {
	Dst    state.NodeId
	SentAt time.Time
}

// Client periodically sends trace probes to its destinations and reports where they went.
type Client struct {
	Id           state.NodeId
	Destinations []state.NodeId
	SendInterval time.Duration
	Router

	reporter Reporter
	ports    []state.Port
	lastSend time.Time
	pending  *ttlcache.Cache[uuid.UUID, pendingProbe]
	unsub    func()

	// filled by the eviction handler, which may run on another goroutine
	expiredMu sync.Mutex
	expired   []pendingProbe
}

func NewClient(id state.NodeId, r Router, dsts []state.NodeId, sendInterval, probeExpiry time.Duration, reporter Reporter) *Client {
	c := &Client{
		Id:           id,
		Destinations: dsts,
		SendInterval: sendInterval,
		Router:       r,
		reporter:     reporter,
		pending: ttlcache.New[uuid.UUID, pendingProbe](
			ttlcache.WithTTL[uuid.UUID, pendingProbe](probeExpiry),
			ttlcache.WithDisableTouchOnHit[uuid.UUID, pendingProbe](),
		),
	}
	c.unsub = c.pending.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[uuid.UUID, pendingProbe]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		c.expiredMu.Lock()
		c.expired = append(c.expired, item.Value())
		c.expiredMu.Unlock()
	})
	return c
}

func (c *Client) HandleMessage(port state.Port, msg state.Message) {
	probe, ok := msg.Payload.(state.Probe)
	if !ok || msg.Dst != c.Id {
		return // clients do not route
	}
	c.pending.Delete(probe.Id)
	c.reporter.ReportRoute(msg.Src, msg.Dst, msg.Route, probe.SentAt)
}

func (c *Client) HandleNewLink(port state.Port, endpoint state.NodeId, cost uint32) {
	if !slices.Contains(c.ports, port) {
		c.ports = append(c.ports, port)
		slices.Sort(c.ports)
	}
}

func (c *Client) HandleRemoveLink(port state.Port) {
	c.ports = slices.DeleteFunc(c.ports, func(p state.Port) bool {
		return p == port
	})
}

func (c *Client) HandleTime(now time.Time) {
	c.pending.DeleteExpired()
	c.expiredMu.Lock()
	expired := c.expired
	c.expired = nil
	c.expiredMu.Unlock()
	for _, p := range expired {
		c.Log(ProbeExpired, "probe was not delivered", "dst", p.Dst, "sent", p.SentAt)
		c.reporter.ReportRoute(c.Id, p.Dst, nil, p.SentAt)
	}

	if c.lastSend.IsZero() || now.Sub(c.lastSend) >= c.SendInterval {
		c.SendProbes(now)
	}
}

// SendProbes emits one probe to every destination.
func (c *Client) SendProbes(now time.Time) {
	c.lastSend = now
	if len(c.ports) == 0 {
		c.Log(InconsistentState, "client has no link", "client", c.Id)
		return
	}
	for _, dst := range c.Destinations {
		probe := state.Probe{Id: uuid.New(), SentAt: now}
		c.pending.Set(probe.Id, pendingProbe{Dst: dst, SentAt: now}, ttlcache.DefaultTTL)
		c.Send(c.ports[0], state.NewProbe(c.Id, dst, probe))
	}
}

func (c *Client) Inspect() string {
	return fmt.Sprintf("client %s -> %v, %d probes in flight", c.Id, c.Destinations, c.pending.Len())
}

// Close stops the eviction handler and waits for it to finish.
func (c *Client) Close() error {
	c.unsub()
	return nil
}
