package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/encodeous/routesim/state"
	"golang.org/x/sync/errgroup"
)

type Variant int

const (
	DistanceVector Variant = iota
	LinkState
)

func (v Variant) String() string {
	switch v {
	case DistanceVector:
		return "DV"
	case LinkState:
		return "LS"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

var errStopped = errors.New("simulation stopped")

// Simulator owns the nodes, the link set and the route tracker of a single run.
type Simulator struct {
	Cfg     state.TopologyCfg
	Variant Variant
	Log     *slog.Logger
	Events  *Events
	Tracker *RouteTracker

	nodes   map[state.NodeId]*Node
	links   map[state.Pair[state.NodeId, state.NodeId]]*Link
	changes *state.ChangeQueue

	ctx      context.Context
	cancel   context.CancelCauseFunc
	group    *errgroup.Group
	inflight sync.WaitGroup
	start    time.Time
	started  atomic.Bool
	stopped  atomic.Bool
}

// NewSimulator validates cfg and prepares a simulation. Nothing runs until Start.
func NewSimulator(cfg state.TopologyCfg, variant Variant, logger *slog.Logger) (*Simulator, error) {
	if err := state.TopologyValidator(&cfg); err != nil {
		return nil, err
	}
	events := NewEvents()
	return &Simulator{
		Cfg:     cfg,
		Variant: variant,
		Log:     logger,
		Events:  events,
		Tracker: NewRouteTracker(&cfg, events),
		nodes:   make(map[state.NodeId]*Node),
		links:   make(map[state.Pair[state.NodeId, state.NodeId]]*Link),
		changes: state.NewChangeQueue(cfg.Changes),
	}, nil
}

// Start creates every node and link and starts the node goroutines and the change scheduler.
func (s *Simulator) Start(ctx context.Context) error {
	if s.stopped.Load() {
		return errStopped
	}
	if s.started.Swap(true) {
		return errors.New("simulation already started")
	}
	s.ctx, s.cancel = context.WithCancelCause(ctx)
	group, gctx := errgroup.WithContext(s.ctx)
	s.group = group

	unit := s.Cfg.Unit()
	heartbeat := s.Cfg.Scaled(state.HeartbeatUnits)
	sendInterval := s.Cfg.Scaled(s.Cfg.ClientSendRate)
	probeExpiry := s.Cfg.Scaled(state.ProbeExpiryUnits * s.Cfg.ClientSendRate)

	for _, id := range s.Cfg.Routers {
		n := NewNode(s.ctx, id, unit, s.Log)
		switch s.Variant {
		case LinkState:
			n.Proto = NewLSRouter(id, n, heartbeat)
		default:
			n.Proto = NewDVRouter(id, n, heartbeat)
		}
		s.nodes[id] = n
	}
	for _, c := range s.Cfg.Clients {
		n := NewNode(s.ctx, c.Id, unit, s.Log)
		n.Proto = NewClient(c.Id, n, s.Cfg.GetDestinations(c), sendInterval, probeExpiry, s.Tracker)
		s.nodes[c.Id] = n
	}

	s.start = time.Now()
	for _, n := range s.nodes {
		group.Go(n.MainLoop)
	}
	for _, l := range s.Cfg.Links {
		s.addLink(l)
	}
	for _, c := range s.Cfg.Clients {
		if !slices.ContainsFunc(s.Cfg.Links, func(l state.LinkCfg) bool {
			return l.A == c.Id || l.B == c.Id
		}) {
			s.Log.Warn("client has no link", "client", c.Id)
		}
	}
	s.Log.Info("simulation started", "variant", s.Variant, "nodes", len(s.nodes), "links", len(s.links), "changes", s.changes.Len())
	group.Go(func() error {
		return s.handleChanges(gctx)
	})
	return nil
}

// Elapsed returns the wall time since Start.
func (s *Simulator) Elapsed() time.Duration {
	return time.Since(s.start)
}

// WaitEnd blocks until the configured end time has elapsed.
func (s *Simulator) WaitEnd(ctx context.Context) error {
	return sleep(ctx, time.Until(s.start.Add(s.Cfg.Scaled(s.Cfg.EndTime))))
}

// FinalRoutes forgets all observations, has every client probe once more and waits
// for the probes to land.
func (s *Simulator) FinalRoutes(ctx context.Context) error {
	s.Log.Info("running final probe round")
	s.Tracker.Reset()
	for _, c := range s.Cfg.Clients {
		s.nodes[c.Id].Dispatch(func(n *Node) error {
			n.Proto.(*Client).SendProbes(time.Now())
			return nil
		})
	}
	return sleep(ctx, s.Cfg.Scaled(state.FinalRoundUnits*s.Cfg.ClientSendRate))
}

// Run executes the whole simulation and stops it. The result is available from Tracker afterward.
func (s *Simulator) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()
	if err := s.WaitEnd(ctx); err != nil {
		return err
	}
	return s.FinalRoutes(ctx)
}

// Stop cancels every goroutine, drops all in-flight messages and waits for everything to exit.
// A simulator that was never started only releases its event broadcaster.
func (s *Simulator) Stop() {
	if s.stopped.Swap(true) {
		return // don't stop twice
	}
	if !s.started.Load() {
		if err := s.Events.Close(); err != nil {
			s.Log.Error("failed to close events", "error", err)
		}
		return
	}
	s.cancel(errStopped)
	if err := s.group.Wait(); err != nil {
		s.Log.Error("error occurred during simulation", "error", err)
	}
	dropped := 0
	for _, l := range s.links {
		dropped += l.Close()
	}
	s.inflight.Wait()
	if err := s.Events.Close(); err != nil {
		s.Log.Error("failed to close events", "error", err)
	}
	s.Log.Info("simulation stopped", "elapsed", s.Elapsed(), "dropped", dropped)
}

// Inspect returns the forwarding dump of a node. The simulation must be running.
func (s *Simulator) Inspect(id state.NodeId) (string, error) {
	n, ok := s.nodes[id]
	if !ok {
		return "", fmt.Errorf("node %s: %w", id, state.ErrUnknownDestination)
	}
	res, err := n.DispatchWait(func(n *Node) (any, error) {
		return n.Proto.Inspect(), nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// RouteString renders the observed routes and the verdict.
func (s *Simulator) RouteString() string {
	return s.Tracker.String()
}

func (s *Simulator) Routes() state.RouteSnapshot {
	return s.Tracker.Snapshot()
}

func (s *Simulator) Snapshot(asJSON bool) ([]byte, error) {
	return s.Tracker.MarshalSnapshot(asJSON)
}

func (s *Simulator) handleChanges(ctx context.Context) error {
	for {
		c, ok := s.changes.Next()
		if !ok {
			return nil
		}
		if err := sleep(ctx, time.Until(s.start.Add(s.Cfg.Scaled(c.Time)))); err != nil {
			return nil
		}
		if err := s.applyChange(c.ChangeCfg); err != nil {
			s.Log.Warn("ignored topology change", "time", c.Time, "kind", c.Kind, "link", c.Link.Edge(), "error", err)
		}
	}
}

func (s *Simulator) applyChange(c state.ChangeCfg) error {
	edge := c.Link.Edge()
	switch c.Kind {
	case state.LinkUp:
		if _, ok := s.links[edge]; ok {
			return fmt.Errorf("link %s, %s is already up: %w", edge.V1, edge.V2, state.ErrInconsistentChange)
		}
		s.addLink(c.Link)
	case state.LinkDown:
		link, ok := s.links[edge]
		if !ok {
			return fmt.Errorf("link %s, %s does not exist: %w", edge.V1, edge.V2, state.ErrInconsistentChange)
		}
		delete(s.links, edge)
		dropped := link.Close()
		link.Detach()
		s.Log.Debug("dropped in-flight messages", "link", edge, "count", dropped)
	default:
		return fmt.Errorf("unknown change kind %q: %w", c.Kind, state.ErrInconsistentChange)
	}
	s.Log.Info("applied topology change", "kind", c.Kind, "link", edge)
	s.Events.Emit(Event{Kind: LinkChanged, At: time.Now(), Change: c})
	return nil
}

func (s *Simulator) addLink(cfg state.LinkCfg) {
	link := NewLink(cfg, s.Cfg.Unit(), s.nodes[cfg.A], s.nodes[cfg.B], &s.inflight, s.Events, s.Log)
	s.links[cfg.Edge()] = link
	link.Attach()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
