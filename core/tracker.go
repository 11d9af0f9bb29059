package core

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/encodeous/routesim/perf"
	"github.com/encodeous/routesim/state"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
)

// RouteTracker keeps the newest observed route for every (source, destination) pair.
// Clients report into it concurrently.
type RouteTracker struct {
	RunId   uuid.UUID
	correct map[state.Pair[state.NodeId, state.NodeId]][][]state.NodeId
	events  *Events

	mu     sync.Mutex
	routes map[state.Pair[state.NodeId, state.NodeId]]state.RouteObservation
}

func NewRouteTracker(cfg *state.TopologyCfg, events *Events) *RouteTracker {
	return &RouteTracker{
		RunId:   uuid.New(),
		correct: cfg.GetCorrectRoutes(),
		events:  events,
		routes:  make(map[state.Pair[state.NodeId, state.NodeId]]state.RouteObservation),
	}
}

// ReportRoute implements Reporter. Reports older than the stored observation are ignored.
func (t *RouteTracker) ReportRoute(src, dst state.NodeId, route []state.NodeId, sentAt time.Time) {
	key := state.Pair[state.NodeId, state.NodeId]{V1: src, V2: dst}
	obs := state.RouteObservation{
		Src:       src,
		Dst:       dst,
		Route:     slices.Clone(route),
		Correct:   t.isCorrect(key, route),
		Timestamp: sentAt,
	}
	t.mu.Lock()
	if old, ok := t.routes[key]; ok && !sentAt.After(old.Timestamp) {
		t.mu.Unlock()
		return
	}
	t.routes[key] = obs
	t.mu.Unlock()

	if len(route) != 0 {
		perf.ProbesDeliveredCounter.Add(1)
	}
	t.events.Emit(Event{Kind: RouteObserved, At: time.Now(), Observation: obs})
}

func (t *RouteTracker) isCorrect(key state.Pair[state.NodeId, state.NodeId], route []state.NodeId) bool {
	if len(route) == 0 {
		return false
	}
	return slices.ContainsFunc(t.correct[key], func(r []state.NodeId) bool {
		return state.SameRoute(r, route)
	})
}

// Reset forgets every observation.
func (t *RouteTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.routes)
}

// Routes returns every observation ordered by source then destination.
func (t *RouteTracker) Routes() []state.RouteObservation {
	t.mu.Lock()
	obs := slices.Collect(maps.Values(t.routes))
	t.mu.Unlock()
	slices.SortFunc(obs, func(a, b state.RouteObservation) int {
		if c := cmp.Compare(a.Src, b.Src); c != 0 {
			return c
		}
		return cmp.Compare(a.Dst, b.Dst)
	})
	return obs
}

// AllCorrect reports whether every observation is correct. An empty tracker is not correct.
func (t *RouteTracker) AllCorrect() bool {
	return allCorrect(t.Routes())
}

func allCorrect(routes []state.RouteObservation) bool {
	if len(routes) == 0 {
		return false
	}
	for _, r := range routes {
		if !r.Correct {
			return false
		}
	}
	return true
}

// String renders one line per observation followed by the verdict.
func (t *RouteTracker) String() string {
	routes := t.Routes()
	lines := make([]string, 0, len(routes))
	for _, r := range routes {
		line := fmt.Sprintf("%s -> %s: %s", r.Src, r.Dst, formatRoute(r.Route))
		if !r.Correct {
			line += " Incorrect Route"
		}
		lines = append(lines, line)
	}
	slices.Sort(lines)
	sb := strings.Builder{}
	sb.WriteString(strings.Join(lines, "\n"))
	if allCorrect(routes) {
		sb.WriteString("\nSUCCESS: All Routes correct!")
	} else {
		sb.WriteString("\nFAILURE: Not all routes are correct")
	}
	return sb.String()
}

func formatRoute(route []state.NodeId) string {
	hops := make([]string, len(route))
	for i, h := range route {
		hops[i] = fmt.Sprintf("'%s'", h)
	}
	return "[" + strings.Join(hops, ", ") + "]"
}

func (t *RouteTracker) Snapshot() state.RouteSnapshot {
	routes := t.Routes()
	return state.RouteSnapshot{
		RunId:      t.RunId,
		TakenAt:    time.Now(),
		AllCorrect: allCorrect(routes),
		Routes:     routes,
	}
}

// MarshalSnapshot encodes the current snapshot as YAML, or JSON if asJSON is set.
func (t *RouteTracker) MarshalSnapshot(asJSON bool) ([]byte, error) {
	snap := t.Snapshot()
	var opts []yaml.EncodeOption
	if asJSON {
		opts = append(opts, yaml.JSON())
	}
	return yaml.MarshalWithOptions(snap, opts...)
}
