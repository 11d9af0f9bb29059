package core

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/encodeous/routesim/state"
	"github.com/google/go-cmp/cmp"
)

// RouterHarness records everything a protocol asks its router to do.
// Sends and logs are kept apart, so draining one never loses the other.
type RouterHarness struct {
	sends []string
	logs  []LoggedEvent
	// OnSend, if set, is called before a send is recorded
	OnSend func(port state.Port, msg state.Message)
}

type LoggedEvent struct {
	Event RouterEvent
	Desc  string
	Args  []any
}

func (h *RouterHarness) Send(port state.Port, msg state.Message) {
	if h.OnSend != nil {
		h.OnSend(port, msg)
	}
	switch p := msg.Payload.(type) {
	case state.RouteUpdate:
		h.sends = append(h.sends, fmt.Sprint("UPDATE_ROUTE ", port, " ", p.Dst, " ", p.Cost))
	case state.LinkStateRecord:
		h.sends = append(h.sends, fmt.Sprint("LINK_STATE ", port, " ", p.Owner, " ", p.Seqno))
	case state.Probe:
		h.sends = append(h.sends, fmt.Sprint("PROBE ", port, " ", msg.Dst))
	}
}

func (h *RouterHarness) Log(event RouterEvent, desc string, args ...any) {
	h.logs = append(h.logs, LoggedEvent{Event: event, Desc: desc, Args: args})
}

type Sends []string

// String renders the sends sorted, one per line.
func (s Sends) String() string {
	out := slices.Clone(s)
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetActions returns and clears the recorded sends.
func (h *RouterHarness) GetActions() Sends {
	x := h.sends
	h.sends = nil
	return x
}

type Logs []LoggedEvent

// GetLogs returns and clears the logged router events.
func (h *RouterHarness) GetLogs() Logs {
	x := h.logs
	h.logs = nil
	return x
}

// AssertContains checks that event was logged, with args as a prefix of its arguments.
func (l Logs) AssertContains(t *testing.T, event RouterEvent, args ...any) {
	t.Helper()
	for _, e := range l {
		if e.Event == event && len(e.Args) >= len(args) && (len(args) == 0 || cmp.Equal(e.Args[:len(args)], args)) {
			return
		}
	}
	t.Fatalf("expected %s %v in logs: %v", event, args, l)
}

func (h *RouterHarness) Advertise(s *state.DVState, src, dst state.NodeId, cost uint32) {
	HandleRouteUpdate(s, h, state.RouteUpdate{Src: src, Dst: dst, Cost: cost})
}
