package core

import (
	"fmt"
	"time"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/routesim/state"
)

type EventKind int

const (
	MessageSent EventKind = iota
	RouteObserved
	LinkChanged
)

func (k EventKind) String() string {
	switch k {
	case MessageSent:
		return "MessageSent"
	case RouteObserved:
		return "RouteObserved"
	case LinkChanged:
		return "LinkChanged"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is published for anything a visualizer might want to draw.
type Event struct {
	Kind EventKind
	At   time.Time

	// MessageSent
	From, To state.NodeId
	Message  state.Message
	Latency  time.Duration

	// RouteObserved
	Observation state.RouteObservation

	// LinkChanged
	Change state.ChangeCfg
}

func (e Event) String() string {
	switch e.Kind {
	case MessageSent:
		return fmt.Sprintf("%s %s -> %s (%s) %s", e.Kind, e.From, e.To, e.Latency, e.Message)
	case RouteObserved:
		return fmt.Sprintf("%s %s", e.Kind, e.Observation)
	default:
		return fmt.Sprintf("%s %s %v", e.Kind, e.Change.Kind, e.Change.Link.Edge())
	}
}

// Events fans simulator events out to subscribers. Publishing never blocks, events are
// dropped when subscribers fall behind.
type Events struct {
	broadcast.Broadcaster
}

func NewEvents() *Events {
	return &Events{Broadcaster: broadcast.NewBroadcaster(state.EventBuffer)}
}

func (e *Events) Emit(ev Event) {
	if e == nil {
		return
	}
	e.TrySubmit(ev)
}

// Subscribe registers a new listener. The returned function unregisters it,
// draining the channel while doing so.
func (e *Events) Subscribe(buf int) (<-chan any, func()) {
	ch := make(chan any, buf)
	e.Register(ch)
	return ch, func() {
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-ch:
				case <-done:
					return
				}
			}
		}()
		e.Unregister(ch)
		close(done)
	}
}
