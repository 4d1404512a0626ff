package canvas

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event kinds pushed to the editor stream.
const (
	EventNodeCreated = "node_created"
	EventNodeUpdated = "node_updated"
	EventNodeDeleted = "node_deleted"
	EventEdgeAdded   = "edge_added"
	EventEdgeRemoved = "edge_removed"
	EventPlanApplied = "plan_applied"
	EventOutput      = "output"
	EventOrphan      = "orphan"
)

// maxRecentEvents bounds the replayable tail of the feed.
const maxRecentEvents = 100

// Event is one canvas change notification.
type Event struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	NodeID  string    `json:"nodeId,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// eventFeed is a bounded in-process event log with live subscriptions. It
// has its own lock so publishers outside the store transaction (watcher,
// runner) never contend with canvas operations.
type eventFeed struct {
	mu      sync.Mutex
	recent  []Event
	subs    map[int]chan Event
	nextSub int
}

func newEventFeed() *eventFeed {
	return &eventFeed{subs: map[int]chan Event{}}
}

func (f *eventFeed) publish(kind, nodeID, message string) Event {
	evt := Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		NodeID:  nodeID,
		Message: message,
		At:      time.Now().UTC(),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recent = append(f.recent, evt)
	if len(f.recent) > maxRecentEvents {
		f.recent = f.recent[len(f.recent)-maxRecentEvents:]
	}
	for _, ch := range f.subs {
		select {
		case ch <- evt:
		default:
			// Slow subscribers lose events rather than block the canvas.
		}
	}
	return evt
}

func (f *eventFeed) recentEvents() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.recent...)
}

// subscribe registers a live listener. The returned cancel func must be
// called exactly once; it closes the channel.
func (f *eventFeed) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}
