package channel

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventKind classifies observational notifications emitted by a channel.
type EventKind int

const (
	// EventUnresponsive fires when an exchange has been pending longer than
	// the unresponsiveness timeout. It does not cancel anything.
	EventUnresponsive EventKind = iota
	// EventResponsive fires when a previously unresponsive exchange finally
	// completes.
	EventResponsive
	// EventProgress fires after each chunk of a load-style operation, with
	// the number of bytes just transferred.
	EventProgress
	// EventDisconnect fires when the underlying transport reports the device
	// gone.
	EventDisconnect
)

func (k EventKind) String() string {
	switch k {
	case EventUnresponsive:
		return "unresponsive"
	case EventResponsive:
		return "responsive"
	case EventProgress:
		return "progress"
	case EventDisconnect:
		return "disconnect"
	}
	return "unknown"
}

// Event is one observational notification.
type Event struct {
	Kind  EventKind
	Bytes int // EventProgress only
	Err   error
}

// Notifier is an explicitly owned observer registry. It replaces any global
// subscriber state: components that emit events receive a Notifier at
// construction time.
type Notifier struct {
	mu   sync.Mutex
	subs map[uuid.UUID]chan Event
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[uuid.UUID]chan Event)}
}

// Register adds a subscriber and returns its id and receive channel. The
// channel is buffered; events are dropped, not blocked on, when a subscriber
// falls behind.
func (n *Notifier) Register(buffer int) (uuid.UUID, <-chan Event) {
	if buffer <= 0 {
		buffer = 16
	}
	id := uuid.New()
	ch := make(chan Event, buffer)

	n.mu.Lock()
	n.subs[id] = ch
	n.mu.Unlock()

	return id, ch
}

// Unregister removes a subscriber and closes its channel.
func (n *Notifier) Unregister(id uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if ch, ok := n.subs[id]; ok {
		delete(n.subs, id)
		close(ch)
	}
}

// Notify broadcasts an event to every registered subscriber. Safe to call on
// a nil Notifier.
func (n *Notifier) Notify(ev Event) {
	if n == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for id, ch := range n.subs {
		select {
		case ch <- ev:
		default:
			log.Trace().Msgf("channel: dropping %s event for slow subscriber %s", ev.Kind, id)
		}
	}
}
