package lineage

// EventType distinguishes the messages a session publishes to its host.
type EventType string

const (
	// EventGraphUpdated carries a freshly recomputed view.
	EventGraphUpdated EventType = "graph_updated"
	// EventExpandFailed signals that an expand fetch returned no data.
	// The view still reflects whatever was already in the working set.
	EventExpandFailed EventType = "expand_failed"
	// EventSessionClosed signals session teardown.
	EventSessionClosed EventType = "session_closed"
)

// Event is one message from a session to its host surface.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	View      *View     `json:"view,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Transport is the capability a session uses to reach its host surface
// (terminal UI, HTTP client, …). It is injected per session rather than
// looked up from ambient global state.
type Transport interface {
	Send(Event)
}

// TransportFunc adapts a plain function to the Transport interface.
type TransportFunc func(Event)

// Send implements Transport.
func (f TransportFunc) Send(e Event) { f(e) }

// ChannelTransport delivers events over a buffered channel. Sends never
// block: when the buffer is full the oldest pending event is dropped, since
// every EventGraphUpdated supersedes the previous one anyway.
type ChannelTransport struct {
	ch chan Event
}

// NewChannelTransport creates a transport with the given buffer size.
// A size below 1 is raised to 1.
func NewChannelTransport(size int) *ChannelTransport {
	return &ChannelTransport{ch: make(chan Event, max(size, 1))}
}

// Send implements Transport.
func (t *ChannelTransport) Send(e Event) {
	for {
		select {
		case t.ch <- e:
			return
		default:
			select {
			case <-t.ch: // drop oldest
			default:
			}
		}
	}
}

// Events returns the receive side of the transport.
func (t *ChannelTransport) Events() <-chan Event { return t.ch }
