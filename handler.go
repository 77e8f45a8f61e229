package bgpio

// Handler is the FSM-facing collaborator that owns protocol state, the
// transition table, and timer logic. The connection core never decides to
// close or retry on its own; it raises events through this interface and
// leaves all termination decisions to the implementation.
//
// All methods are invoked on the engine goroutine.
type Handler interface {
	// OnError reports a fatal connection error. err is io.EOF for a clean
	// peer shutdown, a *FramingError for a message header violation, or the
	// originating system error for a failed read or write.
	OnError(c *Connection, err error)

	// OnEvent reports a named lifecycle event.
	OnEvent(c *Connection, event Event)

	// OnMessage hands over a fully framed inbound message, still resident in
	// the connection's input buffer. The implementation must consume it, via
	// Message, before returning.
	OnMessage(c *Connection)
}

// Event is a lifecycle event raised into the FSM.
type Event uint8

const (
	EventNone Event = iota

	// EventNotificationSent fires when a final NOTIFICATION queued with
	// QueueNotification has been flushed all the way to the socket.
	EventNotificationSent
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventNotificationSent:
		return "notification-sent"
	default:
		return "unknown"
	}
}

// State is the FSM state tag carried on a connection. The connection core
// treats it as opaque except for the terminal StateStopping, which marks the
// connection for reaping by the scheduler's drain pass.
type State uint8

const (
	StateInitial State = iota
	StateIdle
	StateConnect
	StateActive
	StateOpenSent
	StateOpenConfirm
	StateEstablished
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateIdle:
		return "idle"
	case StateConnect:
		return "connect"
	case StateActive:
		return "active"
	case StateOpenSent:
		return "openSent"
	case StateOpenConfirm:
		return "openConfirm"
	case StateEstablished:
		return "established"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// StopCause records why a connection was taken down.
type StopCause uint8

const (
	StopNone StopCause = iota
	StopCollision
	StopError
	StopAdmin
)

// Ordinal identifies which of a session's at most two simultaneous
// connections this is: the outbound-initiated primary or the
// inbound-accepted secondary. Exactly one survives past session
// establishment.
type Ordinal uint8

const (
	Primary   Ordinal = 0
	Secondary Ordinal = 1
)

// sibling returns the other ordinal.
func (o Ordinal) sibling() Ordinal { return o ^ 1 }

func (o Ordinal) tag() string {
	if o == Secondary {
		return " (secondary)"
	}
	return " (primary)"
}
