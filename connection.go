package bgpio

import (
	"net/netip"
	"time"

	"go.uber.org/zap"
)

// Connection owns one TCP connection to a peer: the socket, the message
// staging buffers, the write buffer, the pending-send queue, and the
// continuation state the read and write drivers persist between readiness
// signals. It is private to the engine goroutine and needs no locking of its
// own; only the parent Session is shared, and only under its lock.
//
// Each session has at most two connections while it is starting up, one
// outbound-initiated and one inbound-accepted; one of them is discarded
// before the session establishes.
type Connection struct {
	session *Session
	engine  *Engine
	handler Handler

	ordinal  Ordinal
	accepted bool

	sock Socket // nil when closed

	// FSM-facing state
	state State
	post  Event
	ioErr error
	stop  StopCause

	ibuf  *stream
	obuf  *stream
	wbuff wbuffer

	pending pendingQueue
	node    queueNode

	// read continuation state
	readPending int
	readHeader  bool

	notificationPending bool

	// current readiness interest
	wantRead  bool
	wantWrite bool

	holdTimerInterval      time.Duration
	keepaliveTimerInterval time.Duration
	holdTimer              *time.Timer
	keepaliveTimer         *time.Timer

	localAddr  netip.AddrPort
	remoteAddr netip.AddrPort

	openRecv         *OpenRecord
	notificationSent *Notification
	notificationRecv *Notification

	// host and log are full copies derived from the session's, with a
	// connection-role suffix, so the connection remains diagnosable even
	// after the session is gone.
	host string
	log  *zap.Logger
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return t
}

// NewConnection initialises a connection record for the given session slot,
// allocating one if c is nil and otherwise resetting the previously-used
// record. It links the connection and session bidirectionally, derives the
// diagnostic identity, and leaves the connection ready for Open.
//
// Acquires and releases the session lock itself.
func NewConnection(c *Connection, s *Session, ord Ordinal) *Connection {
	if ord != Primary && ord != Secondary {
		panic("bgpio: bad connection ordinal")
	}

	lk := s.Acquire()
	defer lk.Release()

	if s.connections[ord] != nil {
		panic("bgpio: connection slot occupied")
	}

	if c == nil {
		c = &Connection{}
	} else {
		*c = Connection{}
	}

	// Every field is set explicitly; the zero value of the remainder is the
	// documented default: StateInitial, no post event, no error, StopNone,
	// unlinked queue node, no continuation state, empty unallocated write
	// buffer.
	c.session = s
	c.engine = s.engine
	c.handler = s.handler
	c.ordinal = ord
	c.accepted = ord == Secondary

	s.connections[ord] = c

	c.holdTimer = newStoppedTimer()
	c.keepaliveTimer = newStoppedTimer()

	c.initHost(ord.tag())

	c.ibuf = newStream(maxMessageLength)
	c.obuf = newStream(maxMessageLength)

	c.pending.init()

	return c
}

// initHost derives the connection's display name and logger from the
// session's, plus the given role tag. Requires the session to be locked.
func (c *Connection) initHost(tag string) {
	c.host = c.session.host + tag
	c.log = c.session.log.With(zap.String("host", c.host))
}

// Sibling returns the other ordinal's connection for the same session, or
// nil if the session is gone or the slot is empty.
func (c *Connection) Sibling(lk SessionLock) *Connection {
	if c.session == nil {
		return nil
	}
	lk.holds(c.session)
	return c.session.connections[c.ordinal.sibling()]
}

// MakePrimary renumbers the surviving connection to the primary ordinal and
// migrates its negotiated state to session ownership. It is invoked when the
// sibling connection has lost the startup race and is being discarded, and
// expects this connection to be the only one remaining.
func (c *Connection) MakePrimary(lk SessionLock) {
	s := c.session
	lk.holds(s)

	if c.ordinal != Primary {
		c.ordinal = Primary
		s.connections[Primary] = c
	}
	s.connections[Secondary] = nil

	s.openRecv = c.openRecv
	c.openRecv = nil

	// Drop the role suffix from the diagnostic identity.
	c.initHost("")

	s.holdTimerInterval = c.holdTimerInterval
	s.keepaliveTimerInterval = c.keepaliveTimerInterval

	s.localAddr = c.localAddr
	c.localAddr = netip.AddrPort{}
	s.remoteAddr = c.remoteAddr
	c.remoteAddr = netip.AddrPort{}
}

// Open binds the socket into the readiness facility and readies the
// connection for I/O. The connection must be newly created or recently
// closed. Clears the error, stop and post flags, discards any previously
// received OPEN state or NOTIFICATION, and copies the session's current
// hold and keepalive intervals as the connection's working values. Does not
// touch the FSM state tag.
func (c *Connection) Open(lk SessionLock, sock Socket) error {
	s := c.session
	lk.holds(s)

	// A second connection means both a connect and a listen attempt are in
	// flight; take no more inbound attempts.
	if c.ordinal == Secondary {
		s.accept = false
	}

	if err := c.engine.register(c, sock); err != nil {
		return err
	}
	c.sock = sock
	c.wantRead = true
	c.wantWrite = false

	c.post = EventNone
	c.ioErr = nil
	c.stop = StopNone

	c.openRecv = nil
	c.notificationSent = nil
	c.notificationRecv = nil

	c.localAddr = sock.LocalAddr()
	c.remoteAddr = sock.RemoteAddr()

	// Working values; may change during the exchange of OPEN messages.
	c.holdTimerInterval = s.holdTimerInterval
	c.keepaliveTimerInterval = s.keepaliveTimerInterval

	return nil
}

// Close releases the socket and resets all buffering, leaving the
// connection ready to be reopened, closed again, or freed. The FSM state
// tag, session links, timer structures (unset), buffers (reset), diagnostic
// identity, received OPEN state, notification records, and stop cause all
// survive.
func (c *Connection) Close(lk SessionLock) {
	lk.holds(c.session)
	c.closeNow()
}

func (c *Connection) closeNow() {
	if c.sock != nil {
		c.engine.deregister(c)
		if err := c.sock.Shutdown(); err != nil {
			c.log.Debug("socket shutdown", zap.Error(err))
		}
		if err := c.sock.Close(); err != nil {
			c.log.Debug("socket close", zap.Error(err))
		}
		c.sock = nil
	}
	c.wantRead = false
	c.wantWrite = false

	c.localAddr = netip.AddrPort{}
	c.remoteAddr = netip.AddrPort{}

	c.holdTimer.Stop()
	c.keepaliveTimer.Stop()

	c.ibuf.reset()
	c.obuf.reset()
	c.wbuff.reset() // cursors only; buffer memory is retained

	c.readPending = 0
	c.readHeader = false
	c.notificationPending = false

	c.pending.clear()
}

// PartClose shuts down only the read half and purges output down to at most
// one partially-sent message, guaranteeing the write buffer is not full so a
// final NOTIFICATION can still be staged and flushed. No further input is
// accepted; everything else is left untouched.
func (c *Connection) PartClose(lk SessionLock) {
	lk.holds(c.session)

	if c.sock != nil {
		if err := c.sock.ShutdownRead(); err != nil {
			c.log.Debug("socket read shutdown", zap.Error(err))
		}
		c.wantRead = false
		c.engine.updateInterest(c)
	}

	// Reset all input buffering.
	c.ibuf.reset()
	c.readPending = 0
	c.readHeader = false

	c.obuf.reset()
	c.notificationPending = false

	// The write buffer contains only complete messages plus, possibly, the
	// sent head of one; keep just its unsent remainder.
	c.wbuff.retainPartial()

	c.pending.clear()
}

// Free releases all connection resources. The connection must be in the
// terminal stopping state and already detached from its session.
func (c *Connection) Free() {
	if c.state != StateStopping {
		panic("bgpio: freeing connection that is not stopping")
	}
	if c.session != nil {
		panic("bgpio: freeing connection still attached to session")
	}
	c.closeNow()
	c.holdTimer = nil
	c.keepaliveTimer = nil
	c.ibuf = nil
	c.obuf = nil
	c.wbuff.buf = nil
	c.openRecv = nil
	c.notificationSent = nil
	c.notificationRecv = nil
}

// QueueNotification part-closes the connection and stages the NOTIFICATION
// as its final outbound message. EventNotificationSent fires once the
// message has been flushed all the way to the socket, immediately if the
// direct write absorbs it.
func (c *Connection) QueueNotification(lk SessionLock, n *Notification) WriteStatus {
	c.PartClose(lk)

	c.notificationSent = n
	c.notificationPending = true

	stageMessage(c.obuf, NotificationMessageType, n.body())
	st := c.Write()
	if st == WriteDone {
		c.notificationPending = false
		c.handler.OnEvent(c, EventNotificationSent)
	}
	return st
}

// Message returns the type code and body of the fully framed message
// currently in the input buffer. Valid only inside Handler.OnMessage.
func (c *Connection) Message() (uint8, []byte) {
	b := c.ibuf.bytes()
	return b[markerLength+2], b[headerLength:]
}

// PrepareMessage assembles one outbound message into the staging buffer.
// Exactly one message may be in flight: the previous one must have been
// handed off with Write, and the write buffer must not be full.
func (c *Connection) PrepareMessage(t uint8, body []byte) {
	stageMessage(c.obuf, t, body)
}

// SendMessage assembles one outbound message and hands it off.
func (c *Connection) SendMessage(t uint8, body []byte) WriteStatus {
	c.PrepareMessage(t, body)
	return c.Write()
}

// Session returns the parent session, nil once detached.
func (c *Connection) Session() *Session { return c.session }

// Ordinal returns which of the session's connection slots this is.
func (c *Connection) Ordinal() Ordinal { return c.ordinal }

// Accepted reports whether this connection resulted from an inbound accept
// rather than an outbound connect.
func (c *Connection) Accepted() bool { return c.accepted }

// State returns the FSM state tag.
func (c *Connection) State() State { return c.state }

// SetState sets the FSM state tag. The core only interprets StateStopping,
// which marks the connection for reaping by the scheduler.
func (c *Connection) SetState(s State) { c.state = s }

// Post returns the pending post event.
func (c *Connection) Post() Event { return c.post }

// SetPost records a pending post event.
func (c *Connection) SetPost(e Event) { c.post = e }

// Err returns the accumulated I/O error, nil if none.
func (c *Connection) Err() error { return c.ioErr }

// Stop returns the recorded stop cause.
func (c *Connection) Stop() StopCause { return c.stop }

// SetStop records the stop cause.
func (c *Connection) SetStop(s StopCause) { c.stop = s }

// HoldTimerInterval returns the connection's working hold interval.
func (c *Connection) HoldTimerInterval() time.Duration {
	return c.holdTimerInterval
}

// SetHoldTimerInterval updates the working hold interval, typically after
// OPEN negotiation.
func (c *Connection) SetHoldTimerInterval(d time.Duration) {
	c.holdTimerInterval = d
}

// KeepaliveTimerInterval returns the connection's working keepalive
// interval.
func (c *Connection) KeepaliveTimerInterval() time.Duration {
	return c.keepaliveTimerInterval
}

// SetKeepaliveTimerInterval updates the working keepalive interval.
func (c *Connection) SetKeepaliveTimerInterval(d time.Duration) {
	c.keepaliveTimerInterval = d
}

// HoldTimer returns the hold timer handle for the FSM to arm. Close unsets
// it.
func (c *Connection) HoldTimer() *time.Timer { return c.holdTimer }

// KeepaliveTimer returns the keepalive timer handle for the FSM to arm.
func (c *Connection) KeepaliveTimer() *time.Timer { return c.keepaliveTimer }

// LocalAddr returns the socket's local address, zero when closed.
func (c *Connection) LocalAddr() netip.AddrPort { return c.localAddr }

// RemoteAddr returns the socket's remote address, zero when closed.
func (c *Connection) RemoteAddr() netip.AddrPort { return c.remoteAddr }

// OpenRecord returns the received-OPEN record, nil if none.
func (c *Connection) OpenRecord() *OpenRecord { return c.openRecv }

// SetOpenRecord stores the received-OPEN record.
func (c *Connection) SetOpenRecord(r *OpenRecord) { c.openRecv = r }

// NotificationSent returns the last NOTIFICATION queued for sending.
func (c *Connection) NotificationSent() *Notification { return c.notificationSent }

// NotificationReceived returns the last NOTIFICATION received.
func (c *Connection) NotificationReceived() *Notification { return c.notificationRecv }

// SetNotificationReceived records a received NOTIFICATION.
func (c *Connection) SetNotificationReceived(n *Notification) { c.notificationRecv = n }

// Host returns the connection's display name, the session's plus a role
// suffix.
func (c *Connection) Host() string { return c.host }

// Log returns the connection's logger.
func (c *Connection) Log() *zap.Logger { return c.log }
