package bgpio

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Session is the per-peer state shared between the engine goroutine and the
// routing side of a BGP speaker. Every field below is accessed only while
// holding the session lock; operations that touch them take a SessionLock
// token so the caller's responsibility is visible in the signature, and the
// lock is never held across blocking I/O.
type Session struct {
	mu      sync.Mutex
	engine  *Engine
	handler Handler

	host string
	log  *zap.Logger

	// accept is true while the session is willing to take further inbound
	// connection attempts; cleared once a secondary connection opens.
	accept bool

	connections [2]*Connection

	holdTimerInterval      time.Duration
	keepaliveTimerInterval time.Duration

	// negotiated state migrated from the surviving connection
	openRecv   *OpenRecord
	localAddr  netip.AddrPort
	remoteAddr netip.AddrPort

	tcpMD5Key string
}

// OpenRecord carries the parameters the FSM learned from a received OPEN
// message. Its interpretation belongs to the FSM; the connection core only
// stores it, discards it on reopen, and migrates it to the session when a
// connection becomes primary.
type OpenRecord struct {
	RemoteID     uint32
	RemoteAS     uint32
	HoldTime     time.Duration
	Capabilities []byte
}

type sessionOptions struct {
	log                    *zap.Logger
	holdTimerInterval      time.Duration
	keepaliveTimerInterval time.Duration
	tcpMD5Key              string
}

func defaultSessionOptions() sessionOptions {
	return sessionOptions{
		log:                    zap.NewNop(),
		holdTimerInterval:      90 * time.Second,
		keepaliveTimerInterval: 30 * time.Second,
	}
}

func (o sessionOptions) validate() error {
	if o.holdTimerInterval != 0 && o.holdTimerInterval < 3*time.Second {
		return fmt.Errorf("hold timer interval must be 0 or >= 3s, got %v",
			o.holdTimerInterval)
	}
	if o.keepaliveTimerInterval < 0 {
		return fmt.Errorf("negative keepalive timer interval %v",
			o.keepaliveTimerInterval)
	}
	return nil
}

// SessionOption configures a Session.
type SessionOption interface {
	apply(*sessionOptions)
}

type funcSessionOption struct {
	fn func(*sessionOptions)
}

func (f *funcSessionOption) apply(o *sessionOptions) {
	f.fn(o)
}

func newFuncSessionOption(fn func(*sessionOptions)) *funcSessionOption {
	return &funcSessionOption{fn: fn}
}

// WithLogger sets the session's logger. Connections derive their own child
// loggers from it and stay diagnosable after the session is gone.
func WithLogger(log *zap.Logger) SessionOption {
	return newFuncSessionOption(func(o *sessionOptions) {
		o.log = log
	})
}

// WithHoldTime sets the initial hold timer interval copied to connections at
// open, subject to renegotiation during the OPEN exchange.
func WithHoldTime(d time.Duration) SessionOption {
	return newFuncSessionOption(func(o *sessionOptions) {
		o.holdTimerInterval = d
	})
}

// WithKeepaliveTime sets the initial keepalive timer interval copied to
// connections at open.
func WithKeepaliveTime(d time.Duration) SessionOption {
	return newFuncSessionOption(func(o *sessionOptions) {
		o.keepaliveTimerInterval = d
	})
}

// WithTCPMD5Key sets the TCP MD5 signature key the listen/dial layer should
// apply to this session's sockets, see SetTCPMD5Signature.
func WithTCPMD5Key(key string) SessionOption {
	return newFuncSessionOption(func(o *sessionOptions) {
		o.tcpMD5Key = key
	})
}

// NewSession creates a session for the peer identified by host, dispatching
// connection events to the provided Handler.
func NewSession(e *Engine, host string, h Handler,
	opts ...SessionOption) (*Session, error) {
	o := defaultSessionOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	if err := o.validate(); err != nil {
		return nil, fmt.Errorf("invalid session options: %w", err)
	}
	return &Session{
		engine:                 e,
		handler:                h,
		host:                   host,
		log:                    o.log,
		accept:                 true,
		holdTimerInterval:      o.holdTimerInterval,
		keepaliveTimerInterval: o.keepaliveTimerInterval,
		tcpMD5Key:              o.tcpMD5Key,
	}, nil
}

// SessionLock witnesses that its holder has acquired the session's lock.
// It is valid from Acquire until Release and must not be retained.
type SessionLock struct {
	s *Session
}

// Acquire takes the session lock and returns the token that operations on
// session-shared state require.
func (s *Session) Acquire() SessionLock {
	s.mu.Lock()
	return SessionLock{s: s}
}

// Release gives the session lock back.
func (lk SessionLock) Release() {
	lk.s.mu.Unlock()
}

// holds panics unless the token belongs to s. A nil s (detached connection)
// passes: there is no shared state left to protect.
func (lk SessionLock) holds(s *Session) {
	if s != nil && lk.s != s {
		panic("bgpio: session lock token mismatch")
	}
}

// Host returns the peer's display name.
func (s *Session) Host() string { return s.host }

// Accepting reports whether the session is still willing to take inbound
// connection attempts.
func (s *Session) Accepting(lk SessionLock) bool {
	lk.holds(s)
	return s.accept
}

// SetAccepting sets the inbound-accept flag.
func (s *Session) SetAccepting(lk SessionLock, accept bool) {
	lk.holds(s)
	s.accept = accept
}

// Connection returns the connection in the given ordinal slot, or nil.
func (s *Session) Connection(lk SessionLock, ord Ordinal) *Connection {
	lk.holds(s)
	return s.connections[ord]
}

// OpenRecord returns the OPEN record migrated from the surviving connection.
func (s *Session) OpenRecord(lk SessionLock) *OpenRecord {
	lk.holds(s)
	return s.openRecv
}

// Intervals returns the session's current hold and keepalive timer
// intervals.
func (s *Session) Intervals(lk SessionLock) (hold, keepalive time.Duration) {
	lk.holds(s)
	return s.holdTimerInterval, s.keepaliveTimerInterval
}

// TCPMD5Key returns the configured TCP MD5 signature key, empty if none.
func (s *Session) TCPMD5Key() string { return s.tcpMD5Key }
