package bgpio

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePoller satisfies the engine's readiness facility without any real
// descriptors. It records interest changes so tests can assert when the
// drivers enable and disable write-readiness.
type fakePoller struct {
	registered map[int]bool
	readOn     map[int]bool
	writeOn    map[int]bool
	woken      int
}

func newFakePoller() *fakePoller {
	return &fakePoller{
		registered: make(map[int]bool),
		readOn:     make(map[int]bool),
		writeOn:    make(map[int]bool),
	}
}

func (p *fakePoller) add(fd int, read, write bool) error {
	p.registered[fd] = true
	p.readOn[fd] = read
	p.writeOn[fd] = write
	return nil
}

func (p *fakePoller) modify(fd int, read, write bool) error {
	p.readOn[fd] = read
	p.writeOn[fd] = write
	return nil
}

func (p *fakePoller) remove(fd int) error {
	delete(p.registered, fd)
	delete(p.readOn, fd)
	delete(p.writeOn, fd)
	return nil
}

func (p *fakePoller) wake() error {
	p.woken++
	return nil
}

func (p *fakePoller) wait(fn func(fd int, ev pollEvent)) error { return nil }

func (p *fakePoller) close() error { return nil }

// fakeSocket plays back a script of read results and write capacities.
// Reads consume readScript entries: each entry is either bytes to deliver
// or an error (errWouldBlock, io.EOF, a system error). Writes consume
// writeScript entries: a non-negative entry caps how many bytes one Write
// call accepts, a wouldBlock entry refuses outright, an err entry fails.
// An exhausted write script accepts everything.
type fakeSocket struct {
	fd int

	readScript  []readStep
	writeScript []writeStep

	written      []byte
	readShut     bool
	shut, closed bool
}

type readStep struct {
	data []byte
	err  error
}

type writeStep struct {
	accept int
	err    error
}

func newFakeSocket(fd int) *fakeSocket {
	return &fakeSocket{fd: fd}
}

func (s *fakeSocket) deliver(p ...[]byte) {
	for _, b := range p {
		s.readScript = append(s.readScript, readStep{data: b})
	}
}

func (s *fakeSocket) deliverErr(err error) {
	s.readScript = append(s.readScript, readStep{err: err})
}

func (s *fakeSocket) acceptNext(n int) {
	s.writeScript = append(s.writeScript, writeStep{accept: n})
}

func (s *fakeSocket) refuseNext() {
	s.writeScript = append(s.writeScript, writeStep{err: errWouldBlock})
}

func (s *fakeSocket) failNext(err error) {
	s.writeScript = append(s.writeScript, writeStep{err: err})
}

func (s *fakeSocket) Fd() int { return s.fd }

func (s *fakeSocket) Read(p []byte) (int, error) {
	if len(s.readScript) == 0 {
		return 0, errWouldBlock
	}
	step := s.readScript[0]
	if step.err != nil {
		s.readScript = s.readScript[1:]
		return 0, step.err
	}
	n := copy(p, step.data)
	if n < len(step.data) {
		s.readScript[0].data = step.data[n:]
	} else {
		s.readScript = s.readScript[1:]
	}
	return n, nil
}

func (s *fakeSocket) Write(p []byte) (int, error) {
	if len(s.writeScript) == 0 {
		s.written = append(s.written, p...)
		return len(p), nil
	}
	step := s.writeScript[0]
	s.writeScript = s.writeScript[1:]
	if step.err != nil {
		return 0, step.err
	}
	n := step.accept
	if n > len(p) {
		n = len(p)
	}
	s.written = append(s.written, p[:n]...)
	if n < len(p) {
		// partial acceptance implies the socket is now blocked
		s.writeScript = append([]writeStep{{err: errWouldBlock}},
			s.writeScript...)
	}
	return n, nil
}

func (s *fakeSocket) ShutdownRead() error {
	s.readShut = true
	return nil
}

func (s *fakeSocket) Shutdown() error {
	s.shut = true
	return nil
}

func (s *fakeSocket) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSocket) LocalAddr() netip.AddrPort {
	return netip.MustParseAddrPort("192.0.2.1:179")
}

func (s *fakeSocket) RemoteAddr() netip.AddrPort {
	return netip.MustParseAddrPort("192.0.2.2:54321")
}

// recordingHandler captures everything the connection core raises.
type recordingHandler struct {
	errs   []error
	events []Event
	msgs   []recordedMessage

	// optional per-callback hooks
	onMessage func(c *Connection)
	onError   func(c *Connection, err error)
	onEvent   func(c *Connection, event Event)
}

type recordedMessage struct {
	msgType uint8
	body    []byte
}

func (h *recordingHandler) OnError(c *Connection, err error) {
	h.errs = append(h.errs, err)
	if h.onError != nil {
		h.onError(c, err)
	}
}

func (h *recordingHandler) OnEvent(c *Connection, event Event) {
	h.events = append(h.events, event)
	if h.onEvent != nil {
		h.onEvent(c, event)
	}
}

func (h *recordingHandler) OnMessage(c *Connection) {
	t, body := c.Message()
	m := recordedMessage{msgType: t}
	if len(body) > 0 {
		m.body = append([]byte(nil), body...)
	}
	h.msgs = append(h.msgs, m)
	if h.onMessage != nil {
		h.onMessage(c)
	}
}

// testRig wires an engine on a fake poller, a session, and one opened
// primary connection on a fake socket.
type testRig struct {
	engine  *Engine
	poller  *fakePoller
	session *Session
	handler *recordingHandler
	conn    *Connection
	sock    *fakeSocket
}

func newTestRig(t *testing.T, opts ...SessionOption) *testRig {
	t.Helper()
	p := newFakePoller()
	e := newEngineWithPoller(p, zap.NewNop())
	h := &recordingHandler{}
	s, err := NewSession(e, "203.0.113.1", h, opts...)
	require.NoError(t, err)
	c := NewConnection(nil, s, Primary)
	sock := newFakeSocket(3)
	lk := s.Acquire()
	err = c.Open(lk, sock)
	lk.Release()
	require.NoError(t, err)
	return &testRig{
		engine:  e,
		poller:  p,
		session: s,
		handler: h,
		conn:    c,
		sock:    sock,
	}
}

// wireMessage builds a complete wire-format message.
func wireMessage(t uint8, body []byte) []byte {
	s := newStream(maxMessageLength)
	stageMessage(s, t, body)
	return append([]byte(nil), s.bytes()...)
}
