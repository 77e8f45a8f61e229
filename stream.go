package bgpio

// stream is a reusable fixed-capacity staging buffer holding at most one
// complete message. A connection owns two: ibuf, where inbound messages are
// accumulated, and obuf, where the caller assembles one outbound message
// before handing it off for writing.
type stream struct {
	buf []byte
	n   int
}

func newStream(size int) *stream {
	return &stream{buf: make([]byte, size)}
}

func (s *stream) reset()        { s.n = 0 }
func (s *stream) len() int      { return s.n }
func (s *stream) bytes() []byte { return s.buf[:s.n] }

// put appends p. Overflowing the fixed capacity is a programming-contract
// failure, not a runtime condition.
func (s *stream) put(p []byte) {
	if s.n+len(p) > len(s.buf) {
		panic("bgpio: stream overflow")
	}
	s.n += copy(s.buf[s.n:], p)
}

// readFrom appends up to want bytes read from the socket. A would-block
// condition is reported as (0, nil): the caller persists how much it still
// wants and waits for the next readiness signal. A clean peer close is
// io.EOF; anything else is a system error.
func (s *stream) readFrom(sock Socket, want int) (int, error) {
	if want == 0 {
		return 0, nil
	}
	if s.n+want > len(s.buf) {
		panic("bgpio: stream overflow")
	}
	n, err := sock.Read(s.buf[s.n : s.n+want])
	if err == errWouldBlock {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	s.n += n
	return n, nil
}

// flushTo tries to write the entire staged contents to the socket. It
// returns the number of bytes the socket did not absorb: zero means all
// written, and the stream is reset; non-zero means the socket blocked
// part-way, and the contents are left intact for the caller to transfer to
// the write buffer.
func (s *stream) flushTo(sock Socket) (int, error) {
	sent := 0
	for sent < s.n {
		n, err := sock.Write(s.buf[sent:s.n])
		if err == errWouldBlock {
			return s.n - sent, nil
		}
		if err != nil {
			return s.n - sent, err
		}
		sent += n
	}
	s.reset()
	return 0, nil
}
