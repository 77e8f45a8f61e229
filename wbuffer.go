package bgpio

// The write buffer is the secondary staging area used only when the socket
// cannot absorb a full message immediately. It holds one or more complete,
// wire-format messages between the out and in cursors; the bytes before the
// out cursor have already been sent. It is lazily allocated on the first
// partial write and never released for the life of the connection.
const wbuffSize = maxMessageLength * 10

type wbuffer struct {
	buf []byte // nil until first needed
	in  int
	out int
}

func (w *wbuffer) allocated() bool { return w.buf != nil }

func (w *wbuffer) alloc(size int) {
	if w.buf != nil {
		panic("bgpio: write buffer already allocated")
	}
	w.buf = make([]byte, size)
	w.in = 0
	w.out = 0
	if w.full() {
		panic("bgpio: write buffer allocated full")
	}
}

func (w *wbuffer) capacity() int { return len(w.buf) }
func (w *wbuffer) readable() int { return w.in - w.out }
func (w *wbuffer) writable() int { return len(w.buf) - w.in }
func (w *wbuffer) empty() bool   { return w.in == w.out }

// full reports that there is no longer room for a maximum-size message.
func (w *wbuffer) full() bool {
	return w.buf != nil && w.writable() < maxMessageLength
}

func (w *wbuffer) reset() {
	w.in = 0
	w.out = 0
}

// stage appends one complete message. Callers must respect full(); staging
// past capacity is a contract failure.
func (w *wbuffer) stage(p []byte) {
	if w.writable() < len(p) {
		panic("bgpio: write buffer overrun")
	}
	w.in += copy(w.buf[w.in:], p)
}

// setUnsent positions the out cursor to leave exactly n bytes pending, used
// after a direct write absorbed the head of the staged message.
func (w *wbuffer) setUnsent(n int) {
	if n < 0 || n > w.in {
		panic("bgpio: bad unsent count")
	}
	w.out = w.in - n
}

// msgLenAt reads the declared total length of the message whose header
// starts at the given offset.
func (w *wbuffer) msgLenAt(off int) int {
	return messageLength(w.buf[off:])
}

// drainTo writes pending bytes until the buffer empties or the socket
// blocks. Cursors persist across calls; the caller resets the buffer once
// it reports empty.
func (w *wbuffer) drainTo(sock Socket) error {
	for w.out < w.in {
		n, err := sock.Write(w.buf[w.out:w.in])
		if err != nil {
			return err
		}
		w.out += n
	}
	return nil
}

// retainPartial purges the buffer down to at most one already-started
// message: it scans message boundaries from the start until the boundary at
// or past the out cursor, then either declares the buffer empty (the out
// cursor sat exactly on a boundary) or relocates the one straddled message
// to the buffer's start with cursors adjusted to match.
func (w *wbuffer) retainPartial() {
	if w.buf == nil {
		return
	}
	if w.in == w.out {
		w.reset()
		return
	}
	p, mlen := 0, 0
	for {
		p += mlen
		mlen = w.msgLenAt(p)
		if p+mlen > w.out {
			break
		}
	}
	if p == w.out {
		mlen = 0
	} else {
		copy(w.buf, w.buf[p:p+mlen])
	}
	w.out -= p
	w.in = mlen
	if w.full() {
		panic("bgpio: write buffer full after purge")
	}
}
