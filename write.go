package bgpio

// All writing is done by assembling one message into the obuf staging buffer
// and handing it off with Write. If the socket absorbs it immediately both
// buffers end empty; otherwise the message moves, whole, into the write
// buffer and is drained by the write-ready driver. No further message may be
// prepared until the caller learns the buffer has drained, via the
// scheduler.

// WriteStatus is the outcome of handing off an outbound message.
type WriteStatus int

const (
	// WriteFailed: the write failed; an error has been signalled to the FSM.
	WriteFailed WriteStatus = iota - 1
	// WriteBuffered: the message was accepted into the write buffer; the
	// caller must not prepare another message until the buffer drains.
	WriteBuffered
	// WriteDone: the socket absorbed the whole message; all buffers are
	// empty.
	WriteDone
)

// Write hands off the message currently staged in obuf. Must not be called
// while the write buffer is full.
func (c *Connection) Write() WriteStatus {
	if c.wbuff.empty() {
		return c.writeDirect()
	}

	// The write buffer already has pending output; no direct attempt.
	c.wbuff.stage(c.obuf.bytes())
	c.obuf.reset()
	return WriteBuffered
}

// writeDirect tries to flush obuf straight to the socket. If the socket
// cannot take it all, the entire message is transferred to the write buffer
// with the output cursor set to leave the unsent remainder pending, and
// write-readiness interest is enabled. This is where the write buffer is
// allocated, the first time it is needed.
func (c *Connection) writeDirect() WriteStatus {
	unsent, err := c.obuf.flushTo(c.sock)
	if err != nil {
		c.ioErr = err
		c.handler.OnError(c, err)
		return WriteFailed
	}
	if unsent == 0 {
		return WriteDone // obuf and wbuff both empty
	}

	if !c.wbuff.allocated() {
		c.wbuff.alloc(wbuffSize)
	}
	c.wbuff.stage(c.obuf.bytes())
	c.wbuff.setUnsent(unsent)
	c.obuf.reset()

	c.wantWrite = true
	c.engine.updateInterest(c)

	return WriteBuffered
}

// writeReady is the write-readiness driver: it drains the write buffer until
// it empties or the socket blocks again. On a full drain it disables
// write-readiness interest, then either reports the terminal
// notification-sent event or enqueues the connection on the scheduler so the
// FSM gets a chance to prepare its next message.
func (c *Connection) writeReady() {
	err := c.wbuff.drainTo(c.sock)
	if err == errWouldBlock {
		return // wait for the next signal
	}
	if err != nil {
		c.ioErr = err
		c.handler.OnError(c, err)
		return
	}

	c.wbuff.reset()

	c.wantWrite = false
	c.engine.updateInterest(c)

	if c.notificationPending {
		c.notificationPending = false
		c.handler.OnEvent(c, EventNotificationSent)
	} else {
		c.engine.queue.add(c)
	}
}
