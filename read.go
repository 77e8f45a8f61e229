package bgpio

// readReady is the read-readiness driver; the connection never reads
// otherwise. It accumulates exactly one message into ibuf, across as many
// readiness signals as it takes: readPending carries how many bytes the
// current unit still wants, and readHeader whether that unit is the
// fixed-size header or the variable-length body.
//
// Header checks performed here: the marker is all-ones, the declared length
// does not exceed the maximum message size, and the type is one of
// OPEN/UPDATE/NOTIFICATION/KEEPALIVE.
func (c *Connection) readReady() {
	want := c.readPending
	if want == 0 {
		// start a new message
		c.ibuf.reset()
		want = headerLength
		c.readHeader = true
	}

	for {
		n, err := c.ibuf.readFrom(c.sock, want)
		if err != nil {
			// io.EOF for a clean peer close, system error otherwise
			c.ioErr = err
			c.handler.OnError(c, err)
			return
		}
		want -= n
		if want != 0 {
			c.readPending = want // wait for the rest
			return
		}
		if !c.readHeader {
			break // complete message
		}

		// complete header
		c.readHeader = false
		want, err = checkHeader(c.ibuf)
		if err != nil {
			c.handler.OnError(c, err)
			return
		}
	}

	// Hand the message over; it must be consumed from ibuf before the
	// handler returns.
	c.handler.OnMessage(c)

	c.readPending = 0
}
