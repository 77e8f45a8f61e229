package bgpio

// The connection queue decouples "write buffer drained" from "FSM resumes
// sending": connections land here when their output drains or when they are
// finally stopped, and the queue is drained as the highest-priority action
// of every engine iteration, before any new I/O readiness is processed.
//
// It is a circular doubly-linked list threaded through nodes embedded in the
// connections themselves, with a rotating cursor naming the next to be
// processed. Membership is an explicit flag, not nil-ness of the links.

type queueNode struct {
	next   *Connection
	prev   *Connection
	queued bool
}

type connQueue struct {
	// cursor is the next connection to be processed, nil when empty.
	cursor *Connection
}

// add enqueues the connection immediately behind the cursor. Idempotent.
func (q *connQueue) add(c *Connection) {
	if c.node.queued {
		return
	}
	if q.cursor == nil {
		c.node.next = c
		c.node.prev = c
		q.cursor = c
	} else {
		c.node.next = q.cursor
		c.node.prev = q.cursor.node.prev
		c.node.next.node.prev = c
		c.node.prev.node.next = c
	}
	c.node.queued = true
}

// del splices the connection out, repairing its neighbours and advancing the
// cursor if it pointed here. Idempotent.
func (q *connQueue) del(c *Connection) {
	if !c.node.queued {
		return
	}
	if c.node.next == c {
		// only entry
		q.cursor = nil
	} else {
		if q.cursor == c {
			q.cursor = c.node.next
		}
		c.node.next.node.prev = c.node.prev
		c.node.prev.node.next = c.node.next
	}
	c.node.next = nil
	c.node.prev = nil
	c.node.queued = false
}

func (q *connQueue) empty() bool { return q.cursor == nil }

// ProcessQueue drains the connection queue: it repeatedly pops the cursor,
// stepping past it before any processing so a connection may safely
// re-enqueue itself mid-pass. A connection found in the terminal stopping
// state is reaped immediately; any other is given the chance to run its
// pending sends until they are exhausted or its write buffer fills. Runs
// until the queue is empty.
//
// The engine calls this at the top of every loop iteration; it is exported
// so a driving layer embedding its own loop can do the same.
func (e *Engine) ProcessQueue() {
	for !e.queue.empty() {
		c := e.queue.cursor
		e.queue.del(c)

		if c.state == StateStopping {
			e.reap(c)
			continue
		}

		c.runPending()
	}
}

// reap closes and frees a stopped connection, detaching it from its session
// under the session lock.
func (e *Engine) reap(c *Connection) {
	if s := c.session; s != nil {
		lk := s.Acquire()
		if s.connections[c.ordinal] == c {
			s.connections[c.ordinal] = nil
		}
		c.session = nil
		lk.Release()
	}
	c.closeNow()
	c.Free()
}

// pendingQueue is the connection's ordered list of deferred outbound work:
// higher-level send requests awaiting buffer space, distinct from the byte
// buffers that hold wire format. It lives on the engine goroutine only.
type pendingQueue struct {
	items []func(*Connection)
}

func (q *pendingQueue) init() {
	q.items = nil
}

func (q *pendingQueue) push(fn func(*Connection)) {
	q.items = append(q.items, fn)
}

func (q *pendingQueue) pop() func(*Connection) {
	if len(q.items) == 0 {
		return nil
	}
	fn := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return fn
}

func (q *pendingQueue) clear() {
	q.items = nil
}

func (q *pendingQueue) len() int { return len(q.items) }

// Defer queues outbound work to run from the scheduler's drain pass once
// the connection is next serviced.
func (c *Connection) Defer(fn func(*Connection)) {
	c.pending.push(fn)
}

// PendingLen returns the number of queued work items.
func (c *Connection) PendingLen() int { return c.pending.len() }

// Schedule puts the connection on the connection queue; no-op if already
// there.
func (c *Connection) Schedule() { c.engine.queue.add(c) }

// Unschedule takes the connection off the connection queue; no-op if absent.
func (c *Connection) Unschedule() { c.engine.queue.del(c) }

// runPending runs deferred sends until none remain, the write buffer fills,
// or the connection stops.
func (c *Connection) runPending() {
	for !c.wbuff.full() && c.state != StateStopping {
		fn := c.pending.pop()
		if fn == nil {
			return
		}
		fn(c)
	}
}
