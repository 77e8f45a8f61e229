// Package bgpio implements the connection-level I/O engine of a BGP
// speaker: the component that owns a single TCP connection to a peer,
// frames and buffers BGP messages, and drives non-blocking reads and writes
// against the socket, while reporting message arrival, errors, and buffer
// drains to an external finite-state machine that holds the session logic.
package bgpio

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// pollEvent is the readiness delivered for a registered descriptor.
type pollEvent uint8

const (
	pollReadable pollEvent = 1 << iota
	pollWritable
	// pollClosed covers error and hangup conditions; they are delivered to
	// both drivers, which pick up the actual error from the socket.
	pollClosed
)

// poller is the readiness-notification facility: register a descriptor with
// read/write interest, adjust interest, and receive edge-free level
// callbacks from wait.
type poller interface {
	add(fd int, read, write bool) error
	modify(fd int, read, write bool) error
	remove(fd int) error

	// wake forces a blocked wait to return.
	wake() error

	// wait blocks for readiness and invokes fn once per ready descriptor.
	wait(fn func(fd int, ev pollEvent)) error

	close() error
}

// Engine is the single-threaded event loop that owns every connection.
// Every iteration drains the connection queue first, then dispatches socket
// readiness. Nothing in it blocks except the poll itself; all connection
// state is confined to the engine goroutine.
type Engine struct {
	poller poller
	queue  connQueue
	conns  map[int]*Connection
	log    *zap.Logger
}

type engineOptions struct {
	log *zap.Logger
}

func defaultEngineOptions() engineOptions {
	return engineOptions{log: zap.NewNop()}
}

// EngineOption configures an Engine.
type EngineOption interface {
	apply(*engineOptions)
}

type funcEngineOption struct {
	fn func(*engineOptions)
}

func (f *funcEngineOption) apply(o *engineOptions) { f.fn(o) }

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(log *zap.Logger) EngineOption {
	return &funcEngineOption{fn: func(o *engineOptions) { o.log = log }}
}

// NewEngine creates an engine with the platform readiness facility.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	o := defaultEngineOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	p, err := newPoller()
	if err != nil {
		return nil, fmt.Errorf("opening poller: %w", err)
	}
	return newEngineWithPoller(p, o.log), nil
}

func newEngineWithPoller(p poller, log *zap.Logger) *Engine {
	return &Engine{
		poller: p,
		conns:  make(map[int]*Connection),
		log:    log,
	}
}

// Run drives the engine until the context is cancelled or the poller fails.
func (e *Engine) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		if err := e.poller.wake(); err != nil {
			e.log.Warn("poller wake", zap.Error(err))
		}
	})
	defer stop()

	for {
		e.ProcessQueue()
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.poller.wait(e.dispatch); err != nil {
			return fmt.Errorf("poll wait: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Close releases the readiness facility.
func (e *Engine) Close() error {
	return e.poller.close()
}

func (e *Engine) dispatch(fd int, ev pollEvent) {
	c := e.conns[fd]
	if c == nil {
		return
	}
	// Service writability first: leftover output must go back to the peer
	// before new input is taken, and a refused connection surfaces its error
	// through the write path.
	if c.wantWrite && ev&(pollWritable|pollClosed) != 0 {
		c.writeReady()
	}
	// The write driver may have torn the connection down via the handler.
	if c.sock == nil || e.conns[fd] != c {
		return
	}
	if c.wantRead && ev&(pollReadable|pollClosed) != 0 {
		c.readReady()
	}
}

func (e *Engine) register(c *Connection, sock Socket) error {
	fd := sock.Fd()
	if err := e.poller.add(fd, true, false); err != nil {
		return fmt.Errorf("registering fd %d: %w", fd, err)
	}
	e.conns[fd] = c
	return nil
}

func (e *Engine) deregister(c *Connection) {
	fd := c.sock.Fd()
	if err := e.poller.remove(fd); err != nil {
		c.log.Debug("poller remove", zap.Error(err))
	}
	delete(e.conns, fd)
}

func (e *Engine) updateInterest(c *Connection) {
	if c.sock == nil {
		return
	}
	if err := e.poller.modify(c.sock.Fd(), c.wantRead, c.wantWrite); err != nil {
		c.log.Warn("poller modify", zap.Error(err))
	}
}
