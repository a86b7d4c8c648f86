// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"io"
	"sync"

	"github.com/smyte-run/respkv/resp"
)

// Conn is the per-connection state the dispatcher operates on: an output
// sink, the connection's ordering adapter, and a single-worker executor.
// Responses to the connection's own synchronous requests are written
// inline by the goroutine that dispatches them; cross-connection writes
// (monitor fan-out) and asynchronous results are posted to the target's
// executor rather than performed inline by the source. Every write to
// the sink happens under outMu, and Resolve holds outMu while it drains
// the ordering adapter, so responses reach the wire in request order
// whichever goroutine resolves them.
type Conn struct {
	id     uint64
	remote string
	out    io.Writer
	outMu  sync.Mutex

	order *OrderingAdapter

	exec chan func()
	done chan struct{}
	stop sync.Once

	monitoring bool
}

// NewConn wraps out (the connection's network writer) with ordering and
// executor state. Callers must call Run in a goroutine before dispatching
// any requests, and Close once the connection's read loop ends.
func NewConn(id uint64, remote string, out io.Writer) *Conn {
	return &Conn{
		id:     id,
		remote: remote,
		out:    out,
		order:  NewOrderingAdapter(),
		exec:   make(chan func(), 256),
		done:   make(chan struct{}),
	}
}

// RemoteAddr returns the connection's peer address as recorded at
// construction, used for MONITOR line formatting.
func (c *Conn) RemoteAddr() string { return c.remote }

// Run drains the connection's executor queue until Close is called. It is
// meant to be run in its own goroutine, one per connection.
func (c *Conn) Run() {
	for {
		select {
		case fn := <-c.exec:
			fn()
		case <-c.done:
			return
		}
	}
}

// Post schedules fn to run on this connection's executor. Used for
// monitor broadcasts and for async handlers resolving a result from
// another goroutine, so that all writes to a single connection's output
// are serialized.
func (c *Conn) Post(fn func()) {
	select {
	case c.exec <- fn:
	case <-c.done:
	}
}

// Close stops the executor loop. Safe to call more than once.
func (c *Conn) Close() {
	c.stop.Do(func() { close(c.done) })
}

func (c *Conn) write(v resp.Value) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	c.out.Write(v.Encode())
}

// writeUnsolicited writes v directly to the wire without consulting the
// ordering adapter, used for monitor broadcasts and the unsolicited
// GOAWAY sent on close.
func (c *Conn) writeUnsolicited(v resp.Value) {
	c.write(v)
}

// Resolve is the single path by which a response reaches the wire: it
// hands (key, v) to the ordering adapter and writes whatever becomes
// ready, in order. key == -1 denotes an unsolicited message and bypasses
// the ordering adapter entirely, per §4.C. Async handlers call this
// directly, normally via Post, once their result is available; the
// dispatcher calls it inline for synchronous handlers.
func (c *Conn) Resolve(key int64, v resp.Value) {
	if key == -1 {
		c.write(v)
		return
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()
	for _, ready := range c.order.Resolve(key, v) {
		c.out.Write(ready.Encode())
	}
}

// Assign reserves the next ordering key for a freshly decoded request.
func (c *Conn) Assign() int64 {
	return c.order.Assign()
}
