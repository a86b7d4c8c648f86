// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"sync/atomic"

	"github.com/smyte-run/respkv/resp"
)

// Closer is implemented by both Dispatcher and TransactionalDispatcher;
// HandleClose uses it to remove a closing connection from the monitor
// registry (and, for the transactional variant, discard its transaction
// state) without depending on which one is in use.
type Closer interface {
	CloseConn(conn *Conn)
}

// ConnCounter tracks the number of currently open connections, exposed
// through the operational HTTP endpoint.
type ConnCounter struct {
	n atomic.Int64
}

func (c *ConnCounter) Inc() int64 { return c.n.Add(1) }
func (c *ConnCounter) Dec() int64 { return c.n.Add(-1) }
func (c *ConnCounter) Load() int64 { return c.n.Load() }

// HandleClose implements the close sequence of §4.D: send the unsolicited
// GOAWAY, remove the connection from the monitor registry, decrement the
// connection counter, and stop its executor. Callers invoke this on
// read-EOF or read-exception.
func HandleClose(conn *Conn, d Closer, counter *ConnCounter) {
	conn.Resolve(-1, resp.GoAway())
	d.CloseConn(conn)
	if counter != nil {
		counter.Dec()
	}
	conn.Close()
}
