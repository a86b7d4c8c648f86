// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"strings"

	"github.com/smyte-run/respkv/pkg/log"
	"github.com/smyte-run/respkv/resp"
)

// Dispatcher turns decoded requests into responses by looking up and
// invoking a command handler, per §4.D. It owns the merged command
// table (built-ins overridable by user commands), the monitor registry,
// and the dependencies the built-in commands need (the KV engine and the
// readiness gate).
type Dispatcher struct {
	table    CommandTable
	registry *MonitorRegistry
	engine   Engine
	ready    ReadyGate
}

// NewDispatcher builds a dispatcher over engine and gate, merging user
// into the built-in command table (user entries win on name collision).
func NewDispatcher(engine Engine, gate ReadyGate, user CommandTable) *Dispatcher {
	if gate == nil {
		gate = NewDefaultReadyGate()
	}
	d := &Dispatcher{
		registry: NewMonitorRegistry(),
		engine:   engine,
		ready:    gate,
	}
	d.table = merge(d.builtins(), user)
	return d
}

// HandleRequest processes one decoder Outcome for conn: a ProtocolError
// is forwarded as-is; a well-formed request is looked up in the command
// table, arity-checked, and dispatched. It is safe to call concurrently
// for different connections; calls for the same connection must be
// serialized by the caller (its own executor), matching §5's event-loop
// model.
func (d *Dispatcher) HandleRequest(conn *Conn, outcome resp.Outcome) {
	key := conn.Assign()

	if outcome.Kind == resp.ProtocolError {
		conn.Resolve(key, outcome.Value)
		return
	}

	v := outcome.Value
	if v.Type() != resp.BulkStringArray {
		conn.Resolve(key, resp.ErrorValue("Not a Redis Array of Bulk String"))
		return
	}

	args := v.Strings()
	name := strings.ToLower(args[0])
	spec, ok := d.table[name]
	if !ok {
		conn.Resolve(key, resp.Errorf("Unknown command: '%s'", args[0]))
		return
	}

	nargs := len(args) - 1
	if (spec.MinArgs != -1 && nargs < spec.MinArgs) || (spec.MaxArgs != -1 && nargs > spec.MaxArgs) {
		conn.Resolve(key, resp.Errorf("Wrong number of arguments for '%s' command", name))
		return
	}

	batch := d.engine.NewBatch()
	result := spec.Fn(conn, key, batch, args[1:])
	if !result.IsAsyncPlaceholder() {
		if err := d.engine.Commit(batch); err != nil {
			log.Errorf("pipeline: commit failed for command '%s': %v", name, err)
			conn.Resolve(key, resp.Errorf("ERR commit failed: %s", err.Error()))
			d.registry.Broadcast(conn, args)
			return
		}
		conn.Resolve(key, result)
	}

	d.registry.Broadcast(conn, args)
}

// CloseConn removes conn from the monitor registry; callers invoke this
// once a connection's read loop ends, before calling conn.Close.
func (d *Dispatcher) CloseConn(conn *Conn) {
	d.registry.Remove(conn)
}
