// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"strings"
	"sync"

	"github.com/smyte-run/respkv/pkg/log"
	"github.com/smyte-run/respkv/resp"
)

// queuedCommand is one command buffered inside a MULTI block, awaiting
// EXEC.
type queuedCommand struct {
	name string
	spec CommandSpec
	args []string
}

// txState is one connection's transaction bookkeeping, per §4.E.
type txState struct {
	inTransaction bool
	errorSeen     bool
	queued        []queuedCommand
}

// TransactionalDispatcher is the MULTI/EXEC-aware variant of Dispatcher.
// Every command still passes through the same merged table and monitor
// broadcast as Dispatcher; what differs is that MULTI begins buffering
// subsequent commands instead of executing them immediately, and EXEC
// commits every buffered command's write against one shared Batch,
// atomically, aborting the entire transaction if any buffered command's
// result is an Error. This is a deliberate divergence from standard Redis
// (which commits the partial results of a failed transaction) and must be
// preserved.
type TransactionalDispatcher struct {
	table    CommandTable
	registry *MonitorRegistry
	engine   Engine
	ready    ReadyGate

	mu     sync.Mutex
	states map[*Conn]*txState
}

// NewTransactionalDispatcher builds a transactional dispatcher over
// engine and gate, merging user into the built-in table exactly as
// NewDispatcher does. "multi" and "exec" are reserved names handled
// internally and cannot be overridden.
func NewTransactionalDispatcher(engine Engine, gate ReadyGate, user CommandTable) *TransactionalDispatcher {
	if gate == nil {
		gate = NewDefaultReadyGate()
	}
	registry := NewMonitorRegistry()
	d := &Dispatcher{registry: registry, engine: engine, ready: gate}
	return &TransactionalDispatcher{
		table:    merge(d.builtins(), user),
		registry: registry,
		engine:   engine,
		ready:    gate,
		states:   make(map[*Conn]*txState),
	}
}

func (td *TransactionalDispatcher) stateFor(conn *Conn) *txState {
	td.mu.Lock()
	defer td.mu.Unlock()
	st, ok := td.states[conn]
	if !ok {
		st = &txState{}
		td.states[conn] = st
	}
	return st
}

// CloseConn removes conn from the monitor registry and discards its
// transaction state; callers invoke this once a connection's read loop
// ends, before calling conn.Close.
func (td *TransactionalDispatcher) CloseConn(conn *Conn) {
	td.registry.Remove(conn)
	td.mu.Lock()
	delete(td.states, conn)
	td.mu.Unlock()
}

// HandleRequest processes one decoder Outcome for conn, per §4.D/§4.E.
func (td *TransactionalDispatcher) HandleRequest(conn *Conn, outcome resp.Outcome) {
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
	st := td.stateFor(conn)

	switch name {
	case "multi":
		td.handleMulti(conn, key, st, args)
	case "exec":
		td.handleExec(conn, key, st, args)
	default:
		td.handleOrdinary(conn, key, st, name, args)
	}
}

func (td *TransactionalDispatcher) handleMulti(conn *Conn, key int64, st *txState, args []string) {
	if len(args) != 1 {
		conn.Resolve(key, resp.ErrorValue("Wrong number of arguments for 'multi' command"))
		return
	}
	if st.inTransaction {
		conn.Resolve(key, resp.ErrorValue("MULTI calls cannot be nested"))
		return
	}
	st.inTransaction = true
	st.errorSeen = false
	st.queued = nil
	conn.Resolve(key, resp.SimpleStringValue("OK"))
}

func (td *TransactionalDispatcher) handleExec(conn *Conn, key int64, st *txState, args []string) {
	if len(args) != 1 {
		conn.Resolve(key, resp.ErrorValue("Wrong number of arguments for 'exec' command"))
		return
	}
	if !st.inTransaction {
		conn.Resolve(key, resp.ErrorValue("EXEC without MULTI"))
		return
	}

	queued := st.queued
	errorSeen := st.errorSeen
	st.inTransaction = false
	st.errorSeen = false
	st.queued = nil

	if errorSeen {
		conn.Resolve(key, resp.ErrorValue("Transaction discarded because of previous errors"))
		td.registry.Broadcast(conn, args)
		return
	}

	batch := td.engine.NewBatch()
	results := make([]resp.Value, 0, len(queued))
	for _, qc := range queued {
		r := qc.spec.Fn(conn, -1, batch, qc.args)
		if r.IsAsyncPlaceholder() {
			log.Abort("pipeline: asynchronous handlers are not supported inside a transaction")
		}
		if r.Type() == resp.Error {
			conn.Resolve(key, resp.ErrorValue("Transaction discarded because an error was encountered during execution"))
			td.registry.Broadcast(conn, args)
			return
		}
		results = append(results, r)
	}

	if err := td.engine.Commit(batch); err != nil {
		log.Errorf("pipeline: transaction commit failed: %v", err)
		conn.Resolve(key, resp.Errorf("ERR commit failed: %s", err.Error()))
		td.registry.Broadcast(conn, args)
		return
	}

	conn.Resolve(key, resp.ArrayValue(results))
	td.registry.Broadcast(conn, args)
}

func (td *TransactionalDispatcher) handleOrdinary(conn *Conn, key int64, st *txState, name string, args []string) {
	spec, ok := td.table[name]
	if !ok {
		if st.inTransaction {
			st.errorSeen = true
		}
		conn.Resolve(key, resp.Errorf("Unknown command: '%s'", args[0]))
		return
	}

	nargs := len(args) - 1
	if (spec.MinArgs != -1 && nargs < spec.MinArgs) || (spec.MaxArgs != -1 && nargs > spec.MaxArgs) {
		if st.inTransaction {
			st.errorSeen = true
		}
		conn.Resolve(key, resp.Errorf("Wrong number of arguments for '%s' command", name))
		return
	}

	if st.inTransaction {
		st.queued = append(st.queued, queuedCommand{name: name, spec: spec, args: args[1:]})
		conn.Resolve(key, resp.SimpleStringValue("QUEUED"))
		return
	}

	batch := td.engine.NewBatch()
	result := spec.Fn(conn, key, batch, args[1:])
	if !result.IsAsyncPlaceholder() {
		if err := td.engine.Commit(batch); err != nil {
			log.Errorf("pipeline: commit failed for command '%s': %v", name, err)
			conn.Resolve(key, resp.Errorf("ERR commit failed: %s", err.Error()))
			td.registry.Broadcast(conn, args)
			return
		}
		conn.Resolve(key, result)
	}

	td.registry.Broadcast(conn, args)
}
