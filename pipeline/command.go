// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import "github.com/smyte-run/respkv/resp"

// HandlerFunc implements one command. batch is a fresh, per-call Batch
// when invoked outside a transaction, or the transaction's shared Batch
// when invoked via MULTI/EXEC; the caller commits it, never the handler,
// and outside a transaction a batch whose handler returned
// resp.Placeholder() is not committed. key is the response's ordering key, needed only by
// handlers that respond asynchronously: such a handler returns
// resp.Placeholder() immediately and later calls conn.Resolve(key, v)
// once its result is ready, typically via conn.Post from another
// goroutine so the write lands on the connection's own executor.
type HandlerFunc func(conn *Conn, key int64, batch Batch, args []string) resp.Value

// CommandSpec describes one entry in a CommandTable.
type CommandSpec struct {
	Fn HandlerFunc
	// MinArgs/MaxArgs bound the argument count, excluding the command
	// name itself. -1 disables the corresponding bound.
	MinArgs int
	MaxArgs int
}

// CommandTable maps a lowercase command name to its handler.
type CommandTable map[string]CommandSpec

// merge returns a new table with base entries overridden by override's
// entries of the same name — used to let user-registered commands win
// over the built-in table.
func merge(base, override CommandTable) CommandTable {
	out := make(CommandTable, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
