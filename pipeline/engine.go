// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

// Batch collects a set of writes to be applied atomically. A fresh Batch
// backs every non-transactional write command (committed immediately
// after the handler returns) and a shared Batch backs every command
// queued inside a MULTI/EXEC block (committed once, at EXEC).
type Batch interface {
	Put(cf, key string, value []byte)
	Delete(cf, key string)
}

// Engine is the subset of the ordered KV facade (package kvstore) that the
// command dispatcher depends on. It is declared here, at the consumer,
// rather than imported from kvstore, so that the dispatcher's built-in
// command set can be implemented and tested independently of any
// particular storage engine.
type Engine interface {
	NewBatch() Batch
	Commit(b Batch) error
	Get(cf, key string) ([]byte, bool, error)

	// Freeze disables background file deletion and returns the current
	// list of live files (manifest entries suffixed ":<size>").
	Freeze() ([]string, error)
	Thaw() error
	// ForceCompact runs compaction on a detached worker and returns
	// immediately.
	ForceCompact(cf string, start, end []byte)

	// Info returns the composite human-readable status report used by
	// the "info" command with no arguments.
	Info() string
	// DBStats returns the per-column-family engine statistics used by
	// "info dbstats".
	DBStats() string
}
