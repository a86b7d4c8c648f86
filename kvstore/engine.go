// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package kvstore defines the ordered key-value facade the rest of the
// service is built against (§4.F): a thin, column-family-oriented
// projection over whatever storage engine backs it, imposing no locking
// of its own beyond what an implementation's atomic commit already
// provides. Subpackage memengine supplies an in-memory reference
// implementation; a production deployment would instead back Engine with
// an embedded LSM engine, which this service treats as out of scope.
package kvstore

// KV is one key/value pair as returned by Iterate, in lexicographic key
// order.
type KV struct {
	Key   string
	Value []byte
}

// Batch collects a set of writes — puts and deletes, across any number
// of column families — to be applied atomically by Commit. The same
// Batch type backs both a single non-transactional write (a fresh batch
// per call, committed immediately) and a MULTI/EXEC transaction (one
// shared batch across every queued command, committed once at EXEC) —
// see package pipeline.
type Batch interface {
	Put(cf, key string, value []byte)
	Delete(cf, key string)
}

// Snapshot is a point-in-time, read-only view of the store, unaffected
// by writes committed after it was taken.
type Snapshot interface {
	Get(cf, key string) ([]byte, bool, error)
	// Release frees resources held by the snapshot. Safe to call more
	// than once.
	Release()
}

// Engine is the ordered KV facade itself. Its NewBatch/Commit/Get
// signatures are method-set-compatible with pipeline.Engine's, but
// named types in Go require exact signature identity to satisfy an
// interface, so pipeline.Engine is not implemented directly —
// bootstrap/engineadapter.go bridges the two.
type Engine interface {
	// Get returns the value for (cf, key); found is false if the key is
	// absent.
	Get(cf, key string) ([]byte, bool, error)
	// Put performs a single-key atomic write, equivalent to committing a
	// one-entry Batch.
	Put(cf, key string, value []byte) error

	NewBatch() Batch
	// Commit applies every write in b atomically. b must have been
	// returned by this Engine's NewBatch.
	Commit(b Batch) error

	// Iterate yields entries in [lower, upper) within cf, in
	// lexicographic key order, up to limit entries. A nil lower or upper
	// bound is unbounded on that side; limit <= 0 means unbounded.
	Iterate(cf string, lower, upper []byte, limit int) ([]KV, error)

	Snapshot() (Snapshot, error)

	// ListCFs returns the names of every column family currently open,
	// in no particular order. Used during bootstrap to determine which
	// required column families are missing.
	ListCFs() []string
	// EnsureCF creates cf if it does not already exist. A no-op if it
	// does. Used during bootstrap to materialize required column
	// families without writing any data into them.
	EnsureCF(cf string)
	// DropCF discards an entire column family. Used only when bootstrap
	// applies the configured drop-set, never at request time.
	DropCF(cf string) error

	// Freeze disables background file deletion and returns the current
	// list of live files, each suffixed ":<size>".
	Freeze() ([]string, error)
	// Thaw re-enables background file deletion.
	Thaw() error
	// ForceCompact runs on a detached worker and returns immediately; cf
	// empty means every column family, start/end nil means the full key
	// range.
	ForceCompact(cf string, start, end []byte)

	// Info returns the composite human-readable status report.
	Info() string
	// DBStats returns the per-column-family engine statistics.
	DBStats() string
}
