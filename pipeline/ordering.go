// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline implements the per-connection request/response
// machinery sitting on top of package resp: an ordering adapter that lets
// asynchronous handlers complete out of order while responses still exit
// in request-arrival order, a command dispatcher, and a transactional
// variant of the dispatcher for MULTI/EXEC semantics.
package pipeline

import (
	"sync"

	"github.com/smyte-run/respkv/pkg/log"
	"github.com/smyte-run/respkv/resp"
)

// OrderingAdapter guarantees that responses for a single connection exit
// in the same order their requests arrived, even when the handlers that
// produce them complete out of order. It holds a FIFO of slots keyed by a
// monotonically increasing sequence number; a slot starts as
// AsyncPlaceholder and is released downstream once filled and at the head
// of the queue.
type OrderingAdapter struct {
	mu       sync.Mutex
	startKey int64
	fifo     []resp.Value
}

// NewOrderingAdapter returns an adapter with an empty FIFO.
func NewOrderingAdapter() *OrderingAdapter {
	return &OrderingAdapter{}
}

// Assign reserves the next sequence key for a newly decoded request and
// pushes a placeholder slot for it. The caller forwards the request
// downstream tagged with the returned key.
func (a *OrderingAdapter) Assign() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := a.startKey + int64(len(a.fifo))
	a.fifo = append(a.fifo, resp.Placeholder())
	return key
}

// Resolve fills the slot at key with value and returns, in order, every
// value now ready to emit downstream: the previously-head placeholder (if
// any) plus every consecutive non-placeholder slot that follows it. It is
// a fatal error to resolve a key that is out of range, already resolved,
// or resolved with another placeholder — each indicates a handler bug that
// would otherwise corrupt response ordering.
func (a *OrderingAdapter) Resolve(key int64, value resp.Value) []resp.Value {
	if value.IsAsyncPlaceholder() {
		log.Abort("pipeline: ordering adapter resolved with an AsyncPlaceholder value")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := key - a.startKey
	if idx < 0 || idx >= int64(len(a.fifo)) {
		log.Abortf("pipeline: ordering adapter resolve key %d out of range [%d, %d)", key, a.startKey, a.startKey+int64(len(a.fifo)))
	}
	if !a.fifo[idx].IsAsyncPlaceholder() {
		log.Abortf("pipeline: ordering adapter resolve key %d was already resolved", key)
	}
	a.fifo[idx] = value

	var ready []resp.Value
	for len(a.fifo) > 0 && !a.fifo[0].IsAsyncPlaceholder() {
		ready = append(ready, a.fifo[0])
		a.fifo = a.fifo[1:]
		a.startKey++
	}
	return ready
}

// Outstanding returns the number of requests currently in flight, which
// bounds per-connection memory.
func (a *OrderingAdapter) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fifo)
}
