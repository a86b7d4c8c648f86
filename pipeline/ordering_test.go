// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smyte-run/respkv/resp"
)

func TestOrderingAdapterInOrderResolutionReleasesImmediately(t *testing.T) {
	a := NewOrderingAdapter()
	k0 := a.Assign()

	ready := a.Resolve(k0, resp.Int(0))
	require.Len(t, ready, 1)
	assert.Equal(t, int64(0), ready[0].Int64())
}

func TestOrderingAdapterOutOfOrderResolutionEmitsInArrivalOrder(t *testing.T) {
	a := NewOrderingAdapter()
	k0 := a.Assign()
	k1 := a.Assign()
	k2 := a.Assign()

	// resolve k2 and k1 first; nothing should be ready since k0's slot is
	// still a placeholder.
	assert.Empty(t, a.Resolve(k2, resp.Int(2)))
	assert.Empty(t, a.Resolve(k1, resp.Int(1)))

	// resolving k0 must release k0, k1, k2 in that order, in one call.
	ready := a.Resolve(k0, resp.Int(0))
	require.Len(t, ready, 3)
	assert.Equal(t, int64(0), ready[0].Int64())
	assert.Equal(t, int64(1), ready[1].Int64())
	assert.Equal(t, int64(2), ready[2].Int64())
}

func TestOrderingAdapterOutstandingBoundsFIFO(t *testing.T) {
	a := NewOrderingAdapter()
	a.Assign()
	k1 := a.Assign()
	assert.Equal(t, 2, a.Outstanding())
	a.Resolve(k1, resp.Int(1))
	assert.Equal(t, 2, a.Outstanding(), "head still outstanding, nothing released yet")
}

// Resolving a key with another placeholder, or a key outside the current
// FIFO window, is a handler bug and aborts the process (log.Abort) rather
// than returning an error — that path is an invariant violation, not a
// recoverable condition, and is intentionally not exercised here since it
// terminates the process.
