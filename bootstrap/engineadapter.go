// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bootstrap

import (
	"fmt"

	"github.com/smyte-run/respkv/kvstore"
	"github.com/smyte-run/respkv/pipeline"
)

// engineAdapter bridges kvstore.Engine to pipeline.Engine. The two
// interfaces agree method-for-method except NewBatch/Commit, where Go's
// exact-signature-identity rule for interface satisfaction means a
// kvstore.Engine does not implement pipeline.Engine directly even
// though kvstore.Batch's method set already satisfies pipeline.Batch.
// Get, Freeze, Thaw, ForceCompact, Info, and DBStats are identical
// across both interfaces and are promoted unchanged through the
// embedded kvstore.Engine.
type engineAdapter struct {
	kvstore.Engine
}

// newEngineAdapter wraps engine for use as a pipeline.Engine.
func newEngineAdapter(engine kvstore.Engine) pipeline.Engine {
	return &engineAdapter{Engine: engine}
}

// NewBatch returns a kvstore.Batch, whose method set already satisfies
// pipeline.Batch, so no conversion is needed at this boundary.
func (a *engineAdapter) NewBatch() pipeline.Batch {
	return a.Engine.NewBatch()
}

// Commit recovers the concrete kvstore.Batch from b before delegating.
// b must have been returned by this adapter's NewBatch, matching
// kvstore.Engine.Commit's own contract.
func (a *engineAdapter) Commit(b pipeline.Batch) error {
	kb, ok := b.(kvstore.Batch)
	if !ok {
		return fmt.Errorf("bootstrap: commit: batch %T was not produced by this engine", b)
	}
	return a.Engine.Commit(kb)
}
