// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bootstrap

import (
	"github.com/smyte-run/respkv/internal/config"
	"github.com/smyte-run/respkv/internal/metadata"
	"github.com/smyte-run/respkv/kvstore"
	"github.com/smyte-run/respkv/pkg/log"
)

// materializeCFGroups implements §4.J step 2's column-family side:
// create every column family named by a configured group (plus the two
// framework CFs), then drop every column family named by the drop-set.
// Column families already open are left untouched; EnsureCF is a no-op
// for them. catalog may be nil in tests that do not exercise the
// operator roster.
func materializeCFGroups(engine kvstore.Engine, blobs config.Blobs, catalog *metadata.Store, nowMs int64) error {
	engine.EnsureCF(defaultCF)
	engine.EnsureCF(metadataCF)

	for name, group := range blobs.CFGroupConfigs {
		for _, cf := range group.ColumnFamilyNames(name) {
			engine.EnsureCF(cf)
		}
		log.Infof("bootstrap: applied column-family group %q (%d shards)", name, group.LocalVirtualShardCount)
		if catalog != nil {
			if err := catalog.RecordCFGroupApplied(metadata.CFGroupApplication{
				GroupName:              name,
				StartShardIndex:        group.StartShardIndex,
				LocalVirtualShardCount: group.LocalVirtualShardCount,
				ShardIndexIncrement:    group.ShardIndexIncrement,
				AppliedAtMs:            nowMs,
			}); err != nil {
				return err
			}
		}
	}

	for name, group := range blobs.DropCFGroupConfigs {
		for _, cf := range group.ColumnFamilyNames(name) {
			if err := engine.DropCF(cf); err != nil {
				return err
			}
		}
		log.Infof("bootstrap: dropped column-family group %q", name)
	}

	return nil
}

// defaultCF is the always-present column family for application data
// that is not part of any configured group.
const defaultCF = "default"
