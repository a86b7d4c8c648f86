// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bootstrap

import (
	"sort"

	"github.com/smyte-run/respkv/internal/config"
)

// databaseManager is the KV facade state named in the data model: the
// group-name-to-column-family-list mapping and the master-replica bit,
// layered over the already-open kvstore.Engine. Cluster replication
// itself is a named non-goal, so Start/Destroy here are lifecycle hooks
// satisfying §4.J steps 5/8/shutdown rather than a place that drives
// any actual replication.
type databaseManager struct {
	groups        map[string][]string
	masterReplica bool
}

func newDatabaseManager(groups map[string]config.CFGroupConfig, masterReplica bool) *databaseManager {
	m := &databaseManager{groups: make(map[string][]string, len(groups)), masterReplica: masterReplica}
	for name, g := range groups {
		cfs := g.ColumnFamilyNames(name)
		sort.Strings(cfs)
		m.groups[name] = cfs
	}
	return m
}

// Start has nothing to do absent real replication; present for
// parity with the optional-component start ordering of step 8.
func (m *databaseManager) Start() error { return nil }

// Destroy has nothing to release; present for parity with the
// reversed-shutdown ordering.
func (m *databaseManager) Destroy() {}

// MasterReplica reports the configured master-replica bit.
func (m *databaseManager) MasterReplica() bool { return m.masterReplica }

// GroupCFs returns the column families belonging to group, in
// lexicographic order.
func (m *databaseManager) GroupCFs(group string) []string { return m.groups[group] }
