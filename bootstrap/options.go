// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bootstrap

import (
	"github.com/smyte-run/respkv/internal/config"
	"github.com/smyte-run/respkv/kvstore"
	"github.com/smyte-run/respkv/logoffset"
	"github.com/smyte-run/respkv/logsource"
	"github.com/smyte-run/respkv/pipeline"
	"github.com/smyte-run/respkv/produce"
	"github.com/smyte-run/respkv/taskqueue"
)

// scheduledTaskCF is the default column family backing the scheduled
// task queue when an application does not override it.
const scheduledTaskCF = "scheduled-tasks"

// metadataCF mirrors pipeline's unexported metaCF: the column family
// holding VersionTimestamp, offset bookkeeping keys, and getmeta/setmeta
// entries.
const metadataCF = "smyte-metadata"

// ConsumerFactory constructs the Consumer for one configured name, given
// its configuration and the shared engine/offset-bookkeeping machinery
// bootstrap itself owns. Applications close over whatever
// broker/object-store client they need; bootstrap only supplies the
// pieces that are generic across every consumer (§4.J step 7).
type ConsumerFactory func(cfg config.ConsumerConfig, engine kvstore.Engine, offsets *logoffset.Store) (logsource.Consumer, error)

// Options is what an application plugs into the framework: command
// handlers, the scheduled-task processor, and consumer factories keyed
// by consumer_name. Every field is optional; a zero Options runs a bare
// RESP key/value service with only the built-in command table.
type Options struct {
	// Commands are merged over the built-in command table (§4.D);
	// entries here win on name collision.
	Commands pipeline.CommandTable
	// ReadyGate backs "ready"/"setready"; nil uses pipeline's default.
	ReadyGate pipeline.ReadyGate

	// Processor, if non-nil, is the registered scheduled-task processor
	// of §4.J step 6: its presence is what makes the scheduled-task queue
	// an "optional component" that gets initialized and started.
	Processor taskqueue.Processor
	// ScheduledTaskCF overrides scheduledTaskCF.
	ScheduledTaskCF string

	// ConsumerFactories maps consumer_name (as it appears in
	// kafka_consumer_configs) to the factory that builds it.
	// A configured consumer with no matching factory is a fatal
	// configuration error, caught at bootstrap step 7.
	ConsumerFactories map[string]ConsumerFactory

	// Publisher backs every configured producer (§4.J step 4). Nil is
	// valid only when no producers are configured.
	Publisher produce.Publisher

	// MetadataDBPath overrides the operator sqlite catalog's location;
	// defaults to RocksDBDBPath + "/metadata.db".
	MetadataDBPath string
}

func (o Options) scheduledTaskCF() string {
	if o.ScheduledTaskCF != "" {
		return o.ScheduledTaskCF
	}
	return scheduledTaskCF
}
