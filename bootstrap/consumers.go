// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bootstrap

import (
	"fmt"

	"github.com/smyte-run/respkv/internal/config"
	"github.com/smyte-run/respkv/internal/metadata"
	"github.com/smyte-run/respkv/kvstore"
	"github.com/smyte-run/respkv/logoffset"
	"github.com/smyte-run/respkv/logsource"
)

// linkedConsumer pairs a constructed consumer with the name it was
// registered under, for ordered Start/Stop/Destroy during the
// lifecycle.
type linkedConsumer struct {
	name     string
	consumer logsource.Consumer
}

// initConsumers implements §4.J step 7: for each configured consumer,
// link its offset key, seed it if gateOpen and one of its _one_off
// fields is set, then construct it via the registered factory.
// Consumers are not started here; Init is deferred to step 8 so every
// consumer is constructed before any of them starts running, per step
// 8's ordering invariant.
func initConsumers(cfgs []config.ConsumerConfig, factories map[string]ConsumerFactory, engine kvstore.Engine, offsets *logoffset.Store, catalog *metadata.Store, gateOpen bool, nowMs int64) ([]linkedConsumer, error) {
	out := make([]linkedConsumer, 0, len(cfgs))
	for _, cfg := range cfgs {
		offsetKey := offsets.Link(cfg.Topic, cfg.Partition, cfg.OffsetKeySuffix)

		if err := seedOneOffOffset(cfg, offsetKey, offsets, catalog, gateOpen, nowMs); err != nil {
			return nil, fmt.Errorf("bootstrap: consumer %q: %w", cfg.ConsumerName, err)
		}

		factory, ok := factories[cfg.ConsumerName]
		if !ok {
			return nil, fmt.Errorf("bootstrap: consumer %q: no factory registered", cfg.ConsumerName)
		}
		consumer, err := factory(cfg, engine, offsets)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: consumer %q: construct: %w", cfg.ConsumerName, err)
		}

		if catalog != nil {
			if err := catalog.RecordLinkedConsumer(metadata.LinkedConsumer{
				ConsumerName: cfg.ConsumerName,
				Topic:        cfg.Topic,
				Partition:    cfg.Partition,
				GroupID:      cfg.GroupID,
				OffsetKey:    offsetKey,
				LinkedAtMs:   nowMs,
			}); err != nil {
				return nil, fmt.Errorf("bootstrap: consumer %q: record linkage: %w", cfg.ConsumerName, err)
			}
		}

		out = append(out, linkedConsumer{name: cfg.ConsumerName, consumer: consumer})
	}
	return out, nil
}

// seedOneOffOffset applies consume_from_beginning_one_off or
// initial_offset_one_off, per §6: "flags suffixed _one_off apply only
// when the one-shot gate allows" — a single global decision made once
// in step 3, not a per-consumer re-evaluation of the version-timestamp
// test. Neither field set is a no-op regardless of gateOpen.
func seedOneOffOffset(cfg config.ConsumerConfig, offsetKey string, offsets *logoffset.Store, catalog *metadata.Store, gateOpen bool, nowMs int64) error {
	if !gateOpen {
		return nil
	}
	switch {
	case cfg.ConsumeFromBeginningOneOff:
		if err := offsets.CommitRaw(offsetKey, 0, nil); err != nil {
			return err
		}
		return recordOneOffFlagApplied(catalog, "consume_from_beginning_one_off:"+cfg.ConsumerName, "true", nowMs)

	case cfg.InitialOffsetOneOff != nil:
		v := *cfg.InitialOffsetOneOff
		if err := offsets.CommitRaw(offsetKey, v, nil); err != nil {
			return err
		}
		return recordOneOffFlagApplied(catalog, "initial_offset_one_off:"+cfg.ConsumerName, fmt.Sprintf("%d", v), nowMs)
	}
	return nil
}

// destroyConsumers stops then destroys every consumer, in the order
// they were started, per the reversed shutdown sequence.
func destroyConsumers(consumers []linkedConsumer) {
	for _, lc := range consumers {
		lc.consumer.Stop()
	}
	for _, lc := range consumers {
		lc.consumer.Destroy()
	}
}
