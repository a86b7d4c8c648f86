// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bootstrap

import (
	"fmt"

	"github.com/smyte-run/respkv/internal/config"
	"github.com/smyte-run/respkv/produce"
)

// initProducers implements §4.J step 4: one producer per configured
// logical name. publisher may be nil only when cfgs is empty.
func initProducers(cfgs map[string]config.ProducerConfig, publisher produce.Publisher) (map[string]*produce.Producer, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	if publisher == nil {
		return nil, fmt.Errorf("bootstrap: %d producers configured but no publisher supplied", len(cfgs))
	}

	out := make(map[string]*produce.Producer, len(cfgs))
	for name, cfg := range cfgs {
		out[name] = produce.New(publisher, name, cfg.Topic, cfg.Partition, cfg.LowLatency)
	}
	return out, nil
}

// destroyProducers releases every producer, per the reversed shutdown
// sequence's "destroy each producer" step.
func destroyProducers(producers map[string]*produce.Producer) {
	for _, p := range producers {
		p.Destroy()
	}
}
