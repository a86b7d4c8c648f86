// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package produce wraps pkg/nats as the logical producer bootstrap
// step 4 initializes one of per configured name. As with logsource/live,
// the retrieved pack carries no Kafka producer client, only this NATS
// core publish wrapper, substituted here as the closest broker
// dependency available. Core NATS Publish has no notion of a bounded
// per-topic send queue the way a Kafka producer does, so the
// queue-full-retries-once-per-second tier described for produce calls
// has nothing to bind to on this transport: every Publish error is
// treated as the "abort on any other error" tier instead. This
// narrowing is documented rather than silently approximated with a
// fabricated retry loop.
package produce

import (
	"fmt"
)

// Publisher is the subset of *nats.Client a Producer depends on.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Producer binds one logical producer name to a (topic, partition)
// destination.
type Producer struct {
	client     Publisher
	name       string
	topic      string
	partition  int
	lowLatency bool
}

// New returns a producer for the logical name, publishing to (topic,
// partition). partition may be nil, meaning "no partition suffix" (a
// single shared subject for the topic).
func New(client Publisher, name, topic string, partition *int, lowLatency bool) *Producer {
	p := -1
	if partition != nil {
		p = *partition
	}
	return &Producer{client: client, name: name, topic: topic, partition: p, lowLatency: lowLatency}
}

func (p *Producer) subject() string {
	if p.partition < 0 {
		return p.topic
	}
	return fmt.Sprintf("%s.%d", p.topic, p.partition)
}

// Name is the logical producer name this instance was configured under.
func (p *Producer) Name() string { return p.name }

// Produce publishes data to this producer's destination. Any error is
// returned to the caller as-is; there is no queue-full retry tier on
// this transport (see the package doc comment).
func (p *Producer) Produce(data []byte) error {
	if err := p.client.Publish(p.subject(), data); err != nil {
		return fmt.Errorf("produce: publish to %s: %w", p.subject(), err)
	}
	return nil
}

// Destroy releases producer-owned resources. The underlying client's
// connection lifecycle is owned by its caller, not this Producer, so
// there is nothing to release beyond satisfying the bootstrap shutdown
// step "destroy each producer."
func (p *Producer) Destroy() {}
