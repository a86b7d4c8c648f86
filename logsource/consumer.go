// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package logsource defines the shared consumer contract (§4.I) both
// the live broker-subscription variant (logsource/live) and the
// archive object-storage variant (logsource/archive) implement.
package logsource

// MaxBatch bounds how many records ProcessBatch consumes in one call.
const MaxBatch = 10000

// Stored, passed as the initialOffset argument to Consumer.Init, means
// "resume from whatever offset was last committed for this consumer",
// falling back to the beginning if nothing was ever committed.
const Stored int64 = -1

// Message is one record delivered to a ProcessOneFunc.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
}

// ProcessOneFunc handles a single delivered message. opaque is an
// implementation-chosen handle shared across an entire ProcessBatch
// call — commonly a write batch, so that offset commits and the side
// effects of processing land atomically together.
type ProcessOneFunc func(msg Message, opaque interface{}) error

// Consumer is the lifecycle shared by both log source variants: Init
// validates the source and seeks to a starting point, Start spawns a
// background worker that loops ProcessBatch until Stop, and Destroy
// waits for that worker to exit and releases resources.
type Consumer interface {
	// Init validates that the topic/partition exists and seeks to
	// initialOffset (or the committed offset, if initialOffset ==
	// Stored). Must be called exactly once, before Start.
	Init(initialOffset int64) error
	// Start spawns a worker goroutine that loops ProcessBatch(timeoutMs)
	// until Stop is called. Must not be called more than once.
	Start(timeoutMs int) error
	// Stop signals the worker to exit after its current ProcessBatch
	// call returns. It does not block.
	Stop()
	// Destroy waits for the worker to exit and releases resources. Must
	// be called after Stop.
	Destroy()
	// ProcessBatch consumes up to MaxBatch records, or until timeoutMs
	// elapses, whichever comes first, and returns how many records were
	// processed.
	ProcessBatch(timeoutMs int) (int, error)
}
