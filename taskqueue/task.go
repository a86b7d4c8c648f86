// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package taskqueue implements the scheduled task queue (§4.G): a single
// column family per queue instance, keyed by a big-endian 8-byte
// timestamp concatenated with an opaque data key, drained by a
// background worker that dispatches due tasks to a caller-supplied
// Processor and commits completion atomically with whatever writes
// processing produced.
package taskqueue

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrEmptyDataKey is returned by NewTask when dataKey is empty: distinct
// tasks scheduled for the same millisecond cannot be told apart without
// one.
var ErrEmptyDataKey = errors.New("taskqueue: data key must not be empty")

// Task is one scheduled unit of work: a payload due no earlier than
// ScheduledTimeMs, identified within that millisecond by DataKey.
type Task struct {
	ScheduledTimeMs int64
	DataKey         string
	Value           []byte
	// Completed is set by a Processor to mark a task for deletion once
	// BatchProcessing's write batch commits.
	Completed bool
}

// NewTask constructs a Task, rejecting an empty data key.
func NewTask(scheduledTimeMs int64, dataKey string, value []byte) (Task, error) {
	if dataKey == "" {
		return Task{}, ErrEmptyDataKey
	}
	return Task{ScheduledTimeMs: scheduledTimeMs, DataKey: dataKey, Value: value}, nil
}

// encodeTimestamp big-endian-encodes ts so that lexicographic ordering
// of the encoded bytes matches numerical ordering of ts, which is what
// lets the queue's column family be scanned in schedule order.
func encodeTimestamp(ts int64) []byte {
	if ts < 0 {
		panic(fmt.Sprintf("taskqueue: negative timestamp %d", ts))
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(ts))
	return b
}

func decodeTimestamp(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// key returns the column-family key for t: the 8-byte big-endian
// timestamp followed by the opaque data key.
func (t Task) key() string {
	return string(encodeTimestamp(t.ScheduledTimeMs)) + t.DataKey
}

// splitKey recovers the (timestamp, dataKey) pair from a raw column
// family key previously produced by Task.key.
func splitKey(raw string) (int64, string) {
	ts := decodeTimestamp([]byte(raw[:8]))
	return ts, raw[8:]
}
