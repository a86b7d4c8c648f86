// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package logoffset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/smyte-run/respkv/kvstore"
	"github.com/smyte-run/respkv/pkg/log"
)

// link records that a (topic, partition, suffix) triple is tracked, so
// that it appears in InfoText even before either of its offsets has
// been set.
type link struct {
	topic     string
	partition int
	suffix    string
}

// Store maintains, per (topic, partition) offset key: whether the key
// is linked, its last-committed offset, its high watermark, and a
// derived lag flag, plus a global "any key lagging" flag.
type Store struct {
	engine kvstore.Engine
	cf     string

	mu            sync.RWMutex
	linked        map[string]link
	lastCommitted map[string]int64
	highWatermark map[string]int64
	lagging       map[string]bool
	anyLagging    bool
}

// NewStore returns a bookkeeping store persisting committed offsets to
// column family cf of engine.
func NewStore(engine kvstore.Engine, cf string) *Store {
	return &Store{
		engine:        engine,
		cf:            cf,
		linked:        make(map[string]link),
		lastCommitted: make(map[string]int64),
		highWatermark: make(map[string]int64),
		lagging:       make(map[string]bool),
	}
}

// Link registers the (topic, partition, suffix) triple for operational
// reporting and returns its offset key. suffix disambiguates multiple
// consumers sharing the same (topic, partition); pass "" when there is
// only one. Calling Link more than once for the same triple is
// harmless.
func (s *Store) Link(topic string, partition int, suffix string) string {
	key := OffsetKey(topic, partition, suffix)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linked[key] = link{topic: topic, partition: partition, suffix: suffix}
	return key
}

// LastCommitted returns the last offset committed for key, and whether
// one has ever been committed.
func (s *Store) LastCommitted(key string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.lastCommitted[key]
	return n, ok
}

// AnyLagging reports whether any tracked key currently has a positive
// lag (high watermark ahead of the last committed offset).
func (s *Store) AnyLagging() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.anyLagging
}

func (s *Store) persist(key, value string, batch kvstore.Batch) error {
	if batch != nil {
		batch.Put(s.cf, key, []byte(value))
		return nil
	}
	return s.engine.Put(s.cf, key, []byte(value))
}

// CommitRaw persists n verbatim for key, with no validation on its
// sign; used to seed special sentinel values at startup. If batch is
// non-nil the write joins it and the caller is responsible for
// committing; otherwise an immediate write is issued. The in-memory
// last-committed value is updated as soon as the write is queued,
// mirroring taskqueue's outstanding counter: a crash between queuing a
// batched write and the caller's commit can leave memory ahead of the
// store, which is an accepted tradeoff rather than a bug.
func (s *Store) CommitRaw(key string, n int64, batch kvstore.Batch) error {
	if err := s.persist(key, EncodeOffset(n), batch); err != nil {
		log.Errorf("logoffset: failed to commit offset for %s: %s", key, err)
		return err
	}
	s.mu.Lock()
	s.lastCommitted[key] = n
	s.recomputeLagLocked(key)
	s.mu.Unlock()
	return nil
}

// CommitNext is CommitRaw restricted to non-negative offsets, the
// common case of advancing past the next consumed record.
func (s *Store) CommitNext(key string, n int64, batch kvstore.Batch) error {
	if n < 0 {
		return fmt.Errorf("logoffset: CommitNext requires a non-negative offset, got %d", n)
	}
	return s.CommitRaw(key, n, batch)
}

// CommitPair persists the encoded (k, f) pair for key; both values must
// be non-negative. The in-memory last-committed value is set to k, the
// primary offset of the pair.
func (s *Store) CommitPair(key string, k, f int64, batch kvstore.Batch) error {
	encoded, err := EncodePair(k, f)
	if err != nil {
		return err
	}
	if err := s.persist(key, encoded, batch); err != nil {
		log.Errorf("logoffset: failed to commit offset pair for %s: %s", key, err)
		return err
	}
	s.mu.Lock()
	s.lastCommitted[key] = k
	s.recomputeLagLocked(key)
	s.mu.Unlock()
	return nil
}

// statsBlob mirrors the subset of a broker client's JSON statistics
// payload this package cares about: per-topic, per-partition high
// offsets.
type statsBlob struct {
	Topics map[string]struct {
		Partitions map[string]struct {
			HiOffset json.Number `json:"hi_offset"`
		} `json:"partitions"`
	} `json:"topics"`
}

// IngestStats extracts topics.<t>.partitions.<p>.hi_offset from raw and
// updates the high watermark for every linked (topic, partition, *)
// triple it can parse, regardless of suffix — broker statistics carry
// no suffix dimension, so a single reported high watermark applies to
// every consumer linked against that (topic, partition). Entries that
// fail to parse are skipped, leaving their previous value unchanged; a
// raw blob that isn't valid JSON at all is reported as an error without
// touching any existing value.
func (s *Store) IngestStats(raw []byte) error {
	var blob statsBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return fmt.Errorf("logoffset: IngestStats: invalid stats JSON: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, t := range blob.Topics {
		for partitionStr, p := range t.Partitions {
			partition, err := strconv.Atoi(partitionStr)
			if err != nil {
				log.Warnf("logoffset: IngestStats: skipping non-numeric partition %q for topic %s", partitionStr, topic)
				continue
			}
			hi, err := p.HiOffset.Int64()
			if err != nil {
				log.Warnf("logoffset: IngestStats: skipping unparseable hi_offset for %s:%d", topic, partition)
				continue
			}
			for key, l := range s.linked {
				if l.topic == topic && l.partition == partition {
					s.highWatermark[key] = hi
					s.recomputeLagLocked(key)
				}
			}
		}
	}
	return nil
}

// recomputeLagLocked updates the lag flag for key and the global
// anyLagging flag. Callers must hold s.mu.
func (s *Store) recomputeLagLocked(key string) {
	s.lagging[key] = s.highWatermark[key] > s.lastCommitted[key]
	any := false
	for _, v := range s.lagging {
		if v {
			any = true
			break
		}
	}
	s.anyLagging = any
}

// InfoText renders the three-line-per-key operational report described
// by §4.H, followed by the global lagging flag. Keys are emitted in
// sorted order for deterministic output.
func (s *Store) InfoText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.linked))
	for k := range s.linked {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		l := s.linked[key]
		lastCommitted := s.lastCommitted[key]
		highWatermark := s.highWatermark[key]
		lag := highWatermark - lastCommitted
		if lag < 0 {
			lag = 0
		}
		fmt.Fprintf(&b, "kafka_topic_%s_partition_%d_last_committed_offset:%d\n", l.topic, l.partition, lastCommitted)
		fmt.Fprintf(&b, "kafka_topic_%s_partition_%d_high_watermark_offset:%d\n", l.topic, l.partition, highWatermark)
		fmt.Fprintf(&b, "kafka_topic_%s_partition_%d_lag:%d\n", l.topic, l.partition, lag)
	}
	anyLagging := 0
	if s.anyLagging {
		anyLagging = 1
	}
	fmt.Fprintf(&b, "is_any_consumer_lagging:%d\n", anyLagging)
	return b.String()
}
