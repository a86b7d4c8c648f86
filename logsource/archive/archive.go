// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package archive

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smyte-run/respkv/logoffset"
	"github.com/smyte-run/respkv/logsource"
	"github.com/smyte-run/respkv/pkg/log"
)

// retryInterval is how long ProcessBatch waits before trying again
// to fetch a file that has not yet appeared in object storage.
const retryInterval = 60 * time.Second

// Consumer reads sequential Avro-encoded files covering one (topic,
// partition), named <prefix><topic>/<partition:06d>/<fileOffset:020d>,
// each carrying the record count it holds as a "count" metadata field.
type Consumer struct {
	store      ObjectStore
	prefix     string
	topic      string
	partition  int
	suffix     string
	offsets    *logoffset.Store
	processOne logsource.ProcessOneFunc
	newOpaque  func() interface{}

	offsetKey string

	mu               sync.Mutex
	file             *avroFile
	currentFileStart int64
	nextFileStart    int64
	currentOffset    int64
	nextRetryAt      time.Time

	initialized atomic.Bool
	started     atomic.Bool
	run         atomic.Bool
	wg          sync.WaitGroup
}

// New returns an archive consumer reading files under prefix for
// (topic, partition). suffix disambiguates multiple consumers
// configured against the same (topic, partition) in the
// offset-bookkeeping store; pass "" when there is only one.
func New(store ObjectStore, prefix, topic string, partition int, suffix string, offsets *logoffset.Store, processOne logsource.ProcessOneFunc, newOpaque func() interface{}) *Consumer {
	return &Consumer{
		store:      store,
		prefix:     prefix,
		topic:      topic,
		partition:  partition,
		suffix:     suffix,
		offsets:    offsets,
		processOne: processOne,
		newOpaque:  newOpaque,
	}
}

// Init locates the file covering initialOffset (or the committed
// offset, if initialOffset == logsource.Stored), downloads it, and
// skips records until positioned exactly at initialOffset. A successful
// Init requires initialOffset >= the covering file's own starting
// offset, and that file's starting offset + its record count >
// initialOffset.
func (c *Consumer) Init(initialOffset int64) error {
	if c.initialized.Load() {
		return errors.New("archive: consumer already initialized")
	}

	c.offsetKey = c.offsets.Link(c.topic, c.partition, c.suffix)
	if initialOffset == logsource.Stored {
		if n, ok := c.offsets.LastCommitted(c.offsetKey); ok {
			initialOffset = n
		} else {
			initialOffset = 0
		}
	}

	dirPrefix := partitionDirPrefix(c.prefix, c.topic, c.partition)
	keys, err := c.store.ListWithPrefix(dirPrefix)
	if err != nil {
		return fmt.Errorf("archive: list %s: %w", dirPrefix, err)
	}

	covering := int64(-1)
	for _, key := range keys {
		fo, err := parseFileOffset(dirPrefix, key)
		if err != nil {
			log.Warnf("archive: skipping unparseable archive key %q: %s", key, err)
			continue
		}
		if fo <= initialOffset && fo > covering {
			covering = fo
		}
	}
	if covering < 0 {
		return fmt.Errorf("archive: no file under %s covers initial offset %d", dirPrefix, initialOffset)
	}

	obj, err := c.store.Get(fileOffsetKey(c.prefix, c.topic, c.partition, covering))
	if err != nil {
		return fmt.Errorf("archive: fetch covering file at offset %d: %w", covering, err)
	}
	if !(initialOffset >= covering && covering+obj.Count > initialOffset) {
		return fmt.Errorf("archive: file at offset %d (count %d) does not cover initial offset %d", covering, obj.Count, initialOffset)
	}

	file, err := openAvroFile(obj.Body)
	if err != nil {
		return err
	}
	for skip := initialOffset - covering; skip > 0; skip-- {
		if _, ok, err := file.next(); err != nil {
			file.close()
			return err
		} else if !ok {
			file.close()
			return fmt.Errorf("archive: file at offset %d exhausted while seeking to %d", covering, initialOffset)
		}
	}

	c.file = file
	c.currentFileStart = covering
	c.nextFileStart = covering + obj.Count
	c.currentOffset = initialOffset
	c.initialized.Store(true)
	c.run.Store(true)
	log.Infof("archive: initialized consumer for %s/%d at offset %d (file %d)", c.topic, c.partition, initialOffset, covering)
	return nil
}

// Start spawns the worker goroutine that loops ProcessBatch until Stop.
func (c *Consumer) Start(timeoutMs int) error {
	if !c.initialized.Load() {
		return errors.New("archive: consumer has not been initialized")
	}
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("archive: consumer already started")
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for c.run.Load() {
			if _, err := c.ProcessBatch(timeoutMs); err != nil {
				log.Errorf("archive: %s/%d: process batch failed: %s", c.topic, c.partition, err)
			}
		}
	}()
	return nil
}

// Stop signals the worker to exit after its current ProcessBatch call.
func (c *Consumer) Stop() {
	c.run.Store(false)
}

// Destroy waits for the worker to exit and releases the open file, if any.
func (c *Consumer) Destroy() {
	c.Stop()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file != nil {
		c.file.close()
		c.file = nil
	}
	log.Infof("archive: destroyed consumer for %s/%d", c.topic, c.partition)
}

// ProcessBatch reads records one at a time from the current file. When
// the current file is exhausted, it is closed and its temp copy
// removed, and the next file is downloaded; if that next file is not
// yet present, ProcessBatch returns what it has so far and retries no
// sooner than retryInterval later.
func (c *Consumer) ProcessBatch(timeoutMs int) (int, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	opaque := c.newOpaque()
	count := 0

	c.mu.Lock()
	defer c.mu.Unlock()

	for count < logsource.MaxBatch {
		if time.Now().After(deadline) {
			break
		}
		if c.file == nil {
			if !c.advanceFileLocked() {
				break
			}
		}

		rec, ok, err := c.file.next()
		if err != nil {
			return count, err
		}
		if !ok {
			c.file.close()
			c.file = nil
			continue
		}

		key, _ := rec["key"].([]byte)
		value, _ := rec["value"].([]byte)
		m := logsource.Message{
			Topic:     c.topic,
			Partition: c.partition,
			Offset:    c.currentOffset,
			Key:       key,
			Value:     value,
		}
		if err := c.processOne(m, opaque); err != nil {
			log.Warnf("archive: %s/%d: recoverable read error at offset %d: %s", c.topic, c.partition, m.Offset, err)
			continue
		}
		if err := c.offsets.CommitPair(c.offsetKey, c.currentOffset+1, c.currentFileStart, nil); err != nil {
			log.Warnf("archive: %s/%d: failed to commit offset %d: %s", c.topic, c.partition, c.currentOffset+1, err)
		}
		c.currentOffset++
		count++
	}
	return count, nil
}

// advanceFileLocked downloads the file starting at nextFileStart. It
// returns false (without error) when that file is not yet present,
// honoring retryInterval so absence is not re-checked on every call.
func (c *Consumer) advanceFileLocked() bool {
	if time.Now().Before(c.nextRetryAt) {
		return false
	}

	key := fileOffsetKey(c.prefix, c.topic, c.partition, c.nextFileStart)
	obj, err := c.store.Get(key)
	if err != nil {
		log.Warnf("archive: file %s not yet available, retrying in %s: %s", key, retryInterval, err)
		c.nextRetryAt = time.Now().Add(retryInterval)
		return false
	}

	file, err := openAvroFile(obj.Body)
	if err != nil {
		log.Errorf("archive: failed to open downloaded file %s: %s", key, err)
		c.nextRetryAt = time.Now().Add(retryInterval)
		return false
	}

	c.file = file
	c.currentFileStart = c.nextFileStart
	c.nextFileStart = c.currentFileStart + obj.Count
	return true
}
