// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package archive

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smyte-run/respkv/kvstore/memengine"
	"github.com/smyte-run/respkv/logoffset"
	"github.com/smyte-run/respkv/logsource"
)

// fakeStore is an in-memory ObjectStore for tests.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string]Object
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]Object)}
}

func (f *fakeStore) put(key string, body []byte, count int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = Object{Body: body, Count: count}
}

func (f *fakeStore) Get(key string) (Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return Object{}, fmt.Errorf("fakeStore: no object %q", key)
	}
	return obj, nil
}

func (f *fakeStore) ListWithPrefix(prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func recordsOf(values ...string) []map[string]interface{} {
	recs := make([]map[string]interface{}, len(values))
	for i, v := range values {
		recs[i] = map[string]interface{}{"key": []byte(fmt.Sprintf("k%d", i)), "value": []byte(v)}
	}
	return recs
}

func newTestOffsets() *logoffset.Store {
	return logoffset.NewStore(memengine.New(), "offsets")
}

func TestInitLocatesFileCoveringInitialOffsetAndSkipsToIt(t *testing.T) {
	store := newFakeStore()
	body, err := encodeRecords(recordsOf("a", "b", "c", "d"))
	require.NoError(t, err)
	store.put(fileOffsetKey("archives/", "clicks", 0, 0), body, 4)

	var received []string
	c := New(store, "archives/", "clicks", 0, "", newTestOffsets(), func(m logsource.Message, _ interface{}) error {
		received = append(received, string(m.Value))
		return nil
	}, func() interface{} { return nil })

	require.NoError(t, c.Init(2))
	n, err := c.ProcessBatch(10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"c", "d"}, received)
}

func TestInitRejectsOffsetNotCoveredByAnyFile(t *testing.T) {
	store := newFakeStore()
	body, err := encodeRecords(recordsOf("a", "b"))
	require.NoError(t, err)
	store.put(fileOffsetKey("archives/", "clicks", 0, 0), body, 2)

	c := New(store, "archives/", "clicks", 0, "", newTestOffsets(), func(logsource.Message, interface{}) error { return nil }, func() interface{} { return nil })
	assert.Error(t, c.Init(5))
}

func TestInitDefaultsToZeroWithNoCommittedOffset(t *testing.T) {
	store := newFakeStore()
	body, err := encodeRecords(recordsOf("a"))
	require.NoError(t, err)
	store.put(fileOffsetKey("archives/", "clicks", 0, 0), body, 1)

	c := New(store, "archives/", "clicks", 0, "", newTestOffsets(), func(logsource.Message, interface{}) error { return nil }, func() interface{} { return nil })
	require.NoError(t, c.Init(logsource.Stored))
	assert.Equal(t, int64(0), c.currentOffset)
}

func TestInitSeeksToStoredCommittedOffset(t *testing.T) {
	store := newFakeStore()
	body, err := encodeRecords(recordsOf("a", "b", "c"))
	require.NoError(t, err)
	store.put(fileOffsetKey("archives/", "clicks", 0, 0), body, 3)

	offsets := newTestOffsets()
	require.NoError(t, offsets.CommitNext(logoffset.OffsetKey("clicks", 0, ""), 1, nil))

	c := New(store, "archives/", "clicks", 0, "", offsets, func(logsource.Message, interface{}) error { return nil }, func() interface{} { return nil })
	require.NoError(t, c.Init(logsource.Stored))
	assert.Equal(t, int64(1), c.currentOffset)
}

func TestProcessBatchAdvancesAcrossFileBoundary(t *testing.T) {
	store := newFakeStore()
	first, err := encodeRecords(recordsOf("a", "b"))
	require.NoError(t, err)
	store.put(fileOffsetKey("archives/", "clicks", 0, 0), first, 2)

	second, err := encodeRecords(recordsOf("c", "d"))
	require.NoError(t, err)
	store.put(fileOffsetKey("archives/", "clicks", 0, 2), second, 2)

	var received []string
	c := New(store, "archives/", "clicks", 0, "", newTestOffsets(), func(m logsource.Message, _ interface{}) error {
		received = append(received, string(m.Value))
		return nil
	}, func() interface{} { return nil })
	require.NoError(t, c.Init(0))

	n, err := c.ProcessBatch(10)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"a", "b", "c", "d"}, received)
}

func TestProcessBatchReturnsPartialWhenNextFileMissing(t *testing.T) {
	store := newFakeStore()
	body, err := encodeRecords(recordsOf("a"))
	require.NoError(t, err)
	store.put(fileOffsetKey("archives/", "clicks", 0, 0), body, 1)

	c := New(store, "archives/", "clicks", 0, "", newTestOffsets(), func(logsource.Message, interface{}) error { return nil }, func() interface{} { return nil })
	require.NoError(t, c.Init(0))

	n, err := c.ProcessBatch(10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), c.currentOffset)
}

func TestProcessBatchCommitsOffsetPairDurably(t *testing.T) {
	store := newFakeStore()
	body, err := encodeRecords(recordsOf("a", "b"))
	require.NoError(t, err)
	store.put(fileOffsetKey("archives/", "clicks", 0, 0), body, 2)

	offsets := newTestOffsets()
	c := New(store, "archives/", "clicks", 0, "", offsets, func(logsource.Message, interface{}) error { return nil }, func() interface{} { return nil })
	require.NoError(t, c.Init(0))

	n, err := c.ProcessBatch(10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	committed, ok := offsets.LastCommitted(c.offsetKey)
	require.True(t, ok, "processing a record must durably commit its offset pair, not just advance it in memory")
	assert.Equal(t, int64(2), committed)
}

func TestProcessBatchSkipsRecoverableErrorWithoutAdvancingOffset(t *testing.T) {
	store := newFakeStore()
	body, err := encodeRecords(recordsOf("bad", "good"))
	require.NoError(t, err)
	store.put(fileOffsetKey("archives/", "clicks", 0, 0), body, 2)

	calls := 0
	c := New(store, "archives/", "clicks", 0, "", newTestOffsets(), func(logsource.Message, interface{}) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("synthetic recoverable error")
		}
		return nil
	}, func() interface{} { return nil })
	require.NoError(t, c.Init(0))

	n, err := c.ProcessBatch(10)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the successfully processed record counts")
	assert.Equal(t, int64(1), c.currentOffset)
}
