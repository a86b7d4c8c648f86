// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package memengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	e := New()
	require.NoError(t, e.Put("cf1", "a", []byte("1")))

	v, found, err := e.Get("cf1", "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", string(v))
}

func TestGetMissingKeyNotFound(t *testing.T) {
	e := New()
	_, found, err := e.Get("cf1", "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBatchAppliesAtomically(t *testing.T) {
	e := New()
	b := e.NewBatch()
	b.Put("cf1", "a", []byte("1"))
	b.Put("cf1", "b", []byte("2"))
	require.NoError(t, e.Commit(b))

	va, _, _ := e.Get("cf1", "a")
	vb, _, _ := e.Get("cf1", "b")
	assert.Equal(t, "1", string(va))
	assert.Equal(t, "2", string(vb))
}

func TestBatchDeleteAfterPutInSameBatchWins(t *testing.T) {
	e := New()
	b := e.NewBatch()
	b.Put("cf1", "a", []byte("1"))
	b.Delete("cf1", "a")
	require.NoError(t, e.Commit(b))

	_, found, _ := e.Get("cf1", "a")
	assert.False(t, found)
}

func TestIterateLexicographicOrderAndBounds(t *testing.T) {
	e := New()
	b := e.NewBatch()
	for _, k := range []string{"c", "a", "b", "d", "e"} {
		b.Put("cf1", k, []byte(k))
	}
	require.NoError(t, e.Commit(b))

	kvs, err := e.Iterate("cf1", []byte("b"), []byte("e"), 0)
	require.NoError(t, err)
	require.Len(t, kvs, 3)
	assert.Equal(t, []string{"b", "c", "d"}, []string{kvs[0].Key, kvs[1].Key, kvs[2].Key})
}

func TestIterateRespectsLimit(t *testing.T) {
	e := New()
	b := e.NewBatch()
	for _, k := range []string{"a", "b", "c"} {
		b.Put("cf1", k, []byte(k))
	}
	require.NoError(t, e.Commit(b))

	kvs, err := e.Iterate("cf1", nil, nil, 2)
	require.NoError(t, err)
	assert.Len(t, kvs, 2)
	assert.Equal(t, "a", kvs[0].Key)
	assert.Equal(t, "b", kvs[1].Key)
}

func TestSnapshotIsUnaffectedByLaterWrites(t *testing.T) {
	e := New()
	require.NoError(t, e.Put("cf1", "a", []byte("1")))

	snap, err := e.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	require.NoError(t, e.Put("cf1", "a", []byte("2")))

	v, found, _ := snap.Get("cf1", "a")
	require.True(t, found)
	assert.Equal(t, "1", string(v))

	live, _, _ := e.Get("cf1", "a")
	assert.Equal(t, "2", string(live))
}

func TestDropCFRemovesAllKeys(t *testing.T) {
	e := New()
	require.NoError(t, e.Put("cf1", "a", []byte("1")))
	require.NoError(t, e.DropCF("cf1"))

	_, found, _ := e.Get("cf1", "a")
	assert.False(t, found)
}

func TestFreezeReturnsNonEmptyLiveFileListThenThaw(t *testing.T) {
	e := New()
	files, err := e.Freeze()
	require.NoError(t, err)
	assert.NotEmpty(t, files)
	require.NoError(t, e.Thaw())
}

func TestInfoAndDBStatsReportColumnFamilies(t *testing.T) {
	e := New()
	require.NoError(t, e.Put("cf1", "a", []byte("1")))

	assert.Contains(t, e.Info(), "cfs=1")
	assert.Contains(t, e.DBStats(), "cf1:1")
}
