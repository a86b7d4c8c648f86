// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package logoffset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smyte-run/respkv/kvstore/memengine"
)

func TestEncodeDecodePairRoundTrip(t *testing.T) {
	encoded, err := EncodePair(123, 456)
	require.NoError(t, err)
	require.Len(t, encoded, pairEncodedLen)

	k, f, err := DecodePair(encoded)
	require.NoError(t, err)
	assert.Equal(t, int64(123), k)
	assert.Equal(t, int64(456), f)
}

func TestEncodePairRejectsNegativeValues(t *testing.T) {
	_, err := EncodePair(-1, 0)
	assert.Error(t, err)
	_, err = EncodePair(0, -1)
	assert.Error(t, err)
}

func TestDecodePairRejectsWrongLength(t *testing.T) {
	_, _, err := DecodePair("too-short")
	assert.Error(t, err)
}

func TestDecodePairRejectsMissingSeparator(t *testing.T) {
	bad := "0000000000000000000000000000000000000000x" // 41 chars, no ':' at index 20
	_, _, err := DecodePair(bad)
	assert.Error(t, err)
}

func TestEncodeDecodeOffsetRoundTripIncludingNegative(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 42, -42} {
		raw := EncodeOffset(n)
		got, err := DecodeOffset(raw)
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestCommitNextRejectsNegative(t *testing.T) {
	s := NewStore(memengine.New(), "offsets")
	err := s.CommitNext("t:0", -1, nil)
	assert.Error(t, err)
}

func TestCommitRawAllowsNegativeSentinel(t *testing.T) {
	s := NewStore(memengine.New(), "offsets")
	require.NoError(t, s.CommitRaw("t:0", -1, nil))
	n, ok := s.LastCommitted("t:0")
	require.True(t, ok)
	assert.Equal(t, int64(-1), n)
}

func TestCommitNextPersistsAndUpdatesLastCommitted(t *testing.T) {
	engine := memengine.New()
	s := NewStore(engine, "offsets")
	require.NoError(t, s.CommitNext("t:0", 10, nil))

	n, ok := s.LastCommitted("t:0")
	require.True(t, ok)
	assert.Equal(t, int64(10), n)

	raw, found, err := engine.Get("offsets", "t:0")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "10", string(raw))
}

func TestCommitPairPersistsEncodedValueAndUpdatesLastCommitted(t *testing.T) {
	engine := memengine.New()
	s := NewStore(engine, "offsets")
	require.NoError(t, s.CommitPair("t:0", 100, 200, nil))

	n, ok := s.LastCommitted("t:0")
	require.True(t, ok)
	assert.Equal(t, int64(100), n)

	raw, found, err := engine.Get("offsets", "t:0")
	require.NoError(t, err)
	require.True(t, found)
	k, f, err := DecodePair(string(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(100), k)
	assert.Equal(t, int64(200), f)
}

func TestCommitPairRejectsNegative(t *testing.T) {
	s := NewStore(memengine.New(), "offsets")
	assert.Error(t, s.CommitPair("t:0", -1, 0, nil))
}

func TestCommitWithBatchDoesNotWriteUntilCommitted(t *testing.T) {
	engine := memengine.New()
	s := NewStore(engine, "offsets")
	batch := engine.NewBatch()
	require.NoError(t, s.CommitNext("t:0", 5, batch))

	_, found, _ := engine.Get("offsets", "t:0")
	assert.False(t, found, "write must not be visible before the batch is committed")

	require.NoError(t, engine.Commit(batch))
	raw, found, _ := engine.Get("offsets", "t:0")
	require.True(t, found)
	assert.Equal(t, "5", string(raw))
}

func TestIngestStatsUpdatesHighWatermark(t *testing.T) {
	s := NewStore(memengine.New(), "offsets")
	s.Link("clicks", 0, "")
	s.Link("clicks", 1, "")
	raw := []byte(`{"topics":{"clicks":{"partitions":{"0":{"hi_offset":42},"1":{"hi_offset":7}}}}}`)
	require.NoError(t, s.IngestStats(raw))

	s.mu.RLock()
	hi0 := s.highWatermark[OffsetKey("clicks", 0, "")]
	hi1 := s.highWatermark[OffsetKey("clicks", 1, "")]
	s.mu.RUnlock()
	assert.Equal(t, int64(42), hi0)
	assert.Equal(t, int64(7), hi1)
}

func TestIngestStatsUpdatesEveryLinkedSuffixSharingTopicAndPartition(t *testing.T) {
	s := NewStore(memengine.New(), "offsets")
	s.Link("clicks", 0, "group-a")
	s.Link("clicks", 0, "group-b")
	require.NoError(t, s.IngestStats([]byte(`{"topics":{"clicks":{"partitions":{"0":{"hi_offset":9}}}}}`)))

	s.mu.RLock()
	hiA := s.highWatermark[OffsetKey("clicks", 0, "group-a")]
	hiB := s.highWatermark[OffsetKey("clicks", 0, "group-b")]
	s.mu.RUnlock()
	assert.Equal(t, int64(9), hiA)
	assert.Equal(t, int64(9), hiB)
}

func TestIngestStatsInvalidJSONReturnsErrorAndLeavesStateUnchanged(t *testing.T) {
	s := NewStore(memengine.New(), "offsets")
	key := s.Link("clicks", 0, "")
	require.NoError(t, s.CommitNext(key, 1, nil))
	require.NoError(t, s.IngestStats([]byte(`{"topics":{"clicks":{"partitions":{"0":{"hi_offset":5}}}}}`)))

	err := s.IngestStats([]byte(`not json`))
	assert.Error(t, err)

	s.mu.RLock()
	hi := s.highWatermark[key]
	s.mu.RUnlock()
	assert.Equal(t, int64(5), hi, "a malformed later blob must not erase previously ingested state")
}

func TestInfoTextAndLagClampedToZero(t *testing.T) {
	s := NewStore(memengine.New(), "offsets")
	key := s.Link("clicks", 0, "")
	require.NoError(t, s.CommitNext(key, 10, nil))
	require.NoError(t, s.IngestStats([]byte(`{"topics":{"clicks":{"partitions":{"0":{"hi_offset":7}}}}}`)))

	text := s.InfoText()
	assert.Contains(t, text, "kafka_topic_clicks_partition_0_last_committed_offset:10")
	assert.Contains(t, text, "kafka_topic_clicks_partition_0_high_watermark_offset:7")
	assert.Contains(t, text, "kafka_topic_clicks_partition_0_lag:0")
	assert.Contains(t, text, "is_any_consumer_lagging:0")
}

func TestAnyLaggingBecomesTrueWhenHighWatermarkOutpacesCommitted(t *testing.T) {
	s := NewStore(memengine.New(), "offsets")
	key := s.Link("clicks", 0, "")
	require.NoError(t, s.CommitNext(key, 5, nil))
	require.NoError(t, s.IngestStats([]byte(`{"topics":{"clicks":{"partitions":{"0":{"hi_offset":9}}}}}`)))

	assert.True(t, s.AnyLagging())
	assert.Contains(t, s.InfoText(), "kafka_topic_clicks_partition_0_lag:4")
	assert.Contains(t, s.InfoText(), "is_any_consumer_lagging:1")
}

func TestSplitOffsetKeyRecoversTopicPartitionAndSuffix(t *testing.T) {
	topic, partition, suffix := splitOffsetKey(OffsetKey("clicks", 3, "group-a"))
	assert.Equal(t, "clicks", topic)
	assert.Equal(t, 3, partition)
	assert.Equal(t, "group-a", suffix)
}
