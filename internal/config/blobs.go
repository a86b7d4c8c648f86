// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// blobSchema validates the structural JSON config file's shape before
// it is decoded, the same two-step validate-then-decode the teacher
// applies to its own config file (schema.Validate, then a
// DisallowUnknownFields decode).
const blobSchema = `{
  "type": "object",
  "properties": {
    "rocksdb_cf_group_configs": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["start_shard_index", "local_virtual_shard_count", "shard_index_increment"],
        "properties": {
          "start_shard_index": {"type": "integer"},
          "local_virtual_shard_count": {"type": "integer"},
          "shard_index_increment": {"type": "integer"}
        }
      }
    },
    "rocksdb_drop_cf_group_configs": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["start_shard_index", "local_virtual_shard_count", "shard_index_increment"],
        "properties": {
          "start_shard_index": {"type": "integer"},
          "local_virtual_shard_count": {"type": "integer"},
          "shard_index_increment": {"type": "integer"}
        }
      }
    },
    "kafka_consumer_configs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["consumer_name", "topic", "partition", "group_id"],
        "properties": {
          "consumer_name": {"type": "string"},
          "topic": {"type": "string"},
          "partition": {"type": "integer"},
          "group_id": {"type": "string"},
          "offset_key_suffix": {"type": "string"},
          "consume_from_beginning_one_off": {"type": "boolean"},
          "initial_offset_one_off": {"type": "integer"},
          "object_store_bucket_name": {"type": "string"},
          "object_store_object_name_prefix": {"type": "string"}
        }
      }
    },
    "kafka_producer_configs": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["topic"],
        "properties": {
          "topic": {"type": "string"},
          "partition": {"type": "integer"},
          "low_latency": {"type": "boolean"}
        }
      }
    }
  }
}`

// CFGroupConfig describes one configured column-family group: its
// member column families are named "<group>-<shard_index>" for
// shard_index starting at StartShardIndex and stepping by
// ShardIndexIncrement, LocalVirtualShardCount times.
type CFGroupConfig struct {
	StartShardIndex        int `json:"start_shard_index"`
	LocalVirtualShardCount int `json:"local_virtual_shard_count"`
	ShardIndexIncrement    int `json:"shard_index_increment"`
}

// ColumnFamilyNames enumerates the column family names this group
// configures, for group name group.
func (g CFGroupConfig) ColumnFamilyNames(group string) []string {
	names := make([]string, g.LocalVirtualShardCount)
	shard := g.StartShardIndex
	for i := range names {
		names[i] = fmt.Sprintf("%s-%d", group, shard)
		shard += g.ShardIndexIncrement
	}
	return names
}

// ConsumerConfig describes one configured log consumer. ConsumeFromBeginningOneOff
// and InitialOffsetOneOff are mutually exclusive.
type ConsumerConfig struct {
	ConsumerName                string `json:"consumer_name"`
	Topic                       string `json:"topic"`
	Partition                   int    `json:"partition"`
	GroupID                     string `json:"group_id"`
	OffsetKeySuffix             string `json:"offset_key_suffix,omitempty"`
	ConsumeFromBeginningOneOff  bool   `json:"consume_from_beginning_one_off,omitempty"`
	InitialOffsetOneOff         *int64 `json:"initial_offset_one_off,omitempty"`
	ObjectStoreBucketName       string `json:"object_store_bucket_name,omitempty"`
	ObjectStoreObjectNamePrefix string `json:"object_store_object_name_prefix,omitempty"`
}

func (c ConsumerConfig) validate() error {
	if c.ConsumeFromBeginningOneOff && c.InitialOffsetOneOff != nil {
		return fmt.Errorf("consumer %q: consume_from_beginning_one_off and initial_offset_one_off are mutually exclusive", c.ConsumerName)
	}
	return nil
}

// ProducerConfig describes one configured producer's logical binding.
type ProducerConfig struct {
	Topic      string `json:"topic"`
	Partition  *int   `json:"partition,omitempty"`
	LowLatency bool   `json:"low_latency,omitempty"`
}

// Blobs holds the structural JSON configuration: column-family groups,
// the drop-set applied during bootstrap, and consumer/producer configs.
type Blobs struct {
	CFGroupConfigs     map[string]CFGroupConfig  `json:"rocksdb_cf_group_configs"`
	DropCFGroupConfigs map[string]CFGroupConfig  `json:"rocksdb_drop_cf_group_configs"`
	ConsumerConfigs    []ConsumerConfig          `json:"kafka_consumer_configs"`
	ProducerConfigs    map[string]ProducerConfig `json:"kafka_producer_configs"`
}

// validate checks cross-field invariants the JSON schema itself cannot
// express (the one-off mutual exclusivity per consumer).
func (b Blobs) validate() error {
	for _, c := range b.ConsumerConfigs {
		if err := c.validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoadBlobs reads, schema-validates, and decodes the JSON config file at
// path. A missing file yields an empty Blobs (every map/slice nil),
// matching the teacher's "config file is optional, defaults stand" path.
func LoadBlobs(path string) (Blobs, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Blobs{}, nil
		}
		return Blobs{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	sch, err := jsonschema.CompileString("respkv-config.json", blobSchema)
	if err != nil {
		return Blobs{}, fmt.Errorf("config: compile schema: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return Blobs{}, fmt.Errorf("config: %s: invalid JSON: %w", path, err)
	}
	if err := sch.Validate(v); err != nil {
		return Blobs{}, fmt.Errorf("config: %s: schema validation failed: %w", path, err)
	}

	var blobs Blobs
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&blobs); err != nil {
		return Blobs{}, fmt.Errorf("config: %s: decode: %w", path, err)
	}

	if err := blobs.validate(); err != nil {
		return Blobs{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return blobs, nil
}
