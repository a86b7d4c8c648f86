// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package metadata

import "fmt"

// LinkedConsumer is one row of the linked-consumer roster.
type LinkedConsumer struct {
	ConsumerName string `db:"consumer_name"`
	Topic        string `db:"topic"`
	Partition    int    `db:"partition"`
	GroupID      string `db:"group_id"`
	OffsetKey    string `db:"offset_key"`
	LinkedAtMs   int64  `db:"linked_at_ms"`
}

// RecordLinkedConsumer upserts the roster entry for a consumer linked
// during bootstrap step 7.
func (s *Store) RecordLinkedConsumer(c LinkedConsumer) error {
	_, err := s.db.NamedExec(`
		INSERT INTO linked_consumers (consumer_name, topic, partition, group_id, offset_key, linked_at_ms)
		VALUES (:consumer_name, :topic, :partition, :group_id, :offset_key, :linked_at_ms)
		ON CONFLICT(consumer_name) DO UPDATE SET
			topic = excluded.topic,
			partition = excluded.partition,
			group_id = excluded.group_id,
			offset_key = excluded.offset_key,
			linked_at_ms = excluded.linked_at_ms
	`, c)
	if err != nil {
		return fmt.Errorf("metadata: record linked consumer %q: %w", c.ConsumerName, err)
	}
	return nil
}

// ListLinkedConsumers returns every consumer ever linked, most recently
// linked first.
func (s *Store) ListLinkedConsumers() ([]LinkedConsumer, error) {
	var rows []LinkedConsumer
	if err := s.db.Select(&rows, `SELECT consumer_name, topic, partition, group_id, offset_key, linked_at_ms FROM linked_consumers ORDER BY linked_at_ms DESC`); err != nil {
		return nil, fmt.Errorf("metadata: list linked consumers: %w", err)
	}
	return rows, nil
}

// CFGroupApplication is one row recording a column-family group having
// been applied during bootstrap step 2.
type CFGroupApplication struct {
	GroupName              string `db:"group_name"`
	StartShardIndex        int    `db:"start_shard_index"`
	LocalVirtualShardCount int    `db:"local_virtual_shard_count"`
	ShardIndexIncrement    int    `db:"shard_index_increment"`
	AppliedAtMs            int64  `db:"applied_at_ms"`
}

// RecordCFGroupApplied upserts the roster entry for a column-family
// group configuration applied during bootstrap.
func (s *Store) RecordCFGroupApplied(g CFGroupApplication) error {
	_, err := s.db.NamedExec(`
		INSERT INTO cf_groups (group_name, start_shard_index, local_virtual_shard_count, shard_index_increment, applied_at_ms)
		VALUES (:group_name, :start_shard_index, :local_virtual_shard_count, :shard_index_increment, :applied_at_ms)
		ON CONFLICT(group_name) DO UPDATE SET
			start_shard_index = excluded.start_shard_index,
			local_virtual_shard_count = excluded.local_virtual_shard_count,
			shard_index_increment = excluded.shard_index_increment,
			applied_at_ms = excluded.applied_at_ms
	`, g)
	if err != nil {
		return fmt.Errorf("metadata: record cf group %q: %w", g.GroupName, err)
	}
	return nil
}

// ListCFGroups returns every column-family group ever applied.
func (s *Store) ListCFGroups() ([]CFGroupApplication, error) {
	var rows []CFGroupApplication
	if err := s.db.Select(&rows, `SELECT group_name, start_shard_index, local_virtual_shard_count, shard_index_increment, applied_at_ms FROM cf_groups ORDER BY group_name`); err != nil {
		return nil, fmt.Errorf("metadata: list cf groups: %w", err)
	}
	return rows, nil
}

// OneOffFlagApplication is a log entry recording that a one-shot flag
// (§4.J step 3) was found applicable and took effect.
type OneOffFlagApplication struct {
	ID          int64  `db:"id"`
	FlagName    string `db:"flag_name"`
	FlagValue   string `db:"flag_value"`
	AppliedAtMs int64  `db:"applied_at_ms"`
}

// RecordOneOffFlagApplied appends a log entry for an applied one-shot
// flag. Unlike the roster tables this is append-only: the one-shot gate
// is a per-boot event, and operators need the full history, not just
// the latest application.
func (s *Store) RecordOneOffFlagApplied(flagName, flagValue string, appliedAtMs int64) error {
	_, err := s.db.Exec(`
		INSERT INTO applied_one_off_flags (flag_name, flag_value, applied_at_ms) VALUES (?, ?, ?)
	`, flagName, flagValue, appliedAtMs)
	if err != nil {
		return fmt.Errorf("metadata: record one-off flag %q: %w", flagName, err)
	}
	return nil
}

// ListAppliedOneOffFlags returns the full one-shot flag application
// history, most recent first.
func (s *Store) ListAppliedOneOffFlags() ([]OneOffFlagApplication, error) {
	var rows []OneOffFlagApplication
	if err := s.db.Select(&rows, `SELECT id, flag_name, flag_value, applied_at_ms FROM applied_one_off_flags ORDER BY id DESC`); err != nil {
		return nil, fmt.Errorf("metadata: list applied one-off flags: %w", err)
	}
	return rows, nil
}
