// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package logoffset tracks committed and high-watermark offsets for a
// set of (topic, partition) pairs (§4.H): a small in-memory bookkeeping
// layer over the ordered KV facade, plus lag computation for the
// operational info text.
package logoffset

import (
	"fmt"
	"strconv"
	"strings"
)

// offsetKeyPrefix begins every persisted offset-bookkeeping key, per
// §6's persistent key layout.
const offsetKeyPrefix = "~kafka-offset~"

// OffsetKey returns the bookkeeping key for the (topic, partition,
// suffix) triple. suffix disambiguates multiple consumers configured
// against the same (topic, partition), e.g. distinct consumer groups;
// it is commonly empty.
func OffsetKey(topic string, partition int, suffix string) string {
	return fmt.Sprintf("%s%s~%d~%s", offsetKeyPrefix, topic, partition, suffix)
}

// EncodeOffset is decimal-ASCII encoding; negative sentinel values are
// allowed (used to seed special startup markers).
func EncodeOffset(n int64) string {
	return strconv.FormatInt(n, 10)
}

// DecodeOffset parses a value previously produced by EncodeOffset.
func DecodeOffset(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// pairEncodedLen is the exact length of an EncodePair result:
// two 20-digit fields joined by a colon.
const pairEncodedLen = 20 + 1 + 20

// EncodePair encodes an (offset, auxiliary) pair as two zero-padded
// 20-digit decimal fields joined by a colon. Both values must be
// non-negative.
func EncodePair(k, f int64) (string, error) {
	if k < 0 || f < 0 {
		return "", fmt.Errorf("logoffset: EncodePair requires non-negative values, got (%d, %d)", k, f)
	}
	return fmt.Sprintf("%020d:%020d", k, f), nil
}

// DecodePair is the inverse of EncodePair. It requires raw to be
// exactly pairEncodedLen bytes with a colon separator at the expected
// position and two valid decimal fields.
func DecodePair(raw string) (k, f int64, err error) {
	if len(raw) != pairEncodedLen {
		return 0, 0, fmt.Errorf("logoffset: DecodePair: expected %d bytes, got %d", pairEncodedLen, len(raw))
	}
	if raw[20] != ':' {
		return 0, 0, fmt.Errorf("logoffset: DecodePair: missing ':' separator")
	}
	k, err = strconv.ParseInt(raw[:20], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("logoffset: DecodePair: invalid first field: %w", err)
	}
	f, err = strconv.ParseInt(raw[21:], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("logoffset: DecodePair: invalid second field: %w", err)
	}
	return k, f, nil
}

// splitOffsetKey recovers (topic, partition, suffix) from a key
// produced by OffsetKey.
func splitOffsetKey(key string) (topic string, partition int, suffix string) {
	rest := strings.TrimPrefix(key, offsetKeyPrefix)
	parts := strings.SplitN(rest, "~", 3)
	if len(parts) != 3 {
		return key, 0, ""
	}
	p, err := strconv.Atoi(parts[1])
	if err != nil {
		return key, 0, ""
	}
	return parts[0], p, parts[2]
}
