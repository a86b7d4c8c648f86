// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bootstrap

import (
	"strconv"

	"github.com/smyte-run/respkv/internal/metadata"
	"github.com/smyte-run/respkv/kvstore"
)

// versionTimestampKey is the persistent key in smyte-metadata holding
// the last-applied version_timestamp_ms, per §6's key layout.
const versionTimestampKey = "VersionTimestamp"

// loadVersionTimestamp reads the persisted version timestamp, returning
// ok == false if none has ever been persisted.
func loadVersionTimestamp(engine kvstore.Engine) (int64, bool, error) {
	raw, found, err := engine.Get(metadataCF, versionTimestampKey)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// persistVersionTimestamp writes n as the persisted version timestamp.
func persistVersionTimestamp(engine kvstore.Engine, n int64) error {
	return engine.Put(metadataCF, versionTimestampKey, []byte(strconv.FormatInt(n, 10)))
}

// oneShotApplicable implements §4.J step 3's applicability test: a
// supplied version_timestamp_ms is applicable iff non-negative, not
// already past current wall-clock, and strictly greater than the
// persisted value (or none is persisted).
func oneShotApplicable(supplied int64, persisted int64, havePersisted bool, nowMs int64) bool {
	if supplied < 0 {
		return false
	}
	if supplied > nowMs {
		return false
	}
	if havePersisted && supplied <= persisted {
		return false
	}
	return true
}

// recordOneOffFlagApplied logs a one-shot flag application to the
// operator catalog. catalog may be nil in tests.
func recordOneOffFlagApplied(catalog *metadata.Store, flagName, flagValue string, nowMs int64) error {
	if catalog == nil {
		return nil
	}
	return catalog.RecordOneOffFlagApplied(flagName, flagValue, nowMs)
}
