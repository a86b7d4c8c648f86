// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config parses the administrative flags and JSON configuration
// blobs described in §6, following the teacher's flag-then-JSON split:
// flags own the scalar operational knobs (port, DB path, broker list,
// ...), the JSON file owns the structural blobs (column-family group
// configs, consumer/producer configs) that get validated against a
// JSON schema before being decoded with DisallowUnknownFields, exactly
// as internal/config.Init validates against pkg/schema.Config in the
// teacher.
package config

import (
	"flag"
)

// Flags holds the scalar administrative flags of §6. Fields suffixed
// OneOff only take effect when the bootstrap one-shot gate (§4.J step 3)
// finds them applicable.
type Flags struct {
	Port                         int
	RocksDBDBPath                string
	RocksDBParallelism           int
	RocksDBBlockCacheSizeMB      int
	RocksDBCreateIfMissing       bool
	RocksDBCreateIfMissingOneOff bool
	KafkaBrokerList              string
	MasterReplica                bool
	VersionTimestampMs           int64

	ConfigFile string
	Gops       bool

	EnvFile string
	User    string
	Group   string
}

// ParseFlags parses args (typically os.Args[1:]) into a Flags value.
// A flag.FlagSet is used instead of the package-level flag.CommandLine
// so tests can parse independent argument sets.
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("respkv-server", flag.ContinueOnError)

	fs.IntVar(&f.Port, "port", 6380, "TCP port to listen on")
	fs.StringVar(&f.RocksDBDBPath, "rocksdb_db_path", "./var/respkv-db", "column-family store directory")
	fs.IntVar(&f.RocksDBParallelism, "rocksdb_parallelism", 2, "background thread parallelism hint")
	fs.IntVar(&f.RocksDBBlockCacheSizeMB, "rocksdb_block_cache_size_mb", 128, "block cache size in MB")
	fs.BoolVar(&f.RocksDBCreateIfMissing, "rocksdb_create_if_missing", true, "create the store directory if absent")
	fs.BoolVar(&f.RocksDBCreateIfMissingOneOff, "rocksdb_create_if_missing_one_off", false, "one-shot: force-create missing required column families")
	fs.StringVar(&f.KafkaBrokerList, "kafka_broker_list", "", "comma-separated broker addresses")
	fs.BoolVar(&f.MasterReplica, "master_replica", false, "whether this instance is the master replica")
	fs.Int64Var(&f.VersionTimestampMs, "version_timestamp_ms", -1, "one-shot version timestamp; negative means unset")
	fs.StringVar(&f.ConfigFile, "config", "./config.json", "path to the JSON config file holding the structural blobs")
	fs.BoolVar(&f.Gops, "gops", false, "listen via github.com/google/gops/agent (for debugging)")
	fs.StringVar(&f.EnvFile, "env_file", "./.env", "optional .env file loaded into the process environment at startup")
	fs.StringVar(&f.User, "user", "", "drop privileges to this user after binding the listening socket")
	fs.StringVar(&f.Group, "group", "", "drop privileges to this group after binding the listening socket")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}
