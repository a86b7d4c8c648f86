// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

// Config is everything bootstrap needs: the scalar flags plus the
// structural JSON blobs.
type Config struct {
	Flags Flags
	Blobs Blobs
}

// Load parses args into Flags, then loads and validates the JSON config
// file Flags.ConfigFile points at — flags first, then JSON, matching
// the ambient-stack ordering decision in SPEC_FULL §0.
func Load(args []string) (Config, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return Config{}, err
	}
	blobs, err := LoadBlobs(flags.ConfigFile)
	if err != nil {
		return Config{}, err
	}
	return Config{Flags: flags, Blobs: blobs}, nil
}
