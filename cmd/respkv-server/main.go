// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command respkv-server runs the bare framework: an ordered RESP
// key/value service, scheduled-task queue, and log-consumer bookkeeping
// with no application-specific commands, processor, or consumers
// registered. Embedders typically do not invoke this binary directly;
// it exists so the framework is runnable and testable on its own,
// mirroring how cmd/cc-backend/main.go is itself a thin wiring layer
// over internal packages that could equally be embedded elsewhere.
package main

import (
	"fmt"
	"os"

	"github.com/smyte-run/respkv/bootstrap"
	"github.com/smyte-run/respkv/internal/config"
	"github.com/smyte-run/respkv/pkg/log"
	"github.com/smyte-run/respkv/pkg/runtimeEnv"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log.SetLogLevel("info")
	log.SetLogDateTime(true)

	if err := runtimeEnv.LoadEnv(cfg.Flags.EnvFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("respkv-server: loading %s: %s", cfg.Flags.EnvFile, err)
	}

	app, err := bootstrap.New(cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("respkv-server: %s", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("respkv-server: %s", err)
	}
}
