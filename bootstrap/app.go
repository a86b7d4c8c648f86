// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bootstrap implements the strict startup/shutdown sequence of
// §4.J: parse configuration, open the ordered KV store, run the
// one-shot gate, initialize producers/database-manager/task-queue/
// consumers, then bind the listening socket and the operational HTTP
// endpoint. Grounded on cmd/cc-backend/main.go's ordering (config load,
// then dependent sub-systems in dependency order, then the listener
// bound last, privileges dropped, signal-driven graceful shutdown).
package bootstrap

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/smyte-run/respkv/internal/config"
	"github.com/smyte-run/respkv/internal/metadata"
	"github.com/smyte-run/respkv/kvstore"
	"github.com/smyte-run/respkv/kvstore/memengine"
	"github.com/smyte-run/respkv/logoffset"
	"github.com/smyte-run/respkv/logsource"
	"github.com/smyte-run/respkv/pipeline"
	"github.com/smyte-run/respkv/pkg/log"
	"github.com/smyte-run/respkv/pkg/runtimeEnv"
	"github.com/smyte-run/respkv/produce"
	"github.com/smyte-run/respkv/taskqueue"
)

// App holds every component initialized by New, in the order §4.J's
// reversed shutdown needs to tear them down.
type App struct {
	cfg config.Config
	now func() int64

	engine    kvstore.Engine
	catalog   *metadata.Store
	dbmgr     *databaseManager
	queue     *taskqueue.Queue
	producers map[string]*produce.Producer
	consumers []linkedConsumer
	offsets   *logoffset.Store

	httpSrv *operationalServer
	srv     *server
}

// defaultNow is the wall clock New passes to newWithClock; tests call
// newWithClock with a fixed clock instead, which keeps the one-shot
// gate's wall-clock comparison independently testable.
func defaultNow() int64 { return time.Now().UnixMilli() }

// New runs bootstrap steps 1-9 of §4.J: parses configuration is the
// caller's job (cfg is already parsed), opens the KV store, runs the
// one-shot gate, and initializes every component up to (but not
// including) binding the listening socket. Run performs step 10 and
// blocks; New alone is enough to drive the component in tests.
func New(cfg config.Config, opts Options) (*App, error) {
	return newWithClock(cfg, opts, defaultNow)
}

func newWithClock(cfg config.Config, opts Options, now func() int64) (*App, error) {
	a := &App{cfg: cfg, now: now}
	nowMs := now()

	// Step 2: open the KV store. No RocksDB binding exists anywhere in
	// the retrieval pack, so memengine — already the facade's reference
	// implementation — stands in; see kvstore's package doc comment.
	a.engine = memengine.New()

	catalogPath := opts.MetadataDBPath
	if catalogPath == "" {
		catalogPath = filepath.Join(cfg.Flags.RocksDBDBPath, "metadata.db")
	}
	catalog, err := metadata.Open(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open metadata catalog: %w", err)
	}
	a.catalog = catalog

	if err := materializeCFGroups(a.engine, cfg.Blobs, a.catalog, nowMs); err != nil {
		return nil, fmt.Errorf("bootstrap: materialize column families: %w", err)
	}

	// Step 3: one-shot gate.
	persisted, havePersisted, err := loadVersionTimestamp(a.engine)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load version timestamp: %w", err)
	}
	gateOpen := oneShotApplicable(cfg.Flags.VersionTimestampMs, persisted, havePersisted, nowMs)
	if gateOpen {
		log.Infof("bootstrap: one-shot gate open for version_timestamp_ms=%d", cfg.Flags.VersionTimestampMs)
		if cfg.Flags.RocksDBCreateIfMissingOneOff {
			if err := recordOneOffFlagApplied(a.catalog, "rocksdb_create_if_missing_one_off", "true", nowMs); err != nil {
				return nil, err
			}
		}
	} else {
		log.Infof("bootstrap: one-shot gate closed (supplied=%d persisted=%d havePersisted=%t)",
			cfg.Flags.VersionTimestampMs, persisted, havePersisted)
	}

	// Step 4: producers.
	producers, err := initProducers(cfg.Blobs.ProducerConfigs, opts.Publisher)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: init producers: %w", err)
	}
	a.producers = producers

	// Step 5: database-manager facade.
	a.dbmgr = newDatabaseManager(cfg.Blobs.CFGroupConfigs, cfg.Flags.MasterReplica)

	// Step 6: scheduled-task queue, only if a processor is registered.
	if opts.Processor != nil {
		a.queue = taskqueue.NewQueue(a.engine, opts.scheduledTaskCF(), opts.Processor)
	}

	// Step 7: consumers.
	a.offsets = logoffset.NewStore(a.engine, metadataCF)
	consumers, err := initConsumers(cfg.Blobs.ConsumerConfigs, opts.ConsumerFactories, a.engine, a.offsets, a.catalog, gateOpen, nowMs)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: init consumers: %w", err)
	}
	a.consumers = consumers

	// Step 8: start optional components, init-all-before-any-start
	// already holds since every component above was constructed before
	// any Start call below.
	if err := a.dbmgr.Start(); err != nil {
		return nil, fmt.Errorf("bootstrap: start database-manager: %w", err)
	}
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return nil, fmt.Errorf("bootstrap: start task queue: %w", err)
		}
	}
	for _, lc := range a.consumers {
		if err := lc.consumer.Init(logsource.Stored); err != nil {
			return nil, fmt.Errorf("bootstrap: consumer %q: init: %w", lc.name, err)
		}
	}
	for _, lc := range a.consumers {
		if err := lc.consumer.Start(consumerPollTimeoutMs); err != nil {
			return nil, fmt.Errorf("bootstrap: consumer %q: start: %w", lc.name, err)
		}
	}

	// Step 9: persist the applied version_timestamp_ms. Only advances
	// the persisted value if the gate was open; otherwise the supplied
	// flag was not applicable and leaves the prior value untouched.
	if gateOpen {
		if err := persistVersionTimestamp(a.engine, cfg.Flags.VersionTimestampMs); err != nil {
			return nil, fmt.Errorf("bootstrap: persist version timestamp: %w", err)
		}
	}

	dispatcher := pipeline.NewTransactionalDispatcher(newEngineAdapter(a.engine), opts.ReadyGate, opts.Commands)
	a.srv = newServer(dispatcher)
	a.httpSrv = newOperationalServer(httpAddr(cfg.Flags.Port), a.engine, &a.srv.counter)

	return a, nil
}

// consumerPollTimeoutMs bounds each ProcessBatch call's wait for new
// records; consumers loop this internally between Start and Stop.
const consumerPollTimeoutMs = 1000

// httpAddr derives the operational endpoint's bind address from the
// RESP port: one port higher, so both can run on the same host without
// a second configuration knob.
func httpAddr(respPort int) string {
	return fmt.Sprintf(":%d", respPort+1)
}

// Run binds the listening socket (§4.J step 10) and the operational
// HTTP endpoint, then blocks until SIGINT or SIGTERM, at which point it
// runs the reversed shutdown sequence and returns.
func (a *App) Run() error {
	if opts := a.cfg.Flags; opts.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return fmt.Errorf("bootstrap: gops agent: %w", err)
		}
	}

	if err := a.srv.listen(fmt.Sprintf(":%d", a.cfg.Flags.Port)); err != nil {
		return fmt.Errorf("bootstrap: bind %d: %w", a.cfg.Flags.Port, err)
	}

	// The listener must be established before dropping privileges: a
	// privileged port (e.g. below 1024) can only be bound while still
	// running as the original user.
	if err := runtimeEnv.DropPrivileges(a.cfg.Flags.User, a.cfg.Flags.Group); err != nil {
		return fmt.Errorf("bootstrap: drop privileges: %w", err)
	}

	go a.srv.serve()
	log.Infof("bootstrap: listening on :%d", a.cfg.Flags.Port)

	httpErrs := a.httpSrv.start()
	runtimeEnv.SystemdNotify(true, "running")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigs:
		log.Infof("bootstrap: signal received, shutting down")
	case err := <-httpErrs:
		if err != nil {
			log.Errorf("bootstrap: operational http server: %v", err)
		}
	}

	runtimeEnv.SystemdNotify(false, "stopping")
	a.Shutdown()
	return nil
}

// Shutdown reverses the startup sequence: stop server, stop consumers
// (each destroy), destroy the task queue, destroy each producer,
// destroy the database-manager, close the metadata catalog. The
// in-memory KV engine has no close step and is left as it is.
func (a *App) Shutdown() {
	a.httpSrv.stop()
	a.srv.stop()

	destroyConsumers(a.consumers)

	if a.queue != nil {
		a.queue.Stop()
		a.queue.Destroy()
	}

	destroyProducers(a.producers)

	a.dbmgr.Destroy()

	if err := a.catalog.Close(); err != nil {
		log.Warnf("bootstrap: closing metadata catalog: %v", err)
	}

	log.Infof("bootstrap: shutdown complete")
}
