// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metadata is the operator-facing catalog supplementing §4.J's
// bootstrap sequence: a durable record of which consumers are linked,
// which column-family groups have been applied, and which one-shot
// flags actually took effect — observability the original design
// leaves implicit in the ordered KV store's own state. It is a sqlite
// side-table for the admin HTTP surface only, deliberately distinct
// from the hot-path kvstore.Engine (§1's "ordered KV engine" is never
// this store), grounded on the teacher's internal/repository package:
// sqlx over a sqlhooks-wrapped sqlite3 driver, schema-versioned with
// golang-migrate.
package metadata

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/qustavo/sqlhooks/v2"
	sqlite3driver "github.com/mattn/go-sqlite3"

	"github.com/smyte-run/respkv/pkg/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const driverName = "respkv-sqlite3-hooked"

var driverRegistered bool

// Store wraps the metadata catalog's database handle.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if absent) the sqlite metadata catalog at path
// and applies any pending migrations, mirroring
// internal/repository.Connect + checkDBVersion's open-then-migrate
// ordering.
func Open(path string) (*Store, error) {
	if !driverRegistered {
		sql.Register(driverName, sqlhooks.Wrap(&sqlite3driver.SQLiteDriver{}, &hooks{}))
		driverRegistered = true
	}

	db, err := sqlx.Open(driverName, fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("metadata: open %s: %w", path, err)
	}
	// sqlite does not benefit from concurrent writers; serialize access
	// through a single connection, same as the teacher's repository package.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("metadata: migration driver: %w", err)
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("metadata: migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("metadata: migration setup: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("metadata: migrate up: %w", err)
	}
	log.Infof("metadata: catalog at current schema version")
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
