// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"strconv"
	"time"

	"github.com/smyte-run/respkv/resp"
)

// metaCF is the column family backing the getmeta/setmeta commands and
// the persistent bookkeeping keys described in §6 (VersionTimestamp,
// offset entries).
const metaCF = "smyte-metadata"

// builtins returns the always-available command table described in
// §4.D/§6. User-registered commands of the same name, merged in by
// NewDispatcher, take precedence over these.
func (d *Dispatcher) builtins() CommandTable {
	return CommandTable{
		"ping": {MinArgs: 0, MaxArgs: 0, Fn: func(_ *Conn, _ int64, _ Batch, _ []string) resp.Value {
			return resp.SimpleStringValue("PONG")
		}},
		"select": {MinArgs: 1, MaxArgs: 1, Fn: func(_ *Conn, _ int64, _ Batch, _ []string) resp.Value {
			return resp.SimpleStringValue("OK")
		}},
		"info": {MinArgs: 0, MaxArgs: 1, Fn: func(_ *Conn, _ int64, _ Batch, args []string) resp.Value {
			if len(args) == 1 && args[0] == "dbstats" {
				return resp.BulkStringValue(d.engine.DBStats())
			}
			return resp.BulkStringValue(d.engine.Info())
		}},
		"monitor": {MinArgs: 0, MaxArgs: 0, Fn: func(c *Conn, _ int64, _ Batch, _ []string) resp.Value {
			d.registry.Add(c)
			return resp.SimpleStringValue("OK")
		}},
		"freeze": {MinArgs: 0, MaxArgs: 0, Fn: func(_ *Conn, _ int64, _ Batch, _ []string) resp.Value {
			files, err := d.engine.Freeze()
			if err != nil {
				return resp.Errorf("ERR freeze failed: %s", err.Error())
			}
			return resp.BulkStringArrayValue(files)
		}},
		"thaw": {MinArgs: 0, MaxArgs: 0, Fn: func(_ *Conn, _ int64, _ Batch, _ []string) resp.Value {
			if err := d.engine.Thaw(); err != nil {
				return resp.Errorf("ERR thaw failed: %s", err.Error())
			}
			return resp.SimpleStringValue("OK")
		}},
		"compact": {MinArgs: 0, MaxArgs: 3, Fn: func(_ *Conn, _ int64, _ Batch, args []string) resp.Value {
			var cf string
			var start, end []byte
			switch len(args) {
			case 0:
			case 1:
				cf = args[0]
			case 3:
				cf = args[0]
				start = []byte(args[1])
				end = []byte(args[2])
			default:
				return resp.ErrorValue("ERR compact takes 0, 1, or 3 arguments")
			}
			// Runs on a detached worker and never blocks the connection's
			// executor; the response is sent before compaction finishes.
			d.engine.ForceCompact(cf, start, end)
			return resp.SimpleStringValue("OK")
		}},
		"getmeta": {MinArgs: 1, MaxArgs: 1, Fn: func(_ *Conn, _ int64, _ Batch, args []string) resp.Value {
			value, found, err := d.engine.Get(metaCF, args[0])
			if err != nil {
				return resp.Errorf("ERR getmeta failed: %s", err.Error())
			}
			if !found {
				return resp.Null()
			}
			return resp.BulkStringValue(string(value))
		}},
		"setmeta": {MinArgs: 2, MaxArgs: 2, Fn: func(_ *Conn, _ int64, batch Batch, args []string) resp.Value {
			batch.Put(metaCF, args[0], []byte(args[1]))
			return resp.SimpleStringValue("OK")
		}},
		"sleep": {MinArgs: 1, MaxArgs: 1, Fn: func(_ *Conn, _ int64, _ Batch, args []string) resp.Value {
			ms, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return resp.Errorf("ERR value is not an integer or out of range")
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
			return resp.SimpleStringValue("OK")
		}},
		"ready": {MinArgs: 0, MaxArgs: 0, Fn: func(_ *Conn, _ int64, _ Batch, _ []string) resp.Value {
			return resp.SimpleStringValue(d.ready.Ready())
		}},
		"setready": {MinArgs: 0, MaxArgs: 0, Fn: func(_ *Conn, _ int64, _ Batch, _ []string) resp.Value {
			return resp.SimpleStringValue(d.ready.SetReady(true))
		}},
	}
}
