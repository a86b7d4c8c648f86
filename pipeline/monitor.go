// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smyte-run/respkv/resp"
)

// MonitorRegistry tracks every connection currently in MONITOR mode and
// fans a formatted copy of each successfully dispatched command out to
// them. It is guarded by a single mutex held only across insert, remove,
// and iterate — never while writing to a target connection, since a
// broadcast must be posted to each target's own executor rather than
// written from the source connection's goroutine.
type MonitorRegistry struct {
	mu       sync.Mutex
	monitors map[*Conn]struct{}
}

// NewMonitorRegistry returns an empty registry.
func NewMonitorRegistry() *MonitorRegistry {
	return &MonitorRegistry{monitors: make(map[*Conn]struct{})}
}

// Add registers c as a monitor.
func (r *MonitorRegistry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitors[c] = struct{}{}
}

// Remove unregisters c, a no-op if it was not registered.
func (r *MonitorRegistry) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.monitors, c)
}

// Broadcast formats (source, args) as a MONITOR line and posts it to every
// registered connection's own executor, excluding source itself.
func (r *MonitorRegistry) Broadcast(source *Conn, args []string) {
	r.mu.Lock()
	targets := make([]*Conn, 0, len(r.monitors))
	for c := range r.monitors {
		if c != source {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	line := formatMonitorLine(time.Now(), source.RemoteAddr(), args)
	v := resp.SimpleStringValue(line)
	for _, c := range targets {
		target := c
		target.Post(func() {
			target.writeUnsolicited(v)
		})
	}
}

func formatMonitorLine(t time.Time, remote string, args []string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(t.Unix(), 10))
	b.WriteByte('.')
	us := t.Nanosecond() / 1000
	usStr := strconv.Itoa(us)
	for len(usStr) < 6 {
		usStr = "0" + usStr
	}
	b.WriteString(usStr)
	b.WriteString(" [0 ")
	b.WriteString(remote)
	b.WriteString("]")
	for _, a := range args {
		b.WriteString(` "`)
		b.WriteString(escapeMonitorArg(a))
		b.WriteString(`"`)
	}
	return b.String()
}

func escapeMonitorArg(s string) string {
	if !strings.ContainsAny(s, "\\\"\r\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
