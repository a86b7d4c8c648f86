// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import "sync"

// fakeEngine is a minimal in-memory stand-in for the real ordered KV
// facade (package kvstore), sufficient to exercise the dispatcher's
// built-in commands and transaction semantics in isolation.
type fakeEngine struct {
	mu       sync.Mutex
	data     map[string]map[string][]byte
	frozen   bool
	commits  int
	failNext bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{data: make(map[string]map[string][]byte)}
}

type fakeBatch struct {
	puts    []fakeWrite
	deletes []fakeWrite
}

type fakeWrite struct {
	cf, key string
	value   []byte
}

func (b *fakeBatch) Put(cf, key string, value []byte) {
	b.puts = append(b.puts, fakeWrite{cf, key, value})
}

func (b *fakeBatch) Delete(cf, key string) {
	b.deletes = append(b.deletes, fakeWrite{cf: cf, key: key})
}

func (e *fakeEngine) NewBatch() Batch { return &fakeBatch{} }

func (e *fakeEngine) Commit(b Batch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failNext {
		e.failNext = false
		return errCommitFailed
	}
	fb := b.(*fakeBatch)
	for _, w := range fb.puts {
		if e.data[w.cf] == nil {
			e.data[w.cf] = make(map[string][]byte)
		}
		e.data[w.cf][w.key] = w.value
	}
	for _, w := range fb.deletes {
		delete(e.data[w.cf], w.key)
	}
	e.commits++
	return nil
}

func (e *fakeEngine) Get(cf, key string) ([]byte, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.data[cf][key]
	return v, ok, nil
}

func (e *fakeEngine) Freeze() ([]string, error) { return []string{"MANIFEST-000001:128"}, nil }
func (e *fakeEngine) Thaw() error                { return nil }
func (e *fakeEngine) ForceCompact(string, []byte, []byte) {}
func (e *fakeEngine) Info() string     { return "respkv-test" }
func (e *fakeEngine) DBStats() string  { return "cf=smyte-metadata" }

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errCommitFailed = fakeErr("commit failed")
