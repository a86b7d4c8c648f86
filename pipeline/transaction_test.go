// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smyte-run/respkv/resp"
)

func TestTransactionMultiExecCommitsAllWrites(t *testing.T) {
	engine := newFakeEngine()
	td := NewTransactionalDispatcher(engine, nil, nil)
	c, w := newTestConn(1)
	defer c.Close()

	td.HandleRequest(c, decodeOutcome(t, "*1\r\n$5\r\nmulti\r\n"))
	w.waitForWrite(t)
	require.Equal(t, "+OK\r\n", w.String())

	td.HandleRequest(c, decodeOutcome(t, encodeStr(resp.BulkStringArrayValue([]string{"setmeta", "a", "1"}))))
	w.waitForWrite(t)
	td.HandleRequest(c, decodeOutcome(t, encodeStr(resp.BulkStringArrayValue([]string{"setmeta", "b", "2"}))))
	w.waitForWrite(t)

	td.HandleRequest(c, decodeOutcome(t, "*1\r\n$4\r\nexec\r\n"))
	w.waitForWrite(t)

	assert.Contains(t, w.String(), "*2\r\n+OK\r\n+OK\r\n")

	va, found, _ := engine.Get(metaCF, "a")
	require.True(t, found)
	assert.Equal(t, "1", string(va))
	vb, found, _ := engine.Get(metaCF, "b")
	require.True(t, found)
	assert.Equal(t, "2", string(vb))
}

// scenario 5 from the end-to-end walkthrough: MULTI, setmeta (queued OK),
// getmeta with zero args (arg-count error, error_seen set), EXEC. The
// whole transaction must be discarded, so the queued setmeta must never
// reach the store.
func TestTransactionScenarioMidTransactionErrorDiscardsEverything(t *testing.T) {
	engine := newFakeEngine()
	td := NewTransactionalDispatcher(engine, nil, nil)
	c, w := newTestConn(1)
	defer c.Close()

	td.HandleRequest(c, decodeOutcome(t, "*1\r\n$5\r\nmulti\r\n"))
	w.waitForWrite(t)

	td.HandleRequest(c, decodeOutcome(t, encodeStr(resp.BulkStringArrayValue([]string{"setmeta", "k", "v"}))))
	w.waitForWrite(t)
	require.Equal(t, "+OK\r\n+QUEUED\r\n", w.String())

	// getmeta with zero args: arg-count failure, sets error_seen, responds
	// with the standard arg-count error, and must NOT be queued.
	td.HandleRequest(c, decodeOutcome(t, encodeStr(resp.BulkStringArrayValue([]string{"getmeta"}))))
	w.waitForWrite(t)
	assert.Equal(t, "+OK\r\n+QUEUED\r\n-Wrong number of arguments for 'getmeta' command\r\n", w.String())

	td.HandleRequest(c, decodeOutcome(t, "*1\r\n$4\r\nexec\r\n"))
	w.waitForWrite(t)
	assert.Equal(t, "+OK\r\n+QUEUED\r\n-Wrong number of arguments for 'getmeta' command\r\n"+
		"-Transaction discarded because of previous errors\r\n", w.String())

	// the setmeta must not have executed.
	_, found, _ := engine.Get(metaCF, "k")
	assert.False(t, found)

	td.HandleRequest(c, decodeOutcome(t, encodeStr(resp.BulkStringArrayValue([]string{"getmeta", "k"}))))
	w.waitForWrite(t)
	assert.Equal(t, "+OK\r\n+QUEUED\r\n-Wrong number of arguments for 'getmeta' command\r\n"+
		"-Transaction discarded because of previous errors\r\n$-1\r\n", w.String())
}

func TestTransactionMultiCannotNest(t *testing.T) {
	td := NewTransactionalDispatcher(newFakeEngine(), nil, nil)
	c, w := newTestConn(1)
	defer c.Close()

	td.HandleRequest(c, decodeOutcome(t, "*1\r\n$5\r\nmulti\r\n"))
	w.waitForWrite(t)
	td.HandleRequest(c, decodeOutcome(t, "*1\r\n$5\r\nmulti\r\n"))
	w.waitForWrite(t)
	assert.Equal(t, "+OK\r\n-MULTI calls cannot be nested\r\n", w.String())
}

func TestTransactionExecWithoutMulti(t *testing.T) {
	td := NewTransactionalDispatcher(newFakeEngine(), nil, nil)
	c, w := newTestConn(1)
	defer c.Close()

	td.HandleRequest(c, decodeOutcome(t, "*1\r\n$4\r\nexec\r\n"))
	w.waitForWrite(t)
	assert.Equal(t, "-EXEC without MULTI\r\n", w.String())
}

func TestTransactionUnknownQueuedCommandDiscardsTransaction(t *testing.T) {
	engine := newFakeEngine()
	td := NewTransactionalDispatcher(engine, nil, nil)
	c, w := newTestConn(1)
	defer c.Close()

	td.HandleRequest(c, decodeOutcome(t, "*1\r\n$5\r\nmulti\r\n"))
	w.waitForWrite(t)

	td.HandleRequest(c, decodeOutcome(t, encodeStr(resp.BulkStringArrayValue([]string{"bogus"}))))
	w.waitForWrite(t)
	assert.Equal(t, "+OK\r\n-Unknown command: 'bogus'\r\n", w.String())

	td.HandleRequest(c, decodeOutcome(t, "*1\r\n$4\r\nexec\r\n"))
	w.waitForWrite(t)
	assert.Equal(t, "+OK\r\n-Unknown command: 'bogus'\r\n-Transaction discarded because of previous errors\r\n", w.String())
}

func TestTransactionOrdinaryCommandOutsideTransactionCommitsImmediately(t *testing.T) {
	engine := newFakeEngine()
	td := NewTransactionalDispatcher(engine, nil, nil)
	c, w := newTestConn(1)
	defer c.Close()

	td.HandleRequest(c, decodeOutcome(t, encodeStr(resp.BulkStringArrayValue([]string{"setmeta", "x", "y"}))))
	w.waitForWrite(t)
	assert.Equal(t, "+OK\r\n", w.String())

	v, found, _ := engine.Get(metaCF, "x")
	require.True(t, found)
	assert.Equal(t, "y", string(v))
}
