// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bootstrap

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smyte-run/respkv/kvstore/memengine"
	"github.com/smyte-run/respkv/pipeline"
)

func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	adapter := newEngineAdapter(memengine.New())
	d := pipeline.NewDispatcher(adapter, nil, nil)
	s := newServer(d)
	require.NoError(t, s.listen("127.0.0.1:0"))
	go s.serve()
	return s.listener.Addr().String(), s.stop
}

func TestServerRoundTripsPing(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("*1\r\n$4\r\nping\r\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "+PONG\r\n", line)
}

func TestServerPutThenGetMetaRoundTrips(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)

	_, err = conn.Write([]byte("*3\r\n$7\r\nsetmeta\r\n$1\r\nk\r\n$1\r\nv\r\n"))
	require.NoError(t, err)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "+OK\r\n", line)

	_, err = conn.Write([]byte("*2\r\n$7\r\ngetmeta\r\n$1\r\nk\r\n"))
	require.NoError(t, err)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "$1\r\n", line)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "v\r\n", line)
}

func TestServerStopClosesOpenConnections(t *testing.T) {
	addr, stop := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.Error(t, err)
}
