// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bootstrap

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/smyte-run/respkv/pipeline"
	"github.com/smyte-run/respkv/pkg/log"
	"github.com/smyte-run/respkv/resp"
)

// requestHandler is satisfied by both pipeline.Dispatcher and
// pipeline.TransactionalDispatcher; the server depends on this instead
// of a concrete type so either may bind the listening socket.
type requestHandler interface {
	HandleRequest(conn *pipeline.Conn, outcome resp.Outcome)
	CloseConn(conn *pipeline.Conn)
}

// readChunkSize is the per-Read buffer size for each connection's
// network socket.
const readChunkSize = 4096

// server binds the listening socket of §4.J step 10 and runs one
// read-decode-dispatch loop per accepted connection, matching the
// event-loop-per-connection model of §5: each connection gets its own
// Conn executor goroutine (via pipeline.Conn.Run) plus this read
// goroutine feeding it decoded requests.
type server struct {
	handler requestHandler
	counter pipeline.ConnCounter

	listener net.Listener
	nextID   atomic.Uint64
	wg       sync.WaitGroup

	connsMu sync.Mutex
	conns   map[uint64]net.Conn
}

func newServer(handler requestHandler) *server {
	return &server{handler: handler, conns: make(map[uint64]net.Conn)}
}

// listen binds addr (e.g. ":6380") without yet accepting connections,
// so the caller can observe bind failures before the rest of startup
// commits.
func (s *server) listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// serve accepts connections until the listener is closed by stop.
func (s *server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.counter.Inc()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *server) handleConn(netConn net.Conn) {
	id := s.nextID.Add(1)
	pc := pipeline.NewConn(id, netConn.RemoteAddr().String(), netConn)
	go pc.Run()

	s.connsMu.Lock()
	s.conns[id] = netConn
	s.connsMu.Unlock()
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, id)
		s.connsMu.Unlock()
	}()

	var buf resp.Buffer
	var dec resp.Decoder
	readBuf := make([]byte, readChunkSize)

	for {
		n, err := netConn.Read(readBuf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, readBuf[:n])
			buf.Append(chunk)

			for {
				outcome := dec.Decode(&buf)
				if outcome.Kind == resp.NeedMore {
					break
				}
				s.handler.HandleRequest(pc, outcome)
			}
		}
		if err != nil {
			pipeline.HandleClose(pc, s.handler, &s.counter)
			netConn.Close()
			return
		}
	}
}

// stop closes the listener, unblocking serve's Accept loop, force-closes
// every open connection so their blocked Read calls return, and waits
// for every connection's read loop goroutine to exit.
func (s *server) stop() {
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			log.Warnf("bootstrap: closing listener: %v", err)
		}
	}

	s.connsMu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
}
