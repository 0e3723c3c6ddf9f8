/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package endpointmanager

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	liberr "github.com/COVESA/vsomeip-sub001/errors"
	libsck "github.com/COVESA/vsomeip-sub001/socket"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"
	unixsrv "github.com/COVESA/vsomeip-sub001/socket/server/unix"
	"github.com/coreos/go-systemd/v22/activation"
)

// LocalConnection is whatever the routing layer uses to address one
// connected local client over the routing root's unix listener. It carries
// local IPC command frames, not SOME/IP PDUs, so it is kept as a
// plain io.WriteCloser rather than the network-facing endpoint.Connection.
type LocalConnection interface {
	io.WriteCloser
}

// FindOrCreateLocalServer builds the routing root, the local unix-domain
// listener every in-process client dials (the "Local server creation").
// On POSIX with exactly one socket-activated descriptor, it adopts that
// descriptor instead of binding; otherwise it removes a stale socket path
// and binds fresh. The returned bool reports whether activation was used.
func (m *Manager) FindOrCreateLocalServer(ctx context.Context, cfg sckcfg.Server, handler libsck.HandlerFunc) (libsck.Server, bool, error) {
	listeners, err := activation.Listeners()
	if err == nil && len(listeners) == 1 {
		srv := newActivatedServer(listeners[0], handler)
		srv.start(ctx)
		return srv, true, nil
	}

	srv, err := unixsrv.New(nil, handler, cfg)
	if err != nil {
		return nil, false, err
	}
	if err := srv.Listen(ctx); err != nil {
		return nil, false, liberr.New(liberr.CodeSocketActivation, "endpointmanager: routing root bind failed", err)
	}
	return srv, false, nil
}

// activatedServer wraps a pre-bound net.Listener (handed down by systemd
// socket activation) behind libsck.Server, since socket/server/unix only
// knows how to bind a fresh path itself.
type activatedServer struct {
	lis     net.Listener
	handler libsck.HandlerFunc

	done    chan struct{}
	running atomic.Bool
	open    atomic.Int64

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

func newActivatedServer(lis net.Listener, handler libsck.HandlerFunc) *activatedServer {
	return &activatedServer{
		lis:     lis,
		handler: handler,
		done:    make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}
}

func (s *activatedServer) start(ctx context.Context) {
	s.running.Store(true)
	go s.acceptLoop()
	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()
}

func (s *activatedServer) acceptLoop() {
	for {
		conn, err := s.lis.Accept()
		if err != nil {
			return
		}
		s.connsMu.Lock()
		s.conns[conn] = struct{}{}
		s.connsMu.Unlock()
		s.open.Add(1)
		go func() {
			defer func() {
				s.connsMu.Lock()
				delete(s.conns, conn)
				s.connsMu.Unlock()
				s.open.Add(-1)
				_ = conn.Close()
			}()
			s.handler(conn)
		}()
	}
}

func (s *activatedServer) Listen(context.Context) error { return libsck.ErrAlreadyRunning }

func (s *activatedServer) Shutdown(context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	err := s.lis.Close()
	s.connsMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connsMu.Unlock()
	close(s.done)
	return err
}

func (s *activatedServer) IsRunning() bool         { return s.running.Load() }
func (s *activatedServer) IsGone() bool            { return !s.running.Load() }
func (s *activatedServer) Done() <-chan struct{}   { return s.done }
func (s *activatedServer) OpenConnections() int64  { return s.open.Load() }
func (s *activatedServer) LocalPort() int          { return 0 }

// Local clients: every application process connected to the routing root
// gets one local endpoint keyed by its assigned client id ('s
// local client lifecycle). This is the "find_or_create_local" half of
// — it tracks connections, not sockets, since the socket itself is a
// single shared unix listener owned by FindOrCreateLocalServer.
type localClients struct {
	mu      sync.Mutex
	clients map[uint16]LocalConnection
}

func newLocalClients() *localClients {
	return &localClients{clients: make(map[uint16]LocalConnection)}
}

func (l *localClients) register(clientID uint16, conn LocalConnection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients[clientID] = conn
}

func (l *localClients) remove(clientID uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, clientID)
}

func (l *localClients) find(clientID uint16) (LocalConnection, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clients[clientID]
	return c, ok
}
