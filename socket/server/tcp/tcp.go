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

// Package tcp is the TCP flavor of socket.Server: one accept loop, one
// goroutine per accepted connection, tracked by remote (address, port).
package tcp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	libsck "github.com/COVESA/vsomeip-sub001/socket"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"
)

var (
	ErrInvalidAddress = libsck.ErrInvalidAddress
	ErrInvalidHandler = libsck.ErrInvalidHandler
)

type ServerTcp interface {
	libsck.Server
}

type server struct {
	mu      sync.Mutex
	cfg     sckcfg.Server
	update  libsck.UpdateConnFunc
	handler libsck.HandlerFunc

	lis     net.Listener
	done    chan struct{}
	running atomic.Bool
	gone    atomic.Bool

	conns   map[string]net.Conn
	connsMu sync.Mutex
	open    atomic.Int64
}

// New validates cfg eagerly, returning ErrInvalidAddress from the
// constructor itself rather than deferring the check to Listen.
func New(update libsck.UpdateConnFunc, handler libsck.HandlerFunc, cfg sckcfg.Server) (ServerTcp, error) {
	if cfg.Address == "" {
		return nil, ErrInvalidAddress
	}
	if handler == nil {
		return nil, ErrInvalidHandler
	}
	s := &server{
		cfg:     cfg,
		update:  update,
		handler: handler,
		done:    make(chan struct{}),
		conns:   make(map[string]net.Conn),
	}
	s.gone.Store(true)
	close(s.done)
	return s, nil
}

func (s *server) Listen(ctx context.Context) error {
	s.mu.Lock()
	if s.running.Load() {
		s.mu.Unlock()
		return libsck.ErrAlreadyRunning
	}

	network := s.cfg.Network.String()
	if network == "" {
		network = "tcp"
	}
	lis, err := net.Listen(network, s.cfg.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.lis = lis
	s.done = make(chan struct{})
	s.running.Store(true)
	s.gone.Store(false)
	s.mu.Unlock()

	go s.acceptLoop(ctx)

	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()

	return nil
}

func (s *server) acceptLoop(ctx context.Context) {
	for {
		c, err := s.lis.Accept()
		if err != nil {
			s.finish()
			return
		}
		if s.update != nil {
			s.update(c)
		}
		s.trackConn(c)
		go s.serve(c)
	}
}

func (s *server) trackConn(c net.Conn) {
	s.connsMu.Lock()
	s.conns[c.RemoteAddr().String()] = c
	s.connsMu.Unlock()
	s.open.Add(1)
}

func (s *server) untrackConn(c net.Conn) {
	s.connsMu.Lock()
	if _, ok := s.conns[c.RemoteAddr().String()]; ok {
		delete(s.conns, c.RemoteAddr().String())
		s.open.Add(-1)
	}
	s.connsMu.Unlock()
}

func (s *server) serve(c net.Conn) {
	defer s.untrackConn(c)
	s.handler(c)
}

func (s *server) finish() {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		return
	}
	s.running.Store(false)
	s.gone.Store(true)
	done := s.done
	s.mu.Unlock()
	select {
	case <-done:
	default:
		close(done)
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		return nil
	}
	lis := s.lis
	s.mu.Unlock()

	if lis != nil {
		_ = lis.Close()
	}

	s.connsMu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}

	s.finish()
	return nil
}

func (s *server) IsRunning() bool { return s.running.Load() }
func (s *server) IsGone() bool    { return s.gone.Load() }

func (s *server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *server) OpenConnections() int64 { return s.open.Load() }

func (s *server) LocalPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return 0
	}
	if a, ok := s.lis.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}
