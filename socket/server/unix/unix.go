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

// Package unix is the unix-domain-stream flavor of socket.Server, used for
// the routing-root local IPC endpoint (the "Routing-root creation").
package unix

import (
	"context"
	"net"
	"os"
	"sync"
	"sync/atomic"

	libsck "github.com/COVESA/vsomeip-sub001/socket"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"
)

var (
	ErrInvalidAddress = libsck.ErrInvalidAddress
	ErrInvalidHandler = libsck.ErrInvalidHandler
)

type ServerUnix interface {
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

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	open    atomic.Int64
}

func New(update libsck.UpdateConnFunc, handler libsck.HandlerFunc, cfg sckcfg.Server) (ServerUnix, error) {
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
		conns:   make(map[net.Conn]struct{}),
	}
	s.gone.Store(true)
	close(s.done)
	return s, nil
}

// Listen removes any stale socket path left by a prior crashed process
// before binding, per the "Local server creation".
func (s *server) Listen(ctx context.Context) error {
	s.mu.Lock()
	if s.running.Load() {
		s.mu.Unlock()
		return libsck.ErrAlreadyRunning
	}

	if _, err := os.Stat(s.cfg.Address); err == nil {
		_ = os.Remove(s.cfg.Address)
	}

	lis, err := net.Listen("unix", s.cfg.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.lis = lis
	s.done = make(chan struct{})
	s.running.Store(true)
	s.gone.Store(false)
	s.mu.Unlock()

	go s.acceptLoop()
	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()
	return nil
}

func (s *server) acceptLoop() {
	for {
		c, err := s.lis.Accept()
		if err != nil {
			s.finish()
			return
		}
		if s.update != nil {
			s.update(c)
		}
		s.connsMu.Lock()
		s.conns[c] = struct{}{}
		s.connsMu.Unlock()
		s.open.Add(1)
		go s.serve(c)
	}
}

func (s *server) serve(c net.Conn) {
	defer func() {
		s.connsMu.Lock()
		if _, ok := s.conns[c]; ok {
			delete(s.conns, c)
			s.open.Add(-1)
		}
		s.connsMu.Unlock()
	}()
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
	addr := s.cfg.Address
	s.mu.Unlock()

	if lis != nil {
		_ = lis.Close()
	}

	s.connsMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connsMu.Unlock()

	_ = os.Remove(addr)
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
func (s *server) LocalPort() int         { return 0 }
