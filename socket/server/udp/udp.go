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

// Package udp is the UDP flavor of socket.Server: a single socket handles
// all peers, demultiplexed into per-peer Context values keyed by remote
// (address, port) — the "For UDP, a single socket handles all peers;
// per-peer send queues are keyed by the remote endpoint."
package udp

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	libsck "github.com/COVESA/vsomeip-sub001/socket"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"
	"golang.org/x/net/ipv4"
)

var (
	ErrInvalidAddress = libsck.ErrInvalidAddress
	ErrInvalidHandler = libsck.ErrInvalidHandler
	ErrClosed         = errors.New("socket/server/udp: closed")
)

type ServerUdp interface {
	libsck.Server
	// Multicast joins the given multicast group on the server's bound
	// interface, used by the endpoint manager's multicast worker.
	Multicast(group net.IP) error
	MulticastLeave(group net.IP) error
}

const peerQueueDepth = 64

type peerCtx struct {
	srv    *server
	remote *net.UDPAddr
	in     chan []byte
	once   sync.Once
	closed chan struct{}
}

func (p *peerCtx) Read(b []byte) (int, error) {
	select {
	case data, ok := <-p.in:
		if !ok {
			return 0, net.ErrClosed
		}
		n := copy(b, data)
		return n, nil
	case <-p.closed:
		return 0, net.ErrClosed
	}
}

func (p *peerCtx) Write(b []byte) (int, error) {
	return p.srv.conn.WriteToUDP(b, p.remote)
}

func (p *peerCtx) Close() error {
	p.once.Do(func() {
		close(p.closed)
		p.srv.untrackPeer(p.remote.String())
	})
	return nil
}

func (p *peerCtx) LocalAddr() net.Addr  { return p.srv.conn.LocalAddr() }
func (p *peerCtx) RemoteAddr() net.Addr { return p.remote }

// net.Conn requires these three deadline methods; implemented as no-ops
// since SD/event traffic governs its own timeouts above this layer.
func (p *peerCtx) SetDeadline(t time.Time) error      { return nil }
func (p *peerCtx) SetReadDeadline(t time.Time) error  { return nil }
func (p *peerCtx) SetWriteDeadline(t time.Time) error { return nil }

type server struct {
	mu      sync.Mutex
	cfg     sckcfg.Server
	handler libsck.HandlerFunc

	conn    *net.UDPConn
	done    chan struct{}
	running atomic.Bool
	gone    atomic.Bool

	peersMu sync.Mutex
	peers   map[string]*peerCtx
	open    atomic.Int64
}

func New(update libsck.UpdateConnFunc, handler libsck.HandlerFunc, cfg sckcfg.Server) (ServerUdp, error) {
	if cfg.Address == "" {
		return nil, ErrInvalidAddress
	}
	if handler == nil {
		return nil, ErrInvalidHandler
	}
	s := &server{
		cfg:     cfg,
		handler: handler,
		done:    make(chan struct{}),
		peers:   make(map[string]*peerCtx),
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

	addr, err := net.ResolveUDPAddr("udp", s.cfg.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.conn = conn
	s.done = make(chan struct{})
	s.running.Store(true)
	s.gone.Store(false)
	s.mu.Unlock()

	go s.recvLoop()
	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()
	return nil
}

func (s *server) recvLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, remote, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			s.finish()
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.dispatch(remote, data)
	}
}

func (s *server) dispatch(remote *net.UDPAddr, data []byte) {
	key := remote.String()
	s.peersMu.Lock()
	p, ok := s.peers[key]
	if !ok {
		p = &peerCtx{srv: s, remote: remote, in: make(chan []byte, peerQueueDepth), closed: make(chan struct{})}
		s.peers[key] = p
		s.peersMu.Unlock()
		s.open.Add(1)
		go s.handler(p)
	} else {
		s.peersMu.Unlock()
	}

	select {
	case p.in <- data:
	case <-p.closed:
	default:
		// queue full: drop, matching UDP's no-ordering-guarantee contract.
	}
}

func (s *server) untrackPeer(key string) {
	s.peersMu.Lock()
	if _, ok := s.peers[key]; ok {
		delete(s.peers, key)
		s.open.Add(-1)
	}
	s.peersMu.Unlock()
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
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	// p.Close untracks the peer under peersMu, so close outside the lock.
	s.peersMu.Lock()
	peers := make([]*peerCtx, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.peersMu.Unlock()
	for _, p := range peers {
		_ = p.Close()
	}

	s.finish()
	return nil
}

func (s *server) Multicast(group net.IP) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}
	pc := ipv4.NewPacketConn(conn)
	return pc.JoinGroup(nil, &net.UDPAddr{IP: group})
}

func (s *server) MulticastLeave(group net.IP) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}
	pc := ipv4.NewPacketConn(conn)
	return pc.LeaveGroup(nil, &net.UDPAddr{IP: group})
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
	if s.conn == nil {
		return 0
	}
	if a, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		return a.Port
	}
	return 0
}
