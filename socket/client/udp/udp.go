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

// Package udp is the UDP flavor of socket.Client: a connected datagram
// socket dedicated to one remote (address, port), used by remote client
// endpoints dialing a remote service's unreliable port.
package udp

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	libsck "github.com/COVESA/vsomeip-sub001/socket"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"
)

var (
	ErrInvalidAddress = libsck.ErrInvalidAddress
	ErrInvalidHandler = libsck.ErrInvalidHandler
	ErrNotConnected   = libsck.ErrNotRunning
)

type ClientUdp interface {
	libsck.Client
}

type client struct {
	mu      sync.Mutex
	cfg     sckcfg.Client
	update  libsck.UpdateConnFunc
	handler libsck.HandlerFunc

	conn      *net.UDPConn
	connected atomic.Bool
	localPort atomic.Int64
}

func New(update libsck.UpdateConnFunc, handler libsck.HandlerFunc, cfg sckcfg.Client) (ClientUdp, error) {
	if cfg.Address == "" {
		return nil, ErrInvalidAddress
	}
	if handler == nil {
		return nil, ErrInvalidHandler
	}
	return &client{cfg: cfg, update: update, handler: handler}, nil
}

func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected.Load() {
		c.mu.Unlock()
		return libsck.ErrAlreadyRunning
	}

	remote, err := net.ResolveUDPAddr("udp", c.cfg.Address)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	var local *net.UDPAddr
	if p := c.localPort.Load(); p != 0 {
		local, err = net.ResolveUDPAddr("udp", ":"+strconv.Itoa(int(p)))
		if err != nil {
			c.mu.Unlock()
			return err
		}
	}

	conn, err := net.DialUDP("udp", local, remote)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if c.update != nil {
		c.update(conn)
	}
	c.conn = conn
	c.connected.Store(true)
	if a, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		c.localPort.Store(int64(a.Port))
	}
	c.mu.Unlock()

	go c.serve(conn)
	return nil
}

func (c *client) serve(conn net.Conn) {
	defer func() {
		c.mu.Lock()
		c.connected.Store(false)
		c.mu.Unlock()
	}()
	c.handler(conn)
}

func (c *client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.connected.Store(false)
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *client) IsConnected() bool { return c.connected.Load() }

func (c *client) Send(b []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || !c.connected.Load() {
		return 0, ErrNotConnected
	}
	return conn.Write(b)
}

func (c *client) LocalPort() int { return int(c.localPort.Load()) }

func (c *client) SetLocalPort(port int) { c.localPort.Store(int64(port)) }
