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

// Package socket defines the shared server/client contract implemented by
// socket/server/{tcp,udp,unix} and socket/client/{tcp,udp,unix}. It is a
// thin interface layer over net.Listen/net.Dial — places "low-level
// socket primitives (open/bind/listen/connect/read/write...)" out of scope,
// so this package never touches a syscall directly, it only gives the
// endpoint layer (C1) a uniform Context/Server/Client shape to build framing,
// magic-cookie resync and send-queue semantics on top of.
package socket

import (
	"context"
	"errors"
	"net"
)

var (
	ErrInvalidAddress = errors.New("socket: invalid address")
	ErrInvalidHandler = errors.New("socket: invalid handler")
	ErrAlreadyRunning = errors.New("socket: already running")
	ErrNotRunning     = errors.New("socket: not running")
)

// Context is the per-connection (or, for UDP, per-datagram-source) handle a
// HandlerFunc receives. It is a net.Conn for TCP/unix; for UDP it wraps the
// shared socket plus the peer address so Write always goes back to that peer.
type Context interface {
	net.Conn
}

// HandlerFunc processes one accepted connection (TCP/unix) or one logical
// peer stream (UDP); it owns the Context until it returns or the server
// shuts down, running in its own goroutine per connection.
type HandlerFunc func(c Context)

// UpdateConnFunc lets the caller tweak a freshly accepted/dialed net.Conn
// (e.g. TCP_NODELAY, keep-alive) before the handler or endpoint wrapper sees
// it; this package does not set any such options itself, it only exposes
// the hook a caller could use for them.
type UpdateConnFunc func(c net.Conn)

// Server is the uniform lifecycle every socket/server/* implementation
// exposes: start listening/binding, graceful shutdown, and basic
// introspection used by the endpoint manager (C2) to report connected/
// established state and open-connection counts.
type Server interface {
	Listen(ctx context.Context) error
	Shutdown(ctx context.Context) error
	IsRunning() bool
	IsGone() bool
	Done() <-chan struct{}
	OpenConnections() int64
	LocalPort() int
}

// Client is the uniform lifecycle every socket/client/* implementation
// exposes.
type Client interface {
	Connect(ctx context.Context) error
	Close() error
	IsConnected() bool
	Send(b []byte) (int, error)
	LocalPort() int
	SetLocalPort(port int)
}
