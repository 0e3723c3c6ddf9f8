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
	"sync/atomic"

	"github.com/COVESA/vsomeip-sub001/endpoint"
	liberr "github.com/COVESA/vsomeip-sub001/errors"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"
	libsck "github.com/COVESA/vsomeip-sub001/socket"
	tcpcli "github.com/COVESA/vsomeip-sub001/socket/client/tcp"
	udpcli "github.com/COVESA/vsomeip-sub001/socket/client/udp"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"
)

// PortRange is the configured local-client-port range calls
// client_port_range: "allowed local client ports per (remote_ip,
// remote_port, reliable)".
type PortRange struct {
	Min uint16
	Max uint16
}

func (r PortRange) size() int {
	if r.Max < r.Min {
		return 0
	}
	return int(r.Max-r.Min) + 1
}

// bindTriple is the (remote_address, remote_port, reliable) scope 's
// bind-error recovery excludes already-tried ports against.
type bindTriple struct {
	Address  string
	Port     uint16
	Reliable bool
}

// ClientEndpoint is a remote client connection shared by every (service,
// instance) pair whose partition maps to the same ClientKey.
type ClientEndpoint struct {
	Key      ClientKey
	useCount int
	services map[ServiceInstance]struct{}

	transport libsck.Client
	connPtr   atomic.Pointer[endpoint.Connection]
}

// Send frames and enqueues msg on the endpoint's live connection. It fails
// with CodeConnectionLost if the connection is not currently established.
func (e *ClientEndpoint) Send(msg libsomeip.Message) error {
	conn := e.connPtr.Load()
	if conn == nil {
		return liberr.New(liberr.CodeConnectionLost, "endpointmanager: client endpoint not connected")
	}
	return conn.Send(msg)
}

// FindOrCreateRemoteClient returns the existing client endpoint for key,
// adding svc to its routed set, or dials a fresh one (tcp for
// key.Reliable, udp otherwise), rotating the local port from portRange on
// bind conflicts per the rules.
func (m *Manager) FindOrCreateRemoteClient(ctx context.Context, key ClientKey, cfg sckcfg.Client, portRange PortRange, svc ServiceInstance, onMessage endpoint.MessageHandler) (*ClientEndpoint, error) {
	m.mu.Lock()
	if e, ok := m.clients[key]; ok {
		e.useCount++
		e.services[svc] = struct{}{}
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()

	e := &ClientEndpoint{Key: key, useCount: 1, services: map[ServiceInstance]struct{}{svc: {}}}

	handler := func(c libsck.Context) {
		conn := endpoint.NewConnection(c, endpoint.ConnectionConfig{
			Framer:    endpoint.DefaultFramerConfig(),
			SendQueue: endpoint.SendQueueConfig{Logger: m.log},
		}, onMessage, m.log, nil)
		e.connPtr.Store(conn)
		m.reportClientConnect(key, svc)
		conn.Run()
		e.connPtr.Store(nil)
		m.reportClientDisconnect(key, svc)
	}

	triple := bindTriple{Address: key.Address, Port: key.Port, Reliable: key.Reliable}

	var transport libsck.Client
	var err error
	if key.Reliable {
		transport, err = tcpcli.New(nil, handler, cfg)
	} else {
		transport, err = udpcli.New(nil, handler, cfg)
	}
	if err != nil {
		return nil, err
	}
	e.transport = transport

	attempts := portRange.size()
	if attempts == 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if port, ok := m.nextClientPort(triple, portRange); ok {
			transport.SetLocalPort(int(port))
		}
		if err = transport.Connect(ctx); err == nil {
			break
		}
		m.markClientPortUsed(triple, uint16(transport.LocalPort()))
	}
	if err != nil {
		return nil, liberr.New(liberr.CodeNoClientPort, "endpointmanager: remote client connect exhausted port range", err)
	}

	m.mu.Lock()
	m.clients[key] = e
	m.mu.Unlock()
	m.clientGauge.Inc()
	return e, nil
}

// RemoveRemoteClient drops svc's registration and closes the connection
// once no (service, instance) pair references it anymore.
func (m *Manager) RemoveRemoteClient(key ClientKey, svc ServiceInstance) error {
	m.mu.Lock()
	e, ok := m.clients[key]
	if !ok {
		m.mu.Unlock()
		return liberr.New(liberr.CodeUnknownEndpoint, "endpointmanager: unknown remote client endpoint")
	}
	delete(e.services, svc)
	e.useCount--
	if e.useCount > 0 {
		m.mu.Unlock()
		return nil
	}
	delete(m.clients, key)
	m.mu.Unlock()

	m.clientGauge.Dec()
	return e.transport.Close()
}

// OnBindError implements the "On-bind-error (reused client socket):
// rotates the local port and returns whether retry is possible."
func (m *Manager) OnBindError(key ClientKey, portRange PortRange) (uint16, bool) {
	triple := bindTriple{Address: key.Address, Port: key.Port, Reliable: key.Reliable}
	port, ok := m.nextClientPort(triple, portRange)
	if ok {
		m.markClientPortUsed(triple, port)
	}
	return port, ok
}

func (m *Manager) nextClientPort(triple bindTriple, r PortRange) (uint16, bool) {
	if r.size() == 0 {
		return 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	used := m.usedClientPorts[triple]
	for p := r.Min; ; p++ {
		if _, tried := used[p]; !tried {
			return p, true
		}
		if p == r.Max {
			break
		}
	}
	return 0, false
}

func (m *Manager) markClientPortUsed(triple bindTriple, port uint16) {
	if port == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	used, ok := m.usedClientPorts[triple]
	if !ok {
		used = make(map[uint16]struct{})
		m.usedClientPorts[triple] = used
	}
	used[port] = struct{}{}
}
