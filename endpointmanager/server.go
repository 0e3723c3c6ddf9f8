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
	"fmt"

	liberr "github.com/COVESA/vsomeip-sub001/errors"
	"github.com/COVESA/vsomeip-sub001/endpoint"
	libptc "github.com/COVESA/vsomeip-sub001/network/protocol"
	libsck "github.com/COVESA/vsomeip-sub001/socket"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"
	tcpsrv "github.com/COVESA/vsomeip-sub001/socket/server/tcp"
	udpsrv "github.com/COVESA/vsomeip-sub001/socket/server/udp"
)

// ServerEndpoint is a remote-facing listening endpoint shared by every
// (service, instance) pair bound to its (port, reliable) key.
type ServerEndpoint struct {
	Key       ServerKey
	transport libsck.Server
	useCount  int
	services  map[ServiceInstance]struct{}
}

func (e *ServerEndpoint) LocalPort() int { return e.transport.LocalPort() }

// FindOrCreateServerEndpoint returns the existing server endpoint for key,
// incrementing its use count, or dials a fresh tcp/udp listener (tcp for
// reliable=true, udp otherwise) and starts it with ctx.
func (m *Manager) FindOrCreateServerEndpoint(ctx context.Context, key ServerKey, cfg sckcfg.Server, svc ServiceInstance, onMessage endpoint.MessageHandler) (*ServerEndpoint, error) {
	m.mu.Lock()
	if e, ok := m.servers[key]; ok {
		e.useCount++
		e.services[svc] = struct{}{}
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()

	handler := func(c libsck.Context) {
		m.reportConnect(key, c)
		conn := endpoint.NewConnection(c, endpoint.ConnectionConfig{
			Framer:        endpoint.DefaultFramerConfig(),
			SendQueue:     endpoint.SendQueueConfig{QueueLimit: int(cfg.QueueLimit), SendTimeout: cfg.SendTimeout.ToDuration(), Logger: m.log},
			CookieEnabled: false,
		}, onMessage, m.log, nil)
		conn.Run()
		m.reportDisconnect(key, c)
	}

	var transport libsck.Server
	var err error
	if key.Reliable {
		cfg.Network = libptc.NetworkTCP
		transport, err = tcpsrv.New(nil, handler, cfg)
	} else {
		cfg.Network = libptc.NetworkUDP
		transport, err = udpsrv.New(nil, handler, cfg)
	}
	if err != nil {
		return nil, err
	}
	if err := transport.Listen(ctx); err != nil {
		return nil, liberr.New(liberr.CodeBindConflict, fmt.Sprintf("endpointmanager: bind port %d failed", key.Port), err)
	}

	e := &ServerEndpoint{
		Key:       key,
		transport: transport,
		useCount:  1,
		services:  map[ServiceInstance]struct{}{svc: {}},
	}
	m.mu.Lock()
	m.servers[key] = e
	m.mu.Unlock()
	m.serverGauge.Inc()
	return e, nil
}

// RemoveServerEndpoint drops svc's registration and, once the use count
// reaches zero, shuts the listener down. Per, the removal only takes
// effect "when use-count is zero."
func (m *Manager) RemoveServerEndpoint(ctx context.Context, key ServerKey, svc ServiceInstance) error {
	m.mu.Lock()
	e, ok := m.servers[key]
	if !ok {
		m.mu.Unlock()
		return liberr.New(liberr.CodeUnknownEndpoint, "endpointmanager: unknown server endpoint")
	}
	delete(e.services, svc)
	e.useCount--
	if e.useCount > 0 {
		m.mu.Unlock()
		return nil
	}
	delete(m.servers, key)
	m.mu.Unlock()

	m.serverGauge.Dec()
	return e.transport.Shutdown(ctx)
}

func (m *Manager) reportConnect(key ServerKey, c libsck.Context) {
	m.mu.Lock()
	e, ok := m.servers[key]
	var services []ServiceInstance
	if ok {
		for s := range e.services {
			services = append(services, s)
		}
	}
	onConnect := m.onConnect
	m.mu.Unlock()

	if onConnect == nil {
		return
	}
	for _, s := range services {
		onConnect(s, key.Reliable, c.RemoteAddr().String())
	}
}

func (m *Manager) reportDisconnect(key ServerKey, c libsck.Context) {
	m.mu.Lock()
	e, ok := m.servers[key]
	var services []ServiceInstance
	if ok {
		for s := range e.services {
			services = append(services, s)
		}
	}
	onDisconnect := m.onDisconnect
	m.mu.Unlock()

	if onDisconnect == nil {
		return
	}
	for _, s := range services {
		onDisconnect(s, key.Reliable, c.RemoteAddr().String())
	}
}
