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
	"sync"

	liblog "github.com/COVESA/vsomeip-sub001/logger"
	libsck "github.com/COVESA/vsomeip-sub001/socket"
	"github.com/prometheus/client_golang/prometheus"
)

// ConnectHandler is invoked when a routed (service, instance) pair's
// endpoint transitions to connected/established; see the on-connect
// rule about reliable+unreliable pairs only reporting once both legs are
// up (that aggregation lives one layer up, in routing, which is the only
// caller that knows about the reliable/unreliable pairing).
type ConnectHandler func(svc ServiceInstance, reliable bool, remoteAddr string)

// DisconnectHandler reports the on-disconnect: "reports unavailability
// for each (service, instance) routed through the endpoint."
type DisconnectHandler func(svc ServiceInstance, reliable bool, remoteAddr string)

// Manager owns every server endpoint, remote client endpoint, and the
// multicast join/leave worker. All maps are guarded by mu; the lock is
// never held while invoking a callback or blocking on a transport call,
// matching the "restructure to never call out with a lock held."
type Manager struct {
	mu      sync.Mutex
	servers map[ServerKey]*ServerEndpoint
	clients map[ClientKey]*ClientEndpoint

	usedClientPorts map[bindTriple]map[uint16]struct{}

	onConnect    ConnectHandler
	onDisconnect DisconnectHandler

	log liblog.Logger

	mcast  *multicastWorker
	locals *localClients

	serverGauge prometheus.Gauge
	clientGauge prometheus.Gauge
}

// Config carries the handful of manager-wide knobs that aren't per-call
// parameters.
type Config struct {
	Logger       liblog.Logger
	OnConnect    ConnectHandler
	OnDisconnect DisconnectHandler
}

func New(cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = liblog.Discard()
	}
	m := &Manager{
		servers:         make(map[ServerKey]*ServerEndpoint),
		clients:         make(map[ClientKey]*ClientEndpoint),
		usedClientPorts: make(map[bindTriple]map[uint16]struct{}),
		onConnect:       cfg.OnConnect,
		onDisconnect:    cfg.OnDisconnect,
		log:             log,
		serverGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "someip_endpointmanager_server_endpoints",
			Help: "Number of active server endpoints (listening sockets).",
		}),
		clientGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "someip_endpointmanager_client_endpoints",
			Help: "Number of active remote client endpoints.",
		}),
	}
	m.mcast = newMulticastWorker(log)
	m.locals = newLocalClients()
	return m
}

// RegisterLocalClient associates an accepted local-routing connection with
// its assigned client id.
func (m *Manager) RegisterLocalClient(clientID uint16, conn LocalConnection) {
	m.locals.register(clientID, conn)
}

func (m *Manager) RemoveLocalClient(clientID uint16) {
	m.locals.remove(clientID)
}

func (m *Manager) FindLocalClient(clientID uint16) (LocalConnection, bool) {
	return m.locals.find(clientID)
}

// Collectors exposes the manager's prometheus gauges for registration by
// the caller's own registry, letting the application own the registry
// rather than using the global default.
func (m *Manager) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.serverGauge, m.clientGauge}
}

func (m *Manager) reportClientConnect(key ClientKey, svc ServiceInstance) {
	if m.onConnect == nil {
		return
	}
	m.onConnect(svc, key.Reliable, key.Address)
}

func (m *Manager) reportClientDisconnect(key ClientKey, svc ServiceInstance) {
	if m.onDisconnect == nil {
		return
	}
	m.onDisconnect(svc, key.Reliable, key.Address)
}

// Shutdown stops the multicast worker and tears down every tracked server
// and client endpoint. It is best-effort: the first error is remembered
// and returned after every endpoint has had a chance to close.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mcast.stop()

	m.mu.Lock()
	servers := make([]libsck.Server, 0, len(m.servers))
	for _, e := range m.servers {
		servers = append(servers, e.transport)
	}
	clients := make([]libsck.Client, 0, len(m.clients))
	for _, e := range m.clients {
		clients = append(clients, e.transport)
	}
	m.servers = make(map[ServerKey]*ServerEndpoint)
	m.clients = make(map[ClientKey]*ClientEndpoint)
	m.mu.Unlock()

	var first error
	for _, s := range servers {
		if err := s.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	for _, c := range clients {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
