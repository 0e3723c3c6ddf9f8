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

package discovery

import (
	"sync"
	"time"
)

// ServiceTable holds every remote service learned from inbound
// OFFER_SERVICE entries, each with its own countdown to expiry.
type ServiceTable struct {
	mu       sync.Mutex
	services map[ServiceKey]*RemoteService
}

func NewServiceTable() *ServiceTable {
	return &ServiceTable{services: make(map[ServiceKey]*RemoteService)}
}

// Upsert installs or refreshes a remote service's entry and TTL.
func (s *ServiceTable) Upsert(svc RemoteService, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc.remaining = ttl
	s.services[svc.Key] = &svc
}

// Remove drops a remote service (stop-offer or TTL expiry).
func (s *ServiceTable) Remove(key ServiceKey) (RemoteService, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[key]
	if !ok {
		return RemoteService{}, false
	}
	delete(s.services, key)
	return *svc, true
}

// Find reports the current entry for key, if any.
func (s *ServiceTable) Find(key ServiceKey) (RemoteService, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[key]
	if !ok {
		return RemoteService{}, false
	}
	return *svc, true
}

// ExpireFrom removes and returns every service for which matches reports
// true, used when a peer reboot is detected (matching on From).
func (s *ServiceTable) ExpireFrom(matches func(RemoteService) bool) []RemoteService {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []RemoteService
	for key, svc := range s.services {
		if matches(*svc) {
			expired = append(expired, *svc)
			delete(s.services, key)
		}
	}
	return expired
}

// Tick deducts elapsed from every service's remaining TTL and returns
// (and removes) those that reached zero, per the single TTL-expiry
// timer that "deducts elapsed time from each remote service's remaining
// TTL."
func (s *ServiceTable) Tick(elapsed time.Duration) []RemoteService {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []RemoteService
	for key, svc := range s.services {
		svc.remaining -= elapsed
		if svc.remaining <= 0 {
			expired = append(expired, *svc)
			delete(s.services, key)
		}
	}
	return expired
}

// TTLExpiry is the single shared timer waking every cyclic_offer_delay/2
// to age out remote services and subscriptions.
type TTLExpiry struct {
	interval time.Duration
	services *ServiceTable
	subs     *SubscriptionTable
	onServiceExpired func(RemoteService)
	onSubExpired     func(RemoteSubscription)

	stop chan struct{}
}

func NewTTLExpiry(interval time.Duration, services *ServiceTable, subs *SubscriptionTable, onServiceExpired func(RemoteService), onSubExpired func(RemoteSubscription)) *TTLExpiry {
	return &TTLExpiry{
		interval:         interval,
		services:         services,
		subs:             subs,
		onServiceExpired: onServiceExpired,
		onSubExpired:     onSubExpired,
		stop:             make(chan struct{}),
	}
}

// Run ticks until Stop is called; intended to be launched with `go`.
func (e *TTLExpiry) Run() {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-e.stop:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			for _, svc := range e.services.Tick(elapsed) {
				if e.onServiceExpired != nil {
					e.onServiceExpired(svc)
				}
			}
			for _, sub := range e.subs.Tick(elapsed) {
				if e.onSubExpired != nil {
					e.onSubExpired(sub)
				}
			}
		}
	}
}

func (e *TTLExpiry) Stop() {
	close(e.stop)
}

// MulticastWatchdog re-triggers a multicast rejoin if no SD traffic has
// been observed on the multicast channel for 1.1x cyclic_offer_delay
// (the "defensive against silently lost joins").
type MulticastWatchdog struct {
	mu       sync.Mutex
	lastSeen time.Time
	timeout  time.Duration
	onStale  func()
	stop     chan struct{}
}

func NewMulticastWatchdog(cyclicOfferDelay time.Duration, onStale func()) *MulticastWatchdog {
	return &MulticastWatchdog{
		lastSeen: time.Now(),
		timeout:  time.Duration(float64(cyclicOfferDelay) * 1.1),
		onStale:  onStale,
		stop:     make(chan struct{}),
	}
}

// Observe records that a multicast SD message just arrived.
func (w *MulticastWatchdog) Observe() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeen = time.Now()
}

// Run polls at a quarter of the timeout interval until Stop is called.
func (w *MulticastWatchdog) Run() {
	interval := w.timeout / 4
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.mu.Lock()
			stale := time.Since(w.lastSeen) > w.timeout
			w.mu.Unlock()
			if stale && w.onStale != nil {
				w.onStale()
				w.Observe()
			}
		}
	}
}

func (w *MulticastWatchdog) Stop() {
	close(w.stop)
}
