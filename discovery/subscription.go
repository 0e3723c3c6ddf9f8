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
	"fmt"
	"sync"
	"time"

	"github.com/COVESA/vsomeip-sub001/endpointmanager"
)

// SecurityAcceptOracle is the "configurable handler...consulted with
// the remote's (address, range, reliable)". On a deny the Subscribe entry
// is answered with a Nack (ttl=0) rather than dropped silently, and every
// previously-accepted subscription from that address is expired, whatever
// its port or reliability.
type SecurityAcceptOracle func(addr string, portRange endpointmanager.PortRange, reliable bool) bool

// RemoteSubscription is one accepted (or pending) subscriber of an
// eventgroup, keyed by the subscriber's reliable/unreliable endpoints.
type RemoteSubscription struct {
	Key      EventgroupKey
	Client   string // subscriber address, used as the identity for merging
	Reliable EndpointRef
	Unreliable EndpointRef
	Initial  bool

	remaining time.Duration
}

func subscriptionIdentity(key EventgroupKey, client string) string {
	return fmt.Sprintf("%d/%d/%d@%s", key.Service, key.Instance, key.Eventgroup, client)
}

// sameEndpoint compares two endpoint refs by value; EndpointRef embeds a
// net.IP slice, so it cannot use == directly.
func sameEndpoint(a, b EndpointRef) bool {
	return a.Address.Equal(b.Address) && a.Port == b.Port && a.Reliable == b.Reliable
}

// SubscriptionTable holds every accepted remote subscription, one per
// (eventgroup, subscriber address). A re-subscription carrying identical
// endpoints is merged by refreshing its expiration; one carrying different
// endpoints replaces the stored subscription. No parent/child link between
// overlapping subscriptions is kept.
type SubscriptionTable struct {
	mu   sync.Mutex
	subs map[string]*RemoteSubscription
}

func NewSubscriptionTable() *SubscriptionTable {
	return &SubscriptionTable{subs: make(map[string]*RemoteSubscription)}
}

// Upsert installs or refreshes a subscription. It reports whether the
// subscription was stored as new (true for a first subscription and for
// one that replaced a stored subscription with different endpoints; false
// means an existing one with identical endpoints was merged).
func (t *SubscriptionTable) Upsert(sub RemoteSubscription, ttl time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := subscriptionIdentity(sub.Key, sub.Client)
	existing, ok := t.subs[id]
	if ok && sameEndpoint(existing.Reliable, sub.Reliable) && sameEndpoint(existing.Unreliable, sub.Unreliable) {
		existing.remaining = ttl
		return false
	}
	sub.remaining = ttl
	t.subs[id] = &sub
	return true
}

// Remove drops one subscriber's subscription to an eventgroup.
func (t *SubscriptionTable) Remove(key EventgroupKey, client string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, subscriptionIdentity(key, client))
}

// ExpireFrom drops every subscription whose Client matches addr, used on
// reboot detection and on security-policy revocation.
func (t *SubscriptionTable) ExpireFrom(addr string) []RemoteSubscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []RemoteSubscription
	for id, s := range t.subs {
		if s.Client == addr {
			expired = append(expired, *s)
			delete(t.subs, id)
		}
	}
	return expired
}

// Tick deducts elapsed from every subscription's remaining TTL and
// returns (and removes) those that have reached zero.
func (t *SubscriptionTable) Tick(elapsed time.Duration) []RemoteSubscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []RemoteSubscription
	for id, s := range t.subs {
		s.remaining -= elapsed
		if s.remaining <= 0 {
			expired = append(expired, *s)
			delete(t.subs, id)
		}
	}
	return expired
}

// pendingAck is the acknowledgement collector for one inbound SD message
// carrying one or more Subscribe entries: the Ack batch is only emitted
// once every referenced subscription has resolved.
type pendingAck struct {
	mu        sync.Mutex
	remaining int
	onComplete func()
}

// NewPendingAck builds a collector for a batch of n subscriptions; once
// Resolve has been called n times, onComplete fires exactly once.
func NewPendingAck(n int, onComplete func()) *pendingAck {
	if n <= 0 {
		onComplete()
		return &pendingAck{remaining: 0, onComplete: onComplete}
	}
	return &pendingAck{remaining: n, onComplete: onComplete}
}

// Resolve marks one subscription in the batch as settled.
func (p *pendingAck) Resolve() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remaining <= 0 {
		return
	}
	p.remaining--
	if p.remaining == 0 {
		p.onComplete()
	}
}
