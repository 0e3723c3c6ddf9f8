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

package eventreg

import (
	"net"
	"sync"
)

// Reliability selects which transport an eventgroup's notifications use.
type Reliability int

const (
	ReliabilityUnknown Reliability = iota
	ReliabilityUnreliable
	ReliabilityReliable
	ReliabilityBoth
	ReliabilityAuto
)

// EventgroupID identifies one eventgroup within a (service, instance).
type EventgroupID struct {
	Service    uint16
	Instance   uint16
	Eventgroup uint16
}

// Eventgroup is the per-(service,instance,eventgroup) record: its member
// events, configured multicast channel, reliability mode and subscriber
// set. Reliability reads ReliabilityAuto when configured as auto until an
// event is added with a known reliability, which then fixes it, per the
// "auto means the first event added with a known reliability fixes it"
// invariant.
type Eventgroup struct {
	ID      EventgroupID
	Major   uint8
	TTL     uint32
	MaxRemoteSubscribers uint8

	mu           sync.Mutex
	events       map[EventID]*Event
	reliability  Reliability
	autoMode     bool
	mcastAddr    net.IP
	mcastPort    uint16
	threshold    uint8
	subscribers  map[uint16]*Subscriber

	selectiveActive   uint16
	selectiveHasOne   bool
}

func NewEventgroup(id EventgroupID, major uint8, ttl uint32, reliability Reliability) *Eventgroup {
	return &Eventgroup{
		ID:          id,
		Major:       major,
		TTL:         ttl,
		reliability: reliability,
		autoMode:    reliability == ReliabilityAuto,
		events:      make(map[EventID]*Event),
		subscribers: make(map[uint16]*Subscriber),
	}
}

// SetMulticast configures the eventgroup's multicast notification channel.
func (g *Eventgroup) SetMulticast(addr net.IP, port uint16, threshold uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mcastAddr = addr
	g.mcastPort = port
	g.threshold = threshold
}

// IsMulticast reports whether a multicast channel has been configured.
func (g *Eventgroup) IsMulticast() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mcastAddr != nil
}

// IsSendingMulticast reports whether the eventgroup should address its
// next notification to the multicast channel rather than unicast to each
// subscriber individually, based on the configured threshold.
func (g *Eventgroup) IsSendingMulticast() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mcastAddr != nil && len(g.subscribers) >= int(g.threshold)
}

// AddEvent registers an event as a member of this eventgroup, fixing the
// reliability mode on the first call when the group was configured auto.
func (g *Eventgroup) AddEvent(e *Event, eventReliability Reliability) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events[e.ID] = e
	if g.autoMode && g.reliability == ReliabilityAuto && eventReliability != ReliabilityUnknown {
		g.reliability = eventReliability
	}
}

// RemoveEvent drops an event from the eventgroup's member set.
func (g *Eventgroup) RemoveEvent(id EventID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.events, id)
}

// Events returns the eventgroup's current member events.
func (g *Eventgroup) Events() []*Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Event, 0, len(g.events))
	for _, e := range g.events {
		out = append(out, e)
	}
	return out
}

// Reliability reports the eventgroup's resolved reliability mode.
func (g *Eventgroup) Reliability() Reliability {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reliability
}

// IsSelective reports whether the eventgroup contains exactly one event of
// selective type, per the "selective iff exactly one selective event"
// rule.
func (g *Eventgroup) IsSelective() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	count := 0
	for _, e := range g.events {
		if e.Selective {
			count++
		}
	}
	return count == 1
}

// AddSubscriber registers a subscriber against this eventgroup, replacing
// any previous registration for the same client id.
func (g *Eventgroup) AddSubscriber(s *Subscriber) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscribers[s.ClientID] = s
	if s.Selective && !g.selectiveHasOne {
		g.selectiveActive = s.ClientID
		g.selectiveHasOne = true
	}
}

// RemoveSubscriber drops a subscriber's registration.
func (g *Eventgroup) RemoveSubscriber(clientID uint16) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.subscribers, clientID)
}

// Subscribers returns a snapshot of the eventgroup's current subscriber
// set.
func (g *Eventgroup) Subscribers() []*Subscriber {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Subscriber, 0, len(g.subscribers))
	for _, s := range g.subscribers {
		out = append(out, s)
	}
	return out
}

// SubscriberCount reports how many clients currently subscribe.
func (g *Eventgroup) SubscriberCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subscribers)
}

// SetSelectiveActive designates which subscribed client currently holds
// the eventgroup's single selective slot: only that client is notified on
// update, even though other clients remain subscribed. The first
// subscriber to a selective eventgroup is assigned the slot by default; a
// caller (routing) may reassign it explicitly.
func (g *Eventgroup) SetSelectiveActive(clientID uint16) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selectiveActive = clientID
	g.selectiveHasOne = true
}

// SelectiveActive reports the client currently holding the selective
// slot, if one has been assigned.
func (g *Eventgroup) SelectiveActive() (uint16, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selectiveActive, g.selectiveHasOne
}
