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
	"sync"
	"time"

	liberr "github.com/COVESA/vsomeip-sub001/errors"
	liblog "github.com/COVESA/vsomeip-sub001/logger"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// DeliverFunc hands a fully-filtered notification to the transport layer;
// the registry never touches the wire itself, it only decides who should
// receive what. notifyAll may call it from several goroutines at once for
// a single notification, so implementations must be safe for concurrent
// use (the per-connection send queue in endpoint/ already is).
type DeliverFunc func(client uint16, id EventID, reliable bool, payload []byte)

// Config controls a Registry's dependencies.
type Config struct {
	Logger liblog.Logger
	Deliver DeliverFunc
}

// Registry is the top-level event/eventgroup/subscriber bookkeeping
// object: it owns every Event and Eventgroup for the process,
// wires each Event's NotifyAllFunc to fan out across its eventgroups'
// subscriber sets applying eligibility and the per-subscriber debounce
// filter, and exposes subscribe/unsubscribe entry points used by routing.
type Registry struct {
	log      liblog.Logger
	deliver  DeliverFunc

	mu          sync.Mutex
	events      map[EventID]*Event
	eventgroups map[EventgroupID]*Eventgroup

	subscriberGauge prometheus.Gauge
}

func New(cfg Config) *Registry {
	log := cfg.Logger
	if log == nil {
		log = liblog.Discard()
	}
	return &Registry{
		log:         log,
		deliver:     cfg.Deliver,
		events:      make(map[EventID]*Event),
		eventgroups: make(map[EventgroupID]*Eventgroup),
		subscriberGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "someip_eventreg_subscribers",
			Help: "Number of active (client, eventgroup) subscriptions.",
		}),
	}
}

// Collectors exposes the registry's Prometheus collectors for
// caller-owned registration.
func (r *Registry) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.subscriberGauge}
}

// ResendFields re-notifies every subscriber of each field event belonging
// to (service, instance) with that field's current payload, used to
// answer RESEND_PROVIDED_EVENTS after a provider reconnects: subscribers
// that missed updates while it was gone get caught up without waiting for
// the next cyclic tick or a fresh SetPayload call.
func (r *Registry) ResendFields(service, instance uint16) {
	r.mu.Lock()
	var fields []*Event
	for id, e := range r.events {
		if id.Service == service && id.Instance == instance && e.Field {
			fields = append(fields, e)
		}
	}
	r.mu.Unlock()

	for _, e := range fields {
		e.Resend()
	}
}

// AddEvent registers a new event, or returns the existing one if already
// registered under the same id.
func (r *Registry) AddEvent(id EventID, field, selective bool, updateOnChange, changeResetsCycle bool, cycle time.Duration) *Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[id]; ok {
		return e
	}
	e := NewEvent(id, field, r.notifyAll, r.deliverDirect)
	e.Selective = selective
	e.UpdateOnChange = updateOnChange
	e.ChangeResetsCycle = changeResetsCycle
	e.CyclePeriod = cycle
	r.events[id] = e
	return e
}

// FindEvent looks up a previously registered event.
func (r *Registry) FindEvent(id EventID) (*Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	return e, ok
}

// RemoveEvent stops and forgets an event.
func (r *Registry) RemoveEvent(id EventID) {
	r.mu.Lock()
	e, ok := r.events[id]
	delete(r.events, id)
	r.mu.Unlock()
	if ok {
		e.Close()
	}
}

// AddEventgroup registers a new eventgroup, or returns the existing one.
func (r *Registry) AddEventgroup(id EventgroupID, major uint8, ttl uint32, reliability Reliability) *Eventgroup {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.eventgroups[id]; ok {
		return g
	}
	g := NewEventgroup(id, major, ttl, reliability)
	r.eventgroups[id] = g
	return g
}

// FindEventgroup looks up a previously registered eventgroup.
func (r *Registry) FindEventgroup(id EventgroupID) (*Eventgroup, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.eventgroups[id]
	return g, ok
}

// RemoveEventgroup forgets an eventgroup.
func (r *Registry) RemoveEventgroup(id EventgroupID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.eventgroups, id)
}

// Subscribe attaches a subscriber to an eventgroup and immediately forces
// delivery of every member field's current payload (if any is set) to the
// new subscriber, bypassing the debounce filter for this one delivery.
// Plain events get no initial delivery.
func (r *Registry) Subscribe(gid EventgroupID, sub *Subscriber) error {
	r.mu.Lock()
	g, ok := r.eventgroups[gid]
	r.mu.Unlock()
	if !ok {
		return liberr.New(liberr.CodeUnknownEventgroup, "unknown eventgroup")
	}

	g.AddSubscriber(sub)
	r.subscriberGauge.Inc()

	if active, ok := g.SelectiveActive(); g.IsSelective() && ok && active != sub.ClientID {
		return nil
	}

	for _, e := range g.Events() {
		if !e.Field {
			continue
		}
		if e.IsSet() {
			if r.deliver != nil {
				r.deliver(sub.ClientID, e.ID, false, e.Payload())
			}
		} else {
			e.NotifyOne(sub.ClientID)
		}
	}
	return nil
}

// Unsubscribe detaches a subscriber from an eventgroup.
func (r *Registry) Unsubscribe(gid EventgroupID, clientID uint16) error {
	r.mu.Lock()
	g, ok := r.eventgroups[gid]
	r.mu.Unlock()
	if !ok {
		return liberr.New(liberr.CodeUnknownEventgroup, "unknown eventgroup")
	}
	if g.SubscriberCount() == 0 {
		return nil
	}
	g.RemoveSubscriber(clientID)
	r.subscriberGauge.Dec()
	return nil
}

// notifyAll is wired as every Event's NotifyAllFunc: it walks the event's
// member eventgroups' subscriber sets, applying selective eligibility and
// each subscriber's debounce filter before delivering. Deliveries for one
// notification fan out across a bounded worker group rather than one at a
// time, since a slow client's socket write must not delay delivery to
// every other subscriber.
func (r *Registry) notifyAll(id EventID, payload []byte) {
	r.mu.Lock()
	groups := make([]*Eventgroup, 0, len(r.eventgroups))
	for _, g := range r.eventgroups {
		groups = append(groups, g)
	}
	r.mu.Unlock()

	if r.deliver == nil {
		return
	}

	now := time.Now()
	var grp errgroup.Group
	grp.SetLimit(deliveryFanoutLimit)
	for _, g := range groups {
		member := false
		for _, e := range g.Events() {
			if e.ID == id {
				member = true
				break
			}
		}
		if !member {
			continue
		}
		reliable := g.Reliability() == ReliabilityReliable || g.Reliability() == ReliabilityBoth
		active, hasActive := g.SelectiveActive()
		selective := g.IsSelective()
		for _, sub := range g.Subscribers() {
			if selective && hasActive && sub.ClientID != active {
				continue
			}
			if !sub.Allow(id, payload, now) {
				continue
			}
			client := sub.ClientID
			grp.Go(func() error {
				r.deliver(client, id, reliable, payload)
				return nil
			})
		}
	}
	_ = grp.Wait()
}

// deliveryFanoutLimit bounds the number of concurrent deliver calls one
// notification can spawn, so a single busy event cannot open unbounded
// goroutines against a registry with many subscribers.
const deliveryFanoutLimit = 32

// deliverDirect is wired as every Event's direct NotifyFunc, used for
// flushing pending_ targets that registered via NotifyOne before the
// event had ever been set.
func (r *Registry) deliverDirect(client uint16, id EventID, payload []byte) {
	if r.deliver != nil {
		r.deliver(client, id, false, payload)
	}
}
