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
	"net"
	"sync"
	"time"

	"github.com/COVESA/vsomeip-sub001/endpointmanager"
	liberr "github.com/COVESA/vsomeip-sub001/errors"
	"github.com/COVESA/vsomeip-sub001/eventreg"
	liblog "github.com/COVESA/vsomeip-sub001/logger"
	"github.com/COVESA/vsomeip-sub001/routing"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"
	"github.com/hashicorp/go-multierror"
)

// SendFunc transmits one SD message to dest ("" meaning the configured
// multicast group).
type SendFunc func(dest string, sd libsomeip.SDMessage) error

// ReliableConnectedFunc reports whether an established TCP connection
// from addr already exists, consulted before accepting a reliable
// subscription.
type ReliableConnectedFunc func(addr string, port uint16) bool

// Deps bundles Discovery's collaborators: the routing host for offer/
// subscribe access control and event delivery, the event registry for
// initial-event dispatch, and the transport-facing hooks this package
// does not implement itself (actual UDP send, reliable-connection
// lookup).
type Deps struct {
	Host              *routing.Host
	Registry          *eventreg.Registry
	Send              SendFunc
	Accept            SecurityAcceptOracle
	ReliableConnected ReliableConnectedFunc
	OwnAddress        net.IP
	Subnet            *net.IPNet
	OnAvailability    AvailabilityHandler
	OnReboot          RebootHandler
	Logger            liblog.Logger
}

// Discovery is the SD component: phase-machine-driven offer/find
// emission, inbound entry processing, reboot/session tracking, and TTL
// expiry, all built on the someip wire codec.
type Discovery struct {
	cfg  Config
	deps Deps
	log  liblog.Logger

	services *ServiceTable
	subs     *SubscriptionTable
	reboot   *RebootTracker
	session  *SessionCounter
	ttl      *TTLExpiry
	watchdog *MulticastWatchdog

	mu            sync.Mutex
	offers        map[ServiceKey]*OfferTimers
	offerDebounce map[ServiceKey]*time.Timer
}

func New(cfg Config, deps Deps) *Discovery {
	log := deps.Logger
	if log == nil {
		log = liblog.Discard()
	}

	d := &Discovery{
		cfg:           cfg,
		deps:          deps,
		log:           log,
		services:      NewServiceTable(),
		subs:          NewSubscriptionTable(),
		reboot:        NewRebootTracker(),
		session:       NewSessionCounter(),
		offers:        make(map[ServiceKey]*OfferTimers),
		offerDebounce: make(map[ServiceKey]*time.Timer),
	}
	d.ttl = NewTTLExpiry(cfg.CyclicOfferDelay.ToDuration()/2, d.services, d.subs, d.onServiceExpired, d.onSubscriptionExpired)
	d.watchdog = NewMulticastWatchdog(cfg.CyclicOfferDelay.ToDuration(), d.onMulticastStale)
	return d
}

// Run starts the TTL-expiry and multicast watchdog background loops.
func (d *Discovery) Run() {
	go d.ttl.Run()
	go d.watchdog.Run()
}

// Stop tears down background loops and every active offer's timers.
func (d *Discovery) Stop() {
	d.ttl.Stop()
	d.watchdog.Stop()
	d.mu.Lock()
	for _, t := range d.offers {
		t.Stop()
	}
	for key, t := range d.offerDebounce {
		t.Stop()
		delete(d.offerDebounce, key)
	}
	d.mu.Unlock()
}

func (d *Discovery) onServiceExpired(svc RemoteService) {
	d.log.Infof("discovery: service %04x/%04x expired", svc.Key.Service, svc.Key.Instance)
	if d.deps.OnAvailability != nil {
		d.deps.OnAvailability(svc, false)
	}
}

func (d *Discovery) onSubscriptionExpired(sub RemoteSubscription) {
	if d.deps.Registry != nil {
		gid := eventreg.EventgroupID{Service: sub.Key.Service, Instance: sub.Key.Instance, Eventgroup: sub.Key.Eventgroup}
		_ = d.deps.Registry.Unsubscribe(gid, 0)
	}
}

// onMulticastStale only logs the stale multicast channel; the multicast
// membership itself is not left or re-joined here.
func (d *Discovery) onMulticastStale() {
	d.log.Warnf("discovery: no multicast SD traffic observed recently")
}

// OfferService starts (or restarts) the SD phase machine for a locally
// offered service, building Offer entries from the given endpoints. Rapid
// repeat calls for a key that is already offered are coalesced within
// OfferDebounceTime rather than restarting the phase machine on every call.
func (d *Discovery) OfferService(key ServiceKey, major uint8, minor uint32, reliable, unreliable EndpointRef) {
	d.mu.Lock()
	_, alreadyOffered := d.offers[key]
	debounce := d.cfg.OfferDebounceTime.ToDuration()
	if alreadyOffered && debounce > 0 {
		if t, ok := d.offerDebounce[key]; ok {
			t.Stop()
		}
		d.offerDebounce[key] = time.AfterFunc(debounce, func() {
			d.startOffer(key, major, minor, reliable, unreliable)
		})
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	d.startOffer(key, major, minor, reliable, unreliable)
}

func (d *Discovery) startOffer(key ServiceKey, major uint8, minor uint32, reliable, unreliable EndpointRef) {
	life := routing.NewOfferLifecycle()
	timers := NewOfferTimers(d.cfg, life, func() {
		entry := libsomeip.Entry{
			Type:         libsomeip.EntryOfferService,
			ServiceID:    key.Service,
			InstanceID:   key.Instance,
			MajorVersion: major,
			TTL:          d.cfg.TTL,
			MinorVersion: minor,
		}
		d.sendEntries("", []libsomeip.Entry{entry}, endpointOptions(reliable, unreliable))
	})

	d.mu.Lock()
	if old, ok := d.offers[key]; ok {
		old.Stop()
	}
	d.offers[key] = timers
	d.mu.Unlock()

	timers.Start()
}

// StopOfferService withdraws a local offer, emitting a ttl=0 entry unless
// the offer never left its initial collection phase.
func (d *Discovery) StopOfferService(key ServiceKey) {
	d.mu.Lock()
	timers, ok := d.offers[key]
	delete(d.offers, key)
	if t, ok := d.offerDebounce[key]; ok {
		t.Stop()
		delete(d.offerDebounce, key)
	}
	d.mu.Unlock()
	if !ok {
		return
	}

	if silent := timers.StopSilently(); !silent {
		entry := libsomeip.Entry{
			Type:       libsomeip.EntryOfferService,
			ServiceID:  key.Service,
			InstanceID: key.Instance,
			TTL:        0,
		}
		d.sendEntries("", []libsomeip.Entry{entry}, nil)
	}
}

func (d *Discovery) sendEntries(dest string, entries []libsomeip.Entry, options []libsomeip.Option) {
	if d.deps.Send == nil {
		return
	}
	_, reboot := d.session.Next(dest)
	sd := libsomeip.SDMessage{Reboot: reboot, UnicastSupport: true, Entries: entries, Options: options}
	if err := d.deps.Send(dest, sd); err != nil {
		d.log.Warnf("discovery: SD send failed: %v", err)
	}
}

func endpointOptions(reliable, unreliable EndpointRef) []libsomeip.Option {
	var options []libsomeip.Option
	if reliable.Address != nil {
		options = append(options, encodeEndpointOption(reliable, L4TCP))
	}
	if unreliable.Address != nil {
		options = append(options, encodeEndpointOption(unreliable, L4UDP))
	}
	return options
}

func encodeEndpointOption(ref EndpointRef, proto byte) libsomeip.Option {
	ip4 := ref.Address.To4()
	payload := []byte{ip4[0], ip4[1], ip4[2], ip4[3], 0, proto, byte(ref.Port >> 8), byte(ref.Port)}
	return libsomeip.Option{Type: libsomeip.OptionIPv4Endpoint, Payload: payload}
}

// HandleInbound processes one received SD message: reboot
// detection first, then every entry in turn. fromAddr identifies the
// sender for reboot/subscription bookkeeping; session is the SOME/IP
// header's session id for that message.
func (d *Discovery) HandleInbound(fromAddr string, dir Direction, session uint16, sd libsomeip.SDMessage) {
	if d.reboot.Observe(fromAddr, dir, session, sd.Reboot) {
		d.handleReboot(fromAddr)
	}
	if dir == DirectionMulticast {
		d.watchdog.Observe()
	}

	var ackEntries []libsomeip.Entry
	subscribeCount := 0
	for _, e := range sd.Entries {
		if e.Type == libsomeip.EntrySubscribeEventgroup {
			subscribeCount++
		}
	}
	batch := NewPendingAck(subscribeCount, func() {
		if len(ackEntries) > 0 {
			d.sendEntries(fromAddr, ackEntries, nil)
		}
	})

	// Entries within one SD message are processed independently: one
	// malformed entry must not abort the rest, so failures are collected
	// rather than returned, and logged together once the message is fully
	// processed.
	var errs *multierror.Error
	for _, e := range sd.Entries {
		switch e.Type {
		case libsomeip.EntryFindService:
			d.handleFind(fromAddr, e)
		case libsomeip.EntryOfferService:
			d.handleOffer(fromAddr, e)
		case libsomeip.EntrySubscribeEventgroup:
			ack, err := d.handleSubscribeEntry(fromAddr, e, sd.Options)
			if err != nil {
				errs = multierror.Append(errs, err)
			}
			ackEntries = append(ackEntries, ack)
			batch.Resolve()
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		d.log.Warnf("discovery: %d subscribe entr(ies) from %s rejected: %v", len(errs.Errors), fromAddr, err)
	}
}

func (d *Discovery) handleReboot(addr string) {
	d.reboot.Forget(addr)
	expired := d.services.ExpireFrom(func(s RemoteService) bool { return s.From != nil && s.From.String() == addr })
	for _, svc := range expired {
		d.onServiceExpired(svc)
	}
	for _, sub := range d.subs.ExpireFrom(addr) {
		d.onSubscriptionExpired(sub)
	}
	if d.deps.OnReboot != nil {
		d.deps.OnReboot(net.ParseIP(addr))
	}
}

func (d *Discovery) handleFind(fromAddr string, e libsomeip.Entry) {
	if d.deps.Host == nil {
		return
	}
	key := ServiceKey{Service: e.ServiceID, Instance: e.InstanceID}
	off, ok := d.deps.Host.FindOffer(key)
	if !ok {
		return
	}
	entry := libsomeip.Entry{
		Type:         libsomeip.EntryOfferService,
		ServiceID:    key.Service,
		InstanceID:   key.Instance,
		MajorVersion: off.Major,
		TTL:          d.cfg.TTL,
		MinorVersion: off.Minor,
	}
	d.sendEntries(fromAddr, []libsomeip.Entry{entry}, nil)
}

func (d *Discovery) handleOffer(fromAddr string, e libsomeip.Entry) {
	key := ServiceKey{Service: e.ServiceID, Instance: e.InstanceID}
	if e.TTL == 0 {
		if svc, ok := d.services.Remove(key); ok {
			d.onServiceExpired(svc)
		}
		return
	}

	ttl := d.cfg.applyTTLFactorOffer(key, e.TTL)
	svc := RemoteService{Key: key, Major: e.MajorVersion, Minor: e.MinorVersion, From: net.ParseIP(fromAddr)}
	d.services.Upsert(svc, time.Duration(ttl)*time.Second)
	if d.deps.OnAvailability != nil {
		d.deps.OnAvailability(svc, true)
	}
}

// handleSubscribeEntry applies step 3's validation pipeline to one
// Subscribe entry. A non-nil error means the entry was rejected (nack
// returned alongside it); a nil error with a ttl=0 nack means the peer
// itself asked to unsubscribe, which is not a failure worth reporting.
func (d *Discovery) handleSubscribeEntry(fromAddr string, e libsomeip.Entry, options []libsomeip.Option) (libsomeip.Entry, error) {
	nack := libsomeip.Entry{
		Type:         libsomeip.EntrySubscribeEventAck,
		ServiceID:    e.ServiceID,
		InstanceID:   e.InstanceID,
		EventgroupID: e.EventgroupID,
		TTL:          0,
	}

	gid := EventgroupKey{Service: e.ServiceID, Instance: e.InstanceID, Eventgroup: e.EventgroupID}

	if err := ValidateSubscribeOptions(options, d.deps.OwnAddress, d.deps.Subnet); err != nil {
		return nack, err
	}
	if e.TTL == 0 {
		return nack, nil
	}

	reliable, unreliable, err := splitEndpointOptions(options)
	if err != nil {
		return nack, err
	}

	if d.deps.Accept != nil {
		rng := endpointmanager.PortRange{Min: reliable.Port, Max: reliable.Port}
		if !reliable.Reliable {
			rng = endpointmanager.PortRange{Min: unreliable.Port, Max: unreliable.Port}
		}
		if !d.deps.Accept(fromAddr, rng, reliable.Address != nil) {
			d.subs.ExpireFrom(fromAddr)
			return nack, liberr.New(liberr.CodeSubscribeNacked, "discovery: subscribe rejected by security policy")
		}
	}
	if reliable.Address != nil && d.deps.ReliableConnected != nil && !d.deps.ReliableConnected(fromAddr, reliable.Port) {
		return nack, liberr.New(liberr.CodeSubscribeNacked, "discovery: no established reliable connection for subscriber")
	}

	ttl := d.cfg.applyTTLFactorSubscribe(gid, e.TTL)
	d.subs.Upsert(RemoteSubscription{Key: gid, Client: fromAddr, Reliable: reliable, Unreliable: unreliable, Initial: true}, time.Duration(ttl)*time.Second)

	if d.deps.Host != nil {
		sub := eventreg.NewSubscriber(0, nil)
		hostGID := eventreg.EventgroupID{Service: gid.Service, Instance: gid.Instance, Eventgroup: gid.Eventgroup}
		if err := d.deps.Host.Subscribe(routing.SecClient{}, 0, hostGID, routing.AnyEvent, sub); err != nil {
			return nack, err
		}
	}

	return libsomeip.Entry{
		Type:         libsomeip.EntrySubscribeEventAck,
		ServiceID:    e.ServiceID,
		InstanceID:   e.InstanceID,
		EventgroupID: e.EventgroupID,
		TTL:          e.TTL,
	}, nil
}

func splitEndpointOptions(options []libsomeip.Option) (reliable, unreliable EndpointRef, err error) {
	for _, o := range options {
		if !isEndpointOption(o) {
			continue
		}
		ref, isReliable, decErr := decodeEndpointOption(o)
		if decErr != nil {
			return EndpointRef{}, EndpointRef{}, decErr
		}
		if isReliable {
			reliable = ref
		} else {
			unreliable = ref
		}
	}
	return reliable, unreliable, nil
}
