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

// Package discovery implements SOME/IP-SD: the offer/find phase
// machine, reboot and session tracking, subscription processing, and TTL
// expiry that sit on top of the wire codec in someip and feed availability
// and subscription decisions back into routing.
package discovery

import (
	"net"
	"time"

	libdur "github.com/COVESA/vsomeip-sub001/duration"
	"github.com/COVESA/vsomeip-sub001/endpointmanager"
)

// ServiceKey identifies a (service, instance) pair, shared with the
// endpoint manager and routing's own notion of the same tuple.
type ServiceKey = endpointmanager.ServiceInstance

// EventgroupKey identifies one eventgroup of one service instance.
type EventgroupKey struct {
	Service    uint16
	Instance   uint16
	Eventgroup uint16
}

// Config bundles every SD timer and policy knob the configuration table
// lists for the discovery component.
type Config struct {
	TTL                   uint32
	InitialDelayMin       libdur.Duration
	InitialDelayMax       libdur.Duration
	RepetitionsBaseDelay  libdur.Duration
	RepetitionsMax        int
	CyclicOfferDelay      libdur.Duration
	OfferDebounceTime     libdur.Duration
	FindDebounceTime      libdur.Duration
	TTLFactorOffers       map[ServiceKey]uint32
	TTLFactorSubscribes   map[EventgroupKey]uint32
}

// applyTTLFactorOffer scales a remote offer's wire TTL before installing it
// locally. The wire TTL itself is never rewritten, only the local expiry
// deadline.
func (c Config) applyTTLFactorOffer(key ServiceKey, ttl uint32) uint32 {
	if f, ok := c.TTLFactorOffers[key]; ok && f > 0 {
		return ttl * f
	}
	return ttl
}

func (c Config) applyTTLFactorSubscribe(key EventgroupKey, ttl uint32) uint32 {
	if f, ok := c.TTLFactorSubscribes[key]; ok && f > 0 {
		return ttl * f
	}
	return ttl
}

// EndpointRef is a resolved (address, port, reliable) tuple carried by an
// SD endpoint option.
type EndpointRef struct {
	Address  net.IP
	Port     uint16
	Reliable bool
}

// RemoteService is one entry in the remote-services table built from
// inbound OFFER_SERVICE entries.
type RemoteService struct {
	Key        ServiceKey
	Major      uint8
	Minor      uint32
	Reliable   EndpointRef
	Unreliable EndpointRef
	From       net.IP

	remaining time.Duration
}

// AvailabilityHandler is invoked when a remote service becomes available
// or unavailable (offer installed, TTL expired, or reboot-expired).
type AvailabilityHandler func(svc RemoteService, available bool)

// RebootHandler is invoked once per detected peer reboot.
type RebootHandler func(addr net.IP)
