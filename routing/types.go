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

// Package routing implements the two routing-manager roles:
// Host is the single authoritative process that owns every local endpoint,
// the event/eventgroup registry, and access control; Client is the stub
// that every other local process runs to register with the host and proxy
// its offers/requests/subscriptions over the local IPC connection.
package routing

import (
	"github.com/COVESA/vsomeip-sub001/endpointmanager"
)

// ServiceKey identifies a (service, instance) pair, shared with the
// endpoint manager's own routing-target bookkeeping.
type ServiceKey = endpointmanager.ServiceInstance

// RoutingClient is the reserved client id meaning "not a specific local
// client" — used for notifications and messages that fan out rather than
// targeting one connected application.
const RoutingClient uint16 = 0x0000

// SecClient carries the access-control identity of a request: the
// connecting process's uid/gid, supplied out of band by the transport
// (out of scope here; consumed as an opaque value).
type SecClient struct {
	UID uint32
	GID uint32
}

// AccessOracle decides whether client may exchange method-level messages
// with (service, instance, method). The security policy engine itself is
// an external collaborator; this type is the only contract this package
// has with it.
type AccessOracle func(sec SecClient, client uint16, service, instance, method uint16) bool

// SubscribeOracle decides whether client may subscribe to any event of
// (service, instance, eventgroup) — used when a subscription does not
// name one event (event == AnyEvent).
type SubscribeOracle func(sec SecClient, client uint16, service, instance, eventgroup uint16) bool

// AnyEvent marks a subscription that is not restricted to a single event
// id within its eventgroup.
const AnyEvent uint16 = 0xFFFF

// ServiceOffer describes one local or remote offer.
type ServiceOffer struct {
	Key          ServiceKey
	Major        uint8
	Minor        uint32
	OfferingClient uint16
}

// AvailabilityHandler is invoked when a (service, instance) transitions
// between available and unavailable for a given local client.
type AvailabilityHandler func(key ServiceKey, available bool)
