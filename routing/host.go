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

package routing

import (
	"sync"

	"github.com/COVESA/vsomeip-sub001/endpointmanager"
	liberr "github.com/COVESA/vsomeip-sub001/errors"
	"github.com/COVESA/vsomeip-sub001/eventreg"
	liblog "github.com/COVESA/vsomeip-sub001/logger"
	libsck "github.com/COVESA/vsomeip-sub001/socket"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"

	"github.com/COVESA/vsomeip-sub001/routing/ipc"
)

// hostClient is everything the host keeps about one connected local
// client: its IPC transport, negotiated state, and security identity.
type hostClient struct {
	id    uint16
	state LocalClientState
	sec   SecClient
	conn  endpointmanager.LocalConnection
}

// hostOffer pairs one advertised (service, instance) with its SD phase.
type hostOffer struct {
	offer     ServiceOffer
	lifecycle *OfferLifecycle
}

// HostConfig bundles the host's collaborators: the endpoint manager owns
// every transport-facing socket (C2), the registry owns events and
// eventgroups (C3). Both are required; the host only adds the local
// client table, the offer/request tables, and access control on top.
type HostConfig struct {
	Manager  *endpointmanager.Manager
	Registry *eventreg.Registry
	Access   AccessOracle
	Subscribe SubscribeOracle
	Logger   liblog.Logger
}

// Host is the single authoritative routing-manager role: it is the
// only process that binds server endpoints, owns the event registry, and
// decides whether a local client may reach a given service or eventgroup.
// Every other process runs a Client stub that proxies through it.
type Host struct {
	manager  *endpointmanager.Manager
	registry *eventreg.Registry
	access   AccessOracle
	subOracle SubscribeOracle
	log      liblog.Logger

	mu       sync.Mutex
	nextID   uint16
	clients  map[uint16]*hostClient
	offers   map[ServiceKey]*hostOffer
	requests map[ServiceKey]map[uint16]struct{}

	accessMu    sync.Mutex
	accessCache map[accessDecisionKey]bool
}

func NewHost(cfg HostConfig) *Host {
	log := cfg.Logger
	if log == nil {
		log = liblog.Discard()
	}
	return &Host{
		manager:     cfg.Manager,
		registry:    cfg.Registry,
		access:      cfg.Access,
		subOracle:   cfg.Subscribe,
		log:         log,
		nextID:      1,
		clients:     make(map[uint16]*hostClient),
		offers:      make(map[ServiceKey]*hostOffer),
		requests:    make(map[ServiceKey]map[uint16]struct{}),
		accessCache: make(map[accessDecisionKey]bool),
	}
}

// accessDecisionKey identifies one resolved AccessOracle answer, avoiding a
// call into the oracle for every message exchanged over an otherwise-stable
// policy.
type accessDecisionKey struct {
	uid, gid           uint32
	client             uint16
	service, instance  uint16
	method             uint16
}

func (h *Host) checkAccess(sec SecClient, client uint16, service, instance, method uint16) bool {
	if h.access == nil {
		return true
	}
	key := accessDecisionKey{uid: sec.UID, gid: sec.GID, client: client, service: service, instance: instance, method: method}
	h.accessMu.Lock()
	if decision, ok := h.accessCache[key]; ok {
		h.accessMu.Unlock()
		return decision
	}
	h.accessMu.Unlock()

	decision := h.access(sec, client, service, instance, method)
	h.accessMu.Lock()
	h.accessCache[key] = decision
	h.accessMu.Unlock()
	return decision
}

// ResetAccessCache discards every cached AccessOracle answer, called once
// the caller's security policy is updated (UPDATE_SECURITY_POLICY) so
// stale decisions are never served after a policy change.
func (h *Host) ResetAccessCache() {
	h.accessMu.Lock()
	h.accessCache = make(map[accessDecisionKey]bool)
	h.accessMu.Unlock()
}

// AssignClient allocates the next free 16-bit client id and records it as
// CONNECTING, per the "ASSIGN_CLIENT / ASSIGN_CLIENT_ACK" handshake.
// It returns CodeRoutingRootExhaust once every id in the 16-bit space is
// already in use.
func (h *Host) AssignClient(sec SecClient) (uint16, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := 0; i < 0xFFFF; i++ {
		id := h.nextID
		h.nextID++
		if h.nextID == 0 {
			h.nextID = 1
		}
		if id == RoutingClient {
			continue
		}
		if _, taken := h.clients[id]; !taken {
			h.clients[id] = &hostClient{id: id, state: LocalClientConnecting, sec: sec}
			return id, nil
		}
	}
	return 0, liberr.New(liberr.CodeRoutingRootExhaust, "routing: no free client id available")
}

// Attach binds an accepted local connection to a previously assigned
// client id once REGISTER_APPLICATION arrives, and forwards it to the
// endpoint manager's local-client table so Send can address it directly.
func (h *Host) Attach(clientID uint16, conn endpointmanager.LocalConnection) error {
	h.mu.Lock()
	c, ok := h.clients[clientID]
	if !ok {
		h.mu.Unlock()
		return liberr.New(liberr.CodeUnknownClient, "routing: attach of unregistered client")
	}
	c.conn = conn
	c.state = LocalClientEstablished
	h.mu.Unlock()

	h.manager.RegisterLocalClient(clientID, conn)
	return nil
}

// Detach drops a client's bookkeeping on disconnect (the DEREGISTERED
// transition), releasing every offer and request it held.
func (h *Host) Detach(clientID uint16) {
	h.mu.Lock()
	delete(h.clients, clientID)
	var dropped []ServiceKey
	for key, off := range h.offers {
		if off.offer.OfferingClient == clientID {
			dropped = append(dropped, key)
		}
	}
	for _, key := range dropped {
		delete(h.offers, key)
	}
	for _, reqs := range h.requests {
		delete(reqs, clientID)
	}
	h.mu.Unlock()

	for _, key := range dropped {
		h.notifyAvailability(key, false)
	}

	h.manager.RemoveLocalClient(clientID)
}

// clientSec returns the security identity recorded for clientID at
// AssignClient time, or the zero value if the client is unknown.
func (h *Host) clientSec(clientID uint16) SecClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		return c.sec
	}
	return SecClient{}
}

// notifyAvailability fans a ROUTING_INFO frame for key out to every local
// client that has an outstanding RequestService for it.
func (h *Host) notifyAvailability(key ServiceKey, available bool) {
	targets := h.Requesters(key)
	if len(targets) == 0 {
		return
	}

	var offer ServiceOffer
	if available {
		offer, _ = h.FindOffer(key)
	}
	payload := encodeRoutingInfo(available, key, offer.Major, offer.Minor, offer.OfferingClient)
	frame := ipc.Encode(ipc.Frame{Type: ipc.CmdRoutingInfo, Payload: payload})

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range targets {
		c, ok := h.clients[client]
		if !ok || c.conn == nil {
			continue
		}
		_, _ = c.conn.Write(frame)
	}
}

// OfferService records a new offer and starts its SD lifecycle in
// PENDING->INITIAL_WAIT; the discovery package drives further phase
// transitions as its timers fire.
func (h *Host) OfferService(key ServiceKey, major uint8, minor uint32, client uint16) *OfferLifecycle {
	h.mu.Lock()
	off, ok := h.offers[key]
	if !ok {
		off = &hostOffer{lifecycle: NewOfferLifecycle()}
		h.offers[key] = off
	}
	off.offer = ServiceOffer{Key: key, Major: major, Minor: minor, OfferingClient: client}
	off.lifecycle.Start()
	lifecycle := off.lifecycle
	h.mu.Unlock()

	h.notifyAvailability(key, true)
	return lifecycle
}

// StopOfferService withdraws an offer. It reports whether the withdrawal
// happened silently (the offer never left INITIAL_WAIT, so no STOP_OFFER
// SD traffic is owed) per the rules.
func (h *Host) StopOfferService(key ServiceKey) (silent bool) {
	h.mu.Lock()
	off, ok := h.offers[key]
	if !ok {
		h.mu.Unlock()
		return true
	}
	silent = off.lifecycle.StopSilently()
	delete(h.offers, key)
	h.mu.Unlock()

	h.notifyAvailability(key, false)
	return silent
}

// FindOffer reports the current offer for a service key, if any.
func (h *Host) FindOffer(key ServiceKey) (ServiceOffer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	off, ok := h.offers[key]
	if !ok {
		return ServiceOffer{}, false
	}
	return off.offer, true
}

// RequestService records that client wants key, replaying availability
// immediately if it is already offered (the "a request made after the
// offer already exists still observes it").
func (h *Host) RequestService(key ServiceKey, client uint16) (alreadyAvailable bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	reqs, ok := h.requests[key]
	if !ok {
		reqs = make(map[uint16]struct{})
		h.requests[key] = reqs
	}
	reqs[client] = struct{}{}
	_, alreadyAvailable = h.offers[key]
	return alreadyAvailable
}

// ReleaseService removes client's interest in key.
func (h *Host) ReleaseService(key ServiceKey, client uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if reqs, ok := h.requests[key]; ok {
		delete(reqs, client)
	}
}

// Requesters returns every client currently interested in key, used to
// fan out availability changes.
func (h *Host) Requesters(key ServiceKey) []uint16 {
	h.mu.Lock()
	defer h.mu.Unlock()
	reqs, ok := h.requests[key]
	if !ok {
		return nil
	}
	out := make([]uint16, 0, len(reqs))
	for c := range reqs {
		out = append(out, c)
	}
	return out
}

// Send routes one application message from fromClient toward key's
// offering client, enforcing access if an AccessOracle was configured.
// Only local delivery is attempted here; a remote destination is the
// endpoint manager's remote-client endpoint, addressed one layer up by
// whichever caller already resolved that the service lives off-host.
func (h *Host) Send(fromClient uint16, sec SecClient, key ServiceKey, method uint16, payload []byte) error {
	if !h.checkAccess(sec, fromClient, key.Service, key.Instance, method) {
		return liberr.New(liberr.CodeAccessDenied, "routing: access denied for method send")
	}

	h.mu.Lock()
	off, offered := h.offers[key]
	var target *hostClient
	if offered {
		target = h.clients[off.offer.OfferingClient]
	}
	h.mu.Unlock()

	if !offered || target == nil || target.conn == nil {
		return liberr.New(liberr.CodeServiceUnavailable, "routing: service not currently offered locally")
	}
	_, err := target.conn.Write(payload)
	return err
}

// Subscribe gates and forwards one SUBSCRIBE to the event registry. The
// SubscribeOracle is only consulted for group-wide subscriptions (no
// specific event named) per the access-control note.
func (h *Host) Subscribe(sec SecClient, client uint16, gid eventreg.EventgroupID, event uint16, sub *eventreg.Subscriber) error {
	if h.subOracle != nil && event == AnyEvent {
		if !h.subOracle(sec, client, gid.Service, gid.Instance, gid.Eventgroup) {
			return liberr.New(liberr.CodeAccessDenied, "routing: access denied for subscription")
		}
	}
	return h.registry.Subscribe(gid, sub)
}

// Unsubscribe forwards one UNSUBSCRIBE to the event registry.
func (h *Host) Unsubscribe(gid eventreg.EventgroupID, client uint16) error {
	return h.registry.Unsubscribe(gid, client)
}

// HandleConnection is the libsck.HandlerFunc the routing root's local
// listener dispatches to for every accepted connection. It owns ctx until
// the peer disconnects or the frame stream is torn down.
func (h *Host) HandleConnection(ctx libsck.Context) {
	var clientID uint16
	var attached bool
	defer func() {
		if attached {
			h.Detach(clientID)
		}
		_ = ctx.Close()
	}()

	readBuf := make([]byte, 64*1024)
	var pending []byte
	for {
		n, err := ctx.Read(readBuf)
		if n > 0 {
			pending = append(pending, readBuf[:n]...)
			frames, remainder, decErr := ipc.Extract(pending)
			if decErr != nil {
				h.log.Warnf("routing: local frame decode error: %v", decErr)
				return
			}
			pending = remainder
			for _, f := range frames {
				id, att := h.dispatch(ctx, clientID, attached, f)
				clientID, attached = id, att
			}
		}
		if err != nil {
			return
		}
	}
}

// dispatch processes one decoded local IPC frame and returns the
// connection's (possibly now-assigned) client id and attachment state.
func (h *Host) dispatch(ctx libsck.Context, clientID uint16, attached bool, f ipc.Frame) (uint16, bool) {
	switch f.Type {
	case ipc.CmdAssignClient:
		id, err := h.AssignClient(SecClient{})
		if err != nil {
			h.log.Warnf("routing: assign client failed: %v", err)
			return clientID, attached
		}
		ack := ipc.Encode(ipc.Frame{Type: ipc.CmdAssignClientAck, Client: id})
		_, _ = ctx.Write(ack)
		return id, attached

	case ipc.CmdRegisterApplication:
		if err := h.Attach(clientID, ctx); err != nil {
			h.log.Warnf("routing: attach failed: %v", err)
			return clientID, attached
		}
		ack := ipc.Encode(ipc.Frame{Type: ipc.CmdRegisteredAck, Client: clientID})
		_, _ = ctx.Write(ack)
		return clientID, true

	case ipc.CmdPing:
		pong := ipc.Encode(ipc.Frame{Type: ipc.CmdPong, Client: clientID})
		_, _ = ctx.Write(pong)
		return clientID, attached

	case ipc.CmdResendProvidedEvents:
		if h.registry != nil {
			h.mu.Lock()
			var keys []ServiceKey
			for key, off := range h.offers {
				if off.offer.OfferingClient == clientID {
					keys = append(keys, key)
				}
			}
			h.mu.Unlock()
			for _, key := range keys {
				h.registry.ResendFields(key.Service, key.Instance)
			}
		}
		return clientID, attached

	case ipc.CmdOfferService:
		key, major, minor, err := decodeOffer(f.Payload)
		if err != nil {
			h.log.Warnf("routing: malformed OFFER_SERVICE frame: %v", err)
			return clientID, attached
		}
		h.OfferService(key, major, minor, clientID)
		return clientID, attached

	case ipc.CmdStopOfferService:
		key, err := decodeServiceKey(f.Payload)
		if err != nil {
			h.log.Warnf("routing: malformed STOP_OFFER_SERVICE frame: %v", err)
			return clientID, attached
		}
		h.StopOfferService(key)
		return clientID, attached

	case ipc.CmdRequestService:
		key, err := decodeServiceKey(f.Payload)
		if err != nil {
			h.log.Warnf("routing: malformed REQUEST_SERVICE frame: %v", err)
			return clientID, attached
		}
		if h.RequestService(key, clientID) {
			if offer, ok := h.FindOffer(key); ok {
				payload := encodeRoutingInfo(true, key, offer.Major, offer.Minor, offer.OfferingClient)
				_, _ = ctx.Write(ipc.Encode(ipc.Frame{Type: ipc.CmdRoutingInfo, Payload: payload}))
			}
		}
		return clientID, attached

	case ipc.CmdReleaseService:
		key, err := decodeServiceKey(f.Payload)
		if err != nil {
			h.log.Warnf("routing: malformed RELEASE_SERVICE frame: %v", err)
			return clientID, attached
		}
		h.ReleaseService(key, clientID)
		return clientID, attached

	case ipc.CmdSend:
		key, err := decodeServiceKey(f.Payload)
		if err != nil {
			h.log.Warnf("routing: malformed SEND frame: %v", err)
			return clientID, attached
		}
		appPayload := f.Payload[4:]
		var method uint16
		if msg, decErr := libsomeip.Decode(appPayload); decErr == nil {
			method = msg.Header.MethodID
		}
		if err := h.Send(clientID, h.clientSec(clientID), key, method, appPayload); err != nil {
			h.log.Warnf("routing: SEND failed: %v", err)
		}
		return clientID, attached

	case ipc.CmdSubscribe:
		service, instance, eventgroup, event, err := decodeEventgroupRef(f.Payload)
		if err != nil {
			h.log.Warnf("routing: malformed SUBSCRIBE frame: %v", err)
			return clientID, attached
		}
		gid := eventreg.EventgroupID{Service: service, Instance: instance, Eventgroup: eventgroup}
		sub := eventreg.NewSubscriber(clientID, nil)
		if err := h.Subscribe(h.clientSec(clientID), clientID, gid, event, sub); err != nil {
			h.log.Warnf("routing: SUBSCRIBE failed: %v", err)
		}
		return clientID, attached

	case ipc.CmdUnsubscribe:
		service, instance, eventgroup, _, err := decodeEventgroupRef(f.Payload)
		if err != nil {
			h.log.Warnf("routing: malformed UNSUBSCRIBE frame: %v", err)
			return clientID, attached
		}
		gid := eventreg.EventgroupID{Service: service, Instance: instance, Eventgroup: eventgroup}
		if err := h.Unsubscribe(gid, clientID); err != nil {
			h.log.Warnf("routing: UNSUBSCRIBE failed: %v", err)
		}
		return clientID, attached

	default:
		// DEREGISTER_APPLICATION and the UPDATE/REMOVE/DISTRIBUTE security
		// policy commands remain unimplemented here: they belong to the
		// security oracle's out-of-scope policy engine, not to this
		// dispatch loop.
		return clientID, attached
	}
}

// decodeServiceKey parses the 4-byte {service, instance} payload shared by
// STOP_OFFER_SERVICE, REQUEST_SERVICE, RELEASE_SERVICE and the key prefix
// of SEND.
func decodeServiceKey(b []byte) (ServiceKey, error) {
	if len(b) < 4 {
		return ServiceKey{}, liberr.New(liberr.CodeMalformedFrame, "routing: short service-key payload")
	}
	return ServiceKey{
		Service:  uint16(b[0])<<8 | uint16(b[1]),
		Instance: uint16(b[2])<<8 | uint16(b[3]),
	}, nil
}

// decodeOffer parses OFFER_SERVICE's 9-byte {serviceKey, major, minor} payload.
func decodeOffer(b []byte) (ServiceKey, uint8, uint32, error) {
	if len(b) < 9 {
		return ServiceKey{}, 0, 0, liberr.New(liberr.CodeMalformedFrame, "routing: short OFFER_SERVICE payload")
	}
	key, _ := decodeServiceKey(b)
	major := b[4]
	minor := uint32(b[5])<<24 | uint32(b[6])<<16 | uint32(b[7])<<8 | uint32(b[8])
	return key, major, minor, nil
}

// decodeEventgroupRef parses the 8-byte {service, instance, eventgroup,
// event} payload shared by SUBSCRIBE and UNSUBSCRIBE.
func decodeEventgroupRef(b []byte) (service, instance, eventgroup, event uint16, err error) {
	if len(b) < 8 {
		return 0, 0, 0, 0, liberr.New(liberr.CodeMalformedFrame, "routing: short eventgroup-ref payload")
	}
	service = uint16(b[0])<<8 | uint16(b[1])
	instance = uint16(b[2])<<8 | uint16(b[3])
	eventgroup = uint16(b[4])<<8 | uint16(b[5])
	event = uint16(b[6])<<8 | uint16(b[7])
	return service, instance, eventgroup, event, nil
}

// encodeRoutingInfo builds the ROUTING_INFO payload sent to every local
// client with an outstanding request for key, announcing its current
// availability.
func encodeRoutingInfo(available bool, key ServiceKey, major uint8, minor uint32, offeringClient uint16) []byte {
	b := make([]byte, 12)
	if available {
		b[0] = 1
	}
	b[1] = byte(key.Service >> 8)
	b[2] = byte(key.Service)
	b[3] = byte(key.Instance >> 8)
	b[4] = byte(key.Instance)
	b[5] = major
	b[6] = byte(minor >> 24)
	b[7] = byte(minor >> 16)
	b[8] = byte(minor >> 8)
	b[9] = byte(minor)
	b[10] = byte(offeringClient >> 8)
	b[11] = byte(offeringClient)
	return b
}
