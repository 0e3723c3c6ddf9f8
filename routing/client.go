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
	"context"
	"sync"
	"time"

	liberr "github.com/COVESA/vsomeip-sub001/errors"
	liblog "github.com/COVESA/vsomeip-sub001/logger"
	libsck "github.com/COVESA/vsomeip-sub001/socket"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"
	unixcli "github.com/COVESA/vsomeip-sub001/socket/client/unix"

	"github.com/COVESA/vsomeip-sub001/routing/ipc"
)

// assignClientTimeout and registerApplicationTimeout are the two handshake
// deadlines; past either one the client gives up on this host connection
// and reports a fatal error.
const (
	assignClientTimeout        = 10 * time.Second
	registerApplicationTimeout = 1 * time.Second
)

// pingIdleInterval and pingMissDeadline drive the client's own keep-alive:
// it pings the host every pingIdleInterval and treats a PONG that doesn't
// arrive within pingMissDeadline as host loss.
const (
	pingIdleInterval = 5 * time.Second
	pingMissDeadline = 2 * time.Second
)

// NotifyHandler receives one NOTIFY/NOTIFY_ONE frame forwarded by the host.
type NotifyHandler func(event EventRef, payload []byte)

// EventRef names one event within the local-services view the client
// stub keeps of everything the host has announced as offered.
type EventRef struct {
	Service  uint16
	Instance uint16
	Event    uint16
}

type remoteServiceInfo struct {
	Major  uint8
	Minor  uint32
	Client uint16
}

// localOffer and localEventgroupRef record a call this client made against
// the host, so a reconnect can replay it instead of leaving the host with
// no record of what this process was offering, requesting or subscribed to.
type localOffer struct {
	Major uint8
	Minor uint32
}

type localEventgroupRef struct {
	Service, Instance, Eventgroup, Event uint16
}

// ClientConfig bundles what Client needs to dial the routing root and
// report events back to its owning application.
type ClientConfig struct {
	Socket sckcfg.Client
	Notify NotifyHandler
	Logger liblog.Logger
}

// Client is the per-process routing-manager stub: it registers
// with the Host over the local IPC socket, mirrors the host's routing-info
// table, and proxies offer/request/subscribe calls as IPC command frames.
type Client struct {
	cfg       ClientConfig
	transport libsck.Client
	log       liblog.Logger

	mu       sync.Mutex
	state    LocalClientState
	clientID uint16
	conn     libsck.Context
	services map[ServiceKey]remoteServiceInfo

	assignAck   chan uint16
	registerAck chan struct{}
	pending     []byte

	pong     chan struct{}
	pingStop chan struct{}

	everStarted bool
	offered     map[ServiceKey]localOffer
	requested   map[ServiceKey]struct{}
	subscribed  map[localEventgroupRef]struct{}
	pendingSubs map[ServiceKey][]localEventgroupRef
}

func NewClient(cfg ClientConfig) (*Client, error) {
	log := cfg.Logger
	if log == nil {
		log = liblog.Discard()
	}
	c := &Client{
		cfg:         cfg,
		log:         log,
		state:       LocalClientDisconnected,
		services:    make(map[ServiceKey]remoteServiceInfo),
		assignAck:   make(chan uint16, 1),
		registerAck: make(chan struct{}, 1),
		pong:        make(chan struct{}, 1),
		offered:     make(map[ServiceKey]localOffer),
		requested:   make(map[ServiceKey]struct{}),
		subscribed:  make(map[localEventgroupRef]struct{}),
		pendingSubs: make(map[ServiceKey][]localEventgroupRef),
	}

	transport, err := unixcli.New(nil, c.handleConnection, cfg.Socket)
	if err != nil {
		return nil, err
	}
	c.transport = transport
	return c, nil
}

// Start dials the routing root and runs the ASSIGN_CLIENT ->
// REGISTER_APPLICATION handshake, leaving the client in its
// ESTABLISHED state once both acknowledgements arrive.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	c.state = LocalClientConnecting
	c.mu.Unlock()

	if err := c.transport.Connect(ctx); err != nil {
		return err
	}

	if _, err := c.transport.Send(ipc.Encode(ipc.Frame{Type: ipc.CmdAssignClient})); err != nil {
		return err
	}

	select {
	case id := <-c.assignAck:
		c.mu.Lock()
		c.clientID = id
		c.state = LocalClientConnected
		c.mu.Unlock()
	case <-time.After(assignClientTimeout):
		return liberr.New(liberr.CodeAssignClientTimeout, "routing client: ASSIGN_CLIENT_ACK timed out")
	case <-ctx.Done():
		return ctx.Err()
	}

	if _, err := c.transport.Send(ipc.Encode(ipc.Frame{Type: ipc.CmdRegisterApplication, Client: c.clientID})); err != nil {
		return err
	}

	select {
	case <-c.registerAck:
		c.mu.Lock()
		c.state = LocalClientEstablished
		c.mu.Unlock()
	case <-time.After(registerApplicationTimeout):
		return liberr.New(liberr.CodeRegisterTimeout, "routing client: REGISTERED_ACK timed out")
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	c.pingStop = make(chan struct{})
	reconnect := c.everStarted
	c.everStarted = true
	c.mu.Unlock()
	go c.runKeepAlive()

	if reconnect {
		c.replayLocalState()
	}

	return nil
}

// replayLocalState resends every offer, request and subscription this
// client made before a disconnect, then asks the host to resend the
// provided events belonging to its own re-established offers so
// subscribers that missed updates while it was gone get caught up.
func (c *Client) replayLocalState() {
	c.mu.Lock()
	offers := make(map[ServiceKey]localOffer, len(c.offered))
	for k, v := range c.offered {
		offers[k] = v
	}
	requests := make([]ServiceKey, 0, len(c.requested))
	for k := range c.requested {
		requests = append(requests, k)
	}
	subs := make([]localEventgroupRef, 0, len(c.subscribed))
	for k := range c.subscribed {
		subs = append(subs, k)
	}
	c.mu.Unlock()

	for key, info := range offers {
		_ = c.send(ipc.Frame{Type: ipc.CmdOfferService, Payload: encodeOffer(key, info.Major, info.Minor)})
	}
	for _, key := range requests {
		_ = c.send(ipc.Frame{Type: ipc.CmdRequestService, Payload: encodeServiceKey(key)})
	}
	for _, ref := range subs {
		_ = c.send(ipc.Frame{Type: ipc.CmdSubscribe, Payload: encodeEventgroupRef(ref.Service, ref.Instance, ref.Eventgroup, ref.Event)})
	}
	if len(offers) > 0 {
		_ = c.send(ipc.Frame{Type: ipc.CmdResendProvidedEvents})
	}
}

// runKeepAlive pings the host on an idle timer and treats a missed PONG as
// host loss, dropping the connection so the caller's reconnect logic takes
// over.
func (c *Client) runKeepAlive() {
	c.mu.Lock()
	stop := c.pingStop
	c.mu.Unlock()

	ticker := time.NewTicker(pingIdleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.send(ipc.Frame{Type: ipc.CmdPing}); err != nil {
				return
			}
			select {
			case <-c.pong:
			case <-time.After(pingMissDeadline):
				c.log.Warnf("routing client: PONG missed, treating host as lost")
				_ = c.Close()
				return
			case <-stop:
				return
			}
		}
	}
}

// ClientID returns the id assigned by the host, valid once Start returns
// without error.
func (c *Client) ClientID() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

func (c *Client) State() LocalClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close tears down the transport; the host observes this as a local
// disconnect and releases every offer/request the client held.
func (c *Client) Close() error {
	c.mu.Lock()
	c.state = LocalClientDisconnected
	stop := c.pingStop
	c.pingStop = nil
	c.mu.Unlock()
	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
	return c.transport.Close()
}

func (c *Client) send(f ipc.Frame) error {
	f.Client = c.ClientID()
	_, err := c.transport.Send(ipc.Encode(f))
	return err
}

// OfferService proxies OFFER_SERVICE to the host and remembers the offer
// so a later reconnect can replay it.
func (c *Client) OfferService(key ServiceKey, major uint8, minor uint32) error {
	err := c.send(ipc.Frame{Type: ipc.CmdOfferService, Payload: encodeOffer(key, major, minor)})
	if err == nil {
		c.mu.Lock()
		c.offered[key] = localOffer{Major: major, Minor: minor}
		c.mu.Unlock()
	}
	return err
}

// StopOfferService proxies STOP_OFFER_SERVICE to the host.
func (c *Client) StopOfferService(key ServiceKey) error {
	err := c.send(ipc.Frame{Type: ipc.CmdStopOfferService, Payload: encodeServiceKey(key)})
	if err == nil {
		c.mu.Lock()
		delete(c.offered, key)
		c.mu.Unlock()
	}
	return err
}

// RequestService proxies REQUEST_SERVICE to the host and remembers the
// request so a later reconnect can replay it.
func (c *Client) RequestService(key ServiceKey) error {
	err := c.send(ipc.Frame{Type: ipc.CmdRequestService, Payload: encodeServiceKey(key)})
	if err == nil {
		c.mu.Lock()
		c.requested[key] = struct{}{}
		c.mu.Unlock()
	}
	return err
}

// ReleaseService proxies RELEASE_SERVICE to the host.
func (c *Client) ReleaseService(key ServiceKey) error {
	err := c.send(ipc.Frame{Type: ipc.CmdReleaseService, Payload: encodeServiceKey(key)})
	if err == nil {
		c.mu.Lock()
		delete(c.requested, key)
		c.mu.Unlock()
	}
	return err
}

// Subscribe proxies SUBSCRIBE to the host for the named eventgroup and
// remembers the subscription so a later reconnect can replay it. If the
// service is not yet known-available from a prior ROUTING_INFO, the
// request is queued and replayed once the host announces it, rather than
// sent against a service with no offering client.
func (c *Client) Subscribe(service, instance, eventgroup, event uint16) error {
	key := ServiceKey{Service: service, Instance: instance}
	ref := localEventgroupRef{Service: service, Instance: instance, Eventgroup: eventgroup, Event: event}

	c.mu.Lock()
	_, available := c.services[key]
	if !available {
		c.pendingSubs[key] = append(c.pendingSubs[key], ref)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := c.send(ipc.Frame{Type: ipc.CmdSubscribe, Payload: encodeEventgroupRef(service, instance, eventgroup, event)})
	if err == nil {
		c.mu.Lock()
		c.subscribed[ref] = struct{}{}
		c.mu.Unlock()
	}
	return err
}

// Unsubscribe proxies UNSUBSCRIBE to the host.
func (c *Client) Unsubscribe(service, instance, eventgroup uint16) error {
	err := c.send(ipc.Frame{Type: ipc.CmdUnsubscribe, Payload: encodeEventgroupRef(service, instance, eventgroup, AnyEvent)})
	if err == nil {
		c.mu.Lock()
		for ref := range c.subscribed {
			if ref.Service == service && ref.Instance == instance && ref.Eventgroup == eventgroup {
				delete(c.subscribed, ref)
			}
		}
		c.mu.Unlock()
	}
	return err
}

// Send proxies an application message through the host toward whichever
// client currently offers key.
func (c *Client) Send(key ServiceKey, payload []byte) error {
	return c.send(ipc.Frame{Type: ipc.CmdSend, Payload: append(encodeServiceKey(key), payload...)})
}

// FindService reports what the client's local routing-info mirror knows
// about key, populated from ROUTING_INFO/OFFER_SERVICE frames the host
// has sent.
func (c *Client) FindService(key ServiceKey) (major uint8, minor uint32, offeringClient uint16, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.services[key]
	return info.Major, info.Minor, info.Client, ok
}

// handleConnection is the libsck.HandlerFunc the underlying unix client
// dispatches to once dialed; it owns the connection's read loop for the
// client's lifetime.
func (c *Client) handleConnection(ctx libsck.Context) {
	c.mu.Lock()
	c.conn = ctx
	c.mu.Unlock()

	readBuf := make([]byte, 64*1024)
	for {
		n, err := ctx.Read(readBuf)
		if n > 0 {
			c.mu.Lock()
			c.pending = append(c.pending, readBuf[:n]...)
			frames, remainder, decErr := ipc.Extract(c.pending)
			c.pending = remainder
			c.mu.Unlock()
			if decErr != nil {
				c.log.Warnf("routing client: local frame decode error: %v", decErr)
				return
			}
			for _, f := range frames {
				c.onFrame(f)
			}
		}
		if err != nil {
			c.mu.Lock()
			c.state = LocalClientDisconnected
			c.mu.Unlock()
			return
		}
	}
}

func (c *Client) onFrame(f ipc.Frame) {
	switch f.Type {
	case ipc.CmdAssignClientAck:
		select {
		case c.assignAck <- f.Client:
		default:
		}
	case ipc.CmdRegisteredAck:
		select {
		case c.registerAck <- struct{}{}:
		default:
		}
	case ipc.CmdPing:
		_ = c.send(ipc.Frame{Type: ipc.CmdPong})
	case ipc.CmdPong:
		select {
		case c.pong <- struct{}{}:
		default:
		}
	case ipc.CmdNotify, ipc.CmdNotifyOne:
		if c.cfg.Notify != nil && len(f.Payload) >= 6 {
			ref := EventRef{
				Service:  uint16(f.Payload[0])<<8 | uint16(f.Payload[1]),
				Instance: uint16(f.Payload[2])<<8 | uint16(f.Payload[3]),
				Event:    uint16(f.Payload[4])<<8 | uint16(f.Payload[5]),
			}
			c.cfg.Notify(ref, f.Payload[6:])
		}
	case ipc.CmdRoutingInfo:
		available, key, major, minor, offeringClient, err := decodeRoutingInfo(f.Payload)
		if err != nil {
			c.log.Warnf("routing client: malformed ROUTING_INFO frame: %v", err)
			return
		}
		if !available {
			c.mu.Lock()
			delete(c.services, key)
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		c.services[key] = remoteServiceInfo{Major: major, Minor: minor, Client: offeringClient}
		pending := c.pendingSubs[key]
		delete(c.pendingSubs, key)
		c.mu.Unlock()

		for _, ref := range pending {
			if sendErr := c.send(ipc.Frame{Type: ipc.CmdSubscribe, Payload: encodeEventgroupRef(ref.Service, ref.Instance, ref.Eventgroup, ref.Event)}); sendErr == nil {
				c.mu.Lock()
				c.subscribed[ref] = struct{}{}
				c.mu.Unlock()
			}
		}
	default:
		// SUBSCRIBE_ACK/NACK, UNSUBSCRIBE_ACK and the security-policy
		// commands carry no state this stub mirrors; REGISTER_EVENT
		// replies are likewise unread here.
	}
}

func encodeServiceKey(key ServiceKey) []byte {
	return []byte{byte(key.Service >> 8), byte(key.Service), byte(key.Instance >> 8), byte(key.Instance)}
}

func encodeOffer(key ServiceKey, major uint8, minor uint32) []byte {
	b := encodeServiceKey(key)
	b = append(b, major, byte(minor>>24), byte(minor>>16), byte(minor>>8), byte(minor))
	return b
}

func encodeEventgroupRef(service, instance, eventgroup, event uint16) []byte {
	return []byte{
		byte(service >> 8), byte(service),
		byte(instance >> 8), byte(instance),
		byte(eventgroup >> 8), byte(eventgroup),
		byte(event >> 8), byte(event),
	}
}

// decodeRoutingInfo parses the 12-byte ROUTING_INFO payload the host sends
// to announce a service's availability to every client that requested it.
func decodeRoutingInfo(b []byte) (available bool, key ServiceKey, major uint8, minor uint32, offeringClient uint16, err error) {
	if len(b) < 12 {
		return false, ServiceKey{}, 0, 0, 0, liberr.New(liberr.CodeMalformedFrame, "routing client: short ROUTING_INFO payload")
	}
	available = b[0] != 0
	key = ServiceKey{
		Service:  uint16(b[1])<<8 | uint16(b[2]),
		Instance: uint16(b[3])<<8 | uint16(b[4]),
	}
	major = b[5]
	minor = uint32(b[6])<<24 | uint32(b[7])<<16 | uint32(b[8])<<8 | uint32(b[9])
	offeringClient = uint16(b[10])<<8 | uint16(b[11])
	return available, key, major, minor, offeringClient, nil
}
