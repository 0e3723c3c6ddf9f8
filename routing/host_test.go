package routing_test

import (
	"github.com/COVESA/vsomeip-sub001/endpointmanager"
	liberr "github.com/COVESA/vsomeip-sub001/errors"
	"github.com/COVESA/vsomeip-sub001/eventreg"
	"github.com/COVESA/vsomeip-sub001/routing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// recordingConn captures every Write call a host makes to a local client,
// standing in for the routing root's unix-domain peer connection.
type recordingConn struct {
	writes [][]byte
}

func (c *recordingConn) Write(b []byte) (int, error) {
	c.writes = append(c.writes, append([]byte(nil), b...))
	return len(b), nil
}
func (c *recordingConn) Close() error { return nil }

func newTestHost(access routing.AccessOracle) *routing.Host {
	return routing.NewHost(routing.HostConfig{
		Manager:  endpointmanager.New(endpointmanager.Config{}),
		Registry: eventreg.New(eventreg.Config{}),
		Access:   access,
	})
}

var _ = Describe("Host", func() {
	It("assigns sequential non-zero client ids", func() {
		h := newTestHost(nil)
		a, err := h.AssignClient(routing.SecClient{})
		Expect(err).ToNot(HaveOccurred())
		Expect(a).ToNot(Equal(routing.RoutingClient))

		b, err := h.AssignClient(routing.SecClient{})
		Expect(err).ToNot(HaveOccurred())
		Expect(b).ToNot(Equal(a))
		Expect(b).To(Equal(a + 1))
	})

	It("rejects Attach for a client id that was never assigned", func() {
		h := newTestHost(nil)
		err := h.Attach(0x1234, &recordingConn{})
		Expect(err).To(HaveOccurred())
		ce, ok := liberr.IsError(err)
		Expect(ok).To(BeTrue())
		Expect(ce.IsCode(liberr.CodeUnknownClient)).To(BeTrue())
	})

	It("tracks an offer and reports it back via FindOffer", func() {
		h := newTestHost(nil)
		client, err := h.AssignClient(routing.SecClient{})
		Expect(err).ToNot(HaveOccurred())

		key := routing.ServiceKey{Service: 0x1234, Instance: 0x0001}
		lifecycle := h.OfferService(key, 1, 0, client)
		Expect(lifecycle.Phase()).To(Equal(routing.OfferInitialWait))

		off, ok := h.FindOffer(key)
		Expect(ok).To(BeTrue())
		Expect(off.OfferingClient).To(Equal(client))
	})

	It("reports a silent stop for an offer that never left initial wait", func() {
		h := newTestHost(nil)
		client, _ := h.AssignClient(routing.SecClient{})
		key := routing.ServiceKey{Service: 0x1234, Instance: 0x0001}
		h.OfferService(key, 1, 0, client)

		Expect(h.StopOfferService(key)).To(BeTrue())
		_, ok := h.FindOffer(key)
		Expect(ok).To(BeFalse())
	})

	It("replays availability for a request made after the offer already exists", func() {
		h := newTestHost(nil)
		owner, _ := h.AssignClient(routing.SecClient{})
		requester, _ := h.AssignClient(routing.SecClient{})
		key := routing.ServiceKey{Service: 0x1234, Instance: 0x0001}

		h.OfferService(key, 1, 0, owner)
		Expect(h.RequestService(key, requester)).To(BeTrue())
		Expect(h.Requesters(key)).To(ContainElement(requester))
	})

	It("denies Send when the access oracle rejects the call", func() {
		denied := false
		h := newTestHost(func(sec routing.SecClient, client uint16, service, instance, method uint16) bool {
			denied = true
			return false
		})
		key := routing.ServiceKey{Service: 0x1234, Instance: 0x0001}
		err := h.Send(1, routing.SecClient{}, key, 0x1, []byte("hi"))
		Expect(err).To(HaveOccurred())
		Expect(denied).To(BeTrue())
		ce, ok := liberr.IsError(err)
		Expect(ok).To(BeTrue())
		Expect(ce.IsCode(liberr.CodeAccessDenied)).To(BeTrue())
	})

	It("caches an access decision instead of re-consulting the oracle", func() {
		calls := 0
		h := newTestHost(func(sec routing.SecClient, client uint16, service, instance, method uint16) bool {
			calls++
			return true
		})
		owner, _ := h.AssignClient(routing.SecClient{})
		h.Attach(owner, &recordingConn{})
		key := routing.ServiceKey{Service: 0x1234, Instance: 0x0001}
		h.OfferService(key, 1, 0, owner)

		Expect(h.Send(1, routing.SecClient{}, key, 0x1, []byte("hi"))).To(Succeed())
		Expect(h.Send(1, routing.SecClient{}, key, 0x1, []byte("hi"))).To(Succeed())
		Expect(calls).To(Equal(1))
	})

	It("re-consults the oracle after ResetAccessCache", func() {
		calls := 0
		h := newTestHost(func(sec routing.SecClient, client uint16, service, instance, method uint16) bool {
			calls++
			return true
		})
		owner, _ := h.AssignClient(routing.SecClient{})
		h.Attach(owner, &recordingConn{})
		key := routing.ServiceKey{Service: 0x1234, Instance: 0x0001}
		h.OfferService(key, 1, 0, owner)

		Expect(h.Send(1, routing.SecClient{}, key, 0x1, []byte("hi"))).To(Succeed())
		h.ResetAccessCache()
		Expect(h.Send(1, routing.SecClient{}, key, 0x1, []byte("hi"))).To(Succeed())
		Expect(calls).To(Equal(2))
	})

	It("reports service unavailable when nothing offers the target key", func() {
		h := newTestHost(nil)
		key := routing.ServiceKey{Service: 0x1234, Instance: 0x0001}
		err := h.Send(1, routing.SecClient{}, key, 0x1, []byte("hi"))
		Expect(err).To(HaveOccurred())
		ce, ok := liberr.IsError(err)
		Expect(ok).To(BeTrue())
		Expect(ce.IsCode(liberr.CodeServiceUnavailable)).To(BeTrue())
	})

	It("delivers Send to the attached connection of the offering client", func() {
		h := newTestHost(nil)
		owner, _ := h.AssignClient(routing.SecClient{})
		conn := &recordingConn{}
		Expect(h.Attach(owner, conn)).To(Succeed())

		key := routing.ServiceKey{Service: 0x1234, Instance: 0x0001}
		h.OfferService(key, 1, 0, owner)

		Expect(h.Send(2, routing.SecClient{}, key, 0x1, []byte("payload"))).To(Succeed())
		Expect(conn.writes).To(HaveLen(1))
		Expect(conn.writes[0]).To(Equal([]byte("payload")))
	})

	It("drops a client's offers and requests on Detach", func() {
		h := newTestHost(nil)
		owner, _ := h.AssignClient(routing.SecClient{})
		key := routing.ServiceKey{Service: 0x1234, Instance: 0x0001}
		h.OfferService(key, 1, 0, owner)

		h.Detach(owner)
		_, ok := h.FindOffer(key)
		Expect(ok).To(BeFalse())
	})
})
