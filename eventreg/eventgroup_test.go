package eventreg_test

import (
	"net"

	"github.com/COVESA/vsomeip-sub001/eventreg"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var gid = eventreg.EventgroupID{Service: 0x1234, Instance: 1, Eventgroup: 0x4465}

var _ = Describe("Eventgroup", func() {
	It("fixes auto reliability on the first event added", func() {
		g := eventreg.NewEventgroup(gid, 1, 5, eventreg.ReliabilityAuto)
		Expect(g.Reliability()).To(Equal(eventreg.ReliabilityAuto))

		e := eventreg.NewEvent(eventreg.EventID{Service: 0x1234, Instance: 1, Event: 0x8001}, true, nil, nil)
		g.AddEvent(e, eventreg.ReliabilityReliable)
		Expect(g.Reliability()).To(Equal(eventreg.ReliabilityReliable))
	})

	It("is selective iff it has exactly one selective event", func() {
		g := eventreg.NewEventgroup(gid, 1, 5, eventreg.ReliabilityUnreliable)
		Expect(g.IsSelective()).To(BeFalse())

		e1 := eventreg.NewEvent(eventreg.EventID{Event: 1}, false, nil, nil)
		e1.Selective = true
		g.AddEvent(e1, eventreg.ReliabilityUnreliable)
		Expect(g.IsSelective()).To(BeTrue())

		e2 := eventreg.NewEvent(eventreg.EventID{Event: 2}, false, nil, nil)
		e2.Selective = true
		g.AddEvent(e2, eventreg.ReliabilityUnreliable)
		Expect(g.IsSelective()).To(BeFalse())
	})

	It("reports multicast sending once the subscriber threshold is reached", func() {
		g := eventreg.NewEventgroup(gid, 1, 5, eventreg.ReliabilityUnreliable)
		g.SetMulticast(net.IPv4(239, 0, 0, 1), 30491, 2)
		Expect(g.IsSendingMulticast()).To(BeFalse())

		g.AddSubscriber(eventreg.NewSubscriber(0x0001, nil))
		Expect(g.IsSendingMulticast()).To(BeFalse())

		g.AddSubscriber(eventreg.NewSubscriber(0x0002, nil))
		Expect(g.IsSendingMulticast()).To(BeTrue())
	})

	It("assigns the selective slot to the first selective subscriber", func() {
		g := eventreg.NewEventgroup(gid, 1, 5, eventreg.ReliabilityUnreliable)
		a := eventreg.NewSelectiveSubscriber(0x0101, nil, []uint16{0x0101})
		b := eventreg.NewSelectiveSubscriber(0x0102, nil, []uint16{0x0102})

		g.AddSubscriber(a)
		g.AddSubscriber(b)

		active, ok := g.SelectiveActive()
		Expect(ok).To(BeTrue())
		Expect(active).To(Equal(uint16(0x0101)))
	})
})
