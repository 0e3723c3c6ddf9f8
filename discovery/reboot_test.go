package discovery_test

import (
	"github.com/COVESA/vsomeip-sub001/discovery"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RebootTracker", func() {
	var tracker *discovery.RebootTracker

	BeforeEach(func() {
		tracker = discovery.NewRebootTracker()
	})

	It("reports no reboot on the first observation", func() {
		Expect(tracker.Observe("10.0.0.5", discovery.DirectionMulticast, 1, true)).To(BeFalse())
	})

	It("detects a reboot on the false->true transition", func() {
		tracker.Observe("10.0.0.5", discovery.DirectionMulticast, 5, false)
		Expect(tracker.Observe("10.0.0.5", discovery.DirectionMulticast, 6, true)).To(BeTrue())
	})

	It("detects a reboot when the session fails to increase while reboot stays set", func() {
		tracker.Observe("10.0.0.5", discovery.DirectionMulticast, 10, true)
		Expect(tracker.Observe("10.0.0.5", discovery.DirectionMulticast, 10, true)).To(BeTrue())
		Expect(tracker.Observe("10.0.0.5", discovery.DirectionMulticast, 3, true)).To(BeTrue())
	})

	It("does not flag a normally increasing session", func() {
		tracker.Observe("10.0.0.5", discovery.DirectionMulticast, 1, true)
		Expect(tracker.Observe("10.0.0.5", discovery.DirectionMulticast, 2, true)).To(BeFalse())
	})

	It("tracks each direction independently", func() {
		tracker.Observe("10.0.0.5", discovery.DirectionMulticast, 1, true)
		Expect(tracker.Observe("10.0.0.5", discovery.DirectionUnicast, 1, true)).To(BeFalse())
	})

	It("forgets tracking so the next observation is treated as new", func() {
		tracker.Observe("10.0.0.5", discovery.DirectionMulticast, 1, true)
		tracker.Forget("10.0.0.5")
		Expect(tracker.Observe("10.0.0.5", discovery.DirectionMulticast, 1, true)).To(BeFalse())
	})
})

var _ = Describe("SessionCounter", func() {
	It("starts at session 1 with reboot set", func() {
		counter := discovery.NewSessionCounter()
		session, reboot := counter.Next("239.0.0.1")
		Expect(session).To(Equal(uint16(1)))
		Expect(reboot).To(BeTrue())
	})

	It("increments monotonically and keeps reboot set until the first wraparound", func() {
		counter := discovery.NewSessionCounter()
		counter.Next("239.0.0.1")
		session, reboot := counter.Next("239.0.0.1")
		Expect(session).To(Equal(uint16(2)))
		Expect(reboot).To(BeTrue())
	})

	It("tracks each destination independently", func() {
		counter := discovery.NewSessionCounter()
		counter.Next("239.0.0.1")
		session, _ := counter.Next("10.0.0.9")
		Expect(session).To(Equal(uint16(1)))
	})
})
