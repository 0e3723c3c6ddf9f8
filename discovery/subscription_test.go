package discovery_test

import (
	"time"

	"github.com/COVESA/vsomeip-sub001/discovery"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SubscriptionTable", func() {
	var table *discovery.SubscriptionTable
	key := discovery.EventgroupKey{Service: 0x1234, Instance: 0x0001, Eventgroup: 0x0010}
	endpoint := discovery.EndpointRef{Port: 30509, Reliable: false}

	BeforeEach(func() {
		table = discovery.NewSubscriptionTable()
	})

	It("reports a fresh subscription as new", func() {
		isNew := table.Upsert(discovery.RemoteSubscription{Key: key, Client: "10.0.0.9", Unreliable: endpoint}, time.Second)
		Expect(isNew).To(BeTrue())
	})

	It("merges a re-subscription carrying identical endpoints", func() {
		table.Upsert(discovery.RemoteSubscription{Key: key, Client: "10.0.0.9", Unreliable: endpoint}, time.Second)
		isNew := table.Upsert(discovery.RemoteSubscription{Key: key, Client: "10.0.0.9", Unreliable: endpoint}, 5*time.Second)
		Expect(isNew).To(BeFalse())
	})

	It("treats a changed endpoint as a new subscription", func() {
		table.Upsert(discovery.RemoteSubscription{Key: key, Client: "10.0.0.9", Unreliable: endpoint}, time.Second)
		other := discovery.EndpointRef{Port: 30510}
		isNew := table.Upsert(discovery.RemoteSubscription{Key: key, Client: "10.0.0.9", Unreliable: other}, time.Second)
		Expect(isNew).To(BeTrue())
	})

	It("expires every subscription from a given address on reboot", func() {
		table.Upsert(discovery.RemoteSubscription{Key: key, Client: "10.0.0.9", Unreliable: endpoint}, time.Second)
		other := discovery.EventgroupKey{Service: 0x1234, Instance: 0x0001, Eventgroup: 0x0011}
		table.Upsert(discovery.RemoteSubscription{Key: other, Client: "10.0.0.9", Unreliable: endpoint}, time.Second)
		table.Upsert(discovery.RemoteSubscription{Key: key, Client: "10.0.0.10", Unreliable: endpoint}, time.Second)

		expired := table.ExpireFrom("10.0.0.9")
		Expect(expired).To(HaveLen(2))
	})

	It("ages subscriptions out once their TTL is exhausted", func() {
		table.Upsert(discovery.RemoteSubscription{Key: key, Client: "10.0.0.9", Unreliable: endpoint}, 10*time.Millisecond)
		expired := table.Tick(50 * time.Millisecond)
		Expect(expired).To(HaveLen(1))
		Expect(expired[0].Client).To(Equal("10.0.0.9"))
	})
})

var _ = Describe("PendingAck", func() {
	It("fires immediately for an empty batch", func() {
		fired := false
		discovery.NewPendingAck(0, func() { fired = true })
		Expect(fired).To(BeTrue())
	})

	It("fires only once every member of the batch resolves", func() {
		count := 0
		batch := discovery.NewPendingAck(3, func() { count++ })
		batch.Resolve()
		batch.Resolve()
		Expect(count).To(Equal(0))
		batch.Resolve()
		Expect(count).To(Equal(1))
	})

	It("does not fire again if resolved past its count", func() {
		count := 0
		batch := discovery.NewPendingAck(1, func() { count++ })
		batch.Resolve()
		batch.Resolve()
		Expect(count).To(Equal(1))
	})
})
