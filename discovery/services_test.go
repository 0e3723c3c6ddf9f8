package discovery_test

import (
	"net"
	"time"

	"github.com/COVESA/vsomeip-sub001/discovery"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ServiceTable", func() {
	var table *discovery.ServiceTable
	key := discovery.ServiceKey{Service: 0x1234, Instance: 0x0001}

	BeforeEach(func() {
		table = discovery.NewServiceTable()
	})

	It("finds an upserted service", func() {
		table.Upsert(discovery.RemoteService{Key: key, Major: 1}, time.Second)
		svc, ok := table.Find(key)
		Expect(ok).To(BeTrue())
		Expect(svc.Major).To(Equal(uint8(1)))
	})

	It("removes a service and reports it", func() {
		table.Upsert(discovery.RemoteService{Key: key}, time.Second)
		svc, ok := table.Remove(key)
		Expect(ok).To(BeTrue())
		Expect(svc.Key).To(Equal(key))
		_, stillThere := table.Find(key)
		Expect(stillThere).To(BeFalse())
	})

	It("expires services matching a predicate", func() {
		table.Upsert(discovery.RemoteService{Key: key, From: net.IPv4(10, 0, 0, 9)}, time.Second)
		expired := table.ExpireFrom(func(s discovery.RemoteService) bool {
			return s.From.Equal(net.IPv4(10, 0, 0, 9))
		})
		Expect(expired).To(HaveLen(1))
	})

	It("ages a service out once its TTL is exhausted", func() {
		table.Upsert(discovery.RemoteService{Key: key}, 10*time.Millisecond)
		expired := table.Tick(50 * time.Millisecond)
		Expect(expired).To(HaveLen(1))
	})

	It("does not expire a service with remaining TTL", func() {
		table.Upsert(discovery.RemoteService{Key: key}, time.Second)
		expired := table.Tick(10 * time.Millisecond)
		Expect(expired).To(BeEmpty())
	})
})

var _ = Describe("MulticastWatchdog", func() {
	It("invokes onStale once the cyclic offer delay has elapsed without traffic", func() {
		stale := make(chan struct{}, 1)
		watchdog := discovery.NewMulticastWatchdog(20*time.Millisecond, func() {
			select {
			case stale <- struct{}{}:
			default:
			}
		})
		go watchdog.Run()
		defer watchdog.Stop()

		Eventually(stale).Should(Receive())
	})

	It("does not fire while Observe keeps refreshing it", func() {
		stale := make(chan struct{}, 1)
		watchdog := discovery.NewMulticastWatchdog(40*time.Millisecond, func() {
			select {
			case stale <- struct{}{}:
			default:
			}
		})
		go watchdog.Run()
		defer watchdog.Stop()

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(5 * time.Millisecond)
			defer ticker.Stop()
			for i := 0; i < 6; i++ {
				<-ticker.C
				watchdog.Observe()
			}
			close(done)
		}()
		<-done
		Consistently(stale, 20*time.Millisecond).ShouldNot(Receive())
	})
})
