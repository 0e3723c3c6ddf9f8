package discovery_test

import (
	"net"
	"sync"
	"time"

	"github.com/COVESA/vsomeip-sub001/discovery"
	libdur "github.com/COVESA/vsomeip-sub001/duration"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordedSend struct {
	mu    sync.Mutex
	sends []libsomeip.SDMessage
	dests []string
}

func (r *recordedSend) fn(dest string, sd libsomeip.SDMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dests = append(r.dests, dest)
	r.sends = append(r.sends, sd)
	return nil
}

func (r *recordedSend) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends)
}

func (r *recordedSend) last() libsomeip.SDMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sends[len(r.sends)-1]
}

var _ = Describe("Discovery", func() {
	var (
		send *recordedSend
		disc *discovery.Discovery
		key  = discovery.ServiceKey{Service: 0x1234, Instance: 0x0001}
	)

	BeforeEach(func() {
		send = &recordedSend{}
		cfg := discovery.Config{
			TTL:              3,
			InitialDelayMin:  libdur.Duration(2 * time.Millisecond),
			InitialDelayMax:  libdur.Duration(2 * time.Millisecond),
			CyclicOfferDelay: libdur.Duration(500 * time.Millisecond),
		}
		disc = discovery.New(cfg, discovery.Deps{Send: send.fn})
	})

	AfterEach(func() {
		disc.Stop()
	})

	It("emits an offer entry once the initial wait elapses", func() {
		disc.OfferService(key, 1, 0, discovery.EndpointRef{}, discovery.EndpointRef{Address: net.IPv4(10, 0, 0, 5), Port: 30509})
		Eventually(send.count, time.Second).Should(BeNumerically(">=", 1))
		sd := send.last()
		Expect(sd.Entries).To(HaveLen(1))
		Expect(sd.Entries[0].Type).To(Equal(libsomeip.EntryOfferService))
		Expect(sd.Entries[0].ServiceID).To(Equal(uint16(0x1234)))
		Expect(sd.Options).To(HaveLen(1))
	})

	It("emits a ttl=0 entry when stopping an offer that reached the main phase", func() {
		cfg := discovery.Config{
			TTL:              3,
			InitialDelayMin:  libdur.Duration(2 * time.Millisecond),
			InitialDelayMax:  libdur.Duration(2 * time.Millisecond),
			CyclicOfferDelay: libdur.Duration(10 * time.Millisecond),
		}
		disc = discovery.New(cfg, discovery.Deps{Send: send.fn})

		disc.OfferService(key, 1, 0, discovery.EndpointRef{}, discovery.EndpointRef{Address: net.IPv4(10, 0, 0, 5), Port: 30509})
		// wait until the offer has entered its main (cyclic) phase, so
		// stopping it is no longer the silent initial-wait cancellation.
		time.Sleep(30 * time.Millisecond)

		disc.StopOfferService(key)
		Eventually(func() uint32 {
			sd := send.last()
			return sd.Entries[0].TTL
		}, time.Second).Should(Equal(uint32(0)))
	})

	It("coalesces repeat OfferService calls within the debounce window instead of restarting immediately", func() {
		cfg := discovery.Config{
			TTL:               3,
			InitialDelayMin:   libdur.Duration(2 * time.Millisecond),
			InitialDelayMax:   libdur.Duration(2 * time.Millisecond),
			CyclicOfferDelay:  libdur.Duration(500 * time.Millisecond),
			OfferDebounceTime: libdur.Duration(80 * time.Millisecond),
		}
		disc = discovery.New(cfg, discovery.Deps{Send: send.fn})

		disc.OfferService(key, 1, 0, discovery.EndpointRef{}, discovery.EndpointRef{Address: net.IPv4(10, 0, 0, 5), Port: 30509})
		Eventually(send.count, time.Second).Should(BeNumerically(">=", 1))
		afterFirst := send.count()

		// Repeat calls within the debounce window must not each restart the
		// phase machine (which would each emit its own fresh offer entry
		// after only its 2ms initial wait); they should coalesce into a
		// single later restart.
		for i := 0; i < 5; i++ {
			disc.OfferService(key, 1, 0, discovery.EndpointRef{}, discovery.EndpointRef{Address: net.IPv4(10, 0, 0, 5), Port: 30509})
			time.Sleep(10 * time.Millisecond)
		}
		Expect(send.count()).To(Equal(afterFirst))

		// Once the debounce window elapses, the coalesced restart fires and
		// the offer is re-sent exactly once more.
		Eventually(send.count, time.Second).Should(Equal(afterFirst + 1))
		Consistently(send.count, 150*time.Millisecond, 20*time.Millisecond).Should(Equal(afterFirst + 1))
	})

	It("installs a remote service from an inbound offer entry and reports availability", func() {
		var got discovery.RemoteService
		var available bool
		cfg := discovery.Config{CyclicOfferDelay: libdur.Duration(time.Second)}
		disc = discovery.New(cfg, discovery.Deps{
			Send: send.fn,
			OnAvailability: func(svc discovery.RemoteService, avail bool) {
				got = svc
				available = avail
			},
		})

		sd := libsomeip.SDMessage{Entries: []libsomeip.Entry{{
			Type: libsomeip.EntryOfferService, ServiceID: 0x1234, InstanceID: 0x0001, MajorVersion: 1, TTL: 3,
		}}}
		disc.HandleInbound("10.0.0.9", discovery.DirectionMulticast, 1, sd)

		Expect(available).To(BeTrue())
		Expect(got.Key).To(Equal(key))
	})

	It("invokes the reboot handler once a reboot transition is observed", func() {
		var rebootAddr net.IP
		cfg := discovery.Config{CyclicOfferDelay: libdur.Duration(time.Second)}
		disc = discovery.New(cfg, discovery.Deps{
			Send:     send.fn,
			OnReboot: func(addr net.IP) { rebootAddr = addr },
		})

		disc.HandleInbound("10.0.0.9", discovery.DirectionMulticast, 5, libsomeip.SDMessage{Reboot: false})
		disc.HandleInbound("10.0.0.9", discovery.DirectionMulticast, 6, libsomeip.SDMessage{Reboot: true})

		Expect(rebootAddr).NotTo(BeNil())
		Expect(rebootAddr.String()).To(Equal("10.0.0.9"))
	})

	It("sends a combined ack for every subscribe entry in one inbound message", func() {
		cfg := discovery.Config{CyclicOfferDelay: libdur.Duration(time.Second)}
		disc = discovery.New(cfg, discovery.Deps{Send: send.fn})

		sd := libsomeip.SDMessage{Entries: []libsomeip.Entry{
			{Type: libsomeip.EntrySubscribeEventgroup, ServiceID: 0x1234, InstanceID: 0x0001, EventgroupID: 0x0010, TTL: 3},
			{Type: libsomeip.EntrySubscribeEventgroup, ServiceID: 0x1234, InstanceID: 0x0001, EventgroupID: 0x0011, TTL: 3},
		}}
		disc.HandleInbound("10.0.0.9", discovery.DirectionUnicast, 1, sd)

		Eventually(send.count).Should(Equal(1))
		Expect(send.last().Entries).To(HaveLen(2))
		for _, e := range send.last().Entries {
			Expect(e.Type).To(Equal(libsomeip.EntrySubscribeEventAck))
			Expect(e.TTL).To(Equal(uint32(3)))
		}
	})
})
