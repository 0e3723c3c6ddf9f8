package discovery_test

import (
	"time"

	libdur "github.com/COVESA/vsomeip-sub001/duration"
	"github.com/COVESA/vsomeip-sub001/discovery"
	"github.com/COVESA/vsomeip-sub001/routing"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("OfferTimers", func() {
	It("emits an initial offer then enters the main phase when repetitions are disabled", func() {
		cfg := discovery.Config{
			InitialDelayMin:  libdur.Duration(5 * time.Millisecond),
			InitialDelayMax:  libdur.Duration(5 * time.Millisecond),
			CyclicOfferDelay: libdur.Duration(15 * time.Millisecond),
		}
		life := routing.NewOfferLifecycle()
		emits := make(chan struct{}, 10)
		timers := discovery.NewOfferTimers(cfg, life, func() {
			select {
			case emits <- struct{}{}:
			default:
			}
		})
		defer timers.Stop()

		timers.Start()
		Eventually(emits).Should(Receive())
		Eventually(life.Phase, 50*time.Millisecond).Should(Equal(routing.OfferMain))
	})

	It("walks through the repetition phase before entering main", func() {
		cfg := discovery.Config{
			InitialDelayMin:      libdur.Duration(2 * time.Millisecond),
			InitialDelayMax:      libdur.Duration(2 * time.Millisecond),
			RepetitionsBaseDelay: libdur.Duration(3 * time.Millisecond),
			RepetitionsMax:       2,
			CyclicOfferDelay:     libdur.Duration(30 * time.Millisecond),
		}
		life := routing.NewOfferLifecycle()
		timers := discovery.NewOfferTimers(cfg, life, func() {})
		defer timers.Stop()

		timers.Start()
		Eventually(life.Phase, 20*time.Millisecond).Should(Equal(routing.OfferRepetition))
		Eventually(life.Phase, 100*time.Millisecond).Should(Equal(routing.OfferMain))
	})

	It("stops silently while still in initial wait", func() {
		cfg := discovery.Config{
			InitialDelayMin:  libdur.Duration(time.Hour),
			InitialDelayMax:  libdur.Duration(time.Hour),
			CyclicOfferDelay: libdur.Duration(time.Hour),
		}
		life := routing.NewOfferLifecycle()
		timers := discovery.NewOfferTimers(cfg, life, func() {})
		timers.Start()
		Expect(timers.StopSilently()).To(BeTrue())
	})
})

var _ = Describe("FindTimers", func() {
	It("debounces repeated triggers into a single emission", func() {
		emits := make(chan struct{}, 10)
		timers := discovery.NewFindTimers(15*time.Millisecond, func() {
			emits <- struct{}{}
		})
		defer timers.Stop()

		timers.Trigger()
		timers.Trigger()
		timers.Trigger()

		Eventually(emits, 50*time.Millisecond).Should(Receive())
		Consistently(emits, 30*time.Millisecond).ShouldNot(Receive())
	})
})
