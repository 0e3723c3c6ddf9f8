package eventreg_test

import (
	"time"

	"github.com/COVESA/vsomeip-sub001/eventreg"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ChangeFilter", func() {
	It("ignores fully-masked bytes", func() {
		f := eventreg.ChangeFilter{IgnoreMask: []byte{0xFF, 0x00}}
		Expect(f.Changed([]byte{0x01, 0x02}, []byte{0x99, 0x02})).To(BeFalse())
		Expect(f.Changed([]byte{0x01, 0x02}, []byte{0x99, 0x03})).To(BeTrue())
	})

	It("treats a length difference outside the mask as a change", func() {
		f := eventreg.ChangeFilter{}
		Expect(f.Changed([]byte{0x01}, []byte{0x01, 0x02})).To(BeTrue())
	})

	It("masks individual bits within a byte", func() {
		f := eventreg.ChangeFilter{IgnoreMask: []byte{0x0F}}
		Expect(f.Changed([]byte{0x10}, []byte{0x1F})).To(BeFalse())
		Expect(f.Changed([]byte{0x10}, []byte{0x20})).To(BeTrue())
	})
})

var _ = Describe("SubscriberFilter", func() {
	It("always forwards the first payload for a key", func() {
		sf := eventreg.NewSubscriberFilter(&eventreg.ChangeFilter{}, 0, false)
		Expect(sf.Allow("k", []byte{0x01}, time.Now())).To(BeTrue())
	})

	It("suppresses an unchanged payload within the interval", func() {
		sf := eventreg.NewSubscriberFilter(&eventreg.ChangeFilter{}, time.Hour, false)
		now := time.Now()
		Expect(sf.Allow("k", []byte{0x01}, now)).To(BeTrue())
		Expect(sf.Allow("k", []byte{0x01}, now.Add(time.Second))).To(BeFalse())
	})

	It("forwards on change even within the interval", func() {
		sf := eventreg.NewSubscriberFilter(&eventreg.ChangeFilter{}, time.Hour, false)
		now := time.Now()
		Expect(sf.Allow("k", []byte{0x01}, now)).To(BeTrue())
		Expect(sf.Allow("k", []byte{0x02}, now.Add(time.Second))).To(BeTrue())
	})

	It("forwards once the interval has elapsed even without a change", func() {
		sf := eventreg.NewSubscriberFilter(&eventreg.ChangeFilter{}, 10*time.Millisecond, false)
		now := time.Now()
		Expect(sf.Allow("k", []byte{0x01}, now)).To(BeTrue())
		Expect(sf.Allow("k", []byte{0x01}, now.Add(20*time.Millisecond))).To(BeTrue())
	})
})
