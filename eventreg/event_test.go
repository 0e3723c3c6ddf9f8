package eventreg_test

import (
	"sync"
	"time"

	"github.com/COVESA/vsomeip-sub001/eventreg"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Event", func() {
	id := eventreg.EventID{Service: 0x1234, Instance: 1, Event: 0x8001}

	It("is unset until the first payload arrives", func() {
		e := eventreg.NewEvent(id, true, nil, nil)
		Expect(e.IsSet()).To(BeFalse())
		Expect(e.SetPayload([]byte{0x01}, false)).To(BeTrue())
		Expect(e.IsSet()).To(BeTrue())
		Expect(e.Payload()).To(Equal([]byte{0x01}))
	})

	It("ignores a repeated identical payload unless forced", func() {
		e := eventreg.NewEvent(id, true, nil, nil)
		Expect(e.SetPayload([]byte{0x01}, false)).To(BeTrue())
		Expect(e.SetPayload([]byte{0x01}, false)).To(BeFalse())
		Expect(e.SetPayload([]byte{0x01}, true)).To(BeTrue())
	})

	It("notifies all subscribers on change when update-on-change is set", func() {
		var mu sync.Mutex
		var got []byte
		e := eventreg.NewEvent(id, true, func(_ eventreg.EventID, payload []byte) {
			mu.Lock()
			got = payload
			mu.Unlock()
		}, nil)
		e.UpdateOnChange = true

		e.SetPayload([]byte{0x2A}, false)

		mu.Lock()
		defer mu.Unlock()
		Expect(got).To(Equal([]byte{0x2A}))
	})

	It("queues notify_one targets until the event has a payload, then flushes once in order", func() {
		var mu sync.Mutex
		var delivered []uint16
		e := eventreg.NewEvent(id, false, nil, func(client uint16, _ eventreg.EventID, _ []byte) {
			mu.Lock()
			delivered = append(delivered, client)
			mu.Unlock()
		})

		e.NotifyOne(0x0001)
		e.NotifyOne(0x0002)

		mu.Lock()
		Expect(delivered).To(BeEmpty())
		mu.Unlock()

		e.SetPayloadNotifyPending([]byte{0x01})

		mu.Lock()
		defer mu.Unlock()
		Expect(delivered).To(Equal([]uint16{0x0001, 0x0002}))
	})

	It("delivers directly to notify_one once the event is already set", func() {
		delivered := make(chan uint16, 1)
		e := eventreg.NewEvent(id, true, nil, func(client uint16, _ eventreg.EventID, _ []byte) {
			delivered <- client
		})
		e.SetPayload([]byte{0x01}, false)

		e.NotifyOne(0x0003)
		Eventually(delivered, time.Second).Should(Receive(Equal(uint16(0x0003))))
	})

	It("fires the cyclic timer repeatedly once a field has been set", func() {
		fired := make(chan []byte, 4)
		e := eventreg.NewEvent(id, true, func(_ eventreg.EventID, payload []byte) {
			fired <- payload
		}, nil)
		e.CyclePeriod = 10 * time.Millisecond

		e.SetPayload([]byte{0x07}, false)

		Eventually(fired, time.Second).Should(Receive(Equal([]byte{0x07})))
		Eventually(fired, time.Second).Should(Receive(Equal([]byte{0x07})))

		e.Close()
	})
})
