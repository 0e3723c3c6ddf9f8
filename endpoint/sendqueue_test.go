package endpoint_test

import (
	"time"

	"github.com/COVESA/vsomeip-sub001/endpoint"
	liblog "github.com/COVESA/vsomeip-sub001/logger"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SendQueue", func() {
	It("dispatches buffers in FIFO order and tracks byte count", func() {
		q := endpoint.NewSendQueue(endpoint.SendQueueConfig{Logger: liblog.Discard()})
		Expect(q.Enqueue([]byte("one"))).To(Succeed())
		Expect(q.Enqueue([]byte("two"))).To(Succeed())
		Expect(q.Bytes()).To(Equal(6))
		Expect(q.Len()).To(Equal(2))

		b, ok := q.Dispatch()
		Expect(ok).To(BeTrue())
		Expect(string(b)).To(Equal("one"))
		Expect(q.Bytes()).To(Equal(3))

		q.Complete()
		b, ok = q.Dispatch()
		Expect(ok).To(BeTrue())
		Expect(string(b)).To(Equal("two"))
	})

	It("rejects an enqueue that would exceed queue_limit", func() {
		q := endpoint.NewSendQueue(endpoint.SendQueueConfig{QueueLimit: 4, Logger: liblog.Discard()})
		Expect(q.Enqueue([]byte("abcd"))).To(Succeed())
		Expect(q.Enqueue([]byte("e"))).To(HaveOccurred())
	})

	It("warns at half of send_timeout and reports timeout past the full duration", func() {
		q := endpoint.NewSendQueue(endpoint.SendQueueConfig{SendTimeout: 40 * time.Millisecond, Logger: liblog.Discard()})
		Expect(q.Enqueue([]byte("x"))).To(Succeed())
		_, ok := q.Dispatch()
		Expect(ok).To(BeTrue())

		Expect(q.Tick(nil)).To(Equal(endpoint.WatchOK))

		time.Sleep(25 * time.Millisecond)
		Expect(q.Tick(nil)).To(Equal(endpoint.WatchWarnHalf))

		time.Sleep(25 * time.Millisecond)
		Expect(q.Tick(nil)).To(Equal(endpoint.WatchTimedOut))
	})
})
