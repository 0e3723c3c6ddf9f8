package endpoint_test

import (
	"github.com/COVESA/vsomeip-sub001/endpoint"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func encodeMsg(payloadLen int) []byte {
	return libsomeip.Encode(libsomeip.Message{
		Header:  libsomeip.Header{ServiceID: 0x1111, MethodID: 0x2222},
		Payload: make([]byte, payloadLen),
	})
}

var _ = Describe("Framer", func() {
	It("delivers a single complete message fed in one shot", func() {
		f := endpoint.NewFramer(endpoint.DefaultFramerConfig())
		msg := encodeMsg(10)
		f.Feed(msg)

		messages, cookieErrs, teardown := f.TakeMessages()
		Expect(teardown).ToNot(HaveOccurred())
		Expect(cookieErrs).To(BeEmpty())
		Expect(messages).To(HaveLen(1))
		Expect(messages[0]).To(Equal(msg))
		Expect(f.Buffered()).To(Equal(0))
	})

	It("waits for more bytes on a partial header", func() {
		f := endpoint.NewFramer(endpoint.DefaultFramerConfig())
		msg := encodeMsg(10)
		f.Feed(msg[:5])

		messages, _, teardown := f.TakeMessages()
		Expect(teardown).ToNot(HaveOccurred())
		Expect(messages).To(BeEmpty())
		Expect(f.Buffered()).To(Equal(5))
	})

	It("delivers two back-to-back messages from one read", func() {
		f := endpoint.NewFramer(endpoint.DefaultFramerConfig())
		m1 := encodeMsg(4)
		m2 := encodeMsg(8)
		f.Feed(append(append([]byte{}, m1...), m2...))

		messages, _, teardown := f.TakeMessages()
		Expect(teardown).ToNot(HaveOccurred())
		Expect(messages).To(HaveLen(2))
		Expect(messages[0]).To(Equal(m1))
		Expect(messages[1]).To(Equal(m2))
	})

	It("tears the connection down when a message exceeds max_message_size with cookies disabled", func() {
		cfg := endpoint.DefaultFramerConfig()
		cfg.MaxMessageSize = 16
		f := endpoint.NewFramer(cfg)
		f.Feed(encodeMsg(64))

		_, _, teardown := f.TakeMessages()
		Expect(teardown).To(HaveOccurred())
	})

	It("resyncs on a magic cookie and reports the discarded prefix as malformed", func() {
		cfg := endpoint.DefaultFramerConfig()
		cfg.MaxMessageSize = 24
		cfg.MagicCookiesEnabled = true
		f := endpoint.NewFramer(cfg)

		oversized := encodeMsg(64)[:20] // an oversized, never-completing prefix
		good := encodeMsg(4)

		stream := append(append([]byte{}, oversized...), libsomeip.ClientCookie...)
		stream = append(stream, good...)
		f.Feed(stream)

		messages, cookieErrs, teardown := f.TakeMessages()
		Expect(teardown).ToNot(HaveOccurred())
		Expect(cookieErrs).ToNot(BeEmpty())
		Expect(messages).To(HaveLen(1))
		Expect(messages[0]).To(Equal(good))
	})

	It("consumes a leading magic cookie ahead of a real message and still reports it as malformed", func() {
		cfg := endpoint.DefaultFramerConfig()
		cfg.MagicCookiesEnabled = true
		f := endpoint.NewFramer(cfg)

		msg := encodeMsg(4)
		f.Feed(append(append([]byte{}, libsomeip.ServiceCookie...), msg...))

		messages, cookieErrs, teardown := f.TakeMessages()
		Expect(teardown).ToNot(HaveOccurred())
		Expect(cookieErrs).To(HaveLen(1))
		Expect(messages).To(HaveLen(1))
		Expect(messages[0]).To(Equal(msg))
	})

	It("shrinks the buffer back to initial capacity after enough consecutive empty drains", func() {
		cfg := endpoint.DefaultFramerConfig()
		cfg.InitialCapacity = 64
		cfg.ShrinkThreshold = 32
		cfg.ShrinkAfterEmpty = 2
		f := endpoint.NewFramer(cfg)

		big := encodeMsg(100)
		f.Feed(big)
		messages, _, teardown := f.TakeMessages()
		Expect(teardown).ToNot(HaveOccurred())
		Expect(messages).To(HaveLen(1))
		Expect(f.Capacity()).To(BeNumerically(">", cfg.ShrinkThreshold))

		f.Feed(nil)
		f.TakeMessages()
		f.Feed(nil)
		f.TakeMessages()

		Expect(f.Capacity()).To(Equal(cfg.InitialCapacity))
	})
})
