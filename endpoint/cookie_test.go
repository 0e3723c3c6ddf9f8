package endpoint_test

import (
	"github.com/COVESA/vsomeip-sub001/endpoint"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CookieSender", func() {
	It("never injects a cookie when disabled", func() {
		c := endpoint.NewCookieSender(false)
		payload := []byte{1, 2, 3}
		Expect(c.Prepare(payload)).To(Equal(payload))
	})

	It("prepends exactly one cookie for the first burst, then throttles", func() {
		c := endpoint.NewCookieSender(true)
		payload := []byte{1, 2, 3}

		first := c.Prepare(payload)
		Expect(first).To(HaveLen(len(libsomeip.ServiceCookie) + len(payload)))
		Expect(first[:len(libsomeip.ServiceCookie)]).To(Equal(libsomeip.ServiceCookie))

		second := c.Prepare(payload)
		Expect(second).To(Equal(payload))
	})
})
