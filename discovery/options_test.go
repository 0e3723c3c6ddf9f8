package discovery_test

import (
	"net"

	"github.com/COVESA/vsomeip-sub001/discovery"
	liberr "github.com/COVESA/vsomeip-sub001/errors"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func ipv4EndpointOption(addr net.IP, proto byte, port uint16) libsomeip.Option {
	ip4 := addr.To4()
	return libsomeip.Option{
		Type:    libsomeip.OptionIPv4Endpoint,
		Payload: []byte{ip4[0], ip4[1], ip4[2], ip4[3], 0, proto, byte(port >> 8), byte(port)},
	}
}

var _ = Describe("ValidateSubscribeOptions", func() {
	subnet := &net.IPNet{IP: net.IPv4(10, 0, 0, 0).To4(), Mask: net.CIDRMask(24, 32)}

	It("accepts a single reliable and single unreliable endpoint option", func() {
		options := []libsomeip.Option{
			ipv4EndpointOption(net.IPv4(10, 0, 0, 9), discovery.L4TCP, 30501),
			ipv4EndpointOption(net.IPv4(10, 0, 0, 9), discovery.L4UDP, 30502),
		}
		Expect(discovery.ValidateSubscribeOptions(options, net.IPv4(10, 0, 0, 1), subnet)).To(Succeed())
	})

	It("rejects a duplicate reliable endpoint option", func() {
		options := []libsomeip.Option{
			ipv4EndpointOption(net.IPv4(10, 0, 0, 9), discovery.L4TCP, 30501),
			ipv4EndpointOption(net.IPv4(10, 0, 0, 9), discovery.L4TCP, 30503),
		}
		err := discovery.ValidateSubscribeOptions(options, net.IPv4(10, 0, 0, 1), subnet)
		Expect(err).To(HaveOccurred())
		ce, ok := liberr.IsError(err)
		Expect(ok).To(BeTrue())
		Expect(ce.IsCode(liberr.CodeMalformedSDOption)).To(BeTrue())
	})

	It("rejects an endpoint option naming our own address", func() {
		options := []libsomeip.Option{
			ipv4EndpointOption(net.IPv4(10, 0, 0, 1), discovery.L4TCP, 30501),
		}
		err := discovery.ValidateSubscribeOptions(options, net.IPv4(10, 0, 0, 1), subnet)
		Expect(err).To(HaveOccurred())
	})

	It("rejects an endpoint option outside the configured subnet", func() {
		options := []libsomeip.Option{
			ipv4EndpointOption(net.IPv4(192, 168, 1, 9), discovery.L4TCP, 30501),
		}
		err := discovery.ValidateSubscribeOptions(options, net.IPv4(10, 0, 0, 1), subnet)
		Expect(err).To(HaveOccurred())
	})

	It("ignores non-endpoint options", func() {
		options := []libsomeip.Option{
			{Type: libsomeip.OptionConfiguration, Payload: []byte("key=value")},
		}
		Expect(discovery.ValidateSubscribeOptions(options, net.IPv4(10, 0, 0, 1), subnet)).To(Succeed())
	})
})
