package someip_test

import (
	"net"

	libsomeip "github.com/COVESA/vsomeip-sub001/someip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SD codec", func() {
	It("round-trips an OFFER_SERVICE entry with an IPv4 endpoint option", func() {
		sd := libsomeip.SDMessage{
			Reboot:         true,
			UnicastSupport: true,
			Entries: []libsomeip.Entry{
				{
					Type:         libsomeip.EntryOfferService,
					NumOptions1:  1,
					ServiceID:    0x1234,
					InstanceID:   0x5678,
					MajorVersion: 1,
					TTL:          3,
					MinorVersion: 0,
				},
			},
			Options: []libsomeip.Option{
				libsomeip.NewIPv4EndpointOption(net.ParseIP("192.0.2.1"), libsomeip.L4TCP, 30501),
			},
		}

		raw := libsomeip.EncodeSD(sd)
		decoded, err := libsomeip.DecodeSD(raw)
		Expect(err).ToNot(HaveOccurred())

		reencoded := libsomeip.EncodeSD(decoded)
		Expect(reencoded).To(Equal(raw))

		Expect(decoded.Entries).To(HaveLen(1))
		Expect(decoded.Entries[0].ServiceID).To(Equal(uint16(0x1234)))
		Expect(decoded.Entries[0].TTL).To(Equal(uint32(3)))

		epData, err := libsomeip.DecodeEndpointOption(decoded.Options[0])
		Expect(err).ToNot(HaveOccurred())
		Expect(epData.Port).To(Equal(uint16(30501)))
		Expect(epData.Proto).To(Equal(libsomeip.L4TCP))
	})

	It("round-trips a SUBSCRIBE_EVENTGROUP_ACK with a selective option", func() {
		sd := libsomeip.SDMessage{
			Entries: []libsomeip.Entry{
				{
					Type:         libsomeip.EntrySubscribeEventAck,
					ServiceID:    0x1234,
					InstanceID:   0x5678,
					MajorVersion: 1,
					TTL:          3,
					Counter:      2,
					EventgroupID: 0x4465,
				},
			},
			Options: []libsomeip.Option{
				libsomeip.NewSelectiveOption([]uint16{0x0101}),
			},
		}

		raw := libsomeip.EncodeSD(sd)
		decoded, err := libsomeip.DecodeSD(raw)
		Expect(err).ToNot(HaveOccurred())
		Expect(libsomeip.EncodeSD(decoded)).To(Equal(raw))

		Expect(decoded.Entries[0].EventgroupID).To(Equal(uint16(0x4465)))
		Expect(decoded.Entries[0].Counter).To(Equal(uint8(2)))

		clients, err := libsomeip.DecodeSelectiveOption(decoded.Options[0])
		Expect(err).ToNot(HaveOccurred())
		Expect(clients).To(Equal([]uint16{0x0101}))
	})

	It("round-trips a configuration option", func() {
		opt := libsomeip.NewConfigurationOption(map[string]string{"role": "provider"})
		decoded, err := libsomeip.DecodeConfigurationOption(opt)
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded).To(HaveKeyWithValue("role", "provider"))
	})

	It("rejects entries_length that is not a multiple of the entry size", func() {
		raw := []byte{0, 0, 0, 0, 0, 0, 0, 5, 1, 2, 3, 4, 5, 0, 0, 0, 0}
		_, err := libsomeip.DecodeSD(raw)
		Expect(err).To(HaveOccurred())
	})

	It("finds the SD method on a decoded message header", func() {
		h := libsomeip.NewSDHeader(0, 1)
		Expect(h.IsSD()).To(BeTrue())
	})
})
