package config_test

import (
	"github.com/COVESA/vsomeip-sub001/config"
	libdur "github.com/COVESA/vsomeip-sub001/duration"
	libptc "github.com/COVESA/vsomeip-sub001/network/protocol"
	"github.com/spf13/viper"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func validSettings() config.Settings {
	return config.Settings{
		UnicastAddress:   "10.0.0.1",
		Netmask:          "255.255.255.0",
		SDMulticast:      "224.244.224.245",
		SDPort:           30490,
		SDProtocol:       libptc.NetworkUDP,
		TTL:              3,
		CyclicOfferDelay: libdur.Seconds(2),
		MaxMessageSize:   1400,
		SendTimeout:      libdur.Millis(500),
		ShutdownTimeout:  libdur.Seconds(5),
	}
}

var _ = Describe("Settings.Validate", func() {
	It("accepts a minimally valid configuration", func() {
		Expect(validSettings().Validate()).To(Succeed())
	})

	It("rejects a missing unicast address", func() {
		s := validSettings()
		s.UnicastAddress = ""
		Expect(s.Validate()).To(HaveOccurred())
	})

	It("rejects a malformed unicast address", func() {
		s := validSettings()
		s.UnicastAddress = "not-an-ip"
		Expect(s.Validate()).To(HaveOccurred())
	})

	It("rejects client_port_max below client_port_min", func() {
		s := validSettings()
		s.ClientPortMin = 30500
		s.ClientPortMax = 30400
		Expect(s.Validate()).To(HaveOccurred())
	})

	It("accepts an explicit client port range", func() {
		s := validSettings()
		s.ClientPortMin = 30500
		s.ClientPortMax = 30599
		Expect(s.Validate()).To(Succeed())
	})

	It("rejects a zero cyclic offer delay", func() {
		s := validSettings()
		s.CyclicOfferDelay = 0
		Expect(s.Validate()).To(HaveOccurred())
	})
})

var _ = Describe("Settings.Subnet", func() {
	It("resolves a dotted-quad netmask into a CIDR-equivalent IPNet", func() {
		s := validSettings()
		subnet, err := s.Subnet()
		Expect(err).NotTo(HaveOccurred())
		Expect(subnet.Contains(subnet.IP)).To(BeTrue())
		ones, bits := subnet.Mask.Size()
		Expect(ones).To(Equal(24))
		Expect(bits).To(Equal(32))
	})

	It("resolves a CIDR-style netmask the same way", func() {
		s := validSettings()
		s.Netmask = "24"
		subnet, err := s.Subnet()
		Expect(err).NotTo(HaveOccurred())
		ones, _ := subnet.Mask.Size()
		Expect(ones).To(Equal(24))
	})
})

var _ = Describe("Settings.ClientPortRange", func() {
	It("converts the flat min/max fields into an endpointmanager.PortRange", func() {
		s := validSettings()
		s.ClientPortMin = 30500
		s.ClientPortMax = 30600
		rng := s.ClientPortRange()
		Expect(rng.Min).To(Equal(uint16(30500)))
		Expect(rng.Max).To(Equal(uint16(30600)))
	})
})

var _ = Describe("Decode", func() {
	It("unmarshals a viper instance into Settings, including duration text fields", func() {
		v := viper.New()
		v.Set("unicast_address", "10.0.0.1")
		v.Set("netmask", "255.255.255.0")
		v.Set("sd_multicast", "224.244.224.245")
		v.Set("sd_port", 30490)
		v.Set("ttl", 3)
		v.Set("cyclic_offer_delay", "2s")
		v.Set("send_timeout", "500ms")
		v.Set("shutdown_timeout", "5s")
		v.Set("max_message_size", 1400)

		settings, err := config.Decode(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(settings.CyclicOfferDelay.ToDuration().Seconds()).To(Equal(2.0))
		Expect(settings.SendTimeout.ToDuration().Milliseconds()).To(Equal(int64(500)))
	})

	It("surfaces validation failures from an incomplete configuration", func() {
		v := viper.New()
		v.Set("unicast_address", "10.0.0.1")

		_, err := config.Decode(v)
		Expect(err).To(HaveOccurred())
	})
})
