package endpointmanager_test

import (
	"context"
	"time"

	"github.com/COVESA/vsomeip-sub001/endpointmanager"
	libptc "github.com/COVESA/vsomeip-sub001/network/protocol"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server endpoints", func() {
	It("shares one listener across two services on the same (port, reliable) key", func() {
		m := endpointmanager.New(endpointmanager.Config{})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		key := endpointmanager.ServerKey{Port: 0, Reliable: true}
		cfg := sckcfg.Server{Network: libptc.NetworkTCP, Address: "127.0.0.1:0"}

		svcA := endpointmanager.ServiceInstance{Service: 0x1111, Instance: 1}
		svcB := endpointmanager.ServiceInstance{Service: 0x2222, Instance: 1}

		a, err := m.FindOrCreateServerEndpoint(ctx, key, cfg, svcA, func(libsomeip.Message) {})
		Expect(err).ToNot(HaveOccurred())

		b, err := m.FindOrCreateServerEndpoint(ctx, key, cfg, svcB, func(libsomeip.Message) {})
		Expect(err).ToNot(HaveOccurred())
		Expect(a).To(BeIdenticalTo(b))

		// Removing one service keeps the listener alive for the other.
		Expect(m.RemoveServerEndpoint(ctx, key, svcA)).To(Succeed())
		Expect(a.LocalPort()).ToNot(BeZero())

		Expect(m.RemoveServerEndpoint(ctx, key, svcB)).To(Succeed())
	})

	It("reports connect and disconnect for the services routed through the endpoint", func() {
		connected := make(chan endpointmanager.ServiceInstance, 1)
		disconnected := make(chan endpointmanager.ServiceInstance, 1)

		m := endpointmanager.New(endpointmanager.Config{
			OnConnect:    func(svc endpointmanager.ServiceInstance, reliable bool, addr string) { connected <- svc },
			OnDisconnect: func(svc endpointmanager.ServiceInstance, reliable bool, addr string) { disconnected <- svc },
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		key := endpointmanager.ServerKey{Port: 0, Reliable: true}
		cfg := sckcfg.Server{Network: libptc.NetworkTCP, Address: "127.0.0.1:0"}
		svc := endpointmanager.ServiceInstance{Service: 0x3333, Instance: 1}

		e, err := m.FindOrCreateServerEndpoint(ctx, key, cfg, svc, func(libsomeip.Message) {})
		Expect(err).ToNot(HaveOccurred())

		conn, err := dialTCP(e.LocalPort())
		Expect(err).ToNot(HaveOccurred())

		Eventually(connected, time.Second).Should(Receive(Equal(svc)))

		_ = conn.Close()
		Eventually(disconnected, time.Second).Should(Receive(Equal(svc)))
	})
})
