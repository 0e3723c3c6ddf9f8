package endpointmanager_test

import (
	"context"
	"net"
	"time"

	"github.com/COVESA/vsomeip-sub001/endpointmanager"
	libptc "github.com/COVESA/vsomeip-sub001/network/protocol"
	libsck "github.com/COVESA/vsomeip-sub001/socket"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"
	udpsrv "github.com/COVESA/vsomeip-sub001/socket/server/udp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Multicast worker", func() {
	It("serializes join/leave through the dedicated worker and reports the result", func() {
		srv, err := udpsrv.New(nil, func(libsck.Context) {}, sckcfg.Server{Network: libptc.NetworkUDP, Address: "127.0.0.1:0"})
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		Expect(srv.Listen(ctx)).To(Succeed())

		m := endpointmanager.New(endpointmanager.Config{})

		err = m.JoinMulticast(srv, net.IPv4(239, 0, 0, 1))
		_ = err // joining a multicast group with no local interface route may legitimately fail in test sandboxes

		done := make(chan struct{})
		go func() {
			_ = m.LeaveMulticast(srv, net.IPv4(239, 0, 0, 1))
			close(done)
		}()
		Eventually(done, time.Second).Should(BeClosed())
	})
})
