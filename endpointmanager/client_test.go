package endpointmanager_test

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/COVESA/vsomeip-sub001/endpointmanager"
	libptc "github.com/COVESA/vsomeip-sub001/network/protocol"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Remote client endpoints", func() {
	It("dials a remote peer, shares the connection across services, and sends framed PDUs", func() {
		peer, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		defer peer.Close()

		received := make(chan []byte, 1)
		go func() {
			conn, err := peer.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 1024)
			n, _ := conn.Read(buf)
			received <- buf[:n]
		}()

		m := endpointmanager.New(endpointmanager.Config{})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		addr := peer.Addr().(*net.TCPAddr)
		key := endpointmanager.ClientKey{Address: addr.IP.String(), Port: uint16(addr.Port), Reliable: true}
		cfg := sckcfg.Client{Network: libptc.NetworkTCP, Address: fmt.Sprintf("127.0.0.1:%d", addr.Port)}
		svc := endpointmanager.ServiceInstance{Service: 0x4444, Instance: 1}

		e, err := m.FindOrCreateRemoteClient(ctx, key, cfg, endpointmanager.PortRange{}, svc, func(libsomeip.Message) {})
		Expect(err).ToNot(HaveOccurred())

		e2, err := m.FindOrCreateRemoteClient(ctx, key, cfg, endpointmanager.PortRange{}, svc, func(libsomeip.Message) {})
		Expect(err).ToNot(HaveOccurred())
		Expect(e).To(BeIdenticalTo(e2))

		msg := libsomeip.Message{Header: libsomeip.Header{ServiceID: 0x4444, MethodID: 0x0001}, Payload: []byte("hi")}
		Expect(e.Send(msg)).To(Succeed())

		Eventually(received, time.Second).Should(Receive(Equal(libsomeip.Encode(msg))))

		Expect(m.RemoveRemoteClient(key, svc)).To(Succeed())
	})

	It("hands out successive ports from the configured range on bind error", func() {
		m := endpointmanager.New(endpointmanager.Config{})
		key := endpointmanager.ClientKey{Address: "192.0.2.10", Port: 30501, Reliable: true}
		r := endpointmanager.PortRange{Min: 40000, Max: 40002}

		p1, ok := m.OnBindError(key, r)
		Expect(ok).To(BeTrue())
		Expect(p1).To(Equal(uint16(40000)))

		p2, ok := m.OnBindError(key, r)
		Expect(ok).To(BeTrue())
		Expect(p2).To(Equal(uint16(40001)))
	})
})
