package endpoint_test

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/COVESA/vsomeip-sub001/endpoint"
	libptc "github.com/COVESA/vsomeip-sub001/network/protocol"
	libsck "github.com/COVESA/vsomeip-sub001/socket"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"
	tcpsrv "github.com/COVESA/vsomeip-sub001/socket/server/tcp"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Connection", func() {
	It("frames and delivers a request across a real TCP round trip", func() {
		received := make(chan libsomeip.Message, 1)

		srv, err := tcpsrv.New(nil, func(c libsck.Context) {
			conn := endpoint.NewConnection(c, endpoint.ConnectionConfig{
				Framer:    endpoint.DefaultFramerConfig(),
				SendQueue: endpoint.SendQueueConfig{},
			}, func(msg libsomeip.Message) {
				received <- msg
			}, nil, nil)
			conn.Run()
		}, sckcfg.Server{Network: libptc.NetworkTCP, Address: "127.0.0.1:0"})
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		Expect(srv.Listen(ctx)).To(Succeed())

		clientDone := make(chan struct{})
		clientConn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", srv.LocalPort()))
		Expect(err).ToNot(HaveOccurred())

		go func() {
			defer close(clientDone)
			msg := libsomeip.Message{
				Header:  libsomeip.Header{ServiceID: 0x1111, MethodID: 0x0421, ClientID: 0x01, SessionID: 0x01},
				Payload: []byte("ping"),
			}
			_, _ = clientConn.Write(libsomeip.Encode(msg))
		}()

		var got libsomeip.Message
		Eventually(received, time.Second).Should(Receive(&got))
		Expect(got.Header.ServiceID).To(Equal(uint16(0x1111)))
		Expect(got.Payload).To(Equal([]byte("ping")))

		<-clientDone
		_ = clientConn.Close()
	})
})
