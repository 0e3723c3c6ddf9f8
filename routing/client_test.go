package routing_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"time"

	libptc "github.com/COVESA/vsomeip-sub001/network/protocol"
	"github.com/COVESA/vsomeip-sub001/routing"
	"github.com/COVESA/vsomeip-sub001/routing/ipc"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeHost is a minimal stand-in for routing.Host's wire side: it accepts
// one connection, runs the ASSIGN_CLIENT/REGISTER_APPLICATION handshake,
// and forwards every other frame onto a channel for assertions.
type fakeHost struct {
	lis    net.Listener
	frames chan ipc.Frame
	conn   net.Conn
}

func startFakeHost(path string) *fakeHost {
	_ = os.Remove(path)
	lis, err := net.Listen("unix", path)
	Expect(err).ToNot(HaveOccurred())

	h := &fakeHost{lis: lis, frames: make(chan ipc.Frame, 16)}
	go h.acceptLoop()
	return h
}

// acceptLoop serves one connection at a time, so a client that closes and
// reconnects gets handshaked again against the same listener.
func (h *fakeHost) acceptLoop() {
	for {
		conn, err := h.lis.Accept()
		if err != nil {
			return
		}
		h.conn = conn
		h.serve(conn)
	}
}

func (h *fakeHost) serve(conn net.Conn) {
	var pending []byte
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			frames, remainder, _ := ipc.Extract(pending)
			pending = remainder
			for _, f := range frames {
				switch f.Type {
				case ipc.CmdAssignClient:
					_, _ = conn.Write(ipc.Encode(ipc.Frame{Type: ipc.CmdAssignClientAck, Client: 0x0007}))
				case ipc.CmdRegisterApplication:
					_, _ = conn.Write(ipc.Encode(ipc.Frame{Type: ipc.CmdRegisteredAck, Client: f.Client}))
				default:
					h.frames <- f
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (h *fakeHost) close() {
	_ = h.lis.Close()
	if h.conn != nil {
		_ = h.conn.Close()
	}
}

var _ = Describe("Client", func() {
	var sockPath string

	BeforeEach(func() {
		sockPath = filepath.Join(os.TempDir(), "vsomeip-sub001-test-routing-client.sock")
	})

	It("completes the ASSIGN_CLIENT/REGISTER_APPLICATION handshake", func() {
		host := startFakeHost(sockPath)
		defer host.close()
		defer os.Remove(sockPath)

		c, err := routing.NewClient(routing.ClientConfig{
			Socket: sckcfg.Client{Network: libptc.NetworkUnix, Address: sockPath},
		})
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(c.Start(ctx)).To(Succeed())

		Expect(c.ClientID()).To(Equal(uint16(0x0007)))
		Expect(c.State()).To(Equal(routing.LocalClientEstablished))
	})

	It("proxies OfferService as an OFFER_SERVICE frame carrying the service key", func() {
		host := startFakeHost(sockPath)
		defer host.close()
		defer os.Remove(sockPath)

		c, err := routing.NewClient(routing.ClientConfig{
			Socket: sckcfg.Client{Network: libptc.NetworkUnix, Address: sockPath},
		})
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(c.Start(ctx)).To(Succeed())

		key := routing.ServiceKey{Service: 0x1234, Instance: 0x0001}
		Expect(c.OfferService(key, 1, 0)).To(Succeed())

		var got ipc.Frame
		Eventually(host.frames).Should(Receive(&got))
		Expect(got.Type).To(Equal(ipc.CmdOfferService))
		Expect(got.Payload[0:2]).To(Equal([]byte{0x12, 0x34}))
	})

	It("delivers an inbound NOTIFY frame to the configured handler", func() {
		host := startFakeHost(sockPath)
		defer host.close()
		defer os.Remove(sockPath)

		notified := make(chan routing.EventRef, 1)
		c, err := routing.NewClient(routing.ClientConfig{
			Socket: sckcfg.Client{Network: libptc.NetworkUnix, Address: sockPath},
			Notify: func(ref routing.EventRef, payload []byte) { notified <- ref },
		})
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(c.Start(ctx)).To(Succeed())

		payload := append([]byte{0x12, 0x34, 0x00, 0x01, 0x00, 0x10}, []byte{0xAA}...)
		_, err = host.conn.Write(ipc.Encode(ipc.Frame{Type: ipc.CmdNotify, Payload: payload}))
		Expect(err).ToNot(HaveOccurred())

		var ref routing.EventRef
		Eventually(notified).Should(Receive(&ref))
		Expect(ref).To(Equal(routing.EventRef{Service: 0x1234, Instance: 0x0001, Event: 0x0010}))
	})

	It("replays offers, requests and subscriptions and asks for RESEND_PROVIDED_EVENTS after a reconnect", func() {
		host := startFakeHost(sockPath)
		defer host.close()
		defer os.Remove(sockPath)

		c, err := routing.NewClient(routing.ClientConfig{
			Socket: sckcfg.Client{Network: libptc.NetworkUnix, Address: sockPath},
		})
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(c.Start(ctx)).To(Succeed())

		key := routing.ServiceKey{Service: 0x1234, Instance: 0x0001}
		Expect(c.OfferService(key, 1, 0)).To(Succeed())
		Expect(c.RequestService(routing.ServiceKey{Service: 0x5678, Instance: 0x0001})).To(Succeed())

		var drained ipc.Frame
		Eventually(host.frames).Should(Receive(&drained))
		Expect(drained.Type).To(Equal(ipc.CmdOfferService))
		Eventually(host.frames).Should(Receive(&drained))
		Expect(drained.Type).To(Equal(ipc.CmdRequestService))

		// the host announces key as available before the client subscribes
		// to one of its eventgroups, so Subscribe finds it already known.
		routingInfo := []byte{1, 0x12, 0x34, 0x00, 0x01, 1, 0, 0, 0, 0, 0x00, 0x07}
		_, err = host.conn.Write(ipc.Encode(ipc.Frame{Type: ipc.CmdRoutingInfo, Payload: routingInfo}))
		Expect(err).ToNot(HaveOccurred())
		Eventually(func() bool {
			_, _, _, ok := c.FindService(key)
			return ok
		}).Should(BeTrue())

		Expect(c.Subscribe(0x1234, 0x0001, 0x0002, routing.AnyEvent)).To(Succeed())
		Eventually(host.frames).Should(Receive(&drained))
		Expect(drained.Type).To(Equal(ipc.CmdSubscribe))

		Expect(c.Close()).To(Succeed())

		ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel2()
		Expect(c.Start(ctx2)).To(Succeed())

		seen := map[ipc.Command]bool{}
		for i := 0; i < 4; i++ {
			var f ipc.Frame
			Eventually(host.frames).Should(Receive(&f))
			seen[f.Type] = true
		}
		Expect(seen[ipc.CmdOfferService]).To(BeTrue())
		Expect(seen[ipc.CmdRequestService]).To(BeTrue())
		Expect(seen[ipc.CmdSubscribe]).To(BeTrue())
		Expect(seen[ipc.CmdResendProvidedEvents]).To(BeTrue())
	})
})
