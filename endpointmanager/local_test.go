package endpointmanager_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/COVESA/vsomeip-sub001/endpointmanager"
	libptc "github.com/COVESA/vsomeip-sub001/network/protocol"
	libsck "github.com/COVESA/vsomeip-sub001/socket"
	sckcfg "github.com/COVESA/vsomeip-sub001/socket/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// stubLocalConnection is a no-op endpointmanager.LocalConnection for tests
// that only care about registration bookkeeping, not actual delivery.
type stubLocalConnection struct{}

func (stubLocalConnection) Write(b []byte) (int, error) { return len(b), nil }
func (stubLocalConnection) Close() error                { return nil }

var _ = Describe("Local routing root", func() {
	It("falls back to binding a fresh unix socket when no descriptor was handed down", func() {
		m := endpointmanager.New(endpointmanager.Config{})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sockPath := filepath.Join(os.TempDir(), "vsomeip-sub001-test-routing-root.sock")
		_ = os.Remove(sockPath)
		defer os.Remove(sockPath)

		srv, activated, err := m.FindOrCreateLocalServer(ctx, sckcfg.Server{Network: libptc.NetworkUnix, Address: sockPath}, func(libsck.Context) {})
		Expect(err).ToNot(HaveOccurred())
		Expect(activated).To(BeFalse())
		Expect(srv.IsRunning()).To(BeTrue())
	})

	It("tracks local clients by their assigned client id", func() {
		m := endpointmanager.New(endpointmanager.Config{})

		_, ok := m.FindLocalClient(0x0001)
		Expect(ok).To(BeFalse())

		m.RegisterLocalClient(0x0001, stubLocalConnection{})
		_, ok = m.FindLocalClient(0x0001)
		Expect(ok).To(BeTrue())

		m.RemoveLocalClient(0x0001)
		_, ok = m.FindLocalClient(0x0001)
		Expect(ok).To(BeFalse())
	})
})
