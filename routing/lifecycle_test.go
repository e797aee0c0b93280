package routing_test

import (
	"net"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ltpfabric/ltp/routing"
)

// Covers spec §8 property 7 (route uniqueness) and property 9 (offline
// threshold), the two route-lifecycle invariants the BDD suite owns.
var _ = Describe("Route table", func() {
	It("rejects a second route for an already-routed (source, sink) pair", func() {
		engine := routing.NewEngine()

		first, err := engine.CreateRoute("r1", "src-1", "sink-1", routing.ModeProxy, routing.DefaultTransform())
		Expect(err).NotTo(HaveOccurred())
		Expect(first).NotTo(BeNil())

		_, err = engine.CreateRoute("r2", "src-1", "sink-1", routing.ModeProxy, routing.DefaultTransform())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("already exists"))

		Expect(engine.Routes()).To(HaveLen(1))
	})
})

var _ = Describe("Device health tracking", func() {
	It("stays online through 4 consecutive failures and goes offline on the 5th", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()
		addr := ln.Addr().(*net.TCPAddr)

		dev := routing.NewDiscoveredDevice("dev-1", routing.KindSink, "test-sink", "127.0.0.1", addr.Port)
		ln.Close() // now nothing listens on this port: every connect attempt fails

		for i := 0; i < 4; i++ {
			routing.RunHealthChecks([]*routing.DiscoveredDevice{dev}, nil)
			Expect(dev.Online()).To(BeTrue(), "still online after %d failure(s)", i+1)
		}

		var flipped *routing.DiscoveredDevice
		var flippedOnline bool
		routing.RunHealthChecks([]*routing.DiscoveredDevice{dev}, func(d *routing.DiscoveredDevice, online bool) {
			flipped, flippedOnline = d, online
		})
		Expect(dev.Online()).To(BeFalse())
		Expect(flipped).To(Equal(dev))
		Expect(flippedOnline).To(BeFalse())
	})

	It("flips back online on the next successful check", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := ln.Addr().(*net.TCPAddr)

		dev := routing.NewDiscoveredDevice("dev-2", routing.KindSink, "test-sink", "127.0.0.1", addr.Port)
		ln.Close() // nothing listens now: the next 5 checks fail
		for i := 0; i < 5; i++ {
			routing.RunHealthChecks([]*routing.DiscoveredDevice{dev}, nil)
		}
		Expect(dev.Online()).To(BeFalse())

		ln, err = net.Listen("tcp", addr.String())
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()
		go func() {
			c, err := ln.Accept()
			if err == nil {
				c.Close()
			}
		}()
		routing.RunHealthChecks([]*routing.DiscoveredDevice{dev}, nil)
		Expect(dev.Online()).To(BeTrue())
	})
})
