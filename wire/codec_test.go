package wire_test

import (
	"bytes"
	"math/rand"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/ltpfabric/ltp/wire"
)

// Covers spec §8 property 1 (codec round-trip) and property 2 (magic
// rejection), the two DataPacket codec invariants the BDD suite owns.
var _ = Describe("DataPacket codec", func() {
	DescribeTable("round-trips a random pixel buffer",
		func(color wire.ColorFormat, encoding wire.Encoding, pixelCount int) {
			bpp := color.BytesPerPixel()
			pixels := make([]byte, pixelCount*bpp)
			rand.Read(pixels)

			encoded, err := wire.EncodePacket(1, color, encoding, pixelCount, pixels)
			Expect(err).NotTo(HaveOccurred())

			dp, err := wire.DecodePacket(encoded)
			Expect(err).NotTo(HaveOccurred())
			Expect(dp.Color).To(Equal(color))
			Expect(dp.PixelCount).To(Equal(uint16(pixelCount)))
			if encoding != wire.EncodingRLE {
				Expect(dp.Payload).To(Equal(pixels))
			} else {
				Expect(bytes.Equal(dp.Payload, pixels)).To(BeTrue())
			}
		},
		Entry("RGB raw, 1 pixel", wire.ColorRGB, wire.EncodingRaw, 1),
		Entry("RGB raw, 1000 pixels", wire.ColorRGB, wire.EncodingRaw, 1000),
		Entry("RGB RLE, 60 pixels", wire.ColorRGB, wire.EncodingRLE, 60),
		Entry("RGBW raw, 300 pixels", wire.ColorRGBW, wire.EncodingRaw, 300),
		Entry("RGBW RLE, 500 pixels", wire.ColorRGBW, wire.EncodingRLE, 500),
	)

	When("the datagram's magic bytes are wrong", func() {
		It("always yields INVALID_FORMAT, regardless of what follows", func() {
			good, err := wire.EncodePacket(1, wire.ColorRGB, wire.EncodingRaw, 1, []byte{1, 2, 3})
			Expect(err).NotTo(HaveOccurred())

			for _, prefix := range [][2]byte{{0x00, 0x00}, {0x4C, 0x00}, {0x00, 0x54}, {0xFF, 0xFF}} {
				bad := append([]byte{}, good...)
				bad[0], bad[1] = prefix[0], prefix[1]
				_, err := wire.DecodePacket(bad)
				Expect(err).To(HaveOccurred())
				perr, ok := err.(*wire.ProtoError)
				Expect(ok).To(BeTrue())
				Expect(perr.Code).To(Equal(wire.InvalidFormat))
			}
		})
	})
})
