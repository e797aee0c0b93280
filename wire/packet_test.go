package wire_test

import (
	"bytes"
	"testing"

	"github.com/ltpfabric/ltp/wire"
)

func solidPixels(n, bpp int, color []byte) []byte {
	out := make([]byte, n*bpp)
	for i := 0; i < n; i++ {
		copy(out[i*bpp:], color)
	}
	return out
}

func TestEncodeDecodeRawRoundTrip(t *testing.T) {
	pixels := []byte{255, 0, 0, 0, 255, 0, 0, 0, 255}
	b, err := wire.EncodePacket(42, wire.ColorRGB, wire.EncodingRaw, 3, pixels)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}
	dp, err := wire.DecodePacket(b)
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	if dp.Sequence != 42 || dp.Color != wire.ColorRGB || dp.Encoding != wire.EncodingRaw || dp.PixelCount != 3 {
		t.Fatalf("unexpected header: %+v", dp)
	}
	if !bytes.Equal(dp.Payload, pixels) {
		t.Fatalf("payload mismatch: got %v want %v", dp.Payload, pixels)
	}
}

func TestEncodeDecodeRLERoundTrip(t *testing.T) {
	red := []byte{255, 0, 0}
	pixels := solidPixels(100, 3, red)
	b, err := wire.EncodePacket(1, wire.ColorRGB, wire.EncodingRLE, 100, pixels)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}
	if len(b) >= len(pixels) {
		t.Fatalf("expected RLE encoding to be smaller than raw, got %d vs %d", len(b), len(pixels))
	}
	dp, err := wire.DecodePacket(b)
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	if !bytes.Equal(dp.Payload, pixels) {
		t.Fatalf("RLE round trip mismatch")
	}
}

func TestRLERunsOver255(t *testing.T) {
	red := []byte{10, 20, 30}
	pixels := solidPixels(600, 3, red)
	b, err := wire.EncodePacket(1, wire.ColorRGB, wire.EncodingRLE, 600, pixels)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}
	dp, err := wire.DecodePacket(b)
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	if !bytes.Equal(dp.Payload, pixels) {
		t.Fatal("run length over 255 must split into multiple runs and still round-trip")
	}
}

func TestDecodeBadMagic(t *testing.T) {
	b, _ := wire.EncodePacket(1, wire.ColorRGB, wire.EncodingRaw, 1, []byte{1, 2, 3})
	b[0] = 0xFF
	if _, err := wire.DecodePacket(b); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestDecodeTruncatedHeader(t *testing.T) {
	if _, err := wire.DecodePacket([]byte{0x4C, 0x54, 0, 0}); err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestDecodeRawPayloadTooShort(t *testing.T) {
	b, _ := wire.EncodePacket(1, wire.ColorRGB, wire.EncodingRaw, 3, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	short := b[:len(b)-3]
	if _, err := wire.DecodePacket(short); err == nil {
		t.Fatal("expected error for raw payload shorter than pixel_count*bpp")
	}
}

func TestDecodeUnknownEncoding(t *testing.T) {
	b, _ := wire.EncodePacket(1, wire.ColorRGB, wire.EncodingRaw, 1, []byte{1, 2, 3})
	b[9] = 0x7F
	if _, err := wire.DecodePacket(b); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestRLEShortRunStreamZeroPads(t *testing.T) {
	// A run stream that only covers 2 of the 5 declared pixels must
	// truncate-and-zero-pad rather than error (spec §4.1 idempotence rule).
	payload := []byte{2, 9, 9, 9} // count=2, color={9,9,9}
	buf := make([]byte, 12+len(payload))
	buf[0], buf[1] = 0x4C, 0x54
	buf[8] = byte(wire.ColorRGB)
	buf[9] = byte(wire.EncodingRLE)
	buf[10], buf[11] = 0, 5
	copy(buf[12:], payload)

	dp, err := wire.DecodePacket(buf)
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	want := []byte{9, 9, 9, 9, 9, 9, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(dp.Payload, want) {
		t.Fatalf("got %v want %v", dp.Payload, want)
	}
}

func TestMaxPacketSizeExceeded(t *testing.T) {
	pixels := make([]byte, 2000*3)
	b, err := wire.EncodePacket(1, wire.ColorRGB, wire.EncodingRaw, 2000, pixels)
	if err != nil {
		t.Fatalf("EncodePacket: oversized packet must still encode, got %v", err)
	}
	if len(b) <= wire.MaxPacketSize {
		t.Fatalf("expected encoded packet to exceed MaxPacketSize, got %d bytes", len(b))
	}
}

func TestColorFormatBytesPerPixel(t *testing.T) {
	cases := map[wire.ColorFormat]int{
		wire.ColorRGB:       3,
		wire.ColorRGBW:      4,
		wire.ColorHSV:       3,
		wire.ColorGrayscale: 1,
	}
	for cf, want := range cases {
		if got := cf.BytesPerPixel(); got != want {
			t.Errorf("%v.BytesPerPixel() = %d, want %d", cf, got, want)
		}
	}
	if wire.ColorFormat(0x99).Valid() {
		t.Error("expected invalid color format to report Valid() == false")
	}
}
