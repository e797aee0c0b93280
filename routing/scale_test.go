package routing_test

import (
	"testing"

	"github.com/ltpfabric/ltp/routing"
)

// TestScale1DFitGradientMonotonic verifies spec §8 scenario S6: a 30-pixel
// black-to-white gradient scaled fit to 60 pixels must remain monotonically
// non-decreasing and span roughly black to white.
func TestScale1DFitGradientMonotonic(t *testing.T) {
	const srcLen, dstLen, bpp = 30, 60, 3
	src := make([]byte, srcLen*bpp)
	for i := 0; i < srcLen; i++ {
		v := byte(i * 255 / (srcLen - 1))
		src[i*bpp], src[i*bpp+1], src[i*bpp+2] = v, v, v
	}

	dst := routing.Scale1D(src, srcLen, dstLen, bpp, routing.ScaleFit)
	if len(dst) != dstLen*bpp {
		t.Fatalf("len(dst) = %d, want %d", len(dst), dstLen*bpp)
	}
	if dst[0] > 5 {
		t.Fatalf("expected near-black start, got %d", dst[0])
	}
	if dst[(dstLen-1)*bpp] < 250 {
		t.Fatalf("expected near-white end, got %d", dst[(dstLen-1)*bpp])
	}
	for i := 1; i < dstLen; i++ {
		if dst[i*bpp] < dst[(i-1)*bpp] {
			t.Fatalf("gradient not monotonic at index %d: %d < %d", i, dst[i*bpp], dst[(i-1)*bpp])
		}
	}
}

func TestScale1DTruncateAndPad(t *testing.T) {
	src := []byte{10, 20, 30, 40, 50, 60} // 2 pixels, bpp=3
	trunc := routing.Scale1D(src, 2, 1, 3, routing.ScaleTruncate)
	if len(trunc) != 3 || trunc[0] != 10 {
		t.Fatalf("truncate: got %v", trunc)
	}
	padded := routing.Scale1D(src, 2, 4, 3, routing.ScalePadBlack)
	if len(padded) != 12 {
		t.Fatalf("pad_black: wrong length %d", len(padded))
	}
	for i := 6; i < 12; i++ {
		if padded[i] != 0 {
			t.Fatalf("pad_black: expected zero padding, got %v", padded)
		}
	}
}

func TestApplyBrightnessClamps(t *testing.T) {
	pixels := []byte{100, 200, 255}
	routing.ApplyBrightness(pixels, 2.0)
	if pixels[0] != 200 || pixels[1] != 255 || pixels[2] != 255 {
		t.Fatalf("unexpected brightness result: %v", pixels)
	}
}

func TestApplyMirrorXFlipsRows(t *testing.T) {
	// 2x1 image (w=2,h=1), bpp=1: [A,B] mirrored on X -> [B,A]
	pixels := []byte{1, 2}
	out := routing.ApplyMirror(pixels, 2, 1, 1, true, false)
	if out[0] != 2 || out[1] != 1 {
		t.Fatalf("mirror x: got %v", out)
	}
}

func TestZoomModes(t *testing.T) {
	zx, zy := routing.Zoom(10, 20, 20, 20, routing.ScaleFit)
	if zx != zy {
		t.Fatalf("fit should produce equal zoom factors, got %v %v", zx, zy)
	}
	zx, zy = routing.Zoom(10, 20, 20, 20, routing.ScaleStretch)
	if zx == zy {
		t.Fatalf("stretch should produce independent factors for non-square scaling, got %v %v", zx, zy)
	}
}
