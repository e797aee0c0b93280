package backend_test

import (
	"testing"

	"github.com/ltpfabric/ltp/backend"
	"github.com/ltpfabric/ltp/device"
	"github.com/ltpfabric/ltp/wire"
)

func TestFrameBufferStoresLastFrame(t *testing.T) {
	fb := backend.NewFrameBuffer()
	topo := device.NewLinearTopology(4)

	if err := fb.Render([]byte{1, 2, 3}, wire.ColorGrayscale, topo); err != nil {
		t.Fatalf("Render: %v", err)
	}
	pixels, color := fb.Snapshot()
	if string(pixels) != string([]byte{1, 2, 3}) || color != wire.ColorGrayscale {
		t.Fatalf("unexpected snapshot: %v %v", pixels, color)
	}
	if fb.FrameCount() != 1 {
		t.Fatalf("expected frame count 1, got %d", fb.FrameCount())
	}

	if err := fb.Render([]byte{9, 9, 9}, wire.ColorGrayscale, topo); err != nil {
		t.Fatalf("Render: %v", err)
	}
	pixels, _ = fb.Snapshot()
	if string(pixels) != string([]byte{9, 9, 9}) {
		t.Fatalf("expected latest frame to replace prior, got %v", pixels)
	}
}

func TestStaticInputReadsSetFrame(t *testing.T) {
	in := backend.NewStaticInput(nil)
	if _, ok := in.ReadFrame(); ok {
		t.Fatal("expected no frame before SetFrame")
	}
	in.SetFrame([]byte{1, 2, 3})
	pixels, ok := in.ReadFrame()
	if !ok || string(pixels) != string([]byte{1, 2, 3}) {
		t.Fatalf("unexpected frame: %v %v", pixels, ok)
	}
}

func TestFuncInputAdapts(t *testing.T) {
	calls := 0
	var in device.MediaInput = backend.FuncInput(func() ([]byte, bool) {
		calls++
		return []byte{byte(calls)}, true
	})
	pixels, ok := in.ReadFrame()
	if !ok || len(pixels) != 1 || pixels[0] != 1 {
		t.Fatalf("unexpected result: %v %v", pixels, ok)
	}
}
