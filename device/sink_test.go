package device_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ltpfabric/ltp/device"
	"github.com/ltpfabric/ltp/wire"
)

func TestSinkStreamLifecycleDropsWhenInactive(t *testing.T) {
	var frames int32
	backend := device.BackendFunc(func(pixels []byte, color wire.ColorFormat, topo device.Topology) error {
		atomic.AddInt32(&frames, 1)
		return nil
	})
	sink := device.NewSink(device.NewIdentity("sink-a", "", device.RoleSink), device.NewLinearTopology(60), 60, backend)

	streamID, port, err := sink.StreamSetup(":0", wire.StreamFormat{Color: "rgb", Encoding: "raw"})
	if err != nil {
		t.Fatalf("StreamSetup: %v", err)
	}
	if port == 0 || streamID == "" {
		t.Fatalf("expected non-zero port and stream id, got port=%d id=%q", port, streamID)
	}

	sendPacket(t, port, 5)
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&frames) != 0 {
		t.Fatalf("expected 0 frames before start, got %d", frames)
	}

	if err := sink.StreamControl(streamID, wire.ActionStart); err != nil {
		t.Fatalf("StreamControl start: %v", err)
	}
	// idempotent re-start (spec §8 property 8)
	if err := sink.StreamControl(streamID, wire.ActionStart); err != nil {
		t.Fatalf("StreamControl start (again): %v", err)
	}

	sendPacket(t, port, 5)
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&frames) != 5 {
		t.Fatalf("expected 5 frames after start, got %d", frames)
	}

	if err := sink.StreamControl(streamID, wire.ActionStop); err != nil {
		t.Fatalf("StreamControl stop: %v", err)
	}
	// idempotent re-stop (spec §8 property 8)
	if err := sink.StreamControl(streamID, wire.ActionStop); err != nil {
		t.Fatalf("StreamControl stop (again): %v", err)
	}

	sendPacket(t, port, 3)
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&frames) != 5 {
		t.Fatalf("expected still 5 frames after stop, got %d", frames)
	}
}

func sendPacket(t *testing.T, port int, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		pixels := make([]byte, 60*3)
		b, err := wire.EncodePacket(uint32(i), wire.ColorRGB, wire.EncodingRaw, 60, pixels)
		if err != nil {
			t.Fatalf("EncodePacket: %v", err)
		}
		if err := udpSend(port, b); err != nil {
			t.Fatalf("udpSend: %v", err)
		}
	}
}
