package device_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ltpfabric/ltp/device"
	"github.com/ltpfabric/ltp/wire"
	"github.com/ltpfabric/ltp/xport"
)

func TestSourceSubscribeFansOutFrames(t *testing.T) {
	var tick int32
	input := device.MediaInputFunc(func() ([]byte, bool) {
		atomic.AddInt32(&tick, 1)
		return make([]byte, 16*3), true
	})
	src := device.NewSource(device.NewIdentity("source-b", "", device.RoleSource), []int{16}, "rgb", 30, device.ModeStream, input)

	var received int32
	recv, err := xport.ListenData(":0", func(pkt *wire.DataPacket) {
		atomic.AddInt32(&received, 1)
	})
	if err != nil {
		t.Fatalf("ListenData: %v", err)
	}
	defer recv.Close()
	go recv.Serve()

	streamID, actual, err := src.Subscribe(wire.SubscribeTarget{Dimensions: []int{16}, Color: "rgb", Rate: 30}, "127.0.0.1", recv.Port())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if streamID == "" || actual.Rate != 30 {
		t.Fatalf("unexpected subscribe result: id=%q actual=%+v", streamID, actual)
	}

	time.Sleep(300 * time.Millisecond)
	if atomic.LoadInt32(&received) == 0 {
		t.Fatal("expected at least one frame delivered to the subscriber")
	}

	if err := src.StreamControl(streamID, wire.ActionStop); err != nil {
		t.Fatalf("StreamControl stop: %v", err)
	}
	before := atomic.LoadInt32(&received)
	time.Sleep(200 * time.Millisecond)
	if atomic.LoadInt32(&received) != before {
		t.Fatal("expected no further frames after stop")
	}
	src.Stop()
	src.Stop() // idempotent (spec §8 property 8)
}
