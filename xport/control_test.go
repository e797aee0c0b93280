package xport_test

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ltpfabric/ltp/wire"
	"github.com/ltpfabric/ltp/xport"
)

func TestControlServerClientRoundTrip(t *testing.T) {
	srv, err := xport.Listen(":0", func(conn *xport.Conn, msg wire.Message) wire.Message {
		switch m := msg.(type) {
		case *wire.CapabilityRequest:
			seq, _ := m.GetSeq()
			return wire.NewCapabilityResponse(seq, map[string]any{"pixels": 60})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	go srv.Serve()

	client, err := xport.Dial("127.0.0.1:"+strconv.Itoa(srv.Port()), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	req := wire.NewCapabilityRequest(client.NextSeq())
	resp, err := client.RequestTimeout(req, 2*time.Second)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	cr, ok := resp.(*wire.CapabilityResponse)
	if !ok {
		t.Fatalf("expected *CapabilityResponse, got %T", resp)
	}
	device, ok := cr.Device.(map[string]any)
	if !ok || device["pixels"] != float64(60) {
		t.Fatalf("unexpected device payload: %v", cr.Device)
	}
}

// TestConcurrentRequestsCorrelateBySeq verifies spec §8 property 6: two
// concurrent in-flight requests resolve independently by seq.
func TestConcurrentRequestsCorrelateBySeq(t *testing.T) {
	srv, err := xport.Listen(":0", func(conn *xport.Conn, msg wire.Message) wire.Message {
		cg, ok := msg.(*wire.ControlGet)
		if !ok {
			return nil
		}
		seq, _ := cg.GetSeq()
		// vary handling time by seq; the server answers one connection's
		// requests in arrival order, which need not match the order the
		// goroutines minted their seqs in
		time.Sleep(time.Duration(10-seq%10) * time.Millisecond)
		return wire.NewControlGetResponse(seq, wire.OK, map[string]any{"seq": seq})
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	go srv.Serve()

	client, err := xport.Dial("127.0.0.1:"+strconv.Itoa(srv.Port()), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := wire.NewControlGet(client.NextSeq(), nil)
			wantSeq, _ := req.GetSeq()
			resp, err := client.RequestTimeout(req, 2*time.Second)
			if err != nil {
				t.Errorf("Request seq=%d: %v", wantSeq, err)
				return
			}
			cgr := resp.(*wire.ControlGetResponse)
			if cgr.Values["seq"].(float64) != float64(wantSeq) {
				t.Errorf("seq correlation broke: want %d got %v", wantSeq, cgr.Values["seq"])
			}
		}()
	}
	wg.Wait()
}

func TestFallbackHandlerReceivesUnsolicited(t *testing.T) {
	srv, err := xport.Listen(":0", func(conn *xport.Conn, msg wire.Message) wire.Message {
		if _, ok := msg.(*wire.CapabilityRequest); ok {
			go conn.Send(wire.NewControlChanged(map[string]any{"brightness": 0.7}))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	go srv.Serve()

	received := make(chan wire.Message, 1)
	client, err := xport.Dial("127.0.0.1:"+strconv.Itoa(srv.Port()), func(msg wire.Message) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	req := wire.NewCapabilityRequest(client.NextSeq())
	b, _ := wire.Encode(req)
	_ = b // request is sent purely to trigger the server's fire-and-forget push
	go client.RequestTimeout(req, 200*time.Millisecond)

	select {
	case msg := <-received:
		if msg.GetType() != wire.TypeControlChanged {
			t.Fatalf("expected control_changed, got %s", msg.GetType())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fallback handler never received the unsolicited push")
	}
}
