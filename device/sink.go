package device

import (
	"sync"

	"github.com/ltpfabric/ltp/cmn/nlog"
	"github.com/ltpfabric/ltp/wire"
	"github.com/ltpfabric/ltp/xport"
)

// Backend is the sink's rendering upcall (spec §6 "Backend seam — sink"):
// invoked once per received frame with a flat [N*bpp] pixel buffer.
type Backend interface {
	Render(pixels []byte, color wire.ColorFormat, topo Topology) error
}

// BackendFunc adapts a plain function to Backend.
type BackendFunc func(pixels []byte, color wire.ColorFormat, topo Topology) error

func (f BackendFunc) Render(pixels []byte, color wire.ColorFormat, topo Topology) error {
	return f(pixels, color, topo)
}

// streamPhase is the per-stream state machine (spec §4.4.1): none → setup
// → active → stopped → none.
type streamPhase int

const (
	phaseNone streamPhase = iota
	phaseSetup
	phaseActive
	phaseStopped
)

type sinkStream struct {
	mu    sync.Mutex
	phase streamPhase
	color wire.ColorFormat
	recv  *xport.DataReceiver
}

// Sink implements the consumer endpoint (spec §4.4.1): listens for control
// messages, accepts data streams, and hands decoded pixel buffers to its
// Backend.
type Sink struct {
	Identity   Identity
	Topology   Topology
	MaxRefresh float64
	Controls   *Registry
	Backend    Backend

	streams *xport.StreamManager

	mu     sync.RWMutex
	phases map[string]*sinkStream
}

// NewSink constructs a Sink with a fresh control registry. Callers add
// controls (e.g. a standard "brightness" Number control) before starting
// the control server.
func NewSink(id Identity, topo Topology, maxRefresh float64, backend Backend) *Sink {
	return &Sink{
		Identity:   id,
		Topology:   topo,
		MaxRefresh: maxRefresh,
		Controls:   NewRegistry(),
		Backend:    backend,
		streams:    xport.NewStreamManager(),
		phases:     make(map[string]*sinkStream),
	}
}

// Capability builds the capability record this sink publishes on request
// (spec §4.4.1 "Capability response publishes pixel count, dimensions,
// topology, color formats, max refresh, and the full control list").
func (s *Sink) Capability(colorFormats []string) SinkCapability {
	return SinkCapability{
		Identity:     s.Identity,
		Topology:     DescribeTopology(s.Topology),
		PixelCount:   s.Topology.Len(),
		ColorFormats: colorFormats,
		MaxRefreshHz: s.MaxRefresh,
		Controls:     s.Controls.List(),
	}
}

// StreamSetup allocates a stream-id and a DataReceiver for incoming pixel
// packets (spec §4.4.1 state machine: none → setup). The caller (the
// control handler) provides the UDP bind address, typically ":0".
func (s *Sink) StreamSetup(udpAddr string, format wire.StreamFormat) (streamID string, udpPort int, err error) {
	color := parseColorFormat(format.Color)
	id := s.streams.NextID()

	recv, err := xport.ListenData(udpAddr, func(pkt *wire.DataPacket) {
		s.onPacket(id, pkt)
	})
	if err != nil {
		return "", 0, err
	}
	s.streams.Create(id, format.Color, format.Encoding)

	s.mu.Lock()
	s.phases[id] = &sinkStream{phase: phaseSetup, color: color, recv: recv}
	s.mu.Unlock()

	go func() {
		if err := recv.Serve(); err != nil {
			nlog.Warningf("sink %s: stream %s receiver stopped: %v", s.Identity.Name, id, err)
		}
	}()

	return id, recv.Port(), nil
}

// onPacket handles one decoded DataPacket: drops silently if the stream is
// not active (spec §4.4.1 "Data packets arriving when no stream is active
// are silently dropped"), otherwise hands decoded pixels to the backend.
func (s *Sink) onPacket(streamID string, pkt *wire.DataPacket) {
	s.mu.RLock()
	st, ok := s.phases[streamID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	st.mu.Lock()
	active := st.phase == phaseActive
	color := st.color
	st.mu.Unlock()
	if !active {
		return
	}
	if sstate, ok := s.streams.Get(streamID); ok {
		sstate.IncReceived()
	}
	if s.Backend != nil {
		if err := s.Backend.Render(pkt.Payload, color, s.Topology); err != nil {
			nlog.Warningf("sink %s: backend render failed: %v", s.Identity.Name, err)
		}
	}
}

// StreamControl applies a start/stop/pause action to an existing stream
// (spec §4.1 "stream_control"). start()/stop() are idempotent (spec §8
// property 8): re-applying the same action is a no-op that still succeeds.
func (s *Sink) StreamControl(streamID string, action wire.StreamAction) *wire.ProtoError {
	s.mu.RLock()
	st, ok := s.phases[streamID]
	s.mu.RUnlock()
	if !ok {
		return wireErr(wire.NotFound, "unknown stream %q", streamID)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	switch action {
	case wire.ActionStart:
		st.phase = phaseActive
	case wire.ActionStop:
		st.phase = phaseStopped
	case wire.ActionPause:
		if st.phase == phaseActive {
			st.phase = phaseSetup
		}
	default:
		return wireErr(wire.InvalidValue, "unknown stream action %q", action)
	}
	return nil
}

// Teardown removes a stream entirely, releasing its receiver (spec §4.5
// "Teardown").
func (s *Sink) Teardown(streamID string) {
	s.mu.Lock()
	st, ok := s.phases[streamID]
	delete(s.phases, streamID)
	s.mu.Unlock()
	if ok && st.recv != nil {
		if err := st.recv.Close(); err != nil {
			nlog.Warningf("sink %s: stream %s: closing receiver: %v", s.Identity.Name, streamID, err)
		}
	}
	s.streams.Remove(streamID)
}

func parseColorFormat(s string) wire.ColorFormat {
	switch s {
	case "rgbw":
		return wire.ColorRGBW
	case "hsv":
		return wire.ColorHSV
	case "grayscale":
		return wire.ColorGrayscale
	default:
		return wire.ColorRGB
	}
}
