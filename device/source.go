package device

import (
	"sync"
	"time"

	"github.com/ltpfabric/ltp/cmn/nlog"
	"github.com/ltpfabric/ltp/wire"
	"github.com/ltpfabric/ltp/xport"
)

// MediaInput is the source's frame-producing upcall (spec §6 "Backend
// seam — source"): invoked once per render tick, returning an RGB buffer
// sized to the source's native dimensions, or ok=false for no frame.
type MediaInput interface {
	ReadFrame() (pixels []byte, ok bool)
}

type MediaInputFunc func() ([]byte, bool)

func (f MediaInputFunc) ReadFrame() ([]byte, bool) { return f() }

type subscriber struct {
	streamID string
	sender   *xport.DataSender
	color    wire.ColorFormat
	encoding wire.Encoding
}

// Source implements the producer endpoint (spec §4.4.2): listens for
// control, advertises capabilities, and on subscribe starts emitting
// frames to the caller's callback address at a fixed rate.
type Source struct {
	Identity    Identity
	Dimensions  []int
	Color       string
	Rate        float64
	Mode        SourceMode
	Controls    *Registry
	Input       MediaInput

	streams *xport.StreamManager

	mu          sync.Mutex
	subscribers map[string]*subscriber
	running     bool
	stopCh      chan struct{}
}

func NewSource(id Identity, dims []int, color string, rate float64, mode SourceMode, input MediaInput) *Source {
	return &Source{
		Identity:    id,
		Dimensions:  dims,
		Color:       color,
		Rate:        rate,
		Mode:        mode,
		Controls:    NewRegistry(),
		Input:       input,
		streams:     xport.NewStreamManager(),
		subscribers: make(map[string]*subscriber),
	}
}

func (s *Source) Capability() SourceCapability {
	s.mu.Lock()
	rate := s.Rate
	s.mu.Unlock()
	return SourceCapability{
		Identity:   s.Identity,
		Dimensions: s.Dimensions,
		Color:      s.Color,
		Rate:       rate,
		Mode:       s.Mode,
		Controls:   s.Controls.List(),
	}
}

// Subscribe allocates a stream-id, starts a DataSender aimed at
// callbackHost:callbackPort, and ensures the render loop is running (spec
// §4.4.2, §9 "subscribe implicitly starts the flow"). Each call, even from
// the same caller, adds another fan-out target with its own stream-id.
func (s *Source) Subscribe(target wire.SubscribeTarget, callbackHost string, callbackPort int) (streamID string, actual wire.SubscribeTarget, err error) {
	color := parseColorFormat(target.Color)
	encoding := wire.EncodingRaw
	id := s.nextStreamID()
	sender, err := xport.NewDataSender(id, callbackHost, callbackPort)
	if err != nil {
		return "", wire.SubscribeTarget{}, err
	}
	s.streams.Create(id, target.Color, "raw")
	sub := &subscriber{streamID: id, sender: sender, color: color, encoding: encoding}

	s.mu.Lock()
	s.subscribers[id] = sub
	running := s.running
	s.mu.Unlock()

	if !running {
		s.startRenderLoop()
	}

	actual = wire.SubscribeTarget{Dimensions: s.Dimensions, Color: s.Color, Rate: s.Rate}
	return id, actual, nil
}

func (s *Source) nextStreamID() string { return s.streams.NextID() }

// startRenderLoop is idempotent: calling it while already running is a
// no-op (spec §8 property 8).
func (s *Source) startRenderLoop() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	go s.renderLoop(stopCh)
}

// renderLoop runs at Rate Hz (control-adjustable), pulling a frame from
// Input and fanning it out to every active subscriber (spec §4.4.2
// "Render loop").
func (s *Source) renderLoop(stopCh chan struct{}) {
	for {
		s.mu.Lock()
		rate := s.Rate
		s.mu.Unlock()
		if rate <= 0 {
			rate = 1
		}
		tick := time.Duration(float64(time.Second) / rate)

		select {
		case <-stopCh:
			return
		case <-time.After(tick):
		}

		if s.Input == nil {
			continue
		}
		pixels, ok := s.Input.ReadFrame()
		if !ok {
			continue
		}
		s.fanOut(pixels)
	}
}

func (s *Source) fanOut(pixels []byte) {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	bpp := parseColorFormat(s.Color).BytesPerPixel()
	if bpp == 0 || len(pixels)%bpp != 0 {
		return
	}
	pixelCount := len(pixels) / bpp
	for _, sub := range subs {
		if err := sub.sender.Send(sub.color, sub.encoding, pixelCount, pixels); err != nil {
			nlog.Warningf("source %s: send to stream %s failed: %v", s.Identity.Name, sub.streamID, err)
		} else if sstate, ok := s.streams.Get(sub.streamID); ok {
			sstate.IncSent()
		}
	}
}

// StreamControl stops a subscriber's flow by stream-id (spec §9: "the
// returned stream-id is the stop mechanism").
func (s *Source) StreamControl(streamID string, action wire.StreamAction) *wire.ProtoError {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscribers[streamID]
	if !ok {
		return wireErr(wire.NotFound, "unknown stream %q", streamID)
	}
	switch action {
	case wire.ActionStop:
		sub.sender.Close()
		delete(s.subscribers, streamID)
	case wire.ActionPause, wire.ActionStart:
		// no-op: the render loop always fans out to every live subscriber;
		// pausing a single subscriber without stopping its sender is not
		// distinguished from active in this endpoint.
	default:
		return wireErr(wire.InvalidValue, "unknown stream action %q", action)
	}
	return nil
}

// Stop halts the render loop entirely (idempotent, spec §8 property 8).
func (s *Source) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()
}
