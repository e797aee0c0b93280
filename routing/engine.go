package routing

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"

	"github.com/ltpfabric/ltp/cmn"
	"github.com/ltpfabric/ltp/cmn/cos"
	"github.com/ltpfabric/ltp/cmn/nlog"
	"github.com/ltpfabric/ltp/device"
	"github.com/ltpfabric/ltp/discovery"
	"github.com/ltpfabric/ltp/routing/virtualsource"
	"github.com/ltpfabric/ltp/wire"
	"github.com/ltpfabric/ltp/xport"
)

// pendingOp is a cross-thread request to start or stop a route — the only
// serialization point between a UI/CLI goroutine and the engine's monitor
// loop (spec §4.5, §9 "Concurrency model": "enqueued...drained by the
// engine's own goroutine every 100ms").
type pendingOp struct {
	routeID string
	start   bool
}

// Engine aggregates discovered devices, runs the health-check loop, and
// drives the route lifecycle state machine (spec §4.5 "Routing engine
// (controller)").
type Engine struct {
	mu      sync.RWMutex
	sources map[string]*DiscoveredDevice // stable id -> device
	sinks   map[string]*DiscoveredDevice
	routes  map[string]*Route

	virtualSources map[string]virtualsource.VirtualSource

	opMu    sync.Mutex
	pending []pendingOp

	routeSeq uint64

	stopCh chan struct{}
}

// NewEngine constructs an empty engine; wire it to a discovery.Browser via
// OnDiscoveryChange and start its background loops with Run.
func NewEngine() *Engine {
	return &Engine{
		sources:        make(map[string]*DiscoveredDevice),
		sinks:          make(map[string]*DiscoveredDevice),
		routes:         make(map[string]*Route),
		virtualSources: make(map[string]virtualsource.VirtualSource),
		stopCh:         make(chan struct{}),
	}
}

// RegisterVirtualSource adds an in-controller producer under stableID,
// reachable by routes as a KindVirtualSource source (spec §4.5 "Route
// execution (virtual source)").
func (e *Engine) RegisterVirtualSource(stableID, name string, vs virtualsource.VirtualSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.virtualSources[stableID] = vs
	e.sources[stableID] = NewDiscoveredDevice(stableID, KindVirtualSource, name, "", 0)
}

// OnDiscoveryChange adapts a discovery.Browser callback into the engine's
// aggregation table (spec §4.5 "Aggregation"): devices receive a stable id
// fixed at first discovery, so routes survive a peer's UUID churn across
// restarts.
func (e *Engine) OnDiscoveryChange(d *discovery.DiscoveredDevice, present bool) {
	role := discovery.RoleForServiceType(d.ServiceType)
	var kind DeviceKind
	switch role {
	case device.RoleSink:
		kind = KindSink
	case device.RoleSource:
		kind = KindSource
	default:
		return // controllers don't participate in routing as endpoints
	}

	e.mu.Lock()
	table := e.sinks
	if kind == KindSource {
		table = e.sources
	}
	if existing, ok := table[d.StableID]; ok && existing.Kind == KindVirtualSource {
		e.mu.Unlock()
		return // a config-registered virtual source keeps its entry
	}
	if !present {
		delete(table, d.StableID)
		e.mu.Unlock()
		nlog.Infof("routing: %s %s (%s) left", kind, d.Name, d.StableID)
		return
	}
	dev, known := table[d.StableID]
	if !known {
		dev = NewDiscoveredDevice(d.StableID, kind, d.Name, d.Host, d.Port)
		table[d.StableID] = dev
	} else {
		dev.Host, dev.Port = d.Host, d.Port
		dev.Touch()
	}
	e.mu.Unlock()

	if !known {
		nlog.Infof("routing: discovered %s %s (%s) at %s:%d", kind, d.Name, d.StableID, d.Host, d.Port)
		go e.fetchCapability(dev)
	}
}

// fetchCapability opens a short-lived control connection and requests the
// device's capability record (spec §4.4.1 "capability_request"), storing
// the parsed result for route validation and the UI.
func (e *Engine) fetchCapability(dev *DiscoveredDevice) {
	addr := fmt.Sprintf("%s:%d", dev.Host, dev.Port)
	client, err := xport.Dial(addr, nil)
	if err != nil {
		nlog.Warningf("routing: capability fetch: dial %s: %v", addr, err)
		return
	}
	defer client.Close()

	req := wire.NewCapabilityRequest(client.NextSeq())
	resp, err := client.RequestTimeout(req, cmn.Rom.CapabilityTimeout())
	if err != nil {
		nlog.Warningf("routing: capability fetch %s: %v", dev.StableID, err)
		return
	}
	cr, ok := resp.(*wire.CapabilityResponse)
	if !ok {
		nlog.Warningf("routing: capability fetch %s: unexpected response type", dev.StableID)
		return
	}
	// CapabilityResponse.Device decodes generically (an `any`, to avoid a
	// wire<->device import cycle); re-marshal it into the concrete struct
	// this device's kind actually publishes.
	raw, err := json.Marshal(cr.Device)
	if err != nil {
		nlog.Warningf("routing: capability fetch %s: re-marshal: %v", dev.StableID, err)
		return
	}
	switch dev.Kind {
	case KindSink:
		var cap device.SinkCapability
		if err := json.Unmarshal(raw, &cap); err != nil {
			nlog.Warningf("routing: capability fetch %s: decode sink capability: %v", dev.StableID, err)
			return
		}
		dev.SetCapability(cap)
	case KindSource:
		var cap device.SourceCapability
		if err := json.Unmarshal(raw, &cap); err != nil {
			nlog.Warningf("routing: capability fetch %s: decode source capability: %v", dev.StableID, err)
			return
		}
		dev.SetCapability(cap)
	}
}

// allDevices returns every known physical device for the health checker
// (virtual sources have no network endpoint and are always online).
func (e *Engine) allDevices() []*DiscoveredDevice {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*DiscoveredDevice, 0, len(e.sources)+len(e.sinks))
	for _, d := range e.sources {
		if d.Kind != KindVirtualSource {
			out = append(out, d)
		}
	}
	for _, d := range e.sinks {
		out = append(out, d)
	}
	return out
}

// Lookup resolves a stable id to its DiscoveredDevice record regardless of
// source/sink table.
func (e *Engine) Lookup(stableID string) (*DiscoveredDevice, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if d, ok := e.sources[stableID]; ok {
		return d, true
	}
	d, ok := e.sinks[stableID]
	return d, ok
}

// Routes returns a snapshot of every configured route.
func (e *Engine) Routes() []*Route {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Route, 0, len(e.routes))
	for _, r := range e.routes {
		out = append(out, r)
	}
	return out
}

// CreateRoute registers a new source->sink edge, enforcing the at-most-one
// route per (source-id, sink-id) pair invariant (spec §8 property 7), and
// enqueues a start (spec §4.5 "Route lifecycle").
func (e *Engine) CreateRoute(name, sourceID, sinkID string, mode RouteMode, tr Transform) (*Route, error) {
	e.mu.Lock()
	for _, r := range e.routes {
		if r.SourceID == sourceID && r.SinkID == sinkID {
			e.mu.Unlock()
			return nil, errors.Errorf("routing: route %s->%s already exists", sourceID, sinkID)
		}
	}
	e.routeSeq++
	id := fmt.Sprintf("route-%d", e.routeSeq)
	r := NewRoute(id, name, sourceID, sinkID, mode, tr)
	e.routes[id] = r
	e.mu.Unlock()

	e.enqueue(id, true)
	return r, nil
}

// DeleteRoute enqueues a teardown and removes the route from the table once
// torn down.
func (e *Engine) DeleteRoute(routeID string) error {
	e.mu.RLock()
	_, ok := e.routes[routeID]
	e.mu.RUnlock()
	if !ok {
		return cos.NewErrNotFound("route %s", routeID)
	}
	e.enqueue(routeID, false)
	return nil
}

func (e *Engine) enqueue(routeID string, start bool) {
	e.opMu.Lock()
	e.pending = append(e.pending, pendingOp{routeID: routeID, start: start})
	e.opMu.Unlock()
}

// Run drains the pending-start/stop queue every 100ms and the health
// checker on its configured interval, until Stop is called (spec §4.5
// "Concurrency model": "the engine's own goroutine... polled every
// 100ms").
func (e *Engine) Run() {
	opTicker := time.NewTicker(100 * time.Millisecond)
	defer opTicker.Stop()
	healthTicker := time.NewTicker(cmn.Rom.HealthCheckInterval())
	defer healthTicker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-opTicker.C:
			e.drainPending()
		case <-healthTicker.C:
			RunHealthChecks(e.allDevices(), nil)
		}
	}
}

func (e *Engine) drainPending() {
	e.opMu.Lock()
	ops := e.pending
	e.pending = nil
	e.opMu.Unlock()

	for _, op := range ops {
		e.mu.RLock()
		r := e.routes[op.routeID]
		e.mu.RUnlock()
		if r == nil {
			continue
		}
		if op.start {
			go e.runRoute(r)
		} else {
			e.teardownRoute(r)
			e.mu.Lock()
			delete(e.routes, op.routeID)
			e.mu.Unlock()
		}
	}
}

// Stop halts Run's loop by closing the stop channel. In-flight route
// goroutines select on the same channel (supervisor, backoff wait,
// virtual-source loop) and unwind through their deferred teardown; Stop
// does not change r.Enabled.
func (e *Engine) Stop() { close(e.stopCh) }

// runRoute drives one route's connecting/connected/error cycle with an
// exponential backoff between attempts (spec §4.5 "Route lifecycle":
// initial 2s, x1.5, capped at 30s).
func (e *Engine) runRoute(r *Route) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cmn.Rom.BackoffInitial()
	bo.MaxInterval = cmn.Rom.BackoffMax()
	bo.Multiplier = cmn.Rom.BackoffMultiplier()
	bo.MaxElapsedTime = 0 // retry indefinitely while the route is enabled

	for r.Enabled {
		r.setStatus(StatusConnecting, "")
		err := e.executeRoute(r)
		if err == nil {
			return // route was torn down cleanly (disabled or deleted)
		}
		r.setStatus(StatusError, err.Error())
		nlog.Warningf("routing: route %s: %v", r.ID, err)

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		select {
		case <-time.After(wait):
		case <-e.stopCh:
			return
		}
	}
}

// executeRoute resolves the source and sink and dispatches to the mode- and
// kind-specific execution path. Returns nil only when the route was
// disabled/deleted out from under it or the engine was stopped (a clean
// exit, no retry); any other
// return is treated as a transient failure warranting backoff+retry.
func (e *Engine) executeRoute(r *Route) error {
	src, ok := e.Lookup(r.SourceID)
	if !ok {
		return errors.Errorf("source %s not known", r.SourceID)
	}
	sink, ok := e.Lookup(r.SinkID)
	if !ok {
		return errors.Errorf("sink %s not known", r.SinkID)
	}
	if !sink.Online() {
		return errors.Errorf("sink %s offline", r.SinkID)
	}

	if src.Kind == KindVirtualSource {
		return e.executeVirtualSource(r, src, sink)
	}
	if !src.Online() {
		return errors.Errorf("source %s offline", r.SourceID)
	}
	if r.Mode == ModeDirect {
		return e.executeDirect(r, src, sink)
	}
	return e.executeProxy(r, src, sink)
}

// executeProxy implements the seven proxy-mode steps (spec §4.5 "Route
// execution (proxy mode)"): stream_setup on the sink, bind a local
// DataReceiver, subscribe to the source with the controller as the
// callback target, then pump every received packet through the transform
// pipeline and re-send it to the sink.
func (e *Engine) executeProxy(r *Route, src, sink *DiscoveredDevice) error {
	sinkCap, _ := sink.Capability().(device.SinkCapability)
	sinkClient, err := xport.Dial(fmt.Sprintf("%s:%d", sink.Host, sink.Port), nil)
	if err != nil {
		return errors.Wrap(err, "dial sink")
	}
	defer sinkClient.Close()

	color := "rgb"
	if len(sinkCap.ColorFormats) > 0 {
		color = sinkCap.ColorFormats[0]
	}
	setupResp, err := sinkClient.Request(wire.NewStreamSetup(sinkClient.NextSeq(), wire.StreamFormat{Color: color, Encoding: "raw"}, 0))
	if err != nil {
		return errors.Wrap(err, "stream_setup")
	}
	ss, ok := setupResp.(*wire.StreamSetupResponse)
	if !ok || ss.Status != wire.OK {
		return errors.Errorf("stream_setup rejected: %v", setupResp)
	}

	sender, err := xport.NewDataSender(ss.StreamID, sink.Host, ss.UDPPort)
	if err != nil {
		_, _ = sinkClient.Request(wire.NewStreamControl(sinkClient.NextSeq(), ss.StreamID, wire.ActionStop))
		return errors.Wrap(err, "dial sink data endpoint")
	}
	defer sender.Close()

	srcCap, _ := src.Capability().(device.SourceCapability)
	srcW, srcH := sourceDims(srcCap.Dimensions)

	recvDone := make(chan struct{})
	recv, err := xport.ListenData(":0", func(pkt *wire.DataPacket) {
		e.relayPacket(r, sender, pkt, sinkCap, srcW, srcH)
	})
	if err != nil {
		_, _ = sinkClient.Request(wire.NewStreamControl(sinkClient.NextSeq(), ss.StreamID, wire.ActionStop))
		return errors.Wrap(err, "bind data receiver")
	}
	defer recv.Close()
	go func() { _ = recv.Serve(); close(recvDone) }()

	localIP := xport.LocalRouteIP(src.Host)

	srcClient, err := xport.Dial(fmt.Sprintf("%s:%d", src.Host, src.Port), nil)
	if err != nil {
		return errors.Wrap(err, "dial source")
	}
	defer srcClient.Close()

	subResp, err := srcClient.Request(wire.NewSubscribe(srcClient.NextSeq(), wire.SubscribeTarget{Color: color}, localIP, recv.Port()))
	if err != nil {
		return errors.Wrap(err, "subscribe")
	}
	sub, ok := subResp.(*wire.SubscribeResponse)
	if !ok || sub.Status != wire.OK {
		return errors.Errorf("subscribe rejected: %v", subResp)
	}

	if _, err := sinkClient.Request(wire.NewStreamControl(sinkClient.NextSeq(), ss.StreamID, wire.ActionStart)); err != nil {
		return errors.Wrap(err, "stream_control start")
	}

	r.setStatus(StatusConnected, "")
	defer func() {
		_, _ = srcClient.RequestTimeout(wire.NewStreamControl(srcClient.NextSeq(), sub.StreamID, wire.ActionStop), cmn.Rom.TeardownTimeout())
		_, _ = sinkClient.RequestTimeout(wire.NewStreamControl(sinkClient.NextSeq(), ss.StreamID, wire.ActionStop), cmn.Rom.TeardownTimeout())
	}()

	return e.supervise(r, src, sink, recvDone)
}

// executeDirect implements direct mode: the controller subscribes the
// source straight to the sink's data endpoint and only supervises link
// health — no packets transit the controller (spec §4.5 "Route execution
// (direct mode)").
func (e *Engine) executeDirect(r *Route, src, sink *DiscoveredDevice) error {
	sinkCap, _ := sink.Capability().(device.SinkCapability)
	sinkClient, err := xport.Dial(fmt.Sprintf("%s:%d", sink.Host, sink.Port), nil)
	if err != nil {
		return errors.Wrap(err, "dial sink")
	}
	defer sinkClient.Close()

	color := "rgb"
	if len(sinkCap.ColorFormats) > 0 {
		color = sinkCap.ColorFormats[0]
	}
	setupResp, err := sinkClient.Request(wire.NewStreamSetup(sinkClient.NextSeq(), wire.StreamFormat{Color: color, Encoding: "raw"}, 0))
	if err != nil {
		return errors.Wrap(err, "stream_setup")
	}
	ss, ok := setupResp.(*wire.StreamSetupResponse)
	if !ok || ss.Status != wire.OK {
		return errors.Errorf("stream_setup rejected: %v", setupResp)
	}

	srcClient, err := xport.Dial(fmt.Sprintf("%s:%d", src.Host, src.Port), nil)
	if err != nil {
		return errors.Wrap(err, "dial source")
	}
	defer srcClient.Close()

	subResp, err := srcClient.Request(wire.NewSubscribe(srcClient.NextSeq(), wire.SubscribeTarget{Color: color}, sink.Host, ss.UDPPort))
	if err != nil {
		return errors.Wrap(err, "subscribe")
	}
	sub, ok := subResp.(*wire.SubscribeResponse)
	if !ok || sub.Status != wire.OK {
		return errors.Errorf("subscribe rejected: %v", subResp)
	}

	if _, err := sinkClient.Request(wire.NewStreamControl(sinkClient.NextSeq(), ss.StreamID, wire.ActionStart)); err != nil {
		return errors.Wrap(err, "stream_control start")
	}

	r.setStatus(StatusConnected, "")
	defer func() {
		_, _ = srcClient.RequestTimeout(wire.NewStreamControl(srcClient.NextSeq(), sub.StreamID, wire.ActionStop), cmn.Rom.TeardownTimeout())
		_, _ = sinkClient.RequestTimeout(wire.NewStreamControl(sinkClient.NextSeq(), ss.StreamID, wire.ActionStop), cmn.Rom.TeardownTimeout())
	}()

	return e.supervise(r, src, sink, nil)
}

// executeVirtualSource replaces a discovered source with a local render
// loop ticking at the virtual source's own rate, sending straight to the
// sink's data endpoint (spec §4.5 "Route execution (virtual source)").
func (e *Engine) executeVirtualSource(r *Route, src, sink *DiscoveredDevice) error {
	e.mu.RLock()
	vs := e.virtualSources[src.StableID]
	e.mu.RUnlock()
	if vs == nil {
		return errors.Errorf("virtual source %s not registered", src.StableID)
	}
	sinkCap, _ := sink.Capability().(device.SinkCapability)

	sinkClient, err := xport.Dial(fmt.Sprintf("%s:%d", sink.Host, sink.Port), nil)
	if err != nil {
		return errors.Wrap(err, "dial sink")
	}
	defer sinkClient.Close()

	color := "rgb"
	if len(sinkCap.ColorFormats) > 0 {
		color = sinkCap.ColorFormats[0]
	}
	setupResp, err := sinkClient.Request(wire.NewStreamSetup(sinkClient.NextSeq(), wire.StreamFormat{Color: color, Encoding: "raw"}, 0))
	if err != nil {
		return errors.Wrap(err, "stream_setup")
	}
	ss, ok := setupResp.(*wire.StreamSetupResponse)
	if !ok || ss.Status != wire.OK {
		return errors.Errorf("stream_setup rejected: %v", setupResp)
	}
	if _, err := sinkClient.Request(wire.NewStreamControl(sinkClient.NextSeq(), ss.StreamID, wire.ActionStart)); err != nil {
		return errors.Wrap(err, "stream_control start")
	}
	defer func() {
		_, _ = sinkClient.RequestTimeout(wire.NewStreamControl(sinkClient.NextSeq(), ss.StreamID, wire.ActionStop), cmn.Rom.TeardownTimeout())
	}()

	sender, err := xport.NewDataSender(ss.StreamID, sink.Host, ss.UDPPort)
	if err != nil {
		return errors.Wrap(err, "dial sink data endpoint")
	}
	defer sender.Close()
	if vs.Rate() > 0 {
		sender.SetRateCap(vs.Rate())
	}

	dstW, dstH := topologyDims(sinkCap.Topology)

	r.setStatus(StatusConnected, "")
	ticker := time.NewTicker(tickInterval(vs.Rate()))
	defer ticker.Stop()

	for r.Enabled {
		select {
		case <-e.stopCh:
			return nil
		case <-ticker.C:
			pixels, ok := vs.Tick(time.Now())
			if !ok {
				continue
			}
			bpp := vs.BytesPerPixel()
			dstCount := sinkCap.PixelCount
			if dstCount == 0 {
				dstCount = len(pixels) / bpp
			}
			pixels = e.applyTransform(r, pixels, bpp, len(pixels)/bpp, dstCount, 0, 0, dstW, dstH)
			if r.Transform.MirrorX || r.Transform.MirrorY {
				pixels = ApplyMirror(pixels, dstCount, 1, bpp, r.Transform.MirrorX, r.Transform.MirrorY)
			}
			if err := sender.Send(wire.ColorFormat(colorFormatByte(color)), wire.EncodingRaw, dstCount, pixels); err != nil {
				return errors.Wrap(err, "send")
			}
			r.recordFrame()
		}
	}
	return nil
}

func tickInterval(rateHz float64) time.Duration {
	if rateHz <= 0 {
		rateHz = 30
	}
	return time.Duration(float64(time.Second) / rateHz)
}

// relayPacket is the proxy-mode per-packet path: scale -> brightness ->
// gamma -> mirror, in that fixed order (spec §4.5 "Transform ordering"),
// then forward the result to the sink over its persistent sender.
func (e *Engine) relayPacket(r *Route, sender *xport.DataSender, pkt *wire.DataPacket, sinkCap device.SinkCapability, srcW, srcH int) {
	bpp := pkt.Color.BytesPerPixel()
	srcCount := int(pkt.PixelCount)
	dstCount := sinkCap.PixelCount
	if dstCount == 0 {
		dstCount = srcCount
	}
	dstW, dstH := topologyDims(sinkCap.Topology)
	pixels := e.applyTransform(r, pkt.Payload, bpp, srcCount, dstCount, srcW, srcH, dstW, dstH)
	if r.Transform.MirrorX || r.Transform.MirrorY {
		pixels = ApplyMirror(pixels, dstCount, 1, bpp, r.Transform.MirrorX, r.Transform.MirrorY)
	}
	if err := sender.Send(pkt.Color, wire.EncodingRaw, dstCount, pixels); err != nil {
		nlog.Warningf("routing: route %s: relay send: %v", r.ID, err)
		return
	}
	r.recordFrame()
}

// applyTransform runs the scale -> brightness -> gamma steps of the
// fixed-order pipeline (spec §4.5 "Transform ordering"); callers apply the
// final mirror step themselves. Scaling dispatches to
// the 2-D bilinear resampler when both endpoints are matrix topologies
// with known width/height, and to the 1-D piecewise-linear resampler
// otherwise (spec §4.5 "Scaling").
func (e *Engine) applyTransform(r *Route, pixels []byte, bpp, srcCount, dstCount, srcW, srcH, dstW, dstH int) []byte {
	if dstCount > 0 && srcCount != dstCount && r.Transform.ScaleMode != ScaleNone {
		if srcW > 1 && srcH > 1 && dstW > 1 && dstH > 1 {
			zoomX, zoomY := Zoom(srcW, srcH, dstW, dstH, r.Transform.ScaleMode)
			pixels = Scale2D(pixels, srcW, srcH, bpp, zoomX, zoomY, dstW, dstH)
		} else {
			pixels = Scale1D(pixels, srcCount, dstCount, bpp, r.Transform.ScaleMode)
		}
	}
	if r.Transform.Brightness != 0 && r.Transform.Brightness != 1.0 {
		ApplyBrightness(pixels, r.Transform.Brightness)
	}
	if r.Transform.Gamma != 0 && r.Transform.Gamma != 1.0 {
		ApplyGamma(pixels, r.Transform.Gamma)
	}
	return pixels
}

// topologyDims extracts width/height from a sink's wire-described topology,
// zero if it isn't a matrix.
func topologyDims(desc device.TopologyDesc) (w, h int) {
	if desc.Kind == device.TopologyMatrix && desc.Width != nil && desc.Height != nil {
		return *desc.Width, *desc.Height
	}
	return 0, 0
}

// sourceDims extracts width/height from a source capability's Dimensions,
// zero if the source didn't publish a 2-D shape.
func sourceDims(dims []int) (w, h int) {
	if len(dims) == 2 {
		return dims[0], dims[1]
	}
	return 0, 0
}

func colorFormatByte(color string) byte {
	switch color {
	case "rgbw":
		return 0x02
	case "hsv":
		return 0x03
	case "grayscale":
		return 0x04
	default:
		return 0x01
	}
}

// supervise polls both endpoints' online status once a second and the
// "no data received" staleness window (spec §4.5 "Route execution,
// step 7": "supervisor loop checking online status every second...warns
// if no data has been received in >=5s"). Returns nil when the route is
// disabled/deleted (clean exit); otherwise the detected fault.
func (e *Engine) supervise(r *Route, src, sink *DiscoveredDevice, recvDone <-chan struct{}) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	warned := false

	for {
		select {
		case <-e.stopCh:
			return nil
		case <-recvDone:
			return errors.New("data receiver stopped unexpectedly")
		case <-ticker.C:
			if !r.Enabled {
				return nil
			}
			if !sink.Online() {
				return errors.Errorf("sink %s went offline", sink.StableID)
			}
			if src.Kind != KindVirtualSource && !src.Online() {
				return errors.Errorf("source %s went offline", src.StableID)
			}
			if r.Mode == ModeDirect {
				continue // no frames transit the controller in direct mode
			}
			last := r.lastFrameTime()
			if last.IsZero() {
				last = r.connectTime() // no frame yet: measure staleness from connect
			}
			if !last.IsZero() {
				if idle := time.Since(last); idle >= 5*time.Second && !warned {
					nlog.Warningf("routing: route %s: no data received in %s", r.ID, idle.Round(time.Second))
					warned = true
				} else if idle < 5*time.Second {
					warned = false
				}
			}
		}
	}
}

// teardownRoute disables the route, marks it disconnected and returns
// without waiting. The in-flight executeRoute goroutine observes
// r.Enabled==false on its next supervisor tick and unwinds through its own
// deferred STOP calls, which carry the correct per-connection stream ids
// (spec §4.5 "Teardown"). If the goroutine is mid-backoff sleep it never
// restarts, since runRoute also checks r.Enabled before each attempt.
func (e *Engine) teardownRoute(r *Route) {
	r.mu.Lock()
	r.Enabled = false
	r.mu.Unlock()
	r.setStatus(StatusDisconnected, "")
}
