package routing_test

import (
	"testing"

	"github.com/ltpfabric/ltp/cmn/cos"
	"github.com/ltpfabric/ltp/discovery"
	"github.com/ltpfabric/ltp/routing"
	"github.com/ltpfabric/ltp/routing/virtualsource"
)

func discover(e *routing.Engine, serviceType, stableID, name, host string, port int) {
	e.OnDiscoveryChange(&discovery.DiscoveredDevice{
		ServiceType: serviceType,
		StableID:    stableID,
		Instance:    name,
		Host:        host,
		Port:        port,
		Name:        name,
	}, true)
}

// TestCreateRouteEnforcesUniqueness verifies spec §8 property 7: at most
// one route may exist per (source, sink) pair.
func TestCreateRouteEnforcesUniqueness(t *testing.T) {
	e := routing.NewEngine()
	discover(e, discovery.ServiceSource, "src-1", "studio-cam", "127.0.0.1", 7001)
	discover(e, discovery.ServiceSink, "sink-1", "lobby-wall", "127.0.0.1", 7002)

	if _, err := e.CreateRoute("r1", "src-1", "sink-1", routing.ModeProxy, routing.DefaultTransform()); err != nil {
		t.Fatalf("first CreateRoute: %v", err)
	}
	if _, err := e.CreateRoute("r2", "src-1", "sink-1", routing.ModeProxy, routing.DefaultTransform()); err == nil {
		t.Fatal("expected duplicate route to be rejected")
	}
}

func TestCreateRouteAllowsDistinctPairs(t *testing.T) {
	e := routing.NewEngine()
	discover(e, discovery.ServiceSource, "src-1", "studio-cam", "127.0.0.1", 7001)
	discover(e, discovery.ServiceSink, "sink-1", "lobby-wall", "127.0.0.1", 7002)
	discover(e, discovery.ServiceSink, "sink-2", "stage-wall", "127.0.0.1", 7003)

	if _, err := e.CreateRoute("r1", "src-1", "sink-1", routing.ModeProxy, routing.DefaultTransform()); err != nil {
		t.Fatalf("route to sink-1: %v", err)
	}
	if _, err := e.CreateRoute("r2", "src-1", "sink-2", routing.ModeProxy, routing.DefaultTransform()); err != nil {
		t.Fatalf("route to sink-2 should be allowed: %v", err)
	}
	if got := len(e.Routes()); got != 2 {
		t.Fatalf("expected 2 routes, got %d", got)
	}
}

func TestDeleteUnknownRouteReturnsNotFound(t *testing.T) {
	e := routing.NewEngine()
	err := e.DeleteRoute("does-not-exist")
	if err == nil || !cos.IsErrNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegisterVirtualSourceIsLookupable(t *testing.T) {
	e := routing.NewEngine()
	e.RegisterVirtualSource("vs-1", "rainbow", &virtualsource.RainbowVirtualSource{PixelCount: 60, RateHz: 30})

	d, ok := e.Lookup("vs-1")
	if !ok {
		t.Fatal("expected virtual source to be lookupable")
	}
	if d.Kind != routing.KindVirtualSource {
		t.Fatalf("expected KindVirtualSource, got %v", d.Kind)
	}
	if !d.Online() {
		t.Fatal("virtual sources should report online with no health checks run")
	}
}

func TestDiscoveryChangeRemovesDevice(t *testing.T) {
	e := routing.NewEngine()
	discover(e, discovery.ServiceSink, "sink-1", "lobby-wall", "127.0.0.1", 7002)
	if _, ok := e.Lookup("sink-1"); !ok {
		t.Fatal("expected sink-1 to be known after discovery")
	}
	e.OnDiscoveryChange(&discovery.DiscoveredDevice{ServiceType: discovery.ServiceSink, StableID: "sink-1"}, false)
	if _, ok := e.Lookup("sink-1"); ok {
		t.Fatal("expected sink-1 to be removed after departure")
	}
}
