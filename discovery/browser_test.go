package discovery

import "testing"

func TestTXTRoundTrip(t *testing.T) {
	fields := []string{"ver=1.0", "name=sink-a", "id=abc-123", "ctrl=1"}
	m := parseTXT(fields)
	if m["ver"] != "1.0" || m["name"] != "sink-a" || m["ctrl"] != "1" {
		t.Fatalf("parseTXT produced unexpected map: %v", m)
	}
	back := buildTXT(m)
	if len(back) != len(fields) {
		t.Fatalf("buildTXT length mismatch: got %d want %d", len(back), len(fields))
	}
	roundTripped := parseTXT(back)
	for k, v := range m {
		if roundTripped[k] != v {
			t.Fatalf("round trip lost %s: got %q want %q", k, roundTripped[k], v)
		}
	}
}

func TestBrowserUpsertAndViews(t *testing.T) {
	var lastPresent bool
	var lastDevice *DiscoveredDevice
	b, err := NewBrowser([]string{ServiceSink, ServiceSource}, func(d *DiscoveredDevice, present bool) {
		lastDevice, lastPresent = d, present
	})
	if err != nil {
		t.Fatalf("NewBrowser: %v", err)
	}
	defer b.Close()

	d := &DiscoveredDevice{ServiceType: ServiceSink, Instance: "sink-a", StableID: "stable-1", ID: "uuid-1", Name: "sink-a", Host: "127.0.0.1", Port: 9001}
	b.upsert(d, true)

	if !lastPresent || lastDevice.StableID != "stable-1" {
		t.Fatalf("onChange callback did not fire as expected: present=%v device=%+v", lastPresent, lastDevice)
	}

	sinks := b.Sinks()
	if len(sinks) != 1 {
		t.Fatalf("expected 1 sink, got %d: %v", len(sinks), sinks)
	}
	if val, ok := b.LookupByID(ServiceSink, "stable-1"); !ok || val == "" {
		t.Fatalf("LookupByID failed to find stable-1: ok=%v val=%q", ok, val)
	}

	b.upsert(d, false)
	if lastPresent {
		t.Fatal("expected present=false after removal upsert")
	}
	if len(b.Sinks()) != 0 {
		t.Fatalf("expected 0 sinks after removal, got %d", len(b.Sinks()))
	}
}

func TestStableIDPersistsAcrossRediscovery(t *testing.T) {
	b, err := NewBrowser([]string{ServiceSource}, nil)
	if err != nil {
		t.Fatalf("NewBrowser: %v", err)
	}
	defer b.Close()

	first := b.stableID(ServiceSource, "source-b")
	second := b.stableID(ServiceSource, "source-b")
	if first != second {
		t.Fatalf("stable id changed across calls: %q vs %q", first, second)
	}
}
