package discovery

import (
	"fmt"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pkg/errors"

	"github.com/ltpfabric/ltp/cmn"
	"github.com/ltpfabric/ltp/cmn/nlog"
)

// Advertiser registers one service instance for a device and re-announces
// it periodically by unregister+register, which the spec notes improves
// reliability on lossy networks (spec §4.3 "Advertiser").
type Advertiser struct {
	instance    string
	serviceType string
	port        int

	mu      sync.Mutex
	txt     map[string]string
	server  *zeroconf.Server
	stopped chan struct{}
}

// NewAdvertiser builds an Advertiser for instance (typically the device's
// display name) on serviceType, publishing port plus the base TXT fields
// every service type carries (spec §4.3: ver, name, desc, id, ctrl).
func NewAdvertiser(instance, serviceType string, port int, deviceID, name, desc, version string, hasControls bool) *Advertiser {
	txt := map[string]string{
		txtVersion: version,
		txtName:    name,
		txtDesc:    desc,
		txtID:      deviceID,
	}
	if hasControls {
		txt[txtCtrl] = "1"
	} else {
		txt[txtCtrl] = "0"
	}
	return &Advertiser{instance: instance, serviceType: serviceType, port: port, txt: txt, stopped: make(chan struct{})}
}

// SetField adds or overwrites a type-specific TXT field (e.g. sink's
// "pixels"/"dim", source's "output"/"mode") before Start, or calls
// UpdateProperties afterward to re-publish.
func (a *Advertiser) SetField(key, value string) {
	a.mu.Lock()
	a.txt[key] = value
	a.mu.Unlock()
}

// Start registers the service and launches the re-announce loop (spec
// §4.3: every 30s, cmn.Rom.ReannounceInterval()).
func (a *Advertiser) Start() error {
	if err := a.register(); err != nil {
		return err
	}
	go a.reannounceLoop()
	return nil
}

func (a *Advertiser) register() error {
	a.mu.Lock()
	fields := buildTXT(a.txt)
	a.mu.Unlock()

	server, err := zeroconf.Register(a.instance, a.serviceType, "local.", a.port, fields, nil)
	if err != nil {
		return errors.Wrapf(err, "discovery: register %s %s", a.serviceType, a.instance)
	}
	a.mu.Lock()
	a.server = server
	a.mu.Unlock()
	return nil
}

func (a *Advertiser) reannounceLoop() {
	interval := cmn.Rom.ReannounceInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopped:
			return
		case <-ticker.C:
			a.mu.Lock()
			if a.server != nil {
				a.server.Shutdown()
				a.server = nil
			}
			a.mu.Unlock()
			if err := a.register(); err != nil {
				nlog.Warningf("discovery: %s %s: re-announce failed: %v", a.serviceType, a.instance, err)
			}
		}
	}
}

// UpdateProperties re-publishes with a changed TXT field, per spec §4.3
// "Exposes update_properties(...) to re-publish with changed TXT".
func (a *Advertiser) UpdateProperties(key, value string) error {
	a.SetField(key, value)
	a.mu.Lock()
	server := a.server
	a.mu.Unlock()
	if server != nil {
		server.Shutdown()
	}
	return a.register()
}

// Stop unregisters the service and halts the re-announce loop.
func (a *Advertiser) Stop() {
	close(a.stopped)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// SetDimensions sets the sink's "dim" TXT field to "WxH", the matrix-topology
// shorthand peers use to preview layout before fetching the full capability
// record (spec §6 "Service TXT records").
func (a *Advertiser) SetDimensions(w, h int) {
	a.SetField(txtDim, dimString(w, h))
}

func dimString(w, h int) string { return fmt.Sprintf("%dx%d", w, h) }
