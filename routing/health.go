package routing

import (
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ltpfabric/ltp/cmn"
	"github.com/ltpfabric/ltp/cmn/nlog"
)

var deviceOnlineGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "ltp_device_online",
	Help: "1 if the controller currently considers a discovered device online, else 0.",
}, []string{"stable_id", "kind"})

func init() {
	prometheus.MustRegister(deviceOnlineGauge)
}

// StateChangeCallback is invoked when a device's online/offline status
// actually flips (spec §4.5 "Health check": "if previously offline, flips
// to true and invokes the state-change callback").
type StateChangeCallback func(d *DiscoveredDevice, online bool)

// healthCheckOnce TCP-connects to addr with the configured timeout and
// immediately closes, per spec §4.5 "Health check": "the controller
// TCP-connects to each known device's control port with a 10s timeout and
// immediately closes."
func healthCheckOnce(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// RunHealthChecks walks every device in devices, probes its control port,
// and applies the consecutive-failure threshold (spec §8 property 9).
// Call this from a ticker at cmn.Rom.HealthCheckInterval().
func RunHealthChecks(devices []*DiscoveredDevice, onChange StateChangeCallback) {
	timeout := cmn.Rom.HealthCheckTimeout()
	threshold := cmn.Rom.HealthFailThreshold()
	for _, d := range devices {
		addr := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		ok := healthCheckOnce(addr, timeout)
		changed := d.recordHealthCheck(ok, threshold)
		deviceOnlineGauge.WithLabelValues(d.StableID, string(d.Kind)).Set(boolToFloat(d.Online()))
		if changed {
			nlog.Warningf("routing: device %s (%s) %s", d.Name, d.StableID, onlineWord(d.Online()))
			if onChange != nil {
				onChange(d, d.Online())
			}
		}
	}
}

func onlineWord(online bool) string {
	if online {
		return "back online"
	}
	return "went offline"
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
