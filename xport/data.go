package xport

import (
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ltpfabric/ltp/cmn/mono"
	"github.com/ltpfabric/ltp/cmn/nlog"
	"github.com/ltpfabric/ltp/wire"
)

var (
	framesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ltp_frames_sent_total",
		Help: "DataPackets transmitted by a DataSender, by stream id.",
	}, []string{"stream"})
	framesDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ltp_frames_dropped_total",
		Help: "Malformed DataPackets dropped by a DataReceiver, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(framesSentTotal, framesDroppedTotal)
}

// DataSender is a connected UDP socket to a single peer (spec §4.2 "Data
// sender"). Not safe for concurrent Send calls from multiple goroutines
// without external synchronization, matching the single-threaded
// cooperative model (spec §5).
type DataSender struct {
	conn     *net.UDPConn
	seq      atomic.Uint32
	streamID string

	mu      sync.Mutex
	maxFPS  float64
	lastSnd int64 // mono.NanoTime reading of the last Send call under the rate cap
}

// NewDataSender opens a connected UDP socket toward host:port.
func NewDataSender(streamID, host string, port int) (*DataSender, error) {
	raddr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, errors.Wrapf(err, "xport: dial udp %s:%d", host, port)
	}
	return &DataSender{conn: conn, streamID: streamID}, nil
}

// SetRateCap bounds Send to at most maxFPS calls/sec; zero disables the cap
// (spec §4.2 "Optional rate cap").
func (s *DataSender) SetRateCap(maxFPS float64) {
	s.mu.Lock()
	s.maxFPS = maxFPS
	s.mu.Unlock()
}

// Send builds a DataPacket from pixels and transmits it, applying the rate
// cap by sleeping the remaining delta if called faster than 1/max_fps
// (spec §4.2 "Data sender"). Packets exceeding MaxPacketSize are sent
// anyway and logged (caller's responsibility to stay within MTU, spec
// §4.2, §9 Open Questions).
func (s *DataSender) Send(color wire.ColorFormat, encoding wire.Encoding, pixelCount int, pixels []byte) error {
	s.mu.Lock()
	if s.maxFPS > 0 {
		minDelta := time.Duration(float64(time.Second) / s.maxFPS)
		if elapsed := mono.Since(s.lastSnd); s.lastSnd != 0 && elapsed < minDelta {
			time.Sleep(minDelta - elapsed)
		}
		s.lastSnd = mono.NanoTime()
	}
	s.mu.Unlock()

	seq := s.seq.Add(1)
	buf, err := wire.EncodePacket(seq, color, encoding, pixelCount, pixels)
	if err != nil {
		return err
	}
	if len(buf) > wire.MaxPacketSize {
		nlog.Warningf("xport: stream %s: packet %d bytes exceeds MTU budget %d", s.streamID, len(buf), wire.MaxPacketSize)
	}
	if _, err := s.conn.Write(buf); err != nil {
		return errors.Wrap(err, "xport: udp write")
	}
	framesSentTotal.WithLabelValues(s.streamID).Inc()
	return nil
}

func (s *DataSender) Close() error { return s.conn.Close() }

// SendRaw writes b unmodified to the peer, bypassing packet construction.
// Exported for tests that need to exercise the receiver's malformed-input
// path; production code always goes through Send.
func (s *DataSender) SendRaw(b []byte) error {
	_, err := s.conn.Write(b)
	return err
}

// PacketHandler receives one decoded DataPacket off a DataReceiver.
type PacketHandler func(pkt *wire.DataPacket)

// DataReceiver is a bound UDP socket that parses each datagram and
// dispatches to a handler (spec §4.2 "Data receiver"). Malformed datagrams
// are dropped with a warning — no ack, no retransmit.
type DataReceiver struct {
	conn   *net.UDPConn
	handle PacketHandler

	closed chan struct{}
}

// ListenData binds addr (":0" for OS-chosen) and returns a DataReceiver
// ready to Serve.
func ListenData(addr string, handle PacketHandler) (*DataReceiver, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &DataReceiver{conn: conn, handle: handle, closed: make(chan struct{})}, nil
}

// Port returns the bound UDP port, queryable after bind (spec §4.2 "Data
// receiver": "Port 0 → OS-chosen, queryable after bind").
func (r *DataReceiver) Port() int {
	return r.conn.LocalAddr().(*net.UDPAddr).Port
}

// Serve reads datagrams until Close, decoding and dispatching each.
func (r *DataReceiver) Serve() error {
	buf := make([]byte, 65535)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.closed:
				return nil
			default:
				return err
			}
		}
		pkt, err := wire.DecodePacket(buf[:n])
		if err != nil {
			framesDroppedTotal.WithLabelValues("malformed").Inc()
			nlog.Warningf("xport: dropping malformed datagram: %v", err)
			continue
		}
		r.handle(pkt)
	}
}

func (r *DataReceiver) Close() error {
	close(r.closed)
	return r.conn.Close()
}

// LocalRouteIP determines this process's outbound IP address toward dst,
// by opening a connected UDP socket to dst:1 and reading the local socket
// name, falling back to the local hostname's resolved address, then
// loopback (spec §4.5 step 3: "determine this controller's routable IP
// toward the source").
func LocalRouteIP(dst string) string {
	if conn, err := net.Dial("udp", net.JoinHostPort(dst, "1")); err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && addr.IP != nil && !addr.IP.IsUnspecified() {
			return addr.IP.String()
		}
	}
	if hostname, err := os.Hostname(); err == nil {
		if addrs, err := net.LookupHost(hostname); err == nil && len(addrs) > 0 {
			return addrs[0]
		}
	}
	return "127.0.0.1"
}
