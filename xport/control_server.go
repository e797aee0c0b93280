package xport

import (
	"bufio"
	"net"
	"sync"

	"github.com/ltpfabric/ltp/cmn/nlog"
	"github.com/ltpfabric/ltp/wire"
)

// Handler processes one decoded control message on a connection and
// returns the response to write back, or nil for a message with no reply
// (spec §4.2 "Control server" — handlers may be synchronous or return a
// deferred result; here, the handler itself decides whether to block).
type Handler func(conn *Conn, msg wire.Message) wire.Message

// Conn wraps one accepted control-channel TCP connection. Handlers may use
// it to push unsolicited messages (e.g. control_changed) to this specific
// peer.
type Conn struct {
	RemoteAddr string

	nc net.Conn
	mu sync.Mutex // serializes writes; a handler and a broadcast may race
}

// Send writes msg to this connection, newline-terminated (spec §4.1).
func (c *Conn) Send(msg wire.Message) error {
	b, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.nc.Write(b)
	return err
}

func (c *Conn) Close() error { return c.nc.Close() }

// ControlServer accepts TCP connections and dispatches newline-delimited
// control messages to Handler, per connection, never head-of-line-blocking
// unrelated connections (spec §4.2 "Control server").
type ControlServer struct {
	ln      net.Listener
	handler Handler

	mu    sync.Mutex
	conns map[*Conn]struct{}

	closed chan struct{}
}

// Listen binds addr (":0" for an OS-chosen port) and returns a ControlServer
// ready to Serve.
func Listen(addr string, handler Handler) (*ControlServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &ControlServer{ln: ln, handler: handler, conns: make(map[*Conn]struct{}), closed: make(chan struct{})}, nil
}

// Port returns the bound TCP port, resolved after Listen even when addr
// requested port 0.
func (s *ControlServer) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Serve accepts connections until the server is closed, each handled on
// its own goroutine so one slow peer cannot block another (spec §4.2
// "must not head-of-line-block unrelated connections").
func (s *ControlServer) Serve() error {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
				return err
			}
		}
		conn := &Conn{RemoteAddr: nc.RemoteAddr().String(), nc: nc}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		go s.serveConn(conn)
	}
}

func (s *ControlServer) serveConn(conn *Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(conn.nc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := wire.Decode(line)
		if err != nil {
			nlog.Warningf("control server: %s: malformed message: %v", conn.RemoteAddr, err)
			s.writeProtoErr(conn, err)
			continue
		}
		resp := s.dispatch(conn, msg)
		if resp == nil {
			continue
		}
		if err := conn.Send(resp); err != nil {
			nlog.Errorf("control server: %s: write failed: %v", conn.RemoteAddr, err)
			return
		}
	}
}

// dispatch recovers from a handler panic by returning a wire error response
// carrying the request's seq, matching spec §4.2 "On handler exception the
// server writes an error response carrying the original seq".
func (s *ControlServer) dispatch(conn *Conn, msg wire.Message) (resp wire.Message) {
	defer func() {
		if r := recover(); r != nil {
			nlog.Errorf("control server: handler panic: %v", r)
			seq, _ := msg.GetSeq()
			resp = wire.NewError(&seq, wire.Internal, "internal", "handler error")
		}
	}()
	return s.handler(conn, msg)
}

func (s *ControlServer) writeProtoErr(conn *Conn, err error) {
	pe, ok := err.(*wire.ProtoError)
	code := wire.InvalidFormat
	if ok {
		code = pe.Code
	}
	_ = conn.Send(wire.NewError(nil, code, "invalid_format", err.Error()))
}

// Broadcast pushes msg to every currently open connection (spec §4.2
// "used for control_changed").
func (s *ControlServer) Broadcast(msg wire.Message) {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			nlog.Warningf("control server: broadcast to %s failed: %v", c.RemoteAddr, err)
		}
	}
}

// Close stops accepting new connections and closes every open one.
func (s *ControlServer) Close() error {
	close(s.closed)
	err := s.ln.Close()
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	return err
}
