package xport

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ltpfabric/ltp/cmn"
	"github.com/ltpfabric/ltp/cmn/nlog"
	"github.com/ltpfabric/ltp/wire"
)

// FallbackHandler receives a message lacking a seq, or whose seq does not
// match any pending request (spec §4.2 "Control client" — unsolicited
// pushes like control_changed).
type FallbackHandler func(msg wire.Message)

type pendingReq struct {
	ch chan wire.Message
}

// ControlClient opens one TCP connection and correlates request/response
// pairs by seq (spec §4.2 "Control client").
type ControlClient struct {
	nc       net.Conn
	fallback FallbackHandler

	mu      sync.Mutex
	seq     int64
	pending map[int64]*pendingReq
	closed  bool

	readErr chan error
}

// Dial connects to addr and starts the background read loop.
func Dial(addr string, fallback FallbackHandler) (*ControlClient, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "xport: dial %s", addr)
	}
	c := &ControlClient{
		nc:       nc,
		fallback: fallback,
		pending:  make(map[int64]*pendingReq),
		readErr:  make(chan error, 1),
	}
	go c.readLoop()
	return c, nil
}

func (c *ControlClient) nextSeq() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *ControlClient) readLoop() {
	scanner := bufio.NewScanner(c.nc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := wire.Decode(line)
		if err != nil {
			nlog.Warningf("control client: malformed message: %v", err)
			continue
		}
		c.route(msg)
	}
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int64]*pendingReq)
	c.mu.Unlock()
	for _, p := range pending {
		close(p.ch)
	}
	if err := scanner.Err(); err != nil {
		c.readErr <- err
	} else {
		c.readErr <- errors.New("xport: control connection closed")
	}
}

func (c *ControlClient) route(msg wire.Message) {
	seq, ok := msg.GetSeq()
	if ok {
		c.mu.Lock()
		p, found := c.pending[seq]
		if found {
			delete(c.pending, seq)
		}
		c.mu.Unlock()
		if found {
			p.ch <- msg
			return
		}
	}
	if c.fallback != nil {
		c.fallback(msg)
	}
}

// request uses the seq already on msg (set by the caller through a
// wire.NewXxx constructor; request does not assign or change it), sends
// it, and blocks for a matching response up to timeout. A msg without a
// seq is rejected.
func (c *ControlClient) request(msg wire.Message, timeout time.Duration) (wire.Message, error) {
	seq, ok := msg.GetSeq()
	if !ok {
		return nil, errors.New("xport: request message carries no seq")
	}
	ch := make(chan wire.Message, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("xport: client closed")
	}
	c.pending[seq] = &pendingReq{ch: ch}
	c.mu.Unlock()

	b, err := wire.Encode(msg)
	if err != nil {
		return nil, err
	}
	if _, err := c.nc.Write(b); err != nil {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return nil, errors.Wrap(err, "xport: write")
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, errors.New("xport: connection closed while awaiting response")
		}
		return resp, nil
	case <-time.After(timeout):
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return nil, errors.Errorf("xport: request seq=%d timed out after %s", seq, timeout)
	}
}

// Request sends msg and waits the default control timeout (spec §5:
// 5s, cmn/rom.Rom.ControlTimeout()).
func (c *ControlClient) Request(msg wire.Message) (wire.Message, error) {
	return c.request(msg, cmn.Rom.ControlTimeout())
}

// RequestTimeout sends msg and waits up to the caller-supplied timeout
// (spec §4.2 "under a caller-supplied timeout").
func (c *ControlClient) RequestTimeout(msg wire.Message, timeout time.Duration) (wire.Message, error) {
	return c.request(msg, timeout)
}

// NextSeq mints the next seq for a caller building a request message by
// hand (e.g. via wire.NewCapabilityRequest(client.NextSeq())).
func (c *ControlClient) NextSeq() int64 { return c.nextSeq() }

func (c *ControlClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.nc.Close()
}
