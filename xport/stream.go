// Package xport implements the transport layer (spec §4.2): the TCP control
// server/client with request-response correlation, UDP data sender/receiver,
// and the in-memory stream registry, which records each stream's active
// flag; the registry does not itself block sends or receives.
/*
 * Copyright (c) 2024, LTP fabric contributors.
 */
package xport

import (
	"sync"
	"sync/atomic"

	"github.com/ltpfabric/ltp/cmn/cos"
)

// StreamState is one entry in the StreamManager registry (spec §4.2
// "Stream manager").
type StreamState struct {
	ID       string
	Color    string
	Encoding string

	mu             sync.RWMutex
	active         bool
	framesSent     uint64
	framesReceived uint64

	Sender   *DataSender
	Receiver *DataReceiver
}

func (s *StreamState) SetActive(v bool) {
	s.mu.Lock()
	s.active = v
	s.mu.Unlock()
}

func (s *StreamState) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *StreamState) IncSent()     { atomic.AddUint64(&s.framesSent, 1) }
func (s *StreamState) IncReceived() { atomic.AddUint64(&s.framesReceived, 1) }
func (s *StreamState) FramesSent() uint64     { return atomic.LoadUint64(&s.framesSent) }
func (s *StreamState) FramesReceived() uint64 { return atomic.LoadUint64(&s.framesReceived) }

// StreamManager is the keyed stream-id -> StreamState registry shared by a
// Sink or Source endpoint (spec §4.2 "Stream manager").
type StreamManager struct {
	mu      sync.RWMutex
	streams map[string]*StreamState
	counter atomic.Uint64
}

func NewStreamManager() *StreamManager {
	return &StreamManager{streams: make(map[string]*StreamState)}
}

// NextID mints the next monotonic stream-0001-style id (spec §4.2).
func (m *StreamManager) NextID() string {
	return cos.NextStreamID(&m.counter)
}

// Create registers a new StreamState under id, overwriting any existing
// entry with the same id.
func (m *StreamManager) Create(id, color, encoding string) *StreamState {
	s := &StreamState{ID: id, Color: color, Encoding: encoding}
	m.mu.Lock()
	m.streams[id] = s
	m.mu.Unlock()
	return s
}

func (m *StreamManager) Get(id string) (*StreamState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.streams[id]
	return s, ok
}

// Remove deletes id from the registry (teardown, spec §4.5 "Teardown").
func (m *StreamManager) Remove(id string) {
	m.mu.Lock()
	delete(m.streams, id)
	m.mu.Unlock()
}

func (m *StreamManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.streams)
}

// All returns a snapshot of every registered stream, for diagnostics/UI.
func (m *StreamManager) All() []*StreamState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*StreamState, 0, len(m.streams))
	for _, s := range m.streams {
		out = append(out, s)
	}
	return out
}
