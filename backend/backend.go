// Package backend provides the minimal in-memory reference implementations
// of device.Backend and device.MediaInput used by tests and the CLI's
// "no real hardware attached" mode (spec §6 "Backend seam": renderer and
// media-input implementations beyond this reference are external
// collaborators, out of scope for the core fabric).
package backend

import (
	"sync"

	"github.com/ltpfabric/ltp/device"
	"github.com/ltpfabric/ltp/wire"
)

// FrameBuffer is a device.Backend that stores the most recently rendered
// frame in memory, for tests and a CLI inspection surface — the fabric
// equivalent of a "null renderer."
type FrameBuffer struct {
	mu     sync.RWMutex
	pixels []byte
	color  wire.ColorFormat
	frames uint64
}

func NewFrameBuffer() *FrameBuffer { return &FrameBuffer{} }

func (f *FrameBuffer) Render(pixels []byte, color wire.ColorFormat, _ device.Topology) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pixels = append(f.pixels[:0], pixels...)
	f.color = color
	f.frames++
	return nil
}

// Snapshot returns a copy of the last rendered frame and its color format.
func (f *FrameBuffer) Snapshot() ([]byte, wire.ColorFormat) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]byte, len(f.pixels))
	copy(out, f.pixels)
	return out, f.color
}

func (f *FrameBuffer) FrameCount() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.frames
}

// StaticInput is a device.MediaInput that always returns the same frame —
// useful for a source with no real camera/generator attached.
type StaticInput struct {
	mu     sync.RWMutex
	pixels []byte
}

func NewStaticInput(pixels []byte) *StaticInput {
	return &StaticInput{pixels: pixels}
}

func (s *StaticInput) ReadFrame() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.pixels) == 0 {
		return nil, false
	}
	out := make([]byte, len(s.pixels))
	copy(out, s.pixels)
	return out, true
}

// SetFrame replaces the frame StaticInput serves on the next ReadFrame
// call, letting a test or CLI command drive a synthetic feed.
func (s *StaticInput) SetFrame(pixels []byte) {
	s.mu.Lock()
	s.pixels = pixels
	s.mu.Unlock()
}

// FuncInput adapts a polling function to device.MediaInput — the seam a
// virtual-source-backed test harness or a future real capture backend
// plugs into.
type FuncInput func() ([]byte, bool)

func (f FuncInput) ReadFrame() ([]byte, bool) { return f() }
