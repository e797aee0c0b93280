// Package virtualsource implements in-controller pixel producers — routes
// whose "source" is a local pattern or data visualizer rather than a
// discovered device (spec §4.5 "Route execution (virtual source)";
// supplemented catalogue per SPEC_FULL.md §C, grounded on
// original_source/src/ltp_controller/virtual_sources/).
package virtualsource

import (
	"math"
	"time"
)

// VirtualSource is the seam every in-controller producer implements: Tick
// is called at the source's configured rate and returns a flat pixel
// buffer, or ok=false to skip this tick (matching the render-loop contract
// of a discovered source, spec §4.4.2).
type VirtualSource interface {
	Tick(now time.Time) (pixels []byte, ok bool)
	Rate() float64
	BytesPerPixel() int
}

// SolidVirtualSource emits a constant color at a fixed rate.
type SolidVirtualSource struct {
	PixelCount int
	Color      [3]byte
	RateHz     float64
}

func (s *SolidVirtualSource) Rate() float64       { return s.RateHz }
func (s *SolidVirtualSource) BytesPerPixel() int  { return 3 }

func (s *SolidVirtualSource) Tick(time.Time) ([]byte, bool) {
	out := make([]byte, s.PixelCount*3)
	for i := 0; i < s.PixelCount; i++ {
		out[i*3], out[i*3+1], out[i*3+2] = s.Color[0], s.Color[1], s.Color[2]
	}
	return out, true
}

// RainbowVirtualSource sweeps hue across the full topology, completing one
// full cycle every Period.
type RainbowVirtualSource struct {
	PixelCount int
	Period     time.Duration
	RateHz     float64

	start time.Time
}

func (s *RainbowVirtualSource) Rate() float64      { return s.RateHz }
func (s *RainbowVirtualSource) BytesPerPixel() int { return 3 }

func (s *RainbowVirtualSource) Tick(now time.Time) ([]byte, bool) {
	if s.start.IsZero() {
		s.start = now
	}
	elapsed := now.Sub(s.start)
	phase := math.Mod(elapsed.Seconds()/s.Period.Seconds(), 1.0)

	out := make([]byte, s.PixelCount*3)
	for i := 0; i < s.PixelCount; i++ {
		hue := math.Mod(phase+float64(i)/float64(s.PixelCount), 1.0) * 360.0
		r, g, b := hsvToRGB(hue, 1.0, 1.0)
		out[i*3], out[i*3+1], out[i*3+2] = r, g, b
	}
	return out, true
}

// ScalarFunc supplies the current scalar reading a ScalarVirtualSource
// maps onto a gradient (e.g. a synthetic sensor value injected by config
// or tests).
type ScalarFunc func(now time.Time) float64

// Palette stop: a normalized position in [0,1] and its RGB color.
type PaletteStop struct {
	Pos   float64
	Color [3]byte
}

// ScalarVirtualSource maps a single scalar value onto a topology through a
// palette gradient (grounded on scalar_sources/base.py +
// virtual_sources/visualizers.py, per SPEC_FULL.md §C).
type ScalarVirtualSource struct {
	PixelCount int
	RateHz     float64
	Min, Max   float64
	Palette    []PaletteStop // must be sorted by Pos ascending, Pos[0]==0, Pos[last]==1
	Value      ScalarFunc
}

func (s *ScalarVirtualSource) Rate() float64      { return s.RateHz }
func (s *ScalarVirtualSource) BytesPerPixel() int { return 3 }

func (s *ScalarVirtualSource) Tick(now time.Time) ([]byte, bool) {
	if s.Value == nil || len(s.Palette) < 2 {
		return nil, false
	}
	raw := s.Value(now)
	norm := (raw - s.Min) / (s.Max - s.Min)
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	color := samplePalette(s.Palette, norm)

	out := make([]byte, s.PixelCount*3)
	for i := 0; i < s.PixelCount; i++ {
		out[i*3], out[i*3+1], out[i*3+2] = color[0], color[1], color[2]
	}
	return out, true
}

func samplePalette(stops []PaletteStop, pos float64) [3]byte {
	for i := 1; i < len(stops); i++ {
		if pos <= stops[i].Pos {
			lo, hi := stops[i-1], stops[i]
			span := hi.Pos - lo.Pos
			frac := 0.0
			if span > 0 {
				frac = (pos - lo.Pos) / span
			}
			var out [3]byte
			for c := 0; c < 3; c++ {
				a, b := float64(lo.Color[c]), float64(hi.Color[c])
				out[c] = byte(a + (b-a)*frac)
			}
			return out
		}
	}
	return stops[len(stops)-1].Color
}

// hsvToRGB converts h in [0,360), s,v in [0,1] to 8-bit RGB.
func hsvToRGB(h, s, v float64) (byte, byte, byte) {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60.0, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return byte((r + m) * 255), byte((g + m) * 255), byte((b + m) * 255)
}
