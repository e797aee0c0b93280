// Package device implements the sink and source endpoint state machines
// (spec §4.4): topology mapping, the control registry, capability records,
// and the per-role render/receive loops.
/*
 * Copyright (c) 2024, LTP fabric contributors.
 */
package device

import "fmt"

// TopologyKind discriminates the spatial-layout variants (spec §3 "Topology").
type TopologyKind string

const (
	TopologyLinear TopologyKind = "linear"
	TopologyMatrix TopologyKind = "matrix"
	TopologyCustom TopologyKind = "custom"
)

// Origin is one of the four corners a MatrixTopology may index from.
type Origin string

const (
	OriginTopLeft     Origin = "top-left"
	OriginTopRight    Origin = "top-right"
	OriginBottomLeft  Origin = "bottom-left"
	OriginBottomRight Origin = "bottom-right"
)

// Order is the matrix traversal order.
type Order string

const (
	OrderRowMajor Order = "row-major"
	OrderColMajor Order = "column-major"
)

// Point is a normalized [0,1]x[0,1] position, used by CustomTopology.
type Point struct {
	X, Y float64
}

// Topology maps a sink's linear pixel index space onto spatial positions
// (spec §3 "Topology"). The mapping must be injective: every index in
// [0,N) maps to exactly one position (spec §8 property 5).
type Topology interface {
	Kind() TopologyKind
	Len() int
	// IndexToGrid returns the (x,y) integer grid coordinate of pixel i.
	// For LinearTopology, y is always 0.
	IndexToGrid(i int) (x, y int, err error)
	// GridToIndex is the inverse of IndexToGrid.
	GridToIndex(x, y int) (i int, err error)
}

type LinearTopology struct {
	N int
}

func NewLinearTopology(n int) *LinearTopology { return &LinearTopology{N: n} }

func (t *LinearTopology) Kind() TopologyKind { return TopologyLinear }
func (t *LinearTopology) Len() int           { return t.N }

func (t *LinearTopology) IndexToGrid(i int) (int, int, error) {
	if i < 0 || i >= t.N {
		return 0, 0, fmt.Errorf("index %d out of range [0,%d)", i, t.N)
	}
	return i, 0, nil
}

func (t *LinearTopology) GridToIndex(x, y int) (int, error) {
	if y != 0 || x < 0 || x >= t.N {
		return 0, fmt.Errorf("grid (%d,%d) out of range for linear topology of length %d", x, y, t.N)
	}
	return x, nil
}

// MatrixTopology models a 2-D panel with a chosen origin corner, traversal
// order, and optional serpentine (boustrophedon) wiring (spec §3 "Topology").
type MatrixTopology struct {
	Width, Height int
	Origin        Origin
	Order         Order
	Serpentine    bool
}

func NewMatrixTopology(w, h int, origin Origin, order Order, serpentine bool) *MatrixTopology {
	return &MatrixTopology{Width: w, Height: h, Origin: origin, Order: order, Serpentine: serpentine}
}

func (t *MatrixTopology) Kind() TopologyKind { return TopologyMatrix }
func (t *MatrixTopology) Len() int           { return t.Width * t.Height }

func (t *MatrixTopology) IndexToGrid(i int) (int, int, error) {
	n := t.Len()
	if i < 0 || i >= n {
		return 0, 0, fmt.Errorf("index %d out of range [0,%d)", i, n)
	}
	var major, minor int
	var majorLen int
	if t.Order == OrderColMajor {
		majorLen = t.Height
	} else {
		majorLen = t.Width
	}
	major = i / majorLen
	minor = i % majorLen
	if t.Serpentine && major%2 == 1 {
		minor = majorLen - 1 - minor
	}

	var rawX, rawY int
	if t.Order == OrderColMajor {
		rawX, rawY = major, minor
	} else {
		rawX, rawY = minor, major
	}
	x, y := applyOrigin(rawX, rawY, t.Width, t.Height, t.Origin)
	return x, y, nil
}

func (t *MatrixTopology) GridToIndex(x, y int) (int, error) {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return 0, fmt.Errorf("grid (%d,%d) out of range for %dx%d matrix", x, y, t.Width, t.Height)
	}
	rawX, rawY := unapplyOrigin(x, y, t.Width, t.Height, t.Origin)
	var major, minor, majorLen int
	if t.Order == OrderColMajor {
		major, minor, majorLen = rawX, rawY, t.Height
	} else {
		major, minor, majorLen = rawY, rawX, t.Width
	}
	if t.Serpentine && major%2 == 1 {
		minor = majorLen - 1 - minor
	}
	return major*majorLen + minor, nil
}

// applyOrigin converts a coordinate expressed with top-left origin (the
// canonical frame used internally) to the caller's chosen origin corner.
func applyOrigin(x, y, w, h int, origin Origin) (int, int) {
	switch origin {
	case OriginTopRight:
		return w - 1 - x, y
	case OriginBottomLeft:
		return x, h - 1 - y
	case OriginBottomRight:
		return w - 1 - x, h - 1 - y
	default: // OriginTopLeft
		return x, y
	}
}

func unapplyOrigin(x, y, w, h int, origin Origin) (int, int) {
	// every supported origin transform is its own inverse
	return applyOrigin(x, y, w, h, origin)
}

// CustomTopology is an explicit list of {index, x, y} positions with x,y
// normalized to [0,1] (spec §3 "Topology").
type CustomTopology struct {
	Positions []Point // Positions[i] is the position of pixel i
}

func NewCustomTopology(positions []Point) *CustomTopology {
	return &CustomTopology{Positions: positions}
}

func (t *CustomTopology) Kind() TopologyKind { return TopologyCustom }
func (t *CustomTopology) Len() int           { return len(t.Positions) }

func (t *CustomTopology) IndexToGrid(i int) (int, int, error) {
	if i < 0 || i >= len(t.Positions) {
		return 0, 0, fmt.Errorf("index %d out of range [0,%d)", i, len(t.Positions))
	}
	p := t.Positions[i]
	return int(p.X * float64(len(t.Positions))), int(p.Y * float64(len(t.Positions))), nil
}

// GridToIndex is not meaningfully invertible for a custom point cloud in
// integer grid terms; callers needing nearest-point lookup should search
// Positions directly. Returns an error, as the custom variant's invariant
// (spec §3) is injectivity of IndexToGrid, not a grid inverse.
func (t *CustomTopology) GridToIndex(x, y int) (int, error) {
	return 0, fmt.Errorf("custom topology does not support grid-to-index lookup")
}
