package device_test

import (
	"testing"

	"github.com/ltpfabric/ltp/device"
)

// TestMatrixTopologyBijection verifies spec §8 property 5: for every
// MatrixTopology of width W, height H, index_to_grid is a bijection onto
// {0..W-1} x {0..H-1}, and grid_to_index inverts it.
func TestMatrixTopologyBijection(t *testing.T) {
	cases := []struct {
		w, h       int
		origin     device.Origin
		order      device.Order
		serpentine bool
	}{
		{8, 4, device.OriginTopLeft, device.OrderRowMajor, false},
		{8, 4, device.OriginTopLeft, device.OrderRowMajor, true},
		{5, 7, device.OriginBottomRight, device.OrderColMajor, false},
		{5, 7, device.OriginBottomLeft, device.OrderColMajor, true},
		{3, 3, device.OriginTopRight, device.OrderRowMajor, true},
	}
	for _, c := range cases {
		topo := device.NewMatrixTopology(c.w, c.h, c.origin, c.order, c.serpentine)
		seen := make(map[[2]int]bool)
		for i := 0; i < topo.Len(); i++ {
			x, y, err := topo.IndexToGrid(i)
			if err != nil {
				t.Fatalf("%+v: IndexToGrid(%d): %v", c, i, err)
			}
			if x < 0 || x >= c.w || y < 0 || y >= c.h {
				t.Fatalf("%+v: index %d mapped out of bounds (%d,%d)", c, i, x, y)
			}
			key := [2]int{x, y}
			if seen[key] {
				t.Fatalf("%+v: grid (%d,%d) mapped from two indices", c, x, y)
			}
			seen[key] = true

			back, err := topo.GridToIndex(x, y)
			if err != nil {
				t.Fatalf("%+v: GridToIndex(%d,%d): %v", c, x, y, err)
			}
			if back != i {
				t.Fatalf("%+v: grid_to_index(index_to_grid(%d)) = %d, want %d", c, i, back, i)
			}
		}
		if len(seen) != c.w*c.h {
			t.Fatalf("%+v: covered %d of %d grid cells", c, len(seen), c.w*c.h)
		}
	}
}

func TestLinearTopology(t *testing.T) {
	topo := device.NewLinearTopology(10)
	for i := 0; i < 10; i++ {
		x, y, err := topo.IndexToGrid(i)
		if err != nil || x != i || y != 0 {
			t.Fatalf("IndexToGrid(%d) = (%d,%d,%v), want (%d,0,nil)", i, x, y, err, i)
		}
	}
	if _, _, err := topo.IndexToGrid(10); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestCustomTopologyLen(t *testing.T) {
	topo := device.NewCustomTopology([]device.Point{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if topo.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", topo.Len())
	}
	if _, _, err := topo.IndexToGrid(0); err != nil {
		t.Fatalf("IndexToGrid(0): %v", err)
	}
}
