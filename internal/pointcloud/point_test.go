package pointcloud

import (
	"math"
	"testing"
)

func floatsClose(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func TestPointFinite(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"finite", Point{X: 1, Y: 2, Z: 3}, true},
		{"nan x", Point{X: float32(math.NaN())}, false},
		{"inf z", Point{Z: float32(math.Inf(1))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Finite(); got != tt.want {
				t.Errorf("Finite() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSquaredDistance(t *testing.T) {
	a := Point{X: 0, Y: 0, Z: 0}
	b := Point{X: 3, Y: 4, Z: 0}
	if !floatsClose(a.SquaredDistance(b), 25, 1e-9) {
		t.Errorf("expected squared distance 25, got %f", a.SquaredDistance(b))
	}
}

func TestVoxelDownsampleSingleCell(t *testing.T) {
	pts := []Point{
		{X: 0.1, Y: 0, Z: 0},
		{X: 0.2, Y: 0, Z: 0},
		{X: 0.4, Y: 0, Z: 0},
	}
	out := VoxelDownsample(pts, 1.0)
	if len(out) != 1 {
		t.Fatalf("expected one representative point, got %d", len(out))
	}
	if !floatsClose(float64(out[0].X), 0.2333333, 1e-3) {
		t.Errorf("expected centroid x ~0.2333, got %f", out[0].X)
	}
}

func TestVoxelDownsampleSeparatesCells(t *testing.T) {
	pts := []Point{
		{X: 0.1, Y: 0, Z: 0},
		{X: 1.5, Y: 0, Z: 0},
	}
	out := VoxelDownsample(pts, 1.0)
	if len(out) != 2 {
		t.Fatalf("expected two cells, got %d", len(out))
	}
}

func TestVoxelDownsampleRejectsNonFinite(t *testing.T) {
	pts := []Point{
		{X: float32(math.NaN()), Y: 0, Z: 0},
		{X: 1, Y: 1, Z: 1},
	}
	out := VoxelDownsample(pts, 1.0)
	if len(out) != 1 {
		t.Fatalf("expected non-finite point to be dropped, got %d points", len(out))
	}
}

func TestVoxelIndex(t *testing.T) {
	idx, center := VoxelIndex(Point{X: 0.4, Y: 0, Z: 0}, 1.0)
	if idx != [3]int64{0, 0, 0} {
		t.Errorf("expected voxel index (0,0,0), got %v", idx)
	}
	want := [3]float64{0.5, 0.5, 0.5}
	for i := range center {
		if !floatsClose(center[i], want[i], 1e-9) {
			t.Errorf("center[%d] = %f, want %f", i, center[i], want[i])
		}
	}
}
