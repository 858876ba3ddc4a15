package ikdtree

import (
	"math"
	"testing"

	"github.com/lio-core/lio/internal/pointcloud"
)

func pt(x, y, z float32) pointcloud.Point {
	return pointcloud.Point{X: x, Y: y, Z: z}
}

func newTestTree() *Tree {
	cfg := DefaultConfig()
	cfg.AsyncRebuildMinLen = 1 << 30 // keep rebuilds inline for deterministic tests
	return New(cfg, nil)
}

func TestBuildAndNearestSearchOrdering(t *testing.T) {
	tr := newTestTree()
	tr.Build([]pointcloud.Point{
		pt(0, 0, 0), pt(1, 0, 0), pt(2, 0, 0), pt(5, 0, 0), pt(-3, 0, 0),
	})

	points, dists := tr.NearestSearch(pt(0, 0, 0), 3)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for i := 1; i < len(dists); i++ {
		if dists[i] < dists[i-1] {
			t.Errorf("distances not non-decreasing: %v", dists)
		}
	}
	if points[0].X != 0 {
		t.Errorf("expected closest point to be origin, got %v", points[0])
	}
}

func TestEmptyTreeSearch(t *testing.T) {
	tr := newTestTree()
	points, dists := tr.NearestSearch(pt(0, 0, 0), 5)
	if len(points) != 0 || len(dists) != 0 {
		t.Errorf("expected empty result from empty tree, got %d points", len(points))
	}
}

func TestNearestSearchNeverReturnsDeleted(t *testing.T) {
	tr := newTestTree()
	tr.Build([]pointcloud.Point{pt(0, 0, 0), pt(1, 0, 0), pt(2, 0, 0)})
	tr.DeleteBox([]Box{{Min: [3]float64{-0.5, -0.5, -0.5}, Max: [3]float64{0.5, 0.5, 0.5}}})

	points, _ := tr.NearestSearch(pt(0, 0, 0), 3)
	for _, p := range points {
		if p.X == 0 {
			t.Errorf("deleted point (0,0,0) was returned by NearestSearch")
		}
	}
}

func TestDeleteBoxIdempotentAndMonotoneValidNum(t *testing.T) {
	tr := newTestTree()
	tr.Build([]pointcloud.Point{pt(0, 0, 0), pt(1, 0, 0), pt(2, 0, 0), pt(10, 0, 0)})
	before := tr.ValidNum()

	box := []Box{{Min: [3]float64{-0.5, -0.5, -0.5}, Max: [3]float64{1.5, 0.5, 0.5}}}
	tr.DeleteBox(box)
	afterFirst := tr.ValidNum()
	tr.DeleteBox(box)
	afterSecond := tr.ValidNum()

	if afterFirst >= before {
		t.Errorf("expected valid_num to decrease after delete, before=%d after=%d", before, afterFirst)
	}
	if afterFirst != afterSecond {
		t.Errorf("delete_box not idempotent: %d != %d", afterFirst, afterSecond)
	}
}

func TestNonPositiveVolumeBoxIgnored(t *testing.T) {
	tr := newTestTree()
	tr.Build([]pointcloud.Point{pt(0, 0, 0)})
	before := tr.ValidNum()
	tr.DeleteBox([]Box{{Min: [3]float64{0, 0, 0}, Max: [3]float64{0, 1, 1}}}) // zero-volume on x
	if tr.ValidNum() != before {
		t.Errorf("expected zero-volume box to be a no-op")
	}
}

func TestNonFinitePointsRejected(t *testing.T) {
	tr := newTestTree()
	tr.Add([]pointcloud.Point{
		{X: float32(math.NaN()), Y: 0, Z: 0},
		pt(1, 1, 1),
	}, false)
	if tr.ValidNum() != 1 {
		t.Errorf("expected non-finite point rejected, valid_num=%d", tr.ValidNum())
	}
}

func TestDownsampleKeepsClosestToVoxelCenter(t *testing.T) {
	tr := newTestTree()
	tr.cfg.VoxelSize = 1.0
	tr.Add([]pointcloud.Point{pt(0.1, 0, 0), pt(0.2, 0, 0), pt(0.4, 0, 0)}, true)

	if got := tr.ValidNum(); got != 1 {
		t.Fatalf("expected exactly one surviving point, got %d", got)
	}
	points, _ := tr.NearestSearch(pt(0.4, 0, 0), 1)
	if len(points) != 1 || points[0].X != 0.4 {
		t.Errorf("expected surviving point (0.4,0,0), got %v", points)
	}
}

func TestDownsampleAcrossVoxelsKeepsBoth(t *testing.T) {
	tr := newTestTree()
	tr.cfg.VoxelSize = 1.0
	tr.Add([]pointcloud.Point{pt(0.1, 0, 0), pt(1.5, 0, 0)}, true)
	if got := tr.ValidNum(); got != 2 {
		t.Errorf("expected points in separate voxels to both survive, got %d", got)
	}
}

func TestPartialRebuildPreservesAlivePoints(t *testing.T) {
	tr := newTestTree()
	var pts []pointcloud.Point
	for i := 0; i < 200; i++ {
		pts = append(pts, pt(float32(i), 0, 0))
	}
	tr.Build(pts)
	tr.DeleteBox([]Box{{Min: [3]float64{-1, -1, -1}, Max: [3]float64{50, 1, 1}}})

	// DeleteBox has already rebuilt the subtrees whose deleted fraction
	// exceeded gamma; insert one more point and check no alive point was lost.
	tr.Add([]pointcloud.Point{pt(1000, 0, 0)}, false)
	want := 200 - 51 + 1 // indices 0..50 deleted, plus the new point
	if got := tr.ValidNum(); got != want {
		t.Errorf("valid_num after rebuild = %d, want %d", got, want)
	}
}
