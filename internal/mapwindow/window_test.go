package mapwindow

import (
	"testing"

	"github.com/lio-core/lio/internal/ikdtree"
	"github.com/lio-core/lio/internal/pointcloud"
)

func TestTrimFirstCallOnlyCentersNoDelete(t *testing.T) {
	tr := ikdtree.New(ikdtree.DefaultConfig(), nil)
	tr.Build([]pointcloud.Point{{X: 0, Y: 0, Z: 0}})
	before := tr.ValidNum()

	w := New(DefaultConfig())
	w.Trim([3]float64{0, 0, 0}, tr)

	if tr.ValidNum() != before {
		t.Errorf("expected no deletion on first Trim call")
	}
}

func TestTrimSlidesTowardApproachingFace(t *testing.T) {
	cfg := Config{CubeLen: 1000, DetRange: 300, MovThreshold: 1.5}
	w := New(cfg)
	tr := ikdtree.New(ikdtree.DefaultConfig(), nil)

	// Seed a point near the trailing (-x) face that should be trimmed once
	// the sensor has moved close enough to the opposite (+x) face to
	// trigger a slide in +x.
	tr.Build([]pointcloud.Point{{X: -499, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 0}})

	w.Trim([3]float64{0, 0, 0}, tr) // centers the cube at origin
	before := tr.ValidNum()

	threshold := cfg.MovThreshold * cfg.DetRange // 450
	nearFaceX := cfg.CubeLen/2 - threshold + 1   // 51: inside the trigger band near +x face
	w.Trim([3]float64{nearFaceX, 0, 0}, tr)

	if tr.ValidNum() >= before {
		t.Errorf("expected a trailing-edge point to be trimmed after sliding, before=%d after=%d", before, tr.ValidNum())
	}
}
