package measure

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/lio-core/lio/internal/ikdtree"
	"github.com/lio-core/lio/internal/kalman"
	"github.com/lio-core/lio/internal/pointcloud"
	"github.com/lio-core/lio/internal/state"
)

func flatFloorTree() *ikdtree.Tree {
	tr := ikdtree.New(ikdtree.DefaultConfig(), nil)
	var pts []pointcloud.Point
	for x := -2.0; x <= 2.0; x += 0.5 {
		for y := -2.0; y <= 2.0; y += 0.5 {
			pts = append(pts, pointcloud.Point{X: float32(x), Y: float32(y), Z: 0})
		}
	}
	tr.Build(pts)
	return tr
}

func TestFitPlaneRecoversFlatFloorNormal(t *testing.T) {
	neighbors := [][3]float64{
		{0, 0, 0}, {0.5, 0, 0}, {0, 0.5, 0}, {-0.5, 0, 0}, {0, -0.5, 0},
	}
	plane := fitPlane(neighbors)
	if !plane.Valid {
		t.Fatalf("expected valid plane fit")
	}
	if absf(plane.Normal[2]) < 0.99 {
		t.Errorf("expected near-vertical normal for flat floor, got %v", plane.Normal)
	}
}

func TestFitPlaneRejectsTooFewNeighbors(t *testing.T) {
	plane := fitPlane([][3]float64{{0, 0, 0}, {1, 0, 0}})
	if plane.Valid {
		t.Errorf("expected invalid plane with too few neighbors")
	}
}

func TestEvaluateReturnsNoValidMeasurementsOnEmptyMap(t *testing.T) {
	tr := ikdtree.New(ikdtree.DefaultConfig(), nil)
	scan := []pointcloud.Point{{X: 1, Y: 0, Z: 0}}
	model := New(tr, scan)
	_, _, _, err := model.Evaluate(state.Identity(), true)
	if !errors.Is(err, kalman.ErrNoValidMeasurements) {
		t.Errorf("expected ErrNoValidMeasurements against an empty map, got %v", err)
	}
}

func TestEvaluateProducesResidualForPointOnMappedFloor(t *testing.T) {
	tr := flatFloorTree()
	scan := []pointcloud.Point{{X: 1, Y: 0, Z: 0.01}}
	model := New(tr, scan)

	h, capH, r, err := model.Evaluate(state.Identity(), true)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if h.Len() != 1 {
		t.Fatalf("expected 1 residual, got %d", h.Len())
	}
	rows, cols := capH.Dims()
	if rows != 1 || cols != state.TangentDim {
		t.Fatalf("unexpected Jacobian shape: %dx%d", rows, cols)
	}
	if !floats.EqualWithinAbs(r.At(0, 0), LaserPointCov, 1e-12) {
		t.Errorf("expected observation noise %v, got %v", LaserPointCov, r.At(0, 0))
	}
}
