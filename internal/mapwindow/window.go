// Package mapwindow implements the map window manager of 4.E: it keeps the
// incremental k-d tree's map bounded to a cube around the sensor by issuing
// box deletions as the sensor approaches a cube face.
//
// Generalized from the teacher's internal/geometry.go Circle/Intersects
// face-proximity test (2-D circle overlap) to an axis-aligned cube in R3.
package mapwindow

import (
	"github.com/lio-core/lio/internal/ikdtree"
)

// Config mirrors the §6 windowing parameters.
type Config struct {
	CubeLen  float64 // L, default 1000
	DetRange float64 // det_range, default 450

	// MovThreshold gates proximity to a cube face as a fraction of DetRange.
	MovThreshold float64
}

// DefaultConfig matches the reference engine's nominal tuning.
func DefaultConfig() Config {
	return Config{CubeLen: 1000, DetRange: 450, MovThreshold: 1.5}
}

// Window tracks the cube's current center.
type Window struct {
	cfg    Config
	center [3]float64
	ready  bool
}

// New builds a window manager with the given tuning.
func New(cfg Config) *Window {
	return &Window{cfg: cfg}
}

// Trim centers the cube on pos the first time it is called, then, on
// subsequent calls, slides the cube toward pos one axis at a time whenever
// pos comes within MovThreshold*DetRange of a face, issuing a delete_box for
// the sliver(s) that leave the cube (4.E).
func (w *Window) Trim(pos [3]float64, tree *ikdtree.Tree) {
	if !w.ready {
		w.center = pos
		w.ready = true
		return
	}

	half := w.cfg.CubeLen / 2
	threshold := w.cfg.MovThreshold * w.cfg.DetRange
	mov := max64((w.cfg.CubeLen-2*threshold)/2*0.9, w.cfg.DetRange*(w.cfg.MovThreshold-1))

	var boxes []ikdtree.Box
	for axis := 0; axis < 3; axis++ {
		distToMax := (w.center[axis] + half) - pos[axis]
		distToMin := pos[axis] - (w.center[axis] - half)

		if distToMax < threshold {
			boxes = append(boxes, w.slide(axis, mov, tree))
		} else if distToMin < threshold {
			boxes = append(boxes, w.slide(axis, -mov, tree))
		}
	}
	if len(boxes) > 0 {
		tree.DeleteBox(boxes)
	}
}

// slide shifts the cube center by delta along axis and returns the box of
// the sliver vacated on the trailing side.
func (w *Window) slide(axis int, delta float64, tree *ikdtree.Tree) ikdtree.Box {
	half := w.cfg.CubeLen / 2
	oldCenter := w.center[axis]
	w.center[axis] += delta

	box := ikdtree.Box{
		Min: [3]float64{-1e12, -1e12, -1e12},
		Max: [3]float64{1e12, 1e12, 1e12},
	}
	if delta > 0 {
		// Cube moved in +axis: the trailing sliver is the region below the
		// new lower face but within the old cube.
		box.Min[axis] = oldCenter - half
		box.Max[axis] = w.center[axis] - half
	} else {
		box.Min[axis] = w.center[axis] + half
		box.Max[axis] = oldCenter + half
	}
	return box
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
