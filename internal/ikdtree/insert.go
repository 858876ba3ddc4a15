package ikdtree

import "github.com/lio-core/lio/internal/pointcloud"

// Add inserts points into the tree (4.A "add"). When downsample is true,
// each point is subjected to the voxel downsample-insertion invariant:
// at most one point survives per voxel of side cfg.VoxelSize, namely
// whichever of the existing occupant and the incoming point is closer to
// the voxel center.
func (t *Tree) Add(points []pointcloud.Point, downsample bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range points {
		if !p.Finite() {
			continue
		}
		if downsample {
			t.addDownsampledLocked(p)
		} else {
			t.root = t.insertPoint(t.root, p, 0)
		}
	}
}

func (t *Tree) addDownsampledLocked(p pointcloud.Point) {
	l := t.cfg.VoxelSize
	if l <= 0 {
		t.root = t.insertPoint(t.root, p, 0)
		return
	}
	idx, center := pointcloud.VoxelIndex(p, l)
	voxel := bbox{
		min: [3]float64{float64(idx[0]) * l, float64(idx[1]) * l, float64(idx[2]) * l},
		max: [3]float64{float64(idx[0]+1) * l, float64(idx[1]+1) * l, float64(idx[2]+1) * l},
	}
	centerPt := pointcloud.Point{X: float32(center[0]), Y: float32(center[1]), Z: float32(center[2])}

	existing, _, found := t.nearestInBox(t.root, voxel, centerPt)
	if !found {
		t.root = t.insertPoint(t.root, p, 0)
		return
	}

	dExisting := existing.SquaredDistance(centerPt)
	dIncoming := p.SquaredDistance(centerPt)
	if dIncoming >= dExisting {
		return // incoming point is farther from center: drop it
	}
	t.root = t.deletePointExact(t.root, existing)
	t.root = t.insertPoint(t.root, p, 0)
}

// insertPoint inserts p below nd (nil meaning an empty subtree), returning
// the (possibly rebalanced) subtree root. depth seeds the split axis for
// brand-new leaves; existing nodes keep whatever axis they were built with.
func (t *Tree) insertPoint(nd *node, p pointcloud.Point, depth int) *node {
	if nd == nil {
		leaf := &node{point: p, axis: depth % 3}
		leaf.refresh()
		return leaf
	}

	if nd.pending != nil {
		nd.pending.mu.Lock()
		nd.pending.queued = append(nd.pending.queued, p)
		nd.pending.mu.Unlock()
		nd.box = nd.box.expand(pointBBox(p))
		nd.size++
		return nd
	}

	if p.Dimension(nd.axis) < nd.point.Dimension(nd.axis) {
		nd.left = t.insertPoint(nd.left, p, depth+1)
	} else {
		nd.right = t.insertPoint(nd.right, p, depth+1)
	}
	nd.refresh()
	return t.maybeRebalance(nd)
}

// maybeRebalance checks invariants 2 and 3 of 4.A and, if violated,
// triggers a partial rebuild of nd's subtree (inline or on the background
// worker depending on size).
func (t *Tree) maybeRebalance(nd *node) *node {
	leftSize, rightSize := sizeOf(nd.left), sizeOf(nd.right)
	imbalanced := absInt(leftSize-rightSize) > int(t.cfg.Alpha*float64(nd.size))+t.cfg.Beta
	tooManyInvalid := nd.size > 0 && float64(nd.invalidSize) > t.cfg.Gamma*float64(nd.size)

	if !imbalanced && !tooManyInvalid {
		return nd
	}
	if nd.size >= t.cfg.AsyncRebuildMinLen {
		return t.scheduleAsyncRebuild(nd)
	}
	return rebuildSubtree(nd)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sizeOf(nd *node) int {
	if nd == nil {
		return 0
	}
	return nd.size
}
