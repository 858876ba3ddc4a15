package ikdtree

import (
	"sort"

	priorityqueue "github.com/kyroy/priority-queue"

	"github.com/lio-core/lio/internal/pointcloud"
)

// NearestSearch returns up to k nearest non-deleted points to query, in
// non-decreasing order of distance, together with their squared distances
// (4.A "nearest_search"). An empty tree returns an empty result, not an
// error.
func (t *Tree) NearestSearch(query pointcloud.Point, k int) ([]pointcloud.Point, []float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.root == nil || k <= 0 {
		return nil, nil
	}

	// A max-heap on distance bounds the search to the k best candidates
	// seen so far: once full, the farthest candidate is evicted whenever a
	// closer one arrives (promoted from the teacher's transitive
	// dependency on github.com/kyroy/priority-queue).
	heap := priorityqueue.New()
	t.searchNode(t.root, query, k, heap)

	type cand struct {
		p pointcloud.Point
		d float64
	}
	cands := make([]cand, 0, heap.Len())
	for heap.Len() > 0 {
		item := heap.Pop()
		cands = append(cands, cand{p: item.Value.(pointcloud.Point), d: item.Priority})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].d < cands[j].d })

	points := make([]pointcloud.Point, len(cands))
	dists := make([]float64, len(cands))
	for i, c := range cands {
		points[i] = c.p
		dists[i] = c.d
	}
	return points, dists
}

func (t *Tree) searchNode(nd *node, query pointcloud.Point, k int, heap *priorityqueue.PriorityQueue) {
	if nd == nil {
		return
	}
	if heap.Len() >= k {
		if worst := heap.Peek(); worst != nil && nd.box.minSquaredDistance(query) > worst.Priority {
			return // subtree cannot contain anything closer than the current worst kept candidate
		}
	}

	if nd.pending == nil && !nd.deleted {
		d := nd.point.SquaredDistance(query)
		if heap.Len() < k {
			heap.Insert(nd.point, d)
		} else if worst := heap.Peek(); worst != nil && d < worst.Priority {
			heap.Pop()
			heap.Insert(nd.point, d)
		}
	}

	near, far := nd.left, nd.right
	if query.Dimension(nd.axis) >= nd.point.Dimension(nd.axis) {
		near, far = nd.right, nd.left
	}
	t.searchNode(near, query, k, heap)
	t.searchNode(far, query, k, heap)
}

// nearestInBox finds the single nearest non-deleted point to center that
// also lies within box, used by the voxel downsample rule of 4.A ("a
// standard k-NN with k=1 restricted to the voxel's bounding box"). Callers
// must hold at least the read lock.
func (t *Tree) nearestInBox(nd *node, box bbox, center pointcloud.Point) (pointcloud.Point, float64, bool) {
	best, bestDist, found := pointcloud.Point{}, 0.0, false
	t.nearestInBoxRec(nd, box, center, &best, &bestDist, &found)
	return best, bestDist, found
}

func (t *Tree) nearestInBoxRec(nd *node, box bbox, center pointcloud.Point, best *pointcloud.Point, bestDist *float64, found *bool) {
	if nd == nil || !nd.box.intersects(box) {
		return
	}
	if nd.pending == nil && !nd.deleted && box.contains(nd.point) {
		d := nd.point.SquaredDistance(center)
		if !*found || d < *bestDist {
			*best, *bestDist, *found = nd.point, d, true
		}
	}
	t.nearestInBoxRec(nd.left, box, center, best, bestDist, found)
	t.nearestInBoxRec(nd.right, box, center, best, bestDist, found)
}
