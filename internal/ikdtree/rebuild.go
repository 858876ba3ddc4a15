package ikdtree

import (
	"sync"

	"github.com/lio-core/lio/internal/pointcloud"
)

// pendingRebuild buffers inserts that land on a subtree while it is being
// rebuilt off the hot path (5, "Incremental rebuild concurrency").
type pendingRebuild struct {
	mu     sync.Mutex
	queued []pointcloud.Point
}

type rebuildJob struct {
	placeholder *node
	points      []pointcloud.Point
}

// rebuildSubtree performs an inline (synchronous) partial rebuild: collect
// every non-deleted point below nd in DFS order, then rebuild a balanced
// subtree by recursive median split on the longest axis.
func rebuildSubtree(nd *node) *node {
	points := collectAlive(nd, nil)
	return buildBalanced(points)
}

func collectAlive(nd *node, out []pointcloud.Point) []pointcloud.Point {
	if nd == nil {
		return out
	}
	out = collectAlive(nd.left, out)
	if !nd.deleted {
		out = append(out, nd.point)
	}
	out = collectAlive(nd.right, out)
	return out
}

// scheduleAsyncRebuild detaches nd's subtree behind a stable placeholder
// node and enqueues the rebuild work for the background worker. The
// placeholder keeps nd's current (stale but safe) point/box/counts so
// readers and further inserts above it keep working while the rebuild
// runs; inserts that land on the placeholder are buffered in
// pendingRebuild.queued and replayed once the worker splices the rebuilt
// subtree back in.
func (t *Tree) scheduleAsyncRebuild(nd *node) *node {
	if t.workerDone == nil {
		// Run was never called, so no worker would pick the job up.
		return rebuildSubtree(nd)
	}
	points := collectAlive(nd, nil)
	placeholder := &node{
		point:       nd.point,
		axis:        nd.axis,
		box:         nd.box,
		size:        nd.size,
		invalidSize: nd.invalidSize,
		pending:     &pendingRebuild{},
	}
	select {
	case t.rebuildJobs <- rebuildJob{placeholder: placeholder, points: points}:
		return placeholder
	default:
		// Worker queue saturated: fall back to an inline rebuild rather
		// than stall the hot-path insert indefinitely.
		t.log.Warnw("ikdtree: rebuild queue full, rebuilding inline", "size", nd.size)
		return rebuildSubtree(nd)
	}
}

func (t *Tree) rebuildWorker(done <-chan struct{}) {
	defer close(t.workerDone)
	for {
		select {
		case <-done:
			return
		case job := <-t.rebuildJobs:
			t.runRebuildJob(job)
		}
	}
}

func (t *Tree) runRebuildJob(job rebuildJob) {
	newRoot := buildBalanced(job.points)

	t.mu.Lock()
	defer t.mu.Unlock()

	job.placeholder.pending.mu.Lock()
	queued := job.placeholder.pending.queued
	job.placeholder.pending.mu.Unlock()

	cur := newRoot
	for _, p := range queued {
		cur = t.insertPoint(cur, p, 0)
	}
	copyNodeInto(job.placeholder, cur)
}

// copyNodeInto atomically (under the tree's write lock) replaces dst's
// contents with src's, preserving dst's identity so every pointer held by
// the rest of the tree (parent's left/right field, or t.root) observes the
// swap without needing a parent back-reference.
func copyNodeInto(dst, src *node) {
	if src == nil {
		*dst = node{}
		return
	}
	dst.point = src.point
	dst.axis = src.axis
	dst.deleted = src.deleted
	dst.left = src.left
	dst.right = src.right
	dst.box = src.box
	dst.size = src.size
	dst.invalidSize = src.invalidSize
	dst.pending = nil
}
