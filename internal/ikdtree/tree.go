package ikdtree

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/lio-core/lio/internal/pointcloud"
)

// Config tunes the rebalance thresholds of invariant 2 and 3 in 4.A.
type Config struct {
	Alpha              float64 // subtree balance ratio, alpha in (0,1)
	Beta               int     // subtree balance slack
	Gamma              float64 // invalid-fraction trigger for compaction
	VoxelSize          float64 // downsample voxel side L
	AsyncRebuildMinLen int     // subtree size above which rebuild runs on the worker
}

// DefaultConfig matches the FAST-LIO-style ikd-Tree defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:              0.6,
		Beta:               3,
		Gamma:              0.5,
		VoxelSize:          0.5,
		AsyncRebuildMinLen: 1000,
	}
}

// Tree is the incremental, self-balancing k-d tree map index of 4.A.
type Tree struct {
	mu   sync.RWMutex
	root *node
	cfg  Config
	log  *zap.SugaredLogger

	rebuildJobs chan rebuildJob
	workerOnce  sync.Once
	workerDone  chan struct{}
}

// New constructs an empty tree. Call Run to start the background rebuild
// worker before relying on asynchronous partial rebuilds; without it, all
// rebuilds execute inline on the calling goroutine, which the design notes
// call out as an acceptable simplification.
func New(cfg Config, log *zap.SugaredLogger) *Tree {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Tree{
		cfg:         cfg,
		log:         log,
		rebuildJobs: make(chan rebuildJob, 64),
	}
}

// Run starts the single background rebuild worker (5, "one background
// worker owned by 4.A for asynchronous partial rebuild"). It returns
// immediately; the worker exits once done is closed.
func (t *Tree) Run(done <-chan struct{}) {
	t.workerOnce.Do(func() {
		t.workerDone = make(chan struct{})
		go t.rebuildWorker(done)
	})
}

// ValidNum returns the count of non-deleted points in the tree.
func (t *Tree) ValidNum() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.aliveCount()
}

// Size returns the total point count, deleted or not.
func (t *Tree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.root == nil {
		return 0
	}
	return t.root.size
}

// Build replaces the tree's contents with the given batch (4.A "build").
// Non-finite points are rejected per the edge-case rule.
func (t *Tree) Build(points []pointcloud.Point) {
	clean := make([]pointcloud.Point, 0, len(points))
	for _, p := range points {
		if p.Finite() {
			clean = append(clean, p)
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = buildBalanced(clean)
}

// buildBalanced recursively splits on the longest bounding-box axis,
// choosing the median point as the node (4.A "Partial rebuild").
func buildBalanced(points []pointcloud.Point) *node {
	if len(points) == 0 {
		return nil
	}
	axis := longestAxis(points)
	sort.Slice(points, func(i, j int) bool {
		return points[i].Dimension(axis) < points[j].Dimension(axis)
	})
	mid := len(points) / 2
	nd := &node{point: points[mid], axis: axis}
	nd.left = buildBalanced(points[:mid])
	nd.right = buildBalanced(points[mid+1:])
	nd.refresh()
	return nd
}

func longestAxis(points []pointcloud.Point) int {
	var lo, hi [3]float64
	for i, p := range points {
		c := [3]float64{float64(p.X), float64(p.Y), float64(p.Z)}
		if i == 0 {
			lo, hi = c, c
			continue
		}
		for a := 0; a < 3; a++ {
			if c[a] < lo[a] {
				lo[a] = c[a]
			}
			if c[a] > hi[a] {
				hi[a] = c[a]
			}
		}
	}
	best, bestSpan := 0, -1.0
	for a := 0; a < 3; a++ {
		span := hi[a] - lo[a]
		if span > bestSpan {
			bestSpan, best = span, a
		}
	}
	return best
}
