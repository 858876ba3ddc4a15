// Package engine implements the orchestrator of 4.G: it consumes
// synchronized packages and drives C (IMU processor) -> B (filter update,
// via D's measurement model) -> A (map index), exposing pose/cloud outputs.
//
// Grounded on the teacher's internal/imu_fusion_system.go
// (IMUFusionSystem.processDataLoop), which already has the "drain
// synchronizer -> integrate -> fuse -> refine against point cloud -> emit"
// shape; generalized from the teacher's flat 2-D geometric fusion to the
// C->B->D->A pipeline. The teacher's busy-poll (time.Sleep(1*time.
// Millisecond)) is replaced with the buffered-channel notify signal
// described in §5.
package engine

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/lio-core/lio/internal/config"
	"github.com/lio-core/lio/internal/ikdtree"
	"github.com/lio-core/lio/internal/imu"
	"github.com/lio-core/lio/internal/kalman"
	"github.com/lio-core/lio/internal/mapwindow"
	"github.com/lio-core/lio/internal/pointcloud"
	"github.com/lio-core/lio/internal/state"
	"github.com/lio-core/lio/internal/sync2"
	"github.com/lio-core/lio/internal/telemetry"
)

// pathSampleEvery bounds the memory of the recorded pose path (§6 "sampled
// every 10 scans").
const pathSampleEvery = 10

// PoseRecord is one entry of the historical pose path.
type PoseRecord struct {
	TimeSec float64
	Pos     [3]float64
	Rot     [4]float64 // w, x, y, z
}

// Snapshot is the read-only view exposed to the composition root (§6
// "Outputs").
type Snapshot struct {
	Ready      bool
	TimeSec    float64
	Pos        [3]float64
	Rot        [4]float64   // w, x, y, z
	PoseCov6x6 [6][6]float64 // position-then-orientation ordering
	Cloud      pointcloud.Cloud
	Path       []PoseRecord
}

// Engine owns every mutable piece of the pipeline: the input queues (inside
// sync2.Synchronizer), the map index, the filter, and the IMU processor.
// There is deliberately no package-level mutable state — the composition
// root constructs exactly one Engine and holds it for the process lifetime.
type Engine struct {
	cfg config.Config
	log *telemetry.Logger

	sync    *sync2.Synchronizer
	tree    *ikdtree.Tree
	filter  *kalman.Filter
	imuProc *imu.Processor
	window  *mapwindow.Window

	notify chan struct{}

	mu                 sync.RWMutex
	inited             bool
	firstLidarTime     float64
	haveFirstLidarTime bool
	scanCount          int
	lastScanEnd        float64
	lastCloud          pointcloud.Cloud
	worldCloud         []pointcloud.Point
	path               []PoseRecord
}

// New builds an Engine from cfg. log may be nil.
func New(cfg config.Config, log *telemetry.Logger) *Engine {
	if log == nil {
		log = telemetry.New(nil)
	}
	x0 := state.Identity()
	x0.OffsetT = cfg.ExtrinsicT
	x0.OffsetR = quatFromWXYZ(cfg.ExtrinsicR)

	p0 := identityCov(1e-3)

	f := kalman.New(x0, p0)
	f.MaxIterations = cfg.NumMaxIterations

	return &Engine{
		cfg:     cfg,
		log:     log,
		sync:    sync2.New(log),
		tree:    ikdtree.New(ikdtree.Config{Alpha: 0.6, Beta: 3, Gamma: 0.5, VoxelSize: cfg.FilterSizeMapMin, AsyncRebuildMinLen: 1000}, log),
		filter:  f,
		imuProc: imu.NewProcessor(imu.NoiseConfig{GyrCov: cfg.GyrCov, AccCov: cfg.AccCov, BGyrCov: cfg.BGyrCov, BAccCov: cfg.BAccCov}),
		window:  mapwindow.New(mapwindow.Config{CubeLen: cfg.CubeLen, DetRange: cfg.DetRange, MovThreshold: cfg.MovThreshold}),
		notify:  make(chan struct{}, 1),
	}
}

// Run starts the map index's background rebuild worker. Call it once before
// Loop.
func (e *Engine) Run(ctx context.Context) {
	e.tree.Run(ctx.Done())
}

// PushLidar is the LiDAR producer entry point: O(1) enqueue under the
// synchronizer's lock, then a non-blocking notify.
func (e *Engine) PushLidar(cloud pointcloud.Cloud, t0 float64) {
	e.sync.PushLidar(cloud, t0)
	e.wake()
}

// PushIMU is the IMU producer entry point.
func (e *Engine) PushIMU(sample imu.Sample) {
	e.sync.PushIMU(sample)
	e.wake()
}

func (e *Engine) wake() {
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

func identityCov(v float64) *mat.Dense {
	n := state.TangentDim
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, v)
	}
	return out
}

func quatFromWXYZ(v [4]float64) quat.Number {
	return quat.Number{Real: v[0], Imag: v[1], Jmag: v[2], Kmag: v[3]}
}
