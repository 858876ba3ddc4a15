package engine

import (
	"context"
	"errors"

	"github.com/lio-core/lio/internal/imu"
	"github.com/lio-core/lio/internal/kalman"
	"github.com/lio-core/lio/internal/measure"
	"github.com/lio-core/lio/internal/pointcloud"
	"github.com/lio-core/lio/internal/state"
	"github.com/lio-core/lio/internal/sync2"
)

// Loop runs the orchestrator until ctx is done (§5 "Cancellation"). It
// blocks on the notify channel when no data is available and wakes on
// either new producer input or context cancellation, matching the
// condition-variable semantics of §5 with an idiomatic Go substitute.
func (e *Engine) Loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.notify:
		}

		for {
			if ctx.Err() != nil {
				return
			}
			if err := e.step(); err != nil {
				if errors.Is(err, sync2.ErrNotReady) {
					break
				}
				e.log.Warnw("engine: step failed, discarding package", "err", err)
				break
			}
		}
	}
}

// step drains one synchronized package (if ready) and advances the
// pipeline: C.ForwardPropagate -> C.Deskew -> voxel-downsample -> E.Trim ->
// B.Update (driving D) -> A.Add.
func (e *Engine) step() error {
	pkg, err := e.sync.Next()
	if err != nil {
		return err
	}

	e.mu.Lock()
	if !e.haveFirstLidarTime {
		e.firstLidarTime = pkg.ScanBegin
		e.haveFirstLidarTime = true
	}
	firstLidarTime := e.firstLidarTime
	e.mu.Unlock()

	if !e.imuProc.Initialized() {
		e.seedFromStationaryWindow(pkg, firstLidarTime)
		if !e.imuProc.Initialized() {
			// Still collecting the stationary window; this package's IMU
			// samples were consumed as calibration data only and its scan
			// points are dropped (4.C "Initialization").
			return nil
		}
	}

	trajectory, err := e.imuProc.ForwardPropagate(e.filter, pkg.IMUSamples, pkg.ScanEnd)
	if err != nil {
		return ErrInsufficientIMUCoverage
	}

	deskewed := imu.Deskew(pkg.Cloud, trajectory, pkg.ScanBegin, e.filter.X.OffsetT, e.filter.X.OffsetR)
	if deskewed.Len() == 0 {
		return ErrEmptyDeskewedCloud
	}

	scanDown := pointcloud.VoxelDownsample(deskewed.Points, float32(e.cfg.FilterSizeSurfMin))

	e.mu.RLock()
	pos := e.filter.X.Pos
	e.mu.RUnlock()
	e.window.Trim(pos, e.tree)

	if e.tree.ValidNum() > 0 {
		model := measure.New(e.tree, scanDown)
		if uerr := e.filter.Update(model); uerr != nil && !errors.Is(uerr, kalman.ErrNoValidMeasurements) {
			e.log.Warnw("engine: filter update failed", "err", uerr)
		}
	}

	worldPoints := make([]pointcloud.Point, 0, len(scanDown))
	for _, p := range scanDown {
		w := e.filter.X.PointInWorldFrame([3]float64{float64(p.X), float64(p.Y), float64(p.Z)})
		worldPoints = append(worldPoints, pointcloud.Point{X: float32(w[0]), Y: float32(w[1]), Z: float32(w[2]), Intensity: p.Intensity})
	}
	e.tree.Add(worldPoints, true)

	e.recordOutputs(pkg, deskewed, worldPoints)
	return nil
}

// seedFromStationaryWindow feeds pkg's IMU samples into the stationary
// initialization window, applying the seed state (with the configured
// static extrinsic) to the filter once the window completes, per window
// count or elapsed time, whichever comes first (4.C "Initialization").
func (e *Engine) seedFromStationaryWindow(pkg sync2.MeasurePackage, firstLidarTime float64) {
	for _, s := range pkg.IMUSamples {
		if seed, ok := e.imuProc.Accumulate(s); ok {
			e.applySeed(seed)
			return
		}
	}
	if pkg.ScanBegin-firstLidarTime >= e.cfg.InitTime {
		if seed, ok := e.imuProc.ForceInit(); ok {
			e.applySeed(seed)
		}
	}
}

func (e *Engine) applySeed(seed state.State) {
	seed.OffsetT = e.cfg.ExtrinsicT
	seed.OffsetR = quatFromWXYZ(e.cfg.ExtrinsicR)
	e.filter.X = seed
}

func (e *Engine) recordOutputs(pkg sync2.MeasurePackage, deskewed pointcloud.Cloud, worldPoints []pointcloud.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.scanCount++
	e.lastScanEnd = pkg.ScanEnd
	e.lastCloud = deskewed
	e.worldCloud = append(e.worldCloud, worldPoints...)

	if e.scanCount%pathSampleEvery == 0 {
		q := e.filter.X.Rot
		e.path = append(e.path, PoseRecord{
			TimeSec: pkg.ScanEnd,
			Pos:     e.filter.X.Pos,
			Rot:     [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag},
		})
	}

	if !e.inited && pkg.ScanBegin-e.firstLidarTime >= e.cfg.InitTime {
		e.inited = true
	}
}
