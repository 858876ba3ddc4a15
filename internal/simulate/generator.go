// Package simulate generates synthetic IMU and LiDAR streams for the demo
// composition root. It is explicitly outside the engine's core scope; no
// engine package imports it.
//
// Grounded on the teacher's internal/acquisition.go (DataAcquisition.Start):
// the same one-goroutine-per-sensor, time.Ticker-driven push loop, generalized
// from a single hardcoded zero-motion IMU feed to a pluggable Motion function
// and an accompanying synthetic LiDAR scan feed.
package simulate

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/lio-core/lio/internal/imu"
	"github.com/lio-core/lio/internal/pointcloud"
	"github.com/lio-core/lio/internal/state"
)

// Sink is the subset of the engine's producer API the generator drives.
type Sink interface {
	PushIMU(sample imu.Sample)
	PushLidar(cloud pointcloud.Cloud, t0 float64)
}

// Motion evaluates a synthetic trajectory's body-frame angular velocity and
// specific force (accelerometer reading, gravity included) at t seconds
// since the run started.
type Motion func(t float64) (angularVelocity, specificForce [3]float64)

// Stationary holds the sensor motionless and level (§8 "stationary bench").
func Stationary() Motion {
	return func(float64) ([3]float64, [3]float64) {
		return [3]float64{}, [3]float64{0, 0, state.GravityNominal}
	}
}

// PureYaw rotates about the vertical axis at a constant rate with no
// translation (§8 "pure yaw").
func PureYaw(rateRadPerSec float64) Motion {
	return func(float64) ([3]float64, [3]float64) {
		return [3]float64{0, 0, rateRadPerSec}, [3]float64{0, 0, state.GravityNominal}
	}
}

// StraightLine accelerates the sensor along its own X axis from rest while
// holding level attitude (§8 "straight line").
func StraightLine(accel float64) Motion {
	return func(float64) ([3]float64, [3]float64) {
		return [3]float64{}, [3]float64{accel, 0, state.GravityNominal}
	}
}

// Config tunes the synthetic sensor rates and scan geometry.
type Config struct {
	IMURateHz       float64
	LidarRateHz     float64
	PointsPerScan   int
	RoomHalfExtentM float64
	Seed            int64
}

// DefaultConfig matches a typical FAST-LIO2-class sensor pairing: a 200 Hz
// IMU and a 10 Hz spinning LiDAR.
func DefaultConfig() Config {
	return Config{
		IMURateHz:       200,
		LidarRateHz:     10,
		PointsPerScan:   512,
		RoomHalfExtentM: 5,
		Seed:            1,
	}
}

// Generator drives a Sink with synthetic IMU and LiDAR data until its
// context is cancelled, mirroring the teacher's one-goroutine-per-sensor
// acquisition loop.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// New builds a Generator from cfg.
func New(cfg Config) *Generator {
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Run starts the IMU and LiDAR producer goroutines and blocks until ctx is
// done, at which point both goroutines are drained before returning.
func (g *Generator) Run(ctx context.Context, sink Sink, motion Motion) {
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		g.runIMU(ctx, sink, motion, start)
	}()
	go func() {
		defer wg.Done()
		g.runLidar(ctx, sink, start)
	}()
	wg.Wait()
}

func (g *Generator) runIMU(ctx context.Context, sink Sink, motion Motion, start time.Time) {
	period := time.Duration(float64(time.Second) / g.cfg.IMURateHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t := now.Sub(start).Seconds()
			omega, accel := motion(t)
			sink.PushIMU(imu.Sample{TimeSec: t, AngularVelocity: omega, LinearAccel: accel})
		}
	}
}

func (g *Generator) runLidar(ctx context.Context, sink Sink, start time.Time) {
	period := time.Duration(float64(time.Second) / g.cfg.LidarRateHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t0 := now.Sub(start).Seconds()
			scanMs := float32(1000.0 / g.cfg.LidarRateHz)
			sink.PushLidar(g.syntheticScan(scanMs), t0)
		}
	}
}

// syntheticScan samples points uniformly over a synthetic room's six walls
// in the sensor-local frame, distributing each point's TimeMs offset evenly
// across the scan period so the de-skew stage has real per-point skew to
// correct.
func (g *Generator) syntheticScan(scanMs float32) pointcloud.Cloud {
	n := g.cfg.PointsPerScan
	if n <= 0 {
		n = 1
	}
	half := g.cfg.RoomHalfExtentM
	points := make([]pointcloud.Point, n)
	for i := 0; i < n; i++ {
		axis := g.rng.Intn(3)
		sign := float32(1)
		if g.rng.Intn(2) == 0 {
			sign = -1
		}
		u := float32(g.rng.Float64()*2-1) * float32(half)
		v := float32(g.rng.Float64()*2-1) * float32(half)

		var p pointcloud.Point
		switch axis {
		case 0:
			p = pointcloud.Point{X: sign * float32(half), Y: u, Z: v}
		case 1:
			p = pointcloud.Point{X: u, Y: sign * float32(half), Z: v}
		default:
			p = pointcloud.Point{X: u, Y: v, Z: sign * float32(half)}
		}
		p.Intensity = 100
		p.TimeMs = scanMs * float32(i) / float32(n)
		points[i] = p
	}
	return pointcloud.Cloud{Points: points}
}
