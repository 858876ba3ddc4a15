package imu

import (
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/lio-core/lio/internal/kalman"
	"github.com/lio-core/lio/internal/state"
)

// InitWindow is the minimum count of stationary IMU samples the processor
// collects before seeding gravity, gyro bias, and initial orientation
// (4.C "Initialization").
const InitWindow = 20

// Processor owns the stationary-window initialization state and the noise
// tuning used during forward propagation.
type Processor struct {
	Noise NoiseConfig

	initSamples []Sample
	initDone    bool
}

// NewProcessor builds a processor with the given process-noise tuning.
func NewProcessor(noise NoiseConfig) *Processor {
	return &Processor{Noise: noise}
}

// Initialized reports whether the stationary initialization window has
// produced a seed state.
func (p *Processor) Initialized() bool { return p.initDone }

// Accumulate feeds one IMU sample into the stationary initialization window.
// It returns the seed state once InitWindow samples have been collected, or
// ok=false while the window is still filling (4.C: completes after a fixed
// sample count, or when scan_start_time - first_lidar_time >= T_init is
// reached by the caller, whichever comes first).
func (p *Processor) Accumulate(s Sample) (seed state.State, ok bool) {
	if p.initDone {
		return state.State{}, false
	}
	p.initSamples = append(p.initSamples, s)
	if len(p.initSamples) < InitWindow {
		return state.State{}, false
	}
	seed = p.finishInit()
	return seed, true
}

// ForceInit completes initialization immediately with whatever samples have
// been accumulated so far (used when T_init elapses before InitWindow
// samples arrive). It is a no-op if no samples were ever accumulated.
func (p *Processor) ForceInit() (seed state.State, ok bool) {
	if p.initDone || len(p.initSamples) == 0 {
		return state.State{}, false
	}
	return p.finishInit(), true
}

func (p *Processor) finishInit() state.State {
	var meanGyro, meanAccel [3]float64
	for _, s := range p.initSamples {
		meanGyro = add3(meanGyro, s.AngularVelocity)
		meanAccel = add3(meanAccel, s.LinearAccel)
	}
	k := float64(len(p.initSamples))
	meanGyro = scale3(meanGyro, 1/k)
	meanAccel = scale3(meanAccel, 1/k)

	seed := state.Identity()
	seed.Bg = meanGyro
	seed.Ba = [3]float64{}
	seed.Vel = [3]float64{}

	// The averaged specific force at rest measures -gravity in the IMU
	// frame; rescale to nominal magnitude and orient the world frame so
	// that gravity points along -z there, i.e. find the rotation that
	// carries meanAccel (IMU frame) onto (0,0,+g) (world frame, since
	// accelerometers measure the reaction to gravity).
	measured := normalize3(meanAccel)
	target := [3]float64{0, 0, 1}
	seed.Rot = rotationBetween(measured, target)
	seed.Grav = [3]float64{0, 0, -state.GravityNominal}

	p.initDone = true
	p.initSamples = nil
	return seed
}

// rotationBetween returns the unit quaternion rotating unit vector from onto
// unit vector to.
func rotationBetween(from, to [3]float64) quat.Number {
	d := dot3(from, to)
	if d > 1-1e-12 {
		return quat.Number{Real: 1}
	}
	if d < -1+1e-12 {
		axis := cross3(from, [3]float64{1, 0, 0})
		if norm3(axis) < 1e-6 {
			axis = cross3(from, [3]float64{0, 1, 0})
		}
		axis = normalize3(axis)
		return quat.Number{Imag: axis[0], Jmag: axis[1], Kmag: axis[2]}
	}
	axis := cross3(from, to)
	w := 1 + d
	return normalizeQuatPlain(quat.Number{Real: w, Imag: axis[0], Jmag: axis[1], Kmag: axis[2]})
}

func normalizeQuatPlain(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n < 1e-12 {
		return quat.Number{Real: 1}
	}
	return quat.Number{Real: q.Real / n, Imag: q.Imag / n, Jmag: q.Jmag / n, Kmag: q.Kmag / n}
}

// ForwardPropagate integrates the filter state across samples spanning
// roughly [scanStart, scanEnd], returning the per-sample pose trajectory
// (4.C step 2) used by Deskew. It returns ErrInsufficientCoverage if samples
// is empty.
func (p *Processor) ForwardPropagate(f *kalman.Filter, samples []Sample, scanEnd float64) ([]PoseSample, error) {
	if len(samples) == 0 {
		return nil, ErrInsufficientCoverage
	}
	q := ProcessNoise(p.Noise)
	trajectory := make([]PoseSample, 0, len(samples)+1)

	prevT := samples[0].TimeSec
	trajectory = append(trajectory, snapshot(f.X, prevT, samples[0]))

	for i := 1; i < len(samples); i++ {
		s := samples[i]
		dt := s.TimeSec - prevT
		if dt < 0 {
			dt = 0
		}
		fVal, a, w := dynamics(f.X, samples[i-1].AngularVelocity, samples[i-1].LinearAccel)
		f.Propagate(dt, fVal, a, w, q)
		prevT = s.TimeSec
		trajectory = append(trajectory, snapshot(f.X, prevT, s))
	}

	if scanEnd > prevT {
		dt := scanEnd - prevT
		last := samples[len(samples)-1]
		fVal, a, w := dynamics(f.X, last.AngularVelocity, last.LinearAccel)
		f.Propagate(dt, fVal, a, w, q)
		trajectory = append(trajectory, snapshot(f.X, scanEnd, last))
	}

	return trajectory, nil
}

func snapshot(x state.State, t float64, s Sample) PoseSample {
	return PoseSample{
		TimeSec:      t,
		Rot:          x.Rot,
		Pos:          x.Pos,
		Vel:          x.Vel,
		GyroDebiased: sub3(s.AngularVelocity, x.Bg),
	}
}

