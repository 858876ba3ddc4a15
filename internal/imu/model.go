package imu

import (
	"gonum.org/v1/gonum/mat"

	"github.com/lio-core/lio/internal/state"
)

// NoiseConfig holds the continuous-time process-noise variances of §6
// (gyr_cov, acc_cov, b_gyr_cov, b_acc_cov).
type NoiseConfig struct {
	GyrCov   float64
	AccCov   float64
	BGyrCov  float64
	BAccCov  float64
}

// DefaultNoiseConfig matches the reference engine's nominal tuning.
func DefaultNoiseConfig() NoiseConfig {
	return NoiseConfig{GyrCov: 0.1, AccCov: 0.1, BGyrCov: 1e-4, BAccCov: 1e-4}
}

const noiseDim = 12 // gyro noise(3), accel noise(3), bg random walk(3), ba random walk(3)

// dynamics evaluates the continuous-time process model f(x,u), its state
// Jacobian A = df/dx, and its noise Jacobian W = df/dw at state x for IMU
// input u = (gyro, accel), per 4.B/4.C.
func dynamics(x state.State, gyro, accel [3]float64) (f *mat.VecDense, a, w *mat.Dense) {
	omega := sub3(gyro, x.Bg)
	specificForce := sub3(accel, x.Ba)
	rot := state.QuatToRotationMatrix(x.Rot)
	rAccel := matVec(rot, specificForce)

	f = mat.NewVecDense(state.TangentDim, nil)
	setVec3(f, state.IdxPos, x.Vel)
	setVec3(f, state.IdxRot, omega)
	// offset_R_L_I, offset_T_L_I: static extrinsic, zero dynamics.
	setVec3(f, state.IdxVel, add3(rAccel, x.Grav))
	// bg, ba: zero-mean random walk, zero deterministic dynamics.
	// grav: constant magnitude and (to first order) direction, zero dynamics.

	a = mat.NewDense(state.TangentDim, state.TangentDim, nil)
	setBlock3(a, state.IdxPos, state.IdxVel, identity3())
	setBlock3(a, state.IdxRot, state.IdxBg, negIdentity3())

	negRSkew := matMul(rot, state.Skew(specificForce))
	negRSkew = scaleDense(negRSkew, -1)
	setBlock3(a, state.IdxVel, state.IdxRot, negRSkew)
	setBlock3(a, state.IdxVel, state.IdxBa, scaleDense(rot, -1))

	b1, b2 := gravityBasis(x.Grav)
	for r := 0; r < 3; r++ {
		a.Set(state.IdxVel+r, state.IdxGrav, b1[r])
		a.Set(state.IdxVel+r, state.IdxGrav+1, b2[r])
	}

	w = mat.NewDense(state.TangentDim, noiseDim, nil)
	const (
		nGyro = 0
		nAcc  = 3
		nBg   = 6
		nBa   = 9
	)
	setBlock3(w, state.IdxRot, nGyro, negIdentity3())
	setBlock3(w, state.IdxVel, nAcc, scaleDense(rot, -1))
	setBlock3(w, state.IdxBg, nBg, identity3())
	setBlock3(w, state.IdxBa, nBa, identity3())

	return f, a, w
}

// ProcessNoise builds the 12x12 diagonal process-noise covariance Q.
func ProcessNoise(cfg NoiseConfig) *mat.Dense {
	q := mat.NewDense(noiseDim, noiseDim, nil)
	fill := func(start int, v float64) {
		for i := 0; i < 3; i++ {
			q.Set(start+i, start+i, v)
		}
	}
	fill(0, cfg.GyrCov)
	fill(3, cfg.AccCov)
	fill(6, cfg.BGyrCov)
	fill(9, cfg.BAccCov)
	return q
}

func gravityBasis(g [3]float64) (b1, b2 [3]float64) {
	mag := norm3(g)
	if mag < 1e-8 {
		return [3]float64{1, 0, 0}, [3]float64{0, 1, 0}
	}
	u := scale3(g, 1/mag)
	var ref [3]float64
	if absf(u[0]) < absf(u[1]) && absf(u[0]) < absf(u[2]) {
		ref = [3]float64{1, 0, 0}
	} else if absf(u[1]) < absf(u[2]) {
		ref = [3]float64{0, 1, 0}
	} else {
		ref = [3]float64{0, 0, 1}
	}
	b1 = normalize3(cross3(u, ref))
	b2 = cross3(u, b1)
	return b1, b2
}

func setVec3(v *mat.VecDense, idx int, val [3]float64) {
	v.SetVec(idx, val[0])
	v.SetVec(idx+1, val[1])
	v.SetVec(idx+2, val[2])
}

func setBlock3(m *mat.Dense, rowStart, colStart int, block *mat.Dense) {
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(rowStart+r, colStart+c, block.At(r, c))
		}
	}
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
func negIdentity3() *mat.Dense { return scaleDense(identity3(), -1) }

func scaleDense(m *mat.Dense, f float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Scale(f, m)
	return out
}

func matMul(a, b *mat.Dense) *mat.Dense {
	r, _ := a.Dims()
	_, c := b.Dims()
	out := mat.NewDense(r, c, nil)
	out.Mul(a, b)
	return out
}

func matVec(m *mat.Dense, v [3]float64) [3]float64 {
	vec := mat.NewVecDense(3, []float64{v[0], v[1], v[2]})
	var out mat.VecDense
	out.MulVec(m, vec)
	return [3]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
