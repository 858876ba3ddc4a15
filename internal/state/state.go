// Package state implements the manifold state of 4.B: the on-manifold
// retraction (boxplus) and its inverse (boxminus), and the manifold point
// itself (pos, rot, LiDAR-IMU extrinsic, velocity, biases, gravity
// direction).
package state

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// TangentDim is the dimension of the tangent space: 3 (pos) + 3 (rot) +
// 3 (offset_R_L_I) + 3 (offset_T_L_I) + 3 (vel) + 3 (bg) + 3 (ba) + 2
// (grav, S^2) = 23.
const TangentDim = 23

// Tangent-vector block offsets, matching the order used by the 4.D
// measurement Jacobian row.
const (
	IdxPos      = 0
	IdxRot      = 3
	IdxOffsetR  = 6
	IdxOffsetT  = 9
	IdxVel      = 12
	IdxBg       = 15
	IdxBa       = 18
	IdxGrav     = 21
	GravTangent = 2
)

// State is the 23-scalar manifold point estimated by the filter.
type State struct {
	Pos     [3]float64
	Rot     quat.Number // orientation of IMU in world
	OffsetR quat.Number // LiDAR-to-IMU extrinsic rotation
	OffsetT [3]float64  // LiDAR-to-IMU extrinsic translation
	Vel     [3]float64
	Bg      [3]float64 // gyro bias
	Ba      [3]float64 // accel bias
	Grav    [3]float64 // gravity vector in world, |Grav| == GravityNominal
}

// Identity returns the zero/identity manifold point (unit rotations, zero
// vectors, nominal-magnitude gravity pointing down).
func Identity() State {
	return State{
		Rot:     quat.Number{Real: 1},
		OffsetR: quat.Number{Real: 1},
		Grav:    [3]float64{0, 0, -GravityNominal},
	}
}

// BoxPlus is the right-retraction x boxplus delta: vector addition on the
// R^k blocks, Exp(delta) applied to each SO(3) factor, and the S^2
// retraction for gravity.
func (s State) BoxPlus(delta *mat.VecDense) State {
	d := func(i int) float64 { return delta.AtVec(i) }
	out := s
	out.Pos = add3(s.Pos, [3]float64{d(IdxPos), d(IdxPos + 1), d(IdxPos + 2)})
	out.Rot = normalizeQuat(quat.Mul(ExpSO3([3]float64{d(IdxRot), d(IdxRot + 1), d(IdxRot + 2)}), s.Rot))
	out.OffsetR = normalizeQuat(quat.Mul(ExpSO3([3]float64{d(IdxOffsetR), d(IdxOffsetR + 1), d(IdxOffsetR + 2)}), s.OffsetR))
	out.OffsetT = add3(s.OffsetT, [3]float64{d(IdxOffsetT), d(IdxOffsetT + 1), d(IdxOffsetT + 2)})
	out.Vel = add3(s.Vel, [3]float64{d(IdxVel), d(IdxVel + 1), d(IdxVel + 2)})
	out.Bg = add3(s.Bg, [3]float64{d(IdxBg), d(IdxBg + 1), d(IdxBg + 2)})
	out.Ba = add3(s.Ba, [3]float64{d(IdxBa), d(IdxBa + 1), d(IdxBa + 2)})
	out.Grav = S2BoxPlus(s.Grav, [2]float64{d(IdxGrav), d(IdxGrav + 1)})
	return out
}

// BoxMinus returns the tangent vector s boxminus base, i.e. the delta such
// that base.BoxPlus(delta) approximates s.
func (s State) BoxMinus(base State) *mat.VecDense {
	out := mat.NewVecDense(TangentDim, nil)
	setBlock(out, IdxPos, sub3(s.Pos, base.Pos))
	setBlock(out, IdxRot, LogSO3(quat.Mul(s.Rot, quat.Conj(base.Rot))))
	setBlock(out, IdxOffsetR, LogSO3(quat.Mul(s.OffsetR, quat.Conj(base.OffsetR))))
	setBlock(out, IdxOffsetT, sub3(s.OffsetT, base.OffsetT))
	setBlock(out, IdxVel, sub3(s.Vel, base.Vel))
	setBlock(out, IdxBg, sub3(s.Bg, base.Bg))
	setBlock(out, IdxBa, sub3(s.Ba, base.Ba))
	g := S2BoxMinus(s.Grav, base.Grav)
	out.SetVec(IdxGrav, g[0])
	out.SetVec(IdxGrav+1, g[1])
	return out
}

func setBlock(v *mat.VecDense, idx int, b [3]float64) {
	v.SetVec(idx, b[0])
	v.SetVec(idx+1, b[1])
	v.SetVec(idx+2, b[2])
}

// PointInIMUFrame transforms a LiDAR-frame point into the IMU frame using
// the current extrinsic: p_I = offset_R_L_I * p_L + offset_T_L_I.
func (s State) PointInIMUFrame(p [3]float64) [3]float64 {
	return add3(RotateVector(s.OffsetR, p), s.OffsetT)
}

// PointInWorldFrame transforms a LiDAR-frame point into world coordinates:
// p_w = rot * (offset_R_L_I * p + offset_T_L_I) + pos (4.D step 1).
func (s State) PointInWorldFrame(p [3]float64) [3]float64 {
	return add3(RotateVector(s.Rot, s.PointInIMUFrame(p)), s.Pos)
}
