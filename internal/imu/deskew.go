package imu

import (
	"gonum.org/v1/gonum/num/quat"

	"github.com/lio-core/lio/internal/pointcloud"
	"github.com/lio-core/lio/internal/state"
)

// Deskew transforms every point of raw so that it appears as if it had been
// captured at reference time trajectory[len-1].TimeSec, undoing the motion
// recorded by trajectory during the scan (4.C "Backward de-skew").
//
// Rather than integrating backward in time, this interpolates the forward
// trajectory at each point's own timestamp and composes the inverse of that
// relative motion with the point's LiDAR-frame coordinates; the two are
// mathematically equivalent for a trajectory sampled densely enough to
// bracket every point timestamp. ForwardPropagate records one pose per IMU
// sample plus one at the scan end; a point earlier than the first recorded
// pose takes that first pose unchanged (see interpolate).
//
// raw.Points carry a scan-relative TimeMs offset; scanBegin converts that
// back to the absolute IMU clock the trajectory is indexed by.
func Deskew(raw pointcloud.Cloud, trajectory []PoseSample, scanBegin float64, extrinsicT [3]float64, offsetRot quat.Number) pointcloud.Cloud {
	if len(trajectory) == 0 {
		return raw
	}
	ref := trajectory[len(trajectory)-1]
	refRotInv := quat.Conj(ref.Rot)

	out := pointcloud.Cloud{Points: make([]pointcloud.Point, len(raw.Points))}
	for i, p := range raw.Points {
		tSec := scanBegin + float64(p.TimeMs)/1000.0
		pose := interpolate(trajectory, tSec)

		pLidar := [3]float64{float64(p.X), float64(p.Y), float64(p.Z)}
		pImu := add3(rotateVec(offsetRot, pLidar), extrinsicT)
		pWorld := add3(rotateVec(pose.Rot, pImu), pose.Pos)

		// p_ref_imu = refRot^-1 * (p_world - refPos)
		relative := sub3(pWorld, ref.Pos)
		pRefImu := rotateVec(refRotInv, relative)
		pRefLidar := sub3(rotateVec(quat.Conj(offsetRot), pRefImu), rotateVec(quat.Conj(offsetRot), extrinsicT))

		out.Points[i] = pointcloud.Point{
			X:         float32(pRefLidar[0]),
			Y:         float32(pRefLidar[1]),
			Z:         float32(pRefLidar[2]),
			Intensity: p.Intensity,
			TimeMs:    p.TimeMs,
		}
	}
	return out
}

func rotateVec(q quat.Number, v [3]float64) [3]float64 {
	return state.RotateVector(q, v)
}

// interpolate returns the pose at t by exponential-map slerp between the two
// trajectory samples bracketing t, clamping to the endpoints outside the
// recorded range.
func interpolate(trajectory []PoseSample, t float64) PoseSample {
	if t <= trajectory[0].TimeSec {
		return trajectory[0]
	}
	last := trajectory[len(trajectory)-1]
	if t >= last.TimeSec {
		return last
	}
	lo := 0
	for i := 1; i < len(trajectory); i++ {
		if trajectory[i].TimeSec >= t {
			lo = i - 1
			break
		}
	}
	a, b := trajectory[lo], trajectory[lo+1]
	span := b.TimeSec - a.TimeSec
	var alpha float64
	if span > 1e-9 {
		alpha = (t - a.TimeSec) / span
	}
	return PoseSample{
		TimeSec: t,
		Rot:     slerp(a.Rot, b.Rot, alpha),
		Pos:     lerp3(a.Pos, b.Pos, alpha),
		Vel:     lerp3(a.Vel, b.Vel, alpha),
	}
}

func lerp3(a, b [3]float64, alpha float64) [3]float64 {
	return add3(scale3(a, 1-alpha), scale3(b, alpha))
}

// slerp interpolates rotation via the exponential map: Exp(alpha *
// Log(b * conj(a))) * a.
func slerp(a, b quat.Number, alpha float64) quat.Number {
	rel := quat.Mul(b, quat.Conj(a))
	delta := state.LogSO3(rel)
	scaled := scale3(delta, alpha)
	return quat.Mul(state.ExpSO3(scaled), a)
}
